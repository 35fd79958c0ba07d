/*
dcopf.go DC optimal power flow builder. A Builder turns a network snapshot into one
linear program per island: bus angles and dispatchable injections are the
decision variables, branch flows are linear in the angle differences, and a
relaxation (load shedding or branch overload slack) keeps the problem feasible
at a penalty cost.

Reference buses get a balance row like every other bus: their dispatchable
injection equals the B·θ sum plus their own load, static and non
dispatchable injections. Equating the dispatchable injection with the B·θ
sum alone would leave a load on a reference bus unserved.

The variable set is declared once for the whole network. Between solves only
the fixed injections change (SetLoads), the topological part of every
constraint is cached.
*/

package dcopf

import (
	"errors"
	"fmt"
	"log"

	"github.com/ohowland/cgc_opf/internal/pkg/island"
	"github.com/ohowland/cgc_opf/internal/pkg/metrics"
	opt "github.com/ohowland/cgc_opf/internal/pkg/optimize"
	"github.com/ohowland/cgc_opf/internal/pkg/optimize/simplex"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem/connectivity"
)

const (
	DefaultPenalty    = 1000.0
	DefaultAngleBound = 0.5
	DefaultTolerance  = 1e-6
)

var (
	ErrBuildOrder  = errors.New("builder step called before its prerequisites")
	ErrUnknownMode = errors.New("unknown relaxation mode")
	ErrNoIsland    = errors.New("island index out of range")
)

// Mode selects the relaxation that keeps the problem feasible.
type Mode int

const (
	// OverloadSlack lets branch flows exceed their rating at a cost.
	OverloadSlack Mode = iota
	// LoadShedding lets demand be curtailed at a cost.
	LoadShedding
)

func (m Mode) String() string {
	switch m {
	case OverloadSlack:
		return "overload"
	case LoadShedding:
		return "shedding"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "overload", "OverloadSlack", "overload_slack":
		return OverloadSlack, nil
	case "shedding", "LoadShedding", "load_shedding":
		return LoadShedding, nil
	}
	return OverloadSlack, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Options parameterize a Builder. Zero fields take their default.
type Options struct {
	Mode       Mode
	Penalty    float64
	AngleBound float64
	Workers    int
	// Tolerance is the magnitude under which ratings and susceptances are
	// considered zero.
	Tolerance float64
	Decompose island.Decomposer
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Mode:       OverloadSlack,
		Penalty:    DefaultPenalty,
		AngleBound: DefaultAngleBound,
		Workers:    1,
		Tolerance:  DefaultTolerance,
		Decompose:  island.Decompose,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Penalty <= 0 {
		o.Penalty = d.Penalty
	}
	if o.AngleBound <= 0 {
		o.AngleBound = d.AngleBound
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.Decompose == nil {
		o.Decompose = d.Decompose
	}
	return o
}

// Builder assembles and solves the DC-OPF of one network.
type Builder struct {
	net     powersystem.Network
	conn    *connectivity.Model
	islands []island.Island
	solver  opt.Solver
	opts    Options

	reg   *opt.Registry
	theta []opt.Var
	genP  []opt.Var
	batP  []opt.Var
	shed  []opt.Var
	slack [][4]opt.Var

	busCost    []opt.Expr
	branchCost []opt.Expr

	// calc[i] is Σ B_ij θ_j over the non reference buses of the island of i,
	// inject[i] the dispatchable injection (and shedding) at bus i.
	calc   []opt.Expr
	inject []opt.Expr
	fixed  []float64

	problems   []*opt.Problem
	balanceRow []int
	islandOf   []int

	potentialErrors []string
	t               int

	declared    bool
	assembled   bool
	constrained bool
	loaded      bool

	results Results
}

// New validates the network, builds its connectivity model and decomposes
// it into islands. A nil solver selects the gonum simplex.
func New(net powersystem.Network, solver opt.Solver, opts Options) (*Builder, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode != OverloadSlack && opts.Mode != LoadShedding {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, opts.Mode)
	}
	opts = opts.withDefaults()
	if solver == nil {
		solver = simplex.New(0)
	}

	conn := connectivity.New(net)
	islands, err := opts.Decompose(net, conn)
	if err != nil {
		return nil, err
	}
	if err := island.Validate(net, islands); err != nil {
		return nil, err
	}

	islandOf := make([]int, net.NBus())
	for i, isl := range islands {
		for _, bus := range isl.Buses {
			islandOf[bus] = i
		}
	}

	log.Printf("[DCOPF] %s: %d buses, %d branches, %d islands, %s mode",
		net.Name, net.NBus(), net.NBranch(), len(islands), opts.Mode)
	metrics.Islands.Set(float64(len(islands)))

	return &Builder{
		net:      net,
		conn:     conn,
		islands:  islands,
		solver:   solver,
		opts:     opts,
		islandOf: islandOf,
		t:        powersystem.NoProfile,
	}, nil
}

// Build runs every construction step and loads the scalar device values.
func (b *Builder) Build() error {
	b.DeclareVariables()
	if err := b.AssembleObjective(); err != nil {
		return err
	}
	if err := b.BuildConstraints(); err != nil {
		return err
	}
	return b.SetLoads(powersystem.NoProfile)
}

// Mode returns the relaxation mode fixed at construction.
func (b *Builder) Mode() Mode { return b.opts.Mode }

// Network returns the snapshot the builder was created from.
func (b *Builder) Network() powersystem.Network { return b.net }

// Islands returns the island decomposition.
func (b *Builder) Islands() []island.Island { return b.islands }

// Connectivity returns the cached connectivity model.
func (b *Builder) Connectivity() *connectivity.Model { return b.conn }

// Problem returns the linear program of island i.
func (b *Builder) Problem(i int) (*opt.Problem, error) {
	if !b.constrained {
		return nil, ErrBuildOrder
	}
	if i < 0 || i >= len(b.problems) {
		return nil, fmt.Errorf("%w: %d", ErrNoIsland, i)
	}
	return b.problems[i], nil
}

// PotentialErrors lists the model problems found while building constraints.
func (b *Builder) PotentialErrors() []string {
	return append([]string(nil), b.potentialErrors...)
}

// HasPotentialErrors reports whether the solve would be skipped.
func (b *Builder) HasPotentialErrors() bool { return len(b.potentialErrors) > 0 }
