/*
powersystem.go Snapshot of a transmission network as seen by the dispatch layer. The
snapshot is connectivity-resolved: every device references its bus by index.
*/

package powersystem

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NoProfile selects the scalar device values instead of a profile entry.
const NoProfile = -1

var (
	ErrBaseMVA        = errors.New("base power must be positive")
	ErrNoBuses        = errors.New("network has no buses")
	ErrUnknownBus     = errors.New("reference to unknown bus")
	ErrSelfLoop       = errors.New("branch connects a bus to itself")
	ErrZeroImpedance  = errors.New("branch has zero series impedance")
	ErrLimits         = errors.New("minimum power exceeds maximum power")
	ErrProfileLength  = errors.New("profiles have inconsistent length")
	ErrProfileIndex   = errors.New("time index outside of profile range")
	ErrUnknownBusType = errors.New("unknown bus type")
)

// BusType classifies a bus for the power flow formulation.
type BusType int

const (
	PQ BusType = iota
	PV
	Ref
)

func (t BusType) String() string {
	switch t {
	case PQ:
		return "PQ"
	case PV:
		return "PV"
	case Ref:
		return "REF"
	}
	return fmt.Sprintf("BusType(%d)", int(t))
}

// ParseBusType maps the configuration spelling of a bus type.
func ParseBusType(s string) (BusType, error) {
	switch s {
	case "", "PQ", "pq":
		return PQ, nil
	case "PV", "pv":
		return PV, nil
	case "REF", "ref", "Ref", "SLACK", "slack", "VD", "vd":
		return Ref, nil
	}
	return PQ, fmt.Errorf("%w: %q", ErrUnknownBusType, s)
}

// Bus is a network node.
type Bus struct {
	PID  uuid.UUID
	Name string
	Type BusType
}

// Branch is a series element between two buses. R, X and B are per unit on the
// network base, Rate is the thermal rating in MW.
type Branch struct {
	PID    uuid.UUID
	Name   string
	From   int
	To     int
	R      float64
	X      float64
	B      float64
	Rate   float64
	Active bool
}

// Generator is a controllable injection. Batteries share the same shape.
type Generator struct {
	PID          uuid.UUID
	Name         string
	Bus          int
	P            float64
	Pmin         float64
	Pmax         float64
	Cost         float64
	Active       bool
	Dispatchable bool
	Profile      []float64
}

// Power returns the generator set point at time index t.
func (g Generator) Power(t int) float64 {
	return profileValue(g.Profile, g.P, t)
}

// Load is a demand attached to a bus.
type Load struct {
	PID     uuid.UUID
	Name    string
	Bus     int
	P       float64
	Active  bool
	Profile []float64
}

// Power returns the demand at time index t.
func (l Load) Power(t int) float64 {
	return profileValue(l.Profile, l.P, t)
}

// StaticGenerator is a fixed injection, e.g. a non-controllable renewable plant.
type StaticGenerator struct {
	PID     uuid.UUID
	Name    string
	Bus     int
	P       float64
	Active  bool
	Profile []float64
}

// Power returns the injection at time index t.
func (s StaticGenerator) Power(t int) float64 {
	return profileValue(s.Profile, s.P, t)
}

func profileValue(profile []float64, scalar float64, t int) float64 {
	if t < 0 || len(profile) == 0 {
		return scalar
	}
	return profile[t]
}

// Network is the full snapshot handed to the optimizer.
type Network struct {
	Name             string
	Sbase            float64
	Buses            []Bus
	Branches         []Branch
	Generators       []Generator
	Batteries        []Generator
	Loads            []Load
	StaticGenerators []StaticGenerator
}

// NBus returns the number of buses.
func (n Network) NBus() int { return len(n.Buses) }

// NBranch returns the number of branches.
func (n Network) NBranch() int { return len(n.Branches) }

// Steps returns the profile length, or zero when no device carries a profile.
func (n Network) Steps() int {
	steps := 0
	visit := func(p []float64) {
		if len(p) > steps {
			steps = len(p)
		}
	}
	for _, g := range n.Generators {
		visit(g.Profile)
	}
	for _, g := range n.Batteries {
		visit(g.Profile)
	}
	for _, l := range n.Loads {
		visit(l.Profile)
	}
	for _, s := range n.StaticGenerators {
		visit(s.Profile)
	}
	return steps
}

// CheckTimeIndex verifies that t can be used with Power(t) on every device.
func (n Network) CheckTimeIndex(t int) error {
	if t == NoProfile {
		return nil
	}
	if t < 0 || t >= n.Steps() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrProfileIndex, t, n.Steps())
	}
	return nil
}

// Validate checks the structural consistency of the snapshot.
func (n Network) Validate() error {
	if n.Sbase <= 0 {
		return fmt.Errorf("%w: %v", ErrBaseMVA, n.Sbase)
	}
	if len(n.Buses) == 0 {
		return ErrNoBuses
	}

	nbus := len(n.Buses)
	inRange := func(i int) bool { return i >= 0 && i < nbus }

	for k, br := range n.Branches {
		if !inRange(br.From) || !inRange(br.To) {
			return fmt.Errorf("branch %d (%s): %w", k, br.Name, ErrUnknownBus)
		}
		if br.From == br.To {
			return fmt.Errorf("branch %d (%s): %w", k, br.Name, ErrSelfLoop)
		}
		if br.R == 0 && br.X == 0 {
			return fmt.Errorf("branch %d (%s): %w", k, br.Name, ErrZeroImpedance)
		}
	}

	checkGen := func(kind string, gens []Generator) error {
		for i, g := range gens {
			if !inRange(g.Bus) {
				return fmt.Errorf("%s %d (%s): %w", kind, i, g.Name, ErrUnknownBus)
			}
			if g.Pmin > g.Pmax {
				return fmt.Errorf("%s %d (%s): %w", kind, i, g.Name, ErrLimits)
			}
		}
		return nil
	}
	if err := checkGen("generator", n.Generators); err != nil {
		return err
	}
	if err := checkGen("battery", n.Batteries); err != nil {
		return err
	}
	for i, l := range n.Loads {
		if !inRange(l.Bus) {
			return fmt.Errorf("load %d (%s): %w", i, l.Name, ErrUnknownBus)
		}
	}
	for i, s := range n.StaticGenerators {
		if !inRange(s.Bus) {
			return fmt.Errorf("static generator %d (%s): %w", i, s.Name, ErrUnknownBus)
		}
	}

	return n.checkProfiles()
}

func (n Network) checkProfiles() error {
	steps := n.Steps()
	check := func(name string, p []float64) error {
		if len(p) != 0 && len(p) != steps {
			return fmt.Errorf("%s: %w (%d != %d)", name, ErrProfileLength, len(p), steps)
		}
		return nil
	}
	for _, g := range n.Generators {
		if err := check(g.Name, g.Profile); err != nil {
			return err
		}
	}
	for _, g := range n.Batteries {
		if err := check(g.Name, g.Profile); err != nil {
			return err
		}
	}
	for _, l := range n.Loads {
		if err := check(l.Name, l.Profile); err != nil {
			return err
		}
	}
	for _, s := range n.StaticGenerators {
		if err := check(s.Name, s.Profile); err != nil {
			return err
		}
	}
	return nil
}
