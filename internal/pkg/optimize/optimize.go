/*
optimize.go Generic linear program model. Variables live in a Registry shared by
every Problem built from it, so one set of decision variables can be reused
across islands and across repeated solves.
*/

package optimize

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Var is a handle to a variable declared in a Registry.
type Var int

// NoVar marks the absence of a decision variable.
const NoVar Var = -1

// Variable describes a decision variable and its bounds. Bounds may be ±Inf.
type Variable struct {
	Name  string
	Lower float64
	Upper float64
}

// Registry holds the variables of a model.
type Registry struct {
	vars []Variable
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// New declares a variable and returns its handle.
func (r *Registry) New(name string, lower, upper float64) Var {
	if lower > upper {
		panic(fmt.Sprintf("optimize: variable %s has lower bound %v above upper bound %v", name, lower, upper))
	}
	r.vars = append(r.vars, Variable{Name: name, Lower: lower, Upper: upper})
	return Var(len(r.vars) - 1)
}

// Variable returns the description of v.
func (r *Registry) Variable(v Var) Variable { return r.vars[v] }

// Len returns the number of declared variables.
func (r *Registry) Len() int { return len(r.vars) }

// Sense is the relation of a constraint.
type Sense int

const (
	LE Sense = iota
	EQ
	GE
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case EQ:
		return "="
	case GE:
		return ">="
	}
	return "?"
}

// Constraint is lhs (sense) rhs, with any constant of lhs folded into rhs.
type Constraint struct {
	Name  string
	Lhs   Expr
	Sense Sense
	Rhs   float64
}

// Status is the outcome of a solve.
type Status int

const (
	NotSolved Status = iota
	Optimal
	Infeasible
	Unbounded
	Failed
)

func (s Status) String() string {
	switch s {
	case NotSolved:
		return "Not Solved"
	case Optimal:
		return "Optimal"
	case Infeasible:
		return "Infeasible"
	case Unbounded:
		return "Unbounded"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Solution holds the solver output of one Problem.
type Solution struct {
	Status    Status
	Objective float64
	values    map[Var]float64
}

// NewSolution builds a Solution. Values are only meaningful for Optimal status.
func NewSolution(status Status, objective float64, values map[Var]float64) Solution {
	return Solution{Status: status, Objective: objective, values: values}
}

// Value returns the value of v, zero when v is not part of the solution.
func (s Solution) Value(v Var) float64 {
	if v == NoVar {
		return 0
	}
	return s.values[v]
}

// Optimal reports whether the solution is optimal.
func (s Solution) Optimal() bool { return s.Status == Optimal }

// Solver is the boundary to an external LP algorithm.
type Solver interface {
	Solve(context.Context, *Problem) (Solution, error)
}

// Problem is a minimization LP over a subset of a Registry's variables.
type Problem struct {
	Name        string
	Objective   Expr
	Constraints []Constraint

	reg  *Registry
	used map[Var]struct{}
}

// NewProblem returns an empty minimization problem on reg.
func NewProblem(name string, reg *Registry) *Problem {
	return &Problem{
		Name: name,
		reg:  reg,
		used: make(map[Var]struct{}),
	}
}

// Registry returns the variable registry of the problem.
func (p *Problem) Registry() *Registry { return p.reg }

// SetObjective sets the expression to minimize.
func (p *Problem) SetObjective(e Expr) {
	p.Objective = e.Clone()
	p.register(e)
}

// AddConstraint adds lhs (sense) rhs.
func (p *Problem) AddConstraint(name string, lhs Expr, sense Sense, rhs float64) {
	c := Constraint{
		Name:  name,
		Lhs:   lhs.Clone(),
		Sense: sense,
		Rhs:   rhs - lhs.Constant(),
	}
	c.Lhs.constant = 0
	p.Constraints = append(p.Constraints, c)
	p.register(lhs)
}

// AddVariable includes v in the problem even if no expression references it.
func (p *Problem) AddVariable(v Var) {
	p.used[v] = struct{}{}
}

func (p *Problem) register(e Expr) {
	for v := range e.coefs {
		p.used[v] = struct{}{}
	}
}

// Columns returns the variables of the problem in ascending order.
func (p *Problem) Columns() []Var {
	cols := make([]Var, 0, len(p.used))
	for v := range p.used {
		cols = append(cols, v)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	return cols
}

// Feasible reports whether values satisfy every constraint and bound within tol.
func (p *Problem) Feasible(s Solution, tol float64) bool {
	for _, v := range p.Columns() {
		x := s.Value(v)
		d := p.reg.Variable(v)
		if x < d.Lower-tol || x > d.Upper+tol {
			return false
		}
	}
	for _, c := range p.Constraints {
		lhs := c.Lhs.Value(s)
		switch c.Sense {
		case LE:
			if lhs > c.Rhs+tol {
				return false
			}
		case GE:
			if lhs < c.Rhs-tol {
				return false
			}
		case EQ:
			if math.Abs(lhs-c.Rhs) > tol {
				return false
			}
		}
	}
	return true
}
