package dcopf

import (
	"fmt"
	"math"

	opt "github.com/ohowland/cgc_opf/internal/pkg/optimize"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
)

// DeclareVariables creates the decision variables of the whole network:
// an angle per bus, a power per active dispatchable generator and battery,
// and the relaxation of the selected mode (a shed per active load, or four
// slacks per active branch). Calling it again starts a fresh variable table
// and invalidates the objective and constraints.
func (b *Builder) DeclareVariables() {
	net := b.net
	b.reg = opt.NewRegistry()
	b.assembled, b.constrained, b.loaded = false, false, false

	b.theta = make([]opt.Var, net.NBus())
	for i := range net.Buses {
		b.theta[i] = b.reg.New(fmt.Sprintf("Theta_%d", i), -b.opts.AngleBound, b.opts.AngleBound)
	}

	b.genP = b.powerVars("GEN", net.Generators)
	b.batP = b.powerVars("BAT", net.Batteries)

	b.shed = nil
	b.slack = nil
	switch b.opts.Mode {
	case LoadShedding:
		b.shed = make([]opt.Var, len(net.Loads))
		for i, l := range net.Loads {
			b.shed[i] = opt.NoVar
			if l.Active {
				b.shed[i] = b.reg.New(fmt.Sprintf("LoadShed_%s_%d", l.Name, i), 0, math.Inf(1))
			}
		}
	case OverloadSlack:
		b.slack = make([][4]opt.Var, net.NBranch())
		for k, br := range net.Branches {
			b.slack[k] = [4]opt.Var{opt.NoVar, opt.NoVar, opt.NoVar, opt.NoVar}
			if !br.Active {
				continue
			}
			for s, suffix := range []string{"ij_p", "ij_n", "ji_p", "ji_n"} {
				b.slack[k][s] = b.reg.New(fmt.Sprintf("LoadingSlack_%s_%d", suffix, k), 0, math.Inf(1))
			}
		}
	}

	b.declared = true
}

func (b *Builder) powerVars(prefix string, gens []powersystem.Generator) []opt.Var {
	vars := make([]opt.Var, len(gens))
	for i, g := range gens {
		vars[i] = opt.NoVar
		if g.Active && g.Dispatchable {
			vars[i] = b.reg.New(fmt.Sprintf("%s_%s_%d_P", prefix, g.Name, i),
				g.Pmin/b.net.Sbase, g.Pmax/b.net.Sbase)
		}
	}
	return vars
}

// AssembleObjective builds the cost terms: generation and battery cost plus
// the penalty of the relaxation variables. Terms are kept per bus and per
// branch so each island picks up its own part.
func (b *Builder) AssembleObjective() error {
	if !b.declared {
		return ErrBuildOrder
	}
	net := b.net

	b.busCost = make([]opt.Expr, net.NBus())
	for i, g := range net.Generators {
		b.busCost[g.Bus].AddTerm(b.genP[i], g.Cost)
	}
	for i, g := range net.Batteries {
		b.busCost[g.Bus].AddTerm(b.batP[i], g.Cost)
	}

	b.branchCost = make([]opt.Expr, net.NBranch())
	switch b.opts.Mode {
	case LoadShedding:
		for i, l := range net.Loads {
			b.busCost[l.Bus].AddTerm(b.shed[i], b.opts.Penalty)
		}
	case OverloadSlack:
		for k := range net.Branches {
			for _, s := range b.slack[k] {
				b.branchCost[k].AddTerm(s, b.opts.Penalty)
			}
		}
	}

	b.assembled = true
	return nil
}

// Objective returns the full network objective.
func (b *Builder) Objective() opt.Expr {
	var obj opt.Expr
	for _, e := range b.busCost {
		obj.Add(e, 1)
	}
	for _, e := range b.branchCost {
		obj.Add(e, 1)
	}
	return obj
}
