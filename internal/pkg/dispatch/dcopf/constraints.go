package dcopf

import (
	"fmt"
	"log"
	"math"

	"github.com/ohowland/cgc_opf/internal/pkg/island"
	opt "github.com/ohowland/cgc_opf/internal/pkg/optimize"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
)

// BuildConstraints emits, per island, the reference angle rows, a power
// balance row for every bus and the branch rating rows in both directions.
// Model problems that make the LP meaningless are collected as potential
// errors instead of failing.
func (b *Builder) BuildConstraints() error {
	if !b.assembled {
		return ErrBuildOrder
	}
	net := b.net

	b.calc = make([]opt.Expr, net.NBus())
	b.inject = make([]opt.Expr, net.NBus())
	b.fixed = make([]float64, net.NBus())
	b.balanceRow = make([]int, net.NBus())
	b.problems = make([]*opt.Problem, len(b.islands))
	b.potentialErrors = nil
	b.loaded = false

	for i, isl := range b.islands {
		b.checkIsland(isl)
		b.problems[i] = b.islandProblem(isl)
	}

	for _, reason := range b.potentialErrors {
		log.Printf("[DCOPF] %s: potential error: %s", net.Name, reason)
	}

	b.constrained = true
	return nil
}

func (b *Builder) islandProblem(isl island.Island) *opt.Problem {
	net := b.net
	p := opt.NewProblem(fmt.Sprintf("%s DC optimal power flow island %d", net.Name, isl.Index), b.reg)

	var obj opt.Expr
	for _, bus := range isl.Buses {
		obj.Add(b.busCost[bus], 1)
		p.AddVariable(b.theta[bus])
	}
	for _, k := range isl.Branches {
		obj.Add(b.branchCost[k], 1)
	}
	p.SetObjective(obj)

	for _, l := range isl.Ref {
		bus := isl.Global(l)
		p.AddConstraint(fmt.Sprintf("ct_slack_theta_%d", bus), opt.NewExpr(opt.Term{Var: b.theta[bus], Coef: 1}), opt.EQ, 0)
	}

	for _, l := range isl.PQPV {
		bus := isl.Global(l)
		b.balance(p, isl, bus, fmt.Sprintf("ct_node_mismatch_%d", bus))
	}
	for _, l := range isl.Ref {
		bus := isl.Global(l)
		b.balance(p, isl, bus, fmt.Sprintf("ct_slack_power_%d", bus))
	}

	for _, k := range isl.Branches {
		b.branchRating(p, k)
	}
	return p
}

// balance adds calc_i - inject_i = fixed_i. The right hand side is written
// by SetLoads.
func (b *Builder) balance(p *opt.Problem, isl island.Island, bus int, name string) {
	b.calc[bus] = b.calculatedPower(isl, bus)
	b.inject[bus] = b.injection(bus)

	lhs := b.calc[bus].Clone()
	lhs.Add(b.inject[bus], -1)
	b.balanceRow[bus] = len(p.Constraints)
	p.AddConstraint(name, lhs, opt.EQ, 0)
}

// calculatedPower is Σ B_ij θ_j over the non reference buses j of the island.
func (b *Builder) calculatedPower(isl island.Island, bus int) opt.Expr {
	var e opt.Expr
	b.conn.B.DoRowNonZero(bus, func(j int, v float64) {
		if _, ok := isl.Local(j); !ok {
			return
		}
		if b.net.Buses[j].Type == powersystem.Ref {
			return
		}
		if math.Abs(v) < b.opts.Tolerance {
			log.Printf("[DCOPF] %s: susceptance B[%d][%d] = %g is close to zero", b.net.Name, bus, j, v)
		}
		e.AddTerm(b.theta[j], v)
	})
	return e
}

// injection is the decision part of the power injected at bus.
func (b *Builder) injection(bus int) opt.Expr {
	var e opt.Expr
	for _, i := range b.conn.GeneratorsAt(bus) {
		e.AddTerm(b.genP[i], 1)
	}
	for _, i := range b.conn.BatteriesAt(bus) {
		e.AddTerm(b.batP[i], 1)
	}
	if b.opts.Mode == LoadShedding {
		for _, i := range b.conn.LoadsAt(bus) {
			e.AddTerm(b.shed[i], 1)
		}
	}
	return e
}

// branchRating bounds the flow of branch k from both ends.
func (b *Builder) branchRating(p *opt.Problem, k int) {
	br := b.net.Branches[k]
	f, t := b.conn.BranchBuses(k)
	bk := b.conn.BBranch[k]
	rate := br.Rate / b.net.Sbase

	ij := opt.NewExpr(
		opt.Term{Var: b.theta[f], Coef: bk},
		opt.Term{Var: b.theta[t], Coef: -bk},
	)
	ji := opt.NewExpr(
		opt.Term{Var: b.theta[t], Coef: bk},
		opt.Term{Var: b.theta[f], Coef: -bk},
	)
	if b.opts.Mode == OverloadSlack {
		s := b.slack[k]
		ij.AddTerm(s[0], 1)
		ij.AddTerm(s[1], -1)
		ji.AddTerm(s[2], 1)
		ji.AddTerm(s[3], -1)
	}
	p.AddConstraint(fmt.Sprintf("ct_br_flow_ij_%d", k), ij, opt.LE, rate)
	p.AddConstraint(fmt.Sprintf("ct_br_flow_ji_%d", k), ji, opt.LE, rate)
}

func (b *Builder) checkIsland(isl island.Island) {
	net := b.net
	if !isl.HasReference() {
		b.potentialErrors = append(b.potentialErrors,
			fmt.Sprintf("island %d (buses %v) has no reference bus", isl.Index, isl.Buses))
	}
	for _, l := range isl.Ref {
		bus := isl.Global(l)
		if !b.hasDispatchable(bus) {
			b.potentialErrors = append(b.potentialErrors,
				fmt.Sprintf("reference bus %d (%s) has no active dispatchable generator or battery", bus, net.Buses[bus].Name))
		}
	}
	for _, k := range isl.Branches {
		br := net.Branches[k]
		if br.Rate <= b.opts.Tolerance {
			b.potentialErrors = append(b.potentialErrors,
				fmt.Sprintf("branch %d (%s) has a rating of %g MW", k, br.Name, br.Rate))
		}
	}
}

func (b *Builder) hasDispatchable(bus int) bool {
	for _, i := range b.conn.GeneratorsAt(bus) {
		if b.genP[i] != opt.NoVar {
			return true
		}
	}
	for _, i := range b.conn.BatteriesAt(bus) {
		if b.batP[i] != opt.NoVar {
			return true
		}
	}
	return false
}

// SetLoads writes the fixed injections of time index t (loads, static and
// non dispatchable generation) into the balance rows. NoProfile selects the
// scalar device values.
func (b *Builder) SetLoads(t int) error {
	if !b.constrained {
		return ErrBuildOrder
	}
	net := b.net
	if err := net.CheckTimeIndex(t); err != nil {
		return err
	}

	for i := range b.fixed {
		b.fixed[i] = 0
	}
	for _, g := range net.Generators {
		if g.Active && !g.Dispatchable {
			b.fixed[g.Bus] += g.Power(t)
		}
	}
	for _, g := range net.Batteries {
		if g.Active && !g.Dispatchable {
			b.fixed[g.Bus] += g.Power(t)
		}
	}
	for _, s := range net.StaticGenerators {
		if s.Active {
			b.fixed[s.Bus] += s.Power(t)
		}
	}
	for _, l := range net.Loads {
		if l.Active {
			b.fixed[l.Bus] -= l.Power(t)
		}
	}

	for bus := range b.fixed {
		b.fixed[bus] /= net.Sbase
		p := b.problems[b.islandOf[bus]]
		p.Constraints[b.balanceRow[bus]].Rhs = b.fixed[bus]
	}

	b.t = t
	b.loaded = true
	return nil
}

// TimeIndex returns the time index of the loaded injections.
func (b *Builder) TimeIndex() int { return b.t }
