/*
simplex.go Solver backed by the gonum simplex implementation. Problems are
translated to the standard form
	minimize cᵀy  s.t.  A·y = b,  y >= 0
by shifting every column onto its lower bound and adding a slack column per
upper bound and per inequality row. Problems with a column unbounded below
go through lp.Convert instead.
*/

package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"

	opt "github.com/ohowland/cgc_opf/internal/pkg/optimize"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultTolerance is the reduced cost tolerance handed to the simplex.
const DefaultTolerance = 1e-10

// Solver solves problems with lp.Simplex.
type Solver struct {
	Tolerance float64
}

// New returns a Solver with the given tolerance, or DefaultTolerance when tol <= 0.
func New(tol float64) Solver {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return Solver{Tolerance: tol}
}

type row struct {
	coefs map[int]float64
	rhs   float64
}

// Solve implements optimize.Solver.
func (s Solver) Solve(ctx context.Context, p *opt.Problem) (opt.Solution, error) {
	if err := ctx.Err(); err != nil {
		return opt.NewSolution(opt.NotSolved, 0, nil), err
	}

	reg := p.Registry()
	cols := p.Columns()
	col := make(map[opt.Var]int, len(cols))
	for i, v := range cols {
		col[v] = i
	}
	n := len(cols)

	c := make([]float64, n)
	for _, t := range p.Objective.Terms() {
		c[col[t.Var]] += t.Coef
	}

	var rows []row
	var senses []opt.Sense
	for _, cn := range p.Constraints {
		r := row{coefs: make(map[int]float64), rhs: cn.Rhs}
		for _, t := range cn.Lhs.Terms() {
			if t.Coef != 0 {
				r.coefs[col[t.Var]] += t.Coef
			}
		}
		for j, v := range r.coefs {
			if v == 0 {
				delete(r.coefs, j)
			}
		}
		if len(r.coefs) == 0 {
			if !trivial(cn.Sense, cn.Rhs, s.tol()) {
				return opt.NewSolution(opt.Infeasible, 0, nil), nil
			}
			continue
		}
		rows = append(rows, r)
		senses = append(senses, cn.Sense)
	}

	if n == 0 {
		return opt.NewSolution(opt.Optimal, p.Objective.Constant(), map[opt.Var]float64{}), nil
	}

	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, v := range cols {
		d := reg.Variable(v)
		lower[i], upper[i] = d.Lower, d.Upper
	}

	var (
		x   []float64
		err error
	)
	if free(lower) {
		x, err = s.general(c, lower, upper, rows, senses)
	} else {
		x, err = s.standard(c, lower, upper, rows, senses)
	}
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return opt.NewSolution(opt.Infeasible, 0, nil), nil
	case errors.Is(err, lp.ErrUnbounded):
		return opt.NewSolution(opt.Unbounded, 0, nil), nil
	case err != nil:
		return opt.NewSolution(opt.Failed, 0, nil), fmt.Errorf("simplex %s: %w", p.Name, err)
	}

	values := make(map[opt.Var]float64, n)
	objective := p.Objective.Constant()
	for i, v := range cols {
		values[v] = x[i]
		objective += c[i] * x[i]
	}
	return opt.NewSolution(opt.Optimal, objective, values), nil
}

func free(lower []float64) bool {
	for _, l := range lower {
		if math.IsInf(l, -1) {
			return true
		}
	}
	return false
}

// standard solves with every column shifted onto its lower bound,
// x = lower + y with y >= 0. Finite upper bounds and inequality rows get a
// slack column each and rows are signed so that b >= 0.
func (s Solver) standard(c, lower, upper []float64, rows []row, senses []opt.Sense) ([]float64, error) {
	n := len(c)

	// columns without any row entry sit on their lower bound
	used := make([]bool, n)
	for j := range upper {
		used[j] = !math.IsInf(upper[j], 1)
	}
	for _, r := range rows {
		for j := range r.coefs {
			used[j] = true
		}
	}
	index := make([]int, n)
	width := 0
	for j := range used {
		index[j] = -1
		if used[j] {
			index[j] = width
			width++
		} else if c[j] < 0 {
			return nil, lp.ErrUnbounded
		}
	}

	type stdRow struct {
		coefs map[int]float64
		rhs   float64
	}
	var std []stdRow
	for j := range upper {
		if math.IsInf(upper[j], 1) {
			continue
		}
		std = append(std, stdRow{
			coefs: map[int]float64{index[j]: 1, width: 1},
			rhs:   upper[j] - lower[j],
		})
		width++
	}
	for i, r := range rows {
		sr := stdRow{coefs: make(map[int]float64), rhs: r.rhs}
		for j, v := range r.coefs {
			sr.coefs[index[j]] = v
			sr.rhs -= v * lower[j]
		}
		switch senses[i] {
		case opt.LE:
			sr.coefs[width] = 1
			width++
		case opt.GE:
			sr.coefs[width] = -1
			width++
		}
		std = append(std, sr)
	}

	x := append([]float64(nil), lower...)
	if len(std) == 0 {
		return x, nil
	}

	a := mat.NewDense(len(std), width, nil)
	b := make([]float64, len(std))
	for i, sr := range std {
		sign := 1.0
		if sr.rhs < 0 {
			sign = -1
		}
		for j, v := range sr.coefs {
			a.Set(i, j, sign*v)
		}
		b[i] = sign * sr.rhs
	}
	cStd := make([]float64, width)
	for j, k := range index {
		if k >= 0 {
			cStd[k] = c[j]
		}
	}

	_, y, err := lp.Simplex(cStd, a, b, s.tol(), nil)
	if err != nil {
		return nil, err
	}
	for j, k := range index {
		if k >= 0 {
			x[j] += y[k]
		}
	}
	return x, nil
}

// general hands the bounds to lp.Convert as rows of G. Convert splits every
// column into x⁺ - x⁻, so it is only used when some column has no lower bound.
func (s Solver) general(c, lower, upper []float64, rows []row, senses []opt.Sense) ([]float64, error) {
	n := len(c)
	var ineq, eq []row
	for j := range c {
		if !math.IsInf(upper[j], 1) {
			ineq = append(ineq, row{map[int]float64{j: 1}, upper[j]})
		}
		if !math.IsInf(lower[j], -1) {
			ineq = append(ineq, row{map[int]float64{j: -1}, -lower[j]})
		}
	}
	for i, r := range rows {
		switch senses[i] {
		case opt.LE:
			ineq = append(ineq, r)
		case opt.GE:
			neg := row{coefs: make(map[int]float64, len(r.coefs)), rhs: -r.rhs}
			for j, v := range r.coefs {
				neg.coefs[j] = -v
			}
			ineq = append(ineq, neg)
		case opt.EQ:
			eq = append(eq, r)
		}
	}

	var g, a mat.Matrix
	var h, b []float64
	if len(ineq) > 0 {
		g, h = dense(ineq, n)
	}
	if len(eq) > 0 {
		a, b = dense(eq, n)
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, xStd, err := lp.Simplex(cStd, aStd, bStd, s.tol(), nil)
	if err != nil {
		return nil, err
	}
	// x = x⁺ - x⁻, followed by the slack of each inequality
	x := make([]float64, n)
	for j := range x {
		x[j] = xStd[j] - xStd[n+j]
	}
	return x, nil
}

func (s Solver) tol() float64 {
	if s.Tolerance <= 0 {
		return DefaultTolerance
	}
	return s.Tolerance
}

func dense(rows []row, n int) (*mat.Dense, []float64) {
	m := mat.NewDense(len(rows), n, nil)
	rhs := make([]float64, len(rows))
	for i, r := range rows {
		for j, v := range r.coefs {
			m.Set(i, j, v)
		}
		rhs[i] = r.rhs
	}
	return m, rhs
}

// trivial reports whether 0 (sense) rhs holds.
func trivial(sense opt.Sense, rhs, tol float64) bool {
	switch sense {
	case opt.LE:
		return rhs >= -tol
	case opt.GE:
		return rhs <= tol
	}
	return math.Abs(rhs) <= tol
}
