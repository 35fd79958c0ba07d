package optimize

import "sort"

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression Σ coef·var + constant. The zero value is an
// empty expression ready to use.
type Expr struct {
	coefs    map[Var]float64
	constant float64
}

// NewExpr returns an expression made of the given terms.
func NewExpr(terms ...Term) Expr {
	var e Expr
	for _, t := range terms {
		e.AddTerm(t.Var, t.Coef)
	}
	return e
}

// AddTerm adds coef·v to the expression.
func (e *Expr) AddTerm(v Var, coef float64) {
	if v == NoVar {
		return
	}
	if e.coefs == nil {
		e.coefs = make(map[Var]float64)
	}
	e.coefs[v] += coef
}

// AddConstant adds c to the expression.
func (e *Expr) AddConstant(c float64) {
	e.constant += c
}

// Add adds scale·other to the expression.
func (e *Expr) Add(other Expr, scale float64) {
	for v, c := range other.coefs {
		e.AddTerm(v, scale*c)
	}
	e.constant += scale * other.constant
}

// Constant returns the constant part.
func (e Expr) Constant() float64 { return e.constant }

// Len returns the number of variables referenced.
func (e Expr) Len() int { return len(e.coefs) }

// Empty reports whether the expression references no variable.
func (e Expr) Empty() bool { return len(e.coefs) == 0 }

// Coef returns the coefficient of v.
func (e Expr) Coef(v Var) float64 { return e.coefs[v] }

// Terms returns the terms in ascending variable order.
func (e Expr) Terms() []Term {
	terms := make([]Term, 0, len(e.coefs))
	for v, c := range e.coefs {
		terms = append(terms, Term{Var: v, Coef: c})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Var < terms[j].Var })
	return terms
}

// Clone returns a deep copy.
func (e Expr) Clone() Expr {
	c := Expr{constant: e.constant}
	if e.coefs != nil {
		c.coefs = make(map[Var]float64, len(e.coefs))
		for v, coef := range e.coefs {
			c.coefs[v] = coef
		}
	}
	return c
}

// Value evaluates the expression on a solution.
func (e Expr) Value(s Solution) float64 {
	sum := e.constant
	for _, t := range e.Terms() {
		sum += t.Coef * s.Value(t.Var)
	}
	return sum
}
