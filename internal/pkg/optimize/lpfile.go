package optimize

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteLP writes p in CPLEX LP text format.
func WriteLP(w io.Writer, p *Problem) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\* %s *\\\n", p.Name)
	fmt.Fprintln(bw, "Minimize")
	fmt.Fprintf(bw, " OBJ: %s\n", formatExpr(p.reg, p.Objective))

	fmt.Fprintln(bw, "Subject To")
	for i, c := range p.Constraints {
		name := c.Name
		if name == "" {
			name = "_C" + strconv.Itoa(i+1)
		}
		fmt.Fprintf(bw, " %s: %s %s %s\n", lpName(name), formatExpr(p.reg, c.Lhs), c.Sense, formatFloat(c.Rhs))
	}

	fmt.Fprintln(bw, "Bounds")
	for _, v := range p.Columns() {
		d := p.reg.Variable(v)
		name := lpName(d.Name)
		lo, hi := d.Lower, d.Upper
		switch {
		case math.IsInf(lo, -1) && math.IsInf(hi, 1):
			fmt.Fprintf(bw, " %s free\n", name)
		case lo == hi:
			fmt.Fprintf(bw, " %s = %s\n", name, formatFloat(lo))
		case math.IsInf(hi, 1):
			fmt.Fprintf(bw, " %s >= %s\n", name, formatFloat(lo))
		case math.IsInf(lo, -1):
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", name, formatFloat(hi))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatFloat(lo), name, formatFloat(hi))
		}
	}

	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func formatExpr(reg *Registry, e Expr) string {
	terms := e.Terms()
	if len(terms) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, t := range terms {
		coef := t.Coef
		switch {
		case i == 0 && coef < 0:
			sb.WriteString("- ")
			coef = -coef
		case i > 0 && coef < 0:
			sb.WriteString(" - ")
			coef = -coef
		case i > 0:
			sb.WriteString(" + ")
		}
		if coef != 1 {
			sb.WriteString(formatFloat(coef))
			sb.WriteString(" ")
		}
		sb.WriteString(lpName(reg.Variable(t.Var).Name))
	}
	return sb.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 12, 64)
}

// lpName replaces characters the LP format does not accept in names.
func lpName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ', r == '-', r == '+', r == ':', r == '*', r == '/', r == '<', r == '>', r == '=':
			return '_'
		}
		return r
	}, s)
}
