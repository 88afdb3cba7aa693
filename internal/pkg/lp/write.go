package lp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteLP writes p in CPLEX LP format with the symbolic names given at build
// time, so the file can be handed to an external solver or read by a person.
func (p *Problem) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "\\* capacity expansion model *\\")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "min")
	fmt.Fprint(bw, "objective:")
	n := 0
	for v, c := range p.objective {
		if c == 0 {
			continue
		}
		writeTerm(bw, c, p.vars[v].Name)
		n++
	}
	if n == 0 && len(p.vars) > 0 {
		fmt.Fprint(bw, " 0 ", lpName(p.vars[0].Name))
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "s.t.")
	for _, r := range p.rows {
		fmt.Fprintf(bw, "%s:", lpName(r.Name))
		if len(r.Terms) == 0 && len(p.vars) > 0 {
			fmt.Fprint(bw, " 0 ", lpName(p.vars[0].Name))
		}
		for _, t := range r.Terms {
			writeTerm(bw, t.Coef, p.vars[t.Var].Name)
		}
		fmt.Fprintf(bw, " %s %s\n", r.Sense, num(r.RHS))
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "bounds")
	for _, v := range p.vars {
		switch {
		case v.Lower == v.Upper:
			fmt.Fprintf(bw, "   %s = %s\n", lpName(v.Name), num(v.Lower))
		case math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, "   %s <= %s <= +inf\n", num(v.Lower), lpName(v.Name))
		default:
			fmt.Fprintf(bw, "   %s <= %s <= %s\n", num(v.Lower), lpName(v.Name), num(v.Upper))
		}
	}
	fmt.Fprintln(bw, "end")

	return bw.Flush()
}

func writeTerm(w io.Writer, coef float64, name string) {
	if coef < 0 {
		fmt.Fprintf(w, "\n-%s %s", num(-coef), lpName(name))
		return
	}
	fmt.Fprintf(w, "\n+%s %s", num(coef), lpName(name))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// lpName replaces characters the LP format reserves.
func lpName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '+', ':', '<', '>', '=', '[', ']', '*', '^', '/':
			return '_'
		}
		return r
	}, s)
}
