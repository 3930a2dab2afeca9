package format

import (
	"strconv"

	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/set"
)

type (
	// Listing renders a program as a readable quadruple table.
	Listing struct {
		// Names of variable addresses. Unnamed addresses are printed as numbers.
		Names map[ir.Addr]string

		// Covered marks executed instructions when not nil.
		Covered *set.Bitmap
	}
)

// Append appends the listing of p to b.
func (l Listing) Append(b []byte, p *ir.Program) []byte {
	ints := make(map[ir.Addr]int32, len(p.Ints))
	floats := make(map[ir.Addr]float64, len(p.Floats))
	strs := make(map[ir.Addr]string, len(p.Strings))
	starts := make(map[int]*ir.Func, len(p.Funcs))

	for _, c := range p.Ints {
		ints[c.Addr] = c.Value
	}

	for _, c := range p.Floats {
		floats[c.Addr] = c.Value
	}

	for _, c := range p.Strings {
		strs[c.Addr] = c.Value
	}

	for i := range p.Funcs {
		starts[int(p.Funcs[i].Start)] = &p.Funcs[i]
	}

	operand := func(b []byte, a ir.Addr) []byte {
		if a == ir.Nil {
			return append(b, '_')
		}

		if n, ok := l.Names[a]; ok {
			return append(b, n...)
		}

		if v, ok := ints[a]; ok {
			return strconv.AppendInt(b, int64(v), 10)
		}

		if v, ok := floats[a]; ok {
			return appendFloat(b, v)
		}

		if v, ok := strs[a]; ok {
			return strconv.AppendQuote(b, v)
		}

		r, ok := ir.Classify(a)
		if ok && r.Kind == ir.Temp {
			return hfmt.Appendf(b, "t%d", a)
		}

		return strconv.AppendInt(b, int64(a), 10)
	}

	for i, q := range p.Quads {
		if f, ok := starts[i]; ok {
			b = hfmt.Appendf(b, "%s:", f.Name)

			for _, a := range f.Params {
				b = append(b, ' ')
				b = operand(b, a)
			}

			b = append(b, '\n')
		}

		mark := byte(' ')
		if l.Covered != nil && l.Covered.IsSet(i) {
			mark = '*'
		}

		b = hfmt.Appendf(b, "%c%4d  %-8s", mark, i, q.Op.String())

		switch {
		case q.Op.Jump():
			if q.Op == ir.GOTOF {
				b = operand(b, q.Arg1)
				b = append(b, ' ')
			}

			b = hfmt.Appendf(b, "-> %d", q.Result)
		case q.Op.Call():
			b = hfmt.Appendf(b, "@%d", q.Arg1)

			if f, ok := starts[int(q.Arg1)]; ok {
				b = hfmt.Appendf(b, " %s", f.Name)
			}
		case q.Op == ir.PARAM:
			b = operand(b, q.Arg1)
			b = hfmt.Appendf(b, " -> #%d", q.Result)
		case q.Op == ir.ASSIGN && q.Arg1 == ir.Nil:
			b = hfmt.Appendf(b, "%d -> ", q.Arg2)
			b = operand(b, q.Result)
		case q.Op == ir.ASSIGN:
			b = operand(b, q.Arg1)
			b = append(b, " -> "...)
			b = operand(b, q.Result)
		case q.Op == ir.PRINT:
			b = operand(b, q.Arg1)
		case q.Op == ir.ENDFUNC || q.Op == ir.HALT:
		default:
			b = operand(b, q.Arg1)
			b = append(b, ' ')
			b = operand(b, q.Arg2)
			b = append(b, " -> "...)
			b = operand(b, q.Result)
		}

		b = append(b, '\n')
	}

	return b
}
