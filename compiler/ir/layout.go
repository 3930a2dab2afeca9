package ir

import (
	"fmt"

	"github.com/slowlang/duck/compiler/tp"
)

type (
	// Kind is the purpose of a segment.
	Kind int8

	// Segment identifies one range of the address space.
	Segment struct {
		Type tp.Type
		Kind Kind
	}

	// Range is a half-open address interval [Base, End).
	Range struct {
		Segment
		Base Addr
		End  Addr
	}
)

const (
	Var Kind = iota
	Const
	Temp
)

// Str is the segment of print-only string literals.
// Strings are not a value type so it has no tp.Type.
var Str = Segment{Type: tp.Invalid, Kind: Const}

// Layout is the fixed partition of the address space, sorted by Base.
var Layout = [...]Range{
	{Segment{tp.Int, Var}, 1000, 2000},
	{Segment{tp.Float, Var}, 2000, 3000},
	{Segment{tp.Bool, Var}, 3000, 4000},
	{Segment{tp.Int, Const}, 4000, 4500},
	{Segment{tp.Float, Const}, 4500, 4800},
	{Segment{tp.Bool, Const}, 4800, 4900},
	{Str, 4900, 5000},
	{Segment{tp.Int, Temp}, 5000, 6000},
	{Segment{tp.Float, Temp}, 6000, 7000},
	{Segment{tp.Bool, Temp}, 7000, 8000},
}

func (k Kind) String() string {
	switch k {
	case Var:
		return "var"
	case Const:
		return "const"
	case Temp:
		return "temp"
	default:
		return fmt.Sprintf("kind(%d)", int8(k))
	}
}

func (s Segment) String() string {
	if s == Str {
		return "string const"
	}

	return s.Type.String() + " " + s.Kind.String()
}

// Classify returns the range a belongs to.
func Classify(a Addr) (Range, bool) {
	if a < Layout[0].Base || a >= Layout[len(Layout)-1].End {
		return Range{}, false
	}

	for _, r := range Layout {
		if a < r.End {
			return r, true
		}
	}

	return Range{}, false
}

// RangeOf returns the range of the segment.
func RangeOf(s Segment) Range {
	for _, r := range Layout {
		if r.Segment == s {
			return r
		}
	}

	panic(s)
}

func (r Range) Contains(a Addr) bool {
	return a >= r.Base && a < r.End
}

func (r Range) Size() int {
	return int(r.End - r.Base)
}
