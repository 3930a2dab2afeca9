package vm

import (
	"math"
	"strconv"

	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/tp"
)

type (
	// Value is one memory cell. Type selects which field is meaningful.
	Value struct {
		Type tp.Type
		I    int32
		F    float64
		B    bool
	}
)

func Int(v int32) Value     { return Value{Type: tp.Int, I: v} }
func Float(v float64) Value { return Value{Type: tp.Float, F: v} }
func Bool(v bool) Value     { return Value{Type: tp.Bool, B: v} }

// int returns v as an integer, counting bools as 0 and 1.
func (v Value) int() int32 {
	switch v.Type {
	case tp.Int:
		return v.I
	case tp.Bool:
		if v.B {
			return 1
		}

		return 0
	default:
		panic(v.Type)
	}
}

func (v Value) float() float64 {
	switch v.Type {
	case tp.Float:
		return v.F
	case tp.Int, tp.Bool:
		return float64(v.int())
	default:
		panic(v.Type)
	}
}

func (v Value) String() string {
	switch v.Type {
	case tp.Int:
		return strconv.FormatInt(int64(v.I), 10)
	case tp.Float:
		return strconv.FormatFloat(v.F, 'f', -1, 64)
	case tp.Bool:
		return strconv.FormatBool(v.B)
	default:
		return "<invalid>"
	}
}

// convert coerces v for storing into a cell of type t.
// Int widens to Float. Int and Bool convert to each other as 0/1.
func convert(v Value, t tp.Type) (Value, bool) {
	switch {
	case v.Type == t:
		return v, true
	case t == tp.Float && v.Type == tp.Int:
		return Float(float64(v.I)), true
	case t == tp.Int && v.Type == tp.Bool:
		return Int(v.int()), true
	case t == tp.Bool && v.Type == tp.Int:
		return Bool(v.I != 0), true
	}

	return Value{}, false
}

func arith(op ir.OpCode, l, r Value) (Value, string) {
	if l.Type == tp.Float || r.Type == tp.Float {
		a, b := l.float(), r.float()

		switch op {
		case ir.ADD:
			return Float(a + b), ""
		case ir.SUB:
			return Float(a - b), ""
		case ir.MULT:
			return Float(a * b), ""
		case ir.DIV:
			if b == 0 {
				return Value{}, "division by zero"
			}

			return Float(a / b), ""
		}

		return Value{}, "not an arithmetic operation"
	}

	a, b := l.int(), r.int()

	switch op {
	case ir.ADD:
		return Int(a + b), ""
	case ir.SUB:
		return Int(a - b), ""
	case ir.MULT:
		return Int(a * b), ""
	case ir.DIV:
		if b == 0 {
			return Value{}, "division by zero"
		}

		if a == math.MinInt32 && b == -1 {
			return Int(a), ""
		}

		return Int(a / b), ""
	}

	return Value{}, "not an arithmetic operation"
}

func compare(op ir.OpCode, l, r Value) (Value, string) {
	if (l.Type == tp.Bool || r.Type == tp.Bool) && (op == ir.GT || op == ir.LT) {
		return Value{}, "ordering comparison of " + l.Type.String() + " and " + r.Type.String()
	}

	var c int

	if l.Type == tp.Float || r.Type == tp.Float {
		a, b := l.float(), r.float()

		if math.IsNaN(a) || math.IsNaN(b) {
			return Bool(op == ir.NEQ), ""
		}

		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	} else {
		a, b := l.int(), r.int()

		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	}

	switch op {
	case ir.GT:
		return Bool(c > 0), ""
	case ir.LT:
		return Bool(c < 0), ""
	case ir.EQ:
		return Bool(c == 0), ""
	case ir.NEQ:
		return Bool(c != 0), ""
	}

	return Value{}, "not a comparison"
}
