package tp

import "fmt"

type (
	// Type is a value type of the language.
	// The zero value is Invalid so an unset slot can be told from a typed one.
	Type int8

	// Op is a binary operator.
	Op int8

	TypeError struct {
		Left, Right Type
		Op          Op
	}
)

const (
	Invalid Type = iota
	Int
	Float
	Bool
)

const (
	_ Op = iota
	Add
	Sub
	Mul
	Div
	Gt
	Lt
	Eq
	Neq
)

// Precedence tiers. Higher binds tighter.
const (
	PrecCmp = 1 + iota
	PrecAdd
	PrecMul
)

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("type(%d)", int8(t))
	}
}

// Numeric reports whether t takes part in arithmetic promotion.
func (t Type) Numeric() bool {
	return t == Int || t == Float
}

func ParseType(s string) (Type, bool) {
	switch s {
	case "int":
		return Int, true
	case "float":
		return Float, true
	case "bool":
		return Bool, true
	}

	return Invalid, false
}

func (op Op) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Gt:
		return ">"
	case Lt:
		return "<"
	case Eq:
		return "=="
	case Neq:
		return "!="
	default:
		return fmt.Sprintf("op(%d)", int8(op))
	}
}

func ParseOp(s string) (Op, bool) {
	for op := Add; op <= Neq; op++ {
		if op.String() == s {
			return op, true
		}
	}

	return 0, false
}

func (op Op) Arith() bool {
	return op >= Add && op <= Div
}

func (op Op) Cmp() bool {
	return op >= Gt && op <= Neq
}

func (op Op) Prec() int {
	switch {
	case op == Mul || op == Div:
		return PrecMul
	case op == Add || op == Sub:
		return PrecAdd
	case op.Cmp():
		return PrecCmp
	default:
		return 0
	}
}

// Classify returns the result type of l op r.
func Classify(l, r Type, op Op) (Type, error) {
	switch {
	case op.Arith():
		switch {
		case l == Int && r == Int:
			return Int, nil
		case l.Numeric() && r.Numeric():
			return Float, nil
		case l == Bool && r == Bool:
			return Int, nil
		}
	case op.Cmp():
		switch {
		case l.Numeric() && r.Numeric():
			return Bool, nil
		case l == Bool && r == Bool && (op == Eq || op == Neq):
			return Bool, nil
		}
	}

	return Invalid, TypeError{Left: l, Right: r, Op: op}
}

// Assignable reports whether a value of type src may be stored into dst.
// Only identical types and int to float widening are allowed.
func Assignable(dst, src Type) bool {
	return dst == src || dst == Float && src == Int
}

func (e TypeError) Error() string {
	return fmt.Sprintf("type mismatch: %v and %v cannot be used with %v", e.Left, e.Right, e.Op)
}
