package ir

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Addr is a memory address in the flat address space. Nil means unused.
	Addr int32

	// OpCode values are the wire codes of the object format.
	OpCode int32

	Quad struct {
		Op     OpCode `msgpack:"o"`
		Arg1   Addr   `msgpack:"a"`
		Arg2   Addr   `msgpack:"b"`
		Result Addr   `msgpack:"r"`
	}
)

const Nil Addr = -1

const (
	ASSIGN  OpCode = 1
	ADD     OpCode = 4
	SUB     OpCode = 5
	MULT    OpCode = 6
	DIV     OpCode = 7
	GT      OpCode = 8
	LT      OpCode = 9
	EQ      OpCode = 10
	NEQ     OpCode = 11
	PRINT   OpCode = 20
	GOTO    OpCode = 30
	GOTOF   OpCode = 31
	ERA     OpCode = 40
	PARAM   OpCode = 41
	GOSUB   OpCode = 42
	ENDFUNC OpCode = 43
	HALT    OpCode = 50
)

var opNames = map[OpCode]string{
	ASSIGN:  "ASSIGN",
	ADD:     "ADD",
	SUB:     "SUB",
	MULT:    "MULT",
	DIV:     "DIV",
	GT:      "GT",
	LT:      "LT",
	EQ:      "EQ",
	NEQ:     "NEQ",
	PRINT:   "PRINT",
	GOTO:    "GOTO",
	GOTOF:   "GOTOF",
	ERA:     "ERA",
	PARAM:   "PARAM",
	GOSUB:   "GOSUB",
	ENDFUNC: "ENDFUNC",
	HALT:    "HALT",
}

func Q(op OpCode, a, b, r Addr) Quad {
	return Quad{Op: op, Arg1: a, Arg2: b, Result: r}
}

func (op OpCode) Valid() bool {
	_, ok := opNames[op]
	return ok
}

func (op OpCode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}

	return fmt.Sprintf("OP(%d)", int32(op))
}

// Jump reports whether Result holds an instruction index rather than an address.
func (op OpCode) Jump() bool {
	return op == GOTO || op == GOTOF
}

// Call reports whether Arg1 holds a procedure start index rather than an address.
func (op OpCode) Call() bool {
	return op == ERA || op == GOSUB
}

// Operands returns the fields of q that hold memory addresses.
// Jump targets, call targets, parameter indexes and literal payloads are skipped.
func (q Quad) Operands() (l []Addr) {
	switch q.Op {
	case GOTO, ERA, GOSUB, ENDFUNC, HALT:
		return nil
	case GOTOF, PRINT, PARAM:
		return []Addr{q.Arg1}
	case ASSIGN:
		if q.Arg1 == Nil {
			return []Addr{q.Result}
		}

		return []Addr{q.Arg1, q.Result}
	default:
		return []Addr{q.Arg1, q.Arg2, q.Result}
	}
}

func (q Quad) String() string {
	return fmt.Sprintf("(%v, %d, %d, %d)", q.Op, q.Arg1, q.Arg2, q.Result)
}

func (q Quad) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 4)
	b = e.AppendString(b, "op")
	b = e.AppendString(b, q.Op.String())
	b = e.AppendKeyInt64(b, "a1", int64(q.Arg1))
	b = e.AppendKeyInt64(b, "a2", int64(q.Arg2))
	b = e.AppendKeyInt64(b, "res", int64(q.Result))

	return b
}
