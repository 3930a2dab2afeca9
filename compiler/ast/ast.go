package ast

import "github.com/slowlang/duck/compiler/tp"

type (
	Base struct {
		Pos int
		End int
	}

	Program struct {
		Base `tlog:",embed"`

		ID    string
		Vars  []Var
		Funcs []*Func
		Main  []Stmt
	}

	Var struct {
		Base `tlog:",embed"`

		ID   string
		Type tp.Type
	}

	Func struct {
		Base `tlog:",embed"`

		ID     string
		Params []Var
		Vars   []Var
		Body   []Stmt
	}

	Stmt interface {
		Offset() int
		stmt()
	}

	Assign struct {
		Base `tlog:",embed"`

		ID   string
		Expr Expr
	}

	If struct {
		Base `tlog:",embed"`

		Cond Expr
		Then []Stmt
		Else []Stmt // nil when there is no else branch
	}

	While struct {
		Base `tlog:",embed"`

		Cond Expr
		Body []Stmt
	}

	Call struct {
		Base `tlog:",embed"`

		ID   string
		Args []Expr
	}

	// Print holds either Expr or String.
	Print struct {
		Base `tlog:",embed"`

		Expr   Expr
		String *string
	}

	Expr interface {
		Offset() int
		expr()
	}

	BinaryOp struct {
		Base `tlog:",embed"`

		Left  Expr
		Op    tp.Op
		Right Expr
	}

	Ident struct {
		Base `tlog:",embed"`

		Name string
	}

	IntLit struct {
		Base `tlog:",embed"`

		Value int32
	}

	FloatLit struct {
		Base `tlog:",embed"`

		Value float64
	}

	BoolLit struct {
		Base `tlog:",embed"`

		Value bool
	}
)

// Offset is the byte offset of the node in the source file.
func (b Base) Offset() int { return b.Pos }

func (*Assign) stmt() {}
func (*If) stmt()     {}
func (*While) stmt()  {}
func (*Call) stmt()   {}
func (*Print) stmt()  {}

func (*BinaryOp) expr() {}
func (*Ident) expr()    {}
func (*IntLit) expr()   {}
func (*FloatLit) expr() {}
func (*BoolLit) expr()  {}

// PrintString returns a Print of a string literal.
func PrintString(s string) *Print {
	return &Print{String: &s}
}
