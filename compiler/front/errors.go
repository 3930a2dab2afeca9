package front

import (
	"fmt"
	"strings"

	"github.com/slowlang/duck/compiler/tp"
)

type (
	// Errors is every diagnostic recorded by one generation pass.
	Errors struct {
		List []error
	}

	// PosError attaches a source offset to a diagnostic.
	PosError struct {
		Pos int
		Err error
	}

	UndefinedError struct {
		Name  string
		What  string
		Scope string
	}

	ArityError struct {
		Func      string
		Want, Got int
	}

	ArgumentTypeError struct {
		Func  string
		Index int
		Param tp.Type
		Arg   tp.Type
	}

	AssignTypeError struct {
		Name     string
		Dst, Src tp.Type
	}

	ConditionTypeError struct {
		Stmt string
		Type tp.Type
	}
)

func (e *Errors) Error() string {
	switch len(e.List) {
	case 0:
		return "no errors"
	case 1:
		return e.List[0].Error()
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%d errors:", len(e.List))

	for _, err := range e.List {
		b.WriteString("\n\t")
		b.WriteString(err.Error())
	}

	return b.String()
}

func (e *Errors) Unwrap() []error { return e.List }

func (e PosError) Error() string {
	return fmt.Sprintf("at %d: %v", e.Pos, e.Err)
}

func (e PosError) Unwrap() error { return e.Err }

func (e UndefinedError) Error() string {
	return fmt.Sprintf("%s %q not found in scope %q", e.What, e.Name, e.Scope)
}

func (e ArityError) Error() string {
	return fmt.Sprintf("call %v: want %d arguments, got %d", e.Func, e.Want, e.Got)
}

func (e ArgumentTypeError) Error() string {
	return fmt.Sprintf("call %v: argument %d: cannot pass %v as %v", e.Func, e.Index, e.Arg, e.Param)
}

func (e AssignTypeError) Error() string {
	return fmt.Sprintf("cannot assign %v to %v variable %q", e.Src, e.Dst, e.Name)
}

func (e ConditionTypeError) Error() string {
	return fmt.Sprintf("%v condition should be bool, got %v", e.Stmt, e.Type)
}
