package compiler

import (
	"context"
	"fmt"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ast"
	"github.com/slowlang/duck/compiler/dir"
	"github.com/slowlang/duck/compiler/front"
	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/parse"
)

type (
	// Unit is everything known about one compiled source file.
	Unit struct {
		Name string

		Source *parse.State

		Tree    *ast.Program
		Dir     *dir.Directory
		Program *ir.Program

		// Warnings do not fail the compilation.
		Warnings []error
	}
)

func CompileFile(ctx context.Context, name string) (u *Unit, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text)
}

// Compile runs the whole pipeline on text.
// If generation fails the returned Unit still holds the partial program.
func Compile(ctx context.Context, name string, text []byte) (u *Unit, err error) {
	u = &Unit{Name: name}

	u.Source = parse.New()
	u.Source.AddFile(name, text)

	u.Tree, err = u.Source.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	u.Dir, err = dir.Build(ctx, u.Tree)
	if err != nil {
		return nil, errors.Wrap(err, "build directory")
	}

	g := front.New(u.Dir)

	u.Program, err = g.Generate(ctx, u.Tree)
	u.Warnings = g.Warnings()

	if err != nil {
		return u, errors.Wrap(err, "generate")
	}

	return u, nil
}

// Describe prefixes a generator diagnostic with its source position.
func (u *Unit) Describe(err error) string {
	var pe front.PosError
	if u.Source == nil || !errors.As(err, &pe) {
		return err.Error()
	}

	name, line, col := u.Source.Position(pe.Pos)

	return fmt.Sprintf("%s:%d:%d: %v", name, line, col, pe.Err)
}
