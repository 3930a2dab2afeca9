package parse

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ast"
)

type (
	State struct {
		b []byte // all files concatenated

		files []file
	}

	file struct {
		name string
		base int
		size int
	}

	// SyntaxError is a parse error with a resolved source position.
	SyntaxError struct {
		File string
		Line int
		Col  int
		Err  error
	}

	PartialReadError struct {
		End int
	}
)

func ParseFile(ctx context.Context, name string) (*ast.Program, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return Parse(ctx, name, data)
}

func Parse(ctx context.Context, name string, text []byte) (*ast.Program, error) {
	s := New()

	s.AddFile(name, text)

	return s.Parse(ctx)
}

func New() *State {
	return &State{}
}

func (s *State) AddFile(name string, text []byte) {
	f := file{
		name: name,
		base: len(s.b),
		size: len(text),
	}

	s.b = append(s.b, text...)

	s.files = append(s.files, f)
}

func (s *State) Parse(ctx context.Context) (p *ast.Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "parse", "files", len(s.files), "size", len(s.b))
	defer tr.Finish("err", &err)

	p, i, err := s.parseProgram(ctx, 0)
	if err != nil {
		return nil, s.syntaxError(i, err)
	}

	i = skipSpaces(s.b, i)

	if i != len(s.b) {
		return p, s.syntaxError(i, PartialReadError{End: i})
	}

	tr.Printw("parsed", "program", p.ID, "vars", len(p.Vars), "funcs", len(p.Funcs), "main_stmts", len(p.Main))

	return p, nil
}

func (s *State) Text(pos, end int) []byte {
	return s.b[pos:end]
}

// Position converts a byte offset into a file name and 1-based line and column.
func (s *State) Position(pos int) (name string, line, col int) {
	var f file

	for _, x := range s.files {
		if x.base > pos {
			break
		}

		f = x
	}

	if pos > len(s.b) {
		pos = len(s.b)
	}

	b := s.b[f.base:pos]

	line = 1 + bytes.Count(b, []byte{'\n'})
	col = pos - f.base - bytes.LastIndexByte(b, '\n')

	return f.name, line, col
}

func (s *State) syntaxError(i int, err error) error {
	name, line, col := s.Position(i)

	return SyntaxError{File: name, Line: line, Col: col, Err: err}
}

func (e SyntaxError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%d:%d: %v", e.Line, e.Col, e.Err)
	}

	return fmt.Sprintf("%s:%d:%d: %v", e.File, e.Line, e.Col, e.Err)
}

func (e SyntaxError) Unwrap() error { return e.Err }

func (e PartialReadError) Error() string {
	return "unexpected text after program end"
}
