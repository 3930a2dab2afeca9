package format

import (
	"context"
	"strconv"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/duck/compiler/ast"
)

// Format appends the canonical source text of x to b.
func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) ([]byte, error) {
	switch x := x.(type) {
	case *ast.Program:
		return formatProgram(ctx, b, x, d)
	case *ast.Func:
		return formatFunc(ctx, b, x, d)
	case ast.Stmt:
		return formatBlock(ctx, b, []ast.Stmt{x}, d)
	case ast.Expr:
		return formatExpr(ctx, b, x, 0)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatProgram(ctx context.Context, b []byte, x *ast.Program, d int) (_ []byte, err error) {
	b = app(b, d, "program %s;\n", x.ID)

	if len(x.Vars) != 0 {
		b = append(b, '\n')
		b = formatVars(b, x.Vars, d)
	}

	for _, f := range x.Funcs {
		b = append(b, '\n')

		b, err = formatFunc(ctx, b, f, d)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.ID)
		}
	}

	b = append(b, '\n')
	b = app(b, d, "main {\n")

	b, err = formatBlock(ctx, b, x.Main, d+1)
	if err != nil {
		return nil, errors.Wrap(err, "main")
	}

	b = app(b, d, "}\n")
	b = app(b, d, "end\n")

	return b, nil
}

// formatVars groups consecutive declarations of the same type on one line.
func formatVars(b []byte, vars []ast.Var, d int) []byte {
	b = app(b, d, "var\n")

	for i := 0; i < len(vars); {
		j := i + 1
		for j < len(vars) && vars[j].Type == vars[i].Type {
			j++
		}

		b = app(b, d+1, "")

		for k, v := range vars[i:j] {
			if k != 0 {
				b = append(b, ", "...)
			}

			b = append(b, v.ID...)
		}

		b = hfmt.Appendf(b, ": %v;\n", vars[i].Type)

		i = j
	}

	return b
}

func formatFunc(ctx context.Context, b []byte, x *ast.Func, d int) ([]byte, error) {
	b = app(b, d, "void %s(", x.ID)

	for i, p := range x.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "%s: %v", p.ID, p.Type)
	}

	b = append(b, ") [\n"...)

	if len(x.Vars) != 0 {
		b = formatVars(b, x.Vars, d+1)
	}

	b = app(b, d+1, "{\n")

	b, err := formatBlock(ctx, b, x.Body, d+2)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	b = app(b, d+1, "}\n")
	b = app(b, d, "];\n")

	return b, nil
}

func formatBlock(ctx context.Context, b []byte, l []ast.Stmt, d int) (_ []byte, err error) {
	for _, s := range l {
		switch s := s.(type) {
		case *ast.Assign:
			b = app(b, d, "%s = ", s.ID)

			b, err = formatExpr(ctx, b, s.Expr, 0)
			if err != nil {
				return nil, errors.Wrap(err, "assign %v", s.ID)
			}

			b = append(b, ";\n"...)
		case *ast.If:
			b = app(b, d, "if (")

			b, err = formatExpr(ctx, b, s.Cond, 0)
			if err != nil {
				return nil, errors.Wrap(err, "cond")
			}

			b = append(b, ") {\n"...)

			b, err = formatBlock(ctx, b, s.Then, d+1)
			if err != nil {
				return nil, errors.Wrap(err, "then block")
			}

			if s.Else != nil {
				b = app(b, d, "} else {\n")

				b, err = formatBlock(ctx, b, s.Else, d+1)
				if err != nil {
					return nil, errors.Wrap(err, "else block")
				}
			}

			b = app(b, d, "};\n")
		case *ast.While:
			b = app(b, d, "while (")

			b, err = formatExpr(ctx, b, s.Cond, 0)
			if err != nil {
				return nil, errors.Wrap(err, "cond")
			}

			b = append(b, ") do {\n"...)

			b, err = formatBlock(ctx, b, s.Body, d+1)
			if err != nil {
				return nil, errors.Wrap(err, "loop body")
			}

			b = app(b, d, "};\n")
		case *ast.Call:
			b = app(b, d, "%s(", s.ID)

			for i, a := range s.Args {
				if i != 0 {
					b = append(b, ", "...)
				}

				b, err = formatExpr(ctx, b, a, 0)
				if err != nil {
					return nil, errors.Wrap(err, "arg %d", i)
				}
			}

			b = append(b, ");\n"...)
		case *ast.Print:
			b = app(b, d, "print(")

			if s.String != nil {
				b = strconv.AppendQuote(b, *s.String)
			} else {
				b, err = formatExpr(ctx, b, s.Expr, 0)
				if err != nil {
					return nil, errors.Wrap(err, "print")
				}
			}

			b = append(b, ");\n"...)
		default:
			return nil, errors.New("unsupported stmt: %T", s)
		}
	}

	return b, nil
}

// formatExpr adds parentheses only where the tree would not survive
// reparsing without them. prec is the binding strength of the parent slot.
func formatExpr(ctx context.Context, b []byte, x ast.Expr, prec int) (_ []byte, err error) {
	switch x := x.(type) {
	case *ast.Ident:
		b = append(b, x.Name...)
	case *ast.IntLit:
		b = strconv.AppendInt(b, int64(x.Value), 10)
	case *ast.FloatLit:
		b = appendFloat(b, x.Value)
	case *ast.BoolLit:
		b = strconv.AppendBool(b, x.Value)
	case *ast.BinaryOp:
		p := x.Op.Prec()
		paren := p < prec

		if paren {
			b = append(b, '(')
		}

		lp := p
		if x.Op.Cmp() {
			lp++ // comparisons do not chain
		}

		b, err = formatExpr(ctx, b, x.Left, lp)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}

		b = hfmt.Appendf(b, " %v ", x.Op)

		// operators are left associative so an equal tier on the right needs parens
		b, err = formatExpr(ctx, b, x.Right, p+1)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}

		if paren {
			b = append(b, ')')
		}
	default:
		return nil, errors.New("unsupported expr: %T", x)
	}

	return b, nil
}

// appendFloat keeps a decimal point so the literal reads back as a float.
func appendFloat(b []byte, v float64) []byte {
	st := len(b)
	b = strconv.AppendFloat(b, v, 'f', -1, 64)

	if !strings.ContainsAny(string(b[st:]), ".") {
		b = append(b, ".0"...)
	}

	return b
}

func app(b []byte, d int, f string, args ...any) []byte {
	for i := 0; i < d; i++ {
		b = append(b, '\t')
	}

	return hfmt.Appendf(b, f, args...)
}
