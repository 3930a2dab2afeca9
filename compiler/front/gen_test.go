package front

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/duck/compiler/ast"
	"github.com/slowlang/duck/compiler/dir"
	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/tp"
)

func id(n string) *ast.Ident      { return &ast.Ident{Name: n} }
func il(v int32) *ast.IntLit      { return &ast.IntLit{Value: v} }
func fl(v float64) *ast.FloatLit  { return &ast.FloatLit{Value: v} }
func bl(v bool) *ast.BoolLit      { return &ast.BoolLit{Value: v} }
func vr(n string, t tp.Type) ast.Var { return ast.Var{ID: n, Type: t} }

func bin(l ast.Expr, op tp.Op, r ast.Expr) *ast.BinaryOp {
	return &ast.BinaryOp{Left: l, Op: op, Right: r}
}

func set(n string, e ast.Expr) *ast.Assign {
	return &ast.Assign{ID: n, Expr: e}
}

func call(n string, args ...ast.Expr) *ast.Call {
	return &ast.Call{ID: n, Args: args}
}

func gen(t *testing.T, prog *ast.Program) (*ir.Program, *Generator, error) {
	t.Helper()

	d, err := dir.Build(context.Background(), prog)
	require.NoError(t, err)

	g := New(d)
	p, err := g.Generate(context.Background(), prog)

	return p, g, err
}

func q(op ir.OpCode, a, b, r ir.Addr) ir.Quad { return ir.Q(op, a, b, r) }

const n = ir.Nil

func TestStraightLine(t *testing.T) {
	prog := &ast.Program{
		ID:   "p",
		Vars: []ast.Var{vr("x", tp.Int), vr("y", tp.Int)},
		Main: []ast.Stmt{
			set("x", bin(il(1), tp.Add, bin(il(2), tp.Mul, il(3)))),
			set("y", bin(id("x"), tp.Sub, il(4))),
			&ast.Print{Expr: id("y")},
		},
	}

	p, _, err := gen(t, prog)
	require.NoError(t, err)

	assert.Equal(t, []ir.Quad{
		q(ir.GOTO, n, n, 1),
		q(ir.MULT, 4001, 4002, 5000),
		q(ir.ADD, 4000, 5000, 5001),
		q(ir.ASSIGN, 5001, n, 1000),
		q(ir.SUB, 1000, 4003, 5002),
		q(ir.ASSIGN, 5002, n, 1001),
		q(ir.PRINT, 1001, n, n),
		q(ir.HALT, n, n, n),
	}, p.Quads)

	// 3 operators + 2 assignments + 1 print, plus the entry jump and HALT
	assert.Len(t, p.Quads, 3+2+1+2)

	assert.Equal(t, []ir.IntConst{{Value: 1, Addr: 4000}, {Value: 2, Addr: 4001}, {Value: 3, Addr: 4002}, {Value: 4, Addr: 4003}}, p.Ints)
	assert.Equal(t, []ir.Func{{Name: dir.Main, Start: 1}}, p.Funcs)
}

func TestPrecedence(t *testing.T) {
	for _, tc := range []struct {
		name string
		e    ast.Expr
		exp  []ir.Quad
	}{
		{"left_assoc", bin(bin(il(10), tp.Sub, il(4)), tp.Sub, il(3)), []ir.Quad{
			q(ir.SUB, 4000, 4001, 5000),
			q(ir.SUB, 5000, 4002, 5001),
		}},
		{"right_group", bin(il(10), tp.Sub, bin(il(4), tp.Sub, il(3))), []ir.Quad{
			q(ir.SUB, 4001, 4002, 5000),
			q(ir.SUB, 4000, 5000, 5001),
		}},
		{"low_left_group", bin(bin(il(10), tp.Add, il(4)), tp.Mul, il(3)), []ir.Quad{
			q(ir.ADD, 4000, 4001, 5000),
			q(ir.MULT, 5000, 4002, 5001),
		}},
		{"mul_chain", bin(bin(bin(il(10), tp.Mul, il(4)), tp.Mul, il(3)), tp.Add, bin(il(2), tp.Mul, il(1))), []ir.Quad{
			q(ir.MULT, 4000, 4001, 5000),
			q(ir.MULT, 5000, 4002, 5001),
			q(ir.MULT, 4003, 4004, 5002),
			q(ir.ADD, 5001, 5002, 5003),
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prog := &ast.Program{
				ID:   "p",
				Vars: []ast.Var{vr("x", tp.Int)},
				Main: []ast.Stmt{set("x", tc.e)},
			}

			p, _, err := gen(t, prog)
			require.NoError(t, err)

			exp := append([]ir.Quad{q(ir.GOTO, n, n, 1)}, tc.exp...)
			exp = append(exp, q(ir.ASSIGN, 5000+ir.Addr(len(tc.exp))-1, n, 1000), q(ir.HALT, n, n, n))

			assert.Equal(t, exp, p.Quads)
		})
	}
}

func TestComparison(t *testing.T) {
	prog := &ast.Program{
		ID:   "p",
		Vars: []ast.Var{vr("x", tp.Int), vr("ok", tp.Bool)},
		Main: []ast.Stmt{
			set("ok", bin(bin(id("x"), tp.Add, il(1)), tp.Lt, bin(il(2), tp.Mul, il(3)))),
			set("ok", bl(true)),
		},
	}

	p, _, err := gen(t, prog)
	require.NoError(t, err)

	assert.Equal(t, []ir.Quad{
		q(ir.GOTO, n, n, 1),
		q(ir.ADD, 1000, 4000, 5000),
		q(ir.MULT, 4001, 4002, 5001),
		q(ir.LT, 5000, 5001, 7000),
		q(ir.ASSIGN, 7000, n, 3000),
		q(ir.ASSIGN, n, 1, 7001),
		q(ir.ASSIGN, 7001, n, 3000),
		q(ir.HALT, n, n, n),
	}, p.Quads)
}

func TestConstDedup(t *testing.T) {
	prog := &ast.Program{
		ID:   "p",
		Vars: []ast.Var{vr("x", tp.Int), vr("y", tp.Float)},
		Main: []ast.Stmt{
			set("x", bin(il(7), tp.Add, il(7))),
			set("y", bin(fl(2.5), tp.Mul, fl(2.5))),
			set("y", fl(2.5)),
		},
	}

	p, _, err := gen(t, prog)
	require.NoError(t, err)

	assert.Equal(t, []ir.IntConst{{Value: 7, Addr: 4000}}, p.Ints)
	assert.Equal(t, []ir.FloatConst{{Value: 2.5, Addr: 4500}}, p.Floats)

	assert.Equal(t, q(ir.ADD, 4000, 4000, 5000), p.Quads[1])
	assert.Equal(t, q(ir.MULT, 4500, 4500, 6000), p.Quads[3])
	assert.Equal(t, q(ir.ASSIGN, 4500, n, 2000), p.Quads[5])
}

func TestIfElse(t *testing.T) {
	prog := &ast.Program{
		ID:   "p",
		Vars: []ast.Var{vr("x", tp.Int)},
		Main: []ast.Stmt{
			&ast.If{
				Cond: bin(id("x"), tp.Gt, il(5)),
				Then: []ast.Stmt{ast.PrintString("big")},
				Else: []ast.Stmt{ast.PrintString("small")},
			},
			&ast.If{
				Cond: bin(id("x"), tp.Eq, il(5)),
				Then: []ast.Stmt{ast.PrintString("big")},
			},
		},
	}

	p, _, err := gen(t, prog)
	require.NoError(t, err)

	assert.Equal(t, []ir.Quad{
		q(ir.GOTO, n, n, 1),
		q(ir.GT, 1000, 4000, 7000),
		q(ir.GOTOF, 7000, n, 5),
		q(ir.PRINT, 4900, n, n),
		q(ir.GOTO, n, n, 6),
		q(ir.PRINT, 4901, n, n),
		q(ir.EQ, 1000, 4000, 7001),
		q(ir.GOTOF, 7001, n, 9),
		q(ir.PRINT, 4900, n, n),
		q(ir.HALT, n, n, n),
	}, p.Quads)

	assert.Equal(t, []ir.StringConst{{Value: "big", Addr: 4900}, {Value: "small", Addr: 4901}}, p.Strings)
}

func TestWhile(t *testing.T) {
	prog := &ast.Program{
		ID:   "p",
		Vars: []ast.Var{vr("counter", tp.Int)},
		Main: []ast.Stmt{
			set("counter", il(0)),
			&ast.While{
				Cond: bin(id("counter"), tp.Lt, il(5)),
				Body: []ast.Stmt{
					set("counter", bin(id("counter"), tp.Add, il(1))),
				},
			},
		},
	}

	p, _, err := gen(t, prog)
	require.NoError(t, err)

	assert.Equal(t, []ir.Quad{
		q(ir.GOTO, n, n, 1),
		q(ir.ASSIGN, 4000, n, 1000),
		q(ir.LT, 1000, 4001, 7000),
		q(ir.GOTOF, 7000, n, 7),
		q(ir.ADD, 1000, 4002, 5000),
		q(ir.ASSIGN, 5000, n, 1000),
		q(ir.GOTO, n, n, 2),
		q(ir.HALT, n, n, n),
	}, p.Quads)
}

func TestCalls(t *testing.T) {
	prog := &ast.Program{
		ID: "p",
		Funcs: []*ast.Func{{
			ID:     "f",
			Params: []ast.Var{vr("a", tp.Int), vr("b", tp.Float)},
			Body:   []ast.Stmt{&ast.Print{Expr: id("a")}},
		}},
		Main: []ast.Stmt{
			call("f", il(1), fl(2.5)),
			call("f", il(2), il(3)),
		},
	}

	p, _, err := gen(t, prog)
	require.NoError(t, err)

	assert.Equal(t, []ir.Quad{
		q(ir.GOTO, n, n, 3),
		q(ir.PRINT, 1000, n, n),
		q(ir.ENDFUNC, n, n, n),
		q(ir.ERA, 1, n, n),
		q(ir.PARAM, 4000, n, 0),
		q(ir.PARAM, 4500, n, 1),
		q(ir.GOSUB, 1, n, n),
		q(ir.ERA, 1, n, n),
		q(ir.PARAM, 4001, n, 0),
		q(ir.PARAM, 4002, n, 1),
		q(ir.GOSUB, 1, n, n),
		q(ir.HALT, n, n, n),
	}, p.Quads)

	assert.Equal(t, []ir.Func{
		{Name: "f", Start: 1, Params: []ir.Addr{1000, 2000}},
		{Name: dir.Main, Start: 3},
	}, p.Funcs)
}

func TestForwardCall(t *testing.T) {
	prog := &ast.Program{
		ID: "p",
		Funcs: []*ast.Func{
			{ID: "g", Body: []ast.Stmt{call("h", il(1))}},
			{
				ID:     "h",
				Params: []ast.Var{vr("a", tp.Int)},
				Vars:   []ast.Var{vr("l", tp.Bool)},
				Body:   []ast.Stmt{&ast.Print{Expr: id("a")}},
			},
		},
		Main: []ast.Stmt{call("g")},
	}

	p, _, err := gen(t, prog)
	require.NoError(t, err)

	assert.Equal(t, []ir.Quad{
		q(ir.GOTO, n, n, 7),
		q(ir.ERA, 5, n, n),
		q(ir.PARAM, 4000, n, 0),
		q(ir.GOSUB, 5, n, n),
		q(ir.ENDFUNC, n, n, n),
		q(ir.PRINT, 1000, n, n),
		q(ir.ENDFUNC, n, n, n),
		q(ir.ERA, 1, n, n),
		q(ir.GOSUB, 1, n, n),
		q(ir.HALT, n, n, n),
	}, p.Quads)

	assert.Equal(t, []ir.Func{
		{Name: "g", Start: 1},
		{Name: "h", Start: 5, Params: []ir.Addr{1000}, Locals: 1},
		{Name: dir.Main, Start: 7},
	}, p.Funcs)
}

func TestConditionWarning(t *testing.T) {
	prog := &ast.Program{
		ID:   "p",
		Vars: []ast.Var{vr("x", tp.Int)},
		Main: []ast.Stmt{
			set("x", il(1)),
			&ast.While{Cond: id("x"), Body: []ast.Stmt{set("x", il(0))}},
		},
	}

	p, g, err := gen(t, prog)
	require.NoError(t, err)

	require.Len(t, g.Warnings(), 1)

	var ce ConditionTypeError
	require.True(t, errors.As(g.Warnings()[0], &ce))
	assert.Equal(t, ConditionTypeError{Stmt: "while", Type: tp.Int}, ce)

	assert.Equal(t, q(ir.GOTOF, 1000, n, 5), p.Quads[2])
}

func TestGenerateErrors(t *testing.T) {
	funcs := func() []*ast.Func {
		return []*ast.Func{{
			ID:     "f",
			Params: []ast.Var{vr("a", tp.Int), vr("b", tp.Float)},
		}}
	}

	for _, tc := range []struct {
		name  string
		stmts []ast.Stmt
		check func(t *testing.T, err error)
	}{
		{"type", []ast.Stmt{set("x", bin(bl(true), tp.Add, fl(1.5)))}, func(t *testing.T, err error) {
			var e tp.TypeError
			require.True(t, errors.As(err, &e), "%v", err)
			assert.Equal(t, tp.TypeError{Left: tp.Bool, Right: tp.Float, Op: tp.Add}, e)
		}},
		{"bool_order", []ast.Stmt{set("ok", bin(id("ok"), tp.Lt, bl(false)))}, func(t *testing.T, err error) {
			var e tp.TypeError
			require.True(t, errors.As(err, &e), "%v", err)
		}},
		{"assign", []ast.Stmt{set("x", fl(1.5))}, func(t *testing.T, err error) {
			var e AssignTypeError
			require.True(t, errors.As(err, &e), "%v", err)
			assert.Equal(t, AssignTypeError{Name: "x", Dst: tp.Int, Src: tp.Float}, e)
		}},
		{"undefined", []ast.Stmt{set("x", id("nope"))}, func(t *testing.T, err error) {
			var e UndefinedError
			require.True(t, errors.As(err, &e), "%v", err)
			assert.Equal(t, "nope", e.Name)
		}},
		{"arity", []ast.Stmt{call("f", il(1))}, func(t *testing.T, err error) {
			var e ArityError
			require.True(t, errors.As(err, &e), "%v", err)
			assert.Equal(t, ArityError{Func: "f", Want: 2, Got: 1}, e)
		}},
		{"argument", []ast.Stmt{call("f", fl(1), fl(2))}, func(t *testing.T, err error) {
			var e ArgumentTypeError
			require.True(t, errors.As(err, &e), "%v", err)
			assert.Equal(t, ArgumentTypeError{Func: "f", Index: 0, Param: tp.Int, Arg: tp.Float}, e)
		}},
		{"call_main", []ast.Stmt{call(dir.Main)}, func(t *testing.T, err error) {
			var e UndefinedError
			require.True(t, errors.As(err, &e), "%v", err)
		}},
		{"several", []ast.Stmt{set("x", fl(1.5)), call("f")}, func(t *testing.T, err error) {
			var e *Errors
			require.True(t, errors.As(err, &e), "%v", err)
			assert.Len(t, e.List, 2)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prog := &ast.Program{
				ID:    "p",
				Vars:  []ast.Var{vr("x", tp.Int), vr("ok", tp.Bool)},
				Funcs: funcs(),
				Main:  tc.stmts,
			}

			p, _, err := gen(t, prog)
			require.Error(t, err)
			require.NotNil(t, p)

			tc.check(t, err)
		})
	}
}
