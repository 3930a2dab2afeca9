package front

import (
	"context"
	"fmt"

	"github.com/slowlang/duck/compiler/ast"
	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/tp"
)

// fence is the false bottom of the operator stack.
// Operators below it are not reduced until it is removed.
const fence tp.Op = -1

var opcodes = map[tp.Op]ir.OpCode{
	tp.Add: ir.ADD,
	tp.Sub: ir.SUB,
	tp.Mul: ir.MULT,
	tp.Div: ir.DIV,
	tp.Gt:  ir.GT,
	tp.Lt:  ir.LT,
	tp.Eq:  ir.EQ,
	tp.Neq: ir.NEQ,
}

// expr evaluates e and returns the address and type of its value.
func (g *Generator) expr(ctx context.Context, e ast.Expr) (ir.Addr, tp.Type) {
	g.group(ctx, e)

	return g.pop()
}

// group evaluates e as if it was parenthesized.
func (g *Generator) group(ctx context.Context, e ast.Expr) {
	g.opers = append(g.opers, fence)

	g.operand(ctx, e)
	g.reduce(ctx)

	g.opers = g.opers[:len(g.opers)-1]
}

func (g *Generator) operand(ctx context.Context, e ast.Expr) {
	switch e := e.(type) {
	case *ast.BinaryOp:
		g.side(ctx, e.Left, e.Op, false)
		g.pushOper(ctx, e.Op)
		g.side(ctx, e.Right, e.Op, true)
	case *ast.Ident:
		v, ok := g.dir.Resolve(g.scope(), e.Name)
		if !ok {
			g.errorf(ctx, e.Pos, UndefinedError{Name: e.Name, What: "variable", Scope: g.scope()})
			g.push(g.temp(ctx, e.Pos, tp.Int), tp.Int)

			return
		}

		g.push(v.Addr, v.Type)
	case *ast.IntLit:
		g.push(g.intConst(ctx, e.Pos, e.Value), tp.Int)
	case *ast.FloatLit:
		g.push(g.floatConst(ctx, e.Pos, e.Value), tp.Float)
	case *ast.BoolLit:
		var v ir.Addr
		if e.Value {
			v = 1
		}

		t := g.temp(ctx, e.Pos, tp.Bool)
		g.emit(ctx, ir.ASSIGN, ir.Nil, v, t)

		g.push(t, tp.Bool)
	default:
		panic(fmt.Sprintf("unsupported expression: %T", e))
	}
}

// side evaluates one operand of parent.
// A child that binds looser than parent, or a right child of the same tier,
// was parenthesized in the source, so it is fenced.
func (g *Generator) side(ctx context.Context, e ast.Expr, parent tp.Op, right bool) {
	b, ok := e.(*ast.BinaryOp)
	if ok && (b.Op.Prec() < parent.Prec() || right && b.Op.Prec() == parent.Prec()) {
		g.group(ctx, e)
		return
	}

	g.operand(ctx, e)
}

func (g *Generator) pushOper(ctx context.Context, op tp.Op) {
	for len(g.opers) != 0 {
		top := g.opers[len(g.opers)-1]
		if top == fence || top.Prec() < op.Prec() {
			break
		}

		g.reduceOne(ctx)
	}

	g.opers = append(g.opers, op)
}

// reduce resolves operators down to the nearest fence.
func (g *Generator) reduce(ctx context.Context) {
	for len(g.opers) != 0 && g.opers[len(g.opers)-1] != fence {
		g.reduceOne(ctx)
	}
}

func (g *Generator) reduceOne(ctx context.Context) {
	op := g.opers[len(g.opers)-1]
	g.opers = g.opers[:len(g.opers)-1]

	r, rt := g.pop()
	l, lt := g.pop()

	t, err := tp.Classify(lt, rt, op)
	if err != nil {
		g.errorf(ctx, g.pos, err)
		g.push(g.temp(ctx, g.pos, tp.Int), tp.Int)

		return
	}

	res := g.temp(ctx, g.pos, t)
	g.emit(ctx, opcodes[op], l, r, res)

	g.push(res, t)
}

func (g *Generator) push(a ir.Addr, t tp.Type) {
	g.operands = append(g.operands, a)
	g.types = append(g.types, t)
}

func (g *Generator) pop() (a ir.Addr, t tp.Type) {
	last := len(g.operands) - 1

	a, t = g.operands[last], g.types[last]
	g.operands, g.types = g.operands[:last], g.types[:last]

	return a, t
}

func (g *Generator) intConst(ctx context.Context, pos int, v int32) ir.Addr {
	for i, x := range g.ints {
		if x == v {
			a, _ := ir.AddrOf(ir.Segment{Type: tp.Int, Kind: ir.Const}, i)
			return a
		}
	}

	a, err := ir.AddrOf(ir.Segment{Type: tp.Int, Kind: ir.Const}, len(g.ints))
	if err != nil {
		g.errorf(ctx, pos, err)
		return ir.Nil
	}

	g.ints = append(g.ints, v)

	return a
}

func (g *Generator) floatConst(ctx context.Context, pos int, v float64) ir.Addr {
	for i, x := range g.floats {
		if x == v {
			a, _ := ir.AddrOf(ir.Segment{Type: tp.Float, Kind: ir.Const}, i)
			return a
		}
	}

	a, err := ir.AddrOf(ir.Segment{Type: tp.Float, Kind: ir.Const}, len(g.floats))
	if err != nil {
		g.errorf(ctx, pos, err)
		return ir.Nil
	}

	g.floats = append(g.floats, v)

	return a
}

func (g *Generator) stringConst(ctx context.Context, pos int, v string) ir.Addr {
	for i, x := range g.strings {
		if x == v {
			a, _ := ir.AddrOf(ir.Str, i)
			return a
		}
	}

	a, err := ir.AddrOf(ir.Str, len(g.strings))
	if err != nil {
		g.errorf(ctx, pos, err)
		return ir.Nil
	}

	g.strings = append(g.strings, v)

	return a
}
