package front

import (
	"context"
	"fmt"

	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ast"
	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/tp"
)

func (g *Generator) block(ctx context.Context, l []ast.Stmt) {
	for _, s := range l {
		g.stmt(ctx, s)
	}
}

func (g *Generator) stmt(ctx context.Context, s ast.Stmt) {
	g.pos = s.Offset()

	switch s := s.(type) {
	case *ast.Assign:
		g.assign(ctx, s)
	case *ast.If:
		g.cond(ctx, s)
	case *ast.While:
		g.loop(ctx, s)
	case *ast.Call:
		g.call(ctx, s)
	case *ast.Print:
		g.print(ctx, s)
	default:
		panic(fmt.Sprintf("unsupported statement: %T", s))
	}
}

func (g *Generator) assign(ctx context.Context, s *ast.Assign) {
	src, st := g.expr(ctx, s.Expr)

	v, ok := g.dir.Resolve(g.scope(), s.ID)
	if !ok {
		g.errorf(ctx, s.Pos, UndefinedError{Name: s.ID, What: "variable", Scope: g.scope()})
		return
	}

	if !tp.Assignable(v.Type, st) {
		g.errorf(ctx, s.Pos, AssignTypeError{Name: s.ID, Dst: v.Type, Src: st})
	}

	g.emit(ctx, ir.ASSIGN, src, ir.Nil, v.Addr)
}

func (g *Generator) condition(ctx context.Context, stmt string, e ast.Expr) ir.Addr {
	a, t := g.expr(ctx, e)

	if t != tp.Bool {
		g.warnf(ctx, e.Offset(), ConditionTypeError{Stmt: stmt, Type: t})
	}

	return a
}

func (g *Generator) cond(ctx context.Context, s *ast.If) {
	c := g.condition(ctx, "if", s.Cond)

	g.jumps = append(g.jumps, g.emit(ctx, ir.GOTOF, c, ir.Nil, ir.Nil))

	g.block(ctx, s.Then)

	if s.Else != nil {
		j := g.emit(ctx, ir.GOTO, ir.Nil, ir.Nil, ir.Nil)

		g.fill(ctx, g.popJump())
		g.jumps = append(g.jumps, j)

		g.block(ctx, s.Else)
	}

	g.fill(ctx, g.popJump())
}

func (g *Generator) loop(ctx context.Context, s *ast.While) {
	head := g.p.Next()

	c := g.condition(ctx, "while", s.Cond)

	g.jumps = append(g.jumps, g.emit(ctx, ir.GOTOF, c, ir.Nil, ir.Nil))

	g.block(ctx, s.Body)

	g.emit(ctx, ir.GOTO, ir.Nil, ir.Nil, ir.Index(head))

	g.fill(ctx, g.popJump())
}

func (g *Generator) popJump() int {
	last := len(g.jumps) - 1
	j := g.jumps[last]
	g.jumps = g.jumps[:last]

	return j
}

func (g *Generator) call(ctx context.Context, s *ast.Call) {
	f, ok := g.dir.Callable(s.ID)
	if !ok {
		g.errorf(ctx, s.Pos, UndefinedError{Name: s.ID, What: "procedure", Scope: g.scope()})
		return
	}

	if len(s.Args) != len(f.Params) {
		g.errorf(ctx, s.Pos, ArityError{Func: s.ID, Want: len(f.Params), Got: len(s.Args)})
		return
	}

	if s.ID == g.scope() {
		tlog.SpanFromContext(ctx).Printw("recursive call shares static activation", "func", s.ID, "pos", s.Pos)
	}

	start := ir.Nil
	if st, ok := f.Start(); ok {
		start = ir.Index(st)
	}

	era := g.emit(ctx, ir.ERA, start, ir.Nil, ir.Nil)

	for k, arg := range s.Args {
		a, t := g.expr(ctx, arg)

		p := f.Params[k]

		if !tp.Assignable(p.Type, t) {
			g.errorf(ctx, arg.Offset(), ArgumentTypeError{Func: s.ID, Index: k, Param: p.Type, Arg: t})
		}

		g.emit(ctx, ir.PARAM, a, ir.Nil, ir.Index(k))
	}

	gosub := g.emit(ctx, ir.GOSUB, start, ir.Nil, ir.Nil)

	if start == ir.Nil {
		g.pending[s.ID] = append(g.pending[s.ID], era, gosub)

		tlog.SpanFromContext(ctx).V("quad").Printw("forward call", "func", s.ID, "era", era, "gosub", gosub)
	}
}

func (g *Generator) print(ctx context.Context, s *ast.Print) {
	var a ir.Addr

	if s.String != nil {
		a = g.stringConst(ctx, s.Pos, *s.String)
	} else {
		a, _ = g.expr(ctx, s.Expr)
	}

	g.emit(ctx, ir.PRINT, a, ir.Nil, ir.Nil)
}
