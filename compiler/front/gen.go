package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ast"
	"github.com/slowlang/duck/compiler/dir"
	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/tp"
)

type (
	// Generator turns a syntax tree into quadruples.
	// It is single use: one Generator per program.
	Generator struct {
		dir *dir.Directory
		p   *ir.Program

		// parallel operand and type stacks
		operands []ir.Addr
		types    []tp.Type

		opers []tp.Op
		jumps []int

		ints    []int32
		floats  []float64
		strings []string

		temps *ir.Allocator

		scopes []string

		// offset of the statement being generated
		pos int

		// callee name -> ERA and GOSUB quads waiting for its start index
		pending map[string][]int

		errs  []error
		warns []error
	}
)

// Generate compiles prog using the addresses of d.
// If any diagnostic was recorded the partially generated program
// is returned together with *Errors.
func Generate(ctx context.Context, d *dir.Directory, prog *ast.Program) (*ir.Program, error) {
	return New(d).Generate(ctx, prog)
}

func New(d *dir.Directory) *Generator {
	return &Generator{
		dir:     d,
		p:       &ir.Program{},
		temps:   ir.NewAllocator(),
		scopes:  []string{dir.Global},
		pending: make(map[string][]int),
	}
}

func (g *Generator) Generate(ctx context.Context, prog *ast.Program) (p *ir.Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: generate", "program", prog.ID)
	defer tr.Finish("err", &err)

	entry := g.emit(ctx, ir.GOTO, ir.Nil, ir.Nil, ir.Nil)

	for _, f := range prog.Funcs {
		err = g.function(ctx, f.ID, f.Body, true)
		if err != nil {
			return g.p, errors.Wrap(err, "func %v", f.ID)
		}
	}

	start := g.p.Next()

	err = g.function(ctx, dir.Main, prog.Main, false)
	if err != nil {
		return g.p, errors.Wrap(err, "main")
	}

	g.p.Fill(entry, start)

	g.emit(ctx, ir.HALT, ir.Nil, ir.Nil, ir.Nil)

	for name, l := range g.pending {
		g.errorf(ctx, 0, UndefinedError{Name: name, What: "procedure start of", Scope: dir.Global})

		tr.Printw("unresolved call", "callee", name, "quads", l)
	}

	g.tables()

	if len(g.operands) != 0 || len(g.opers) != 0 || len(g.jumps) != 0 {
		return g.p, errors.New("unbalanced stacks: operands %d, operators %d, jumps %d", len(g.operands), len(g.opers), len(g.jumps))
	}

	tr.Printw("generated", "quads", len(g.p.Quads), "ints", len(g.ints), "floats", len(g.floats), "errors", len(g.errs), "warnings", len(g.warns))

	if len(g.errs) != 0 {
		return g.p, &Errors{List: g.errs}
	}

	return g.p, nil
}

// Warnings returns diagnostics that do not fail the compilation.
func (g *Generator) Warnings() []error { return g.warns }

func (g *Generator) function(ctx context.Context, name string, body []ast.Stmt, endfunc bool) error {
	tr := tlog.SpanFromContext(ctx)

	start := g.p.Next()

	err := g.dir.SetStart(name, start)
	if err != nil {
		return err
	}

	for _, i := range g.pending[name] {
		g.p.Quads[i].Arg1 = ir.Index(start)
	}

	if l := g.pending[name]; len(l) != 0 {
		tr.V("quad").Printw("patched forward calls", "func", name, "start", start, "quads", l)
	}

	delete(g.pending, name)

	g.scopes = append(g.scopes, name)
	defer func() {
		g.scopes = g.scopes[:len(g.scopes)-1]
	}()

	g.block(ctx, body)

	if endfunc {
		g.emit(ctx, ir.ENDFUNC, ir.Nil, ir.Nil, ir.Nil)
	}

	tr.Printw("function", "name", name, "start", start, "end", g.p.Next())

	return nil
}

// tables fills the constant pools and the function table of the program.
func (g *Generator) tables() {
	for i, v := range g.ints {
		a, _ := ir.AddrOf(ir.Segment{Type: tp.Int, Kind: ir.Const}, i)
		g.p.Ints = append(g.p.Ints, ir.IntConst{Value: v, Addr: a})
	}

	for i, v := range g.floats {
		a, _ := ir.AddrOf(ir.Segment{Type: tp.Float, Kind: ir.Const}, i)
		g.p.Floats = append(g.p.Floats, ir.FloatConst{Value: v, Addr: a})
	}

	for i, v := range g.strings {
		a, _ := ir.AddrOf(ir.Str, i)
		g.p.Strings = append(g.p.Strings, ir.StringConst{Value: v, Addr: a})
	}

	for _, f := range g.dir.Funcs() {
		st, ok := f.Start()
		if !ok {
			continue
		}

		fn := ir.Func{
			Name:   f.Name,
			Start:  ir.Index(st),
			Locals: len(f.Locals),
		}

		for _, p := range f.Params {
			fn.Params = append(fn.Params, p.Addr)
		}

		g.p.Funcs = append(g.p.Funcs, fn)
	}
}

func (g *Generator) scope() string {
	return g.scopes[len(g.scopes)-1]
}

func (g *Generator) emit(ctx context.Context, op ir.OpCode, a, b, r ir.Addr) int {
	q := ir.Q(op, a, b, r)
	i := g.p.Emit(q)

	if tr := tlog.SpanFromContext(ctx); tr.If("quad") {
		tr.Printw("emit", "i", i, "quad", q, "scope", g.scope())
	}

	return i
}

// fill backpatches the jump at i to the current end of the stream.
func (g *Generator) fill(ctx context.Context, i int) {
	g.p.Fill(i, g.p.Next())

	tlog.SpanFromContext(ctx).V("quad").Printw("backpatch", "i", i, "target", g.p.Next())
}

func (g *Generator) errorf(ctx context.Context, pos int, err error) {
	err = PosError{Pos: pos, Err: err}
	g.errs = append(g.errs, err)

	tlog.SpanFromContext(ctx).Printw("compile error", "err", err, "scope", g.scope(), "from", loc.Callers(1, 2))
}

func (g *Generator) warnf(ctx context.Context, pos int, err error) {
	err = PosError{Pos: pos, Err: err}
	g.warns = append(g.warns, err)

	tlog.SpanFromContext(ctx).V("diag").Printw("compile warning", "err", err, "scope", g.scope(), "from", loc.Callers(1, 2))
}

func (g *Generator) temp(ctx context.Context, pos int, t tp.Type) ir.Addr {
	a, err := g.temps.Alloc(ir.Segment{Type: t, Kind: ir.Temp})
	if err != nil {
		g.errorf(ctx, pos, err)
	}

	return a
}
