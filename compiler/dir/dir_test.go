package dir

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/duck/compiler/ast"
	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/tp"
)

func v(id string, t tp.Type) ast.Var {
	return ast.Var{ID: id, Type: t}
}

func sample() *ast.Program {
	return &ast.Program{
		ID: "demo",
		Vars: []ast.Var{
			v("x", tp.Int),
			v("y", tp.Float),
			v("ok", tp.Bool),
		},
		Funcs: []*ast.Func{
			{
				ID:     "f",
				Params: []ast.Var{v("a", tp.Int), v("b", tp.Float)},
				Vars:   []ast.Var{v("x", tp.Float), v("c", tp.Int)},
			},
			{
				ID:     "g",
				Params: []ast.Var{v("a", tp.Int)},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	d, err := Build(context.Background(), sample())
	require.NoError(t, err)

	x, ok := d.Resolve(Global, "x")
	require.True(t, ok)
	assert.Equal(t, VariableInfo{Type: tp.Int, Addr: 1000}, x)

	y, ok := d.Resolve(Main, "y")
	require.True(t, ok)
	assert.Equal(t, VariableInfo{Type: tp.Float, Addr: 2000}, y)

	ok0, ok := d.Resolve("g", "ok")
	require.True(t, ok)
	assert.Equal(t, VariableInfo{Type: tp.Bool, Addr: 3000}, ok0)

	// locals shadow globals
	fx, ok := d.Resolve("f", "x")
	require.True(t, ok)
	assert.Equal(t, VariableInfo{Type: tp.Float, Addr: 2002}, fx)

	f, ok := d.Func("f")
	require.True(t, ok)
	assert.Equal(t, []Param{
		{Name: "a", Type: tp.Int, Addr: 1001},
		{Name: "b", Type: tp.Float, Addr: 2001},
	}, f.Params)
	assert.Equal(t, []string{"x", "c"}, f.LocalNames())

	c, ok := d.Resolve("f", "c")
	require.True(t, ok)
	assert.Equal(t, ir.Addr(1002), c.Addr)

	g, _ := d.Func("g")
	assert.Equal(t, ir.Addr(1003), g.Params[0].Addr)

	// sibling scopes are not searched
	_, ok = d.Resolve("g", "c")
	assert.False(t, ok)

	_, ok = d.Resolve(Main, "nope")
	assert.False(t, ok)

	var names []string
	for _, f := range d.Funcs() {
		names = append(names, f.Name)
	}

	assert.Equal(t, []string{"f", "g", Main}, names)

	p, ok := d.Func("demo")
	require.True(t, ok)
	assert.True(t, p.IsProgram)

	_, ok = d.Callable("demo")
	assert.False(t, ok)
	_, ok = d.Callable(Global)
	assert.False(t, ok)
	_, ok = d.Callable(Main)
	assert.False(t, ok)
	_, ok = d.Callable("f")
	assert.True(t, ok)
}

func TestAddressesUnique(t *testing.T) {
	d, err := Build(context.Background(), sample())
	require.NoError(t, err)

	seen := map[ir.Addr]string{}

	for addr, name := range d.Names() {
		prev, dup := seen[addr]
		assert.False(t, dup, "%v shared by %v and %v", addr, prev, name)

		seen[addr] = name
	}

	assert.Len(t, seen, 3+4+1)
	assert.Equal(t, "f.a", seen[1001])
	assert.Equal(t, "x", seen[1000])
}

func TestSetStart(t *testing.T) {
	d, err := Build(context.Background(), sample())
	require.NoError(t, err)

	f, _ := d.Func("f")

	_, ok := f.Start()
	assert.False(t, ok)

	require.NoError(t, d.SetStart("f", 1))

	st, ok := f.Start()
	assert.True(t, ok)
	assert.Equal(t, 1, st)

	assert.Error(t, d.SetStart("f", 5))
	assert.Error(t, d.SetStart("nope", 5))

	st, _ = f.Start()
	assert.Equal(t, 1, st)
}

func TestBuildErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		mod  func(p *ast.Program)
		err  error
	}{
		{"dup_global", func(p *ast.Program) {
			p.Vars = append(p.Vars, v("x", tp.Float))
		}, DuplicateVariableError{Name: "x", Scope: Global}},
		{"dup_param", func(p *ast.Program) {
			p.Funcs[0].Params = append(p.Funcs[0].Params, v("a", tp.Int))
		}, DuplicateVariableError{Name: "a", Scope: "function f parameters"}},
		{"dup_local", func(p *ast.Program) {
			p.Funcs[0].Vars = append(p.Funcs[0].Vars, v("c", tp.Bool))
		}, DuplicateVariableError{Name: "c", Scope: "f"}},
		{"param_local", func(p *ast.Program) {
			p.Funcs[1].Vars = append(p.Funcs[1].Vars, v("a", tp.Int))
		}, DuplicateVariableError{Name: "a", Scope: "function g (parameter conflict)"}},
		{"dup_func", func(p *ast.Program) {
			p.Funcs = append(p.Funcs, &ast.Func{ID: "f"})
		}, DuplicateFunctionError{Name: "f"}},
		{"main_func", func(p *ast.Program) {
			p.Funcs = append(p.Funcs, &ast.Func{ID: Main})
		}, DuplicateFunctionError{Name: Main}},
		{"program_func", func(p *ast.Program) {
			p.Funcs = append(p.Funcs, &ast.Func{ID: "demo"})
		}, DuplicateFunctionError{Name: "demo"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := sample()
			tc.mod(p)

			_, err := Build(context.Background(), p)
			require.Error(t, err)

			switch exp := tc.err.(type) {
			case DuplicateVariableError:
				var e DuplicateVariableError
				require.True(t, errors.As(err, &e), "%v", err)
				assert.Equal(t, exp, e)
			case DuplicateFunctionError:
				var e DuplicateFunctionError
				require.True(t, errors.As(err, &e), "%v", err)
				assert.Equal(t, exp, e)
			}
		})
	}
}
