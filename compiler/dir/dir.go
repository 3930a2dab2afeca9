package dir

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ast"
	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/tp"
)

type (
	VariableInfo struct {
		Type tp.Type
		Addr ir.Addr
	}

	Param struct {
		Name string
		Type tp.Type
		Addr ir.Addr
	}

	FunctionInfo struct {
		Name   string
		Params []Param
		Locals map[string]VariableInfo

		// order of Locals as declared
		order []string

		start     int
		startSet  bool
		IsProgram bool
	}

	Directory struct {
		funcs map[string]*FunctionInfo

		// user functions and main in source order
		order []string

		program string
	}

	DuplicateVariableError struct {
		Name  string
		Scope string
	}

	DuplicateFunctionError struct {
		Name string
	}
)

const (
	Global = "global"
	Main   = "main"
)

// Build creates the directory of prog and assigns every variable
// and parameter its permanent address.
func Build(ctx context.Context, prog *ast.Program) (d *Directory, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "dir: build", "program", prog.ID)
	defer tr.Finish("err", &err)

	a := ir.NewAllocator()

	d = &Directory{
		funcs:   make(map[string]*FunctionInfo),
		program: prog.ID,
	}

	d.funcs[prog.ID] = &FunctionInfo{
		Name:      prog.ID,
		Locals:    map[string]VariableInfo{},
		IsProgram: true,
	}

	if prog.ID == Global {
		return nil, DuplicateFunctionError{Name: Global}
	}

	g := newFunc(Global)
	d.funcs[Global] = g

	for _, v := range prog.Vars {
		err = g.addLocal(a, v, Global)
		if err != nil {
			return nil, err
		}
	}

	if _, ok := d.funcs[Main]; ok {
		return nil, DuplicateFunctionError{Name: Main}
	}

	d.funcs[Main] = newFunc(Main)

	for _, f := range prog.Funcs {
		if _, ok := d.funcs[f.ID]; ok {
			return nil, DuplicateFunctionError{Name: f.ID}
		}

		fi := newFunc(f.ID)

		for _, p := range f.Params {
			if fi.hasParam(p.ID) {
				return nil, DuplicateVariableError{Name: p.ID, Scope: fmt.Sprintf("function %s parameters", f.ID)}
			}

			addr, err := a.Alloc(ir.Segment{Type: p.Type, Kind: ir.Var})
			if err != nil {
				return nil, errors.Wrap(err, "param %v of %v", p.ID, f.ID)
			}

			fi.Params = append(fi.Params, Param{Name: p.ID, Type: p.Type, Addr: addr})
		}

		for _, v := range f.Vars {
			if fi.hasParam(v.ID) {
				return nil, DuplicateVariableError{Name: v.ID, Scope: fmt.Sprintf("function %s (parameter conflict)", f.ID)}
			}

			err = fi.addLocal(a, v, f.ID)
			if err != nil {
				return nil, err
			}
		}

		d.funcs[f.ID] = fi
		d.order = append(d.order, f.ID)

		tlog.V("dir").Printw("function", "name", f.ID, "params", fi.Params, "locals", fi.Locals)
	}

	d.order = append(d.order, Main)

	tr.Printw("directory built", "funcs", len(d.order), "globals", len(g.Locals))

	return d, nil
}

func newFunc(name string) *FunctionInfo {
	return &FunctionInfo{
		Name:   name,
		Locals: make(map[string]VariableInfo),
	}
}

func (f *FunctionInfo) addLocal(a *ir.Allocator, v ast.Var, scope string) error {
	if _, ok := f.Locals[v.ID]; ok {
		return DuplicateVariableError{Name: v.ID, Scope: scope}
	}

	addr, err := a.Alloc(ir.Segment{Type: v.Type, Kind: ir.Var})
	if err != nil {
		return errors.Wrap(err, "var %v in %v", v.ID, scope)
	}

	f.Locals[v.ID] = VariableInfo{Type: v.Type, Addr: addr}
	f.order = append(f.order, v.ID)

	return nil
}

func (f *FunctionInfo) hasParam(name string) bool {
	for _, p := range f.Params {
		if p.Name == name {
			return true
		}
	}

	return false
}

// Lookup finds name among the parameters and locals of f.
func (f *FunctionInfo) Lookup(name string) (VariableInfo, bool) {
	for _, p := range f.Params {
		if p.Name == name {
			return VariableInfo{Type: p.Type, Addr: p.Addr}, true
		}
	}

	v, ok := f.Locals[name]

	return v, ok
}

// LocalNames returns local variable names in declaration order.
func (f *FunctionInfo) LocalNames() []string {
	return f.order
}

// Start returns the index of the first instruction of f.
func (f *FunctionInfo) Start() (int, bool) {
	return f.start, f.startSet
}

// Func returns the function scope named name.
func (d *Directory) Func(name string) (*FunctionInfo, bool) {
	f, ok := d.funcs[name]
	return f, ok
}

// Callable returns the user procedure named name.
func (d *Directory) Callable(name string) (*FunctionInfo, bool) {
	f, ok := d.funcs[name]
	if !ok || f.IsProgram || name == Global || name == Main {
		return nil, false
	}

	return f, true
}

// Funcs returns user procedures in source order followed by main.
func (d *Directory) Funcs() []*FunctionInfo {
	l := make([]*FunctionInfo, len(d.order))

	for i, name := range d.order {
		l[i] = d.funcs[name]
	}

	return l
}

func (d *Directory) Program() string { return d.program }

// Resolve looks name up in scope and then in the global scope.
func (d *Directory) Resolve(scope, name string) (VariableInfo, bool) {
	if f, ok := d.funcs[scope]; ok {
		if v, ok := f.Lookup(name); ok {
			return v, true
		}
	}

	return d.funcs[Global].Lookup(name)
}

// SetStart records the first instruction index of function name.
// It can be set only once.
func (d *Directory) SetStart(name string, idx int) error {
	f, ok := d.funcs[name]
	if !ok {
		return errors.New("no such function: %v", name)
	}

	if f.startSet {
		return errors.New("start of %v already set to %d", name, f.start)
	}

	f.start = idx
	f.startSet = true

	return nil
}

// Names maps every variable and parameter address to a readable name.
func (d *Directory) Names() map[ir.Addr]string {
	m := make(map[ir.Addr]string)

	for _, f := range d.funcs {
		for _, p := range f.Params {
			m[p.Addr] = f.Name + "." + p.Name
		}

		for name, v := range f.Locals {
			if f.Name == Global {
				m[v.Addr] = name
			} else {
				m[v.Addr] = f.Name + "." + name
			}
		}
	}

	return m
}

func (e DuplicateVariableError) Error() string {
	return fmt.Sprintf("duplicate variable %q in scope %q", e.Name, e.Scope)
}

func (e DuplicateFunctionError) Error() string {
	return fmt.Sprintf("duplicate function name %q", e.Name)
}
