package vm

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/set"
)

type (
	Options struct {
		// MaxSteps limits executed instructions. Zero means no limit.
		MaxSteps int64

		// Out receives PRINT output. Defaults to os.Stdout.
		Out io.Writer

		// Trace records executed instruction indexes into Machine.Trace.
		Trace bool
	}

	// Machine executes one loaded program. It is not safe for concurrent use.
	Machine struct {
		opts Options

		quads []ir.Quad

		mem  [len(ir.Layout)]segment
		strs map[ir.Addr]string

		// procedures by start index, and sorted by start
		funcs map[int]*ir.Func
		procs []*ir.Func

		mainStart int

		ip    int
		calls []int

		callee *ir.Func
		staged []Value
		given  set.Bitmap

		steps   int64
		covered set.Bitmap

		Trace []int
	}

	segment struct {
		ir.Range

		cells []Value
		init  set.Bits[ir.Addr]
	}

	// RuntimeError stops the execution at the instruction IP.
	RuntimeError struct {
		IP   int
		Quad ir.Quad
		Msg  string
	}
)

var ErrStepBudget = errors.New("step budget exhausted")

// Load prepares a machine for p.
// Memory segments are sized by the highest address p refers to in each of them.
func Load(ctx context.Context, p *ir.Program, opts Options) (m *Machine, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "vm: load", "quads", len(p.Quads), "funcs", len(p.Funcs))
	defer tr.Finish("err", &err)

	if len(p.Quads) == 0 {
		return nil, errors.New("no instructions")
	}

	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	m = &Machine{
		opts:  opts,
		strs:  make(map[ir.Addr]string),
		funcs: make(map[int]*ir.Func),
	}

	var high [len(ir.Layout)]ir.Addr

	see := func(a ir.Addr) error {
		if a == ir.Nil {
			return nil
		}

		s, ok := segmentOf(a)
		if !ok {
			return errors.New("address %d is outside of memory", a)
		}

		high[s] = max(high[s], a+1-ir.Layout[s].Base)

		return nil
	}

	for _, c := range p.Ints {
		if err = see(c.Addr); err != nil {
			return nil, errors.Wrap(err, "int constant")
		}
	}

	for _, c := range p.Floats {
		if err = see(c.Addr); err != nil {
			return nil, errors.Wrap(err, "float constant")
		}
	}

	for _, f := range p.Funcs {
		for _, a := range f.Params {
			if err = see(a); err != nil {
				return nil, errors.Wrap(err, "func %v param", f.Name)
			}
		}
	}

	for i, q := range p.Quads {
		for _, a := range q.Operands() {
			if err = see(a); err != nil {
				return nil, errors.Wrap(err, "quad %d %v", i, q)
			}
		}
	}

	for i, r := range ir.Layout {
		m.mem[i] = segment{
			Range: r,
			cells: make([]Value, high[i]),
			init:  set.MakeBitsCap(r.Base, int(high[i])),
		}
	}

	tr.V("vm_mem").Printw("memory", "segments", high)

	for _, c := range p.Ints {
		if err = m.constant(c.Addr, Int(c.Value)); err != nil {
			return nil, err
		}
	}

	for _, c := range p.Floats {
		if err = m.constant(c.Addr, Float(c.Value)); err != nil {
			return nil, err
		}
	}

	for _, c := range p.Strings {
		if !ir.RangeOf(ir.Str).Contains(c.Addr) {
			return nil, errors.New("string constant at %d is outside of string segment", c.Addr)
		}

		m.strs[c.Addr] = c.Value
	}

	m.quads = p.Quads
	m.mainStart = -1

	for i := range p.Funcs {
		f := &p.Funcs[i]
		st := int(f.Start)

		if st < 0 || st >= len(p.Quads) {
			return nil, errors.New("func %v: start %d is outside of program", f.Name, st)
		}

		for _, a := range f.Params {
			if r, _ := ir.Classify(a); r.Kind != ir.Var {
				return nil, errors.New("func %v: param address %d is not a variable", f.Name, a)
			}
		}

		if f.Name == "main" {
			m.mainStart = st
			continue
		}

		if _, ok := m.funcs[st]; ok {
			return nil, errors.New("func %v: start %d is already taken", f.Name, st)
		}

		m.funcs[st] = f
		m.procs = append(m.procs, f)
	}

	if q := p.Quads[0]; m.mainStart < 0 && q.Op == ir.GOTO {
		m.mainStart = int(q.Result)
	}

	sort.Slice(m.procs, func(i, j int) bool {
		return m.procs[i].Start < m.procs[j].Start
	})

	tr.Printw("loaded", "main", m.mainStart, "procs", len(m.procs), "strings", len(m.strs))

	return m, nil
}

func (m *Machine) constant(a ir.Addr, v Value) error {
	s, _ := segmentOf(a)
	seg := &m.mem[s]

	if seg.Segment != (ir.Segment{Type: v.Type, Kind: ir.Const}) {
		return errors.New("%v constant at %d is in %v segment", v.Type, a, seg.Segment)
	}

	seg.cells[a-seg.Base] = v
	seg.init.Set(a)

	return nil
}

func segmentOf(a ir.Addr) (int, bool) {
	for i, r := range ir.Layout {
		if r.Contains(a) {
			return i, true
		}
	}

	return -1, false
}

// Value returns the content of the cell at a if it was initialized.
func (m *Machine) Value(a ir.Addr) (Value, bool) {
	s, ok := segmentOf(a)
	if !ok {
		return Value{}, false
	}

	seg := &m.mem[s]
	off := int(a - seg.Base)

	if off >= len(seg.cells) || !seg.init.IsSet(a) {
		return Value{}, false
	}

	return seg.cells[off], true
}

// Steps is the number of executed instructions.
func (m *Machine) Steps() int64 { return m.steps }

// Coverage is the set of executed instruction indexes.
func (m *Machine) Coverage() *set.Bitmap { return &m.covered }

func (m *Machine) read(a ir.Addr) (Value, error) {
	s, ok := segmentOf(a)
	if !ok {
		return Value{}, errors.New("address %d is outside of memory", a)
	}

	seg := &m.mem[s]

	if seg.Segment == ir.Str {
		return Value{}, errors.New("string constant %d used as a value", a)
	}

	off := int(a - seg.Base)

	if off >= len(seg.cells) || !seg.init.IsSet(a) {
		return Value{}, errors.New("read of uninitialized %v address %d", seg.Segment, a)
	}

	return seg.cells[off], nil
}

func (m *Machine) write(a ir.Addr, v Value) error {
	s, ok := segmentOf(a)
	if !ok {
		return errors.New("address %d is outside of memory", a)
	}

	seg := &m.mem[s]

	if seg.Kind == ir.Const {
		return errors.New("write to constant address %d", a)
	}

	off := int(a - seg.Base)

	if off >= len(seg.cells) {
		return errors.New("address %d was not allocated", a)
	}

	x, ok := convert(v, seg.Type)
	if !ok {
		return errors.New("cannot store %v into %v address %d", v.Type, seg.Type, a)
	}

	seg.cells[off] = x
	seg.init.Set(a)

	return nil
}

// enclosing returns the procedure whose body contains instruction ip.
// Nil means main or the entry jump.
func (m *Machine) enclosing(ip int) *ir.Func {
	i := sort.Search(len(m.procs), func(i int) bool {
		return int(m.procs[i].Start) > ip
	})

	if i == 0 {
		return nil
	}

	f := m.procs[i-1]

	if m.mainStart > int(f.Start) && ip >= m.mainStart {
		return nil
	}

	return f
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %d %v: %s", e.IP, e.Quad, e.Msg)
}
