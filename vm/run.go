package vm

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/tp"
)

const cancelCheckEvery = 1024

// Run executes the program from instruction 0 until HALT,
// the end of main, or the end of the instruction list.
func (m *Machine) Run(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "vm: run", "quads", len(m.quads), "max_steps", m.opts.MaxSteps)
	defer func() {
		tr.Finish("err", err, "steps", m.steps, "calls_left", len(m.calls))
	}()

	trace := tr.If("vm_trace")

	for m.ip < len(m.quads) {
		if m.opts.MaxSteps > 0 && m.steps >= m.opts.MaxSteps {
			return errors.Wrap(ErrStepBudget, "after %d steps at %d", m.steps, m.ip)
		}

		if m.steps%cancelCheckEvery == 0 {
			if err = ctx.Err(); err != nil {
				return errors.Wrap(err, "at %d", m.ip)
			}
		}

		q := m.quads[m.ip]

		m.steps++
		m.covered.Set(m.ip)

		if m.opts.Trace {
			m.Trace = append(m.Trace, m.ip)
		}

		if trace {
			tr.Printw("exec", "ip", m.ip, "quad", q, "depth", len(m.calls))
		}

		var halt bool

		halt, err = m.step(q)
		if err != nil {
			return RuntimeError{IP: m.ip, Quad: q, Msg: err.Error()}
		}

		if halt {
			return nil
		}
	}

	return nil
}

// step executes q and advances ip.
func (m *Machine) step(q ir.Quad) (halt bool, err error) {
	switch q.Op {
	case ir.ASSIGN:
		var v Value

		if q.Arg1 == ir.Nil {
			v = Int(int32(q.Arg2))
		} else {
			v, err = m.read(q.Arg1)
			if err != nil {
				return false, err
			}
		}

		err = m.write(q.Result, v)
	case ir.ADD, ir.SUB, ir.MULT, ir.DIV, ir.GT, ir.LT, ir.EQ, ir.NEQ:
		err = m.binary(q)
	case ir.PRINT:
		err = m.print(q.Arg1)
	case ir.GOTO:
		return false, m.jump(q.Result)
	case ir.GOTOF:
		var c Value

		c, err = m.read(q.Arg1)
		if err != nil {
			return false, err
		}

		if c.Type == tp.Float {
			return false, errors.New("float condition")
		}

		if c.int() == 0 {
			return false, m.jump(q.Result)
		}
	case ir.ERA:
		f, ok := m.funcs[int(q.Arg1)]
		if !ok {
			return false, errors.New("no procedure starts at %d", q.Arg1)
		}

		m.callee = f
		m.staged = m.staged[:0]
		m.given.Reset()
	case ir.PARAM:
		var v Value

		v, err = m.read(q.Arg1)
		if err != nil {
			return false, err
		}

		k := int(q.Result)
		if k < 0 {
			return false, errors.New("negative parameter index %d", k)
		}

		for len(m.staged) <= k {
			m.staged = append(m.staged, Value{})
		}

		m.staged[k] = v
		m.given.Set(k)
	case ir.GOSUB:
		return false, m.gosub(q)
	case ir.ENDFUNC:
		if len(m.calls) == 0 {
			if f := m.enclosing(m.ip); f != nil {
				return false, errors.New("call stack underflow in %v", f.Name)
			}

			return true, nil
		}

		last := len(m.calls) - 1
		m.ip = m.calls[last]
		m.calls = m.calls[:last]

		return false, nil
	case ir.HALT:
		return true, nil
	default:
		return false, errors.New("unknown opcode %d", int32(q.Op))
	}

	if err != nil {
		return false, err
	}

	m.ip++

	return false, nil
}

func (m *Machine) binary(q ir.Quad) error {
	l, err := m.read(q.Arg1)
	if err != nil {
		return err
	}

	r, err := m.read(q.Arg2)
	if err != nil {
		return err
	}

	var res Value
	var msg string

	if q.Op >= ir.GT {
		res, msg = compare(q.Op, l, r)
	} else {
		res, msg = arith(q.Op, l, r)
	}

	if msg != "" {
		return errors.New("%s", msg)
	}

	return m.write(q.Result, res)
}

func (m *Machine) print(a ir.Addr) (err error) {
	var s string

	if ir.RangeOf(ir.Str).Contains(a) {
		var ok bool

		s, ok = m.strs[a]
		if !ok {
			return errors.New("no string constant at %d", a)
		}
	} else {
		v, err := m.read(a)
		if err != nil {
			return err
		}

		s = v.String()
	}

	_, err = fmt.Fprintln(m.opts.Out, s)
	if err != nil {
		return errors.Wrap(err, "print")
	}

	return nil
}

func (m *Machine) jump(target ir.Addr) error {
	if target < 0 || int(target) >= len(m.quads) {
		return errors.New("jump target %d is outside of program", target)
	}

	m.ip = int(target)

	return nil
}

func (m *Machine) gosub(q ir.Quad) error {
	f, ok := m.funcs[int(q.Arg1)]
	if !ok {
		return errors.New("no procedure starts at %d", q.Arg1)
	}

	if m.callee != f {
		return errors.New("call of %v was not prepared with ERA", f.Name)
	}

	if len(m.staged) != len(f.Params) || m.given.Size() != len(f.Params) {
		return errors.New("call %v: want %d parameters, got %d", f.Name, len(f.Params), m.given.Size())
	}

	for i, a := range f.Params {
		err := m.write(a, m.staged[i])
		if err != nil {
			return errors.Wrap(err, "param %d", i)
		}
	}

	m.callee = nil
	m.calls = append(m.calls, m.ip+1)
	m.ip = int(f.Start)

	return nil
}
