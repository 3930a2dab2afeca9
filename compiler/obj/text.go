package obj

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/duck/compiler/ir"
)

type (
	// LoadError is a malformed line of a text object file.
	LoadError struct {
		Line int
		Msg  string
	}

	reader struct {
		p    *ir.Program
		line int
	}
)

const (
	SecInts    = "CONSTANTS_INT"
	SecFloats  = "CONSTANTS_FLOAT"
	SecStrings = "CONSTANTS_STRING"
	SecFuncs   = "FUNCTIONS"
	SecQuads   = "QUADRUPLES"
)

var sections = []string{SecInts, SecFloats, SecStrings, SecFuncs, SecQuads}

// AppendText appends the line oriented encoding of p to b.
func AppendText(b []byte, p *ir.Program) []byte {
	b = append(b, "// duck object file\n"...)

	b = hfmt.Appendf(b, "%s:\n", SecInts)
	for _, c := range p.Ints {
		b = hfmt.Appendf(b, "%d,%d\n", c.Value, c.Addr)
	}
	b = hfmt.Appendf(b, "END_%s\n", SecInts)

	b = hfmt.Appendf(b, "%s:\n", SecFloats)
	for _, c := range p.Floats {
		b = strconv.AppendFloat(b, c.Value, 'g', -1, 64)
		b = hfmt.Appendf(b, ",%d\n", c.Addr)
	}
	b = hfmt.Appendf(b, "END_%s\n", SecFloats)

	if len(p.Strings) != 0 {
		b = hfmt.Appendf(b, "%s:\n", SecStrings)
		for _, c := range p.Strings {
			b = hfmt.Appendf(b, "%d,", c.Addr)
			b = strconv.AppendQuote(b, c.Value)
			b = append(b, '\n')
		}
		b = hfmt.Appendf(b, "END_%s\n", SecStrings)
	}

	b = hfmt.Appendf(b, "%s:\n", SecFuncs)
	for _, f := range p.Funcs {
		b = hfmt.Appendf(b, "%s,%d,%d,%d", f.Name, f.Start, len(f.Params), f.Locals)

		for _, a := range f.Params {
			b = hfmt.Appendf(b, ",%d", a)
		}

		b = append(b, '\n')
	}
	b = hfmt.Appendf(b, "END_%s\n", SecFuncs)

	b = hfmt.Appendf(b, "%s:\n", SecQuads)
	for _, q := range p.Quads {
		b = hfmt.Appendf(b, "%d,%d,%d,%d\n", q.Op, q.Arg1, q.Arg2, q.Result)
	}
	b = hfmt.Appendf(b, "END_%s\n", SecQuads)

	return b
}

func WriteText(w io.Writer, p *ir.Program) error {
	_, err := w.Write(AppendText(nil, p))

	return err
}

// ReadText decodes a text object file.
// Missing sections are empty.
func ReadText(r io.Reader) (*ir.Program, error) {
	d := reader{p: &ir.Program{}}

	var sec string

	sc := bufio.NewScanner(r)

	for sc.Scan() {
		d.line++

		l := strings.TrimSpace(sc.Text())

		switch {
		case l == "" || strings.HasPrefix(l, "//"):
			continue
		case strings.HasPrefix(l, "END_"):
			if sec == "" || l != "END_"+sec {
				return nil, d.errorf("unexpected %v in section %q", l, sec)
			}

			sec = ""

			continue
		case strings.HasSuffix(l, ":") && !strings.Contains(l, ","):
			if sec != "" {
				return nil, d.errorf("section %v is not closed", sec)
			}

			sec = strings.TrimSuffix(l, ":")

			if !known(sec) {
				return nil, d.errorf("unknown section %q", sec)
			}

			continue
		}

		var err error

		switch sec {
		case SecInts:
			err = d.int(l)
		case SecFloats:
			err = d.float(l)
		case SecStrings:
			err = d.string(l)
		case SecFuncs:
			err = d.function(l)
		case SecQuads:
			err = d.quad(l)
		default:
			err = d.errorf("data outside of any section")
		}

		if err != nil {
			return nil, err
		}
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read")
	}

	if sec != "" {
		return nil, d.errorf("section %v is not closed", sec)
	}

	return d.p, nil
}

func known(sec string) bool {
	for _, s := range sections {
		if s == sec {
			return true
		}
	}

	return false
}

func (d *reader) int(l string) error {
	f, err := d.fields(l, 2)
	if err != nil {
		return err
	}

	v, err := strconv.ParseInt(f[0], 10, 32)
	if err != nil {
		return d.errorf("int constant: %v", err)
	}

	a, err := d.addr(f[1])
	if err != nil {
		return err
	}

	d.p.Ints = append(d.p.Ints, ir.IntConst{Value: int32(v), Addr: a})

	return nil
}

func (d *reader) float(l string) error {
	f, err := d.fields(l, 2)
	if err != nil {
		return err
	}

	v, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return d.errorf("float constant: %v", err)
	}

	a, err := d.addr(f[1])
	if err != nil {
		return err
	}

	d.p.Floats = append(d.p.Floats, ir.FloatConst{Value: v, Addr: a})

	return nil
}

func (d *reader) string(l string) error {
	as, qs, ok := strings.Cut(l, ",")
	if !ok {
		return d.errorf("string constant: want address,\"text\"")
	}

	a, err := d.addr(as)
	if err != nil {
		return err
	}

	v, err := strconv.Unquote(strings.TrimSpace(qs))
	if err != nil {
		return d.errorf("string constant: %v", err)
	}

	d.p.Strings = append(d.p.Strings, ir.StringConst{Value: v, Addr: a})

	return nil
}

func (d *reader) function(l string) error {
	f := strings.Split(l, ",")
	if len(f) < 4 {
		return d.errorf("function: want at least 4 fields, got %d", len(f))
	}

	fn := ir.Func{Name: strings.TrimSpace(f[0])}

	var err error

	fn.Start, err = d.addr(f[1])
	if err != nil {
		return err
	}

	params, err := d.count(f[2])
	if err != nil {
		return err
	}

	fn.Locals, err = d.count(f[3])
	if err != nil {
		return err
	}

	if len(f)-4 != params {
		return d.errorf("function %v: declares %d params, lists %d addresses", fn.Name, params, len(f)-4)
	}

	for _, s := range f[4:] {
		a, err := d.addr(s)
		if err != nil {
			return err
		}

		fn.Params = append(fn.Params, a)
	}

	d.p.Funcs = append(d.p.Funcs, fn)

	return nil
}

func (d *reader) quad(l string) error {
	f, err := d.fields(l, 4)
	if err != nil {
		return err
	}

	var x [4]ir.Addr

	for i := range x {
		x[i], err = d.addr(f[i])
		if err != nil {
			return err
		}
	}

	d.p.Quads = append(d.p.Quads, ir.Q(ir.OpCode(x[0]), x[1], x[2], x[3]))

	return nil
}

func (d *reader) fields(l string, n int) ([]string, error) {
	f := strings.Split(l, ",")
	if len(f) != n {
		return nil, d.errorf("want %d fields, got %d", n, len(f))
	}

	return f, nil
}

func (d *reader) addr(s string) (ir.Addr, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, d.errorf("bad number: %v", err)
	}

	return ir.Addr(v), nil
}

func (d *reader) count(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0, d.errorf("bad count: %q", s)
	}

	return v, nil
}

func (d *reader) errorf(format string, args ...any) error {
	return LoadError{Line: d.line, Msg: fmt.Sprintf(format, args...)}
}

func (e LoadError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}
