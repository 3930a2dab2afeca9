package obj

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ir"
)

type (
	Format string

	// binary is the msgpack envelope of a program.
	binary struct {
		Magic   string      `msgpack:"magic"`
		Version int         `msgpack:"version"`
		Program *ir.Program `msgpack:"program"`
	}
)

const (
	Text    Format = "text"
	Msgpack Format = "msgpack"
)

const (
	TextExt   = ".duck.o"
	BinaryExt = ".duckb"
)

const (
	magic   = "duck"
	version = 1
)

// ParseFormat accepts the config and flag spelling of a format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case Text, "":
		return Text, nil
	case Msgpack, "binary":
		return Msgpack, nil
	}

	return "", errors.New("unknown object format: %q", s)
}

// FormatOf guesses the format by file extension.
func FormatOf(path string) Format {
	if strings.HasSuffix(path, BinaryExt) {
		return Msgpack
	}

	return Text
}

func (f Format) Ext() string {
	if f == Msgpack {
		return BinaryExt
	}

	return TextExt
}

func Encode(w io.Writer, p *ir.Program, f Format) error {
	switch f {
	case Text:
		return WriteText(w, p)
	case Msgpack:
		return WriteMsgpack(w, p)
	default:
		return errors.New("unsupported format: %v", f)
	}
}

func Decode(r io.Reader, f Format) (*ir.Program, error) {
	switch f {
	case Text:
		return ReadText(r)
	case Msgpack:
		return ReadMsgpack(r)
	default:
		return nil, errors.New("unsupported format: %v", f)
	}
}

func WriteMsgpack(w io.Writer, p *ir.Program) error {
	enc := msgpack.NewEncoder(w)

	err := enc.Encode(binary{Magic: magic, Version: version, Program: p})
	if err != nil {
		return errors.Wrap(err, "encode")
	}

	return nil
}

func ReadMsgpack(r io.Reader) (*ir.Program, error) {
	var x binary

	dec := msgpack.NewDecoder(r)

	err := dec.Decode(&x)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	if x.Magic != magic {
		return nil, errors.New("not a duck object: magic %q", x.Magic)
	}

	if x.Version != version {
		return nil, errors.New("unsupported object version: %d", x.Version)
	}

	if x.Program == nil {
		return &ir.Program{}, nil
	}

	return x.Program, nil
}

// WriteFile atomically replaces path with the encoded program.
// Concurrent writers of the same path are serialized with a lock file.
func WriteFile(ctx context.Context, path string, p *ir.Program, f Format) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "obj: write", "path", path, "format", f)
	defer tr.Finish("err", &err)

	var buf bytes.Buffer

	err = Encode(&buf, p, f)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)

	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return errors.Wrap(err, "mkdir")
	}

	lock := flock.New(path + ".lock")

	err = lock.Lock()
	if err != nil {
		return errors.Wrap(err, "lock")
	}

	defer func() {
		e := lock.Unlock()
		if err == nil && e != nil {
			err = errors.Wrap(e, "unlock")
		}
	}()

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	_, err = tmp.Write(buf.Bytes())
	if err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write")
	}

	err = tmp.Close()
	if err != nil {
		return errors.Wrap(err, "close")
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return errors.Wrap(err, "rename")
	}

	tr.Printw("written", "size", buf.Len(), "quads", len(p.Quads))

	return nil
}

// ReadFile decodes the object file at path, choosing the format by extension.
func ReadFile(ctx context.Context, path string) (p *ir.Program, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "obj: read", "path", path)
	defer tr.Finish("err", &err)

	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	defer func() {
		e := fd.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close")
		}
	}()

	p, err = Decode(fd, FormatOf(path))
	if err != nil {
		return nil, errors.Wrap(err, "%v", path)
	}

	tr.Printw("loaded", "quads", len(p.Quads), "funcs", len(p.Funcs), "ints", len(p.Ints), "floats", len(p.Floats))

	return p, nil
}
