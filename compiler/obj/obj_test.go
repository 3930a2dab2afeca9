package obj

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/duck/compiler/ir"
)

const n = ir.Nil

func sample() *ir.Program {
	return &ir.Program{
		Ints:    []ir.IntConst{{Value: 10, Addr: 4000}, {Value: -3, Addr: 4001}},
		Floats:  []ir.FloatConst{{Value: 20.5, Addr: 4500}, {Value: 1e-7, Addr: 4501}},
		Strings: []ir.StringConst{{Value: `say "hi", x`, Addr: 4900}},
		Funcs: []ir.Func{
			{Name: "add", Start: 1, Params: []ir.Addr{1000, 2000}, Locals: 1},
			{Name: "main", Start: 4},
		},
		Quads: []ir.Quad{
			ir.Q(ir.GOTO, n, n, 4),
			ir.Q(ir.ADD, 1000, 2000, 6000),
			ir.Q(ir.ASSIGN, 6000, n, 2001),
			ir.Q(ir.ENDFUNC, n, n, n),
			ir.Q(ir.ERA, 1, n, n),
			ir.Q(ir.PARAM, 4000, n, 0),
			ir.Q(ir.PARAM, 4500, n, 1),
			ir.Q(ir.GOSUB, 1, n, n),
			ir.Q(ir.PRINT, 4900, n, n),
			ir.Q(ir.HALT, n, n, n),
		},
	}
}

func TestTextRoundTrip(t *testing.T) {
	p := sample()

	var b bytes.Buffer
	require.NoError(t, WriteText(&b, p))

	t.Logf("object:\n%s", b.Bytes())

	assert.Contains(t, b.String(), "add,1,2,1,1000,2000\n")
	assert.Contains(t, b.String(), "41,4500,-1,1\n")

	q, err := ReadText(&b)
	require.NoError(t, err)

	assert.Equal(t, p, q)
}

func TestMsgpackRoundTrip(t *testing.T) {
	p := sample()

	var b bytes.Buffer
	require.NoError(t, WriteMsgpack(&b, p))

	q, err := ReadMsgpack(&b)
	require.NoError(t, err)

	assert.Equal(t, p.Quads, q.Quads)
	assert.Equal(t, p.Funcs, q.Funcs)
	assert.Equal(t, p.Ints, q.Ints)
	assert.Equal(t, p.Floats, q.Floats)
	assert.Equal(t, p.Strings, q.Strings)
}

func TestReadTextTolerant(t *testing.T) {
	src := `
// only quads here

QUADRUPLES:
  30,-1,-1,1
// halt
50,-1,-1,-1
END_QUADRUPLES
`

	p, err := ReadText(strings.NewReader(src))
	require.NoError(t, err)

	assert.Empty(t, p.Ints)
	assert.Empty(t, p.Funcs)
	assert.Equal(t, []ir.Quad{
		ir.Q(ir.GOTO, n, n, 1),
		ir.Q(ir.HALT, n, n, n),
	}, p.Quads)
}

func TestReadTextErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
		line int
	}{
		{"func_params", "FUNCTIONS:\nadd,1,2,0,1000\nEND_FUNCTIONS\n", 2},
		{"func_short", "FUNCTIONS:\nadd,1,2\nEND_FUNCTIONS\n", 2},
		{"bad_number", "CONSTANTS_INT:\n1x,4000\nEND_CONSTANTS_INT\n", 2},
		{"int_range", "CONSTANTS_INT:\n3000000000,4000\nEND_CONSTANTS_INT\n", 2},
		{"bad_float", "CONSTANTS_FLOAT:\nabc,4500\nEND_CONSTANTS_FLOAT\n", 2},
		{"quad_fields", "QUADRUPLES:\n1,2,3\nEND_QUADRUPLES\n", 2},
		{"unknown_section", "// x\nSTUFF:\nEND_STUFF\n", 2},
		{"outside", "1,2,3,4\n", 1},
		{"mismatched_end", "QUADRUPLES:\nEND_FUNCTIONS\n", 2},
		{"unclosed", "QUADRUPLES:\n50,-1,-1,-1\n", 2},
		{"bad_string", "CONSTANTS_STRING:\n4900,abc\nEND_CONSTANTS_STRING\n", 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadText(strings.NewReader(tc.src))
			require.Error(t, err)

			var le LoadError
			require.True(t, errors.As(err, &le), "%v", err)
			assert.Equal(t, tc.line, le.Line, "%v", err)
		})
	}
}

func TestFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, f := range []Format{Text, Msgpack} {
		t.Run(string(f), func(t *testing.T) {
			path := filepath.Join(dir, "sub", "prog"+f.Ext())

			assert.Equal(t, f, FormatOf(path))

			require.NoError(t, WriteFile(ctx, path, sample(), f))

			// overwrite in place
			require.NoError(t, WriteFile(ctx, path, sample(), f))

			p, err := ReadFile(ctx, path)
			require.NoError(t, err)

			assert.Equal(t, sample().Quads, p.Quads)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, Text, f)

	f, err = ParseFormat("MsgPack")
	require.NoError(t, err)
	assert.Equal(t, Msgpack, f)

	_, err = ParseFormat("json")
	assert.Error(t, err)
}
