package parse

import (
	"context"
	"fmt"
	"strings"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

type (
	Token interface{}

	Char    byte
	Keyword []byte
	Ident   []byte
	Number  []byte
	Oper    []byte

	// String is a string literal without the quotes.
	String []byte

	// EOF is returned at the end of input.
	EOF struct{}

	UnexpectedError struct {
		Token Token
		Want  []Token
	}
)

var keywords = map[string]struct{}{
	"program": {},
	"var":     {},
	"void":    {},
	"main":    {},
	"end":     {},
	"if":      {},
	"else":    {},
	"while":   {},
	"do":      {},
	"print":   {},
	"int":     {},
	"float":   {},
	"bool":    {},
	"true":    {},
	"false":   {},
}

// next returns the token at st, the offset it starts at and the offset after it.
func (s *State) next(ctx context.Context, st int) (tk Token, tst int, i int) {
	if tr := tlog.SpanFromContext(ctx); tr.If("next_token") {
		defer func(st int) {
			tr.Printw("next token", "st", st, "tk", tk, "tst", tst, "i", i, "from", loc.Callers(1, 3))
		}(st)
	}

	st = skipSpaces(s.b, st)
	i = st

	if i == len(s.b) {
		return EOF{}, st, i
	}

	c := s.b[i]

	switch c {
	case '[', ']', '{', '}', '(', ')', ';', ',', ':':
		return Char(c), st, i + 1
	case '+', '-', '*', '/', '>', '<':
		return Oper(s.b[i : i+1]), st, i + 1
	case '=', '!':
		if i+1 < len(s.b) && s.b[i+1] == '=' {
			return Oper(s.b[i : i+2]), st, i + 2
		}

		return Char(c), st, i + 1
	case '"':
		e := i + 1
		for e < len(s.b) && s.b[e] != '"' && s.b[e] != '\n' {
			e++
		}

		if e == len(s.b) || s.b[e] != '"' {
			return Char(c), st, i + 1
		}

		return String(s.b[i+1 : e]), st, e + 1
	}

	switch {
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
		e := skipIdent(s.b, i)

		if _, ok := keywords[string(s.b[i:e])]; ok {
			return Keyword(s.b[i:e]), st, e
		}

		return Ident(s.b[i:e]), st, e
	case c >= '0' && c <= '9':
		e := skipNum(s.b, i)
		return Number(s.b[i:e]), st, e
	default:
		return Char(c), st, i + 1
	}
}

func NewUnexpected(got Token, want ...Token) error {
	return UnexpectedError{
		Token: got,
		Want:  want,
	}
}

func (e UnexpectedError) Error() string {
	l := make([]string, len(e.Want))

	for i, w := range e.Want {
		l[i] = describe(w)
	}

	return fmt.Sprintf("unexpected %v, want %v", describe(e.Token), strings.Join(l, " or "))
}

func describe(tk Token) string {
	switch tk := tk.(type) {
	case Char:
		return fmt.Sprintf("%q", string(tk))
	case Oper:
		if len(tk) == 0 {
			return "operator"
		}

		return fmt.Sprintf("%q", string(tk))
	case Keyword:
		if len(tk) == 0 {
			return "keyword"
		}

		return fmt.Sprintf("%q", string(tk))
	case Ident:
		if len(tk) == 0 {
			return "identifier"
		}

		return fmt.Sprintf("identifier %q", string(tk))
	case Number:
		if len(tk) == 0 {
			return "number"
		}

		return fmt.Sprintf("number %s", []byte(tk))
	case String:
		if tk == nil {
			return "string"
		}

		return fmt.Sprintf("string %q", string(tk))
	case EOF:
		return "end of file"
	default:
		return fmt.Sprintf("%T", tk)
	}
}

func isChar(tk Token, c byte) bool {
	x, ok := tk.(Char)
	return ok && x == Char(c)
}

func isKeyword(tk Token, kw string) bool {
	x, ok := tk.(Keyword)
	return ok && string(x) == kw
}

// skipNum skips digits with an optional fraction and exponent.
func skipNum(b []byte, i int) int {
	i = skipDigits(b, i)

	if i+1 < len(b) && b[i] == '.' && b[i+1] >= '0' && b[i+1] <= '9' {
		i = skipDigits(b, i+1)
	}

	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		j := i + 1
		if j < len(b) && (b[j] == '+' || b[j] == '-') {
			j++
		}

		if j < len(b) && b[j] >= '0' && b[j] <= '9' {
			i = skipDigits(b, j)
		}
	}

	return i
}

func skipDigits(b []byte, i int) int {
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}

	return i
}

func skipIdent(b []byte, i int) int {
	for i < len(b) && (b[i] >= 'a' && b[i] <= 'z' || b[i] >= 'A' && b[i] <= 'Z' || b[i] >= '0' && b[i] <= '9' || b[i] == '_') {
		i++
	}

	return i
}

// skipSpaces skips whitespace and line comments.
func skipSpaces(b []byte, i int) int {
	for i < len(b) {
		switch {
		case b[i] == ' ' || b[i] == '\t' || b[i] == '\r' || b[i] == '\n':
			i++
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '/':
			for i < len(b) && b[i] != '\n' {
				i++
			}
		default:
			return i
		}
	}

	return i
}

func (c Char) String() string {
	return string(c)
}
