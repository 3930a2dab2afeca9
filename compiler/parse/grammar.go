package parse

import (
	"context"
	"strconv"

	"fortio.org/safecast"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler/ast"
	"github.com/slowlang/duck/compiler/tp"
)

func (s *State) parseProgram(ctx context.Context, st int) (p *ast.Program, i int, err error) {
	tk, tst, i := s.next(ctx, st)
	if !isKeyword(tk, "program") {
		return nil, tst, NewUnexpected(tk, Keyword("program"))
	}

	tk, tst, i = s.next(ctx, i)
	name, ok := tk.(Ident)
	if !ok {
		return nil, tst, NewUnexpected(tk, Ident{})
	}

	p = &ast.Program{
		Base: ast.Base{Pos: st},
		ID:   string(name),
	}

	i, err = s.expectChar(ctx, i, ';')
	if err != nil {
		return
	}

	p.Vars, i, err = s.parseVars(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "global vars")
	}

	for {
		tk, tst, _ = s.next(ctx, i)
		if !isKeyword(tk, "void") {
			break
		}

		var f *ast.Func
		f, i, err = s.parseFunc(ctx, tst)
		if err != nil {
			return nil, i, err
		}

		p.Funcs = append(p.Funcs, f)
	}

	tk, tst, i = s.next(ctx, i)
	if !isKeyword(tk, "main") {
		return nil, tst, NewUnexpected(tk, Keyword("main"), Keyword("void"))
	}

	p.Main, i, err = s.parseBody(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "main")
	}

	tk, tst, i = s.next(ctx, i)
	if !isKeyword(tk, "end") {
		return nil, tst, NewUnexpected(tk, Keyword("end"))
	}

	p.End = i

	return p, i, nil
}

// parseVars parses any number of var sections.
func (s *State) parseVars(ctx context.Context, st int) (vars []ast.Var, i int, err error) {
	i = st

	for {
		tk, _, e := s.next(ctx, i)
		if !isKeyword(tk, "var") {
			return vars, i, nil
		}

		i = e

		for first := true; ; first = false {
			tk, tst, _ := s.next(ctx, i)
			if _, ok := tk.(Ident); !ok {
				if first {
					return nil, tst, NewUnexpected(tk, Ident{})
				}

				break
			}

			var l []ast.Var
			l, i, err = s.parseVarDecl(ctx, i)
			if err != nil {
				return nil, i, err
			}

			vars = append(vars, l...)
		}
	}
}

// parseVarDecl parses "a, b: type;".
func (s *State) parseVarDecl(ctx context.Context, st int) (vars []ast.Var, i int, err error) {
	i = st

	for {
		tk, tst, e := s.next(ctx, i)
		name, ok := tk.(Ident)
		if !ok {
			return nil, tst, NewUnexpected(tk, Ident{})
		}

		vars = append(vars, ast.Var{Base: ast.Base{Pos: tst, End: e}, ID: string(name)})
		i = e

		tk, tst, e = s.next(ctx, i)
		if !isChar(tk, ',') && !isChar(tk, ':') {
			return nil, tst, NewUnexpected(tk, Char(','), Char(':'))
		}

		i = e

		if isChar(tk, ':') {
			break
		}
	}

	t, i, err := s.parseType(ctx, i)
	if err != nil {
		return nil, i, err
	}

	for j := range vars {
		vars[j].Type = t
	}

	i, err = s.expectChar(ctx, i, ';')

	return vars, i, err
}

func (s *State) parseType(ctx context.Context, st int) (t tp.Type, i int, err error) {
	tk, tst, i := s.next(ctx, st)

	if kw, ok := tk.(Keyword); ok {
		if t, ok := tp.ParseType(string(kw)); ok {
			return t, i, nil
		}
	}

	return tp.Invalid, tst, NewUnexpected(tk, Keyword("int"), Keyword("float"), Keyword("bool"))
}

// parseFunc parses "void name(a: int, ...) [ vars body ]".
func (s *State) parseFunc(ctx context.Context, st int) (f *ast.Func, i int, err error) {
	_, _, i = s.next(ctx, st) // void

	tk, tst, i := s.next(ctx, i)
	name, ok := tk.(Ident)
	if !ok {
		return nil, tst, NewUnexpected(tk, Ident{})
	}

	f = &ast.Func{
		Base: ast.Base{Pos: st},
		ID:   string(name),
	}

	f.Params, i, err = s.parseParams(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "func %s params", name)
	}

	i, err = s.expectChar(ctx, i, '[')
	if err != nil {
		return nil, i, err
	}

	f.Vars, i, err = s.parseVars(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "func %s vars", name)
	}

	f.Body, i, err = s.parseBody(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "func %s", name)
	}

	i, err = s.expectChar(ctx, i, ']')
	if err != nil {
		return nil, i, err
	}

	i = s.optChar(ctx, i, ';')

	f.End = i

	tlog.SpanFromContext(ctx).V("parse").Printw("func", "name", f.ID, "params", len(f.Params), "vars", len(f.Vars), "stmts", len(f.Body))

	return f, i, nil
}

func (s *State) parseParams(ctx context.Context, st int) (l []ast.Var, i int, err error) {
	i, err = s.expectChar(ctx, st, '(')
	if err != nil {
		return nil, i, err
	}

	tk, _, e := s.next(ctx, i)
	if isChar(tk, ')') {
		return nil, e, nil
	}

	for {
		tk, tst, e := s.next(ctx, i)
		name, ok := tk.(Ident)
		if !ok {
			return nil, tst, NewUnexpected(tk, Ident{})
		}

		i, err = s.expectChar(ctx, e, ':')
		if err != nil {
			return nil, i, err
		}

		var t tp.Type
		t, i, err = s.parseType(ctx, i)
		if err != nil {
			return nil, i, err
		}

		l = append(l, ast.Var{Base: ast.Base{Pos: tst, End: i}, ID: string(name), Type: t})

		tk, tst, e = s.next(ctx, i)
		switch {
		case isChar(tk, ')'):
			return l, e, nil
		case isChar(tk, ','):
			i = e
		default:
			return nil, tst, NewUnexpected(tk, Char(','), Char(')'))
		}
	}
}

// parseBody parses "{ stmt* }". Semicolons between statements are optional.
func (s *State) parseBody(ctx context.Context, st int) (l []ast.Stmt, i int, err error) {
	i, err = s.expectChar(ctx, st, '{')
	if err != nil {
		return nil, i, err
	}

	l = []ast.Stmt{}

	for {
		tk, tst, e := s.next(ctx, i)

		switch {
		case isChar(tk, ';'):
			i = e
			continue
		case isChar(tk, '}'):
			return l, e, nil
		}

		var x ast.Stmt
		x, i, err = s.parseStatement(ctx, tst)
		if err != nil {
			return nil, i, err
		}

		l = append(l, x)
	}
}

func (s *State) parseStatement(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, tst, i := s.next(ctx, st)

	switch tk := tk.(type) {
	case Ident:
		nx, _, _ := s.next(ctx, i)
		if isChar(nx, '(') {
			return s.parseCall(ctx, tst, string(tk), i)
		}

		return s.parseAssignment(ctx, tst, string(tk), i)
	case Keyword:
		switch string(tk) {
		case "if":
			return s.parseIf(ctx, tst, i)
		case "while":
			return s.parseWhile(ctx, tst, i)
		case "print":
			return s.parsePrint(ctx, tst, i)
		}
	}

	return nil, tst, NewUnexpected(tk, Ident{}, Keyword("if"), Keyword("while"), Keyword("print"))
}

func (s *State) parseAssignment(ctx context.Context, st int, name string, vst int) (x ast.Stmt, i int, err error) {
	i, err = s.expectChar(ctx, vst, '=')
	if err != nil {
		return nil, i, err
	}

	e, i, err := s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "assign %v", name)
	}

	return &ast.Assign{Base: ast.Base{Pos: st, End: i}, ID: name, Expr: e}, i, nil
}

func (s *State) parseCall(ctx context.Context, st int, name string, vst int) (x ast.Stmt, i int, err error) {
	args, i, err := s.parseArgs(ctx, vst)
	if err != nil {
		return nil, i, errors.Wrap(err, "call %v", name)
	}

	return &ast.Call{Base: ast.Base{Pos: st, End: i}, ID: name, Args: args}, i, nil
}

func (s *State) parseArgs(ctx context.Context, st int) (l []ast.Expr, i int, err error) {
	i, err = s.expectChar(ctx, st, '(')
	if err != nil {
		return nil, i, err
	}

	tk, _, e := s.next(ctx, i)
	if isChar(tk, ')') {
		return nil, e, nil
	}

	for {
		var x ast.Expr
		x, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, err
		}

		l = append(l, x)

		tk, tst, e := s.next(ctx, i)
		switch {
		case isChar(tk, ')'):
			return l, e, nil
		case isChar(tk, ','):
			i = e
		default:
			return nil, tst, NewUnexpected(tk, Char(','), Char(')'))
		}
	}
}

func (s *State) parseIf(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	c, i, err := s.parseCond(ctx, vst)
	if err != nil {
		return nil, i, errors.Wrap(err, "if")
	}

	then, i, err := s.parseBody(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "then")
	}

	r := &ast.If{Cond: c, Then: then}

	tk, _, e := s.next(ctx, i)
	if isKeyword(tk, "else") {
		r.Else, i, err = s.parseBody(ctx, e)
		if err != nil {
			return nil, i, errors.Wrap(err, "else")
		}
	}

	r.Base = ast.Base{Pos: st, End: i}

	return r, i, nil
}

func (s *State) parseWhile(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	c, i, err := s.parseCond(ctx, vst)
	if err != nil {
		return nil, i, errors.Wrap(err, "while")
	}

	tk, tst, i := s.next(ctx, i)
	if !isKeyword(tk, "do") {
		return nil, tst, NewUnexpected(tk, Keyword("do"))
	}

	body, i, err := s.parseBody(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "while body")
	}

	return &ast.While{Base: ast.Base{Pos: st, End: i}, Cond: c, Body: body}, i, nil
}

func (s *State) parseCond(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	i, err = s.expectChar(ctx, st, '(')
	if err != nil {
		return nil, i, err
	}

	x, i, err = s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expectChar(ctx, i, ')')

	return x, i, err
}

func (s *State) parsePrint(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	i, err = s.expectChar(ctx, vst, '(')
	if err != nil {
		return nil, i, err
	}

	r := &ast.Print{}

	tk, _, e := s.next(ctx, i)
	if str, ok := tk.(String); ok {
		v := string(str)
		r.String = &v
		i = e
	} else {
		r.Expr, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "print")
		}
	}

	i, err = s.expectChar(ctx, i, ')')
	if err != nil {
		return nil, i, err
	}

	r.Base = ast.Base{Pos: st, End: i}

	return r, i, nil
}

// parseExpr parses an optional comparison of two sums.
func (s *State) parseExpr(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	x, i, err = s.parseBinary(ctx, st, tp.PrecAdd)
	if err != nil {
		return nil, i, err
	}

	tk, _, e := s.next(ctx, i)
	op, ok := operator(tk, tp.PrecCmp)
	if !ok {
		return x, i, nil
	}

	r, i, err := s.parseBinary(ctx, e, tp.PrecAdd)
	if err != nil {
		return nil, i, err
	}

	return &ast.BinaryOp{Base: ast.Base{Pos: st, End: i}, Left: x, Op: op, Right: r}, i, nil
}

// parseBinary parses a left associative chain of operators of the prec tier.
func (s *State) parseBinary(ctx context.Context, st int, prec int) (x ast.Expr, i int, err error) {
	sub := s.parseFactor
	if prec < tp.PrecMul {
		sub = func(ctx context.Context, st int) (ast.Expr, int, error) {
			return s.parseBinary(ctx, st, prec+1)
		}
	}

	x, i, err = sub(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for {
		tk, _, e := s.next(ctx, i)
		op, ok := operator(tk, prec)
		if !ok {
			return x, i, nil
		}

		var r ast.Expr
		r, i, err = sub(ctx, e)
		if err != nil {
			return nil, i, err
		}

		x = &ast.BinaryOp{Base: ast.Base{Pos: st, End: i}, Left: x, Op: op, Right: r}
	}
}

func (s *State) parseFactor(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	tk, tst, i := s.next(ctx, st)

	switch tk := tk.(type) {
	case Char:
		if tk != '(' {
			break
		}

		x, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expectChar(ctx, i, ')')

		return x, i, err
	case Ident:
		return &ast.Ident{Base: ast.Base{Pos: tst, End: i}, Name: string(tk)}, i, nil
	case Keyword:
		switch string(tk) {
		case "true", "false":
			return &ast.BoolLit{Base: ast.Base{Pos: tst, End: i}, Value: string(tk) == "true"}, i, nil
		}
	case Oper:
		if string(tk) != "-" && string(tk) != "+" {
			break
		}

		num, nst, e := s.next(ctx, i)
		n, ok := num.(Number)
		if !ok || nst != i {
			return nil, nst, NewUnexpected(num, Number{})
		}

		return s.number(tst, e, string(tk)+string(n))
	case Number:
		return s.number(tst, i, string(tk))
	}

	return nil, tst, NewUnexpected(tk, Char('('), Ident{}, Number{}, Keyword("true"), Keyword("false"))
}

func (s *State) number(st, end int, text string) (x ast.Expr, i int, err error) {
	b := ast.Base{Pos: st, End: end}

	if v, perr := strconv.ParseInt(text, 10, 64); perr == nil {
		n, err := safecast.Conv[int32](v)
		if err != nil {
			return nil, st, errors.Wrap(err, "int literal %v", text)
		}

		return &ast.IntLit{Base: b, Value: n}, end, nil
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, st, errors.Wrap(err, "number literal")
	}

	return &ast.FloatLit{Base: b, Value: v}, end, nil
}

func operator(tk Token, prec int) (tp.Op, bool) {
	o, ok := tk.(Oper)
	if !ok {
		return 0, false
	}

	op, ok := tp.ParseOp(string(o))
	if !ok || op.Prec() != prec {
		return 0, false
	}

	return op, true
}

func (s *State) expectChar(ctx context.Context, st int, c byte) (i int, err error) {
	tk, tst, i := s.next(ctx, st)
	if !isChar(tk, c) {
		return tst, NewUnexpected(tk, Char(c))
	}

	return i, nil
}

func (s *State) optChar(ctx context.Context, st int, c byte) int {
	tk, _, i := s.next(ctx, st)
	if isChar(tk, c) {
		return i
	}

	return st
}
