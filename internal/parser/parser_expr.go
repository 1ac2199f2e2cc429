package parser

import (
	"strconv"
	"strings"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/lexer"
)

type (
	prefixParselet func() (ast.Expr, *ParseError)
	infixParselet  func(left ast.Expr) (ast.Expr, *ParseError)
)

// parseExpr is the Pratt-style precedence-climbing entry point.
func (p *Parser) parseExpr(minPrec int) (ast.Expr, *ParseError) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for {
		// A binary operator may continue across a newline: skip ahead to
		// see whether the next non-newline token is an infix operator at
		// a high-enough precedence before deciding the expression ended.
		save := p.pos
		p.skipNewlines()
		prec, ok := precedences[p.curType()]
		if !ok || prec <= minPrec {
			p.pos = save
			return left, nil
		}
		left, err = p.parseInfix(left)
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parsePrefix() (ast.Expr, *ParseError) {
	start := p.spanOf(p.cur())
	switch p.curType() {
	case lexer.MINUS, lexer.BANG, lexer.TILDE:
		op := p.advance().Literal
		operand, err := p.parseExpr(UNARY)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Op: op, Expr: operand}, nil
	case lexer.INT:
		lit := p.advance().Literal
		clean := strings.ReplaceAll(lit, "_", "")
		var v int64
		if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
			u, _ := strconv.ParseUint(clean[2:], 16, 64)
			v = int64(u)
		} else {
			v, _ = strconv.ParseInt(clean, 10, 64)
		}
		return &ast.Literal{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Kind: ast.IntLit, Int: v}, nil
	case lexer.FLOAT:
		lit := strings.ReplaceAll(p.advance().Literal, "_", "")
		f, _ := strconv.ParseFloat(lit, 64)
		return &ast.Literal{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Kind: ast.FloatLit, Float: f}, nil
	case lexer.STRING:
		s := p.advance().Literal
		return &ast.Literal{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Kind: ast.StringLit, Str: s}, nil
	case lexer.INTERP_STRING:
		raw := p.advance().Literal
		return p.parseInterpString(raw, start)
	case lexer.TRUE, lexer.FALSE:
		b := p.advance().Type == lexer.TRUE
		return &ast.Literal{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Kind: ast.BoolLit, Bool: b}, nil
	case lexer.NONE:
		p.advance()
		return &ast.Literal{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Kind: ast.NoneLit}, nil
	case lexer.SELF:
		p.advance()
		return &ast.Identifier{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Name: "self"}, nil
	case lexer.IDENT:
		return p.parseIdentOrStructLiteral(start)
	case lexer.LPAREN:
		return p.parseParenOrClosure(start)
	case lexer.LBRACKET:
		return p.parseArrayOrMapLiteral(start)
	case lexer.LBRACE:
		return p.parseSetLiteral(start)
	case lexer.MATCH:
		return p.parseMatchExpr(start)
	case lexer.SPAWN:
		return p.parseSpawnExpr(start)
	case lexer.YIELD:
		p.advance()
		v, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		return &ast.YieldExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Value: v}, nil
	case lexer.RESULT:
		p.advance()
		return &ast.ResultExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}}, nil
	case lexer.OLD:
		p.advance()
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return &ast.OldExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Inner: inner}, nil
	}
	return nil, p.unexpected()
}

// parseIdentOrStructLiteral disambiguates `Foo` from `Foo { ... }` /
// `Foo {}` by looking ahead past `{` for an immediate `}` or a
// `name:`-shaped field.
func (p *Parser) parseIdentOrStructLiteral(start ast.Span) (ast.Expr, *ParseError) {
	name := p.advance().Literal
	if p.curIs(lexer.LBRACE) && p.looksLikeStructLiteral() {
		return p.parseStructLiteralFields(name, start)
	}
	return &ast.Identifier{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Name: name}, nil
}

func (p *Parser) looksLikeStructLiteral() bool {
	// p.cur() is '{'. Peek past it (and any newlines) for '}' (empty
	// struct literal) or `IDENT :` (a field initializer).
	i := 1
	for p.peekAt(i).Type == lexer.NEWLINE {
		i++
	}
	if p.peekAt(i).Type == lexer.RBRACE {
		return true
	}
	if p.peekAt(i).Type == lexer.IDENT && p.peekAt(i+1).Type == lexer.COLON {
		return true
	}
	return false
}

func (p *Parser) parseStructLiteralFields(name string, start ast.Span) (ast.Expr, *ParseError) {
	p.advance() // '{'
	p.skipNewlines()
	var fields []ast.StructFieldInit
	for !p.curIs(lexer.RBRACE) {
		fname, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.COLON); err != nil {
			return nil, err
		}
		val, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.StructFieldInit{Name: fname.Literal, Value: val})
		p.skipNewlines()
		if p.curIs(lexer.COMMA) {
			p.advance()
			p.skipNewlines()
		}
	}
	p.advance() // '}'
	return &ast.StructLiteral{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, TypeName: name, Fields: fields}, nil
}

func (p *Parser) parseParenOrClosure(start ast.Span) (ast.Expr, *ParseError) {
	// Disambiguate `(expr)` from `(params) => body` by scanning forward
	// for a matching ')' followed by '=>'.
	if p.looksLikeClosureParams() {
		return p.parseClosure(start)
	}
	p.advance() // '('
	p.skipNewlines()
	inner, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return inner, nil
}

func (p *Parser) looksLikeClosureParams() bool {
	depth := 0
	i := 0
	for {
		tok := p.peekAt(i)
		if tok.Type == lexer.EOF {
			return false
		}
		if tok.Type == lexer.LPAREN {
			depth++
		} else if tok.Type == lexer.RPAREN {
			depth--
			if depth == 0 {
				return p.peekAt(i + 1).Type == lexer.FARROW
			}
		}
		i++
		if i > 2000 {
			return false
		}
	}
}

func (p *Parser) parseClosure(start ast.Span) (ast.Expr, *ParseError) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.curIs(lexer.RPAREN) {
		mut := false
		if p.curIs(lexer.MUT) {
			mut = true
			p.advance()
		}
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		var typ ast.TypeExpr
		if p.curIs(lexer.COLON) {
			p.advance()
			typ, err = p.parseType()
			if err != nil {
				return nil, err
			}
		}
		params = append(params, ast.Param{Name: name.Literal, Type: typ, Mut: mut})
		if p.curIs(lexer.COMMA) {
			p.advance()
		}
	}
	p.advance() // ')'
	if _, err := p.expect(lexer.FARROW); err != nil {
		return nil, err
	}
	if p.curIs(lexer.LBRACE) {
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.ClosureExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Params: params, BodyStmt: block}, nil
	}
	body, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	return &ast.ClosureExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Params: params, Body: body}, nil
}

func (p *Parser) parseArrayOrMapLiteral(start ast.Span) (ast.Expr, *ParseError) {
	p.advance() // '['
	p.skipNewlines()
	if p.curIs(lexer.RBRACKET) {
		p.advance()
		return &ast.ArrayLiteral{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}}, nil
	}
	first, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	if p.curIs(lexer.COLON) {
		p.advance()
		val, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		entries := []ast.MapEntry{{Key: first, Value: val}}
		p.skipNewlines()
		for p.curIs(lexer.COMMA) {
			p.advance()
			p.skipNewlines()
			if p.curIs(lexer.RBRACKET) {
				break
			}
			k, err := p.parseExpr(LOWEST)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.COLON); err != nil {
				return nil, err
			}
			v, err := p.parseExpr(LOWEST)
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.MapEntry{Key: k, Value: v})
			p.skipNewlines()
		}
		if _, err := p.expect(lexer.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.MapLiteral{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Entries: entries}, nil
	}
	elems := []ast.Expr{first}
	p.skipNewlines()
	for p.curIs(lexer.COMMA) {
		p.advance()
		p.skipNewlines()
		if p.curIs(lexer.RBRACKET) {
			break
		}
		e, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		p.skipNewlines()
	}
	if _, err := p.expect(lexer.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.ArrayLiteral{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Elems: elems}, nil
}

func (p *Parser) parseSetLiteral(start ast.Span) (ast.Expr, *ParseError) {
	p.advance() // '{'
	p.skipNewlines()
	var elems []ast.Expr
	for !p.curIs(lexer.RBRACE) {
		e, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		p.skipNewlines()
		if p.curIs(lexer.COMMA) {
			p.advance()
			p.skipNewlines()
		}
	}
	p.advance() // '}'
	return &ast.SetLiteral{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Elems: elems}, nil
}

func (p *Parser) parseMatchExpr(start ast.Span) (ast.Expr, *ParseError) {
	p.advance() // 'match'
	subject, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	var arms []ast.MatchArm
	for !p.curIs(lexer.RBRACE) {
		arm, err := p.parseMatchArm()
		if err != nil {
			return nil, err
		}
		arms = append(arms, arm)
		p.skipNewlines()
	}
	p.advance() // '}'
	return &ast.MatchExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Subject: subject, Arms: arms}, nil
}

func (p *Parser) parseSpawnExpr(start ast.Span) (ast.Expr, *ParseError) {
	p.advance() // 'spawn'
	callee, err := p.parseExpr(UNARY)
	if err != nil {
		return nil, err
	}
	call, ok := callee.(*ast.CallExpr)
	if !ok {
		return nil, p.unexpected(lexer.LPAREN)
	}
	return &ast.SpawnExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Call: call}, nil
}

func (p *Parser) parseInfix(left ast.Expr) (ast.Expr, *ParseError) {
	start := left.Position()
	switch p.curType() {
	case lexer.LPAREN:
		return p.parseCall(left, start)
	case lexer.LBRACKET:
		p.advance()
		idx, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.IndexExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Recv: left, Index: idx}, nil
	case lexer.DOT:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if p.curIs(lexer.LPAREN) {
			p.advance()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			prop := false
			if p.curIs(lexer.BANG) {
				prop = true
				p.advance()
			}
			return &ast.MethodCall{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Recv: left, Method: name.Literal, Args: args, Propagate: prop}, nil
		}
		return &ast.FieldAccess{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Recv: left, Field: name.Literal}, nil
	case lexer.BANG:
		p.advance()
		if call, ok := left.(*ast.CallExpr); ok {
			call.Propagate = true
			return call, nil
		}
		return left, nil
	case lexer.QUESTION:
		p.advance()
		return &ast.NullableUnwrap{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Expr: left}, nil
	case lexer.AS:
		p.advance()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &ast.CastExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Expr: left, Type: t}, nil
	case lexer.CATCH:
		p.advance()
		if p.curIs(lexer.IDENT) && p.peekType() == lexer.LBRACE {
			binder := p.advance().Literal
			block, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			return &ast.CatchExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Expr: left, Binder: binder, Block: block}, nil
		}
		fallback, err := p.parseExpr(LOWEST + 1)
		if err != nil {
			return nil, err
		}
		return &ast.CatchExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Expr: left, Fallback: fallback}, nil
	case lexer.DOTDOT, lexer.DOTDOTEQ:
		incl := p.curType() == lexer.DOTDOTEQ
		p.advance()
		end, err := p.parseExpr(LOWEST + 1)
		if err != nil {
			return nil, err
		}
		return &ast.RangeExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Start: left, End: end, Inclusive: incl}, nil
	}

	op := p.advance().Literal
	prec := precedences[p.toks[p.pos-1].Type]
	p.skipNewlines()
	right, err := p.parseExpr(prec)
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseCall(callee ast.Expr, start ast.Span) (ast.Expr, *ParseError) {
	p.advance() // '('
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	prop := false
	if p.curIs(lexer.BANG) {
		prop = true
		p.advance()
	}
	return &ast.CallExpr{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Callee: callee, Args: args, Propagate: prop}, nil
}

func (p *Parser) parseArgList() ([]ast.Expr, *ParseError) {
	p.skipNewlines()
	var args []ast.Expr
	for !p.curIs(lexer.RPAREN) {
		a, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		p.skipNewlines()
		if p.curIs(lexer.COMMA) {
			p.advance()
			p.skipNewlines()
		}
	}
	p.advance() // ')'
	return args, nil
}

// parseInterpString splits the raw `"…{expr}…"` content recorded by the
// lexer into literal fragments and re-enters expression parsing for each
// `{...}` segment by re-lexing and re-parsing its substring.
func (p *Parser) parseInterpString(raw string, start ast.Span) (ast.Expr, *ParseError) {
	var fragments []string
	var exprs []ast.Expr
	var buf strings.Builder
	i := 0
	for i < len(raw) {
		ch := raw[i]
		if ch == '{' {
			fragments = append(fragments, buf.String())
			buf.Reset()
			depth := 1
			j := i + 1
			for j < len(raw) && depth > 0 {
				if raw[j] == '{' {
					depth++
				} else if raw[j] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
				j++
			}
			sub := raw[i+1 : j]
			toks, lexErr := lexer.Lex(sub, p.file)
			if lexErr != nil {
				e := &ParseError{Report: lexErr.Report}
				p.errs = append(p.errs, e)
				return nil, e
			}
			sp := New(toks, p.file)
			e, perr := sp.parseExpr(LOWEST)
			if perr != nil {
				p.errs = append(p.errs, perr)
				return nil, perr
			}
			exprs = append(exprs, e)
			i = j + 1
			continue
		}
		buf.WriteByte(ch)
		i++
	}
	fragments = append(fragments, buf.String())
	return &ast.InterpString{ExprBase: ast.ExprBase{Base: ast.NewBase(p.spanFrom(start))}, Fragments: fragments, Exprs: exprs}, nil
}
