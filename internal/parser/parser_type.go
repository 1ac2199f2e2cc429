package parser

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lexer"
)

// parseType parses a type expression, then applies at most one trailing
// `?` (nullable). `T??` is rejected here rather than left for the type
// checker, since it is a syntactic, not semantic, restriction once the
// first `?` has been consumed.
func (p *Parser) parseType() (ast.TypeExpr, *ParseError) {
	base, err := p.parseTypeAtom()
	if err != nil {
		return nil, err
	}
	if p.curIs(lexer.QUESTION) {
		start := base.Position()
		p.advance()
		if p.curIs(lexer.QUESTION) {
			span := p.spanOf(p.cur())
			e := &ParseError{Report: errors.New("parse", errors.PAR010, "T?? is not a valid type", &span, nil)}
			p.errs = append(p.errs, e)
			return nil, e
		}
		if prim, ok := base.(*PrimitiveNamed); ok && prim.Name == "void" {
			tok := p.cur()
			span := p.spanOf(tok)
			e := &ParseError{Report: errors.New("parse", errors.PAR010, "void? is not a valid type", &span, nil)}
			p.errs = append(p.errs, e)
			return nil, e
		}
		return &ast.NullableType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Inner: base}, nil
	}
	return base, nil
}

// PrimitiveNamed is a tiny marker so parseType can special-case `void?`
// without the type package being involved at parse time.
type PrimitiveNamed = ast.PrimitiveType

func (p *Parser) parseTypeAtom() (ast.TypeExpr, *ParseError) {
	start := p.spanOf(p.cur())
	switch p.curType() {
	case lexer.IDENT:
		name := p.advance().Literal
		switch name {
		case "int", "float", "bool", "string", "void":
			return &ast.PrimitiveType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Name: name}, nil
		}
		var args []ast.TypeExpr
		if p.curIs(lexer.LT) {
			p.advance()
			for !p.curIs(lexer.GT) {
				t, err := p.parseType()
				if err != nil {
					return nil, err
				}
				args = append(args, t)
				if p.curIs(lexer.COMMA) {
					p.advance()
					p.skipNewlines()
				}
			}
			p.advance() // '>'
		}
		switch name {
		case "Stream":
			return &ast.StreamType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Elem: firstOr(args)}, nil
		case "Task":
			return &ast.TaskType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Elem: firstOr(args)}, nil
		case "Channel":
			return &ast.ChannelType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Elem: firstOr(args)}, nil
		}
		return &ast.NamedType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Name: name, TypeArgs: args}, nil
	case lexer.SELF:
		p.advance()
		return &ast.SelfType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}}, nil
	case lexer.LBRACKET:
		p.advance()
		p.skipNewlines()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if p.curIs(lexer.COLON) {
			p.advance()
			p.skipNewlines()
			val, err := p.parseType()
			if err != nil {
				return nil, err
			}
			p.skipNewlines()
			if _, err := p.expect(lexer.RBRACKET); err != nil {
				return nil, err
			}
			return &ast.MapType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Key: elem, Val: val}, nil
		}
		p.skipNewlines()
		if _, err := p.expect(lexer.RBRACKET); err != nil {
			return nil, err
		}
		return &ast.ArrayType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Elem: elem}, nil
	case lexer.LBRACE:
		p.advance()
		p.skipNewlines()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		p.skipNewlines()
		if _, err := p.expect(lexer.RBRACE); err != nil {
			return nil, err
		}
		return &ast.SetType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Elem: elem}, nil
	case lexer.FN:
		p.advance()
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		var params []ast.TypeExpr
		for !p.curIs(lexer.RPAREN) {
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			params = append(params, t)
			if p.curIs(lexer.COMMA) {
				p.advance()
			}
		}
		p.advance() // ')'
		var ret ast.TypeExpr
		if !p.curIs(lexer.NEWLINE) && !p.curIs(lexer.RPAREN) && !p.curIs(lexer.COMMA) && !p.curIs(lexer.RBRACE) && !p.curIs(lexer.EOF) {
			r, err := p.parseType()
			if err != nil {
				return nil, err
			}
			ret = r
		}
		return &ast.FnType{NamedBase: ast.NamedBase{Base: ast.NewBase(p.spanFrom(start))}, Params: params, Ret: ret}, nil
	}
	return nil, p.unexpected(lexer.IDENT)
}

func firstOr(args []ast.TypeExpr) ast.TypeExpr {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
