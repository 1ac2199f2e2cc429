package parser

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/lexer"
)

// parseBlock parses `{ stmt* }`. Statements are newline-terminated;
// blank lines between them are insignificant.
func (p *Parser) parseBlock() (*ast.Block, *ParseError) {
	start := p.spanOf(p.cur())
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	var stmts []ast.Stmt
	for !p.curIs(lexer.RBRACE) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		p.skipNewlines()
	}
	p.advance() // '}'
	return &ast.Block{Base: ast.NewBase(p.spanFrom(start)), Stmts: stmts}, nil
}

func (p *Parser) parseStmt() (ast.Stmt, *ParseError) {
	start := p.spanOf(p.cur())
	switch p.curType() {
	case lexer.LET:
		return p.parseLetStmt(start)
	case lexer.IF:
		return p.parseIfStmt(start)
	case lexer.WHILE:
		return p.parseWhileStmt(start)
	case lexer.FOR:
		return p.parseForStmt(start)
	case lexer.MATCH:
		m, err := p.parseMatchExpr(start)
		if err != nil {
			return nil, err
		}
		return &ast.MatchStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Match: m.(*ast.MatchExpr)}, nil
	case lexer.RETURN:
		p.advance()
		var v ast.Expr
		if !p.curIs(lexer.NEWLINE) && !p.curIs(lexer.RBRACE) {
			var err *ParseError
			v, err = p.parseExpr(LOWEST)
			if err != nil {
				return nil, err
			}
		}
		return &ast.ReturnStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Value: v}, nil
	case lexer.BREAK:
		p.advance()
		return &ast.BreakStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}}, nil
	case lexer.CONTINUE:
		p.advance()
		return &ast.ContinueStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}}, nil
	case lexer.RAISE:
		p.advance()
		v, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		return &ast.RaiseStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Value: v}, nil
	}
	return p.parseExprOrAssignStmt(start)
}

func (p *Parser) parseLetStmt(start ast.Span) (ast.Stmt, *ParseError) {
	p.advance() // 'let'
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
	if _, err := p.expect(lexer.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	return &ast.LetStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Name: name.Literal, Mut: mut, Type: typ, Value: val}, nil
}

func (p *Parser) parseIfStmt(start ast.Span) (ast.Stmt, *ParseError) {
	p.advance() // 'if'
	cond, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	st := &ast.IfStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Cond: cond, Then: then}
	save := p.pos
	p.skipNewlines()
	if p.curIs(lexer.ELSE) {
		p.advance()
		if p.curIs(lexer.IF) {
			elseStart := p.spanOf(p.cur())
			inner, err := p.parseIfStmt(elseStart)
			if err != nil {
				return nil, err
			}
			st.Else = &ast.Block{Base: ast.NewBase(elseStart), Stmts: []ast.Stmt{inner}}
		} else {
			block, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			st.Else = block
		}
	} else {
		p.pos = save
	}
	return st, nil
}

func (p *Parser) parseWhileStmt(start ast.Span) (ast.Stmt, *ParseError) {
	p.advance() // 'while'
	cond, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Cond: cond, Body: body}, nil
}

func (p *Parser) parseForStmt(start ast.Span) (ast.Stmt, *ParseError) {
	p.advance() // 'for'
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.IN); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Name: name.Literal, Iter: iter, Body: body}, nil
}

var assignOps = map[lexer.TokenType]string{
	lexer.ASSIGN: "=", lexer.PLUSEQ: "+=", lexer.MINUSEQ: "-=",
	lexer.STAREQ: "*=", lexer.SLASHEQ: "/=", lexer.PERCENTEQ: "%=",
}

func (p *Parser) parseExprOrAssignStmt(start ast.Span) (ast.Stmt, *ParseError) {
	e, err := p.parseExpr(LOWEST)
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.curType()]; ok {
		p.advance()
		rhs, err := p.parseExpr(LOWEST)
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Target: e, Op: op, Value: rhs}, nil
	}
	return &ast.ExprStmt{StmtBase: ast.StmtBase{Base: ast.NewBase(p.spanFrom(start))}, Expr: e}, nil
}

// looksLikeBindList distinguishes a match arm's `{ name, name }` bind
// list from its following `{ ... }` body block: a bind list holds only
// bare names separated by commas, while a body starts with a statement
// (most tellingly, a keyword) whenever it isn't itself a single name.
func (p *Parser) looksLikeBindList() bool {
	i := 1
	for p.peekAt(i).Type == lexer.NEWLINE {
		i++
	}
	if p.peekAt(i).Type == lexer.RBRACE {
		return true
	}
	if p.peekAt(i).Type != lexer.IDENT {
		return false
	}
	j := i + 1
	for p.peekAt(j).Type == lexer.NEWLINE {
		j++
	}
	return p.peekAt(j).Type == lexer.COMMA || p.peekAt(j).Type == lexer.RBRACE
}

// parseMatchArm parses one `Enum.Variant [{binds}] block` or wildcard
// `_ block` arm of a match expression.
func (p *Parser) parseMatchArm() (ast.MatchArm, *ParseError) {
	if p.curIs(lexer.IDENT) && p.cur().Literal == "_" {
		p.advance()
		body, err := p.parseBlock()
		if err != nil {
			return ast.MatchArm{}, err
		}
		return ast.MatchArm{IsWildcard: true, Body: body}, nil
	}
	enumName, err := p.expect(lexer.IDENT)
	if err != nil {
		return ast.MatchArm{}, err
	}
	if _, err := p.expect(lexer.DOT); err != nil {
		return ast.MatchArm{}, err
	}
	variant, err := p.expect(lexer.IDENT)
	if err != nil {
		return ast.MatchArm{}, err
	}
	var binds []string
	if p.curIs(lexer.LBRACE) && p.looksLikeBindList() {
		p.advance()
		p.skipNewlines()
		for !p.curIs(lexer.RBRACE) {
			b, err := p.expect(lexer.IDENT)
			if err != nil {
				return ast.MatchArm{}, err
			}
			binds = append(binds, b.Literal)
			p.skipNewlines()
			if p.curIs(lexer.COMMA) {
				p.advance()
				p.skipNewlines()
			}
		}
		p.advance() // '}'
	}
	body, err := p.parseBlock()
	if err != nil {
		return ast.MatchArm{}, err
	}
	return ast.MatchArm{EnumName: enumName.Literal, VariantName: variant.Literal, Binds: binds, Body: body}, nil
}
