package parser

import (
	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lexer"
)

func (p *Parser) parseDecl() (ast.Decl, *ParseError) {
	pub := false
	if p.curIs(lexer.PUB) {
		pub = true
		p.advance()
	}
	switch p.curType() {
	case lexer.FN:
		return p.parseFuncDecl(pub)
	case lexer.CLASS:
		return p.parseClassDecl(pub)
	case lexer.TRAIT:
		return p.parseTraitDecl(pub)
	case lexer.ENUM:
		return p.parseEnumDecl(pub)
	case lexer.ERROR:
		return p.parseErrorDecl(pub)
	case lexer.APP:
		return p.parseStageDecl(pub, true)
	case lexer.STAGE:
		return p.parseStageDecl(pub, false)
	case lexer.IMPORT:
		return p.parseImportDecl()
	case lexer.EXTERN:
		return p.parseExternDecl(pub)
	case lexer.TEST:
		return p.parseTestDecl()
	}
	tok := p.cur()
	span := p.spanOf(tok)
	e := &ParseError{Report: errors.New("parse", errors.PAR001,
		"expected a top-level declaration (fn, class, trait, enum, error, app, stage, import, extern, test)",
		&span, map[string]any{"got": tok.Literal})}
	p.errs = append(p.errs, e)
	return nil, e
}

// parseParamList parses `(params...)`. It returns the explicit parameters
// plus whether the list opened with a `self` or `mut self` receiver.
func (p *Parser) parseParamList() ([]ast.Param, bool, bool, *ParseError) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, false, false, err
	}
	p.skipNewlines()
	var params []ast.Param
	hasSelf, mutSelf := false, false
	first := true
	for !p.curIs(lexer.RPAREN) {
		mut := false
		if p.curIs(lexer.MUT) {
			mut = true
			p.advance()
		}
		if p.curIs(lexer.SELF) {
			p.advance()
			if first {
				hasSelf = true
				mutSelf = mut
			}
		} else {
			name, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, false, false, err
			}
			if _, err := p.expect(lexer.COLON); err != nil {
				return nil, false, false, err
			}
			typ, err := p.parseType()
			if err != nil {
				return nil, false, false, err
			}
			params = append(params, ast.Param{Name: name.Literal, Type: typ, Mut: mut})
		}
		first = false
		p.skipNewlines()
		if p.curIs(lexer.COMMA) {
			p.advance()
			p.skipNewlines()
		}
	}
	p.advance() // ')'
	return params, hasSelf, mutSelf, nil
}

func (p *Parser) parseTypeParams() ([]string, *ParseError) {
	if !p.curIs(lexer.LT) {
		return nil, nil
	}
	p.advance()
	var names []string
	for !p.curIs(lexer.GT) {
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		names = append(names, name.Literal)
		if p.curIs(lexer.COMMA) {
			p.advance()
		}
	}
	p.advance()
	return names, nil
}

// parseContractClauses consumes any run of `requires`/`ensures`/
// `invariant` clauses that precede a function body.
func (p *Parser) parseContractClauses() (ast.Contract, *ParseError) {
	var c ast.Contract
	for {
		p.skipNewlines()
		switch p.curType() {
		case lexer.REQUIRES:
			p.advance()
			e, err := p.parseExpr(LOWEST)
			if err != nil {
				return c, err
			}
			c.Requires = append(c.Requires, e)
		case lexer.ENSURES:
			p.advance()
			e, err := p.parseExpr(LOWEST)
			if err != nil {
				return c, err
			}
			c.Ensures = append(c.Ensures, e)
		case lexer.INVARIANT:
			p.advance()
			e, err := p.parseExpr(LOWEST)
			if err != nil {
				return c, err
			}
			c.Invariant = append(c.Invariant, e)
		default:
			return c, nil
		}
	}
}

func (p *Parser) parseFuncDecl(pub bool) (*ast.FuncDecl, *ParseError) {
	start := p.spanOf(p.cur())
	override := false
	if p.curIs(lexer.OVERRIDE) {
		override = true
		p.advance()
	}
	if p.curIs(lexer.REQUIRES) {
		// `requires fn name(...) Ret` — abstract stage method signature;
		// the absence of a body below already marks it IsRequires.
		p.advance()
	}
	if _, err := p.expect(lexer.FN); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	typeParams, err := p.parseTypeParams()
	if err != nil {
		return nil, err
	}
	params, hasSelf, mutSelf, err := p.parseParamList()
	if err != nil {
		return nil, err
	}

	var ret ast.TypeExpr
	if !p.curIs(lexer.LBRACE) && !p.curIs(lexer.NEWLINE) && !p.curIs(lexer.REQUIRES) && !p.curIs(lexer.ENSURES) {
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	contract, err := p.parseContractClauses()
	if err != nil {
		return nil, err
	}

	var body *ast.Block
	isRequires := false
	if p.curIs(lexer.LBRACE) {
		body, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	} else {
		isRequires = true
	}

	fn := &ast.FuncDecl{
		Base: ast.NewBase(p.spanFrom(start)), Name: name.Literal, Pub: pub,
		TypeParams: typeParams, Params: params, Return: ret, Body: body,
		Contract: contract, IsOverride: override, IsRequires: isRequires, HasSelf: hasSelf,
		IsMut: mutSelf, IsGenerator: bodyUsesYield(body),
	}
	return fn, nil
}

func bodyUsesYield(b *ast.Block) bool {
	if b == nil {
		return false
	}
	found := false
	var walkExpr func(ast.Expr)
	var walkStmt func(ast.Stmt)
	walkExpr = func(e ast.Expr) {
		if e == nil || found {
			return
		}
		switch n := e.(type) {
		case *ast.YieldExpr:
			found = true
		case *ast.BinaryExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.UnaryExpr:
			walkExpr(n.Expr)
		case *ast.CallExpr:
			walkExpr(n.Callee)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.MethodCall:
			walkExpr(n.Recv)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.CatchExpr:
			walkExpr(n.Expr)
		}
	}
	walkStmt = func(s ast.Stmt) {
		if found {
			return
		}
		switch n := s.(type) {
		case *ast.ExprStmt:
			walkExpr(n.Expr)
		case *ast.LetStmt:
			walkExpr(n.Value)
		case *ast.IfStmt:
			walkExpr(n.Cond)
			for _, st := range n.Then.Stmts {
				walkStmt(st)
			}
			if n.Else != nil {
				for _, st := range n.Else.Stmts {
					walkStmt(st)
				}
			}
		case *ast.WhileStmt:
			for _, st := range n.Body.Stmts {
				walkStmt(st)
			}
		case *ast.ForStmt:
			for _, st := range n.Body.Stmts {
				walkStmt(st)
			}
		}
	}
	for _, s := range b.Stmts {
		walkStmt(s)
	}
	return found
}

func (p *Parser) parseClassDecl(pub bool) (*ast.ClassDecl, *ParseError) {
	start := p.spanOf(p.cur())
	if _, err := p.expect(lexer.CLASS); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	typeParams, err := p.parseTypeParams()
	if err != nil {
		return nil, err
	}
	c := &ast.ClassDecl{Name: name.Literal, Pub: pub, TypeParams: typeParams}

	if p.curIs(lexer.IMPL) {
		p.advance()
		for {
			n, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			c.Traits = append(c.Traits, n.Literal)
			if p.curIs(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.curIs(lexer.USES) {
		p.advance()
		for {
			n, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			c.Uses = append(c.Uses, n.Literal)
			if p.curIs(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.curIs(lexer.LBRACKET) {
		deps, err := p.parseBracketDeps()
		if err != nil {
			return nil, err
		}
		c.Brackets = deps
	}
	if p.curIs(lexer.SINGLETON) {
		c.Lifecycle = ast.LifecycleSingleton
		p.advance()
	} else if p.curIs(lexer.SCOPED) {
		c.Lifecycle = ast.LifecycleScoped
		p.advance()
	} else if p.curIs(lexer.TRANSIENT) {
		c.Lifecycle = ast.LifecycleTransient
		p.advance()
	}

	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	for !p.curIs(lexer.RBRACE) {
		switch p.curType() {
		case lexer.FN:
			m, err := p.parseFuncDecl(false)
			if err != nil {
				return nil, err
			}
			m.HasSelf = true
			c.Methods = append(c.Methods, m)
		case lexer.INVARIANT:
			p.advance()
			e, err := p.parseExpr(LOWEST)
			if err != nil {
				return nil, err
			}
			c.Contract.Invariant = append(c.Contract.Invariant, e)
		case lexer.IDENT:
			fname, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.COLON); err != nil {
				return nil, err
			}
			ftype, err := p.parseType()
			if err != nil {
				return nil, err
			}
			c.Fields = append(c.Fields, ast.Field{Name: fname.Literal, Type: ftype})
		default:
			return nil, p.unexpected(lexer.FN, lexer.IDENT, lexer.INVARIANT)
		}
		p.skipNewlines()
	}
	p.advance() // '}'
	c.Base = ast.NewBase(p.spanFrom(start))
	return c, nil
}

func (p *Parser) parseBracketDeps() ([]ast.BracketDep, *ParseError) {
	p.advance() // '['
	var deps []ast.BracketDep
	for !p.curIs(lexer.RBRACKET) {
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.COLON); err != nil {
			return nil, err
		}
		typ, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		deps = append(deps, ast.BracketDep{Name: name.Literal, Type: typ.Literal})
		if p.curIs(lexer.COMMA) {
			p.advance()
		}
	}
	p.advance() // ']'
	return deps, nil
}

func (p *Parser) parseTraitDecl(pub bool) (*ast.TraitDecl, *ParseError) {
	start := p.spanOf(p.cur())
	if _, err := p.expect(lexer.TRAIT); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	t := &ast.TraitDecl{Name: name.Literal, Pub: pub}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	for !p.curIs(lexer.RBRACE) {
		m, err := p.parseFuncDecl(false)
		if err != nil {
			return nil, err
		}
		m.HasSelf = true
		if m.Body == nil {
			m.IsRequires = true
			t.Required = append(t.Required, m)
		} else {
			t.Defaults = append(t.Defaults, m)
		}
		p.skipNewlines()
	}
	p.advance() // '}'
	t.Base = ast.NewBase(p.spanFrom(start))
	return t, nil
}

func (p *Parser) parseEnumDecl(pub bool) (*ast.EnumDecl, *ParseError) {
	start := p.spanOf(p.cur())
	if _, err := p.expect(lexer.ENUM); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	typeParams, err := p.parseTypeParams()
	if err != nil {
		return nil, err
	}
	e := &ast.EnumDecl{Name: name.Literal, Pub: pub, TypeParams: typeParams}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	for !p.curIs(lexer.RBRACE) {
		vname, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		var fields []ast.Field
		if p.curIs(lexer.LBRACE) {
			p.advance()
			p.skipNewlines()
			for !p.curIs(lexer.RBRACE) {
				fname, err := p.expect(lexer.IDENT)
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(lexer.COLON); err != nil {
					return nil, err
				}
				ftype, err := p.parseType()
				if err != nil {
					return nil, err
				}
				fields = append(fields, ast.Field{Name: fname.Literal, Type: ftype})
				p.skipNewlines()
				if p.curIs(lexer.COMMA) {
					p.advance()
					p.skipNewlines()
				}
			}
			p.advance() // '}'
		}
		e.Variants = append(e.Variants, ast.EnumVariant{Name: vname.Literal, Fields: fields})
		p.skipNewlines()
		if p.curIs(lexer.COMMA) {
			p.advance()
			p.skipNewlines()
		}
	}
	p.advance() // '}'
	e.Base = ast.NewBase(p.spanFrom(start))
	return e, nil
}

func (p *Parser) parseErrorDecl(pub bool) (*ast.ErrorDecl, *ParseError) {
	start := p.spanOf(p.cur())
	if _, err := p.expect(lexer.ERROR); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	e := &ast.ErrorDecl{Name: name.Literal, Pub: pub}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	for !p.curIs(lexer.RBRACE) {
		fname, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.COLON); err != nil {
			return nil, err
		}
		ftype, err := p.parseType()
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, ast.Field{Name: fname.Literal, Type: ftype})
		p.skipNewlines()
		if p.curIs(lexer.COMMA) {
			p.advance()
			p.skipNewlines()
		}
	}
	p.advance() // '}'
	e.Base = ast.NewBase(p.spanFrom(start))
	return e, nil
}

func (p *Parser) parseStageDecl(pub, isApp bool) (*ast.StageDecl, *ParseError) {
	start := p.spanOf(p.cur())
	p.advance() // 'app' or 'stage'
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	s := &ast.StageDecl{Name: name.Literal, Pub: pub, IsApp: isApp}
	if p.curIs(lexer.COLON) {
		p.advance()
		parent, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		s.Parent = parent.Literal
	}
	if p.curIs(lexer.LBRACKET) {
		deps, err := p.parseBracketDeps()
		if err != nil {
			return nil, err
		}
		s.Brackets = deps
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	p.skipNewlines()
	for !p.curIs(lexer.RBRACE) {
		switch p.curType() {
		case lexer.AMBIENT:
			p.advance()
			n, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			s.Ambient = append(s.Ambient, ast.AmbientReg{TypeName: n.Literal})
		case lexer.SCOPED, lexer.SINGLETON, lexer.TRANSIENT:
			lc := map[lexer.TokenType]ast.Lifecycle{lexer.SCOPED: ast.LifecycleScoped, lexer.SINGLETON: ast.LifecycleSingleton, lexer.TRANSIENT: ast.LifecycleTransient}[p.curType()]
			p.advance()
			n, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			s.Overrides = append(s.Overrides, ast.LifecycleOverride{ClassName: n.Literal, Lifecycle: lc})
		case lexer.FN, lexer.REQUIRES, lexer.OVERRIDE:
			m, err := p.parseFuncDecl(false)
			if err != nil {
				return nil, err
			}
			m.HasSelf = true
			s.Methods = append(s.Methods, m)
		default:
			return nil, p.unexpected(lexer.AMBIENT, lexer.FN, lexer.REQUIRES, lexer.OVERRIDE)
		}
		p.skipNewlines()
	}
	p.advance() // '}'
	s.Base = ast.NewBase(p.spanFrom(start))
	return s, nil
}

func (p *Parser) parseImportDecl() (*ast.ImportDecl, *ParseError) {
	start := p.spanOf(p.cur())
	p.advance() // 'import'
	var path string
	for {
		n, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		path += n.Literal
		if p.curIs(lexer.DOT) {
			p.advance()
			path += "."
			continue
		}
		break
	}
	return &ast.ImportDecl{Base: ast.NewBase(p.spanFrom(start)), Path: path}, nil
}

func (p *Parser) parseExternDecl(pub bool) (*ast.ExternDecl, *ParseError) {
	start := p.spanOf(p.cur())
	p.advance() // 'extern'
	if _, err := p.expect(lexer.FN); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	params, _, _, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	var ret ast.TypeExpr
	if !p.curIs(lexer.NEWLINE) {
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	return &ast.ExternDecl{Base: ast.NewBase(p.spanFrom(start)), Name: name.Literal, Pub: pub, Params: params, Return: ret, Symbol: name.Literal}, nil
}

func (p *Parser) parseTestDecl() (*ast.TestDecl, *ParseError) {
	start := p.spanOf(p.cur())
	p.advance() // 'test'
	name, err := p.expect(lexer.STRING)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.TestDecl{Base: ast.NewBase(p.spanFrom(start)), Name: name.Literal, Body: body}, nil
}
