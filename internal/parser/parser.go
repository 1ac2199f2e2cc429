// Package parser implements Pluto's recursive-descent declaration/
// statement parser and Pratt-style expression parser. It turns one
// file's lexer.Token stream into that file's list of ast.Decl.
package parser

import (
	"fmt"

	"github.com/pluto-lang/plutoc/internal/ast"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/lexer"
)

// Precedence levels, low to high.
const (
	_ int = iota
	LOWEST
	OR          // ||
	AND         // &&
	BITOR       // |
	BITXOR      // ^
	BITAND      // &
	EQUALITY    // == !=
	COMPARISON  // < > <= >=
	SHIFT       // << >>
	ADDITIVE    // + -
	MULT        // * / %
	UNARY       // - ! ~
	POSTFIX     // () [] .field .method() ! ? as
)

var precedences = map[lexer.TokenType]int{
	lexer.OROR:     OR,
	lexer.ANDAND:   AND,
	lexer.PIPE:     BITOR,
	lexer.CARET:    BITXOR,
	lexer.AMP:      BITAND,
	lexer.EQ:       EQUALITY,
	lexer.NEQ:      EQUALITY,
	lexer.LT:       COMPARISON,
	lexer.GT:       COMPARISON,
	lexer.LTE:      COMPARISON,
	lexer.GTE:      COMPARISON,
	lexer.SHL:      SHIFT,
	lexer.SHR:      SHIFT,
	lexer.PLUS:     ADDITIVE,
	lexer.MINUS:    ADDITIVE,
	lexer.STAR:     MULT,
	lexer.SLASH:    MULT,
	lexer.PERCENT:  MULT,
	lexer.LPAREN:   POSTFIX,
	lexer.LBRACKET: POSTFIX,
	lexer.DOT:      POSTFIX,
	lexer.BANG:     POSTFIX,
	lexer.QUESTION: POSTFIX,
	lexer.AS:       POSTFIX,
	lexer.CATCH:    LOWEST + 1,
	lexer.DOTDOT:   LOWEST + 1,
	lexer.DOTDOTEQ: LOWEST + 1,
}

// ParseError is a parse-phase diagnostic.
type ParseError struct {
	Report *errors.Report
}

func (e *ParseError) Error() string { return e.Report.String() }

// Parser holds the token buffer and current position.
type Parser struct {
	toks []lexer.Token
	pos  int
	file string

	errs []*ParseError
}

// New creates a Parser over an already-lexed token stream.
func New(toks []lexer.Token, file string) *Parser {
	return &Parser{toks: toks, file: file}
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) curType() lexer.TokenType { return p.toks[p.pos].Type }

func (p *Parser) peekAt(n int) lexer.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *Parser) peekType() lexer.TokenType { return p.peekAt(1).Type }

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// skipNewlines consumes any run of NEWLINE tokens. Called between
// declarations/statements where blank lines are insignificant, and
// inside bracket/paren/brace groups where newlines never terminate.
func (p *Parser) skipNewlines() {
	for p.curType() == lexer.NEWLINE {
		p.advance()
	}
}

func (p *Parser) curIs(tt lexer.TokenType) bool { return p.curType() == tt }

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, *ParseError) {
	if p.curType() != tt {
		return lexer.Token{}, p.unexpected(tt)
	}
	return p.advance(), nil
}

func (p *Parser) unexpected(want ...lexer.TokenType) *ParseError {
	tok := p.cur()
	span := p.spanOf(tok)
	e := &ParseError{Report: errors.New("parse", errors.PAR001,
		fmt.Sprintf("unexpected token %q, expected one of %v", tok.Literal, want),
		&span, map[string]any{"got": tok.Type})}
	p.errs = append(p.errs, e)
	return e
}

func (p *Parser) spanOf(tok lexer.Token) ast.Span {
	pos := ast.Pos{Line: tok.Line, Column: tok.Column, Offset: tok.Offset}
	end := ast.Pos{Line: tok.Line, Column: tok.Column + len(tok.Literal), Offset: tok.Offset + len(tok.Literal)}
	return ast.Span{Start: pos, End: end}
}

func (p *Parser) spanFrom(start ast.Span) ast.Span {
	end := p.spanOf(p.toks[max(p.pos-1, 0)])
	return ast.Span{Start: start.Start, End: end.End}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ParseFile parses one source file's tokens into its declarations
// (which may appear in any order), stopping at the first
// declaration-level parse failure.
func ParseFile(toks []lexer.Token, file string) ([]ast.Decl, []*ParseError) {
	p := New(toks, file)
	var decls []ast.Decl
	p.skipNewlines()
	for !p.curIs(lexer.EOF) {
		d, err := p.parseDecl()
		if err != nil {
			p.errs = append(p.errs, err)
			return decls, p.errs
		}
		if d != nil {
			decls = append(decls, d)
		}
		p.skipNewlines()
	}
	return decls, p.errs
}
