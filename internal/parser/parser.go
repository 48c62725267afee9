// Package parser turns a Token stream into the AST:
// scope tables, typed expressions, call-signature resolution and block
// constructs.
//
// Expressions are assembled by precedence climbing over the fixed
// operator table; blocks parse into an arena of integer-indexed scope
// tables rather than a single statement tree, with chained blocks
// (elseif/else) validated against their declared antecedents.
package parser

import (
	"fmt"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/entities"
	"github.com/tauleaf/tau/internal/errtype"
	"github.com/tauleaf/tau/internal/lexer"
	"github.com/tauleaf/tau/internal/token"
)

// Parser consumes a Token stream and a Registry to build an AST.
type Parser struct {
	toks []token.Token
	pos int
	reg *entities.Registry
	name string
	src string

	// forVarName stashes the loop-variable identifier between
	// parseForHeader() and blockFactoryArgs, since #for's header grammar
	// isn't an ordinary tuple (see tags.go).
	forVarName string

	// stripNewline consumes the single newline immediately following a
	// structural tag (define, inline, var/let, a block open or close):
	// those tags occupy their own line in readable templates, and the
	// line break belongs to the markup, not the output. Output-producing
	// tags (#(expr), #evaluate, function calls) keep their trailing
	// newline.
	stripNewline bool

	// inRawBlock guards against raw switching: opening a second raw
	// block while one is already buffering.
	inRawBlock bool
}

// Parse lexes and parses a named template source into an AST.
func Parse(reg *entities.Registry, source, name string) (*ast.AST, error) {
	toks, warnings, err := lexer.TokenizeWithWarnings(name, source)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, reg: reg, name: name, src: source}
	doc := ast.New(ast.Key{Name: name})
	doc.Info.ParseWarnings = warnings
	if _, err := p.parseScope(doc, doc.Root(), nil); err != nil {
		return nil, err
	}
	collectInfo(doc)
	return doc, nil
}

// collectInfo fills the AST's Info record from the finished scope tables:
// unresolved template and raw-file names, the root context variables the
// document reads, scope depth, and the raw-byte floor of the output size.
func collectInfo(doc *ast.AST) {
	for _, table := range doc.Tables {
		for i := range table {
			n := &table[i]
			switch n.Kind {
			case ast.SyntaxRaw:
				doc.Info.UnderestimatedSize += len(n.RawBytes)
			case ast.SyntaxPassthrough:
				if n.Expr == nil {
					break
				}
				if n.Declare && n.Expr.Expr != nil {
					// The declared name itself is a new binding, not a
					// context requirement.
					n.Expr.Expr.Parts[1].RequiredVariables(doc.Info.RequiredVars)
					break
				}
				n.Expr.RequiredVariables(doc.Info.RequiredVars)
			case ast.SyntaxBlock:
				if n.Args != nil {
					for j := range n.Args.Elements {
						n.Args.Elements[j].RequiredVariables(doc.Info.RequiredVars)
					}
				}
			case ast.SyntaxMeta:
				if n.Meta == ast.MetaInline {
					if n.InlineAs == ast.InlineAsTemplate {
						doc.Info.RequiredASTs[n.InlineName] = true
					} else {
						doc.Info.RequiredRawFiles[n.InlineName] = true
					}
				}
				if n.DefineExpr != nil {
					n.DefineExpr.RequiredVariables(doc.Info.RequiredVars)
				}
			}
		}
	}
	doc.Info.MaxScopeDepth = tableDepth(doc, doc.Root(), map[int]int{})
}

func tableDepth(doc *ast.AST, table int, memo map[int]int) int {
	if d, ok := memo[table]; ok {
		return d
	}
	memo[table] = 1 // cycle guard; tables are acyclic by construction
	max := 1
	for i := range doc.Tables[table] {
		n := &doc.Tables[table][i]
		for _, ref := range []int{n.ScopeRef, n.DefineScope} {
			if ref > 0 && ref < len(doc.Tables) {
				if d := 1 + tableDepth(doc, ref, memo); d > max {
					max = d
				}
			}
		}
	}
	memo[table] = max
	return max
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(off int) token.Token {
	if p.pos+off >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos+off]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(ty token.Type) (token.Token, error) {
	if p.cur().Type != ty {
		return token.Token{}, p.errorf("expected token %v, got %v", ty, p.cur().Type)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	loc := p.cur().Location
	return &errtype.ParseError{
		Message: fmt.Sprintf(format, args...),
		Location: errtype.SourceLocation{Template: loc.Template, Line: loc.Line, Column: loc.Column},
	}
}

// closeResult reports how parseScope terminated: which closer tag ended
// it, plus the closer's own parameter tuple when the closer opens a
// chained continuation (#elseif's condition).
type closeResult struct {
	closed bool
	closerName string
	closerArgs *ast.Tuple
}

// parseScope parses Syntax nodes into table until EOF or a tag whose
// name is in closers is encountered (consumed, not emitted).
func (p *Parser) parseScope(doc *ast.AST, table int, closers map[string]bool) (closeResult, error) {
	for {
		switch p.cur().Type {
		case token.EOF:
			if len(closers) > 0 {
				return closeResult{}, p.errorf("unexpected end of template, expected one of %v", keysOf(closers))
			}
			return closeResult{}, nil
		case token.Raw:
			raw := p.advance()
			text := raw.Lexeme
			if p.stripNewline {
				p.stripNewline = false
				if len(text) > 0 && text[0] == '\n' {
					text = text[1:]
				} else if len(text) > 1 && text[0] == '\r' && text[1] == '\n' {
					text = text[2:]
				}
			}
			if len(text) > 0 {
				doc.Append(table, ast.Syntax{Kind: ast.SyntaxRaw, RawBytes: []byte(text)})
			}
		case token.BlockMark:
			// A ':' after a non-block tag (e.g. "#(name): value") is just
			// template text.
			p.advance()
			p.stripNewline = false
			doc.Append(table, ast.Syntax{Kind: ast.SyntaxRaw, RawBytes: []byte(":")})
		case token.TagMark:
			p.stripNewline = false
			res, err := p.parseTag(doc, table, closers)
			if err != nil {
				return closeResult{}, err
			}
			if res.closed {
				return res, nil
			}
		default:
			return closeResult{}, p.errorf("unexpected token %v", p.cur().Type)
		}
	}
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
