package parser

import (
	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/token"
	"github.com/tauleaf/tau/internal/value"
	"github.com/tauleaf/tau/internal/variable"
)

// metaNames are the four fixed meta-blocks. var/let decay
// to a plain assignment statement at parse time and carry no MetaKind.
var metaNames = map[string]ast.MetaKind{
	"define": ast.MetaDefine,
	"evaluate": ast.MetaEvaluate,
	"inline": ast.MetaInline,
	"raw": ast.MetaRaw,
}

// parseTag consumes one `#...` tag starting at the current TagMark token.
// When the tag is a bare closer (e.g. #endif) appearing while closers
// names it, it is consumed and reported via closeResult rather than
// appended to table.
func (p *Parser) parseTag(doc *ast.AST, table int, closers map[string]bool) (closeResult, error) {
	p.advance() // consume TagMark
	nameTok, err := p.expect(token.TagName)
	if err != nil {
		return closeResult{}, err
	}
	name := nameTok.Lexeme

	if name == "" {
		return closeResult{}, p.parseAnonymousExpression(doc, table)
	}

	if closers[name] {
		res := closeResult{closed: true, closerName: name}
		if p.cur().Type == token.ParamsOpen {
			args, err := p.parseTuple()
			if err != nil {
				return closeResult{}, err
			}
			res.closerArgs = args
		}
		return res, nil
	}

	if name == "var" || name == "let" {
		return closeResult{}, p.parseVarDecl(doc, table)
	}

	if mk, ok := metaNames[name]; ok {
		return closeResult{}, p.parseMeta(doc, table, name, mk)
	}

	if factory, ok := p.reg.LookupBlock(name); ok {
		if len(factory.ChainAntecedents()) > 0 {
			return closeResult{}, p.errorf("block %q cannot appear without its required antecedent", name)
		}
		return closeResult{}, p.parseBlockTag(doc, table, name)
	}

	if _, ok := p.reg.LookupRawBlock(name); ok {
		return closeResult{}, p.parseRawBlockOpen(doc, table, name)
	}

	return closeResult{}, p.parseCallStatement(doc, table, name)
}

// parseAnonymousExpression parses `#(expr)` as a passthrough output
// statement.
func (p *Parser) parseAnonymousExpression(doc *ast.AST, table int) error {
	if p.cur().Type != token.ParamsOpen {
		return p.errorf("anonymous tag requires a parenthesized expression")
	}
	p.advance()
	expr, err := p.parseExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(token.ParamsClose); err != nil {
		return err
	}
	doc.Append(table, ast.Syntax{Kind: ast.SyntaxPassthrough, Expr: &expr, Print: true})
	return nil
}

// parseVarDecl parses `#var(x = expr)` / `#let(x = expr)` as well as the
// unparenthesized `#var x = expr` / `#let x = expr` surface form (the
// Lexer synthesizes the same ParamsOpen/ParamsClose bracketing for the
// bare form, so both reach parseTuple identically), decayed to an
// assignment Parameter marked as a declaration. A bare `#var x` with no
// initializer declares the binding as trueNil.
func (p *Parser) parseVarDecl(doc *ast.AST, table int) error {
	tup, err := p.parseTuple()
	if err != nil {
		return err
	}
	if len(tup.Elements) != 1 {
		return p.errorf("var/let declaration must be a single assignment")
	}
	decl := tup.Elements[0]
	if decl.Kind == ast.ParamVariable {
		// Undeclared-init form: bind to trueNil.
		op, _ := token.LookupOperator("=", token.FormInfix)
		rhs := ast.Parameter{Kind: ast.ParamValue, Loc: decl.Loc, Value: value.TrueNil}
		decl = ast.Parameter{
			Kind: ast.ParamExpression,
			Loc: decl.Loc,
			Expr: &ast.Expression{Form: ast.FormAssignment, Parts: []ast.Parameter{decl, rhs}, Operator: op, Loc: decl.Loc},
		}
	}
	if decl.Kind != ast.ParamExpression || decl.Expr.Form != ast.FormAssignment {
		return p.errorf("var/let declaration must be a single assignment")
	}
	if decl.Expr.Parts[0].Kind != ast.ParamVariable || !decl.Expr.Parts[0].Variable.IsAtomic() {
		return p.errorf("var/let declaration requires a plain identifier")
	}
	doc.Append(table, ast.Syntax{Kind: ast.SyntaxPassthrough, Expr: &decl, Declare: true})
	p.stripNewline = true
	return nil
}

// parseCallStatement parses a bare function-call tag with no block body,
// e.g. `#count(items)`; the call's result is appended to the output the
// same way an anonymous expression tag's is (a void result appends
// nothing).
func (p *Parser) parseCallStatement(doc *ast.AST, table int, name string) error {
	var args *ast.Tuple
	var err error
	if p.cur().Type == token.ParamsOpen {
		args, err = p.parseTuple()
		if err != nil {
			return err
		}
	} else {
		args = ast.NewTuple()
	}
	call := ast.Parameter{Kind: ast.ParamFunction, FuncName: name, Params: args}
	if err := p.resolveCall(&call); err != nil {
		return err
	}
	doc.Append(table, ast.Syntax{Kind: ast.SyntaxPassthrough, Expr: &call, Print: true})
	return nil
}

// parseRawBlockOpen parses a registered RawBlock handler invoked as an
// ordinary scope-bearing block (its body is buffered through the
// handler's Append/Close rather than serialized as statements).
func (p *Parser) parseRawBlockOpen(doc *ast.AST, table int, name string) error {
	var args *ast.Tuple
	var err error
	if p.cur().Type == token.ParamsOpen {
		args, err = p.parseTuple()
		if err != nil {
			return err
		}
	} else {
		args = ast.NewTuple()
	}
	if p.inRawBlock {
		return p.errorf("Raw switching blocks not yet supported")
	}
	if _, err := p.expect(token.BlockMark); err != nil {
		return err
	}
	if _, err := p.reg.ValidateRaw(name); err != nil {
		return err
	}
	endName := "end" + name
	inner := doc.NewTable()
	p.stripNewline = true
	p.inRawBlock = true
	_, err = p.parseScope(doc, inner, map[string]bool{endName: true})
	p.inRawBlock = false
	if err != nil {
		return err
	}
	doc.Append(table, ast.Syntax{Kind: ast.SyntaxMeta, Meta: ast.MetaRaw, RawHandler: name, DefineScope: inner, Args: args})
	p.stripNewline = true
	return nil
}

// parseBlockTag parses a scope-bearing block tag, following chained
// continuations (elseif/else) declared via ChainAntecedents().
func (p *Parser) parseBlockTag(doc *ast.AST, table int, name string) error {
	endName := "end" + name
	node, res, err := p.parseBlockBody(doc, name, endName, nil)
	if err != nil {
		return err
	}
	doc.Append(table, *node)

	for res.closerName != endName {
		chainFactory, ok := p.reg.LookupBlock(res.closerName)
		if !ok || !chains(chainFactory.ChainAntecedents(), name) {
			return p.errorf("block %q cannot follow %q", res.closerName, name)
		}
		name = res.closerName
		var chainNode *ast.Syntax
		chainNode, res, err = p.parseBlockBody(doc, name, endName, res.closerArgs)
		if err != nil {
			return err
		}
		doc.Append(table, *chainNode)
	}
	p.stripNewline = true
	return nil
}

// parseBlockBody parses one block header (params + BlockMark) and its
// body, accepting endName or any block chaining from name as a closer.
// preArgs carries a chained continuation's already-consumed parameter
// tuple (#elseif's condition is lexed as part of the closer tag).
func (p *Parser) parseBlockBody(doc *ast.AST, name string, endName string, preArgs *ast.Tuple) (*ast.Syntax, closeResult, error) {
	args := preArgs
	var err error
	if args == nil {
		if name == "for" {
			args, err = p.parseForHeader()
		} else if p.cur().Type == token.ParamsOpen {
			args, err = p.parseTuple()
		} else {
			args = ast.NewTuple()
		}
		if err != nil {
			return nil, closeResult{}, err
		}
	}
	if _, err := p.expect(token.BlockMark); err != nil {
		return nil, closeResult{}, err
	}

	factory, ok := p.reg.LookupBlock(name)
	if !ok {
		return nil, closeResult{}, p.errorf("unknown block %q", name)
	}
	fargs := p.blockFactoryArgs(name, args)
	blockInst, err := factory.New(fargs)
	if err != nil {
		return nil, closeResult{}, p.errorf("%s", err.Error())
	}
	newBlock := func() (ast.Block, error) { return factory.New(fargs) }

	closers := map[string]bool{endName: true}
	for _, chainer := range p.reg.BlocksChainingFrom(name) {
		closers[chainer] = true
	}

	inner := doc.NewTable()
	p.stripNewline = true
	res, err := p.parseScope(doc, inner, closers)
	if err != nil {
		return nil, closeResult{}, err
	}

	node := &ast.Syntax{Kind: ast.SyntaxBlock, BlockName: name, BlockInst: blockInst, NewBlock: newBlock, Args: args, ScopeRef: inner}
	return node, res, nil
}

// parseForHeader() parses `#for(x in collection)`'s non-tuple grammar and
// returns a Tuple whose sole element is the collection expression, which
// matches the CallValues the forBlock.EvaluateScope expects at serialize
// time. The loop-variable name travels separately via
// blockFactoryArgs.
func (p *Parser) parseForHeader() (*ast.Tuple, error) {
	if _, err := p.expect(token.ParamsOpen); err != nil {
		return nil, err
	}
	switch {
	case p.cur().Type == token.VariablePart:
	case p.cur().Type == token.Keyword && p.cur().Lexeme == "_":
		// discard binding
	default:
		return nil, p.errorf("for loop requires a variable name")
	}
	p.forVarName = p.advance().Lexeme
	if p.cur().Type != token.Keyword || p.cur().Lexeme != "in" {
		return nil, p.errorf("for loop requires `in` after the variable name")
	}
	p.advance()
	coll, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ParamsClose); err != nil {
		return nil, err
	}
	tup := ast.NewTuple()
	tup.Append(coll)
	return tup, nil
}

// blockFactoryArgs adapts the parsed Tuple into the shape each
// BlockFactory.New expects; "for" needs the loop-variable name prepended
// as its own element since it is not itself an evaluable expression.
func (p *Parser) blockFactoryArgs(name string, args *ast.Tuple) *ast.Tuple {
	if name != "for" {
		return args
	}
	withName := ast.NewTuple()
	withName.Append(ast.Parameter{Kind: ast.ParamVariable, Variable: variable.New([]string{p.forVarName}, 0)})
	withName.Elements = append(withName.Elements, args.Elements...)
	return withName
}

func chains(antecedents []string, name string) bool {
	for _, a := range antecedents {
		if a == name {
			return true
		}
	}
	return false
}

// parseMeta parses the four MetaBlocks.
func (p *Parser) parseMeta(doc *ast.AST, table int, name string, kind ast.MetaKind) error {
	switch kind {
	case ast.MetaDefine:
		return p.parseDefine(doc, table)
	case ast.MetaEvaluate:
		return p.parseEvaluate(doc, table)
	case ast.MetaInline:
		return p.parseInline(doc, table)
	case ast.MetaRaw:
		return p.parseRawMeta(doc, table)
	}
	return nil
}

// parseDefine parses `#define(id = expr)` (atomic) or
// `#define(id): ... #enddefine` (scoped).
func (p *Parser) parseDefine(doc *ast.AST, table int) error {
	if _, err := p.expect(token.ParamsOpen); err != nil {
		return err
	}
	if p.cur().Type != token.VariablePart {
		return p.errorf("define requires an identifier")
	}
	id := p.advance().Lexeme
	node := ast.Syntax{Kind: ast.SyntaxMeta, Meta: ast.MetaDefine, DefineID: id, DefineScope: ast.NoScope}
	if p.cur().Type == token.Operator && p.cur().Lexeme == "=" {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return err
		}
		node.DefineExpr = &expr
		if _, err := p.expect(token.ParamsClose); err != nil {
			return err
		}
		doc.Append(table, node)
		p.stripNewline = true
		return nil
	}
	if _, err := p.expect(token.ParamsClose); err != nil {
		return err
	}
	if _, err := p.expect(token.BlockMark); err != nil {
		return err
	}
	inner := doc.NewTable()
	p.stripNewline = true
	if _, err := p.parseScope(doc, inner, map[string]bool{"enddefine": true}); err != nil {
		return err
	}
	node.DefineScope = inner
	doc.Append(table, node)
	p.stripNewline = true
	return nil
}

// parseEvaluate parses `#evaluate(id)` or `#evaluate(id ?? default)`.
func (p *Parser) parseEvaluate(doc *ast.AST, table int) error {
	if _, err := p.expect(token.ParamsOpen); err != nil {
		return err
	}
	if p.cur().Type != token.VariablePart {
		return p.errorf("evaluate() requires an identifier")
	}
	id := p.advance().Lexeme
	node := ast.Syntax{Kind: ast.SyntaxMeta, Meta: ast.MetaEvaluate, EvaluateID: id}
	if p.cur().Type == token.Operator && p.cur().Lexeme == "??" {
		p.advance()
		def, err := p.parseExpr()
		if err != nil {
			return err
		}
		node.EvaluateDef = &def
	}
	if _, err := p.expect(token.ParamsClose); err != nil {
		return err
	}
	doc.Append(table, node)
	return nil
}

// parseInline parses `#inline("name")`, `#inline("name", as: raw)` /
// `template` / a handler name.
func (p *Parser) parseInline(doc *ast.AST, table int) error {
	tup, err := p.parseTuple()
	if err != nil {
		return err
	}
	if len(tup.Elements) == 0 {
		return p.errorf("inline requires a template name")
	}
	name, ok := tup.Elements[0].Value.AsString()
	if tup.Elements[0].Kind != ast.ParamValue || !ok {
		return p.errorf("inline's first argument must be a string literal name")
	}
	node := ast.Syntax{Kind: ast.SyntaxMeta, Meta: ast.MetaInline, InlineName: name, InlineAs: ast.InlineAsTemplate, DefineScope: ast.NoScope}
	if asParam, ok := tup.Label("as"); ok {
		s, identifierForm := asKindName(asParam)
		switch {
		case identifierForm && s == "template":
			node.InlineAs = ast.InlineAsTemplate
		case identifierForm && s == "raw":
			node.InlineAs = ast.InlineAsRaw
		case identifierForm && s != "":
			// `as: <handlerName>` names a registered RawBlock
			// handler directly — not a separate `handler:` label.
			node.InlineAs = ast.InlineAsHandler
			node.InlineHandler = s
		default:
			return p.errorf("inline's `as:` argument must be `template`, `raw`, or a raw-block handler name")
		}
	}
	doc.Append(table, node)
	p.stripNewline = true
	return nil
}

// asKindName extracts the bare identifier spelling of an `as:` argument.
// `template` lexes as a reserved Keyword (token/keyword.go); a handler
// name with no trailing `(` lexes as a bare Variable; either may also
// arrive as a quoted string literal.
func asKindName(p ast.Parameter) (string, bool) {
	switch p.Kind {
	case ast.ParamValue:
		s, ok := p.Value.AsString()
		return s, ok
	case ast.ParamKeyword:
		return p.Keyword.Name, true
	case ast.ParamVariable:
		if p.Variable.IsAtomic() {
			return p.Variable.LastPart(), true
		}
		return "", false
	case ast.ParamFunction:
		return p.FuncName, true
	}
	return "", false
}

// parseRawMeta parses `#raw: ... #endraw` and `#raw("handler"): ... #endraw`.
// Opening a second raw block inside a raw body (raw switching) is a parse
// error.
func (p *Parser) parseRawMeta(doc *ast.AST, table int) error {
	if p.inRawBlock {
		return p.errorf("Raw switching blocks not yet supported")
	}
	handler := "text"
	if p.cur().Type == token.ParamsOpen {
		tup, err := p.parseTuple()
		if err != nil {
			return err
		}
		if len(tup.Elements) > 0 {
			if s, ok := tup.Elements[0].Value.AsString(); ok && s != "" {
				handler = s
			}
		}
	}
	if _, err := p.expect(token.BlockMark); err != nil {
		return err
	}
	inner := doc.NewTable()
	p.stripNewline = true
	p.inRawBlock = true
	_, err := p.parseScope(doc, inner, map[string]bool{"endraw": true})
	p.inRawBlock = false
	if err != nil {
		return err
	}
	doc.Append(table, ast.Syntax{Kind: ast.SyntaxMeta, Meta: ast.MetaRaw, RawHandler: handler, DefineScope: inner})
	p.stripNewline = true
	return nil
}
