package fuzzy

import (
	"errors"
	"strconv"
)

type statement struct {
	line    int
	endLine int
	toks    []token
	text    string
}

// Parse compiles rule text into a RuleSet. Every statement is checked and
// all problems are returned together; any error means no RuleSet.
//
// A statement begins with IF or DEF at the start of a line and ends at the
// next line break outside parentheses, so a parenthesised expression may
// span several lines.
func Parse(src string, schema Schema) (*RuleSet, error) {
	toks, err := newLexer(src).all()
	if err != nil {
		return nil, err
	}
	stmts, errs := splitStatements(src, toks)

	var (
		defs  []*aliasDef
		rules []*Rule
	)
	for _, st := range stmts {
		p := &parser{toks: st.toks, stmt: st, schema: schema}
		switch st.toks[0].kind {
		case tokDef:
			d, err := p.parseDef()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			d.index = len(defs)
			defs = append(defs, d)
		case tokIf:
			r, err := p.parseRule()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			rules = append(rules, r)
		}
	}

	aliases, aerrs := resolveAliases(defs)
	errs = append(errs, aerrs...)

	known := make(map[string]bool, len(defs))
	for _, d := range defs {
		known[d.name] = true
	}
	for _, r := range rules {
		cond, err := substitute(r.Condition, aliases, known)
		if err != nil {
			if err != errUnresolved {
				errs = append(errs, err)
			}
			continue
		}
		r.Condition = cond
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &RuleSet{Rules: rules, Aliases: aliases, schema: schema}, nil
}

// splitStatements groups tokens into statements. A line that does not open
// with IF or DEF, outside an open parenthesis, is a syntax error.
func splitStatements(src string, toks []token) ([]statement, []error) {
	var (
		out  []statement
		errs []error
		cur  []token
	)
	depth := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		first, last := cur[0].line, cur[len(cur)-1].line
		cur = append(cur, token{kind: tokEOF, line: last})
		out = append(out, statement{line: first, endLine: last, toks: cur, text: sourceLines(src, first, last)})
		cur = nil
		depth = 0
	}
	skipping := false
	for _, t := range toks {
		switch t.kind {
		case tokEOF:
			flush()
			return out, errs
		case tokNewline:
			if depth <= 0 {
				flush()
				skipping = false
			}
			continue
		}
		if skipping {
			continue
		}
		if len(cur) == 0 && t.kind != tokIf && t.kind != tokDef {
			errs = append(errs, syntaxErr(t.line, t.text, sourceLines(src, t.line, t.line),
				"statement must begin with IF or DEF"))
			skipping = true
			continue
		}
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		}
		cur = append(cur, t)
	}
	flush()
	return out, errs
}

type parser struct {
	toks   []token
	pos    int
	stmt   statement
	schema Schema
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(k tokenKind) bool {
	if p.peek().kind == k {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(t token, format string, args ...any) *SyntaxError {
	return syntaxErr(t.line, t.String(), p.stmt.text, format, args...)
}

func (p *parser) expect(k tokenKind, format string, args ...any) (token, error) {
	t := p.next()
	if t.kind == k {
		return t, nil
	}
	if t.kind == tokRParen {
		return t, p.errorf(t, "mismatched parentheses: unexpected )")
	}
	return t, p.errorf(t, format, args...)
}

func (p *parser) expectEnd() error {
	t := p.peek()
	switch t.kind {
	case tokEOF:
		return nil
	case tokRParen:
		return p.errorf(t, "mismatched parentheses: unexpected )")
	}
	return p.errorf(t, "unexpected token after end of statement")
}

func (p *parser) parseDef() (*aliasDef, error) {
	p.next()
	name, err := p.expect(tokIdent, "DEF requires an alias name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokIs, "missing IS or = after alias %q", name.text); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return &aliasDef{name: name.text, body: body, line: p.stmt.line}, nil
}

func (p *parser) parseRule() (*Rule, error) {
	p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokThen, "missing THEN"); err != nil {
		return nil, err
	}
	res, err := p.expect(tokIdent, "THEN requires a result variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokIs, "missing IS or = after result %q", res.text); err != nil {
		return nil, err
	}
	crv, err := p.expect(tokIdent, "THEN clause requires a result curve name")
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}

	v, ok := p.schema.Results[res.text]
	if !ok {
		return nil, validationErr(res.line, res.text, "undefined result variable")
	}
	c, ok := v.Curve(crv.text)
	if !ok {
		return nil, validationErr(crv.line, res.text, "undefined result curve %q", crv.text)
	}
	return &Rule{
		Line:        p.stmt.line,
		Text:        p.stmt.text,
		Condition:   cond,
		Result:      res.text,
		ResultCurve: crv.text,
		result:      v,
		curve:       c,
	}, nil
}

// Precedence, loosest first: OR, XOR, AND, NOT.
func (p *parser) parseExpr() (*Node, error) { return p.parseOr() }

func (p *parser) parseOr() (*Node, error) {
	return p.parseBinary(tokOr, OpOr, p.parseXor)
}

func (p *parser) parseXor() (*Node, error) {
	return p.parseBinary(tokXor, OpXor, p.parseAnd)
}

func (p *parser) parseAnd() (*Node, error) {
	return p.parseBinary(tokAnd, OpAnd, p.parseUnary)
}

func (p *parser) parseBinary(k tokenKind, op Op, operand func() (*Node, error)) (*Node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == k {
		t := p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &Node{Op: op, Args: []*Node{left, right}, line: t.line, tok: t.text}
	}
	return left, nil
}

func (p *parser) parseUnary() (*Node, error) {
	if p.peek().kind == tokNot {
		t := p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Op: OpNot, Args: []*Node{x}, line: t.line, tok: t.text}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "mismatched parentheses: expected )"); err != nil {
			return nil, err
		}
		return x, nil

	case tokProduct, tokSum:
		op := OpProduct
		if t.kind == tokSum {
			op = OpSum
		}
		if _, err := p.expect(tokLParen, "%s requires a parenthesised argument list", op); err != nil {
			return nil, err
		}
		args, err := p.parseArgs(op)
		if err != nil {
			return nil, err
		}
		return &Node{Op: op, Args: args, line: t.line, tok: t.text}, nil

	case tokGamma:
		if _, err := p.expect(tokLParen, "GAMMA requires a parenthesised argument list"); err != nil {
			return nil, err
		}
		g, err := p.expect(tokNumber, "GAMMA requires a numeric gamma value as its first argument")
		if err != nil {
			return nil, err
		}
		gamma, perr := strconv.ParseFloat(g.text, 64)
		if perr != nil {
			return nil, p.errorf(g, "malformed gamma value")
		}
		if _, err := p.expect(tokComma, "GAMMA requires at least one operand after the gamma value"); err != nil {
			return nil, err
		}
		args, err := p.parseArgs(OpGamma)
		if err != nil {
			return nil, err
		}
		return &Node{Op: OpGamma, Gamma: gamma, Args: args, line: t.line, tok: t.text}, nil

	case tokIdent:
		return p.parseReference(t)

	case tokRParen:
		return nil, p.errorf(t, "mismatched parentheses: unexpected )")
	case tokEOF:
		return nil, p.errorf(t, "incomplete expression")
	case tokIs:
		return nil, p.errorf(t, "IS must follow an input name")
	}
	return nil, p.errorf(t, "unexpected %s", t.text)
}

// parseArgs reads "expr {, expr} )" after an opening parenthesis.
func (p *parser) parseArgs(op Op) ([]*Node, error) {
	var args []*Node
	for {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.accept(tokComma) {
			continue
		}
		if _, err := p.expect(tokRParen, "mismatched parentheses: expected , or ) in %s", op); err != nil {
			return nil, err
		}
		return args, nil
	}
}

// parseReference handles "input IS [NOT] curve" and bare alias names.
func (p *parser) parseReference(name token) (*Node, error) {
	switch p.peek().kind {
	case tokIs:
		p.next()
	case tokIdent, tokNumber:
		return nil, p.errorf(p.peek(), "missing IS between %q and %q", name.text, p.peek().text)
	default:
		return &Node{Op: opAlias, alias: name.text, line: name.line, tok: name.text}, nil
	}

	negate := p.accept(tokNot)
	crv, err := p.expect(tokIdent, "expected a curve name after %s IS", name.text)
	if err != nil {
		return nil, err
	}
	v, ok := p.schema.Inputs[name.text]
	if !ok {
		return nil, validationErr(name.line, name.text, "undefined input")
	}
	c, ok := v.Curve(crv.text)
	if !ok {
		return nil, validationErr(crv.line, name.text, "undefined curve %q", crv.text)
	}
	leaf := &Node{Op: OpLeaf, Input: name.text, Curve: crv.text, variable: v, curve: c, line: name.line, tok: name.text}
	if negate {
		return &Node{Op: OpNot, Args: []*Node{leaf}, line: name.line, tok: "NOT"}, nil
	}
	return leaf, nil
}
