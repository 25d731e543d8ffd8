package combine

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

type tokKind int

const (
	tEOF tokKind = iota
	tNum
	tIdent
	tOp
	tLParen
	tRParen
	tComma
)

type token struct {
	kind tokKind
	text string
	pos  int
	num  float64
}

func lex(src string) ([]token, error) {
	var out []token
	r := []rune(src)
	for i := 0; i < len(r); {
		c := r[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(r) && unicode.IsDigit(r[i+1])):
			j := i
			for j < len(r) && (unicode.IsDigit(r[j]) || r[j] == '.') {
				j++
			}
			if j < len(r) && (r[j] == 'e' || r[j] == 'E') {
				k := j + 1
				if k < len(r) && (r[k] == '+' || r[k] == '-') {
					k++
				}
				if k < len(r) && unicode.IsDigit(r[k]) {
					for j = k; j < len(r) && unicode.IsDigit(r[j]); j++ {
					}
				}
			}
			text := string(r[i:j])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, eris.Errorf("combine: bad number %q at offset %d", text, i)
			}
			out = append(out, token{kind: tNum, text: text, pos: i, num: v})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(r) && (unicode.IsLetter(r[j]) || unicode.IsDigit(r[j]) || r[j] == '_' || r[j] == '.') {
				j++
			}
			out = append(out, token{kind: tIdent, text: string(r[i:j]), pos: i})
			i = j
		case c == '*' && i+1 < len(r) && r[i+1] == '*':
			out = append(out, token{kind: tOp, text: "^", pos: i})
			i += 2
		case strings.ContainsRune("+-*/^", c):
			out = append(out, token{kind: tOp, text: string(c), pos: i})
			i++
		case c == '(':
			out = append(out, token{kind: tLParen, text: "(", pos: i})
			i++
		case c == ')':
			out = append(out, token{kind: tRParen, text: ")", pos: i})
			i++
		case c == ',':
			out = append(out, token{kind: tComma, text: ",", pos: i})
			i++
		default:
			return nil, eris.Errorf("combine: unexpected character %q at offset %d", c, i)
		}
	}
	return append(out, token{kind: tEOF, pos: len(r)}), nil
}

// parser is a precedence-climbing recursive descent parser:
// expr := term (('+'|'-') term)*
// term := unary (('*'|'/') unary)*
// unary := '-' unary | power
// power := primary ('^' unary)?
type parser struct {
	toks  []token
	pos   int
	refs  []string
	index map[string]int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops string) bool {
	t := p.peek()
	return t.kind == tOp && strings.Contains(ops, t.text)
}

func (p *parser) parseExpr() (node, error) {
	l, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+-") {
		op := p.next().text[0]
		r, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l = binary{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseTerm() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*/") {
		op := p.next().text[0]
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = binary{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOp("-+") {
		op := p.next().text
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			return x, nil
		}
		return neg{x: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.isOp("^") {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binary{op: '^', l: base, r: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tNum:
		return num(t.num), nil
	case tLParen:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tRParen {
			return nil, eris.Errorf("combine: expected ) at offset %d", c.pos)
		}
		return x, nil
	case tIdent:
		if p.peek().kind == tLParen {
			return p.parseCall(t)
		}
		if v, ok := constants[t.text]; ok {
			return num(v), nil
		}
		return p.ref(t.text), nil
	case tEOF:
		return nil, eris.New("combine: unexpected end of expression")
	}
	return nil, eris.Errorf("combine: unexpected %q at offset %d", t.text, t.pos)
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := functions[strings.ToLower(name.text)]
	if !ok {
		return nil, eris.Errorf("combine: unknown function %q", name.text)
	}
	p.next()
	var args []node
	if p.peek().kind != tRParen {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind != tComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tRParen {
		return nil, eris.Errorf("combine: expected ) to close %s( at offset %d", fn.name, c.pos)
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, eris.Errorf("combine: %s takes %s, got %d", fn.name, arity(fn), len(args))
	}
	return call{fn: fn, args: args}, nil
}

func arity(fn *function) string {
	switch {
	case fn.maxArgs < 0:
		return "at least " + strconv.Itoa(fn.minArgs) + " arguments"
	case fn.minArgs == fn.maxArgs && fn.minArgs == 1:
		return "1 argument"
	case fn.minArgs == fn.maxArgs:
		return strconv.Itoa(fn.minArgs) + " arguments"
	}
	return strconv.Itoa(fn.minArgs) + " to " + strconv.Itoa(fn.maxArgs) + " arguments"
}

func (p *parser) ref(name string) node {
	i, ok := p.index[name]
	if !ok {
		i = len(p.refs)
		p.index[name] = i
		p.refs = append(p.refs, name)
	}
	return ref(i)
}
