package fuzzy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokLParen
	tokRParen
	tokComma
	tokIf
	tokDef
	tokIs
	tokThen
	tokAnd
	tokOr
	tokXor
	tokNot
	tokProduct
	tokSum
	tokGamma
)

var keywords = map[string]tokenKind{
	"if":      tokIf,
	"def":     tokDef,
	"is":      tokIs,
	"then":    tokThen,
	"and":     tokAnd,
	"or":      tokOr,
	"xor":     tokXor,
	"not":     tokNot,
	"product": tokProduct,
	"sum":     tokSum,
	"gamma":   tokGamma,
}

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of statement"
	case tokNewline:
		return "end of line"
	}
	return t.text
}

// lexer splits rule text into tokens. Reserved words are matched after
// Unicode case folding; identifiers keep their original case.
type lexer struct {
	s    string
	i    int
	line int
	fold cases.Caser
}

func newLexer(s string) *lexer {
	return &lexer{s: s, line: 1, fold: cases.Fold()}
}

func (l *lexer) keyword(word string) (tokenKind, bool) {
	k, ok := keywords[l.fold.String(word)]
	return k, ok
}

// all lexes the whole source. Comments run from '#' to end of line and are
// dropped; newlines are kept so statements can be split on them.
func (l *lexer) all() ([]token, error) {
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.i < len(l.s) {
		ch := l.s[l.i]
		if ch == '#' {
			for l.i < len(l.s) && l.s[l.i] != '\n' {
				l.i++
			}
			continue
		}
		if ch == '\n' {
			l.i++
			l.line++
			return token{kind: tokNewline, text: "\n", line: l.line - 1}, nil
		}
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f' || ch == '\v' {
			l.i++
			continue
		}
		break
	}
	if l.i >= len(l.s) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	ch := l.s[l.i]
	switch ch {
	case '(':
		l.i++
		return token{kind: tokLParen, text: "(", line: l.line}, nil
	case ')':
		l.i++
		return token{kind: tokRParen, text: ")", line: l.line}, nil
	case ',':
		l.i++
		return token{kind: tokComma, text: ",", line: l.line}, nil
	case '=':
		l.i++
		return token{kind: tokIs, text: "=", line: l.line}, nil
	}

	if isNumberStart(l.s, l.i) {
		start := l.i
		l.i++
		for l.i < len(l.s) && isNumberPart(l.s, l.i) {
			l.i++
		}
		return token{kind: tokNumber, text: l.s[start:l.i], line: l.line}, nil
	}

	r, size := utf8.DecodeRuneInString(l.s[l.i:])
	if isIdentStart(r) {
		start := l.i
		l.i += size
		for l.i < len(l.s) {
			r, size = utf8.DecodeRuneInString(l.s[l.i:])
			if !isIdentPart(r) {
				break
			}
			l.i += size
		}
		word := l.s[start:l.i]
		if k, ok := l.keyword(word); ok {
			return token{kind: k, text: word, line: l.line}, nil
		}
		return token{kind: tokIdent, text: word, line: l.line}, nil
	}

	return token{}, &SyntaxError{Line: l.line, Token: string(r), Msg: "unexpected character"}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '.' || r == '-'
}

func isNumberStart(s string, i int) bool {
	c := s[i]
	if c >= '0' && c <= '9' {
		return true
	}
	if (c == '-' || c == '+' || c == '.') && i+1 < len(s) {
		n := s[i+1]
		return (n >= '0' && n <= '9') || (c != '.' && n == '.')
	}
	return false
}

func isNumberPart(s string, i int) bool {
	c := s[i]
	switch {
	case c >= '0' && c <= '9', c == '.':
		return true
	case c == 'e' || c == 'E':
		return true
	case c == '-' || c == '+':
		p := s[i-1]
		return p == 'e' || p == 'E'
	}
	return false
}

// sourceLines returns the trimmed text of lines [from, to] (1-based), for
// error context.
func sourceLines(src string, from, to int) string {
	lines := strings.Split(src, "\n")
	if from < 1 {
		from = 1
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from > to {
		return ""
	}
	parts := make([]string, 0, to-from+1)
	for _, ln := range lines[from-1 : to] {
		if c := strings.IndexByte(ln, '#'); c >= 0 {
			ln = ln[:c]
		}
		if ln = strings.TrimSpace(ln); ln != "" {
			parts = append(parts, ln)
		}
	}
	return strings.Join(parts, " ")
}
