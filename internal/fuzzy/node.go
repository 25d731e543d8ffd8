package fuzzy

import (
	"strconv"
	"strings"
)

// Op is the kind of an expression node.
type Op int

const (
	OpLeaf Op = iota
	OpNot
	OpAnd
	OpOr
	OpXor
	OpProduct
	OpSum
	OpGamma
	opAlias
)

var opNames = [...]string{"IS", "NOT", "AND", "OR", "XOR", "PRODUCT", "SUM", "GAMMA", "ALIAS"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "?"
}

// Node is one vertex of a compiled condition tree. Leaves name an input and
// one of its curves; every other node combines its Args.
type Node struct {
	Op    Op
	Input string
	Curve string
	Gamma float64
	Args  []*Node

	variable *Variable
	curve    *Curve
	alias    string
	line     int
	tok      string
}

// String renders the tree in prefix form, e.g. "AND(a IS low, NOT(b IS high))".
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.Op {
	case OpLeaf:
		sb.WriteString(n.Input)
		sb.WriteString(" IS ")
		sb.WriteString(n.Curve)
		return
	case opAlias:
		sb.WriteString("@")
		sb.WriteString(n.alias)
		return
	}
	sb.WriteString(n.Op.String())
	sb.WriteByte('(')
	if n.Op == OpGamma {
		sb.WriteString(strconv.FormatFloat(n.Gamma, 'g', -1, 64))
		sb.WriteString(", ")
	}
	for i, a := range n.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		a.write(sb)
	}
	sb.WriteByte(')')
}

// Equal reports structural equality of two trees.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Op != o.Op || n.Input != o.Input || n.Curve != o.Curve || n.Gamma != o.Gamma ||
		n.alias != o.alias || len(n.Args) != len(o.Args) {
		return false
	}
	for i := range n.Args {
		if !n.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// Inputs returns the distinct input names referenced by the tree, in first
// appearance order.
func (n *Node) Inputs() []string {
	seen := map[string]bool{}
	var out []string
	n.walk(func(x *Node) {
		if x.Op == OpLeaf && !seen[x.Input] {
			seen[x.Input] = true
			out = append(out, x.Input)
		}
	})
	return out
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, a := range n.Args {
		a.walk(fn)
	}
}

// Rule is one compiled IF ... THEN statement.
type Rule struct {
	Line        int
	Text        string
	Condition   *Node
	Result      string
	ResultCurve string

	result *Variable
	curve  *Curve
}

// RuleSet is the immutable output of Parse.
type RuleSet struct {
	Rules   []*Rule
	Aliases map[string]*Node
	schema  Schema
}

// Inputs returns the distinct input names referenced by any rule.
func (rs *RuleSet) Inputs() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rs.Rules {
		for _, in := range r.Condition.Inputs() {
			if !seen[in] {
				seen[in] = true
				out = append(out, in)
			}
		}
	}
	return out
}

// Results returns the distinct result variable names targeted by rules, in
// rule order.
func (rs *RuleSet) Results() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rs.Rules {
		if !seen[r.Result] {
			seen[r.Result] = true
			out = append(out, r.Result)
		}
	}
	return out
}

// Result returns the result variable with the given name.
func (rs *RuleSet) Result(name string) (*Variable, bool) {
	v, ok := rs.schema.Results[name]
	return v, ok
}

// Input returns the input variable with the given name.
func (rs *RuleSet) Input(name string) (*Variable, bool) {
	v, ok := rs.schema.Inputs[name]
	return v, ok
}
