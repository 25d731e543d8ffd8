package fuzzy

import "strings"

type aliasDef struct {
	name  string
	body  *Node
	line  int
	index int
}

const (
	white = iota
	grey
	black
)

// resolveAliases checks the DEF dependency graph and substitutes alias
// bodies in definition order. Cycles are found by a colouring DFS over the
// whole graph before any substitution, so a circular definition is reported
// rather than expanded.
func resolveAliases(defs []*aliasDef) (map[string]*Node, []error) {
	var errs []error
	byName := make(map[string]*aliasDef, len(defs))
	var order []*aliasDef
	for _, d := range defs {
		if prev, dup := byName[d.name]; dup {
			errs = append(errs, validationErr(d.line, d.name, "alias already defined on line %d", prev.line))
			continue
		}
		byName[d.name] = d
		order = append(order, d)
	}

	refs := make(map[string][]*Node, len(order))
	for _, d := range order {
		d.body.walk(func(n *Node) {
			if n.Op != opAlias {
				return
			}
			if _, ok := byName[n.alias]; !ok {
				errs = append(errs, validationErr(n.line, n.alias, "undefined alias"))
				return
			}
			refs[d.name] = append(refs[d.name], n)
		})
	}

	bad := map[string]bool{}
	colour := make(map[string]int, len(order))
	var path []string
	var visit func(name string)
	visit = func(name string) {
		colour[name] = grey
		path = append(path, name)
		for _, r := range refs[name] {
			switch colour[r.alias] {
			case grey:
				start := 0
				for i, p := range path {
					if p == r.alias {
						start = i
						break
					}
				}
				cycle := append(append([]string(nil), path[start:]...), r.alias)
				for _, c := range cycle {
					bad[c] = true
				}
				errs = append(errs, validationErr(byName[r.alias].line, r.alias,
					"alias cycle %s", strings.Join(cycle, " -> ")))
			case white:
				visit(r.alias)
			}
		}
		path = path[:len(path)-1]
		colour[name] = black
	}
	for _, d := range order {
		if colour[d.name] == white {
			visit(d.name)
		}
	}

	for _, d := range order {
		if bad[d.name] {
			continue
		}
		for _, r := range refs[d.name] {
			if target := byName[r.alias]; !bad[r.alias] && target.index > d.index {
				errs = append(errs, validationErr(r.line, r.alias,
					"alias used before its definition on line %d", target.line))
				bad[d.name] = true
			}
		}
	}

	resolved := make(map[string]*Node, len(order))
	known := make(map[string]bool, len(order))
	for _, d := range order {
		known[d.name] = true
	}
	for _, d := range order {
		if bad[d.name] {
			continue
		}
		n, err := substitute(d.body, resolved, known)
		if err != nil {
			bad[d.name] = true
			continue
		}
		resolved[d.name] = n
	}
	return resolved, errs
}

// errUnresolved marks a reference to an alias that exists but failed its
// own checks; the root cause has already been reported.
var errUnresolved = &ValidationError{Subject: "alias", Msg: "unresolved"}

// substitute returns a copy of n with alias references replaced by their
// resolved trees. Resolved trees are shared, which is safe because trees
// are never mutated after parsing.
func substitute(n *Node, resolved map[string]*Node, known map[string]bool) (*Node, error) {
	if n.Op == opAlias {
		if r, ok := resolved[n.alias]; ok {
			return r, nil
		}
		if known[n.alias] {
			return nil, errUnresolved
		}
		return nil, validationErr(n.line, n.alias, "undefined alias")
	}
	if len(n.Args) == 0 {
		return n, nil
	}
	cp := *n
	cp.Args = make([]*Node, len(n.Args))
	for i, a := range n.Args {
		s, err := substitute(a, resolved, known)
		if err != nil {
			return nil, err
		}
		cp.Args[i] = s
	}
	return &cp, nil
}
