package transform

import (
	"errors"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// Resolver answers whether an identifier occurrence has an enclosing
// lexical binding. *resolve.Result satisfies it.
type Resolver interface {
	Bound(n *sitter.Node) bool
}

// Globals is the set of names with at least one unbound occurrence in a
// program. A Globals value belongs to a single transformation session.
type Globals map[string]struct{}

// Has reports whether name is global.
func (g Globals) Has(name string) bool {
	_, ok := g[name]
	return ok
}

// Len returns the number of global names.
func (g Globals) Len() int { return len(g) }

// Names returns the global names sorted.
func (g Globals) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectGlobals walks the whole tree below root once and adds the name of
// every identifier occurrence the resolver reports unbound. It builds no
// nodes.
func CollectGlobals(root *sitter.Node, src []byte, r Resolver) (Globals, error) {
	if root == nil {
		return nil, errors.New("transform: collect globals: nil root")
	}
	if r == nil {
		return nil, errors.New("transform: collect globals: nil resolver")
	}
	g := make(Globals)
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier", "shorthand_property_identifier":
			if !r.Bound(n) {
				g[n.Content(src)] = struct{}{}
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(root)
	return g, nil
}
