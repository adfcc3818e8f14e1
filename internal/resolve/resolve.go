// Package resolve answers, for every identifier occurrence in a parsed
// JavaScript or TypeScript program, whether it has an enclosing lexical
// binding.
//
// Analysis runs in two steps. The declaration walk builds a scope.Arena
// mirroring the program's lexical regions, defines every binding (var and
// function declarations hoisted to their function, let/const/class scoped to
// their block, parameters, catch parameters, imports, destructured names)
// and records the scope each identifier occurrence appears in. Only after
// the whole tree is declared are occurrences judged, so hoisting and
// temporal-dead-zone references resolve the same way the language does.
package resolve

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/svtree/internal/scope"
)

// Span is a 0-based source range.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func spanOf(n *sitter.Node) Span {
	s, e := n.StartPoint(), n.EndPoint()
	return Span{
		StartLine: int(s.Row), StartCol: int(s.Column),
		EndLine: int(e.Row), EndCol: int(e.Column),
	}
}

type nodeKey struct{ start, end uint32 }

func keyOf(n *sitter.Node) nodeKey { return nodeKey{n.StartByte(), n.EndByte()} }

// Result is the outcome of Analyze for one program.
type Result struct {
	arena *scope.Arena
	spans []Span
	src   []byte

	// refs maps each recorded identifier occurrence to the innermost
	// scope enclosing it.
	refs map[nodeKey]scope.ID

	// implicitArgs marks non-arrow function scopes, which bind
	// `arguments` without a declaration.
	implicitArgs map[scope.ID]bool
}

// Arena returns the scope tree built for the program. Scope 0 is the
// program scope.
func (r *Result) Arena() *scope.Arena { return r.arena }

// Span returns the source range of scope id.
func (r *Result) Span(id scope.ID) Span {
	if int(id) < 0 || int(id) >= len(r.spans) {
		return Span{}
	}
	return r.spans[id]
}

// ScopeOf returns the scope an identifier occurrence was recorded in.
func (r *Result) ScopeOf(n *sitter.Node) (scope.ID, bool) {
	id, ok := r.refs[keyOf(n)]
	return id, ok
}

// Bound reports whether the identifier occurrence n has an enclosing
// binding. Occurrences the analysis does not treat as value references
// (import and export specifier names, type positions) are reported bound.
func (r *Result) Bound(n *sitter.Node) bool {
	id, ok := r.refs[keyOf(n)]
	if !ok {
		return true
	}
	name := n.Content(r.src)
	if r.arena.HasInChain(id, name) {
		return true
	}
	if name == "arguments" {
		for _, sid := range r.arena.Chain(id) {
			if r.implicitArgs[sid] {
				return true
			}
		}
	}
	return false
}

// References returns the number of identifier occurrences recorded.
func (r *Result) References() int { return len(r.refs) }

// Analyze builds the scope tree for the program rooted at root. Conflicting
// declarations surface as *scope.RedeclarationError.
func Analyze(root *sitter.Node, src []byte) (*Result, error) {
	r := &Result{
		arena:        scope.NewArena(),
		src:          src,
		refs:         make(map[nodeKey]scope.ID),
		implicitArgs: make(map[scope.ID]bool),
	}
	w := &walker{res: r, src: src}

	program := w.newScope(scope.NoScope, scope.KindProgram, root)
	if err := w.children(root, program, program); err != nil {
		return nil, err
	}
	if err := w.hoistBlockFunctions(); err != nil {
		return nil, err
	}
	return r, nil
}

// IsIdentifier reports whether n is an identifier occurrence the analysis
// may record: a plain identifier or an object-literal shorthand property.
func IsIdentifier(n *sitter.Node) bool {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier":
		return true
	}
	return false
}
