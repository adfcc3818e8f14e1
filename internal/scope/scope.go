// Package scope is a standalone lexical symbol table. Scopes live in an
// Arena and refer to their parent by ID, so ownership is explicit and the
// structure is acyclic: the Arena owns every Scope, a Binding names its
// scope by ID, and nothing holds a pointer upward.
package scope

import (
	"fmt"
	"sort"
)

// ID identifies a scope within its Arena. IDs are dense from 0 in creation
// order.
type ID int

// NoScope is the parent of a root scope.
const NoScope ID = -1

// Kind categorizes the lexical region a scope belongs to.
type Kind string

const (
	KindProgram  Kind = "program"
	KindFunction Kind = "function"
	KindBlock    Kind = "block"
	KindFor      Kind = "for"
	KindCatch    Kind = "catch"
	KindClass    Kind = "class"
	KindSwitch   Kind = "switch"
)

// DeclKind is the declaration keyword a Binding was introduced with.
type DeclKind string

const (
	Var   DeclKind = "var"
	Let   DeclKind = "let"
	Const DeclKind = "const"
)

func (k DeclKind) Valid() bool { return k == Var || k == Let || k == Const }

// Binding is one named declaration within a scope. The arena hands out
// copies, so a Binding is never altered once created.
type Binding struct {
	ID       int
	Name     string
	Kind     DeclKind
	Constant bool
	Scope    ID
}

// Scope is a lexical region owning a set of named bindings.
type Scope struct {
	id     ID
	parent ID
	kind   Kind

	bindings map[string]Binding
	count    int
}

func (s *Scope) ID() ID { return s.id }

// Parent is the enclosing scope, NoScope for a root.
func (s *Scope) Parent() ID { return s.parent }

func (s *Scope) Kind() Kind { return s.kind }

// HasInScope reports whether name is bound directly in s.
func (s *Scope) HasInScope(name string) bool {
	_, ok := s.bindings[name]
	return ok
}

// LookupLocal returns the binding for name in s without consulting
// ancestors.
func (s *Scope) LookupLocal(name string) (Binding, error) {
	if b, ok := s.bindings[name]; ok {
		return b, nil
	}
	return Binding{}, &UndefinedReferenceError{Name: name, Scope: s.id}
}

// Len is the number of bindings ever defined in s, counting var
// redeclarations.
func (s *Scope) Len() int { return s.count }

// Bindings returns the visible bindings of s ordered by binding ID.
func (s *Scope) Bindings() []Binding {
	out := make([]Binding, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Arena owns a tree of scopes.
type Arena struct {
	scopes []*Scope
}

func NewArena() *Arena {
	return &Arena{}
}

// NewScope appends a scope under parent (NoScope for a root) and returns
// its ID.
func (a *Arena) NewScope(parent ID, kind Kind) ID {
	if parent != NoScope && !a.valid(parent) {
		panic(fmt.Sprintf("scope: parent %d out of range", parent))
	}
	id := ID(len(a.scopes))
	a.scopes = append(a.scopes, &Scope{
		id:       id,
		parent:   parent,
		kind:     kind,
		bindings: make(map[string]Binding),
	})
	return id
}

func (a *Arena) valid(id ID) bool { return id >= 0 && int(id) < len(a.scopes) }

// Scope returns the scope with the given ID, or nil if out of range.
func (a *Arena) Scope(id ID) *Scope {
	if !a.valid(id) {
		return nil
	}
	return a.scopes[id]
}

// Len is the number of scopes in the arena.
func (a *Arena) Len() int { return len(a.scopes) }

// Chain returns id followed by its ancestors, innermost first.
func (a *Arena) Chain(id ID) []ID {
	var chain []ID
	for cur := id; a.valid(cur); cur = a.scopes[cur].parent {
		chain = append(chain, cur)
	}
	return chain
}

// Define creates a binding for name in scope id. Redefinition is allowed
// only when both the existing and the new binding are var; the new binding
// takes the next ordinal and shadows the old one for lookups.
func (a *Arena) Define(id ID, name string, kind DeclKind, constant bool) (Binding, error) {
	s := a.Scope(id)
	if s == nil {
		return Binding{}, fmt.Errorf("scope: define %q: no scope %d", name, id)
	}
	if !kind.Valid() {
		return Binding{}, fmt.Errorf("scope: define %q: invalid kind %q", name, kind)
	}
	if existing, ok := s.bindings[name]; ok {
		if existing.Kind != Var || kind != Var {
			return Binding{}, &RedeclarationError{Name: name, Scope: id, Existing: existing.Kind, Kind: kind}
		}
	}
	b := Binding{
		ID:       s.count,
		Name:     name,
		Kind:     kind,
		Constant: constant,
		Scope:    id,
	}
	s.bindings[name] = b
	s.count++
	return b, nil
}

// HasInChain reports whether name is bound in scope id or any ancestor.
func (a *Arena) HasInChain(id ID, name string) bool {
	_, ok := a.find(id, name)
	return ok
}

// LookupChain resolves name starting at scope id and walking outward.
func (a *Arena) LookupChain(id ID, name string) (Binding, error) {
	if b, ok := a.find(id, name); ok {
		return b, nil
	}
	return Binding{}, &UndefinedReferenceError{Name: name, Scope: id}
}

func (a *Arena) find(id ID, name string) (Binding, bool) {
	for cur := id; a.valid(cur); cur = a.scopes[cur].parent {
		if b, ok := a.scopes[cur].bindings[name]; ok {
			return b, true
		}
	}
	return Binding{}, false
}

// Walk calls fn for every scope in creation order (parents before
// children).
func (a *Arena) Walk(fn func(*Scope)) {
	for _, s := range a.scopes {
		fn(s)
	}
}
