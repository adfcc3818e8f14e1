// Package transform maps a tree-sitter JavaScript or TypeScript tree onto
// the SV node vocabulary.
//
// A transformation runs two passes over the same tree. CollectGlobals finds
// every name with an unbound occurrence; the Session then walks the program
// statements depth first and builds nodes, tagging identifiers with that
// set. Only program-level results are returned. Kinds without a mapping
// produce no node and no error.
package transform

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/svtree/internal/node"
	"github.com/jward/svtree/internal/resolve"
)

// Handler builds a node for one tree-sitter kind. Returning a nil node
// omits the construct.
type Handler func(s *Session, n *sitter.Node) (node.Node, error)

type config struct {
	handlers map[string]Handler
	onSkip   func(n *sitter.Node)
}

// Option configures a Session.
type Option func(*config)

// WithHandler registers h for tree-sitter nodes of the given kind. It
// takes precedence over the built-in mapping for that kind.
func WithHandler(kind string, h Handler) Option {
	return func(c *config) {
		c.handlers[kind] = h
	}
}

// WithSkipHook calls fn for every node the pass omits because its kind
// has no mapping.
func WithSkipHook(fn func(n *sitter.Node)) Option {
	return func(c *config) {
		c.onSkip = fn
	}
}

// Session holds the state of one transformation: the source text, its
// globals and the handler table. A Session must not be shared between
// inputs or goroutines.
type Session struct {
	src      []byte
	globals  Globals
	handlers map[string]Handler
	onSkip   func(n *sitter.Node)
}

// NewSession returns a session for src whose identifiers are classified
// against globals.
func NewSession(src []byte, globals Globals, opts ...Option) *Session {
	c := &config{handlers: make(map[string]Handler)}
	for _, o := range opts {
		o(c)
	}
	if globals == nil {
		globals = Globals{}
	}
	return &Session{src: src, globals: globals, handlers: c.handlers, onSkip: c.onSkip}
}

// Globals returns the session's global names.
func (s *Session) Globals() Globals { return s.globals }

// IsGlobal reports whether name has an unbound occurrence in the input.
func (s *Session) IsGlobal(name string) bool { return s.globals.Has(name) }

// Text returns the source text of n.
func (s *Session) Text(n *sitter.Node) string { return n.Content(s.src) }

// Result is one complete transformation of a parsed program.
type Result struct {
	Nodes   []node.Node
	Globals Globals
	Scopes  *resolve.Result
}

// Analyze builds the scope tree of the program rooted at root, collects its
// globals and runs a fresh Session over it.
func Analyze(ctx context.Context, root *sitter.Node, src []byte, opts ...Option) (*Result, error) {
	res, err := resolve.Analyze(root, src)
	if err != nil {
		return nil, fmt.Errorf("analyze scopes: %w", err)
	}
	globals, err := CollectGlobals(root, src, res)
	if err != nil {
		return nil, err
	}
	nodes, err := NewSession(src, globals, opts...).Run(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	return &Result{Nodes: nodes, Globals: globals, Scopes: res}, nil
}

// Transform is Analyze for an already parsed tree, keeping only the nodes.
func Transform(ctx context.Context, tree *sitter.Tree, src []byte, opts ...Option) ([]node.Node, error) {
	r, err := Analyze(ctx, tree.RootNode(), src, opts...)
	if err != nil {
		return nil, err
	}
	return r.Nodes, nil
}

// Run maps each statement of the program rooted at root and returns the
// nodes in source order. Top-level expression statements are scanned but
// contribute nothing. Any error aborts the run without partial output.
func (s *Session) Run(ctx context.Context, root *sitter.Node) ([]node.Node, error) {
	var out []node.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stmt := root.NamedChild(i)
		if stmt.Type() == "expression_statement" {
			if _, err := s.Scan(firstNamed(stmt)); err != nil {
				return nil, err
			}
			continue
		}
		n, err := s.Scan(stmt)
		if err != nil {
			return nil, err
		}
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// Scan maps n in a child position. It returns a nil node for unsupported
// kinds, and for composites missing a supported required child.
func (s *Session) Scan(n *sitter.Node) (node.Node, error) {
	if n == nil {
		return nil, nil
	}
	kind := n.Type()
	if h, ok := s.handlers[kind]; ok {
		return h(s, n)
	}

	switch kind {
	case "string":
		v, err := unquote(s.Text(n))
		if err != nil {
			return nil, err
		}
		return node.NewLiteral(node.LiteralString, v)

	case "number":
		v, ok, err := parseNumber(s.Text(n))
		if err != nil || !ok {
			return nil, err
		}
		return node.NewLiteral(node.LiteralNumber, v)

	case "true", "false":
		return node.NewLiteral(node.LiteralBoolean, kind == "true")

	case "binary_expression":
		return s.binary(n)

	case "unary_expression":
		return s.unary(n)

	case "array":
		return s.array(n)

	case "parenthesized_expression":
		return s.Scan(firstNamed(n))

	case "identifier":
		name := s.Text(n)
		return node.NewIdentifier(name, s.globals.Has(name))

	case "lexical_declaration", "variable_declaration":
		return s.declaration(n)
	}

	s.skip(n)
	return nil, nil
}

func (s *Session) skip(n *sitter.Node) {
	if s.onSkip != nil {
		s.onSkip(n)
	}
}

func (s *Session) binary(n *sitter.Node) (node.Node, error) {
	op := s.fieldText(n, "operator")
	left, err := s.Scan(n.ChildByFieldName("left"))
	if err != nil || left == nil {
		return nil, err
	}
	right, err := s.Scan(n.ChildByFieldName("right"))
	if err != nil || right == nil {
		return nil, err
	}
	if node.IsLogical(op) {
		return node.NewLogicalExpression(node.LogicalOperator(op), left, right)
	}
	return node.NewBinaryExpression(node.BinaryOperator(op), left, right)
}

func (s *Session) unary(n *sitter.Node) (node.Node, error) {
	operand, err := s.Scan(n.ChildByFieldName("argument"))
	if err != nil || operand == nil {
		return nil, err
	}
	return node.NewUnaryExpression(node.UnaryOperator(s.fieldText(n, "operator")), operand)
}

// array collects the supported elements in reverse source order.
func (s *Session) array(n *sitter.Node) (node.Node, error) {
	var elems []node.Node
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		el, err := s.Scan(n.NamedChild(i))
		if err != nil {
			return nil, err
		}
		if el != nil {
			elems = append(elems, el)
		}
	}
	return node.NewArrayExpression(elems)
}

// declaration builds one VariableDefinition for a whole statement. Only
// declarators binding a plain identifier are kept.
func (s *Session) declaration(n *sitter.Node) (node.Node, error) {
	kind := node.DeclareVar
	if n.Type() == "lexical_declaration" {
		kind = node.DeclarationKind(s.fieldText(n, "kind"))
	}
	decls := []node.Declarator{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		if name == nil || name.Type() != "identifier" {
			continue
		}
		value, err := s.Scan(d.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		decls = append(decls, node.Declarator{
			Name:     s.Text(name),
			Constant: kind == node.DeclareConst,
			Value:    value,
		})
	}
	return node.NewVariableDefinition(kind, decls)
}

func (s *Session) fieldText(n *sitter.Node, field string) string {
	if f := n.ChildByFieldName(field); f != nil {
		return s.Text(f)
	}
	return ""
}

// firstNamed returns the first named child that is not a comment.
func firstNamed(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}
