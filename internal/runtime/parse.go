package runtime

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// SyntaxError reports the first ERROR or MISSING node tree-sitter produced.
// Lines and columns are 1-based.
type SyntaxError struct {
	Line, Col int
	Near      string
}

func (e *SyntaxError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("syntax error at %d:%d", e.Line, e.Col)
	}
	return fmt.Sprintf("syntax error at %d:%d near %q", e.Line, e.Col, e.Near)
}

// Parse parses src with the grammar for lang. The caller owns the returned
// tree and must Close it. Input that tree-sitter could only recover from
// is rejected with a *SyntaxError.
func Parse(ctx context.Context, src []byte, lang string) (*sitter.Tree, error) {
	grammar, ok := ParserForLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("parse: unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: tree-sitter parse failed: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		serr := firstError(root, src)
		tree.Close()
		return nil, serr
	}
	return tree, nil
}

// firstError finds the earliest ERROR or MISSING node below n.
func firstError(n *sitter.Node, src []byte) *SyntaxError {
	if n.IsError() || n.IsMissing() {
		p := n.StartPoint()
		near := n.Content(src)
		if len(near) > 32 {
			near = near[:32]
		}
		if n.IsMissing() {
			near = n.Type()
		}
		return &SyntaxError{Line: int(p.Row) + 1, Col: int(p.Column) + 1, Near: near}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && (child.HasError() || child.IsMissing()) {
			return firstError(child, src)
		}
	}
	p := n.StartPoint()
	return &SyntaxError{Line: int(p.Row) + 1, Col: int(p.Column) + 1}
}
