package svtree

import (
	"context"
	"fmt"
	"os"

	"github.com/jward/svtree/internal/node"
	"github.com/jward/svtree/internal/resolve"
	"github.com/jward/svtree/internal/runtime"
	"github.com/jward/svtree/internal/scope"
	"github.com/jward/svtree/internal/transform"
)

// Analysis is everything one pass over a source file produces.
type Analysis struct {
	Language string
	// Nodes are the program-level SV nodes in source order.
	Nodes []Node
	// Globals are the names with an unbound occurrence, sorted.
	Globals []string
	// Arena is the scope tree; scope 0 is the program.
	Arena *scope.Arena
	// Spans holds the source range of each scope, indexed by scope ID.
	Spans []resolve.Span
	// Lines is the number of source lines.
	Lines int
}

// Transform parses src as JavaScript and returns its top-level SV nodes.
func Transform(ctx context.Context, src []byte, opts ...TransformOption) ([]Node, error) {
	a, err := Analyze(ctx, src, "javascript", opts...)
	if err != nil {
		return nil, err
	}
	return a.Nodes, nil
}

// TransformFile reads path and transforms it with the grammar its
// extension selects.
func TransformFile(ctx context.Context, path string, opts ...TransformOption) ([]Node, error) {
	a, err := AnalyzeFile(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	return a.Nodes, nil
}

// AnalyzeFile is Analyze for a file on disk.
func AnalyzeFile(ctx context.Context, path string, opts ...TransformOption) (*Analysis, error) {
	lang, ok := runtime.LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("svtree: unsupported file type: %s", path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("svtree: read %s: %w", path, err)
	}
	return Analyze(ctx, src, lang, opts...)
}

// Analyze parses src with the grammar for lang, builds its scope tree,
// collects its globals and runs one transformation session.
func Analyze(ctx context.Context, src []byte, lang string, opts ...TransformOption) (*Analysis, error) {
	tree, err := runtime.Parse(ctx, src, lang)
	if err != nil {
		return nil, fmt.Errorf("svtree: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	r, err := transform.Analyze(ctx, root, src, opts...)
	if err != nil {
		return nil, fmt.Errorf("svtree: %w", err)
	}

	arena := r.Scopes.Arena()
	spans := make([]resolve.Span, arena.Len())
	for i := range spans {
		spans[i] = r.Scopes.Span(scope.ID(i))
	}
	return &Analysis{
		Language: lang,
		Nodes:    r.Nodes,
		Globals:  r.Globals.Names(),
		Arena:    arena,
		Spans:    spans,
		Lines:    int(root.EndPoint().Row) + 1,
	}, nil
}

// MarshalNodes encodes nodes as a JSON array of tagged objects.
func MarshalNodes(nodes []Node) ([]byte, error) {
	return node.MarshalList(nodes)
}
