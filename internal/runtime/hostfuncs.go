package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// sourceStore remembers the source bytes and grammar behind every tree a
// script parsed. go-tree-sitter has no Node.Tree(), so entries are keyed by
// the root node pointer and recovered by walking Parent().
type sourceStore struct {
	mu      sync.RWMutex
	entries map[uintptr]sourceEntry
}

type sourceEntry struct {
	src  []byte
	lang *sitter.Language
}

func newSourceStore() *sourceStore {
	return &sourceStore{entries: make(map[uintptr]sourceEntry)}
}

func (s *sourceStore) store(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	s.mu.Lock()
	s.entries[key] = sourceEntry{src: src, lang: lang}
	s.mu.Unlock()
}

func (s *sourceStore) lookup(n *sitter.Node) (sourceEntry, bool) {
	for n.Parent() != nil {
		n = n.Parent()
	}
	s.mu.RLock()
	e, ok := s.entries[uintptr(unsafe.Pointer(n))]
	s.mu.RUnlock()
	return e, ok
}

func stringArg(fn string, obj object.Object, what string) (string, *object.Error) {
	s, ok := obj.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, obj.Type())
	}
	return s.Value(), nil
}

func nodeArg(fn string, obj object.Object) (*sitter.Node, *object.Error) {
	p, ok := obj.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", fn, obj.Type())
	}
	n, ok := p.Interface().(*sitter.Node)
	if !ok || n == nil {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, p.Interface())
	}
	return n, nil
}

func proxyNode(fn string, n *sitter.Node) object.Object {
	if n == nil {
		return object.Nil
	}
	p, err := object.NewProxy(n)
	if err != nil {
		return object.Errorf("%s: proxy error: %v", fn, err)
	}
	return p
}

// makeParseFn creates "parse".
//
// parse(path) or parse(path, language) → *sitter.Tree
//
// Without a language the grammar is chosen from the file extension.
func makeParseFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError("parse", 1, 2, len(args))
		}
		path, errObj := stringArg("parse", args[0], "path")
		if errObj != nil {
			return errObj
		}

		var lang string
		if len(args) == 2 {
			if lang, errObj = stringArg("parse", args[1], "language"); errObj != nil {
				return errObj
			}
		} else {
			var ok bool
			if lang, ok = LanguageForFile(path); !ok {
				return object.Errorf("parse: cannot infer language for %s", path)
			}
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		return parseSource(ctx, ss, src, lang)
	})
}

// makeParseSrcFn creates "parse_src".
//
// parse_src(source, language) → *sitter.Tree
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, errObj := stringArg("parse_src", args[0], "source")
		if errObj != nil {
			return errObj
		}
		lang, errObj := stringArg("parse_src", args[1], "language")
		if errObj != nil {
			return errObj
		}
		return parseSource(ctx, ss, []byte(src), lang)
	})
}

// parseSource does not reject trees with ERROR nodes; scripts may inspect
// broken input.
func parseSource(ctx context.Context, ss *sourceStore, src []byte, langName string) object.Object {
	lang, found := ParserForLanguage(langName)
	if !found {
		return object.Errorf("parse: unsupported language %q", langName)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("parse: tree-sitter parse failed: %v", err)
	}
	ss.store(tree, src, lang)

	p, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("parse: proxy error: %v", err)
	}
	return p
}

// makeNodeTextFn creates "node_text". Risor cannot pass a []byte to
// node.Content, so the source is looked up Go-side.
//
// node_text(node) → string
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		n, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		e, found := ss.lookup(n)
		if !found {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(n.Content(e.src))
	})
}

// makeNodeChildFn creates "node_child", which returns Risor nil instead of a
// proxied Go nil pointer when the field is absent.
//
// node_child(node, field) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		n, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", args[1], "field")
		if errObj != nil {
			return errObj
		}
		return proxyNode("node_child", n.ChildByFieldName(field))
	})
}

// node_children(node) → [Node], named children only
func makeNodeChildrenFn() *object.Builtin {
	return object.NewBuiltin("node_children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_children", 1, len(args))
		}
		n, errObj := nodeArg("node_children", args[0])
		if errObj != nil {
			return errObj
		}
		count := int(n.NamedChildCount())
		items := make([]object.Object, 0, count)
		for i := 0; i < count; i++ {
			items = append(items, proxyNode("node_children", n.NamedChild(i)))
		}
		return object.NewList(items)
	})
}

// node_range(node) → {start_line, start_col, end_line, end_col}, 1-based lines
func makeNodeRangeFn() *object.Builtin {
	return object.NewBuiltin("node_range", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_range", 1, len(args))
		}
		n, errObj := nodeArg("node_range", args[0])
		if errObj != nil {
			return errObj
		}
		start, end := n.StartPoint(), n.EndPoint()
		return object.NewMap(map[string]object.Object{
			"start_line": object.NewInt(int64(start.Row) + 1),
			"start_col":  object.NewInt(int64(start.Column)),
			"end_line":   object.NewInt(int64(end.Row) + 1),
			"end_col":    object.NewInt(int64(end.Column)),
		})
	})
}

// language_for(path) → language name or nil
func makeLanguageForFn() *object.Builtin {
	return object.NewBuiltin("language_for", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("language_for", 1, len(args))
		}
		path, errObj := stringArg("language_for", args[0], "path")
		if errObj != nil {
			return errObj
		}
		lang, ok := LanguageForFile(path)
		if !ok {
			return object.Nil
		}
		return object.NewString(lang)
	})
}

// makeQueryFn creates "query".
//
// query(pattern, node) → [{capture: Node}]
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, errObj := stringArg("query", args[0], "pattern")
		if errObj != nil {
			return errObj
		}
		n, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		e, found := ss.lookup(n)
		if !found {
			return object.Errorf("query: no source found for node's tree")
		}

		matches, err := runQuery(pattern, n, e)
		if err != nil {
			return object.Errorf("query: %v", err)
		}
		return matches
	})
}

func runQuery(pattern string, n *sitter.Node, e sourceEntry) (object.Object, error) {
	q, err := sitter.NewQuery([]byte(pattern), e.lang)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, n)

	results := []object.Object{}
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, e.src)
		if len(match.Captures) == 0 {
			continue
		}
		captures := make(map[string]object.Object, len(match.Captures))
		for _, c := range match.Captures {
			p, err := object.NewProxy(c.Node)
			if err != nil {
				return nil, fmt.Errorf("proxy error for capture %q: %w", q.CaptureNameForId(c.Index), err)
			}
			captures[q.CaptureNameForId(c.Index)] = p
		}
		results = append(results, object.NewMap(captures))
	}
	return object.NewList(results), nil
}
