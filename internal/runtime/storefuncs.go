package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/risor-io/risor/object"

	"github.com/jward/svtree/internal/node"
	"github.com/jward/svtree/internal/store"
)

// Store query functions. Scripts get plain maps and lists rather than
// proxied structs so results can be indexed with m["field"].

func emptyOr(items []object.Object) object.Object {
	if items == nil {
		items = []object.Object{}
	}
	return object.NewList(items)
}

// fileArg resolves a path argument to its file row.
func fileArg(s *store.Store, fn string, obj object.Object) (*store.File, *object.Error) {
	path, errObj := stringArg(fn, obj, "path")
	if errObj != nil {
		return nil, errObj
	}
	f, err := s.FileByPath(path)
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	if f == nil {
		return nil, object.Errorf("%s: file %s is not indexed", fn, path)
	}
	return f, nil
}

func fileObject(f *store.File) object.Object {
	return object.NewMap(map[string]object.Object{
		"id":           object.NewInt(f.ID),
		"path":         object.NewString(f.Path),
		"language":     object.NewString(f.Language),
		"hash":         object.NewString(f.Hash),
		"line_count":   object.NewInt(int64(f.LineCount)),
		"last_indexed": object.NewString(f.LastIndexed.UTC().Format(time.RFC3339)),
	})
}

func filesToList(files []*store.File) object.Object {
	var items []object.Object
	for _, f := range files {
		items = append(items, fileObject(f))
	}
	return emptyOr(items)
}

// files() or files(language) → [file]
func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.NewArgsRangeError("files", 0, 1, len(args))
		}
		var (
			files []*store.File
			err   error
		)
		if len(args) == 1 {
			lang, errObj := stringArg("files", args[0], "language")
			if errObj != nil {
				return errObj
			}
			files, err = s.FilesByLanguage(lang)
		} else {
			files, err = s.Files()
		}
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		return filesToList(files)
	})
}

// nodes_by_file(path) → [node map], in source order
func makeNodesByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("nodes_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("nodes_by_file", 1, len(args))
		}
		f, errObj := fileArg(s, "nodes_by_file", args[0])
		if errObj != nil {
			return errObj
		}
		records, err := s.NodesByFile(f.ID)
		if err != nil {
			return object.Errorf("nodes_by_file: %v", err)
		}
		items := make([]object.Object, 0, len(records))
		for _, rec := range records {
			var body map[string]any
			if err := json.Unmarshal([]byte(rec.Body), &body); err != nil {
				return object.Errorf("nodes_by_file: node %d: %v", rec.Ordinal, err)
			}
			items = append(items, ToObject(body))
		}
		return object.NewList(items)
	})
}

// globals_by_file(path) → [name]
func makeGlobalsByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("globals_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("globals_by_file", 1, len(args))
		}
		f, errObj := fileArg(s, "globals_by_file", args[0])
		if errObj != nil {
			return errObj
		}
		globals, err := s.GlobalsByFile(f.ID)
		if err != nil {
			return object.Errorf("globals_by_file: %v", err)
		}
		var items []object.Object
		for _, g := range globals {
			items = append(items, object.NewString(g.Name))
		}
		return emptyOr(items)
	})
}

// files_with_global(name) → [file]
func makeFilesWithGlobalFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files_with_global", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("files_with_global", 1, len(args))
		}
		name, errObj := stringArg("files_with_global", args[0], "name")
		if errObj != nil {
			return errObj
		}
		files, err := s.FilesWithGlobal(name)
		if err != nil {
			return object.Errorf("files_with_global: %v", err)
		}
		return filesToList(files)
	})
}

// global_names() → [{name, files}], most used first
func makeGlobalNamesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("global_names", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("global_names", 0, len(args))
		}
		counts, err := s.GlobalNames()
		if err != nil {
			return object.Errorf("global_names: %v", err)
		}
		var items []object.Object
		for _, c := range counts {
			items = append(items, object.NewMap(map[string]object.Object{
				"name":  object.NewString(c.Name),
				"files": object.NewInt(int64(c.Files)),
			}))
		}
		return emptyOr(items)
	})
}

func scopeObject(sc *store.Scope) object.Object {
	m := map[string]object.Object{
		"id":         object.NewInt(sc.ID),
		"file_id":    object.NewInt(sc.FileID),
		"ordinal":    object.NewInt(int64(sc.Ordinal)),
		"kind":       object.NewString(sc.Kind),
		"start_line": object.NewInt(int64(sc.StartLine)),
		"start_col":  object.NewInt(int64(sc.StartCol)),
		"end_line":   object.NewInt(int64(sc.EndLine)),
		"end_col":    object.NewInt(int64(sc.EndCol)),
	}
	if sc.ParentScopeID != nil {
		m["parent_scope_id"] = object.NewInt(*sc.ParentScopeID)
	} else {
		m["parent_scope_id"] = object.Nil
	}
	return object.NewMap(m)
}

func scopesToList(scopes []*store.Scope) object.Object {
	var items []object.Object
	for _, sc := range scopes {
		items = append(items, scopeObject(sc))
	}
	return emptyOr(items)
}

// scopes_by_file(path) → [scope]
func makeScopesByFileFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("scopes_by_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("scopes_by_file", 1, len(args))
		}
		f, errObj := fileArg(s, "scopes_by_file", args[0])
		if errObj != nil {
			return errObj
		}
		scopes, err := s.ScopesByFile(f.ID)
		if err != nil {
			return object.Errorf("scopes_by_file: %v", err)
		}
		return scopesToList(scopes)
	})
}

// scope_chain(scope_id) → [scope], innermost first
func makeScopeChainFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("scope_chain", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("scope_chain", 1, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("scope_chain: %v", err)
		}
		chain, err := s.ScopeChain(id)
		if err != nil {
			return object.Errorf("scope_chain: %v", err)
		}
		return scopesToList(chain)
	})
}

// bindings_by_scope(scope_id) → [{name, kind, constant, ordinal}]
func makeBindingsByScopeFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("bindings_by_scope", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("bindings_by_scope", 1, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("bindings_by_scope: %v", err)
		}
		bindings, err := s.BindingsByScope(id)
		if err != nil {
			return object.Errorf("bindings_by_scope: %v", err)
		}
		var items []object.Object
		for _, b := range bindings {
			items = append(items, object.NewMap(map[string]object.Object{
				"id":       object.NewInt(b.ID),
				"scope_id": object.NewInt(b.ScopeID),
				"ordinal":  object.NewInt(int64(b.Ordinal)),
				"name":     object.NewString(b.Name),
				"kind":     object.NewString(b.Kind),
				"constant": object.NewBool(b.Constant),
			}))
		}
		return emptyOr(items)
	})
}

// makeDBQueryFn creates "db_query", which runs read-only SQL.
//
// db_query(sql, args...) → [{column: value}]
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, errObj := stringArg("db_query", args[0], "sql")
		if errObj != nil {
			return errObj
		}
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlStr)), "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		params := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			params = append(params, objectToSQL(arg))
		}

		rows, err := s.DB().QueryContext(ctx, sqlStr, params...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return object.Errorf("db_query: columns: %v", err)
		}

		var results []object.Object
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return emptyOr(results)
	})
}

func objectToSQL(arg object.Object) any {
	switch v := arg.(type) {
	case *object.Int:
		return v.Value()
	case *object.Float:
		return v.Value()
	case *object.String:
		return v.Value()
	case *object.Bool:
		return v.Value()
	case *object.NilType:
		return nil
	default:
		return arg.Inspect()
	}
}

func toInt64(obj object.Object) (int64, error) {
	switch v := obj.(type) {
	case *object.Int:
		return v.Value(), nil
	case *object.Float:
		return int64(v.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// ToObject converts decoded JSON-like Go values into Risor objects. JSON
// numbers arrive as float64 and stay floats.
func ToObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case map[string]any:
		if val == nil {
			return object.Nil
		}
		m := make(map[string]object.Object, len(val))
		for k, item := range val {
			m[k] = ToObject(item)
		}
		return object.NewMap(m)
	case []any:
		items := make([]object.Object, 0, len(val))
		for _, item := range val {
			items = append(items, ToObject(item))
		}
		return object.NewList(items)
	case []string:
		items := make([]object.Object, 0, len(val))
		for _, item := range val {
			items = append(items, object.NewString(item))
		}
		return object.NewList(items)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case int:
		return object.NewInt(int64(val))
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// NodesToObject converts SV nodes into the list of maps scripts receive.
func NodesToObject(nodes []node.Node) object.Object {
	items := make([]object.Object, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, ToObject(node.ToMap(n)))
	}
	return object.NewList(items)
}
