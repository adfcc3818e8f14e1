package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jward/svtree/internal/node"
	"github.com/jward/svtree/internal/store"
)

const jsTestSource = `var counter = 0;

function greet(name) {
	return "Hello, " + name;
}

function add(a, b) {
	return a + b;
}

let total = add(counter, 2);
`

// parseJSSource parses src and registers it in a fresh Runtime's source store.
func parseJSSource(t *testing.T, src string) (*sitter.Tree, *Runtime) {
	t.Helper()
	rt := NewRuntime(nil, "")

	lang, ok := ParserForLanguage("javascript")
	require.True(t, ok)

	tree, err := Parse(context.Background(), []byte(src), "javascript")
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	rt.sources.store(tree, []byte(src), lang)
	return tree, rt
}

func writeTempJS(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// =============================================================================
// Languages & parsing
// =============================================================================

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"app.js", "javascript", true},
		{"app.jsx", "javascript", true},
		{"lib.mjs", "javascript", true},
		{"lib.cjs", "javascript", true},
		{"app.ts", "typescript", true},
		{"app.mts", "typescript", true},
		{"app.cts", "typescript", true},
		{"App.tsx", "tsx", true},
		{"path/to/INDEX.JS", "javascript", true},
		{"main.go", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParserForLanguage(t *testing.T) {
	t.Parallel()

	for _, lang := range Languages() {
		l, ok := ParserForLanguage(lang)
		assert.True(t, ok, lang)
		assert.NotNil(t, l, lang)
	}

	_, ok := ParserForLanguage("go")
	assert.False(t, ok)
}

func TestParse_ReturnsProgram(t *testing.T) {
	t.Parallel()

	tree, err := Parse(context.Background(), []byte(jsTestSource), "javascript")
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.Type())
	assert.Equal(t, uint32(4), root.NamedChildCount())
}

func TestParse_TypeScript(t *testing.T) {
	t.Parallel()

	tree, err := Parse(context.Background(), []byte("let n: number = 1;\n"), "typescript")
	require.NoError(t, err)
	defer tree.Close()
	assert.Equal(t, "program", tree.RootNode().Type())
}

func TestParse_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := Parse(context.Background(), []byte("var a = 1;\nvar b = (;\n"), "javascript")
	require.Error(t, err)

	var serr *SyntaxError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 2, serr.Line)
	assert.Contains(t, serr.Error(), "syntax error at 2:")
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	t.Parallel()

	_, err := Parse(context.Background(), []byte("x"), "cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

func TestSourceStore_LookupFromDescendant(t *testing.T) {
	t.Parallel()
	tree, rt := parseJSSource(t, jsTestSource)

	fn := tree.RootNode().NamedChild(1)
	require.Equal(t, "function_declaration", fn.Type())
	name := fn.ChildByFieldName("name")

	e, ok := rt.sources.lookup(name)
	require.True(t, ok)
	assert.Equal(t, "greet", name.Content(e.src))
	assert.NotNil(t, e.lang)
}

func TestSourceStore_UnknownTree(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	tree, err := Parse(context.Background(), []byte("let x;"), "javascript")
	require.NoError(t, err)
	defer tree.Close()

	_, ok := rt.sources.lookup(tree.RootNode())
	assert.False(t, ok)
}

func TestRunQuery_Captures(t *testing.T) {
	t.Parallel()
	tree, rt := parseJSSource(t, jsTestSource)

	root := tree.RootNode()
	e, ok := rt.sources.lookup(root)
	require.True(t, ok)

	result, err := runQuery("(function_declaration name: (identifier) @name)", root, e)
	require.NoError(t, err)
	list, ok := result.(*object.List)
	require.True(t, ok)
	assert.Len(t, list.Value(), 2)

	_, err = runQuery("(not_a_real_node @x)", root, e)
	require.Error(t, err)
}

// =============================================================================
// Tree host functions (via RunSource)
// =============================================================================

func TestRunSource_ParseSrcAndNodeText(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
tree := parse_src(src, "javascript")
root := tree.RootNode()
assert(root.Type() == "program", "expected program")

names := []
for _, child := range node_children(root) {
    if child.Type() == "function_declaration" {
        names.append(node_text(node_child(child, "name")))
    }
}
assert(len(names) == 2, 'expected 2 functions, got {len(names)}')
assert(names[0] == "greet", 'expected greet, got {names[0]}')
assert(names[1] == "add", 'expected add, got {names[1]}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": jsTestSource})
	require.NoError(t, err)
}

func TestRunSource_ParseInfersLanguage(t *testing.T) {
	t.Parallel()
	path := writeTempJS(t, "types.ts", "let n: number = 1;\n")
	rt := NewRuntime(nil, "")

	script := `
assert(language_for(path) == "typescript")
assert(language_for("notes.txt") == nil)
tree := parse(path)
assert(tree.RootNode().Type() == "program")
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"path": path}))
}

func TestRunSource_ParseUnknownExtension(t *testing.T) {
	t.Parallel()
	path := writeTempJS(t, "notes.txt", "let x;")
	rt := NewRuntime(nil, "")

	err := rt.RunSource(context.Background(), `parse(path)`, map[string]any{"path": path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot infer language")
}

func TestRunSource_Query(t *testing.T) {
	t.Parallel()
	path := writeTempJS(t, "app.js", jsTestSource)
	rt := NewRuntime(nil, "")

	script := `
root := parse(path, "javascript").RootNode()
matches := query("(function_declaration name: (identifier) @name)", root)
assert(len(matches) == 2, 'expected 2 matches, got {len(matches)}')
assert(node_text(matches[0]["name"]) == "greet")
assert(node_text(matches[1]["name"]) == "add")

none := query("(class_declaration) @cls", root)
assert(len(none) == 0)
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"path": path}))
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
root := parse_src("let x = 1;", "javascript").RootNode()
query("(not_a_real_node_type @x)", root)
`
	err := rt.RunSource(context.Background(), script, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRunSource_NodeChildMissingIsNil(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
root := parse_src("let x;", "javascript").RootNode()
decl := node_children(node_children(root)[0])[0]
assert(decl.Type() == "variable_declarator")
assert(node_child(decl, "value") == nil, "uninitialized declarator has no value")
assert(node_text(node_child(decl, "name")) == "x")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_NodeRange(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
root := parse_src(src, "javascript").RootNode()
r := node_range(node_children(root)[2])
assert(r["start_line"] == 7, 'expected line 7, got {r["start_line"]}')
assert(r["start_col"] == 0)
assert(r["end_line"] == 9)
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"src": jsTestSource}))
}

func TestRunSource_ArgumentErrors(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	tests := map[string]string{
		"parse_src arity":   `parse_src("x")`,
		"parse_src lang":    `parse_src("x", 1)`,
		"unsupported lang":  `parse_src("x", "cobol")`,
		"node_text type":    `node_text("not a node")`,
		"node_child field":  `node_child(parse_src("x", "javascript").RootNode(), 1)`,
		"node_range arity":  `node_range()`,
		"query node type":   `query("(identifier) @i", "root")`,
		"language_for type": `language_for(3)`,
	}
	for name, script := range tests {
		t.Run(name, func(t *testing.T) {
			require.Error(t, rt.RunSource(context.Background(), script, nil))
		})
	}
}

func TestRunSource_ExtraGlobals(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	double := object.NewBuiltin("double", func(ctx context.Context, args ...object.Object) object.Object {
		n, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("double: %v", err)
		}
		return object.NewInt(n * 2)
	})

	script := `
assert(double(answer) == 84)
assert(language_for == "overridden")
`
	err := rt.RunSource(context.Background(), script, map[string]any{
		"answer":       42,
		"double":       double,
		"language_for": "overridden",
	})
	require.NoError(t, err)
}

func TestRunSource_LogForwardsToZap(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	rt := NewRuntime(nil, "", WithLogger(zap.New(core)))

	script := `
log.Info("indexed file")
log.Warn("odd input")
log.Error("broken")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "indexed file", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "<inline>", entries[0].ContextMap()["script"])
}

func TestNodesToObject(t *testing.T) {
	t.Parallel()

	one, err := node.NewLiteral(node.LiteralNumber, float64(1))
	require.NoError(t, err)
	x, err := node.NewIdentifier("x", true)
	require.NoError(t, err)
	def, err := node.NewVariableDefinition(node.DeclareLet, []node.Declarator{
		{Name: "a", Value: one},
		{Name: "b"},
	})
	require.NoError(t, err)

	rt := NewRuntime(nil, "")
	script := `
assert(len(nodes) == 2)
def := nodes[0]
assert(def["type"] == "VariableDefinition")
assert(def["kind"] == "let")
assert(def["declarations"][0]["value"]["value"] == 1.0)
assert(def["declarations"][1]["name"] == "b")
assert(nodes[1]["isGlobal"] == true)
`
	err = rt.RunSource(context.Background(), script, map[string]any{
		"nodes": NodesToObject([]node.Node{def, x}),
	})
	require.NoError(t, err)
}

func TestToObject(t *testing.T) {
	t.Parallel()

	obj := ToObject(map[string]any{
		"list":  []any{"a", float64(2), true, nil},
		"names": []string{"x"},
		"n":     int64(3),
	})
	m, ok := obj.(*object.Map)
	require.True(t, ok)

	list, ok := m.Get("list").(*object.List)
	require.True(t, ok)
	require.Len(t, list.Value(), 4)
	assert.Equal(t, object.NewString("a"), list.Value()[0])
	assert.Equal(t, object.Nil, list.Value()[3])
	assert.Equal(t, object.NewInt(3), m.Get("n"))

	assert.Equal(t, object.Nil, ToObject(map[string]any(nil)))
}

// =============================================================================
// Store functions
// =============================================================================

func newPopulatedStore(t *testing.T) (*store.Store, *store.File) {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	f := &store.File{Path: "/src/app.js", Language: "javascript", Hash: "h1", LineCount: 3, LastIndexed: time.Now()}
	_, err = s.InsertFile(f)
	require.NoError(t, err)
	other := &store.File{Path: "/src/other.js", Language: "javascript", Hash: "h2", LineCount: 1, LastIndexed: time.Now()}
	_, err = s.InsertFile(other)
	require.NoError(t, err)

	x, err := node.NewIdentifier("y", true)
	require.NoError(t, err)
	def, err := node.NewVariableDefinition(node.DeclareConst, []node.Declarator{{Name: "x", Constant: true, Value: x}})
	require.NoError(t, err)
	body, err := node.Marshal(def)
	require.NoError(t, err)
	_, err = s.InsertNode(&store.NodeRecord{FileID: f.ID, Ordinal: 0, Type: string(def.Type()), Body: string(body)})
	require.NoError(t, err)

	for _, g := range []struct {
		file int64
		name string
	}{{f.ID, "y"}, {f.ID, "console"}, {other.ID, "console"}} {
		_, err := s.InsertGlobal(&store.Global{FileID: g.file, Name: g.name})
		require.NoError(t, err)
	}

	rootID, err := s.InsertScope(&store.Scope{FileID: f.ID, Ordinal: 0, Kind: "program", EndLine: 3})
	require.NoError(t, err)
	fnID, err := s.InsertScope(&store.Scope{FileID: f.ID, Ordinal: 1, Kind: "function", StartLine: 2, EndLine: 2, ParentScopeID: &rootID})
	require.NoError(t, err)
	_, err = s.InsertBinding(&store.Binding{ScopeID: rootID, Ordinal: 0, Name: "x", Kind: "const", Constant: true})
	require.NoError(t, err)
	_, err = s.InsertBinding(&store.Binding{ScopeID: fnID, Ordinal: 0, Name: "p", Kind: "var"})
	require.NoError(t, err)
	return s, f
}

func TestRunSource_StoreFunctions(t *testing.T) {
	t.Parallel()
	s, _ := newPopulatedStore(t)
	rt := NewRuntime(s, "")

	script := `
all := files()
assert(len(all) == 2, 'expected 2 files, got {len(all)}')
assert(all[0]["path"] == "/src/app.js")
assert(len(files("typescript")) == 0)

nodes := nodes_by_file("/src/app.js")
assert(len(nodes) == 1)
decl := nodes[0]["declarations"][0]
assert(decl["name"] == "x")
assert(decl["constant"] == true)
assert(decl["value"]["isGlobal"] == true)

names := globals_by_file("/src/app.js")
assert(len(names) == 2)
assert(names[0] == "console")
assert(names[1] == "y")
assert(len(files_with_global("console")) == 2)
assert(len(files_with_global("missing")) == 0)

counts := global_names()
assert(counts[0]["name"] == "console")
assert(counts[0]["files"] == 2)

scopes := scopes_by_file("/src/app.js")
assert(len(scopes) == 2)
assert(scopes[0]["parent_scope_id"] == nil)
fn := scopes[1]
assert(fn["kind"] == "function")
assert(fn["parent_scope_id"] == scopes[0]["id"])
assert(len(scope_chain(fn["id"])) == 2)

bindings := bindings_by_scope(scopes[0]["id"])
assert(len(bindings) == 1)
assert(bindings[0]["name"] == "x")
assert(bindings[0]["constant"] == true)

rows := db_query("SELECT name FROM globals WHERE file_id = ? ORDER BY name", all[1]["id"])
assert(len(rows) == 1)
assert(rows[0]["name"] == "console")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_StoreErrors(t *testing.T) {
	t.Parallel()
	s, _ := newPopulatedStore(t)
	rt := NewRuntime(s, "")

	tests := map[string]struct {
		script string
		want   string
	}{
		"unindexed path": {`nodes_by_file("/nope.js")`, "not indexed"},
		"write query":    {`db_query("DELETE FROM files")`, "only SELECT"},
		"bad scope id":   {`bindings_by_scope("one")`, "expected int"},
		"bad sql":        {`db_query("SELECT * FROM nowhere")`, "db_query"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := rt.RunSource(context.Background(), tt.script, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2, "rejected DELETE must not run")
}

func TestRunSource_StoreFunctionsAbsentWithoutStore(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	require.Error(t, rt.RunSource(context.Background(), `files()`, nil))
}

// =============================================================================
// Script loading & imports
// =============================================================================

func TestRunScript_LoadsFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sum.risor"), []byte(`assert(1 + 1 == 2)`), 0644))

	rt := NewRuntime(nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "sum.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, t.TempDir())

	err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading script")
}

func TestRunScript_ErrorNamesScript(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.risor"), []byte(`assert(false, "boom")`), 0644))

	rt := NewRuntime(nil, dir)
	err := rt.RunScript(context.Background(), "bad.risor", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.risor")
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	require.NoError(t, os.WriteFile(path, []byte(`x := 42`), 0644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, `x := 42`, got)

	got, err = rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, `x := 42`, got)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"reports/globals.risor": &fstest.MapFile{Data: []byte(`y := 99`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("reports/globals.risor")
	require.NoError(t, err)
	assert.Equal(t, `y := 99`, got)

	// Absolute-style paths resolve inside the FS.
	got, err = rt.LoadScript("/reports/globals.risor")
	require.NoError(t, err)
	assert.Equal(t, `y := 99`, got)

	_, err = rt.LoadScript("missing.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestImport_FSImporter(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"helpers.risor": &fstest.MapFile{Data: []byte(`
func count_functions(root) {
	return len(query("(function_declaration) @fn", root))
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import helpers
n := helpers.count_functions(parse_src(src, "javascript").RootNode())
assert(n == 2, 'expected 2, got {n}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"src": jsTestSource}))
}

func TestImport_LocalImporter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0644))

	rt := NewRuntime(nil, dir)
	script := `
import math_utils
result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_ModulesSeeLogGlobal(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func do_log(msg) {
	log.Info(msg)
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS), WithLogger(zap.New(core)))

	script := `
import helper
helper.do_log("from module")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
	assert.Equal(t, 1, logs.FilterMessage("from module").Len())
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "/some/dir", WithLogger(nil))
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
	assert.NotNil(t, rt.logger)
}
