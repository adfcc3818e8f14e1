// Package svtree converts JavaScript and TypeScript syntax trees into a
// small, validated SV node model and indexes the results in SQLite.
//
// # Pipeline
//
// Each input is handled by a single synchronous pass:
//
//  1. Parse: tree-sitter builds the concrete syntax tree. Inputs with
//     syntax errors are rejected with a [SyntaxError].
//
//  2. Scopes: the scope analyzer builds an arena of program, function,
//     block and other scopes, hoisting var and function declarations.
//
//  3. Globals: every identifier occurrence with no enclosing binding adds
//     its name to the input's global set.
//
//  4. Transform: a fresh session walks the program statements and maps
//     supported constructs to nodes. Identifiers are tagged global when
//     their name is in the global set. Unsupported constructs are
//     omitted silently.
//
// # Usage
//
// For a single input:
//
//	nodes, err := svtree.Transform(ctx, []byte("let a = [1, 2];"))
//
// To index a project and query it:
//
//	e, err := svtree.New(".svtree/index.db", svtree.WithLogger(logger))
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.IndexDirectory(ctx, "path/to/project")
//	files, err := e.FilesUsingGlobal("window")
//
// # Incremental Indexing
//
// [Engine.IndexFiles] skips files whose content hash is unchanged. A
// changed file's nodes, globals and scopes are replaced in one
// transaction.
//
// # Scripts
//
// [Engine.RunScript] runs a Risor script with tree-sitter host functions,
// read access to the index and transform/globals_of functions bound to
// the Engine's transform options. See the internal/runtime package for
// the full set of globals.
package svtree
