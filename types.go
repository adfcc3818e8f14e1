package svtree

import (
	"github.com/jward/svtree/internal/node"
	"github.com/jward/svtree/internal/runtime"
	"github.com/jward/svtree/internal/scope"
	"github.com/jward/svtree/internal/store"
	"github.com/jward/svtree/internal/transform"
)

// Public aliases for internal types that appear in the Engine API.

type Node = node.Node
type ValidationError = node.ValidationError
type SyntaxError = runtime.SyntaxError
type UndefinedReferenceError = scope.UndefinedReferenceError
type RedeclarationError = scope.RedeclarationError

type TransformOption = transform.Option

type Store = store.Store
type File = store.File
type Scope = store.Scope
type Binding = store.Binding
type GlobalCount = store.GlobalCount

// Extended enables the call, member and assignment expression mappings.
func Extended() TransformOption { return transform.Extended() }
