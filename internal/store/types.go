package store

import "time"

type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// NodeRecord is one top-level SV node. Body holds the node's tagged JSON
// encoding; Type repeats its discriminant for filtering.
type NodeRecord struct {
	ID      int64
	FileID  int64
	Ordinal int
	Type    string
	Body    string
}

// Global is a name with an unbound occurrence in a file.
type Global struct {
	ID     int64
	FileID int64
	Name   string
}

// Scope mirrors one arena scope. Ordinal is the scope's ID in its file's
// arena; ParentScopeID is a row ID.
type Scope struct {
	ID            int64
	FileID        int64
	Ordinal       int
	Kind          string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	ParentScopeID *int64
}

type Binding struct {
	ID       int64
	ScopeID  int64
	Ordinal  int
	Name     string
	Kind     string
	Constant bool
}
