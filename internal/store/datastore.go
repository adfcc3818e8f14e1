package store

// DataStore is the interface the indexer writes one file's rows through.
// Both Store (direct SQLite) and BatchedStore (in-memory buffering for
// parallel indexing) implement it.
type DataStore interface {
	// Inserts, each returning the assigned ID.
	InsertNode(n *NodeRecord) (int64, error)
	InsertGlobal(g *Global) (int64, error)
	InsertScope(sc *Scope) (int64, error)
	InsertBinding(b *Binding) (int64, error)

	GlobalsByFile(fileID int64) ([]*Global, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
