package store

import "sync"

// BatchedStore buffers one file's inserts in memory using fake (negative)
// IDs. It implements DataStore so the indexer can write to it without
// knowing whether it's hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// Read queries are passed through to the underlying Store, which is safe
// for concurrent reads.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	// Buffered rows.
	Nodes    []NodeRecord
	Globals  []Global
	Scopes   []Scope
	Bindings []Binding

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertNode(n *NodeRecord) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	n.ID = fakeID
	b.Nodes = append(b.Nodes, *n)
	return fakeID, nil
}

func (b *BatchedStore) InsertGlobal(g *Global) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	g.ID = fakeID
	b.Globals = append(b.Globals, *g)
	return fakeID, nil
}

func (b *BatchedStore) InsertScope(sc *Scope) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	sc.ID = fakeID
	b.Scopes = append(b.Scopes, *sc)
	return fakeID, nil
}

func (b *BatchedStore) InsertBinding(bd *Binding) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	bd.ID = fakeID
	b.Bindings = append(b.Bindings, *bd)
	return fakeID, nil
}

// GlobalsByFile returns globals for a file, merging any buffered (not yet
// committed) globals with those already in the database.
func (b *BatchedStore) GlobalsByFile(fileID int64) ([]*Global, error) {
	globals, err := b.store.GlobalsByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Globals {
		if b.Globals[i].FileID == fileID {
			globals = append(globals, &b.Globals[i])
		}
	}
	return globals, nil
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Nodes) + len(b.Globals) + len(b.Scopes) + len(b.Bindings)
}
