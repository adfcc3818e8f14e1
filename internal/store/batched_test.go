package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_AssignsNegativeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.js", "javascript")

	batch := NewBatchedStore(s)
	id1, err := batch.InsertNode(&NodeRecord{FileID: f.ID, Type: "Literal", Body: "{}"})
	require.NoError(t, err)
	id2, err := batch.InsertGlobal(&Global{FileID: f.ID, Name: "window"})
	require.NoError(t, err)

	assert.Negative(t, id1, "batched IDs should be negative")
	assert.Negative(t, id2)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, batch.Len())

	// Nothing reaches SQLite before CommitBatch.
	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestBatchedStore_GlobalsByFile_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.js", "javascript")
	other := insertTestFile(t, s, "/other.js", "javascript")

	// A global already in the database, e.g. from a previous run.
	insertTestGlobals(t, s, f.ID, "existing")

	batch := NewBatchedStore(s)
	insertTestGlobals(t, batch, f.ID, "buffered")
	insertTestGlobals(t, batch, other.ID, "elsewhere")

	globals, err := batch.GlobalsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, globals, 2)

	names := []string{globals[0].Name, globals[1].Name}
	assert.Contains(t, names, "existing")
	assert.Contains(t, names, "buffered")
}

func TestCommitBatch_RemapsScopeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.js", "javascript")

	batch := NewBatchedStore(s)
	_, err := batch.InsertNode(&NodeRecord{FileID: f.ID, Ordinal: 0, Type: "VariableDefinition", Body: `{"type":"VariableDefinition"}`})
	require.NoError(t, err)
	insertTestGlobals(t, batch, f.ID, "console")

	root := &Scope{FileID: f.ID, Ordinal: 0, Kind: "program"}
	rootID, err := batch.InsertScope(root)
	require.NoError(t, err)
	fn := &Scope{FileID: f.ID, Ordinal: 1, Kind: "function", ParentScopeID: &rootID}
	fnID, err := batch.InsertScope(fn)
	require.NoError(t, err)
	_, err = batch.InsertBinding(&Binding{ScopeID: rootID, Ordinal: 0, Name: "f", Kind: "var"})
	require.NoError(t, err)
	_, err = batch.InsertBinding(&Binding{ScopeID: fnID, Ordinal: 0, Name: "p", Kind: "var"})
	require.NoError(t, err)

	require.NoError(t, s.CommitBatch(batch))

	scopes, err := s.ScopesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, scopes, 2)
	assert.Positive(t, scopes[0].ID)
	require.NotNil(t, scopes[1].ParentScopeID)
	assert.Equal(t, scopes[0].ID, *scopes[1].ParentScopeID)

	bindings, err := s.BindingsByScope(scopes[1].ID)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "p", bindings[0].Name)

	chain, err := s.ScopeChain(scopes[1].ID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Positive(t, nodes[0].ID)

	globals, err := s.GlobalsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, globals, 1)
	assert.Equal(t, "console", globals[0].Name)
}

func TestCommitBatch_UnknownScopeFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.js", "javascript")

	batch := NewBatchedStore(s)
	insertTestGlobals(t, batch, f.ID, "window")
	_, err := batch.InsertBinding(&Binding{ScopeID: -99, Name: "lost", Kind: "let"})
	require.NoError(t, err)

	require.Error(t, s.CommitBatch(batch))

	// The transaction rolled back, including the global.
	globals, err := s.GlobalsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, globals)
}
