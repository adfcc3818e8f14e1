package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and FK references within the batch are rewritten using the
// fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Nodes (depend on file_id only, which is already real)
//  2. Globals (depend on file_id only)
//  3. Scopes (depend on file_id, parent_scope_id; parents precede children)
//  4. Bindings (depend on scope_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	// 1. Nodes
	for _, n := range batch.Nodes {
		realID, err := insertNodeTx(tx, &n)
		if err != nil {
			return fmt.Errorf("commit batch: node %d: %w", n.Ordinal, err)
		}
		fakeToReal[n.ID] = realID
	}

	// 2. Globals
	for _, g := range batch.Globals {
		realID, err := insertGlobalTx(tx, &g)
		if err != nil {
			return fmt.Errorf("commit batch: global %q: %w", g.Name, err)
		}
		fakeToReal[g.ID] = realID
	}

	// 3. Scopes
	for _, sc := range batch.Scopes {
		if sc.ParentScopeID != nil && *sc.ParentScopeID < 0 {
			realID, ok := fakeToReal[*sc.ParentScopeID]
			if !ok {
				return fmt.Errorf("commit batch: scope %d has parent_scope_id=%d not in fakeToReal map", sc.Ordinal, *sc.ParentScopeID)
			}
			sc.ParentScopeID = &realID
		}
		realID, err := insertScopeTx(tx, &sc)
		if err != nil {
			return fmt.Errorf("commit batch: scope %d: %w", sc.Ordinal, err)
		}
		fakeToReal[sc.ID] = realID
	}

	// 4. Bindings
	for _, b := range batch.Bindings {
		if b.ScopeID < 0 {
			realID, ok := fakeToReal[b.ScopeID]
			if !ok {
				return fmt.Errorf("commit batch: binding %q has scope_id=%d not in fakeToReal map (have %d scopes)", b.Name, b.ScopeID, len(batch.Scopes))
			}
			b.ScopeID = realID
		}
		realID, err := insertBindingTx(tx, &b)
		if err != nil {
			return fmt.Errorf("commit batch: binding %q: %w", b.Name, err)
		}
		fakeToReal[b.ID] = realID
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---
// These mirror the Store insert methods but accept *sql.Tx instead of using s.db.

func insertNodeTx(tx *sql.Tx, n *NodeRecord) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO nodes (file_id, ordinal, type, body) VALUES (?, ?, ?, ?)",
		n.FileID, n.Ordinal, n.Type, n.Body,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertGlobalTx(tx *sql.Tx, g *Global) (int64, error) {
	res, err := tx.Exec("INSERT INTO globals (file_id, name) VALUES (?, ?)", g.FileID, g.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertScopeTx(tx *sql.Tx, sc *Scope) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO scopes (file_id, ordinal, kind, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.FileID, sc.Ordinal, sc.Kind,
		sc.StartLine, sc.StartCol, sc.EndLine, sc.EndCol, sc.ParentScopeID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertBindingTx(tx *sql.Tx, b *Binding) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO bindings (scope_id, ordinal, name, kind, constant) VALUES (?, ?, ?, ?, ?)",
		b.ScopeID, b.Ordinal, b.Name, b.Kind, b.Constant,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
