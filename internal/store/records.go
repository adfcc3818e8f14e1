package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, language, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = `id, path, language, hash, line_count, last_indexed`

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	return f, scanner.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed)
}

// FileByPath returns the file indexed at path, or nil if there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	files, err := s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	files, err := s.queryFiles("SELECT "+fileCols+" FROM files WHERE language = ? ORDER BY path", language)
	if err != nil {
		return nil, fmt.Errorf("files by language: %w", err)
	}
	return files, nil
}

// --- Node operations ---

func (s *Store) InsertNode(n *NodeRecord) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO nodes (file_id, ordinal, type, body) VALUES (?, ?, ?, ?)",
		n.FileID, n.Ordinal, n.Type, n.Body,
	)
	if err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	n.ID = id
	return id, nil
}

const nodeCols = `id, file_id, ordinal, type, body`

func (s *Store) queryNodes(query string, args ...any) ([]*NodeRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []*NodeRecord
	for rows.Next() {
		n := &NodeRecord{}
		if err := rows.Scan(&n.ID, &n.FileID, &n.Ordinal, &n.Type, &n.Body); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// NodesByFile returns a file's nodes in source order.
func (s *Store) NodesByFile(fileID int64) ([]*NodeRecord, error) {
	nodes, err := s.queryNodes("SELECT "+nodeCols+" FROM nodes WHERE file_id = ? ORDER BY ordinal", fileID)
	if err != nil {
		return nil, fmt.Errorf("nodes by file: %w", err)
	}
	return nodes, nil
}

// NodesByType returns every node of the given type across files.
func (s *Store) NodesByType(typ string) ([]*NodeRecord, error) {
	nodes, err := s.queryNodes("SELECT "+nodeCols+" FROM nodes WHERE type = ? ORDER BY file_id, ordinal", typ)
	if err != nil {
		return nil, fmt.Errorf("nodes by type: %w", err)
	}
	return nodes, nil
}

// --- Global operations ---

func (s *Store) InsertGlobal(g *Global) (int64, error) {
	res, err := s.db.Exec("INSERT INTO globals (file_id, name) VALUES (?, ?)", g.FileID, g.Name)
	if err != nil {
		return 0, fmt.Errorf("insert global: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	g.ID = id
	return id, nil
}

// GlobalsByFile returns a file's global names ordered by name.
func (s *Store) GlobalsByFile(fileID int64) ([]*Global, error) {
	rows, err := s.db.Query("SELECT id, file_id, name FROM globals WHERE file_id = ? ORDER BY name", fileID)
	if err != nil {
		return nil, fmt.Errorf("globals by file: %w", err)
	}
	defer rows.Close()
	var globals []*Global
	for rows.Next() {
		g := &Global{}
		if err := rows.Scan(&g.ID, &g.FileID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan global: %w", err)
		}
		globals = append(globals, g)
	}
	return globals, rows.Err()
}

// --- Scope operations ---

func (s *Store) InsertScope(sc *Scope) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO scopes (file_id, ordinal, kind, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.FileID, sc.Ordinal, sc.Kind,
		sc.StartLine, sc.StartCol, sc.EndLine, sc.EndCol, sc.ParentScopeID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert scope: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sc.ID = id
	return id, nil
}

const scopeCols = `id, file_id, ordinal, kind, start_line, start_col, end_line, end_col, parent_scope_id`

func scanScope(scanner interface{ Scan(...any) error }) (*Scope, error) {
	sc := &Scope{}
	return sc, scanner.Scan(
		&sc.ID, &sc.FileID, &sc.Ordinal, &sc.Kind,
		&sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol, &sc.ParentScopeID,
	)
}

// ScopesByFile returns a file's scopes in arena order.
func (s *Store) ScopesByFile(fileID int64) ([]*Scope, error) {
	rows, err := s.db.Query("SELECT "+scopeCols+" FROM scopes WHERE file_id = ? ORDER BY ordinal", fileID)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: %w", err)
	}
	defer rows.Close()
	var scopes []*Scope
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

// ScopeChain walks up the parent_scope_id chain from scopeID to root.
func (s *Store) ScopeChain(scopeID int64) ([]*Scope, error) {
	var chain []*Scope
	currentID := &scopeID
	for currentID != nil {
		sc, err := scanScope(s.db.QueryRow("SELECT "+scopeCols+" FROM scopes WHERE id = ?", *currentID))
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scope chain: %w", err)
		}
		chain = append(chain, sc)
		currentID = sc.ParentScopeID
	}
	return chain, nil
}

// --- Binding operations ---

func (s *Store) InsertBinding(b *Binding) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO bindings (scope_id, ordinal, name, kind, constant) VALUES (?, ?, ?, ?, ?)",
		b.ScopeID, b.Ordinal, b.Name, b.Kind, b.Constant,
	)
	if err != nil {
		return 0, fmt.Errorf("insert binding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	b.ID = id
	return id, nil
}

// BindingsByScope returns a scope's bindings ordered by ordinal.
func (s *Store) BindingsByScope(scopeID int64) ([]*Binding, error) {
	rows, err := s.db.Query(
		"SELECT id, scope_id, ordinal, name, kind, constant FROM bindings WHERE scope_id = ? ORDER BY ordinal", scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("bindings by scope: %w", err)
	}
	defer rows.Close()
	var bindings []*Binding
	for rows.Next() {
		b := &Binding{}
		if err := rows.Scan(&b.ID, &b.ScopeID, &b.Ordinal, &b.Name, &b.Kind, &b.Constant); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}
