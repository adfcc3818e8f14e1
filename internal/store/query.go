package store

import "fmt"

// FilesWithGlobal returns the files in which name has an unbound
// occurrence, ordered by path.
func (s *Store) FilesWithGlobal(name string) ([]*File, error) {
	files, err := s.queryFiles(
		`SELECT f.id, f.path, f.language, f.hash, f.line_count, f.last_indexed
		FROM files f
		JOIN globals g ON g.file_id = f.id
		WHERE g.name = ?
		ORDER BY f.path`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("files with global: %w", err)
	}
	return files, nil
}

// GlobalCount is a global name with the number of files using it.
type GlobalCount struct {
	Name  string
	Files int
}

// GlobalNames returns every distinct global name with its file count,
// most used first.
func (s *Store) GlobalNames() ([]GlobalCount, error) {
	rows, err := s.db.Query(
		`SELECT name, COUNT(DISTINCT file_id) AS n FROM globals GROUP BY name ORDER BY n DESC, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("global names: %w", err)
	}
	defer rows.Close()
	var out []GlobalCount
	for rows.Next() {
		var gc GlobalCount
		if err := rows.Scan(&gc.Name, &gc.Files); err != nil {
			return nil, fmt.Errorf("scan global name: %w", err)
		}
		out = append(out, gc)
	}
	return out, rows.Err()
}

// FilesSharingGlobals returns the IDs of other files that use any global
// name of fileID.
func (s *Store) FilesSharingGlobals(fileID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT other.file_id
		FROM globals mine
		JOIN globals other ON other.name = mine.name AND other.file_id != mine.file_id
		WHERE mine.file_id = ?
		ORDER BY other.file_id`, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("files sharing globals: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// FilesByIDs returns the files with the given IDs ordered by path.
func (s *Store) FilesByIDs(ids []int64) ([]*File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	files, err := s.queryFiles(
		"SELECT "+fileCols+" FROM files WHERE id IN ("+placeholderList(len(ids))+") ORDER BY path",
		int64sToArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("files by ids: %w", err)
	}
	return files, nil
}
