package store

import "fmt"

// FilesImportingModules returns the IDs of files that import any of the
// given modules or a submodule of one of them.
func (s *Store) FilesImportingModules(modules []string) ([]int64, error) {
	if len(modules) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT file_id FROM imports
		WHERE module IN (` + placeholderList(len(modules)) + `)`
	args := stringsToArgs(modules)
	for _, m := range modules {
		query += ` OR module LIKE ? ESCAPE '\'`
		args = append(args, EscapeLike(m)+".%")
	}
	query += " ORDER BY file_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: files importing modules: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// SignatureHashes returns the signature hash of every callable in the given
// files, keyed by "module:qualname".
func (s *Store) SignatureHashes(fileIDs []int64) (map[string]string, error) {
	out := make(map[string]string)
	if len(fileIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(
		`SELECT f.module, c.qualname, c.signature_hash FROM callables c
		 JOIN files f ON f.id = c.file_id
		 WHERE c.file_id IN (`+placeholderList(len(fileIDs))+`)`,
		int64sToArgs(fileIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: signature hashes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var module, qualname, hash string
		if err := rows.Scan(&module, &qualname, &hash); err != nil {
			return nil, fmt.Errorf("store: scan signature hash: %w", err)
		}
		out[module+":"+qualname] = hash
	}
	return out, rows.Err()
}
