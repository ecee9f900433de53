package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and callable_id references within the batch are rewritten using the
// fakeToReal mapping.
//
// When replaceFileID is positive, that file's previously extracted data is
// deleted in the same transaction, so readers never observe a half-indexed
// file. A batch carrying a File row updates it in that transaction too.
//
// Insert order respects FK dependencies:
//  1. Imports (depend on file_id only, which is already real)
//  2. Callables (depend on file_id only)
//  3. Params (depend on callable_id)
func (s *Store) CommitBatch(batch *BatchedStore, replaceFileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	if replaceFileID > 0 {
		if err := deleteFileDataTx(tx, replaceFileID); err != nil {
			return fmt.Errorf("store: commit batch: %w", err)
		}
	}
	if batch.File != nil {
		if err := updateFileTx(tx, batch.File); err != nil {
			return fmt.Errorf("store: commit batch: file %s: %w", batch.File.Path, err)
		}
	}

	fakeToReal := make(map[int64]int64)

	for _, imp := range batch.Imports {
		realID, err := insertImportTx(tx, &imp)
		if err != nil {
			return fmt.Errorf("store: commit batch: import %q: %w", imp.Module, err)
		}
		fakeToReal[imp.ID] = realID
	}

	for _, c := range batch.Callables {
		realID, err := insertCallableTx(tx, &c)
		if err != nil {
			return fmt.Errorf("store: commit batch: callable %q: %w", c.Qualname, err)
		}
		fakeToReal[c.ID] = realID
	}

	for _, p := range batch.Params {
		if p.CallableID < 0 {
			realID, ok := fakeToReal[p.CallableID]
			if !ok {
				return fmt.Errorf("store: commit batch: param %q has callable_id=%d not in fakeToReal map (have %d callables)", p.Name, p.CallableID, len(batch.Callables))
			}
			p.CallableID = realID
		}
		if _, err := insertParamTx(tx, &p); err != nil {
			return fmt.Errorf("store: commit batch: param %q: %w", p.Name, err)
		}
	}

	return tx.Commit()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertImportTx(tx execer, imp *Import) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO imports (file_id, module) VALUES (?, ?)",
		imp.FileID, imp.Module,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertCallableTx(tx execer, c *Callable) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO callables (file_id, qualname, kind, start_line, end_line,
			docstring, delegates_to, signature_hash, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FileID, c.Qualname, c.Kind, c.StartLine, c.EndLine,
		c.Docstring, c.DelegatesTo, c.SignatureHash, c.Error,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertParamTx(tx execer, p *Param) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO params (callable_id, ordinal, name, kind, docment, anno, default_expr)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.CallableID, p.Ordinal, p.Name, p.Kind, p.Docment, p.Anno, p.Default,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
