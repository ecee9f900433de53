package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, module, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Module, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// UpdateFile rewrites the mutable columns of an existing file row.
func (s *Store) UpdateFile(f *File) error {
	if err := updateFileTx(s.db, f); err != nil {
		return fmt.Errorf("store: update file: %w", err)
	}
	return nil
}

func updateFileTx(tx execer, f *File) error {
	_, err := tx.Exec(
		"UPDATE files SET module = ?, hash = ?, line_count = ?, last_indexed = ? WHERE id = ?",
		f.Module, f.Hash, f.LineCount, f.LastIndexed, f.ID,
	)
	return err
}

// FileCols is the column list for file queries, exported for use by QueryBuilder.
const FileCols = "id, path, module, hash, line_count, last_indexed"

// ScanFileRow scans a single row into a File. Exported for use by QueryBuilder.
func ScanFileRow(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var hash sql.NullString
	var indexed sql.NullTime
	if err := scanner.Scan(&f.ID, &f.Path, &f.Module, &hash, &f.LineCount, &indexed); err != nil {
		return nil, err
	}
	f.Hash = hash.String
	f.LastIndexed = indexed.Time
	return f, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := ScanFileRow(s.db.QueryRow("SELECT "+FileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := ScanFileRow(s.db.QueryRow("SELECT "+FileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: file by id: %w", err)
	}
	return f, nil
}

// FilesByModule returns the files indexed under a module name. Normally
// there is one; a package directory and a same-named module file can both
// claim a name.
func (s *Store) FilesByModule(module string) ([]*File, error) {
	return s.queryFiles("SELECT "+FileCols+" FROM files WHERE module = ? ORDER BY path", module)
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	return s.queryFiles("SELECT " + FileCols + " FROM files ORDER BY path")
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := ScanFileRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Import operations ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	id, err := insertImportTx(s.db, imp)
	if err != nil {
		return 0, fmt.Errorf("store: insert import: %w", err)
	}
	imp.ID = id
	return id, nil
}

func (s *Store) ImportsByFile(fileID int64) ([]*Import, error) {
	rows, err := s.db.Query("SELECT id, file_id, module FROM imports WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("store: imports by file: %w", err)
	}
	defer rows.Close()
	var out []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Module); err != nil {
			return nil, fmt.Errorf("store: scan import: %w", err)
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

// --- Callable operations ---

func (s *Store) InsertCallable(c *Callable) (int64, error) {
	id, err := insertCallableTx(s.db, c)
	if err != nil {
		return 0, fmt.Errorf("store: insert callable: %w", err)
	}
	c.ID = id
	return id, nil
}

// CallableCols is the column list for callable queries, exported for use by QueryBuilder.
const CallableCols = `id, file_id, qualname, kind, start_line, end_line,
	docstring, delegates_to, signature_hash, error`

// ScanCallableRow scans a single row into a Callable. Exported for use by QueryBuilder.
func ScanCallableRow(scanner interface{ Scan(...any) error }) (*Callable, error) {
	c := &Callable{}
	var doc, dl, hash, errText sql.NullString
	err := scanner.Scan(
		&c.ID, &c.FileID, &c.Qualname, &c.Kind, &c.StartLine, &c.EndLine,
		&doc, &dl, &hash, &errText,
	)
	if err != nil {
		return nil, err
	}
	c.Docstring, c.DelegatesTo, c.SignatureHash, c.Error = doc.String, dl.String, hash.String, errText.String
	return c, nil
}

// QueryCallables runs a query selecting CallableCols.
func (s *Store) QueryCallables(query string, args ...any) ([]*Callable, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: callables: %w", err)
	}
	defer rows.Close()
	var out []*Callable
	for rows.Next() {
		c, err := ScanCallableRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan callable: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CallablesByFile(fileID int64) ([]*Callable, error) {
	return s.QueryCallables("SELECT "+CallableCols+" FROM callables WHERE file_id = ? ORDER BY start_line, id", fileID)
}

// CallableByName returns the callable called qualname in the given module,
// or nil.
func (s *Store) CallableByName(module, qualname string) (*Callable, error) {
	out, err := s.QueryCallables(
		`SELECT `+prefixCols("c.", CallableCols)+` FROM callables c
		 JOIN files f ON f.id = c.file_id
		 WHERE f.module = ? AND c.qualname = ?
		 ORDER BY f.path LIMIT 1`,
		module, qualname,
	)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

// CallablesByName returns callables called qualname in any module.
func (s *Store) CallablesByName(qualname string) ([]*Callable, error) {
	return s.QueryCallables("SELECT "+CallableCols+" FROM callables WHERE qualname = ? ORDER BY file_id, start_line", qualname)
}

// --- Param operations ---

func (s *Store) InsertParam(p *Param) (int64, error) {
	id, err := insertParamTx(s.db, p)
	if err != nil {
		return 0, fmt.Errorf("store: insert param: %w", err)
	}
	p.ID = id
	return id, nil
}

// ParamCols is the column list for param queries, exported for use by QueryBuilder.
const ParamCols = "id, callable_id, ordinal, name, kind, docment, anno, default_expr"

// ScanParamRow scans a single row into a Param. Exported for use by QueryBuilder.
func ScanParamRow(scanner interface{ Scan(...any) error }) (*Param, error) {
	p := &Param{}
	var doc, anno, def sql.NullString
	if err := scanner.Scan(&p.ID, &p.CallableID, &p.Ordinal, &p.Name, &p.Kind, &doc, &anno, &def); err != nil {
		return nil, err
	}
	if doc.Valid {
		p.Docment = &doc.String
	}
	p.Anno, p.Default = anno.String, def.String
	return p, nil
}

// ParamsByCallable returns a callable's entries in ordinal order.
func (s *Store) ParamsByCallable(callableID int64) ([]*Param, error) {
	rows, err := s.db.Query("SELECT "+ParamCols+" FROM params WHERE callable_id = ? ORDER BY ordinal", callableID)
	if err != nil {
		return nil, fmt.Errorf("store: params by callable: %w", err)
	}
	defer rows.Close()
	var out []*Param
	for rows.Next() {
		p, err := ScanParamRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan param: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
