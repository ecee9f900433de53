package store

// DataStore is the interface for extraction-phase data access. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement this interface.
type DataStore interface {
	// Extraction inserts. Each returns the assigned ID.
	InsertImport(imp *Import) (int64, error)
	InsertCallable(c *Callable) (int64, error)
	InsertParam(p *Param) (int64, error)

	CallablesByFile(fileID int64) ([]*Callable, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
