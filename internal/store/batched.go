package store

import "sync"

// BatchedStore buffers extraction inserts in memory using fake (negative)
// IDs. It implements DataStore so extraction can write to it without knowing
// whether it is hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// CallablesByFile reads through to the underlying Store, which is safe for
// concurrent reads.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	// File, when set, is the file row rewritten with the batch. Its hash
	// only reaches the index once the extracted data does.
	File *File

	Imports   []Import
	Callables []Callable
	Params    []Param

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

func (b *BatchedStore) InsertImport(imp *Import) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	imp.ID = fakeID
	b.Imports = append(b.Imports, *imp)
	return fakeID, nil
}

func (b *BatchedStore) InsertCallable(c *Callable) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	c.ID = fakeID
	b.Callables = append(b.Callables, *c)
	return fakeID, nil
}

func (b *BatchedStore) InsertParam(p *Param) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	p.ID = fakeID
	b.Params = append(b.Params, *p)
	return fakeID, nil
}

// CallablesByFile returns callables for a file, merging any buffered (not
// yet committed) callables with those already in the database.
func (b *BatchedStore) CallablesByFile(fileID int64) ([]*Callable, error) {
	out, err := b.store.CallablesByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Callables {
		if b.Callables[i].FileID == fileID {
			out = append(out, &b.Callables[i])
		}
	}
	return out, nil
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Imports) + len(b.Callables) + len(b.Params)
}
