package storage

import "sync"

// Overlay buffers writes on top of a backing Database so that a unit of work
// can be committed atomically or discarded without touching the backing
// store. Reads consult the buffer first and fall through to the base.
//
// An Overlay is not safe for concurrent use with other writers of the same
// base; the ledger serialises operations with its own mutex.
type Overlay struct {
	mu      sync.RWMutex
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.deletes, string(key))
	o.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	if _, gone := o.deletes[string(key)]; gone {
		o.mu.RUnlock()
		return nil, nil
	}
	if value, ok := o.writes[string(key)]; ok {
		o.mu.RUnlock()
		return append([]byte(nil), value...), nil
	}
	o.mu.RUnlock()
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	if _, gone := o.deletes[string(key)]; gone {
		o.mu.RUnlock()
		return false, nil
	}
	if _, ok := o.writes[string(key)]; ok {
		o.mu.RUnlock()
		return true, nil
	}
	o.mu.RUnlock()
	return o.base.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

// Close satisfies the Database interface; the base store stays open.
func (o *Overlay) Close() {}

// Commit flushes every buffered write and delete to the backing store and
// resets the buffer. Writes are applied before deletes touch distinct keys,
// so ordering between the two maps is immaterial.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, value := range o.writes {
		if err := o.base.Put([]byte(key), value); err != nil {
			return err
		}
	}
	for key := range o.deletes {
		if err := o.base.Delete([]byte(key)); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}

// Discard drops every buffered mutation without touching the backing store.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

// Dirty reports whether the overlay holds uncommitted mutations.
func (o *Overlay) Dirty() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.writes) > 0 || len(o.deletes) > 0
}
