// Package storage contains the in-memory invoice store. Go keeps each package
// in its own folder; files in the folder share a namespace.
package storage

import (
	"fmt"
	"sync"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
)

// Store is the contract the rest of the service depends on. Implementations
// must hand out copies so callers never observe a record mid-mutation.
type Store interface {
	// Put inserts or replaces a record by id.
	Put(inv model.Invoice)
	// Get returns the record or an error of kind model.ErrNotFound.
	Get(id string) (model.Invoice, error)
	// List returns a snapshot of every record.
	List() []model.Invoice
	// Update applies mutate to the stored record atomically. The change is
	// committed only when mutate returns nil.
	Update(id string, mutate func(*model.Invoice) error) (model.Invoice, error)
}

// MemoryStore provides an in-memory invoice store using RWMutex. RWMutex lets
// many list/get requests read concurrently while timer callbacks take the
// write lock for each transition.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*model.Invoice
	// order remembers first-insertion order so List is deterministic.
	order []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*model.Invoice),
	}
}

// Put inserts or replaces a record. Replacing keeps the original position.
func (m *MemoryStore) Put(inv model.Invoice) {
	m.mu.Lock()
	// defer schedules the unlock to run when the function returns.
	defer m.mu.Unlock()
	stored := inv.Clone()
	if _, ok := m.items[inv.ID]; !ok {
		m.order = append(m.order, inv.ID)
	}
	m.items[inv.ID] = &stored
}

// Get returns a copy of the record.
func (m *MemoryStore) Get(id string) (model.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Maps in Go return (value, bool) when looked up; bool indicates presence.
	rec, ok := m.items[id]
	if !ok {
		return model.Invoice{}, model.WrapError(model.ErrNotFound, "get invoice", fmt.Errorf("id=%s", id))
	}
	return rec.Clone(), nil
}

// List returns copies of all records in insertion order.
func (m *MemoryStore) List() []model.Invoice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Invoice, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id].Clone())
	}
	return out
}

// Update runs mutate against a copy under the write lock and swaps the copy
// in on success, so readers see either the old or the new record.
func (m *MemoryStore) Update(id string, mutate func(*model.Invoice) error) (model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.items[id]
	if !ok {
		return model.Invoice{}, model.WrapError(model.ErrNotFound, "update invoice", fmt.Errorf("id=%s", id))
	}
	next := rec.Clone()
	if err := mutate(&next); err != nil {
		return rec.Clone(), err
	}
	// id and upload date are immutable whatever the mutation did.
	next.ID = rec.ID
	next.UploadDate = rec.UploadDate
	m.items[id] = &next
	return next.Clone(), nil
}

// Len reports how many records are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
