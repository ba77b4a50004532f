package remote

import (
	"context"
	"maps"
	"reflect"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and the demo mode
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	failure     error
	batches     int
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]map[string]any)}
}

// FailWith makes every following operation return err until it is called
// with nil.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// Put stores a document without going through the failure switch
func (m *Memory) Put(collection, id string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, data)
}

// Delete removes a document
func (m *Memory) Delete(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
}

// Get returns a copy of a document
func (m *Memory) Get(collection, id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, false
	}
	return maps.Clone(doc), true
}

// IDs lists the document ids of a collection in sorted order
func (m *Memory) IDs(collection string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.collections[collection]))
	for id := range m.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Batches returns how many batches were committed
func (m *Memory) Batches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batches
}

func (m *Memory) put(collection, id string, data map[string]any) {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[collection] = docs
	}
	docs[id] = maps.Clone(data)
}

func (m *Memory) Configured() bool { return true }

func (m *Memory) ListAll(_ context.Context, collection string) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failure != nil {
		return nil, m.failure
	}
	docs := make([]Doc, 0, len(m.collections[collection]))
	for id, data := range m.collections[collection] {
		docs = append(docs, Doc{ID: id, Data: maps.Clone(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *Memory) GetByField(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	all, err := m.ListAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	var out []Doc
	for _, d := range all {
		if v, ok := d.Data[field]; ok && reflect.DeepEqual(v, value) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	m.put(collection, id, data)
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	doc := maps.Clone(m.collections[collection][id])
	if doc == nil {
		doc = make(map[string]any, len(fields))
	}
	maps.Copy(doc, fields)
	m.put(collection, id, doc)
	return nil
}

func (m *Memory) BatchSet(_ context.Context, writes []Write) error {
	if len(writes) > MaxBatch {
		return ErrBatchTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	for _, w := range writes {
		m.put(w.Collection, w.ID, w.Data)
	}
	m.batches++
	return nil
}

func (m *Memory) Close() error { return nil }
