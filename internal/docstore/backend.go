package docstore

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// ErrNotFound is returned by Backend.Get for unknown documents.
var ErrNotFound = errors.New("document not found")

// Backend persists documents.
type Backend interface {
	Put(ctx context.Context, doc Document) error
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
}

// MemoryBackend keeps documents in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]Document
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]Document)}
}

func (m *MemoryBackend) Put(_ context.Context, doc Document) error {
	doc.Fields = maps.Clone(doc.Fields)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.docs[doc.Collection] {
		if existing.ID == doc.ID {
			return errors.New("document id already exists")
		}
	}
	m.docs[doc.Collection] = append(m.docs[doc.Collection], doc)
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range m.docs[collection] {
		if doc.ID == id {
			doc.Fields = maps.Clone(doc.Fields)
			return doc, nil
		}
	}
	return Document{}, ErrNotFound
}

// List returns a collection in insertion order.
func (m *MemoryBackend) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.docs[collection]))
	for _, doc := range m.docs[collection] {
		doc.Fields = maps.Clone(doc.Fields)
		out = append(out, doc)
	}
	return out, nil
}
