package store

import (
	"context"
	"sync"

	gocid "github.com/ipfs/go-cid"

	"github.com/systemshift/memex-vcs/internal/dag"
)

// Memory is an in-process store. Values are copied on the way in and out.
type Memory struct {
	mu       sync.RWMutex
	elements map[string]*dag.Element
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{elements: make(map[string]*dag.Element)}
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, key gocid.Cid) (*dag.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	e, ok := m.elements[key.KeyString()]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(key)
	}
	out := e.Clone()
	if err := out.Verify(); err != nil {
		return nil, err
	}
	return out, nil
}

// Store implements Store.
func (m *Memory) Store(ctx context.Context, elements []*dag.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := verifyAll(elements); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range elements {
		k := e.Key.KeyString()
		if _, ok := m.elements[k]; ok {
			continue
		}
		m.elements[k] = e.Clone()
	}
	return nil
}

// Has implements Store.
func (m *Memory) Has(ctx context.Context, key gocid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.elements[key.KeyString()]
	return ok, nil
}

// Len is the number of stored elements.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.elements)
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

