// Package store defines the entity store: a durable mapping from a record
// key (see model.ChatKey, model.PlayerKey) to the record's serialized form.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// ErrNilValue is returned by Put for a nil value. Deletes go through
// Delete or an Apply op.
var ErrNilValue = errors.New("store: nil value")

// Store persists serialized records. A missing key is not an error: Get
// reports found=false and callers apply their own defaults.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Put stores value under key. A nil value is rejected with ErrNilValue;
	// an empty non-nil value is stored as is.
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// Apply writes every op or none of them.
	Apply(ctx context.Context, ops []Op) error
	Close() error
}

// Op is one write in an atomic batch. A nil Value deletes the key.
type Op struct {
	Key   string
	Value []byte
}

func (o Op) IsDelete() bool { return o.Value == nil }

// Memory is an in-process Store. It is safe for concurrent use and is what
// tests and the "memory" store mode use.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{records: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, errClosed(key)
	}
	v, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	if value == nil {
		return ErrNilValue
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed(key)
	}
	m.records[key] = slices.Clone(value)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed(key)
	}
	delete(m.records, key)
	return nil
}

func (m *Memory) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed(prefix)
	}
	var out []string
	for k := range m.records {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *Memory) Apply(_ context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed("")
	}
	for _, op := range ops {
		if op.IsDelete() {
			delete(m.records, op.Key)
			continue
		}
		m.records[op.Key] = slices.Clone(op.Value)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func errClosed(key string) error {
	return oops.In("store").With("key", key).Errorf("memory store closed")
}
