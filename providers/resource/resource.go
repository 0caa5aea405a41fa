// Package resource implements the shared resource map: named sample
// buffers that live outside any single node and are referenced by name
// from node properties, so that two unrelated nodes (most notably a
// feedback tap pair) can share data without holding a direct reference to
// each other.
package resource

import (
	"sync"
	"sync/atomic"
)

// ImmutableBuffer is an add-only, read-only named buffer — typically audio
// data loaded once (e.g. a sample) and referenced by many nodes.
type ImmutableBuffer struct {
	data   []float64
	owners atomic.Int32
}

// Data returns the buffer's contents. Callers must not mutate it.
func (b *ImmutableBuffer) Data() []float64 {
	return b.data
}

// Retain records that a node has taken a reference to this buffer (e.g. by
// storing it via SetProperty). Paired with Release.
func (b *ImmutableBuffer) Retain() {
	b.owners.Add(1)
}

// Release drops a previously Retained reference.
func (b *ImmutableBuffer) Release() {
	b.owners.Add(-1)
}

func (b *ImmutableBuffer) onlyMapHoldsIt() bool {
	return b.owners.Load() == 1
}

// MutableBuffer is a named buffer that feedback taps write into and read
// from every block. Unlike ImmutableBuffer it's mutated in place; the only
// synchronization is the SPSC handoff of the *MutableBuffer pointer itself
// from SetProperty to Process, matching the original engine's design — the
// buffer's contents are only ever touched by the audio thread once handed
// off.
type MutableBuffer struct {
	Samples []float64
}

// Map is the shared resource map threaded through every node's
// SetProperty call. Safe for concurrent use, matching the mutex-guarded
// named-storage pattern used elsewhere in this codebase for simple
// key/value state.
type Map struct {
	mu   sync.RWMutex
	imms map[string]*ImmutableBuffer
	muts map[string]*MutableBuffer
}

// NewMap creates an empty shared resource map.
func NewMap() *Map {
	return &Map{
		imms: make(map[string]*ImmutableBuffer),
		muts: make(map[string]*MutableBuffer),
	}
}

// Add inserts an immutable buffer under name. Returns false without
// modifying the map if name is already present — the map is add-only.
func (m *Map) Add(name string, data []float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.imms[name]; exists {
		return false
	}
	buf := &ImmutableBuffer{data: data}
	buf.owners.Store(1)
	m.imms[name] = buf
	return true
}

// Has reports whether an immutable buffer is registered under name.
func (m *Map) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.imms[name]
	return ok
}

// Get returns the immutable buffer registered under name.
func (m *Map) Get(name string) (*ImmutableBuffer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.imms[name]
	return b, ok
}

// GetOrCreateMutable returns the mutable buffer registered under name,
// creating a zero-filled one of blockSize samples if none exists yet.
func (m *Map) GetOrCreateMutable(name string, blockSize int) *MutableBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.muts[name]; ok {
		return b
	}
	b := &MutableBuffer{Samples: make([]float64, blockSize)}
	m.muts[name] = b
	return b
}

// Prune removes every immutable buffer whose only remaining reference is
// the map itself, returning the number of buffers removed.
func (m *Map) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for name, b := range m.imms {
		if b.onlyMapHoldsIt() {
			delete(m.imms, name)
			removed++
		}
	}
	return removed
}

// Keys returns the names of every immutable buffer currently registered.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.imms))
	for name := range m.imms {
		keys = append(keys, name)
	}
	return keys
}
