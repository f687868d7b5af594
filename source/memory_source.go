package source

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySource holds an ordered, insertion-order-preserving map of
// key/value pairs, mutated in-process via Set/Remove/Clear. It is
// thread-safe via an internal mutex, and bumps a version counter on every
// mutation so HasChanged can report cheaply (spec.md §4.1).
//
// Grounded on the teacher's singleSourceCacheMemory (source_cache.go): a
// small mutex-guarded map. The mutation methods use explicit Lock/Unlock
// pairs rather than defer, to keep critical sections short and release
// the lock before the mutation callback runs.
type MemorySource struct {
	id       ID
	priority Priority

	mu      sync.Mutex
	order   []string
	values  map[string]string
	version uint64

	lastSnapVersion uint64

	mutationCb func(added, removed, modified []string)
}

// NewMemorySource creates a MemorySource. If id is empty, a random UUID is
// used, grounded on spec.md's "SourceId — opaque unique identifier"; Memory
// sources created ad hoc (e.g. in tests) don't need a caller-chosen name.
func NewMemorySource(id string, priority Priority) *MemorySource {
	if id == "" {
		id = uuid.NewString()
	}
	return &MemorySource{
		id:              ID(id),
		priority:        priority,
		values:          make(map[string]string),
		lastSnapVersion: ^uint64(0), // force HasChanged true before first Load
	}
}

func (m *MemorySource) ID() ID              { return m.id }
func (m *MemorySource) SourceType() Type    { return TypeMemory }
func (m *MemorySource) Priority() Priority  { return m.priority }
func (m *MemorySource) Capabilities() Capabilities {
	return CapRead | CapWrite | CapCacheable
}

// OnMutation registers cb to be called after every Set, and after every
// Remove or Clear that removes at least one key, satisfying the Registry's
// MutationReporter hook (registry.go) so a memory mutation advances the
// cache epoch and emits a VariablesChanged event the same as any other
// source change (spec.md §4.4: "Any register/unregister/invalidate/memory
// mutation advances the epoch").
func (m *MemorySource) OnMutation(cb func(added, removed, modified []string)) {
	m.mu.Lock()
	m.mutationCb = cb
	m.mu.Unlock()
}

// Set assigns key=value, appending key to insertion order if new.
func (m *MemorySource) Set(key, value string) {
	m.mu.Lock()
	_, exists := m.values[key]
	if !exists {
		m.order = append(m.order, key)
	}
	m.values[key] = value
	m.version++
	cb := m.mutationCb
	m.mu.Unlock()

	if cb == nil {
		return
	}
	if exists {
		cb(nil, nil, []string{key})
	} else {
		cb([]string{key}, nil, nil)
	}
}

// Remove deletes key if present.
func (m *MemorySource) Remove(key string) {
	m.mu.Lock()
	_, exists := m.values[key]
	if exists {
		delete(m.values, key)
		m.order = removeString(m.order, key)
		m.version++
	}
	cb := m.mutationCb
	m.mu.Unlock()

	if exists && cb != nil {
		cb(nil, []string{key}, nil)
	}
}

// Clear removes every key.
func (m *MemorySource) Clear() {
	m.mu.Lock()
	var removed []string
	if len(m.values) > 0 {
		removed = append(removed, m.order...)
		m.values = make(map[string]string)
		m.order = nil
		m.version++
	}
	cb := m.mutationCb
	m.mu.Unlock()

	if len(removed) > 0 && cb != nil {
		cb(nil, removed, nil)
	}
}

func (m *MemorySource) HasChanged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version != m.lastSnapVersion
}

func (m *MemorySource) Invalidate() {
	m.mu.Lock()
	m.lastSnapVersion = ^uint64(0)
	m.mu.Unlock()
}

func (m *MemorySource) Load() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vars := make([]ParsedVariable, 0, len(m.order))
	for _, k := range m.order {
		vars = append(vars, ParsedVariable{
			Key:      k,
			RawValue: m.values[k],
			Origin:   MemoryOrigin(),
		})
	}
	m.lastSnapVersion = m.version

	return Snapshot{
		SourceID:  m.id,
		Variables: vars,
		Timestamp: time.Now(),
		Version:   m.version,
	}, nil
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
