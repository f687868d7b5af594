package source

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ChangeNotifier is the minimal surface the Registry needs from an event
// bus. It is defined here (rather than importing the events package
// directly) so that source has no dependency on events — callers wire the
// two together, matching the teacher's pattern of injecting a
// ProjectAnalyzer into SourceMgr rather than having SourceMgr import its
// caller's package.
type ChangeNotifier interface {
	SourceAdded(id ID)
	SourceRemoved(id ID)
	CacheInvalidated(reason string)
	VariablesChanged(id ID, added, removed, modified []string)
}

type noopNotifier struct{}

func (noopNotifier) SourceAdded(ID)                                 {}
func (noopNotifier) SourceRemoved(ID)                               {}
func (noopNotifier) CacheInvalidated(string)                        {}
func (noopNotifier) VariablesChanged(ID, []string, []string, []string) {}

// MutationReporter is implemented by sources whose contents can change
// between scheduled Loads (MemorySource.Set/Remove/Clear being the only
// one today). The Registry subscribes to these fine-grained changes at
// Register time so the mutation advances the epoch and emits a
// VariablesChanged event without every Source needing its own reference
// to the Registry — the same injected-callback shape as ChangeNotifier
// itself.
type MutationReporter interface {
	OnMutation(cb func(added, removed, modified []string))
}

// Registry holds every registered Source, keyed by ID, plus a
// priority-descending view kept in sync on every mutation. It is the
// concurrent substrate the Resolution Engine queries for snapshots.
//
// Grounded on golang-dep's SourceMgr (source_manager.go): a concurrent map
// protected by a dedicated mutex, an atomically-tracked epoch analogous to
// SourceMgr's opcount/releasing bookkeeping, and small struct error types
// for the failure modes.
type Registry struct {
	mu       sync.RWMutex
	sources  map[ID]Source
	order    []ID // registration order, for stable priority ties
	byPrio   []ID // priority-descending view, rebuilt on mutation
	notifier ChangeNotifier
	epoch    atomic.Uint64
}

// NewRegistry builds an empty Registry. Pass nil for notifier if no event
// bus is wired up (e.g. in tests).
func NewRegistry(notifier ChangeNotifier) *Registry {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Registry{
		sources:  make(map[ID]Source),
		notifier: notifier,
	}
}

// Epoch returns the current invalidation epoch. Any Register, Unregister,
// Invalidate, or source-reported mutation advances it; the cache package
// uses this to perform O(1) bulk invalidation (spec.md §4.4).
func (r *Registry) Epoch() uint64 { return r.epoch.Load() }

func (r *Registry) bumpEpoch(reason string) {
	r.epoch.Add(1)
	r.notifier.CacheInvalidated(reason)
}

// Register adds src to the registry. It fails with DuplicateSourceError if
// src's ID is already present.
func (r *Registry) Register(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := src.ID()
	if _, exists := r.sources[id]; exists {
		return errors.WithStack(&DuplicateSourceError{ID: id})
	}

	r.sources[id] = src
	r.order = append(r.order, id)
	r.resortLocked()
	r.bumpEpoch("source-added:" + string(id))
	r.notifier.SourceAdded(id)

	if mr, ok := src.(MutationReporter); ok {
		mr.OnMutation(func(added, removed, modified []string) {
			r.bumpEpoch("source-mutated:" + string(id))
			r.notifier.VariablesChanged(id, added, removed, modified)
		})
	}
	return nil
}

// Unregister removes a source by ID. It is a no-op if the ID is not
// present.
func (r *Registry) Unregister(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[id]; !exists {
		return
	}
	delete(r.sources, id)
	r.order = removeID(r.order, id)
	r.resortLocked()
	r.bumpEpoch("source-removed:" + string(id))
	r.notifier.SourceRemoved(id)
}

// Get looks up a source by ID.
func (r *Registry) Get(id ID) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	return s, ok
}

// Invalidate clears a single source's internal cache (via Source.Invalidate)
// and advances the global epoch.
func (r *Registry) Invalidate(id ID) {
	r.mu.RLock()
	src, ok := r.sources[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	src.Invalidate()
	r.bumpEpoch("source-invalidated:" + string(id))
}

// InvalidateAll advances the epoch without touching any individual source's
// memoized state — used when something external to the registry needs to
// force cache misses. Memory source mutations do not go through here:
// Register wires them to the epoch via MutationReporter.
func (r *Registry) InvalidateAll(reason string) {
	r.bumpEpoch(reason)
}

// IterByPriority enumerates sources in descending priority, ties broken by
// registration order (stable).
func (r *Registry) IterByPriority() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.byPrio))
	for _, id := range r.byPrio {
		out = append(out, r.sources[id])
	}
	return out
}

// LoadResult is the outcome of a LoadAll batch: whatever snapshots were
// produced, plus any per-source failures that did not abort the batch.
type LoadResult struct {
	Snapshots []Snapshot
	Errors    map[ID]error
}

// LoadAll invokes Load on every registered source in descending priority
// order. A failing Load is recorded as a diagnostic and does not abort the
// batch (spec.md §4.1/§7): the result is a partial aggregate plus an error
// set.
func (r *Registry) LoadAll() LoadResult {
	sources := r.IterByPriority()
	result := LoadResult{Errors: make(map[ID]error)}

	for _, src := range sources {
		snap, err := src.Load()
		if err != nil {
			result.Errors[src.ID()] = err
			continue
		}
		result.Snapshots = append(result.Snapshots, snap)
	}
	return result
}

// resortLocked rebuilds byPrio. Callers must hold r.mu for writing.
func (r *Registry) resortLocked() {
	ids := make([]ID, len(r.order))
	copy(ids, r.order)

	priorityOf := make(map[ID]Priority, len(ids))
	positionOf := make(map[ID]int, len(ids))
	for i, id := range ids {
		priorityOf[id] = r.sources[id].Priority()
		positionOf[id] = i
	}

	sort.SliceStable(ids, func(i, j int) bool {
		pi, pj := priorityOf[ids[i]], priorityOf[ids[j]]
		if pi != pj {
			return pi > pj
		}
		return positionOf[ids[i]] < positionOf[ids[j]]
	})

	r.byPrio = ids
}

func removeID(ids []ID, target ID) []ID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
