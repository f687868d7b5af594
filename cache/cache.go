// Package cache implements the Multi-Level Cache described in spec.md
// §4.4: a bounded hot LRU tier backed by an unbounded warm TTL tier,
// invalidated in O(1) via a monotonically increasing epoch read from the
// owning source.Registry, with concurrent cache-miss resolutions for the
// same key collapsed via singleflight.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/ph1losof/envcascade/resolve"
)

// Key identifies a cached entry: a variable name plus the workspace
// context it was resolved under (spec.md §4.4: "(canonical key,
// WorkspaceContext)"). CtxKey is workspace.Context.Key(), already
// collapsed to a string by the caller so this package need not import
// workspace.
type Key struct {
	Name   string
	CtxKey string
}

type entry struct {
	value     resolve.ResolvedVariable
	epoch     uint64
	expiresAt time.Time
}

// EpochSource is the minimal surface Cache needs from the Registry: the
// current invalidation epoch, read once at lookup time to pin the view
// for that call (spec.md §5: "the epoch read at entry pins the cache
// view").
type EpochSource interface {
	Epoch() uint64
}

const (
	// DefaultHotCapacity is the hot-tier LRU bound (spec.md §4.4).
	DefaultHotCapacity = 1024
	// DefaultWarmTTL is how long a warm-tier entry survives before it is
	// treated as a miss (spec.md §4.4).
	DefaultWarmTTL = 300 * time.Second
)

// Metrics holds the Prometheus counters exposed by a Cache. Register them
// once against a prometheus.Registerer of the embedding application's
// choosing; NewMetrics returns an unregistered set ready for that.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
}

// NewMetrics builds a Metrics set under the given namespace (e.g.
// "envcascade"), mirroring the counter-per-outcome shape used for cache
// instrumentation elsewhere in the retrieved pack.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Resolved-variable cache hits, hot or warm tier.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Resolved-variable cache misses.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted from the hot tier by its capacity bound.",
		}),
	}
}

// Register adds every counter in m to reg. Safe to call with a nil m (a
// Cache built without metrics).
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.Hits, m.Misses, m.Evictions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Cache is the two-tier resolved-variable cache (spec.md §4.4).
type Cache struct {
	epochs EpochSource
	ttl    time.Duration
	hot    *lru.Cache[Key, entry]

	warmMu sync.RWMutex
	warm   map[Key]entry

	group   singleflight.Group
	metrics *Metrics
}

// New builds a Cache. hotCapacity <= 0 uses DefaultHotCapacity; ttl <= 0
// uses DefaultWarmTTL. metrics may be nil to disable instrumentation.
func New(epochs EpochSource, hotCapacity int, ttl time.Duration, metrics *Metrics) *Cache {
	if hotCapacity <= 0 {
		hotCapacity = DefaultHotCapacity
	}
	if ttl <= 0 {
		ttl = DefaultWarmTTL
	}

	hot, err := lru.New[Key, entry](hotCapacity)
	if err != nil {
		// Only possible for hotCapacity <= 0, excluded above.
		panic(err)
	}

	return &Cache{
		epochs:  epochs,
		ttl:     ttl,
		hot:     hot,
		warm:    make(map[Key]entry),
		metrics: metrics,
	}
}

// Get returns the cached ResolvedVariable for key, if any live entry
// exists. A hot-tier hit moves the entry to most-recently-used. A
// warm-tier hit promotes the entry back into the hot tier.
func (c *Cache) Get(key Key) (resolve.ResolvedVariable, bool) {
	currentEpoch := c.epochs.Epoch()

	if e, ok := c.hot.Get(key); ok {
		if e.epoch == currentEpoch {
			c.recordHit()
			return e.value, true
		}
		c.hot.Remove(key)
	}

	c.warmMu.RLock()
	e, ok := c.warm[key]
	c.warmMu.RUnlock()
	if ok {
		if e.epoch == currentEpoch && time.Now().Before(e.expiresAt) {
			c.hot.Add(key, e)
			c.recordHit()
			return e.value, true
		}
		c.warmMu.Lock()
		delete(c.warm, key)
		c.warmMu.Unlock()
	}

	c.recordMiss()
	return resolve.ResolvedVariable{}, false
}

// Put stores value under key at the current epoch, inserting into both
// tiers (the warm tier is the system of record for TTL expiry; the hot
// tier is a bounded accelerator in front of it).
func (c *Cache) Put(key Key, value resolve.ResolvedVariable) {
	e := entry{
		value:     value,
		epoch:     c.epochs.Epoch(),
		expiresAt: time.Now().Add(c.ttl),
	}

	if evicted := c.hot.Add(key, e); evicted {
		c.recordEviction()
	}

	c.warmMu.Lock()
	c.warm[key] = e
	c.warmMu.Unlock()
}

// GetOrResolve returns the cached value for key if live, otherwise calls
// resolveFn to produce one, caching and returning the result. Concurrent
// callers racing on the same cold key are collapsed into a single
// resolveFn invocation via singleflight (spec.md §5's read-mostly
// concurrency goals, realized with golang.org/x/sync/singleflight).
func (c *Cache) GetOrResolve(key Key, resolveFn func() (resolve.ResolvedVariable, error)) (resolve.ResolvedVariable, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	groupKey := key.Name + "\x00" + key.CtxKey
	v, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := resolveFn()
		if err != nil {
			return resolve.ResolvedVariable{}, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		return resolve.ResolvedVariable{}, err
	}
	return v.(resolve.ResolvedVariable), nil
}

// Purge drops every entry from both tiers without consulting the epoch.
// Cache coherence (spec.md Property 5) normally relies on the epoch check
// in Get making stale entries unreachable lazily; Purge is for callers
// that want the memory back immediately (e.g. Resolver.Close).
func (c *Cache) Purge() {
	c.hot.Purge()
	c.warmMu.Lock()
	c.warm = make(map[Key]entry)
	c.warmMu.Unlock()
}

func (c *Cache) recordHit() {
	if c.metrics != nil {
		c.metrics.Hits.Inc()
	}
}

func (c *Cache) recordMiss() {
	if c.metrics != nil {
		c.metrics.Misses.Inc()
	}
}

func (c *Cache) recordEviction() {
	if c.metrics != nil {
		c.metrics.Evictions.Inc()
	}
}
