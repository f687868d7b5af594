// Package envcascade is the root façade: it assembles the Source
// Registry, Workspace Manager, Cache, and Event Bus into a single
// Resolver and exposes the public query surface described in spec.md §6.
package envcascade

import (
	"go.uber.org/zap"

	"github.com/ph1losof/envcascade/cache"
	"github.com/ph1losof/envcascade/events"
	"github.com/ph1losof/envcascade/resolve"
	"github.com/ph1losof/envcascade/source"
	"github.com/ph1losof/envcascade/workspace"
)

// Resolver is the public entry point (spec.md §6's "façade"). Construct
// one via Builder.Build; it is safe for concurrent Get/GetForFile/All
// calls for its lifetime. Close releases its resources, analogous to the
// teacher's SourceMgr.Release().
type Resolver struct {
	opts     Options
	manager  *workspace.Manager
	registry *source.Registry
	engine   *resolve.Engine
	cache    *cache.Cache
	bus      *events.Bus
	log      *zap.Logger
}

// Get resolves key against the Resolver's workspace root (no package
// context), returning (zero value, false) if key is undefined anywhere.
func (r *Resolver) Get(key string) (resolve.ResolvedVariable, bool) {
	return r.GetForFile(key, r.manager.Root())
}

// GetForFile resolves key against the WorkspaceContext of path.
func (r *Resolver) GetForFile(key, path string) (resolve.ResolvedVariable, bool) {
	ctx, err := r.manager.ContextForFile(path)
	if err != nil {
		r.log.Warn("workspace context lookup failed", zap.String("path", path), zap.Error(err))
		return resolve.ResolvedVariable{}, false
	}

	cacheKey := cache.Key{Name: key, CtxKey: ctx.Key()}
	v, err := r.cache.GetOrResolve(cacheKey, func() (resolve.ResolvedVariable, error) {
		return r.engine.Resolve(key, ctx)
	})
	if err != nil {
		return resolve.ResolvedVariable{}, false
	}
	return v, true
}

// All resolves every variable visible at the Resolver's workspace root.
func (r *Resolver) All() []resolve.ResolvedVariable {
	return r.AllForFile(r.manager.Root())
}

// AllForFile resolves every variable visible at path's WorkspaceContext.
func (r *Resolver) AllForFile(path string) []resolve.ResolvedVariable {
	ctx, err := r.manager.ContextForFile(path)
	if err != nil {
		r.log.Warn("workspace context lookup failed", zap.String("path", path), zap.Error(err))
		return nil
	}

	results, errs := r.engine.All(ctx)
	for key, err := range errs {
		r.log.Debug("resolution failed during All", zap.String("key", key), zap.Error(err))
	}

	out := make([]resolve.ResolvedVariable, 0, len(results))
	for _, v := range results {
		out = append(out, v)
	}
	return out
}

// Subscribe registers s to receive every event published by the
// Resolver's internal Event Bus.
func (r *Resolver) Subscribe(s events.Subscriber) {
	r.bus.Subscribe(s)
}

// EventChannel exposes the Event Bus's bounded async channel.
func (r *Resolver) EventChannel() <-chan events.Event {
	return r.bus.EventChannel()
}

// Invalidate forces the named source to reload and advances the cache
// epoch, so the next Get/GetForFile observes its latest state.
func (r *Resolver) Invalidate(id string) {
	r.registry.Invalidate(source.ID(id))
}

// Rescan re-runs workspace package discovery (spec.md §9's "explicit
// rescan entry point").
func (r *Resolver) Rescan() error {
	return r.manager.Rescan()
}

// Close releases the Resolver's resources. It does not close any
// process-wide state (e.g. the shared file content cache), only this
// instance's own cache tiers.
func (r *Resolver) Close() {
	r.cache.Purge()
}
