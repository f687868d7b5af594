package envcascade

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ph1losof/envcascade/cache"
	"github.com/ph1losof/envcascade/events"
	"github.com/ph1losof/envcascade/resolve"
	"github.com/ph1losof/envcascade/source"
	"github.com/ph1losof/envcascade/workspace"
)

// Builder assembles a Resolver from Options, mirroring the teacher's
// NewContext/NewSourceManager two-step construction: a Builder first
// establishes the workspace context (provider + root), then wires the
// Registry, Cache, and Bus around it.
type Builder struct {
	opts   Options
	log    *zap.Logger
	memory []*source.MemorySource
	extra  []source.Source
}

// NewBuilder starts a Builder from opts. Call chain methods to customize
// further, then Build to produce a Resolver.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// WithLogger overrides the zap.Logger used for ambient diagnostics
// (event queue overflow, workspace context lookup failures, per-key
// resolution failures during All). Defaults to zap.NewNop() if never
// called.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithMemorySource registers an additional in-memory source, e.g. for
// process-supplied overrides or test fixtures.
func (b *Builder) WithMemorySource(src *source.MemorySource) *Builder {
	b.memory = append(b.memory, src)
	return b
}

// WithSource registers an arbitrary additional source (e.g. a
// caller-supplied source.RemoteSource).
func (b *Builder) WithSource(src source.Source) *Builder {
	b.extra = append(b.extra, src)
	return b
}

func providerByName(name string) (workspace.Provider, error) {
	switch name {
	case "", "cargo":
		return workspace.CargoProvider{}, nil
	case "npm":
		return workspace.NewNpmProvider(), nil
	case "yarn":
		return workspace.NewYarnProvider(), nil
	case "pnpm":
		return workspace.PnpmProvider{}, nil
	case "lerna":
		return workspace.LernaProvider{}, nil
	case "nx":
		return workspace.NxProvider{}, nil
	case "turbo":
		return workspace.TurboProvider{}, nil
	default:
		return nil, errors.Errorf("unknown workspace.provider %q", name)
	}
}

// Build assembles the Resolver. A workspace provider failure at build
// time is fatal (spec.md §7: "A workspace provider failure during build
// is fatal (no instance is returned)").
func (b *Builder) Build() (*Resolver, error) {
	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	root := b.opts.WorkspaceRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "resolving default workspace root")
		}
		root = wd
	}

	provider, err := providerByName(b.opts.WorkspaceProvider)
	if err != nil {
		return nil, err
	}

	mgr, err := workspace.NewManagerWithOptions(root, provider, workspace.ManagerOptions{
		Cascading:    b.opts.Cascading,
		FilePatterns: b.opts.FilePatterns,
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing workspace manager")
	}
	if err := mgr.Rescan(); err != nil {
		return nil, errors.Wrap(err, "initial workspace scan")
	}

	bus := events.NewBus(b.opts.EventsBufferSize, log)
	registry := source.NewRegistry(bus)

	priorities := b.opts.PrecedencePriorities()
	shellPriority := bandPriority(priorities, "shell", source.PriorityShell)
	filePriority := bandPriority(priorities, "file", source.PriorityFile)

	if err := registry.Register(source.NewShellSourceAt(shellPriority)); err != nil {
		return nil, errors.Wrap(err, "registering shell source")
	}
	// Every file source shares filePriority, and the Registry breaks
	// priority ties by registration order (earlier wins). Registering the
	// files deepest-first lets a later entry of a context's EnvFiles
	// override an earlier one.
	envFiles := collectEnvFiles(mgr, root)
	for i := len(envFiles) - 1; i >= 0; i-- {
		f := envFiles[i]
		fs := source.NewFileSourceAt(f, filePriority, nil)
		if err := registry.Register(fs); err != nil && !isDuplicate(err) {
			return nil, errors.Wrapf(err, "registering file source %s", f)
		}
	}
	for _, m := range b.memory {
		if err := registry.Register(m); err != nil {
			return nil, errors.Wrap(err, "registering memory source")
		}
	}
	for _, s := range b.extra {
		if err := registry.Register(s); err != nil {
			return nil, errors.Wrap(err, "registering additional source")
		}
	}

	engine := resolve.NewEngine(registry, b.opts.MaxDepth, b.opts.InterpolationEnabled)

	var metrics *cache.Metrics
	c := cache.New(registry, b.opts.HotCapacity, b.opts.WarmTTL(), metrics)

	return &Resolver{
		opts:     b.opts,
		manager:  mgr,
		registry: registry,
		engine:   engine,
		cache:    c,
		bus:      bus,
		log:      log,
	}, nil
}

func bandPriority(overrides map[string]source.Priority, band string, def source.Priority) source.Priority {
	if overrides == nil {
		return def
	}
	if p, ok := overrides[band]; ok {
		return p
	}
	return def
}

func isDuplicate(err error) bool {
	var dup *source.DuplicateSourceError
	return errors.As(err, &dup)
}

// collectEnvFiles gathers every distinct env file across every package in
// the workspace, including the root, so the Registry holds a FileSource
// for each path any WorkspaceContext might reference. Resolution later
// filters down to the subset relevant for a given context
// (resolve.Engine.mergedSnapshot).
func collectEnvFiles(mgr *workspace.Manager, root string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(ctx workspace.Context) {
		for _, f := range ctx.EnvFiles {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}

	if ctx, err := mgr.ContextForFile(root); err == nil {
		add(ctx)
	}
	for pkgRoot := range mgr.Packages() {
		if ctx, err := mgr.ContextForFile(pkgRoot); err == nil {
			add(ctx)
		}
	}
	return out
}
