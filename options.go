package envcascade

import (
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/ph1losof/envcascade/source"
)

// Options is the build-time configuration surface (spec.md §6).
// DefaultOptions enables interpolation and cascading and spells out every
// package default (depth 64, hot capacity 1024, warm TTL 300s, event
// buffer 256). In the zero value, Cascading and InterpolationEnabled are
// false; zero numeric fields fall back to the same package defaults, an
// empty WorkspaceRoot uses the current directory, and an empty
// WorkspaceProvider selects the Cargo provider.
type Options struct {
	WorkspaceRoot     string
	WorkspaceProvider string // "cargo", "npm", "yarn", "pnpm", "lerna", "nx", "turbo"
	Cascading         bool

	InterpolationEnabled bool
	MaxDepth             int
	// Precedence, if non-empty, overrides the default Shell > Remote >
	// File > Memory priority ordering: bands are assigned descending
	// priority by their position in this list. Recognized band names:
	// "shell", "remote", "file", "memory". Builder applies only the
	// "shell" and "file" entries; memory and additional sources keep the
	// priority they were constructed with.
	Precedence []string

	FilePatterns []string

	HotCapacity    int
	WarmTTLSeconds int

	EventsBufferSize int
}

// DefaultOptions returns the recommended defaults spelled out explicitly,
// useful as a base to override individual fields from.
func DefaultOptions() Options {
	return Options{
		Cascading:            true,
		InterpolationEnabled: true,
		MaxDepth:             64,
		FilePatterns:         []string{".env", ".env.local"},
		HotCapacity:          1024,
		WarmTTLSeconds:       300,
		EventsBufferSize:     256,
	}
}

// WarmTTL returns WarmTTLSeconds as a time.Duration, defaulting to 300s
// when unset.
func (o Options) WarmTTL() time.Duration {
	if o.WarmTTLSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(o.WarmTTLSeconds) * time.Second
}

// PrecedencePriorities maps o.Precedence band names onto descending
// source.Priority values, or nil if Precedence was not set (callers then
// fall back to the package default bands).
func (o Options) PrecedencePriorities() map[string]source.Priority {
	if len(o.Precedence) == 0 {
		return nil
	}
	out := make(map[string]source.Priority, len(o.Precedence))
	step := source.Priority(100 / len(o.Precedence))
	if step == 0 {
		step = 1
	}
	p := source.Priority(100)
	for _, band := range o.Precedence {
		out[band] = p
		if p > step {
			p -= step
		} else {
			p = 1
		}
	}
	return out
}

// optionMapper accumulates the first error encountered while reading keys
// out of a TOML tree, so a chain of reads can be written without an
// if-err-return after every line — grounded directly on the teacher's
// tomlMapper (toml.go), generalized from manifest-parsing to
// options-parsing.
type optionMapper struct {
	tree *toml.Tree
	err  error
}

func (m *optionMapper) string(key, def string) string {
	if m.err != nil {
		return def
	}
	v := m.tree.GetDefault(key, def)
	s, ok := v.(string)
	if !ok {
		m.err = errors.Errorf("option %q: expected string, got %T", key, v)
		return def
	}
	return s
}

func (m *optionMapper) bool(key string, def bool) bool {
	if m.err != nil {
		return def
	}
	v := m.tree.GetDefault(key, def)
	b, ok := v.(bool)
	if !ok {
		m.err = errors.Errorf("option %q: expected bool, got %T", key, v)
		return def
	}
	return b
}

func (m *optionMapper) int(key string, def int) int {
	if m.err != nil {
		return def
	}
	v := m.tree.GetDefault(key, int64(def))
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		m.err = errors.Errorf("option %q: expected integer, got %T", key, v)
		return def
	}
}

func (m *optionMapper) stringList(key string, def []string) []string {
	if m.err != nil {
		return def
	}
	v := m.tree.Get(key)
	if v == nil {
		return def
	}
	raw, ok := v.([]interface{})
	if !ok {
		m.err = errors.Errorf("option %q: expected array, got %T", key, v)
		return def
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			m.err = errors.Errorf("option %q: expected array of strings, got element of type %T", key, item)
			return def
		}
		out = append(out, s)
	}
	return out
}

// LoadOptionsTOML reads Options from a TOML file at path, recognizing the
// table laid out in spec.md §6 (workspace.*, resolution.*, files.*,
// cache.*, events.*). Unrecognized keys are ignored.
func LoadOptionsTOML(path string) (Options, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "loading options from %s", path)
	}

	def := DefaultOptions()
	m := &optionMapper{tree: tree}

	opts := Options{
		WorkspaceRoot:        m.string("workspace.root", def.WorkspaceRoot),
		WorkspaceProvider:    m.string("workspace.provider", def.WorkspaceProvider),
		Cascading:            m.bool("workspace.cascading", def.Cascading),
		InterpolationEnabled: m.bool("resolution.interpolation_enabled", def.InterpolationEnabled),
		MaxDepth:             m.int("resolution.max_depth", def.MaxDepth),
		Precedence:           m.stringList("resolution.precedence", nil),
		FilePatterns:         m.stringList("files.patterns", def.FilePatterns),
		HotCapacity:          m.int("cache.hot_capacity", def.HotCapacity),
		WarmTTLSeconds:       m.int("cache.warm_ttl_seconds", def.WarmTTLSeconds),
		EventsBufferSize:     m.int("events.buffer_size", def.EventsBufferSize),
	}

	if m.err != nil {
		return Options{}, errors.Wrapf(m.err, "parsing options from %s", path)
	}
	return opts, nil
}
