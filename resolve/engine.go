package resolve

import (
	"time"

	"github.com/ph1losof/envcascade/diag"
	"github.com/ph1losof/envcascade/interpolate"
	"github.com/ph1losof/envcascade/source"
	"github.com/ph1losof/envcascade/workspace"
)

// ResolvedVariable is the outcome of a successful Resolve call (spec.md
// §3). Equality (modulo Timestamp) is determined entirely by Key,
// ResolvedValue, RawValue, and Source: resolution is a pure function of
// the snapshot set and the key.
type ResolvedVariable struct {
	Key           string
	RawValue      string
	ResolvedValue string
	Source        source.ID
	Origin        source.Origin
	Warnings      []diag.Diagnostic
	Timestamp     time.Time
}

// DefaultMaxDepth is the recursive interpolation depth ceiling used when
// an Engine is constructed without an explicit override (spec.md §4.3).
const DefaultMaxDepth = 64

// Engine is the Resolution Engine (spec.md §4.3): given a key and a
// workspace context, it assembles the effective snapshot set from the
// Registry, merges it by descending priority, and interpolates the
// winning raw value.
type Engine struct {
	registry             *source.Registry
	maxDepth             int
	interpolationEnabled bool
}

// NewEngine builds an Engine over registry. maxDepth <= 0 uses
// DefaultMaxDepth. When interpolationEnabled is false, Resolve returns the
// raw (unquoted) value verbatim and never substitutes `$VAR`/`${VAR}`
// references (spec.md §6: "globally disables interpolation when false").
func NewEngine(registry *source.Registry, maxDepth int, interpolationEnabled bool) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Engine{registry: registry, maxDepth: maxDepth, interpolationEnabled: interpolationEnabled}
}

// mergedEntry is one surviving (first-writer-wins) entry in the merged
// lookup map M described in spec.md §4.3 step 2.
type mergedEntry struct {
	source.ParsedVariable
	SourceID source.ID
}

// Resolve implements spec.md §4.3's resolve(key, context) algorithm.
func (e *Engine) Resolve(key string, ctx workspace.Context) (ResolvedVariable, error) {
	merged, err := e.mergedSnapshot(ctx)
	if err != nil {
		return ResolvedVariable{}, err
	}

	entry, ok := merged[key]
	if !ok {
		return ResolvedVariable{}, &UndefinedVariable{Name: key}
	}

	raw := unquote(entry.RawValue)

	var resolved string
	if e.interpolationEnabled {
		state := &interpState{
			merged:  merged,
			onStack: make(map[string]bool),
			max:     e.maxDepth,
		}
		state.push(key)
		resolved, err = state.expand(raw)
		state.pop()
		if err != nil {
			return ResolvedVariable{}, translateInterpolateErr(err)
		}
	} else {
		resolved = raw
	}

	return ResolvedVariable{
		Key:           key,
		RawValue:      entry.RawValue,
		ResolvedValue: resolved,
		Source:        entry.SourceID,
		Origin:        entry.Origin,
		Timestamp:     time.Now(),
	}, nil
}

// All resolves every key present in the merged snapshot for ctx, in no
// particular order. A per-key interpolation failure is recorded in the
// result's Errors map rather than aborting the batch.
func (e *Engine) All(ctx workspace.Context) (map[string]ResolvedVariable, map[string]error) {
	merged, err := e.mergedSnapshot(ctx)
	results := make(map[string]ResolvedVariable, len(merged))
	errs := make(map[string]error)
	if err != nil {
		errs["*"] = err
		return results, errs
	}

	for key := range merged {
		rv, err := e.Resolve(key, ctx)
		if err != nil {
			errs[key] = err
			continue
		}
		results[key] = rv
	}
	return results, errs
}

// mergedSnapshot implements steps 1-2 of spec.md §4.3: filter the
// registry to sources relevant for ctx (file sources whose path is among
// ctx.EnvFiles, plus every non-file source), then merge first-writer-wins
// across descending priority.
func (e *Engine) mergedSnapshot(ctx workspace.Context) (map[string]mergedEntry, error) {
	envFiles := make(map[string]bool, len(ctx.EnvFiles))
	for _, f := range ctx.EnvFiles {
		envFiles[f] = true
	}

	merged := make(map[string]mergedEntry)
	for _, src := range e.registry.IterByPriority() {
		if fs, ok := src.(*source.FileSource); ok {
			if !envFiles[fs.Path()] {
				continue
			}
		}

		snap, err := src.Load()
		if err != nil {
			// A single failing source does not abort resolution (spec.md
			// §7); its variables are simply absent from M.
			continue
		}

		for _, v := range snap.Variables {
			if _, exists := merged[v.Key]; exists {
				continue
			}
			merged[v.Key] = mergedEntry{ParsedVariable: v, SourceID: snap.SourceID}
		}
	}
	return merged, nil
}

// translateInterpolateErr maps the interpolate package's own error
// vocabulary onto this package's equivalents, so callers only ever see
// resolve.* error types regardless of whether the failure originated in
// the engine's own cycle/depth tracking or in interpolate's grammar
// handling.
func translateInterpolateErr(err error) error {
	switch e := err.(type) {
	case *interpolate.UndefinedError:
		return &UndefinedVariable{Name: e.Name, Message: e.Message}
	case *interpolate.MalformedError:
		return &MalformedInterpolation{Message: e.Message}
	default:
		return err
	}
}

// interpState carries the per-call recursion stack and depth counter
// required by spec.md §4.3's cycle/depth control across a chain of
// interpolate.Expand calls.
type interpState struct {
	merged  map[string]mergedEntry
	stack   []string // ordered recursion path, for deterministic cycle reporting
	onStack map[string]bool
	depth   int
	max     int
}

func (s *interpState) push(name string) {
	s.stack = append(s.stack, name)
	s.onStack[name] = true
}

func (s *interpState) pop() {
	s.onStack[s.stack[len(s.stack)-1]] = false
	s.stack = s.stack[:len(s.stack)-1]
}

// closedCycle returns the recursion path from name's first occurrence on
// the stack through name again, e.g. A -> B -> A yields ["A", "B", "A"]
// (spec.md Property 3: the reported cycle is a deterministic closed loop).
func (s *interpState) closedCycle(name string) []string {
	start := 0
	for i, n := range s.stack {
		if n == name {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(s.stack)-start+1)
	cycle = append(cycle, s.stack[start:]...)
	cycle = append(cycle, name)
	return cycle
}

func (s *interpState) expand(raw string) (string, error) {
	return interpolate.Expand(raw, s.lookup)
}

// lookup is the interpolate.Lookup implementation handed to
// interpolate.Expand. It is where cycle and depth detection live, per the
// external contract: "It does not itself detect cycles; the Resolution
// Engine supplies a lookup that tracks the recursion stack."
func (s *interpState) lookup(name string) (string, bool, error) {
	entry, defined := s.merged[name]
	if !defined {
		return "", false, nil
	}

	if s.onStack[name] {
		return "", false, &CircularReference{Cycle: s.closedCycle(name)}
	}

	s.depth++
	if s.depth > s.max {
		return "", false, &MaxDepthExceeded{Depth: s.max}
	}

	s.push(name)
	value, err := s.expand(unquote(entry.RawValue))
	s.pop()
	s.depth--

	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
