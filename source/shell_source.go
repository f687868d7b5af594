package source

import (
	"os"
	"strings"
	"sync"
	"time"
)

// ShellSource snapshots the process environment once, at first Load;
// subsequent loads return the cached snapshot (spec.md §4.1). HasChanged is
// always false — the ambient process environment is treated as an
// immutable view for the life of the instance.
type ShellSource struct {
	priority Priority
	once     sync.Once
	snap     Snapshot
}

// NewShellSource creates a ShellSource at PriorityShell. Every ShellSource
// has the ID "shell", so a Registry accepts only one of them.
func NewShellSource() *ShellSource {
	return &ShellSource{priority: PriorityShell}
}

// NewShellSourceAt creates a ShellSource at an explicit priority,
// overriding the default PriorityShell band — used when
// resolution.precedence reorders the source bands (spec.md §6).
func NewShellSourceAt(priority Priority) *ShellSource {
	return &ShellSource{priority: priority}
}

func (s *ShellSource) ID() ID                     { return "shell" }
func (s *ShellSource) SourceType() Type           { return TypeShell }
func (s *ShellSource) Priority() Priority         { return s.priority }
func (s *ShellSource) Capabilities() Capabilities { return CapRead | CapCacheable }
func (s *ShellSource) HasChanged() bool           { return false }
func (s *ShellSource) Invalidate()                {} // immutable view; nothing to drop

func (s *ShellSource) Load() (Snapshot, error) {
	s.once.Do(func() {
		environ := os.Environ()
		vars := make([]ParsedVariable, 0, len(environ))
		for _, kv := range environ {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			vars = append(vars, ParsedVariable{
				Key:      k,
				RawValue: v,
				Origin:   ShellOrigin(),
			})
		}
		s.snap = Snapshot{
			SourceID:  s.ID(),
			Variables: vars,
			Timestamp: time.Now(),
		}
	})
	return s.snap, nil
}
