// Package source implements the Snapshot & Source trait and the Source
// Registry described in spec.md §3/§4.1: the plugin substrate that
// normalizes every environment-variable provider — dotenv files, the shell
// environment, in-process stores, and (reserved) remote secret stores —
// into a uniform, priority-ordered snapshot of key/value/origin tuples.
//
// The Source interface is grounded on the teacher's (golang-dep/gps)
// `source` interface in source.go: a small, object-safe method set with no
// generic methods and no by-value receivers, so a Registry can hold
// heterogeneous sources behind a single interface value.
package source

import "time"

// ID is an opaque, process-lifetime-stable identifier for a registered
// source. Two IDs are equal iff their underlying strings are equal.
type ID string

// Priority is a band in [0, 255]; higher wins conflicts, ties are broken by
// registration order (spec.md §3).
type Priority uint8

// Named priority bands, per spec.md §3.
const (
	PriorityShell  Priority = 100
	PriorityRemote Priority = 75
	PriorityFile   Priority = 50
	PriorityMemory Priority = 25
)

// Type tags a Source for consumer-side filtering. It never affects
// resolution ordering — only Priority does.
type Type int

const (
	TypeFile Type = iota
	TypeShell
	TypeMemory
	TypeRemote
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeShell:
		return "shell"
	case TypeMemory:
		return "memory"
	case TypeRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Capabilities is a bitfield of what a Source supports. READ is mandatory;
// WRITE is reserved (spec.md §9 Open Questions) and currently unconsulted by
// any code path.
type Capabilities uint8

const (
	CapRead Capabilities = 1 << iota
	CapWrite
	CapWatch
	CapCacheable
	CapAsync
)

func (c Capabilities) Has(flag Capabilities) bool { return c&flag == flag }

// OriginKind tags where a ParsedVariable came from.
type OriginKind int

const (
	OriginFile OriginKind = iota
	OriginShell
	OriginMemory
	OriginRemote
)

// Origin is a tagged variant: {File(path), Shell, Memory, Remote(provider)}.
type Origin struct {
	Kind     OriginKind
	Path     string // set when Kind == OriginFile
	Provider string // set when Kind == OriginRemote
}

func FileOrigin(path string) Origin      { return Origin{Kind: OriginFile, Path: path} }
func ShellOrigin() Origin                { return Origin{Kind: OriginShell} }
func MemoryOrigin() Origin               { return Origin{Kind: OriginMemory} }
func RemoteOrigin(provider string) Origin { return Origin{Kind: OriginRemote, Provider: provider} }

func (o Origin) String() string {
	switch o.Kind {
	case OriginFile:
		return "file:" + o.Path
	case OriginShell:
		return "shell"
	case OriginMemory:
		return "memory"
	case OriginRemote:
		return "remote:" + o.Provider
	default:
		return "unknown"
	}
}

// ParsedVariable is one authored key/value pair, byte-exact and
// uninterpolated (spec.md §3).
type ParsedVariable struct {
	Key      string
	RawValue string
	Origin   Origin
	Line     int // 0 when not applicable (e.g. shell, memory)
}

// Snapshot is a time-stamped, immutable ordered set of ParsedVariables
// produced by one Source. Insertion order is preserved; when a Source
// builds a Snapshot it must collapse duplicate keys itself, keeping the last
// occurrence, per the dotenv convention in spec.md §3.
type Snapshot struct {
	SourceID  ID
	Variables []ParsedVariable
	Timestamp time.Time
	Version   uint64 // optional; 0 means "not tracked" for this source type
}

// Lookup returns the ParsedVariable whose Key matches, honoring "last
// occurrence wins" by scanning in insertion order and keeping the final
// match. Sources that already collapse duplicates on their own Snapshot
// construction pay no extra cost for keys accessed via Lookup.
func (s Snapshot) Lookup(key string) (ParsedVariable, bool) {
	var (
		found ParsedVariable
		ok    bool
	)
	for _, v := range s.Variables {
		if v.Key == key {
			found = v
			ok = true
		}
	}
	return found, ok
}

// Source is the uniform interface every provider implements: on-disk dotenv
// files, the ambient process environment, in-process programmatic stores,
// and (reserved) remote secret stores.
type Source interface {
	ID() ID
	SourceType() Type
	Priority() Priority
	Capabilities() Capabilities

	// Load produces a Snapshot. It must be idempotent when HasChanged is
	// false: repeated calls return content-equal snapshots (Timestamp may
	// advance).
	Load() (Snapshot, error)

	// HasChanged reports whether a new Load call would observe different
	// content than the last one.
	HasChanged() bool

	// Invalidate drops any memoized snapshot/content so the next Load call
	// re-reads from the underlying provider.
	Invalidate()
}
