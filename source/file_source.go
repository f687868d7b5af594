package source

import (
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/ph1losof/envcascade/dotenv"
)

// fileContentCache is a small LRU that survives transient re-reads: if a
// file's mtime is unchanged, FileSource serves parsed variables straight
// from here rather than touching disk again. Shared across every FileSource
// in a process (spec.md §4.1: "bounded; default 1000 entries... across all
// files handled"), grounded on the teacher's use of
// github.com/hashicorp/golang-lru-shaped bounded caches for exactly this
// "recently seen, don't redo the work" role.
type fileContentCache struct {
	cache *lru.Cache[string, []ParsedVariable]
}

func newFileContentCache(capacity int) *fileContentCache {
	c, err := lru.New[string, []ParsedVariable](capacity)
	if err != nil {
		// Only possible if capacity <= 0, which sharedFileContentCache
		// never passes.
		panic(err)
	}
	return &fileContentCache{cache: c}
}

const defaultFileContentCacheCapacity = 1000

var (
	defaultFileContentCacheOnce sync.Once
	defaultFileContentCache     *fileContentCache
)

// sharedFileContentCache lazily builds the process-wide default cache.
func sharedFileContentCache() *fileContentCache {
	defaultFileContentCacheOnce.Do(func() {
		defaultFileContentCache = newFileContentCache(defaultFileContentCacheCapacity)
	})
	return defaultFileContentCache
}

func cacheKey(path string, modTime time.Time) string {
	return path + "@" + modTime.UTC().Format(time.RFC3339Nano)
}

// FileSource loads one dotenv-formatted file, parameterized by path. It
// re-reads the file only when the mtime differs from the last successful
// read or the cache is cold (spec.md §4.1).
type FileSource struct {
	path     string
	priority Priority
	contents *fileContentCache

	mu           sync.Mutex
	lastModTime  time.Time
	lastVars     []ParsedVariable
	lastErr      error // most recent parse error, kept so a failing re-parse doesn't discard a prior good snapshot
	haveSnapshot bool
}

// NewFileSource creates a FileSource for path at PriorityFile. Pass a nil
// cache to use the process-wide shared default.
func NewFileSource(path string, cache *fileContentCache) *FileSource {
	return NewFileSourceAt(path, PriorityFile, cache)
}

// NewFileSourceAt creates a FileSource at an explicit priority,
// overriding the default PriorityFile band — used when
// resolution.precedence reorders the source bands (spec.md §6).
func NewFileSourceAt(path string, priority Priority, cache *fileContentCache) *FileSource {
	if cache == nil {
		cache = sharedFileContentCache()
	}
	return &FileSource{
		path:     path,
		priority: priority,
		contents: cache,
	}
}

func (f *FileSource) ID() ID                     { return ID("file:" + f.path) }
func (f *FileSource) SourceType() Type           { return TypeFile }
func (f *FileSource) Priority() Priority         { return f.priority }
func (f *FileSource) Capabilities() Capabilities { return CapRead | CapCacheable | CapWatch }

func (f *FileSource) Path() string { return f.path }

func (f *FileSource) statModTime() (time.Time, error) {
	fi, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func (f *FileSource) HasChanged() bool {
	mt, err := f.statModTime()
	if err != nil {
		// Can't stat (e.g. deleted) — treat as changed so Load surfaces the
		// IoError rather than silently returning stale content.
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.haveSnapshot || !mt.Equal(f.lastModTime)
}

func (f *FileSource) Invalidate() {
	f.mu.Lock()
	f.haveSnapshot = false
	f.mu.Unlock()
}

func (f *FileSource) Load() (Snapshot, error) {
	mt, statErr := f.statModTime()

	f.mu.Lock()
	defer f.mu.Unlock()

	if statErr == nil && f.haveSnapshot && mt.Equal(f.lastModTime) {
		return f.snapshotLocked(), nil
	}

	if statErr != nil {
		ioErr := &IoError{Path: f.path, Cause: statErr}
		if f.haveSnapshot {
			// Keep serving the last good snapshot; surface the error
			// alongside it so callers can decide (spec.md §7: "the source
			// reports its most recent successful snapshot (if any) until
			// parse succeeds again").
			return f.snapshotLocked(), errors.WithStack(ioErr)
		}
		return Snapshot{}, errors.WithStack(ioErr)
	}

	key := cacheKey(f.path, mt)
	if cached, ok := f.contents.cache.Get(key); ok {
		f.lastVars = cached
		f.lastModTime = mt
		f.haveSnapshot = true
		f.lastErr = nil
		return f.snapshotLocked(), nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		ioErr := &IoError{Path: f.path, Cause: err}
		if f.haveSnapshot {
			return f.snapshotLocked(), errors.WithStack(ioErr)
		}
		return Snapshot{}, errors.WithStack(ioErr)
	}

	raw, parseErr := dotenv.Parse(data)
	vars := collapseDuplicates(raw, f.path)

	if parseErr != nil {
		var pe *dotenv.ParseError
		if errors.As(parseErr, &pe) {
			parseErr = &ParseErr{Path: f.path, Line: pe.Line, Column: pe.Column, Message: pe.Message}
		}
		if f.haveSnapshot {
			return f.snapshotLocked(), errors.WithStack(parseErr)
		}
		// Partial parse still gets cached as "last good" up to the failure
		// point, matching spec.md §7's "most recent successful snapshot"
		// language as loosely as a single bad file allows.
		f.lastVars = vars
		f.lastModTime = mt
		f.haveSnapshot = true
		f.lastErr = parseErr
		return f.snapshotLocked(), errors.WithStack(parseErr)
	}

	f.contents.cache.Add(key, vars)
	f.lastVars = vars
	f.lastModTime = mt
	f.haveSnapshot = true
	f.lastErr = nil

	return f.snapshotLocked(), nil
}

func (f *FileSource) snapshotLocked() Snapshot {
	return Snapshot{
		SourceID:  f.ID(),
		Variables: f.lastVars,
		Timestamp: time.Now(),
	}
}

// collapseDuplicates applies "last occurrence wins" (spec.md §3) while
// preserving first-seen order for the surviving keys, then tags every
// variable with its file origin.
func collapseDuplicates(raw []dotenv.RawVar, path string) []ParsedVariable {
	order := make([]string, 0, len(raw))
	byKey := make(map[string]dotenv.RawVar, len(raw))
	for _, rv := range raw {
		if _, seen := byKey[rv.Key]; !seen {
			order = append(order, rv.Key)
		}
		byKey[rv.Key] = rv
	}

	out := make([]ParsedVariable, 0, len(order))
	for _, k := range order {
		rv := byKey[k]
		out = append(out, ParsedVariable{
			Key:      rv.Key,
			RawValue: rv.RawValue,
			Origin:   FileOrigin(path),
			Line:     rv.Line,
		})
	}
	return out
}
