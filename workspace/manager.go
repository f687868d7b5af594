package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// defaultCandidateEnvFiles are checked, in this order, at every directory
// on the path from the workspace root down to (and including) a package
// root; deeper directories take precedence over shallower ones (spec.md
// §4.2).
var defaultCandidateEnvFiles = []string{".env", ".env.local"}

// ManagerOptions configures cascading discovery behavior (spec.md §6:
// "workspace.cascading", "files.patterns").
type ManagerOptions struct {
	// Cascading, when true (the default), merges env files from every
	// ancestor directory between the workspace root and the queried
	// package root. When false, only the workspace-root and package-root
	// directories are consulted (spec.md §4.2).
	Cascading bool
	// FilePatterns overrides the candidate env file names checked at each
	// directory. Defaults to defaultCandidateEnvFiles.
	FilePatterns []string
}

// DefaultManagerOptions returns the ManagerOptions used by NewManager.
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{Cascading: true, FilePatterns: defaultCandidateEnvFiles}
}

// Manager implements the Workspace Manager subsystem (spec.md §4.2): it
// detects a monorepo layout under a root directory using a Provider, and
// answers ContextForFile queries by finding the innermost enclosing
// package (longest-prefix match) and cascading the applicable env files
// from root to package.
type Manager struct {
	root     string
	provider Provider

	cascading    bool
	filePatterns []string

	mu       sync.RWMutex
	trie     packageTrie
	detected bool

	ctxMu sync.Mutex
	ctxCache map[string]Context
}

// NewManager constructs a Manager rooted at root using provider, with
// cascading discovery enabled and the default env file patterns. The
// workspace is not scanned until the first ContextForFile call or an
// explicit Rescan.
func NewManager(root string, provider Provider) (*Manager, error) {
	return NewManagerWithOptions(root, provider, DefaultManagerOptions())
}

// NewManagerWithOptions constructs a Manager rooted at root using provider,
// honoring opts.Cascading and opts.FilePatterns. An empty FilePatterns
// falls back to the default (".env", ".env.local").
func NewManagerWithOptions(root string, provider Provider, opts ManagerOptions) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving workspace root")
	}
	patterns := opts.FilePatterns
	if len(patterns) == 0 {
		patterns = defaultCandidateEnvFiles
	}
	return &Manager{
		root:         abs,
		provider:     provider,
		trie:         newPackageTrie(),
		ctxCache:     make(map[string]Context),
		cascading:    opts.Cascading,
		filePatterns: patterns,
	}, nil
}

// Root returns the absolute workspace root.
func (m *Manager) Root() string { return m.root }

// Packages returns every package discovered by the last (Re)scan, keyed
// by absolute package root with a trailing path separator.
func (m *Manager) Packages() map[string]PackageInfo {
	if err := m.ensureScanned(); err != nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]PackageInfo, m.trie.Len())
	for k, v := range m.trie.ToMap() {
		out[k] = v
	}
	return out
}

// Rescan re-runs package discovery, replacing the package index. This is a
// supplemented feature beyond the base resolution contract: long-lived
// processes (watch-mode dev servers, language-server integrations) need a
// way to pick up newly created or deleted packages without restarting the
// Manager (spec.md §4.2 discovery step, generalized to support re-entry).
func (m *Manager) Rescan() error {
	if !m.provider.Detect(m.root) {
		return &WorkspaceNotDetectedError{Provider: m.provider.Name(), Root: m.root}
	}
	pkgs, err := m.provider.Discover(m.root)
	if err != nil {
		return &ProviderDiscoveryFailedError{Provider: m.provider.Name(), Cause: err}
	}

	trie := newPackageTrie()
	for _, pkg := range pkgs {
		trie.Insert(triePath(pkg.PackageRoot), pkg)
	}

	m.mu.Lock()
	m.trie = trie
	m.detected = true
	m.mu.Unlock()

	m.ctxMu.Lock()
	m.ctxCache = make(map[string]Context)
	m.ctxMu.Unlock()

	return nil
}

// ensureScanned performs the first scan lazily so that constructing a
// Manager for a root that may not yet exist (tests, not-yet-cloned repos)
// doesn't fail until a query is actually made.
func (m *Manager) ensureScanned() error {
	m.mu.RLock()
	done := m.detected
	m.mu.RUnlock()
	if done {
		return nil
	}
	return m.Rescan()
}

// ContextForFile resolves the WorkspaceContext for an arbitrary file path:
// the enclosing package (if any, via longest-prefix match against the
// discovered package roots) and the ordered list of env files that apply,
// root-to-package with deeper directories taking precedence (spec.md §4.2,
// Testable Property 6).
func (m *Manager) ContextForFile(path string) (Context, error) {
	if err := m.ensureScanned(); err != nil {
		return Context{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Context{}, errors.Wrap(err, "resolving queried path")
	}
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Context{}, &PathEscapeError{Path: abs, Root: m.root}
	}

	m.ctxMu.Lock()
	if cached, ok := m.ctxCache[abs]; ok {
		m.ctxMu.Unlock()
		return cached, nil
	}
	m.ctxMu.Unlock()

	dir := filepath.Dir(abs)
	if fi, statErr := os.Stat(abs); statErr == nil && fi.IsDir() {
		dir = abs
	}

	m.mu.RLock()
	var pkg *PackageInfo
	if _, info, ok := m.trie.LongestPrefix(triePath(dir)); ok {
		p := info
		pkg = &p
	}
	m.mu.RUnlock()

	envFiles := m.cascadeEnvFiles(dir, pkg)

	ctx := Context{
		WorkspaceRoot: m.root,
		Package:       pkg,
		EnvFiles:      envFiles,
	}

	m.ctxMu.Lock()
	m.ctxCache[abs] = ctx
	m.ctxMu.Unlock()

	return ctx, nil
}

// cascadeEnvFiles collects any m.filePatterns files present at each
// applicable directory in root-to-leaf order, so that deeper files come
// later in the list and take precedence over shallower ones. The leaf is
// the package root, or the workspace root when dir lies in no package;
// directories below the package root never contribute. With cascading
// enabled, every directory from the workspace root down to the leaf
// contributes; with cascading disabled, only the workspace root and the
// leaf apply (spec.md §4.2). Siblings at the same depth are impossible on
// a single root-to-leaf path, but when a directory has more than one
// matching file, ties are broken lexicographically by absolute path.
func (m *Manager) cascadeEnvFiles(dir string, pkg *PackageInfo) []string {
	leaf := m.root
	if pkg != nil {
		leaf = pkg.PackageRoot
	}

	var dirs []string
	if m.cascading {
		dirs = m.ancestorChain(leaf)
	} else {
		dirs = []string{m.root}
		if leaf != m.root {
			dirs = append(dirs, leaf)
		}
	}

	var files []string
	for _, d := range dirs {
		var matches []string
		for _, name := range m.filePatterns {
			p := filepath.Join(d, name)
			if fileExists(p) {
				matches = append(matches, p)
			}
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files
}

// ancestorChain returns every directory from m.root down to leaf
// (inclusive), root-to-leaf ordered.
func (m *Manager) ancestorChain(leaf string) []string {
	var dirs []string
	cur := leaf
	for {
		dirs = append(dirs, cur)
		if cur == m.root || !strings.HasPrefix(cur, m.root) {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	// dirs is leaf-to-root; reverse to root-to-leaf.
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs
}

// triePath normalizes a directory path for trie storage/lookup: the trie
// is keyed by path-with-trailing-separator so that "/foo/ba" is never
// treated as a prefix of "/foo/bar-other" — only genuine ancestor
// directories match.
func triePath(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}
