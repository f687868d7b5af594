package workspace

import "strings"

// PackageInfo describes one discovered package within a monorepo (spec.md
// §3).
type PackageInfo struct {
	PackageRoot  string // absolute path
	Name         string
	RelativePath string // relative to the workspace root
}

// Context is a WorkspaceContext (spec.md §3): the workspace root, the
// optional enclosing package, and the ordered list of env files that apply
// to a queried path. Two Contexts are equal iff all three fields are equal.
type Context struct {
	WorkspaceRoot string
	Package       *PackageInfo
	EnvFiles      []string
}

// Key returns a stable string uniquely identifying this Context, suitable
// as a map/cache key — Context itself holds a slice and so cannot be a Go
// map key directly (spec.md §3: "hashable for cache keys").
func (c Context) Key() string {
	var b strings.Builder
	b.WriteString(c.WorkspaceRoot)
	b.WriteByte('\x00')
	if c.Package != nil {
		b.WriteString(c.Package.PackageRoot)
	}
	b.WriteByte('\x00')
	for _, f := range c.EnvFiles {
		b.WriteString(f)
		b.WriteByte('\x1f')
	}
	return b.String()
}

// Equal reports whether c and other describe the same workspace root,
// package, and env file list, in order.
func (c Context) Equal(other Context) bool {
	if c.WorkspaceRoot != other.WorkspaceRoot {
		return false
	}
	if (c.Package == nil) != (other.Package == nil) {
		return false
	}
	if c.Package != nil && *c.Package != *other.Package {
		return false
	}
	if len(c.EnvFiles) != len(other.EnvFiles) {
		return false
	}
	for i := range c.EnvFiles {
		if c.EnvFiles[i] != other.EnvFiles[i] {
			return false
		}
	}
	return true
}
