package workspace

import "github.com/armon/go-radix"

// packageTrie is a typed wrapper around a radix tree keyed by absolute
// package-root path, supporting the longest-prefix lookup that
// Manager.ContextForFile needs to find the innermost package enclosing a
// queried file (spec.md §4.2, Property 6).
//
// Grounded directly on the teacher's deducerTrie (typed_radix.go): a thin
// wrapper that avoids type assertions everywhere else in the package.
type packageTrie struct {
	t *radix.Tree
}

func newPackageTrie() packageTrie {
	return packageTrie{t: radix.New()}
}

// Insert adds or updates the entry for root.
func (t packageTrie) Insert(root string, pkg PackageInfo) {
	t.t.Insert(root, pkg)
}

// LongestPrefix returns the package whose root is the longest prefix of s,
// if any.
func (t packageTrie) LongestPrefix(s string) (string, PackageInfo, bool) {
	p, v, has := t.t.LongestPrefix(s)
	if !has {
		return "", PackageInfo{}, false
	}
	return p, v.(PackageInfo), true
}

// Len reports the number of indexed packages.
func (t packageTrie) Len() int { return t.t.Len() }

// ToMap walks the tree, mostly useful for tests and diagnostics.
func (t packageTrie) ToMap() map[string]PackageInfo {
	m := make(map[string]PackageInfo, t.t.Len())
	t.t.Walk(func(s string, v interface{}) bool {
		m[s] = v.(PackageInfo)
		return false
	})
	return m
}
