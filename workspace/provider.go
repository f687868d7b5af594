package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Provider is a monorepo provider (spec.md §4.2): it detects whether a
// configuration file marking a known monorepo layout exists at root, and
// discovers the packages declared there.
type Provider interface {
	Name() string
	Detect(root string) bool
	Discover(root string) ([]PackageInfo, error)
}

// --- Cargo -------------------------------------------------------------

type CargoProvider struct{}

func (CargoProvider) Name() string { return "cargo" }

func (CargoProvider) Detect(root string) bool {
	return fileExists(filepath.Join(root, "Cargo.toml"))
}

func (CargoProvider) Discover(root string) ([]PackageInfo, error) {
	tree, err := toml.LoadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing Cargo.toml")
	}

	members := stringSliceAt(tree, "workspace.members")
	excludes := stringSliceAt(tree, "workspace.excludes")

	dirs, err := expandPatterns(root, members, excludes)
	if err != nil {
		return nil, err
	}
	return packagesFromDirs(root, dirs, func(dir string) string {
		if name := cargoPackageName(dir); name != "" {
			return name
		}
		return filepath.Base(dir)
	}), nil
}

func cargoPackageName(dir string) string {
	tree, err := toml.LoadFile(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return ""
	}
	if v, ok := tree.Get("package.name").(string); ok {
		return v
	}
	return ""
}

func stringSliceAt(tree *toml.Tree, path string) []string {
	v := tree.Get(path)
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- Npm / Yarn ----------------------------------------------------------

type NpmYarnProvider struct{ name string }

func NewNpmProvider() NpmYarnProvider  { return NpmYarnProvider{name: "npm"} }
func NewYarnProvider() NpmYarnProvider { return NpmYarnProvider{name: "yarn"} }

func (p NpmYarnProvider) Name() string { return p.name }

func (p NpmYarnProvider) Detect(root string) bool {
	patterns, err := readPackageJSONWorkspaces(root)
	return err == nil && len(patterns) > 0
}

func (p NpmYarnProvider) Discover(root string) ([]PackageInfo, error) {
	patterns, err := readPackageJSONWorkspaces(root)
	if err != nil {
		return nil, errors.Wrap(err, "reading package.json workspaces")
	}
	dirs, err := expandPatterns(root, patterns, nil)
	if err != nil {
		return nil, err
	}
	return packagesFromDirs(root, dirs, packageJSONName), nil
}

type packageJSONDoc struct {
	Name       string      `json:"name"`
	Workspaces interface{} `json:"workspaces"`
}

func readPackageJSONWorkspaces(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return nil, err
	}
	var doc packageJSONDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	switch w := doc.Workspaces.(type) {
	case []interface{}:
		out := make([]string, 0, len(w))
		for _, v := range w {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out, nil
	case map[string]interface{}:
		if packages, ok := w["packages"].([]interface{}); ok {
			out := make([]string, 0, len(packages))
			for _, v := range packages {
				if s, ok := v.(string); ok {
					out = append(out, s)
				}
			}
			return out, nil
		}
	}
	return nil, nil
}

func packageJSONName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return filepath.Base(dir)
	}
	var doc packageJSONDoc
	if err := json.Unmarshal(data, &doc); err != nil || doc.Name == "" {
		return filepath.Base(dir)
	}
	return doc.Name
}

// --- Pnpm ------------------------------------------------------------

type PnpmProvider struct{}

func (PnpmProvider) Name() string { return "pnpm" }

func (PnpmProvider) Detect(root string) bool {
	return fileExists(filepath.Join(root, "pnpm-workspace.yaml"))
}

type pnpmWorkspaceDoc struct {
	Packages []string `yaml:"packages"`
}

func (PnpmProvider) Discover(root string) ([]PackageInfo, error) {
	data, err := os.ReadFile(filepath.Join(root, "pnpm-workspace.yaml"))
	if err != nil {
		return nil, errors.Wrap(err, "reading pnpm-workspace.yaml")
	}
	var doc pnpmWorkspaceDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing pnpm-workspace.yaml")
	}
	dirs, err := expandPatterns(root, doc.Packages, nil)
	if err != nil {
		return nil, err
	}
	return packagesFromDirs(root, dirs, packageJSONName), nil
}

// --- Lerna -------------------------------------------------------------

type LernaProvider struct{}

func (LernaProvider) Name() string { return "lerna" }

func (LernaProvider) Detect(root string) bool {
	return fileExists(filepath.Join(root, "lerna.json"))
}

type lernaDoc struct {
	Packages []string `json:"packages"`
}

func (LernaProvider) Discover(root string) ([]PackageInfo, error) {
	data, err := os.ReadFile(filepath.Join(root, "lerna.json"))
	if err != nil {
		return nil, errors.Wrap(err, "reading lerna.json")
	}
	var doc lernaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing lerna.json")
	}
	patterns := doc.Packages
	if len(patterns) == 0 {
		patterns = []string{"packages/*"}
	}
	dirs, err := expandPatterns(root, patterns, nil)
	if err != nil {
		return nil, err
	}
	return packagesFromDirs(root, dirs, packageJSONName), nil
}

// --- Nx ------------------------------------------------------------------

type NxProvider struct{}

func (NxProvider) Name() string { return "nx" }

func (NxProvider) Detect(root string) bool {
	return fileExists(filepath.Join(root, "nx.json"))
}

// Discover walks the tree looking for project.json files, the modern Nx
// convention for declaring a project's root — avoiding the need to parse
// Nx's (often generated) workspace.json package list.
func (NxProvider) Discover(root string) ([]PackageInfo, error) {
	var dirs []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() && shouldSkipDir(filepath.Base(path)) {
				return filepath.SkipDir
			}
			if !de.IsDir() && filepath.Base(path) == "project.json" {
				dirs = append(dirs, filepath.Dir(path))
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking for project.json")
	}
	sort.Strings(dirs)
	return packagesFromDirs(root, dirs, nxProjectName), nil
}

type nxProjectDoc struct {
	Name string `json:"name"`
}

func nxProjectName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "project.json"))
	if err != nil {
		return filepath.Base(dir)
	}
	var doc nxProjectDoc
	if err := json.Unmarshal(data, &doc); err != nil || doc.Name == "" {
		return filepath.Base(dir)
	}
	return doc.Name
}

// --- Turbo -----------------------------------------------------------

// TurboProvider detects turbo.json but delegates package discovery to
// whichever of Pnpm or Npm is co-detected, per spec.md §4.2.
type TurboProvider struct{}

func (TurboProvider) Name() string { return "turbo" }

func (TurboProvider) Detect(root string) bool {
	return fileExists(filepath.Join(root, "turbo.json"))
}

func (TurboProvider) Discover(root string) ([]PackageInfo, error) {
	pnpm := PnpmProvider{}
	if pnpm.Detect(root) {
		return pnpm.Discover(root)
	}
	if npm := NewNpmProvider(); npm.Detect(root) {
		return npm.Discover(root)
	}
	return nil, errors.New("turbo: no pnpm-workspace.yaml or package.json workspaces found alongside turbo.json")
}

// --- Custom ------------------------------------------------------------

// CustomProvider lets an embedding consumer supply its own detect/discover
// logic for a manifest format this package doesn't know about natively.
type CustomProvider struct {
	NameFn    string
	DetectFn  func(root string) bool
	DiscoverFn func(root string) ([]PackageInfo, error)
}

func (c CustomProvider) Name() string               { return c.NameFn }
func (c CustomProvider) Detect(root string) bool    { return c.DetectFn(root) }
func (c CustomProvider) Discover(root string) ([]PackageInfo, error) {
	return c.DiscoverFn(root)
}

// --- shared helpers ------------------------------------------------------

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"target":       true,
	"dist":         true,
	"build":        true,
}

func shouldSkipDir(name string) bool { return skipDirs[name] }

// packagesFromDirs turns a list of absolute package directories into
// PackageInfo values, deduplicated and sorted for deterministic output.
func packagesFromDirs(root string, dirs []string, nameOf func(dir string) string) []PackageInfo {
	seen := make(map[string]bool, len(dirs))
	out := make([]PackageInfo, 0, len(dirs))
	for _, d := range dirs {
		d = filepath.Clean(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		rel, err := filepath.Rel(root, d)
		if err != nil {
			rel = d
		}
		out = append(out, PackageInfo{
			PackageRoot:  d,
			Name:         nameOf(d),
			RelativePath: rel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageRoot < out[j].PackageRoot })
	return out
}

// expandPatterns resolves glob-style workspace patterns ("packages/*",
// "apps/**") rooted at root into a list of existing directories, using
// github.com/karrick/godirwalk to enumerate candidates instead of
// filepath.Glob so that "**" (match at any depth) is supported and large
// trees are walked efficiently. excludePatterns, if non-nil, removes any
// directory that also matches one of those patterns (Cargo's
// workspace.excludes).
func expandPatterns(root string, patterns, excludePatterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	var all []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			if !de.IsDir() {
				return nil
			}
			if shouldSkipDir(filepath.Base(path)) {
				return filepath.SkipDir
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			for _, pat := range patterns {
				if matchWorkspacePattern(pat, rel) {
					all = append(all, path)
					break
				}
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "expanding workspace patterns")
	}

	if len(excludePatterns) == 0 {
		return all, nil
	}
	filtered := all[:0]
	for _, dir := range all {
		rel, _ := filepath.Rel(root, dir)
		rel = filepath.ToSlash(rel)
		excluded := false
		for _, pat := range excludePatterns {
			if matchWorkspacePattern(pat, rel) {
				excluded = true
				break
			}
		}
		if !excluded {
			filtered = append(filtered, dir)
		}
	}
	return filtered, nil
}

// matchWorkspacePattern supports a practical subset of the glob dialects
// used by Cargo/npm/pnpm workspace declarations: '*' matches one path
// segment, "**" matches zero or more segments, everything else matches
// literally.
func matchWorkspacePattern(pattern, rel string) bool {
	pSegs := strings.Split(pattern, "/")
	rSegs := strings.Split(rel, "/")
	return matchSegments(pSegs, rSegs)
}

func matchSegments(pat, rel []string) bool {
	if len(pat) == 0 {
		return len(rel) == 0
	}
	head := pat[0]
	if head == "**" {
		if matchSegments(pat[1:], rel) {
			return true
		}
		if len(rel) == 0 {
			return false
		}
		return matchSegments(pat, rel[1:])
	}
	if len(rel) == 0 {
		return false
	}
	if head != "*" && head != rel[0] {
		return false
	}
	return matchSegments(pat[1:], rel[1:])
}
