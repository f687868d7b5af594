package workspace

import (
	"path/filepath"
	"testing"
)

func staticProvider(pkgs []PackageInfo) Provider {
	return CustomProvider{
		NameFn:   "static",
		DetectFn: func(root string) bool { return true },
		DiscoverFn: func(root string) ([]PackageInfo, error) {
			return pkgs, nil
		},
	}
}

func TestManagerContextForFileFindsEnclosingPackage(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "packages", "foo")
	mustMkdirAll(t, pkgDir)

	mgr, err := NewManager(root, staticProvider([]PackageInfo{
		{PackageRoot: pkgDir, Name: "foo", RelativePath: "packages/foo"},
	}))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, err := mgr.ContextForFile(filepath.Join(pkgDir, "src", "index.js"))
	if err != nil {
		t.Fatalf("ContextForFile: %v", err)
	}
	if ctx.Package == nil || ctx.Package.Name != "foo" {
		t.Fatalf("expected package foo, got %+v", ctx.Package)
	}
}

func TestManagerContextForFileOutsideAnyPackage(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "standalone"))

	mgr, err := NewManager(root, staticProvider(nil))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, err := mgr.ContextForFile(filepath.Join(root, "standalone", "main.go"))
	if err != nil {
		t.Fatalf("ContextForFile: %v", err)
	}
	if ctx.Package != nil {
		t.Errorf("expected no enclosing package, got %+v", ctx.Package)
	}
}

func TestManagerContextForFileRejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	mgr, err := NewManager(root, staticProvider(nil))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_, err = mgr.ContextForFile(filepath.Join(root, "..", "outside.txt"))
	if err == nil {
		t.Fatal("expected PathEscapeError")
	}
	if _, ok := err.(*PathEscapeError); !ok {
		t.Errorf("expected *PathEscapeError, got %T", err)
	}
}

func TestManagerCascadesEnvFilesRootToLeaf(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "packages", "foo")
	mustMkdirAll(t, pkgDir)

	mustWriteFile(t, filepath.Join(root, ".env"), "ROOT=1\n")
	mustWriteFile(t, filepath.Join(root, "packages", ".env"), "MID=1\n")
	mustWriteFile(t, filepath.Join(pkgDir, ".env"), "LEAF=1\n")

	mgr, err := NewManager(root, staticProvider([]PackageInfo{
		{PackageRoot: pkgDir, Name: "foo", RelativePath: "packages/foo"},
	}))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, err := mgr.ContextForFile(filepath.Join(pkgDir, "index.js"))
	if err != nil {
		t.Fatalf("ContextForFile: %v", err)
	}
	want := []string{
		filepath.Join(root, ".env"),
		filepath.Join(root, "packages", ".env"),
		filepath.Join(pkgDir, ".env"),
	}
	if len(ctx.EnvFiles) != len(want) {
		t.Fatalf("got %v, want %v", ctx.EnvFiles, want)
	}
	for i := range want {
		if ctx.EnvFiles[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, ctx.EnvFiles[i], want[i])
		}
	}
}

func TestManagerNonCascadingSkipsIntermediateAncestors(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "packages", "foo")
	mustMkdirAll(t, pkgDir)

	mustWriteFile(t, filepath.Join(root, ".env"), "ROOT=1\n")
	mustWriteFile(t, filepath.Join(root, "packages", ".env"), "MID=1\n")
	mustWriteFile(t, filepath.Join(pkgDir, ".env"), "LEAF=1\n")

	mgr, err := NewManagerWithOptions(root, staticProvider([]PackageInfo{
		{PackageRoot: pkgDir, Name: "foo", RelativePath: "packages/foo"},
	}), ManagerOptions{Cascading: false, FilePatterns: DefaultManagerOptions().FilePatterns})
	if err != nil {
		t.Fatalf("NewManagerWithOptions: %v", err)
	}

	ctx, err := mgr.ContextForFile(filepath.Join(pkgDir, "index.js"))
	if err != nil {
		t.Fatalf("ContextForFile: %v", err)
	}
	want := []string{
		filepath.Join(root, ".env"),
		filepath.Join(pkgDir, ".env"),
	}
	if len(ctx.EnvFiles) != len(want) {
		t.Fatalf("got %v, want %v (intermediate packages/.env should be skipped)", ctx.EnvFiles, want)
	}
	for i := range want {
		if ctx.EnvFiles[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, ctx.EnvFiles[i], want[i])
		}
	}
}

func TestManagerHonorsCustomFilePatterns(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, ".env"), "A=1\n")
	mustWriteFile(t, filepath.Join(root, ".env.custom"), "A=2\n")

	mgr, err := NewManagerWithOptions(root, staticProvider(nil), ManagerOptions{
		Cascading:    true,
		FilePatterns: []string{".env.custom"},
	})
	if err != nil {
		t.Fatalf("NewManagerWithOptions: %v", err)
	}
	ctx, err := mgr.ContextForFile(filepath.Join(root, "main.go"))
	if err != nil {
		t.Fatalf("ContextForFile: %v", err)
	}
	want := []string{filepath.Join(root, ".env.custom")}
	if len(ctx.EnvFiles) != 1 || ctx.EnvFiles[0] != want[0] {
		t.Errorf("got %v, want %v (only the configured pattern should apply)", ctx.EnvFiles, want)
	}
}

func TestManagerCascadeBreaksSiblingTiesLexicographically(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, ".env"), "A=1\n")
	mustWriteFile(t, filepath.Join(root, ".env.local"), "A=2\n")

	mgr, err := NewManager(root, staticProvider(nil))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, err := mgr.ContextForFile(filepath.Join(root, "main.go"))
	if err != nil {
		t.Fatalf("ContextForFile: %v", err)
	}
	want := []string{
		filepath.Join(root, ".env"),
		filepath.Join(root, ".env.local"),
	}
	if len(ctx.EnvFiles) != 2 || ctx.EnvFiles[0] != want[0] || ctx.EnvFiles[1] != want[1] {
		t.Errorf("got %v, want %v", ctx.EnvFiles, want)
	}
}

func TestManagerContextForFileCaches(t *testing.T) {
	root := t.TempDir()
	mgr, err := NewManager(root, staticProvider(nil))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	path := filepath.Join(root, "main.go")
	ctx1, _ := mgr.ContextForFile(path)
	ctx2, _ := mgr.ContextForFile(path)
	if !ctx1.Equal(ctx2) {
		t.Errorf("expected cached context equal, got %+v vs %+v", ctx1, ctx2)
	}
}

func TestManagerRescanPicksUpNewPackages(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "packages", "foo")
	mustMkdirAll(t, pkgDir)

	var pkgs []PackageInfo
	provider := CustomProvider{
		NameFn:   "dynamic",
		DetectFn: func(root string) bool { return true },
		DiscoverFn: func(root string) ([]PackageInfo, error) {
			return pkgs, nil
		},
	}
	mgr, err := NewManager(root, provider)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, _ := mgr.ContextForFile(filepath.Join(pkgDir, "index.js"))
	if ctx.Package != nil {
		t.Fatalf("expected no package before Rescan, got %+v", ctx.Package)
	}

	pkgs = []PackageInfo{{PackageRoot: pkgDir, Name: "foo", RelativePath: "packages/foo"}}
	if err := mgr.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}

	ctx, err = mgr.ContextForFile(filepath.Join(pkgDir, "index.js"))
	if err != nil {
		t.Fatalf("ContextForFile after Rescan: %v", err)
	}
	if ctx.Package == nil || ctx.Package.Name != "foo" {
		t.Errorf("expected package picked up after Rescan, got %+v", ctx.Package)
	}
}

func TestManagerRescanFailsWhenProviderNoLongerDetects(t *testing.T) {
	root := t.TempDir()
	provider := CustomProvider{
		NameFn:   "gone",
		DetectFn: func(root string) bool { return false },
		DiscoverFn: func(root string) ([]PackageInfo, error) {
			return nil, nil
		},
	}
	mgr, err := NewManager(root, provider)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	err = mgr.Rescan()
	if err == nil {
		t.Fatal("expected WorkspaceNotDetectedError")
	}
	if _, ok := err.(*WorkspaceNotDetectedError); !ok {
		t.Errorf("expected *WorkspaceNotDetectedError, got %T", err)
	}
}
