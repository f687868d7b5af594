package resolve

import (
	"testing"

	"github.com/ph1losof/envcascade/source"
	"github.com/ph1losof/envcascade/workspace"
)

func emptyCtx() workspace.Context {
	return workspace.Context{WorkspaceRoot: "/tmp"}
}

func newEngineWithSources(t *testing.T, sources ...source.Source) *Engine {
	t.Helper()
	reg := source.NewRegistry(nil)
	for _, s := range sources {
		if err := reg.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return NewEngine(reg, 0, true)
}

func TestResolveHonorsPriorityMonotonicity(t *testing.T) {
	low := source.NewMemorySource("low", 10)
	low.Set("FOO", "from-low")
	high := source.NewMemorySource("high", 90)
	high.Set("FOO", "from-high")

	e := newEngineWithSources(t, low, high)
	rv, err := e.Resolve("FOO", emptyCtx())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rv.ResolvedValue != "from-high" {
		t.Errorf("expected higher-priority source to win, got %q", rv.ResolvedValue)
	}
	if rv.Source != "high" {
		t.Errorf("expected Source=high, got %s", rv.Source)
	}
}

func TestResolveUndefinedKeyFails(t *testing.T) {
	e := newEngineWithSources(t, source.NewMemorySource("m", 50))
	_, err := e.Resolve("MISSING", emptyCtx())
	if err == nil {
		t.Fatal("expected error for undefined key")
	}
	if _, ok := err.(*UndefinedVariable); !ok {
		t.Errorf("expected *UndefinedVariable, got %T", err)
	}
}

func TestResolveInterpolatesBraceDefault(t *testing.T) {
	m := source.NewMemorySource("m", 50)
	m.Set("GREETING", "hello ${NAME:-world}")
	e := newEngineWithSources(t, m)

	rv, err := e.Resolve("GREETING", emptyCtx())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rv.ResolvedValue != "hello world" {
		t.Errorf("got %q, want %q", rv.ResolvedValue, "hello world")
	}
}

func TestResolveChainsNestedReferences(t *testing.T) {
	m := source.NewMemorySource("m", 50)
	m.Set("A", "$B")
	m.Set("B", "$C")
	m.Set("C", "leaf")
	e := newEngineWithSources(t, m)

	rv, err := e.Resolve("A", emptyCtx())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rv.ResolvedValue != "leaf" {
		t.Errorf("got %q, want leaf", rv.ResolvedValue)
	}
}

func TestResolveDetectsCircularReference(t *testing.T) {
	m := source.NewMemorySource("m", 50)
	m.Set("A", "$B")
	m.Set("B", "$A")
	e := newEngineWithSources(t, m)

	_, err := e.Resolve("A", emptyCtx())
	if err == nil {
		t.Fatal("expected circular reference error")
	}
	cycleErr, ok := err.(*CircularReference)
	if !ok {
		t.Fatalf("expected *CircularReference, got %T", err)
	}

	want := []string{"A", "B", "A"}
	if len(cycleErr.Cycle) != len(want) {
		t.Fatalf("got cycle %v, want %v", cycleErr.Cycle, want)
	}
	for i := range want {
		if cycleErr.Cycle[i] != want[i] {
			t.Errorf("got cycle %v, want %v", cycleErr.Cycle, want)
			break
		}
	}
}

func TestResolveEnforcesMaxDepth(t *testing.T) {
	reg := source.NewRegistry(nil)
	m := source.NewMemorySource("m", 50)
	m.Set("V0", "$V1")
	m.Set("V1", "$V2")
	m.Set("V2", "leaf")
	reg.Register(m)

	e := NewEngine(reg, 1, true)
	_, err := e.Resolve("V0", emptyCtx())
	if err == nil {
		t.Fatal("expected max depth exceeded error")
	}
	depthErr, ok := err.(*MaxDepthExceeded)
	if !ok {
		t.Fatalf("expected *MaxDepthExceeded, got %T", err)
	}
	if depthErr.Depth != 1 {
		t.Errorf("expected reported depth to be the configured limit (1), got %d", depthErr.Depth)
	}
}

func TestResolveWithInterpolationDisabledReturnsRawValue(t *testing.T) {
	reg := source.NewRegistry(nil)
	m := source.NewMemorySource("m", 50)
	m.Set("A", "$B")
	m.Set("B", "leaf")
	reg.Register(m)

	e := NewEngine(reg, 0, false)
	rv, err := e.Resolve("A", emptyCtx())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rv.ResolvedValue != "$B" {
		t.Errorf("expected literal raw value with interpolation disabled, got %q", rv.ResolvedValue)
	}
}

func TestResolveStripsQuotesAndUnescapes(t *testing.T) {
	m := source.NewMemorySource("m", 50)
	m.Set("Q", `"line1\nline2"`)
	e := newEngineWithSources(t, m)

	rv, err := e.Resolve("Q", emptyCtx())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rv.ResolvedValue != "line1\nline2" {
		t.Errorf("got %q, want %q", rv.ResolvedValue, "line1\nline2")
	}
	if rv.RawValue != `"line1\nline2"` {
		t.Errorf("expected RawValue to preserve quotes byte-exact, got %q", rv.RawValue)
	}
}

func TestAllIsolatesPerKeyFailures(t *testing.T) {
	m := source.NewMemorySource("m", 50)
	m.Set("OK", "fine")
	m.Set("BAD", "$UNDEFINED")
	e := newEngineWithSources(t, m)

	results, errs := e.All(emptyCtx())
	if results["OK"].ResolvedValue != "fine" {
		t.Errorf("expected OK to resolve, got %+v", results["OK"])
	}
	if _, failed := errs["BAD"]; !failed {
		t.Errorf("expected BAD to fail, errs=%v", errs)
	}
	if _, stillPresent := results["BAD"]; stillPresent {
		t.Errorf("expected BAD absent from results on failure")
	}
}

func TestMergedSnapshotOnlyIncludesMatchingFileSources(t *testing.T) {
	reg := source.NewRegistry(nil)
	fs := source.NewFileSourceAt("/repo/.env", 50, nil)
	reg.Register(fs)
	e := NewEngine(reg, 0, true)

	ctx := workspace.Context{WorkspaceRoot: "/repo"} // EnvFiles does not include /repo/.env
	merged, err := e.mergedSnapshot(ctx)
	if err != nil {
		t.Fatalf("mergedSnapshot: %v", err)
	}
	if len(merged) != 0 {
		t.Errorf("expected file source excluded when its path is not in ctx.EnvFiles, got %v", merged)
	}
}
