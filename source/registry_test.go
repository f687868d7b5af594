package source

import "testing"

type fakeSource struct {
	id       ID
	priority Priority
	vars     []ParsedVariable
	loadErr  error
}

func (f *fakeSource) ID() ID                     { return f.id }
func (f *fakeSource) SourceType() Type           { return TypeMemory }
func (f *fakeSource) Priority() Priority         { return f.priority }
func (f *fakeSource) Capabilities() Capabilities { return CapRead }
func (f *fakeSource) HasChanged() bool           { return false }
func (f *fakeSource) Invalidate()                {}
func (f *fakeSource) Load() (Snapshot, error) {
	if f.loadErr != nil {
		return Snapshot{}, f.loadErr
	}
	return Snapshot{SourceID: f.id, Variables: f.vars}, nil
}

type recordingNotifier struct {
	added       []ID
	removed     []ID
	invalidated []string
	changed     []string
}

func (n *recordingNotifier) SourceAdded(id ID)         { n.added = append(n.added, id) }
func (n *recordingNotifier) SourceRemoved(id ID)       { n.removed = append(n.removed, id) }
func (n *recordingNotifier) CacheInvalidated(r string) { n.invalidated = append(n.invalidated, r) }
func (n *recordingNotifier) VariablesChanged(id ID, added, removed, modified []string) {
	n.changed = append(n.changed, string(id))
}

func TestRegistryOrdersByPriorityDescending(t *testing.T) {
	r := NewRegistry(nil)
	low := &fakeSource{id: "low", priority: 10}
	high := &fakeSource{id: "high", priority: 90}
	mid := &fakeSource{id: "mid", priority: 50}

	for _, s := range []*fakeSource{low, high, mid} {
		if err := r.Register(s); err != nil {
			t.Fatalf("Register(%s): %v", s.id, err)
		}
	}

	got := r.IterByPriority()
	want := []ID{"high", "mid", "low"}
	if len(got) != len(want) {
		t.Fatalf("got %d sources, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID() != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID(), id)
		}
	}
}

func TestRegistryTiesBrokenByRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	first := &fakeSource{id: "first", priority: 50}
	second := &fakeSource{id: "second", priority: 50}
	r.Register(first)
	r.Register(second)

	got := r.IterByPriority()
	if got[0].ID() != "first" || got[1].ID() != "second" {
		t.Errorf("tie-break order wrong: %v, %v", got[0].ID(), got[1].ID())
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&fakeSource{id: "dup", priority: 1}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(&fakeSource{id: "dup", priority: 2})
	if err == nil {
		t.Fatal("expected error registering duplicate ID")
	}
}

func TestRegistryNotifiesOnRegisterAndUnregister(t *testing.T) {
	n := &recordingNotifier{}
	r := NewRegistry(n)
	r.Register(&fakeSource{id: "a", priority: 1})
	r.Unregister("a")

	if len(n.added) != 1 || n.added[0] != "a" {
		t.Errorf("SourceAdded not recorded: %v", n.added)
	}
	if len(n.removed) != 1 || n.removed[0] != "a" {
		t.Errorf("SourceRemoved not recorded: %v", n.removed)
	}
}

func TestRegistryEpochAdvancesOnMutation(t *testing.T) {
	r := NewRegistry(nil)
	e0 := r.Epoch()
	r.Register(&fakeSource{id: "a", priority: 1})
	e1 := r.Epoch()
	if e1 <= e0 {
		t.Errorf("epoch did not advance on Register: %d -> %d", e0, e1)
	}
	r.InvalidateAll("test")
	e2 := r.Epoch()
	if e2 <= e1 {
		t.Errorf("epoch did not advance on InvalidateAll: %d -> %d", e1, e2)
	}
}

func TestRegistryMemorySourceMutationAdvancesEpochAndNotifies(t *testing.T) {
	n := &recordingNotifier{}
	r := NewRegistry(n)
	mem := NewMemorySource("mem", PriorityMemory)
	if err := r.Register(mem); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e0 := r.Epoch()
	mem.Set("K", "v1")
	e1 := r.Epoch()
	if e1 <= e0 {
		t.Errorf("epoch did not advance on Set: %d -> %d", e0, e1)
	}

	mem.Set("K", "v2")
	e2 := r.Epoch()
	if e2 <= e1 {
		t.Errorf("epoch did not advance on second Set: %d -> %d", e1, e2)
	}

	if len(n.changed) != 2 || n.changed[0] != "mem" || n.changed[1] != "mem" {
		t.Errorf("expected two VariablesChanged notifications for mem, got %v", n.changed)
	}
}

func TestRegistryLoadAllContinuesPastFailure(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeSource{id: "ok", priority: 100, vars: []ParsedVariable{{Key: "A", RawValue: "1"}}})
	r.Register(&fakeSource{id: "bad", priority: 50, loadErr: errTest})

	result := r.LoadAll()
	if len(result.Snapshots) != 1 {
		t.Errorf("expected 1 successful snapshot, got %d", len(result.Snapshots))
	}
	if _, ok := result.Errors["bad"]; !ok {
		t.Errorf("expected error recorded for 'bad'")
	}
}

var errTest = &IoError{Path: "x", Cause: nil}
