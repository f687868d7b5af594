package source

import "testing"

func TestMemorySourceSetAndLoad(t *testing.T) {
	m := NewMemorySource("mem1", PriorityMemory)
	m.Set("A", "1")
	m.Set("B", "2")

	snap, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Variables) != 2 {
		t.Fatalf("got %d variables, want 2", len(snap.Variables))
	}
	if snap.Variables[0].Key != "A" || snap.Variables[1].Key != "B" {
		t.Errorf("insertion order not preserved: %+v", snap.Variables)
	}
}

func TestMemorySourceGeneratesIDWhenEmpty(t *testing.T) {
	m := NewMemorySource("", PriorityMemory)
	if m.ID() == "" {
		t.Error("expected a generated ID")
	}
}

func TestMemorySourceHasChangedTracksMutation(t *testing.T) {
	m := NewMemorySource("mem1", PriorityMemory)
	if !m.HasChanged() {
		t.Error("expected HasChanged true before first Load")
	}
	m.Load()
	if m.HasChanged() {
		t.Error("expected HasChanged false immediately after Load with no mutation")
	}
	m.Set("A", "1")
	if !m.HasChanged() {
		t.Error("expected HasChanged true after Set")
	}
}

func TestMemorySourceRemoveAndClear(t *testing.T) {
	m := NewMemorySource("mem1", PriorityMemory)
	m.Set("A", "1")
	m.Set("B", "2")
	m.Remove("A")

	snap, _ := m.Load()
	if len(snap.Variables) != 1 || snap.Variables[0].Key != "B" {
		t.Errorf("Remove failed: %+v", snap.Variables)
	}

	m.Clear()
	snap, _ = m.Load()
	if len(snap.Variables) != 0 {
		t.Errorf("Clear failed: %+v", snap.Variables)
	}
}

func TestMemorySourceInvalidateForcesHasChanged(t *testing.T) {
	m := NewMemorySource("mem1", PriorityMemory)
	m.Load()
	m.Invalidate()
	if !m.HasChanged() {
		t.Error("expected HasChanged true after Invalidate")
	}
}
