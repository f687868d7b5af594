package diag

import "testing"

func TestDiagnosticString(t *testing.T) {
	d := New(Warning, CodeEnvFile, "duplicate key")
	got := d.String()
	want := "[EDF] warning: duplicate key"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDiagnosticWithPosition(t *testing.T) {
	d := New(Error, CodeResolution, "undefined variable").WithPosition("app/.env", 3, 5)
	got := d.String()
	want := "[RES] error: undefined variable (app/.env:3:5)"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSeverityString(t *testing.T) {
	cases := map[Severity]string{
		Error:   "error",
		Warning: "warning",
		Info:    "info",
		Hint:    "hint",
	}
	for sev, want := range cases {
		if got := sev.String(); got != want {
			t.Errorf("Severity(%d).String() = %q, want %q", sev, got, want)
		}
	}
}
