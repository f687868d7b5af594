package source

import "fmt"

// Error variants for the source package, per spec.md §7. Each carries
// structured data, so — matching the teacher's errors.go convention — these
// are struct types with an Error() method rather than sentinel values.

// IoError wraps a filesystem failure encountered while loading a source.
type IoError struct {
	Path  string
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error reading %s: %s", e.Path, e.Cause)
}

func (e *IoError) Unwrap() error { return e.Cause }

// ParseErr wraps a dotenv.ParseError with the owning file path attached.
type ParseErr struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *ParseErr) Error() string {
	return fmt.Sprintf("parse error in %s at %d:%d: %s", e.Path, e.Line, e.Column, e.Message)
}

// DuplicateSourceError is returned by Registry.Register when the ID is
// already present.
type DuplicateSourceError struct {
	ID ID
}

func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("source %q is already registered", e.ID)
}

// Reserved per spec.md §7 / §9 Open Questions: no remote source ships today,
// but the error taxonomy is reserved so a future implementation slots in
// without an API break.

type RemoteAuthError struct {
	Provider string
	Cause    error
}

func (e *RemoteAuthError) Error() string {
	return fmt.Sprintf("remote auth failed for provider %s: %s", e.Provider, e.Cause)
}

type RemoteTimeoutError struct {
	Provider string
}

func (e *RemoteTimeoutError) Error() string {
	return fmt.Sprintf("remote provider %s timed out", e.Provider)
}

// ErrRemoteUnimplemented is returned by RemoteSource.Load. The remote
// priority band (spec.md §4.1/§9) is allocated and exercised by Registry
// ordering, but no transport exists yet.
var ErrRemoteUnimplemented = &RemoteTimeoutError{Provider: "unimplemented"}
