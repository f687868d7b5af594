package workspace

import "fmt"

// WorkspaceNotDetectedError is returned when the provider's configuration
// file is absent at the declared root (spec.md §4.2 step 1).
type WorkspaceNotDetectedError struct {
	Provider string
	Root     string
}

func (e *WorkspaceNotDetectedError) Error() string {
	return fmt.Sprintf("workspace provider %q did not detect a workspace at %s", e.Provider, e.Root)
}

// ProviderDiscoveryFailedError wraps a failure inside Provider.Discover.
type ProviderDiscoveryFailedError struct {
	Provider string
	Cause    error
}

func (e *ProviderDiscoveryFailedError) Error() string {
	return fmt.Sprintf("provider %q failed to discover packages: %s", e.Provider, e.Cause)
}

func (e *ProviderDiscoveryFailedError) Unwrap() error { return e.Cause }

// PathEscapeError is returned by Manager.ContextForFile when canonicalizing
// path escapes the workspace root.
type PathEscapeError struct {
	Path string
	Root string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path %s escapes workspace root %s", e.Path, e.Root)
}
