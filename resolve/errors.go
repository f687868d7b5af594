package resolve

import "fmt"

// UndefinedVariable is returned when an interpolation reference has no
// matching variable in the merged snapshot set and no default was
// supplied (spec.md §4.3).
type UndefinedVariable struct {
	Name    string
	Message string
}

func (e *UndefinedVariable) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("undefined variable %q", e.Name)
}

// MalformedInterpolation wraps a syntax error from the interpolation
// grammar (unbalanced braces, unknown operator, …).
type MalformedInterpolation struct {
	Message string
}

func (e *MalformedInterpolation) Error() string {
	return fmt.Sprintf("malformed interpolation: %s", e.Message)
}

// CircularReference is returned when interpolating NAME re-enters NAME
// while it is already on the recursion stack.
type CircularReference struct {
	Cycle []string
}

func (e *CircularReference) Error() string {
	return fmt.Sprintf("circular variable reference: %v", e.Cycle)
}

// MaxDepthExceeded is returned when the recursive interpolation depth
// counter exceeds the configured limit (default 64).
type MaxDepthExceeded struct {
	Depth int
}

func (e *MaxDepthExceeded) Error() string {
	return fmt.Sprintf("max interpolation depth exceeded (%d)", e.Depth)
}

// KeyNotFound describes a key that matches no variable in any registered
// source's snapshot. Engine.Resolve reports that case as
// *UndefinedVariable; nothing in this package returns KeyNotFound.
type KeyNotFound struct {
	Key string
}

func (e *KeyNotFound) Error() string {
	return fmt.Sprintf("key %q not found in any source", e.Key)
}
