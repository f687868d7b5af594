// Package interpolate is the shell-style substitution routine named as an
// external collaborator in spec.md §1/§6. It implements the grammar in
// spec.md §4.3 ($NAME, ${NAME}, ${NAME:-default}, ${NAME-default},
// ${NAME:+alt}, ${NAME:?message}, \$) but is deliberately ignorant of
// cycles and recursion depth: the caller's Lookup function is responsible
// for tracking a recursion stack and erroring out of a cycle, per the
// contract in spec.md §6 ("It does not itself detect cycles").
package interpolate

import (
	"fmt"
	"strings"
)

// Lookup resolves a bare variable reference, recursively expanding it if
// necessary, and reports whether it is defined at all (as opposed to defined
// and empty). The Resolution Engine supplies an implementation that pushes
// name onto a recursion stack before recursing and pops it on return.
type Lookup func(name string) (value string, defined bool, err error)

// UndefinedError is returned by Expand when a $NAME or ${NAME} reference is
// undefined, or when a ${NAME:?message} reference is undefined or empty.
type UndefinedError struct {
	Name    string
	Message string
}

func (e *UndefinedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("%s: parameter not set", e.Name)
}

// MalformedError is returned for an unclosed ${...} or similarly broken
// reference.
type MalformedError struct {
	Message string
}

func (e *MalformedError) Error() string { return e.Message }

const nameChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_"

func isNameStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameChar(b byte) bool {
	return strings.IndexByte(nameChars, b) >= 0
}

// Expand substitutes every reference in raw using lookup, returning the
// fully expanded string.
func Expand(raw string, lookup Lookup) (string, error) {
	var buf strings.Builder
	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case c == '\\' && i+1 < len(raw) && raw[i+1] == '$':
			buf.WriteByte('$')
			i += 2
		case c == '$' && i+1 < len(raw) && raw[i+1] == '{':
			expanded, next, err := expandBraced(raw, i, lookup)
			if err != nil {
				return buf.String(), err
			}
			buf.WriteString(expanded)
			i = next
		case c == '$' && i+1 < len(raw) && isNameStart(raw[i+1]):
			j := i + 1
			for j < len(raw) && isNameChar(raw[j]) {
				j++
			}
			name := raw[i+1 : j]
			val, defined, err := lookup(name)
			if err != nil {
				return buf.String(), err
			}
			if !defined {
				return buf.String(), &UndefinedError{Name: name}
			}
			buf.WriteString(val)
			i = j
		default:
			buf.WriteByte(c)
			i++
		}
	}
	return buf.String(), nil
}

// expandBraced handles everything starting at raw[start] == '$' with
// raw[start+1] == '{'. It returns the substituted text and the index just
// past the closing '}'.
func expandBraced(raw string, start int, lookup Lookup) (string, int, error) {
	j := start + 2
	depth := 1
	for j < len(raw) && depth > 0 {
		switch raw[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				break
			}
		}
		if depth == 0 {
			break
		}
		j++
	}
	if depth != 0 {
		return "", 0, &MalformedError{Message: fmt.Sprintf("unclosed '${' starting at offset %d", start)}
	}
	inner := raw[start+2 : j]
	next := j + 1

	name, op, arg, err := splitOperator(inner)
	if err != nil {
		return "", 0, err
	}

	val, defined, err := lookup(name)
	if err != nil {
		return "", 0, err
	}

	switch op {
	case "":
		if !defined {
			return "", next, &UndefinedError{Name: name}
		}
		return val, next, nil
	case ":-":
		if defined && val != "" {
			return val, next, nil
		}
		expanded, err := Expand(arg, lookup)
		return expanded, next, err
	case "-":
		if defined {
			return val, next, nil
		}
		expanded, err := Expand(arg, lookup)
		return expanded, next, err
	case ":+":
		if defined && val != "" {
			expanded, err := Expand(arg, lookup)
			return expanded, next, err
		}
		return "", next, nil
	case ":?":
		if defined && val != "" {
			return val, next, nil
		}
		return "", next, &UndefinedError{Name: name, Message: arg}
	default:
		return "", next, &MalformedError{Message: fmt.Sprintf("unsupported operator %q in ${%s}", op, inner)}
	}
}

// splitOperator splits "${...}" inner content into name, operator, and
// argument. Operators are checked longest-first so ":-" isn't mistaken for
// "-" after a stray ':'.
func splitOperator(inner string) (name, op, arg string, err error) {
	if inner == "" {
		return "", "", "", &MalformedError{Message: "empty ${} reference"}
	}
	if !isNameStart(inner[0]) {
		return "", "", "", &MalformedError{Message: fmt.Sprintf("invalid reference ${%s}", inner)}
	}
	k := 1
	for k < len(inner) && isNameChar(inner[k]) {
		k++
	}
	name = inner[:k]
	rest := inner[k:]
	if rest == "" {
		return name, "", "", nil
	}

	for _, candidate := range []string{":-", ":+", ":?", "-"} {
		if strings.HasPrefix(rest, candidate) {
			return name, candidate, rest[len(candidate):], nil
		}
	}
	return "", "", "", &MalformedError{Message: fmt.Sprintf("invalid operator in ${%s}", inner)}
}
