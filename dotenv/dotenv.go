// Package dotenv is the dotenv tokenizer named as an external collaborator in
// spec.md §1/§6. It knows nothing about priority, interpolation, or
// workspaces: it turns file bytes into an ordered list of raw key/value
// pairs, preserving the byte-exact raw value (including surrounding quotes)
// so that the Resolution Engine, not this package, decides how to unquote
// and unescape.
package dotenv

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// RawVar is one KEY=VALUE occurrence as authored, before quote-stripping or
// interpolation.
type RawVar struct {
	Key      string
	RawValue string
	Line     int
}

// ParseError reports a malformed line, per spec.md §6.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dotenv: %d:%d: %s", e.Line, e.Column, e.Message)
}

var keyCutset = " \t"

// Parse reads dotenv-formatted bytes and returns every KEY=VALUE occurrence
// in file order. Duplicate keys are NOT collapsed here — that is the
// Snapshot's job (spec.md §3, "last occurrence wins"), so that callers which
// want the full authored history (e.g. a future diff/lint tool) still can.
func Parse(data []byte) ([]RawVar, error) {
	var out []RawVar
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.Trim(line, keyCutset)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		trimmed = strings.TrimPrefix(trimmed, "export ")
		trimmed = strings.TrimPrefix(trimmed, "export\t")

		eq := strings.IndexByte(trimmed, '=')
		if eq < 0 {
			return out, &ParseError{Line: lineNo, Column: len(trimmed) + 1, Message: "missing '=' in assignment"}
		}

		key := strings.Trim(trimmed[:eq], keyCutset)
		if key == "" {
			return out, &ParseError{Line: lineNo, Column: 1, Message: "empty key"}
		}
		if !isValidKey(key) {
			return out, &ParseError{Line: lineNo, Column: 1, Message: fmt.Sprintf("invalid key %q", key)}
		}

		val := trimmed[eq+1:]
		val, err := stripInlineComment(val)
		if err != nil {
			return out, &ParseError{Line: lineNo, Column: eq + 2, Message: err.Error()}
		}

		out = append(out, RawVar{Key: key, RawValue: strings.TrimSpace(val), Line: lineNo})
	}
	if err := sc.Err(); err != nil {
		return out, &ParseError{Line: lineNo, Message: err.Error()}
	}

	return out, nil
}

func isValidKey(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// stripInlineComment removes a trailing `# comment` that isn't inside a
// quoted string. Quote-stripping itself is left to the Resolution Engine;
// here we only need enough quote-awareness to avoid truncating a value like
// FOO="a # b" at the '#'.
func stripInlineComment(s string) (string, error) {
	var inSingle, inDouble bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '#' && !inSingle && !inDouble:
			if i == 0 || s[i-1] == ' ' || s[i-1] == '\t' {
				return s[:i], nil
			}
		}
	}
	if inSingle {
		return s, fmt.Errorf("unterminated single-quoted value")
	}
	if inDouble {
		return s, fmt.Errorf("unterminated double-quoted value")
	}
	return s, nil
}
