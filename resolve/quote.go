package resolve

import "strings"

// unquote strips a matching pair of outer single or double quotes from
// raw and, for double-quoted values only, processes backslash escape
// sequences — per the dotenv parser contract (spec.md §6): "the
// Resolution Engine strips matching outer quotes and processes escape
// sequences inside double quotes only". Unquoted or mismatched-quote
// values pass through unchanged.
func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}

	first, last := raw[0], raw[len(raw)-1]
	if first != last || (first != '\'' && first != '"') {
		return raw
	}

	inner := raw[1 : len(raw)-1]
	if first == '\'' {
		return inner
	}
	return unescapeDouble(inner)
}

// unescapeDouble processes the escape sequences recognized inside a
// double-quoted dotenv value: \n, \t, \r, \\, \". A \$ is kept as-is so
// that interpolation later turns it into a literal '$'.
func unescapeDouble(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case '$':
			b.WriteString("\\$")
		default:
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
		}
		i++
	}
	return b.String()
}
