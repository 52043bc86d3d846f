// Package format lays out generated source code so that braces sit on their
// own lines and every statement ends its line.
//
// The formatter is purely lexical. It tracks double-quoted strings only to
// avoid splitting braces inside them; escapes, character literals and
// comments are not recognised.
package format

import "strings"

// Indent is one nesting level.
const Indent = "    "

// Format returns src with braces isolated, a line break after each
// semicolon, blank lines removed and 4-space indentation. The result is
// newline-terminated unless it is empty.
func Format(src string) string {
	var lines []string
	for _, line := range strings.Split(splitStatements(splitBraces(src)), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	level := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "}") {
			level = max(level-1, 0)
		}
		b.WriteString(strings.Repeat(Indent, level))
		b.WriteString(line)
		b.WriteByte('\n')
		if strings.HasSuffix(line, "{") {
			level++
		}
	}
	return b.String()
}

// splitBraces puts every brace outside a string literal on its own line.
func splitBraces(src string) string {
	var b strings.Builder
	b.Grow(len(src) + len(src)/8)

	inString := false
	for _, r := range src {
		switch {
		case r == '"':
			inString = !inString
			b.WriteRune(r)
		case r == '{' && !inString:
			b.WriteString("\n{\n")
		case r == '}' && !inString:
			b.WriteString("\n}\n")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitStatements breaks after every semicolon, including ones inside
// string literals and for-loop headers.
func splitStatements(src string) string {
	return strings.ReplaceAll(src, ";", ";\n")
}

// Lines splits formatted output into its lines, dropping the final
// terminator.
func Lines(formatted string) []string {
	if formatted == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(formatted, "\n"), "\n")
}
