package importer

import (
	"strings"
	"unicode"
)

// anchor identifies the single boilerplate line after which generated code
// is spliced. A line matches when, with all whitespace removed, it contains
// every fragment.
type anchor struct {
	fragments []string
}

func newAnchor(fragments ...string) anchor {
	a := anchor{fragments: make([]string, len(fragments))}
	for i, f := range fragments {
		a.fragments[i] = stripSpace(f)
	}
	return a
}

var (
	systemAnchor = newAnchor("transform.Scale=math.lerp(initialScale,maxScale,t);}")
	driverAnchor = newAnchor("private void CargarPrefabs()", "Resources.LoadAll<GameObject>")
)

func (a anchor) matches(line string) bool {
	line = stripSpace(line)
	for _, f := range a.fragments {
		if !strings.Contains(line, f) {
			return false
		}
	}
	return true
}

// splice inserts content on its own lines right after the first matching
// line. ok is false when no line matches.
func (a anchor) splice(text, content string) (string, bool) {
	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		if !a.matches(line) {
			continue
		}

		var b strings.Builder
		b.Grow(len(text) + len(content) + 2)
		for _, l := range lines[:i+1] {
			b.WriteString(l)
		}
		if !strings.HasSuffix(line, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(content, "\n"))
		b.WriteString("\n")
		for _, l := range lines[i+1:] {
			b.WriteString(l)
		}
		return b.String(), true
	}
	return text, false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
