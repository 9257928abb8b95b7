package expand

import (
	"strings"
	"unicode"
)

// closers start a line that cannot follow a list separator.
var closers = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "ORDER": true, "ON": true,
	"USING": true, "VALUES": true, "SELECT": true, "WHEN": true,
}

// output collects expanded lines and remembers where template lines were
// dropped.
type output struct {
	lines []string
	gaps  map[int]bool
}

func (o *output) add(ss ...string) { o.lines = append(o.lines, ss...) }

// drop records that a line went missing before the next one added.
func (o *output) drop() {
	if o.gaps == nil {
		o.gaps = map[int]bool{}
	}
	o.gaps[len(o.lines)] = true
}

func (o *output) text() string {
	return strings.Join(CleanSeparators(o.lines, o.gaps), "\n")
}

// CleanSeparators removes a trailing "," left dangling by dropped lines.
// gaps[i] marks a dropped line right before lines[i] (i == len(lines) is the
// end of the text). A comma goes only when a gap lies between its line and
// the next non-blank line, and that line closes the list (")", ";" or a
// clause keyword) or is missing. Every other line is kept as is.
func CleanSeparators(lines []string, gaps map[int]bool) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	for i, line := range out {
		trimmed := strings.TrimRightFunc(line, unicode.IsSpace)
		if !strings.HasSuffix(trimmed, ",") {
			continue
		}
		j := nextNonBlank(out, i+1)
		if j < len(out) && !closesList(strings.TrimSpace(out[j])) {
			continue
		}
		if !droppedBetween(gaps, i+1, j) {
			continue
		}
		out[i] = strings.TrimSuffix(trimmed, ",")
	}
	return out
}

func nextNonBlank(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return len(lines)
}

func droppedBetween(gaps map[int]bool, from, to int) bool {
	for i := from; i <= to; i++ {
		if gaps[i] {
			return true
		}
	}
	return false
}

func closesList(line string) bool {
	if strings.HasPrefix(line, ")") || strings.HasPrefix(line, ";") {
		return true
	}
	end := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(line)
	}
	return closers[strings.ToUpper(line[:end])]
}
