package rules

import (
	"sort"
	"strings"

	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/textutil"
)

var kebabName = textutil.MustRegexp(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// isKebab reports whether s is lowercase letters and digits joined by single
// hyphens.
func isKebab(s string) bool {
	return kebabName.MatchString(s)
}

// toKebab lowercases s, maps '_' and ' ' to '-', drops other characters,
// collapses hyphen runs, trims hyphens and truncates to 64 bytes.
func toKebab(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			lastHyphen = false
		case c >= 'A' && c <= 'Z':
			b.WriteRune(c + ('a' - 'A'))
			lastHyphen = false
		case (c == '-' || c == '_' || c == ' ') && !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > 64 {
		out = strings.TrimRight(out[:64], "-")
	}
	return out
}

// caseOnlyMatch returns the entry of valid equal to s ignoring case.
func caseOnlyMatch(s string, valid []string) (string, bool) {
	for _, v := range valid {
		if strings.EqualFold(v, s) {
			return v, true
		}
	}
	return "", false
}

// partialMatch returns the first entry of valid that contains s or is
// contained in it, ignoring case.
func partialMatch(s string, valid []string) (string, bool) {
	ls := strings.ToLower(s)
	if ls == "" {
		return "", false
	}
	for _, v := range valid {
		lv := strings.ToLower(v)
		if strings.Contains(lv, ls) || strings.Contains(ls, lv) {
			return v, true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// fieldLineSpan returns the span of the whole line holding a single-line
// frontmatter field, newline included.
func fieldLineSpan(doc *frontend.Document, f frontend.Field) (int, int, bool) {
	if !f.HasValueSpan() && f.Kind != frontend.ValueNull {
		return 0, 0, false
	}
	start := doc.Lines.LineStart(f.Line)
	end := doc.Lines.LineEnd(f.Line)
	if start < 0 || end < start {
		return 0, 0, false
	}
	return start, end, true
}

// lineCount counts lines the way an editor does: a trailing newline does not
// start a new line and empty text has none.
func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// eachLine calls fn with every line of s, its 0-based index and byte offset.
// The newline and a trailing '\r' are not part of the line.
func eachLine(s string, fn func(i, off int, line string)) {
	off := 0
	for i := 0; off <= len(s); i++ {
		nl := strings.IndexByte(s[off:], '\n')
		end := len(s)
		if nl >= 0 {
			end = off + nl
		}
		fn(i, off, strings.TrimSuffix(s[off:end], "\r"))
		if nl < 0 {
			return
		}
		off = end + 1
		if off == len(s) {
			return
		}
	}
}

// headingLevel returns the ATX heading level of a line, or 0.
func headingLevel(line string) int {
	t := strings.TrimLeft(line, " ")
	n := 0
	for n < len(t) && t[n] == '#' {
		n++
	}
	if n == 0 || n > 6 {
		return 0
	}
	if n < len(t) && t[n] != ' ' && t[n] != '\t' {
		return 0
	}
	return n
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
