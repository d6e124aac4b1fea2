package frontend

import (
	"regexp"
	"slices"
	"strings"

	"github.com/dotcommander/agentlint/internal/textutil"
)

// Heading is one ATX heading in the outline.
type Heading struct {
	Level  int
	Text   string
	Line   int
	Offset int
}

// TagIssueKind classifies a tag-balance failure.
type TagIssueKind int

const (
	TagUnclosed TagIssueKind = iota
	TagUnmatchedClosing
	TagMismatch
)

// TagIssue is a tag-balance failure with the exact span of the offending tag.
type TagIssue struct {
	Kind     TagIssueKind
	Name     string
	Expected string
	Start    int
	End      int
	Line     int
	Column   int
}

// Import is an @path directive.
type Import struct {
	Path   string
	Start  int
	End    int
	Line   int
	Column int
}

// Link is a [text](target) Markdown link.
type Link struct {
	Text   string
	Target string
	Start  int
	End    int
	Line   int
	Column int
}

// CodeBlock is a fenced code block. EndLine is 0 when the fence is never closed.
type CodeBlock struct {
	Lang      string
	StartLine int
	EndLine   int
	Offset    int
}

// Markdown is the structural view of a Markdown body.
type Markdown struct {
	Headings   []Heading
	Tags       []TagIssue
	Imports    []Import
	Links      []Link
	CodeBlocks []CodeBlock
}

// UnclosedFence returns the first code block whose fence never closes.
func (m *Markdown) UnclosedFence() (CodeBlock, bool) {
	for _, cb := range m.CodeBlocks {
		if cb.EndLine == 0 {
			return cb, true
		}
	}
	return CodeBlock{}, false
}

// voidElements are never pushed onto the balance stack.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var (
	tagPattern     = regexp.MustCompile(`^<(/?)([A-Za-z_][A-Za-z0-9_-]*)((?:\s+[A-Za-z_:][-A-Za-z0-9_:.]*(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'<>/=]+))?)*)\s*(/?)>`)
	headingPattern = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?[ \t]*$`)
)

// maxTagLen bounds how far a single tag match may look ahead.
const maxTagLen = 512

type openTag struct {
	name  string
	start int
	end   int
}

type scanner struct {
	content string
	idx     *textutil.LineIndex
	out     *Markdown
	stack   []openTag
	links   linkIndex
}

// linkIndex holds, for every offset k of the current line, the next position
// at or after k of: ']' (close), ')' or whitespace (stop), a non-space byte
// (solid) and '"' (quote). Link matching is O(1) per '[' with it.
type linkIndex struct {
	close, stop, solid, quote []int
}

func (li *linkIndex) build(line string) {
	n := len(line)
	li.close = resize(li.close, n+1)
	li.stop = resize(li.stop, n+1)
	li.solid = resize(li.solid, n+1)
	li.quote = resize(li.quote, n+1)

	closeAt, stopAt, solidAt, quoteAt := -1, n, n, -1
	li.close[n], li.stop[n], li.solid[n], li.quote[n] = closeAt, stopAt, solidAt, quoteAt
	for k := n - 1; k >= 0; k-- {
		c := line[k]
		switch {
		case c == ']':
			closeAt = k
		case c == '"':
			quoteAt = k
		}
		if c == ')' || isSpace(c) {
			stopAt = k
		}
		if !isSpace(c) {
			solidAt = k
		}
		li.close[k], li.stop[k], li.solid[k], li.quote[k] = closeAt, stopAt, solidAt, quoteAt
	}
}

func resize(buf []int, n int) []int {
	if cap(buf) < n {
		return make([]int, n)
	}
	return buf[:n]
}

// match reports the link [text](target "title") starting at line[i] == '['.
// textEnd and the target bounds are offsets into line.
func (li *linkIndex) match(line string, i int) (end, textEnd, targetStart, targetEnd int, ok bool) {
	n := len(line)
	j := li.close[i+1]
	if j < 0 || j+1 >= n || line[j+1] != '(' {
		return 0, 0, 0, 0, false
	}
	t0 := j + 2
	t1 := li.stop[t0]
	if t1 == t0 || t1 == n {
		return 0, 0, 0, 0, false
	}
	if line[t1] == ')' {
		return t1 + 1, j, t0, t1, true
	}
	w := li.solid[t1]
	if w == n || line[w] != '"' {
		return 0, 0, 0, 0, false
	}
	q := li.quote[w+1]
	if q < 0 || q+1 >= n || line[q+1] != ')' {
		return 0, 0, 0, 0, false
	}
	return q + 2, j, t0, t1, true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}

// ScanMarkdown walks content from offset from to the end in a single pass.
// Positions in the result are absolute within content; idx must index content.
// Fenced code blocks and inline code spans are skipped for tags, imports and links.
func ScanMarkdown(content string, from int, idx *textutil.LineIndex) *Markdown {
	if idx == nil {
		idx = textutil.NewLineIndex(content)
	}
	s := &scanner{content: content, idx: idx, out: &Markdown{}}

	var fenceChar byte
	var fenceLen int
	pos := from
	for pos < len(content) {
		end := strings.IndexByte(content[pos:], '\n')
		next := len(content)
		if end < 0 {
			end = len(content)
		} else {
			end += pos
			next = end + 1
		}
		line := strings.TrimSuffix(content[pos:end], "\r")

		if ch, n, info, ok := fenceOpen(line); ok {
			if fenceLen == 0 {
				fenceChar, fenceLen = ch, n
				ln, _ := idx.Position(pos)
				s.out.CodeBlocks = append(s.out.CodeBlocks, CodeBlock{Lang: info, StartLine: ln, Offset: pos})
				pos = next
				continue
			}
			if ch == fenceChar && n >= fenceLen && strings.TrimSpace(info) == "" {
				ln, _ := idx.Position(pos)
				s.out.CodeBlocks[len(s.out.CodeBlocks)-1].EndLine = ln
				fenceChar, fenceLen = 0, 0
				pos = next
				continue
			}
		}
		if fenceLen > 0 {
			pos = next
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			ln, _ := idx.Position(pos)
			text := strings.TrimSpace(strings.TrimRight(m[2], "#"))
			s.out.Headings = append(s.out.Headings, Heading{Level: len(m[1]), Text: text, Line: ln, Offset: pos})
		}

		s.scanInline(pos, line)
		pos = next
	}

	for _, t := range s.stack {
		s.addTag(TagIssue{Kind: TagUnclosed, Name: t.name, Start: t.start, End: t.end})
	}
	slices.SortStableFunc(s.out.Tags, func(a, b TagIssue) int { return a.Start - b.Start })
	return s.out
}

func fenceOpen(line string) (byte, int, string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return 0, 0, "", false
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return 0, 0, "", false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}
	if n < 3 {
		return 0, 0, "", false
	}
	info := strings.TrimSpace(trimmed[n:])
	if ch == '`' && strings.ContainsRune(info, '`') {
		return 0, 0, "", false
	}
	return ch, n, info, true
}

func (s *scanner) scanInline(base int, line string) {
	hasLinks := strings.Contains(line, "](")
	if hasLinks {
		s.links.build(line)
	}
	lastGT := strings.LastIndexByte(line, '>')
	for i := 0; i < len(line); {
		switch line[i] {
		case '`':
			n := 0
			for i+n < len(line) && line[i+n] == '`' {
				n++
			}
			if closeAt := findBacktickRun(line, i+n, n); closeAt >= 0 {
				i = closeAt + n
			} else {
				i += n
			}
			continue
		case '<':
			if i > lastGT {
				break
			}
			window := line[i:min(len(line), i+maxTagLen)]
			if m := tagPattern.FindStringSubmatchIndex(window); m != nil {
				s.handleTag(base+i, base+i+m[1], line[i+m[2]:i+m[3]] == "/", line[i+m[4]:i+m[5]], line[i+m[8]:i+m[9]] == "/")
				i += m[1]
				continue
			}
		case '@':
			if consumed := s.scanImport(base, line, i); consumed > 0 {
				i += consumed
				continue
			}
		case '[':
			if !hasLinks {
				break
			}
			if end, textEnd, t0, t1, ok := s.links.match(line, i); ok && (i == 0 || line[i-1] != '!') {
				start := base + i
				ln, col := s.idx.Position(start)
				s.out.Links = append(s.out.Links, Link{
					Text:   line[i+1 : textEnd],
					Target: line[t0:t1],
					Start:  start,
					End:    base + end,
					Line:   ln,
					Column: col,
				})
				i = end
				continue
			}
		}
		i++
	}
}

func findBacktickRun(line string, from, n int) int {
	for i := from; i < len(line); {
		if line[i] != '`' {
			i++
			continue
		}
		j := i
		for j < len(line) && line[j] == '`' {
			j++
		}
		if j-i == n {
			return i
		}
		i = j
	}
	return -1
}

func (s *scanner) handleTag(start, end int, closing bool, name string, selfClosing bool) {
	if selfClosing || voidElements[strings.ToLower(name)] {
		return
	}
	if !closing {
		s.stack = append(s.stack, openTag{name: name, start: start, end: end})
		return
	}
	if len(s.stack) == 0 {
		s.addTag(TagIssue{Kind: TagUnmatchedClosing, Name: name, Start: start, End: end})
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if top.name != name {
		s.addTag(TagIssue{Kind: TagMismatch, Name: name, Expected: top.name, Start: start, End: end})
	}
}

func (s *scanner) addTag(t TagIssue) {
	t.Line, t.Column = s.idx.Position(t.Start)
	s.out.Tags = append(s.out.Tags, t)
}

// scanImport records an @path token at line[at] and returns the bytes consumed.
func (s *scanner) scanImport(base int, line string, at int) int {
	if at > 0 {
		prev := line[at-1]
		if isAlnum(prev) || prev == '_' || prev == '-' || prev == '.' {
			return 0
		}
	}
	end := at + 1
	for end < len(line) && isImportPathChar(line[end]) {
		end++
	}
	path := strings.TrimRight(line[at+1:end], ".,;:")
	if path == "" || !isProbableImportPath(path) {
		return end - at
	}
	start := base + at
	ln, col := s.idx.Position(start)
	s.out.Imports = append(s.out.Imports, Import{
		Path:   path,
		Start:  start,
		End:    start + 1 + len(path),
		Line:   ln,
		Column: col,
	})
	return end - at
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isImportPathChar(c byte) bool {
	if isAlnum(c) {
		return true
	}
	switch c {
	case '_', '-', '.', '/', '\\', ':', '~':
		return true
	}
	return false
}

func isProbableImportPath(path string) bool {
	if strings.HasPrefix(path, "~") || strings.ContainsAny(path, `/\.:`) {
		return true
	}
	for i := 0; i < len(path); i++ {
		if path[i] >= 'A' && path[i] <= 'Z' {
			return true
		}
	}
	return false
}
