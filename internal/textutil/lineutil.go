// Package textutil holds line and pattern helpers shared by the parsers and rules.
package textutil

import (
	"sort"
	"strings"
)

// LineIndex maps byte offsets to 1-based line/column positions.
// Built once per document, queried by binary search.
type LineIndex struct {
	starts []int
	size   int
}

// NewLineIndex records the start offset of every line in content.
func NewLineIndex(content string) *LineIndex {
	starts := make([]int, 1, strings.Count(content, "\n")+1)
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts, size: len(content)}
}

// Position returns the 1-based line and byte column of offset.
// Offsets past the end clamp to the end of the content.
func (idx *LineIndex) Position(offset int) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > idx.size {
		offset = idx.size
	}
	i := sort.Search(len(idx.starts), func(i int) bool { return idx.starts[i] > offset }) - 1
	return i + 1, offset - idx.starts[i] + 1
}

// LineStart returns the byte offset at which the 1-based line begins, or -1.
func (idx *LineIndex) LineStart(line int) int {
	if line < 1 || line > len(idx.starts) {
		return -1
	}
	return idx.starts[line-1]
}

// LineEnd returns the offset just past the line's newline (or end of content).
func (idx *LineIndex) LineEnd(line int) int {
	if line < 1 || line > len(idx.starts) {
		return -1
	}
	if line == len(idx.starts) {
		return idx.size
	}
	return idx.starts[line]
}

// Lines returns the number of lines. An empty document has one line.
func (idx *LineIndex) Lines() int {
	return len(idx.starts)
}
