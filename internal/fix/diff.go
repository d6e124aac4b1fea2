package fix

import (
	"bytes"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const (
	contextLines = 3
	// maxLCSCells bounds the line-diff table; larger changes are shown as one
	// replaced block.
	maxLCSCells = 1 << 20
)

type lineOp struct {
	kind byte // ' ', '-' or '+'
	text string
}

// Preview renders the change from before to after as a unified diff with
// a/ and b/ prefixed names. It returns "" when nothing changed.
func Preview(name string, before, after []byte) string {
	if bytes.Equal(before, after) {
		return ""
	}
	ops := diffLines(splitLines(string(before)), splitLines(string(after)))
	fd := &diff.FileDiff{
		OrigName: "a/" + name,
		NewName:  "b/" + name,
		Hunks:    buildHunks(ops),
	}
	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return ""
	}
	return string(out)
}

// splitLines splits s after each newline. The last line keeps no terminator
// when s does not end with one.
func splitLines(s string) []string {
	var lines []string
	for s != "" {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

func diffLines(a, b []string) []lineOp {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	ops := make([]lineOp, 0, len(a)+len(b))
	for _, l := range a[:prefix] {
		ops = append(ops, lineOp{' ', l})
	}
	ops = append(ops, diffMiddle(a[prefix:len(a)-suffix], b[prefix:len(b)-suffix])...)
	for _, l := range a[len(a)-suffix:] {
		ops = append(ops, lineOp{' ', l})
	}
	return ops
}

// diffMiddle is a longest-common-subsequence line diff. Deletions come
// before insertions at each change.
func diffMiddle(a, b []string) []lineOp {
	n, m := len(a), len(b)
	var ops []lineOp
	if n*m > maxLCSCells {
		for _, l := range a {
			ops = append(ops, lineOp{'-', l})
		}
		for _, l := range b {
			ops = append(ops, lineOp{'+', l})
		}
		return ops
	}

	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int32, n+1)
	for i := range lcs {
		lcs[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] >= lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, lineOp{' ', a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, lineOp{'-', a[i]})
			i++
		default:
			ops = append(ops, lineOp{'+', b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, lineOp{'-', a[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, lineOp{'+', b[j]})
	}
	return ops
}

// buildHunks groups changed lines with their surrounding context. Changes
// closer than twice the context share a hunk.
func buildHunks(ops []lineOp) []*diff.Hunk {
	var hunks []*diff.Hunk
	for start := 0; start < len(ops); {
		first := nextChange(ops, start)
		if first < 0 {
			break
		}
		last := first
		for {
			next := nextChange(ops, last+1)
			if next < 0 || next-last > 2*contextLines {
				break
			}
			last = next
		}
		from := max(first-contextLines, 0)
		to := min(last+contextLines+1, len(ops))
		hunks = append(hunks, makeHunk(ops, from, to))
		start = to
	}
	return hunks
}

func nextChange(ops []lineOp, from int) int {
	for i := from; i < len(ops); i++ {
		if ops[i].kind != ' ' {
			return i
		}
	}
	return -1
}

func makeHunk(ops []lineOp, from, to int) *diff.Hunk {
	var origBefore, newBefore int32
	for _, op := range ops[:from] {
		if op.kind != '+' {
			origBefore++
		}
		if op.kind != '-' {
			newBefore++
		}
	}

	h := &diff.Hunk{}
	var body bytes.Buffer
	for _, op := range ops[from:to] {
		if op.kind != '+' {
			h.OrigLines++
		}
		if op.kind != '-' {
			h.NewLines++
		}
		body.WriteByte(op.kind)
		body.WriteString(op.text)
		if op.kind == '-' && !strings.HasSuffix(op.text, "\n") {
			body.WriteByte('\n')
			h.OrigNoNewlineAt = int32(body.Len())
		}
	}
	h.Body = body.Bytes()

	h.OrigStartLine = origBefore + 1
	if h.OrigLines == 0 {
		h.OrigStartLine = origBefore
	}
	h.NewStartLine = newBefore + 1
	if h.NewLines == 0 {
		h.NewStartLine = newBefore
	}
	return h
}
