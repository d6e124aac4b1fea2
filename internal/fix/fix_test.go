package fix

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentlint/internal/types"
)

func diag(file, rule string, fixes ...types.Fix) types.Diagnostic {
	return types.Diagnostic{Rule: rule, File: file, Line: 1, Column: 1, Fixes: fixes}
}

func edit(start, end int, repl, rule string) PlannedEdit {
	return PlannedEdit{Edit: types.Edit{Start: start, End: end, Replacement: repl}, Rule: rule}
}

func grouped(g int, e PlannedEdit) PlannedEdit {
	e.Group = g
	return e
}

func TestCompute(t *testing.T) {
	diags := []types.Diagnostic{
		diag("b.md", "AS-004", types.Replace(6, 10, "x", "rename", types.CertaintyHigh)),
		diag("a.md", "CC-SK-001", types.Replace(2, 3, "y", "model", types.CertaintyHigh)),
		diag("a.md", "AS-010", types.Insert(20, " Use when", "trigger", types.CertaintyLow)),
		diag("a.md", "AS-004", types.Replace(8, 9, "z", "rename", types.CertaintyMedium)),
		diag("c.md", "XML-001"),
	}

	plan := Compute(diags, types.CertaintyMedium)
	require.Len(t, plan.Files, 2)
	assert.Equal(t, "a.md", plan.Files[0].File)
	assert.Equal(t, "b.md", plan.Files[1].File)
	assert.Equal(t, 3, plan.EditCount())

	edits := plan.Files[0].Edits
	require.Len(t, edits, 2)
	assert.Equal(t, 8, edits[0].Start)
	assert.Equal(t, "AS-004", edits[0].Rule)
	assert.Equal(t, types.CertaintyMedium, edits[0].Certainty)
	assert.Equal(t, 2, edits[1].Start)

	assert.Equal(t, 4, Compute(diags, types.CertaintyLow).EditCount())
	assert.True(t, Compute(diags[4:], types.CertaintyLow).Empty())
}

func TestComputeGroupsEditsPerFix(t *testing.T) {
	multi := types.Fix{
		Description: "rename twice",
		Certainty:   types.CertaintyHigh,
		Edits:       []types.Edit{{Start: 0, End: 1, Replacement: "a"}, {Start: 5, End: 6, Replacement: "b"}},
	}
	diags := []types.Diagnostic{
		diag("a.md", "AS-004", multi),
		diag("a.md", "CC-SK-001", types.Replace(8, 9, "c", "", types.CertaintyHigh)),
		diag("b.md", "AS-004", types.Replace(0, 1, "d", "", types.CertaintyHigh)),
	}
	plan := Compute(diags, types.CertaintyHigh)

	groups := make(map[int]int)
	for _, e := range plan.Files[0].Edits {
		groups[e.Group]++
	}
	assert.Equal(t, map[int]int{1: 2, 2: 1}, groups)
	assert.Equal(t, 1, plan.Files[1].Edits[0].Group)
}

func TestComputeOrdersTiesByRule(t *testing.T) {
	diags := []types.Diagnostic{
		diag("a.md", "CC-SK-001", types.Replace(0, 1, "b", "", types.CertaintyHigh)),
		diag("a.md", "AS-004", types.Replace(0, 1, "a", "", types.CertaintyHigh)),
	}
	edits := Compute(diags, types.CertaintyHigh).Files[0].Edits
	assert.Equal(t, "AS-004", edits[0].Rule)
	assert.Equal(t, "CC-SK-001", edits[1].Rule)
}

func TestApplyEdits(t *testing.T) {
	tests := []struct {
		name    string
		content string
		edits   []PlannedEdit
		want    string
		applied int
		reasons []string
	}{
		{
			name:    "back to front",
			content: "hello world",
			edits:   []PlannedEdit{edit(6, 11, "there", "R2"), edit(0, 5, "HELLO", "R1")},
			want:    "HELLO there",
			applied: 2,
		},
		{
			name:    "overlap keeps first",
			content: "abcdef",
			edits:   []PlannedEdit{edit(2, 5, "X", "R1"), edit(1, 3, "Y", "R2")},
			want:    "abXf",
			applied: 1,
			reasons: []string{SkipOverlap},
		},
		{
			name:    "same position keeps lower rule",
			content: "abc",
			edits:   []PlannedEdit{edit(1, 1, "A", "R1"), edit(1, 1, "B", "R2")},
			want:    "aAbc",
			applied: 1,
			reasons: []string{SkipOverlap},
		},
		{
			name:    "adjacent edits both apply",
			content: "abcd",
			edits:   []PlannedEdit{edit(2, 4, "", "R1"), edit(0, 2, "", "R2")},
			want:    "",
			applied: 2,
		},
		{
			name:    "out of bounds",
			content: "abc",
			edits:   []PlannedEdit{edit(2, 9, "", "R1"), edit(-1, 1, "", "R2")},
			want:    "abc",
			reasons: []string{SkipOutOfBounds, SkipOutOfBounds},
		},
		{
			name:    "inverted",
			content: "abc",
			edits:   []PlannedEdit{edit(2, 1, "", "R1")},
			want:    "abc",
			reasons: []string{SkipInverted},
		},
		{
			name:    "splits a rune",
			content: "héllo",
			edits:   []PlannedEdit{edit(2, 3, "e", "R1")},
			want:    "héllo",
			reasons: []string{SkipSplitsRune},
		},
		{
			name:    "fix with one overlapping edit is skipped whole",
			content: "abcdefghijkl",
			edits: []PlannedEdit{
				grouped(1, edit(10, 12, "XY", "AS-004")),
				grouped(2, edit(10, 11, "Z", "CC-SK-001")),
				grouped(2, edit(0, 1, "A", "CC-SK-001")),
			},
			want:    "abcdefghijXY",
			applied: 1,
			reasons: []string{SkipOverlap, SkipSibling},
		},
		{
			name:    "rejected group frees its span",
			content: "abcdef",
			edits: []PlannedEdit{
				grouped(1, edit(4, 5, "E", "R1")),
				grouped(1, edit(9, 9, "!", "R1")),
				grouped(2, edit(3, 5, "DE", "R2")),
			},
			want:    "abcDEf",
			applied: 1,
			reasons: []string{SkipSibling, SkipOutOfBounds},
		},
		{
			name:    "whole rune",
			content: "héllo",
			edits:   []PlannedEdit{edit(1, 3, "e", "R1")},
			want:    "hello",
			applied: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := []byte(tt.content)
			got, applied, skipped := ApplyEdits(content, tt.edits)
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, tt.content, string(content), "input must not change")
			assert.Equal(t, tt.applied, applied)

			var reasons []string
			for _, s := range skipped {
				reasons = append(reasons, s.Reason)
			}
			assert.Equal(t, tt.reasons, reasons)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestApply(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "skills/x/SKILL.md", "name: Code-Review\n", 0o600)

	plan := Compute([]types.Diagnostic{
		diag("skills/x/SKILL.md", "AS-004", types.Replace(6, 17, "code-review", "kebab-case", types.CertaintyHigh)),
	}, types.CertaintyHigh)
	plan.Pin(map[string]string{"skills/x/SKILL.md": HashContent([]byte("name: Code-Review\n"))})

	res, err := Apply(context.Background(), plan, Options{Root: root})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, 1, res.AppliedCount())
	assert.Contains(t, res.Files[0].Diff, "+name: code-review")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: code-review\n", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(root, "skills/x/.*agentlint-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestApplyDryRun(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "CLAUDE.md", "Be helpful.\n", 0o644)
	plan := Compute([]types.Diagnostic{
		diag("CLAUDE.md", "CC-MEM-005", types.Delete(0, 12, "remove", types.CertaintyLow)),
	}, types.CertaintyLow)

	res, err := Apply(context.Background(), plan, Options{Root: root, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.AppliedCount())
	assert.Contains(t, res.Files[0].Diff, "-Be helpful.")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Be helpful.\n", string(got))
}

func TestApplyFailuresStayPerFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "stale.md", "changed on disk\n", 0o644)
	writeFile(t, root, "bad.md", "abc\n", 0o644)
	good := writeFile(t, root, "good.md", "abc\n", 0o644)

	plan := Compute([]types.Diagnostic{
		diag("stale.md", "AS-004", types.Replace(0, 1, "X", "", types.CertaintyHigh)),
		diag("bad.md", "AS-004", types.Replace(0, 1, "\xff", "", types.CertaintyHigh)),
		diag("good.md", "AS-004", types.Replace(0, 1, "A", "", types.CertaintyHigh)),
		diag("missing.md", "AS-004", types.Replace(0, 1, "A", "", types.CertaintyHigh)),
	}, types.CertaintyHigh)
	plan.Pin(map[string]string{"stale.md": HashContent([]byte("original\n"))})

	res, err := Apply(context.Background(), plan, Options{Root: root})
	require.NoError(t, err)

	byFile := make(map[string]FileResult)
	for _, f := range res.Files {
		byFile[f.File] = f
	}
	assert.ErrorIs(t, byFile["stale.md"].Err, ErrStale)
	assert.ErrorIs(t, byFile["bad.md"].Err, ErrInvalidUTF8)
	assert.Error(t, byFile["missing.md"].Err)
	assert.NoError(t, byFile["good.md"].Err)
	assert.Equal(t, 1, res.AppliedCount())
	assert.Error(t, res.Err())

	got, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "Abc\n", string(got))
}

func TestApplyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan := Compute([]types.Diagnostic{
		diag("a.md", "AS-004", types.Replace(0, 1, "A", "", types.CertaintyHigh)),
	}, types.CertaintyHigh)
	_, err := Apply(ctx, plan, Options{Root: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreview(t *testing.T) {
	got := Preview("x.md", []byte("a\nb\nc\n"), []byte("a\nB\nc\n"))
	assert.Equal(t, "--- a/x.md\n+++ b/x.md\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n", got)

	assert.Empty(t, Preview("x.md", []byte("same"), []byte("same")))
}

func TestPreviewNoTrailingNewline(t *testing.T) {
	got := Preview("x.md", []byte("a"), []byte("b"))
	want := "--- a/x.md\n+++ b/x.md\n@@ -1,1 +1,1 @@\n-a\n\\ No newline at end of file\n+b\n\\ No newline at end of file\n"
	assert.Equal(t, want, got)
}

func TestPreviewSeparateHunks(t *testing.T) {
	var before, after strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&before, "line %d\n", i)
		switch i {
		case 2, 18:
			fmt.Fprintf(&after, "LINE %d\n", i)
		default:
			fmt.Fprintf(&after, "line %d\n", i)
		}
	}
	got := Preview("x.md", []byte(before.String()), []byte(after.String()))
	assert.Equal(t, 2, strings.Count(got, "\n@@ "))
	assert.Contains(t, got, "@@ -1,5 +1,5 @@")
	assert.Contains(t, got, "@@ -15,6 +15,6 @@")
}
