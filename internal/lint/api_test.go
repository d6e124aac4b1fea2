package lint

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentlint/internal/baseline"
	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/fix"
	"github.com/dotcommander/agentlint/internal/types"
)

// =============================================================================
// ValidateFile
// =============================================================================

func TestValidateFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example\n")
	path := writeFile(t, root, "skills/review/SKILL.md", badSkill)

	diags, err := ValidateFile(context.Background(), path, nil)
	require.NoError(t, err)
	ids := ruleIDs(diags)
	assert.Contains(t, ids, "AS-004")
	for _, d := range diags {
		assert.Equal(t, "skills/review/SKILL.md", d.File)
	}
}

func TestValidateFileUsesConfiguredRoot(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "nested/CLAUDE.md", "# Project\n\nBe helpful.\n")
	cfg := config.Default()
	cfg.Root = root

	diags, err := ValidateFile(context.Background(), path, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.Equal(t, "nested/CLAUDE.md", diags[0].File)
}

func TestValidateFileUnknownKind(t *testing.T) {
	path := writeFile(t, t.TempDir(), "main.go", "package main\n")
	diags, err := ValidateFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.NotNil(t, diags)
	assert.Empty(t, diags)
}

func TestValidateFilesIgnoresUnknownPaths(t *testing.T) {
	root := fixture(t)
	writeFile(t, root, "main.go", "package main\n")

	res, err := ValidateFiles(context.Background(), root, []string{"CLAUDE.md", "main.go"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesChecked)
	for _, d := range res.Diagnostics {
		assert.Equal(t, "CLAUDE.md", d.File)
	}
}

// =============================================================================
// Fixes
// =============================================================================

func TestFixFlow(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "skills/review/SKILL.md", badSkill)
	ctx := context.Background()

	res, err := ValidateProject(ctx, root, nil)
	require.NoError(t, err)
	plan := res.FixPlan(types.CertaintyHigh)
	require.False(t, plan.Empty())
	require.Len(t, plan.Files, 1)
	assert.NotEmpty(t, plan.Files[0].Hash)

	applied, err := ApplyFixesDetailed(ctx, plan, fix.Options{Root: root})
	require.NoError(t, err)
	require.NoError(t, applied.Err())
	assert.Equal(t, plan.EditCount(), applied.AppliedCount())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: code-review\n")
	assert.Contains(t, string(data), "model: opus\n")

	again, err := ValidateProject(ctx, root, nil)
	require.NoError(t, err)
	assert.NotContains(t, ruleIDs(again.Diagnostics), "AS-004")
	assert.True(t, again.FixPlan(types.CertaintyHigh).Empty(), "high-certainty fixes are idempotent")
}

func TestFixRejectsStaleFiles(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "skills/review/SKILL.md", badSkill)
	ctx := context.Background()

	res, err := ValidateProject(ctx, root, nil)
	require.NoError(t, err)
	plan := res.FixPlan(types.CertaintyHigh)
	require.False(t, plan.Empty())

	edited := badSkill + "\nMore text.\n"
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	applied, err := ApplyFixesDetailed(ctx, plan, fix.Options{Root: root})
	require.NoError(t, err)
	require.Len(t, applied.Files, 1)
	assert.ErrorIs(t, applied.Files[0].Err, fix.ErrStale)
	assert.Equal(t, 0, applied.AppliedCount())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, edited, string(data))
}

func TestComputeFixesRespectsCertainty(t *testing.T) {
	diags := []types.Diagnostic{
		types.Diagnostic{Rule: "A", File: "x.md", Line: 1, Column: 1}.
			WithFix(types.Replace(0, 1, "y", "replace", types.CertaintyLow)),
		types.Diagnostic{Rule: "B", File: "x.md", Line: 1, Column: 1}.
			WithFix(types.Replace(2, 3, "z", "replace", types.CertaintyHigh)),
	}
	assert.Equal(t, 1, ComputeFixes(diags, types.CertaintyHigh).EditCount())
	assert.Equal(t, 2, ComputeFixes(diags, types.CertaintyLow).EditCount())
}

// =============================================================================
// Rules and baseline
// =============================================================================

func TestListRules(t *testing.T) {
	list := ListRules()
	require.NotEmpty(t, list)
	assert.True(t, sort.SliceIsSorted(list, func(i, j int) bool { return list[i].ID < list[j].ID }))

	seen := map[string]bool{}
	for _, r := range list {
		assert.False(t, seen[r.ID], "duplicate rule %s", r.ID)
		seen[r.ID] = true
	}
	assert.True(t, seen["AS-004"])
	assert.True(t, seen["XP-004"])
}

func TestBaselineRoundTrip(t *testing.T) {
	root := fixture(t)
	ctx := context.Background()

	first, err := ValidateProject(ctx, root, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first.Diagnostics)

	path := BaselinePath(root, "")
	assert.Equal(t, filepath.Join(root, baseline.DefaultFile), path)
	_, err = SaveBaseline(first, path)
	require.NoError(t, err)

	writeFile(t, root, "docs/new.md", "# New\n\n<fresh>\n")
	second, err := ValidateProject(ctx, root, nil)
	require.NoError(t, err)

	b, err := baseline.Load(path)
	require.NoError(t, err)
	ignored := FilterBaseline(second, b)

	assert.Equal(t, len(first.Diagnostics), ignored)
	assert.Equal(t, ignored, second.BaselineIgnored)
	require.NotEmpty(t, second.Diagnostics)
	for _, d := range second.Diagnostics {
		assert.Equal(t, "docs/new.md", d.File)
	}
	assert.Equal(t, types.Summarize(second.Diagnostics), second.Summary)
}

func TestFilterBaselineNil(t *testing.T) {
	res := &RunResult{}
	res.setDiagnostics([]types.Diagnostic{{Rule: "X", File: "a.md"}})
	assert.Equal(t, 0, FilterBaseline(res, nil))
	assert.Len(t, res.Diagnostics, 1)
}

func TestBaselinePath(t *testing.T) {
	assert.Equal(t, filepath.Join("root", "custom.json"), BaselinePath("root", "custom.json"))
	abs := filepath.Join(t.TempDir(), "b.json")
	assert.Equal(t, abs, BaselinePath("root", abs))
}
