package lint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/safeio"
	"github.com/dotcommander/agentlint/internal/types"
)

const badSkill = "---\nname: Code-Review\ndescription: Use when reviewing code\nmodel: Opus\n---\n# Review\n"

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// fixture builds a small project with findings in several files.
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "CLAUDE.md", "# Project\n\nBe helpful.\nNever commit secrets.\n")
	writeFile(t, root, "skills/review/SKILL.md", badSkill)
	writeFile(t, root, ".claude/skills/lint/SKILL.md", "---\nname: lint\ndescription: Reviews code\n---\nBody\n")
	writeFile(t, root, ".claude/agents/reviewer.md", "---\nmodel: opus\n---\nBody\n")
	writeFile(t, root, "docs/guide.md", "# Guide\n\n<example>\ntext\n[gone](./nope.md)\n")
	return root
}

func ruleIDs(diags []types.Diagnostic) []string {
	var out []string
	for _, d := range diags {
		out = append(out, d.Rule)
	}
	return out
}

func countRule(diags []types.Diagnostic, id string) int {
	n := 0
	for _, d := range diags {
		if d.Rule == id {
			n++
		}
	}
	return n
}

// =============================================================================
// Run
// =============================================================================

func TestRunFindsDiagnostics(t *testing.T) {
	root := fixture(t)

	res, err := ValidateProject(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 5, res.FilesChecked)
	assert.NotEmpty(t, res.RunID)

	ids := ruleIDs(res.Diagnostics)
	for _, want := range []string{"CC-MEM-005", "AS-004", "AS-010", "CC-AG-002", "XML-001", "REF-002"} {
		assert.Contains(t, ids, want)
	}
	assert.Equal(t, types.Summarize(res.Diagnostics), res.Summary)
	for _, d := range res.Diagnostics {
		assert.False(t, filepath.IsAbs(d.File), "diagnostic paths are relative: %s", d.File)
	}
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	root := fixture(t)
	for i := range 20 {
		writeFile(t, root, filepath.Join("docs", "extra", string(rune('a'+i))+".md"), "# Extra\n\n<note>\n")
	}

	run := func(workers int) []types.Diagnostic {
		cfg := config.Default()
		cfg.Workers = workers
		res, err := ValidateProject(context.Background(), root, cfg)
		require.NoError(t, err)
		return res.Diagnostics
	}

	serial := run(1)
	require.NotEmpty(t, serial)
	for i := 1; i < len(serial); i++ {
		assert.False(t, types.Less(serial[i], serial[i-1]), "diagnostics out of order at %d", i)
	}
	for range 3 {
		assert.Equal(t, serial, run(8))
	}
}

func TestRunEmptyProject(t *testing.T) {
	res, err := ValidateProject(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Diagnostics)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, 0, res.Summary.Total())
}

func TestRunInvalidRoot(t *testing.T) {
	res, err := ValidateProject(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRoot))
	assert.Equal(t, StateAborted, res.State)

	file := writeFile(t, t.TempDir(), "CLAUDE.md", "# x\n")
	_, err = ValidateProject(context.Background(), file, nil)
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestRunFileLimit(t *testing.T) {
	root := fixture(t)
	cfg := config.Default()
	cfg.MaxFiles = 2

	res, err := ValidateProject(context.Background(), root, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileLimit)
	var limitErr *FileLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 5, limitErr.Count)
	assert.Equal(t, 2, limitErr.Limit)
	assert.Equal(t, StateAborted, res.State)
	assert.Empty(t, res.Diagnostics)

	cfg.Force = true
	res, err = ValidateProject(context.Background(), root, cfg)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ValidateProject(ctx, fixture(t), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateAborted, res.State)
}

func TestRunOversizedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/big.md", "# Big\n"+strings.Repeat("x", config.DefaultMaxFileSize+1-6))
	writeFile(t, root, "docs/small.md", "# Small\n")

	res, err := ValidateProject(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, safeio.RuleTooLarge, d.Rule)
	assert.Equal(t, "docs/big.md", d.File)
	assert.Equal(t, types.SeverityError, d.Severity)
	assert.Contains(t, d.Message, "1048577 bytes")
}

func TestRunSymlinkIsNotFollowed(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, root, "docs/real.md", "# Real\n")
	link := filepath.Join(root, "docs", "link.md")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := ValidateProject(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, safeio.RuleSymlink, res.Diagnostics[0].Rule)
	assert.Equal(t, "docs/link.md", res.Diagnostics[0].File)
}

func TestRunImportCycleReportedOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", "# A\n\nSee @b.md\n")
	writeFile(t, root, "docs/b.md", "# B\n\nSee @a.md\n")

	for _, workers := range []int{1, 4} {
		cfg := config.Default()
		cfg.Workers = workers
		res, err := ValidateProject(context.Background(), root, cfg)
		require.NoError(t, err)
		assert.Equal(t, 1, countRule(res.Diagnostics, "REF-004"), "workers=%d: %v", workers, ruleIDs(res.Diagnostics))
	}
}

func TestRunProjectChecks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "CLAUDE.md", "# Build\n\nRun `npm install` first.\n")
	writeFile(t, root, "AGENTS.md", "# Build\n\nRun `pnpm install` first.\n")

	res, err := ValidateProject(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Contains(t, ruleIDs(res.Diagnostics), "XP-004")

	// Project-level checks need the whole tree.
	res, err = ValidateFiles(context.Background(), root, []string{"CLAUDE.md", "AGENTS.md"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, ruleIDs(res.Diagnostics), "XP-004")
}

func TestRunRespectsDisabledRules(t *testing.T) {
	root := fixture(t)
	cfg := config.Default()
	cfg.Disabled = []string{"CC-MEM-005", "AS-010"}

	res, err := ValidateProject(context.Background(), root, cfg)
	require.NoError(t, err)
	for _, d := range res.Diagnostics {
		assert.NotContains(t, []string{"CC-MEM-005", "AS-010"}, d.Rule)
	}
	assert.Contains(t, ruleIDs(res.Diagnostics), "AS-004")
}

func TestHasFailures(t *testing.T) {
	res := &RunResult{}
	res.setDiagnostics([]types.Diagnostic{{Rule: "X", Severity: types.SeverityWarning}})

	assert.True(t, res.HasFailures(types.SeverityWarning))
	assert.True(t, res.HasFailures(types.SeverityInfo))
	assert.False(t, res.HasFailures(types.SeverityError))
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateDiscovering: "discovering",
		StateDispatched:  "dispatched",
		StateCollecting:  "collecting",
		StateSorted:      "sorted",
		StateDone:        "done",
		StateAborted:     "aborted",
		State(42):        "state(42)",
	}
	for s, want := range tests {
		assert.Equal(t, want, s.String())
	}
}
