package rules

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/imports"
	"github.com/dotcommander/agentlint/internal/types"
)

// =============================================================================
// Helpers
// =============================================================================

// writeFile creates rel under root with content.
func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

// checkFile runs the default registry on rel under root.
func checkFile(t *testing.T, root, rel string, cfg *config.ValidationConfig) []types.Diagnostic {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	require.NoError(t, err)
	resolver, err := imports.NewResolver(root, 5, imports.NewCache(1<<20))
	require.NoError(t, err)
	return NewRegistry(nil).Check(Input{
		Path:     abs,
		Rel:      rel,
		Root:     root,
		Kind:     discovery.DetectKind(rel),
		Content:  string(content),
		Config:   cfg,
		Resolver: resolver,
	})
}

// check writes content to a fresh project and validates it.
func check(t *testing.T, rel, content string, cfg *config.ValidationConfig) []types.Diagnostic {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, rel, content)
	return checkFile(t, root, rel, cfg)
}

func ruleIDs(diags []types.Diagnostic) []string {
	var out []string
	for _, d := range diags {
		out = append(out, d.Rule)
	}
	return out
}

func find(diags []types.Diagnostic, id string) (types.Diagnostic, bool) {
	for _, d := range diags {
		if d.Rule == id {
			return d, true
		}
	}
	return types.Diagnostic{}, false
}

// applyFixes applies every fix at or above min, last edit first.
func applyFixes(content string, diags []types.Diagnostic, min types.Certainty) string {
	var edits []types.Edit
	for _, d := range diags {
		for _, f := range d.Fixes {
			if f.Certainty.Meets(min) {
				edits = append(edits, f.Edits...)
			}
		}
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].Start > edits[j].Start })
	for _, e := range edits {
		content = content[:e.Start] + e.Replacement + content[e.End:]
	}
	return content
}

// =============================================================================
// Catalog
// =============================================================================

func TestDefaultCatalogLoads(t *testing.T) {
	c := DefaultCatalog()
	require.Greater(t, c.Len(), 50)

	r, ok := c.Get("CC-HK-001")
	require.True(t, ok)
	assert.Equal(t, "hooks", r.Category)
	assert.Equal(t, types.SeverityError, r.Severity)
	assert.Equal(t, FixSafe, r.Fix)

	rules := c.Rules()
	assert.True(t, sort.SliceIsSorted(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID }))
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "- {name: x, category: skills, severity: error}"},
		{"duplicate", "- {id: AS-001, category: skills, severity: error}\n- {id: AS-001, category: skills, severity: error}"},
		{"bad severity", "- {id: AS-001, category: skills, severity: fatal}"},
		{"category mismatch", "- {id: AS-001, category: hooks, severity: error}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestCategoryFor(t *testing.T) {
	tests := map[string]string{
		"CC-SK-001":          "skills",
		"AS-004":             "skills",
		"CC-MEM-005":         "memory",
		"XP-003":             "cross_platform",
		"REF-001":            "imports",
		"parse::frontmatter": "",
	}
	for id, want := range tests {
		assert.Equal(t, want, CategoryFor(id), id)
	}
	assert.True(t, IsEngineRule("engine::panic"))
	assert.False(t, IsEngineRule("MCP-001"))
}

// =============================================================================
// Registry
// =============================================================================

const badSkill = "---\nname: Code-Review\ndescription: Use when reviewing code\nmodel: Opus\n---\n# Review\n"

func TestCheckFilterPipeline(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(*config.ValidationConfig)
		present []string
		absent  []string
	}{
		{
			name:    "defaults",
			present: []string{"AS-004", "CC-SK-001"},
		},
		{
			name:    "disabled rule",
			cfg:     func(c *config.ValidationConfig) { c.Disabled = []string{"as-004"} },
			present: []string{"CC-SK-001"},
			absent:  []string{"AS-004"},
		},
		{
			name:   "category off",
			cfg:    func(c *config.ValidationConfig) { c.Categories = map[string]bool{"skills": false} },
			absent: []string{"AS-004", "CC-SK-001"},
		},
		{
			name:    "other target drops tool rules",
			cfg:     func(c *config.ValidationConfig) { c.Target = "cursor" },
			present: []string{"AS-004"},
			absent:  []string{"CC-SK-001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			ids := ruleIDs(check(t, "skills/review/SKILL.md", badSkill, cfg))
			for _, id := range tt.present {
				assert.Contains(t, ids, id)
			}
			for _, id := range tt.absent {
				assert.NotContains(t, ids, id)
			}
		})
	}
}

func TestCheckSeverityFloor(t *testing.T) {
	cfg := config.Default()
	cfg.Severity = "error"
	content := "---\nname: review\ndescription: Reviews code\n---\n# Review\n"
	diags := check(t, "skills/review/SKILL.md", content, cfg)
	assert.NotContains(t, ruleIDs(diags), "AS-010")
	for _, d := range diags {
		assert.Equal(t, types.SeverityError, d.Severity)
	}
}

func TestCheckInvalidJSONReportsOnce(t *testing.T) {
	diags := check(t, ".claude/settings.json", `{"hooks": {`, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, RuleParseJSON, diags[0].Rule)
}

func TestCheckSkillOwnsFrontmatterErrors(t *testing.T) {
	content := "---\nname: [unclosed\n---\n# Body\n"
	ids := ruleIDs(check(t, "skills/x/SKILL.md", content, nil))
	assert.Contains(t, ids, "AS-016")
	assert.NotContains(t, ids, RuleParseFrontmatter)
}

func TestCheckGenericFrontmatterError(t *testing.T) {
	content := "---\ntitle: [unclosed\n---\n# Body\n"
	ids := ruleIDs(check(t, "docs/guide.md", content, nil))
	assert.Contains(t, ids, RuleParseFrontmatter)
}

type panicValidator struct{}

func (panicValidator) Name() string    { return "panics" }
func (panicValidator) Rules() []string { return []string{"AS-002"} }
func (panicValidator) Validate(ctx *Context) {
	ctx.Report("AS-002", 1, 1, "before the panic")
	panic("boom")
}

func TestCheckRecoversValidatorPanic(t *testing.T) {
	r := &Registry{
		catalog: DefaultCatalog(),
		byKind:  map[discovery.FileKind][]Validator{discovery.KindSkill: {panicValidator{}}},
	}
	diags := r.Check(Input{Path: "/p/SKILL.md", Rel: "SKILL.md", Kind: discovery.KindSkill, Content: "# x\n"})
	ids := ruleIDs(diags)
	assert.Contains(t, ids, "AS-002")
	assert.Contains(t, ids, RulePanic)

	d, _ := find(diags, RulePanic)
	assert.Contains(t, d.Message, "panics")
	assert.Contains(t, d.Message, "boom")
}

const untimedHook = `{
  "hooks": {
    "Stop": [
      {"hooks": [{"type": "command", "command": "echo done"}]}
    ]
  }
}
`

func TestAssumptionAndVersionGate(t *testing.T) {
	diags := check(t, ".claude/settings.json", untimedHook, nil)
	d, ok := find(diags, "CC-HK-010")
	require.True(t, ok)
	assert.NotEmpty(t, d.Assumption)

	pinned := config.Default()
	pinned.ToolVersions = map[string]string{"claude-code": "1.2.0"}
	d, ok = find(check(t, ".claude/settings.json", untimedHook, pinned), "CC-HK-010")
	require.True(t, ok)
	assert.Empty(t, d.Assumption)

	old := config.Default()
	old.ToolVersions = map[string]string{"claude_code": "0.9.0"}
	_, ok = find(check(t, ".claude/settings.json", untimedHook, old), "CC-HK-010")
	assert.False(t, ok)
}

func TestDiagnosticsAreSorted(t *testing.T) {
	diags := check(t, "skills/review/SKILL.md", badSkill, nil)
	sorted := make([]types.Diagnostic, len(diags))
	copy(sorted, diags)
	types.SortDiagnostics(sorted)
	assert.Equal(t, sorted, diags)
}
