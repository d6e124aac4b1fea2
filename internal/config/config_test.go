package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentlint/internal/types"
)

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(viper.New(), root)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "info", cfg.Severity)
	assert.Equal(t, DefaultTarget, cfg.Target)
	assert.Equal(t, DefaultMaxFiles, cfg.MaxFiles)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, DefaultRegexInputLimit, cfg.RegexInputLimit)
	assert.Equal(t, DefaultImportDepth, cfg.ImportDepth)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "error", cfg.FailOn)
	assert.False(t, cfg.Force)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromYAMLFile(t *testing.T) {
	root := t.TempDir()
	content := `severity: warning
target: claude-code
disabled:
  - CC-HK-010
  - FOO-001
exclude:
  - vendor/
  - "**/*.draft.md"
categories:
  hooks: false
toolVersions:
  claude-code: "1.0.40"
maxFiles: 50
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".agentlintrc.yaml"), []byte(content), 0o644))

	cfg, err := Load(viper.New(), root)
	require.NoError(t, err)

	assert.Equal(t, "warning", cfg.Severity)
	assert.Equal(t, types.SeverityWarning, cfg.SeverityFloor())
	assert.Equal(t, "claude-code", cfg.Target)
	assert.Equal(t, []string{"CC-HK-010", "FOO-001"}, cfg.Disabled)
	assert.Equal(t, []string{"vendor/", "**/*.draft.md"}, cfg.Exclude)
	assert.False(t, cfg.CategoryEnabled("hooks"))
	assert.True(t, cfg.CategoryEnabled("skills"))
	assert.Equal(t, 50, cfg.MaxFiles)

	v, ok := cfg.ToolVersion("claude-code")
	assert.True(t, ok)
	assert.Equal(t, "v1.0.40", v)

	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "FOO-001")
}

func TestLoadFromJSONFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".agentlintrc.json"),
		[]byte(`{"format": "json", "workers": 3}`), 0o644))

	cfg, err := Load(viper.New(), root)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, 3, cfg.EffectiveWorkers())
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("AGENTLINT_TARGET", "cursor")
	t.Setenv("AGENTLINT_MAXFILES", "7")

	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "cursor", cfg.Target)
	assert.Equal(t, 7, cfg.MaxFiles)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad severity", "severity: loud\n", "Severity"},
		{"bad target", "target: emacs\n", "Target"},
		{"negative max files", "maxFiles: -1\n", "MaxFiles"},
		{"bad exclude glob", "exclude:\n  - \"[oops\"\n", "invalid glob"},
		{"bad version", "toolVersions:\n  cursor: banana\n", "invalid version"},
		{"zero import depth", "importDepth: 0\n", "ImportDepth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(root, ".agentlintrc.yml"), []byte(tt.content), 0o644))

			_, err := Load(viper.New(), root)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.2.3", "v1.2.3"},
		{"v2", "v2.0.0"},
		{"1.4", "v1.4.0"},
		{" 0.9.1 ", "v0.9.1"},
		{"", ""},
		{"latest", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeVersion(tt.in))
		})
	}
}

func TestTargetsTool(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.TargetsTool("cursor"))
	assert.True(t, cfg.TargetsTool("claude-code"))

	cfg.Target = "claude-code"
	assert.True(t, cfg.TargetsTool("claude-code"))
	assert.False(t, cfg.TargetsTool("cursor"))

	cfg.Tools = []string{"cursor"}
	assert.True(t, cfg.TargetsTool("cursor"))
	assert.False(t, cfg.TargetsTool("copilot"))
}

func TestRuleDisabled(t *testing.T) {
	cfg := Default()
	cfg.Disabled = []string{"as-004"}
	assert.True(t, cfg.RuleDisabled("AS-004"))
	assert.False(t, cfg.RuleDisabled("AS-005"))
}

func TestSaveConfigRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Target = "copilot"
	cfg.Disabled = []string{"XML-001"}

	path := filepath.Join(root, ".agentlintrc.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(viper.New(), root)
	require.NoError(t, err)
	assert.Equal(t, "copilot", loaded.Target)
	assert.Equal(t, []string{"XML-001"}, loaded.Disabled)
}

func TestToolVersionAcceptsUnderscoreKeys(t *testing.T) {
	cfg := Default()
	cfg.ToolVersions = map[string]string{"claude_code": "2.1"}
	cfg.SpecRevisions = map[string]string{"mcp-protocol": "2025-06-18"}

	v, ok := cfg.ToolVersion("claude-code")
	assert.True(t, ok)
	assert.Equal(t, "v2.1.0", v)

	r, ok := cfg.SpecRevision("mcp_protocol")
	assert.True(t, ok)
	assert.Equal(t, "2025-06-18", r)

	_, ok = cfg.ToolVersion("cursor")
	assert.False(t, ok)

	require.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.Warnings)
}
