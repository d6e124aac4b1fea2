package baseline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dotcommander/agentlint/internal/types"
)

func TestCreate(t *testing.T) {
	diags := []types.Diagnostic{
		{
			File:     "skills/review/SKILL.md",
			Rule:     "AS-004",
			Message:  "Invalid name 'Code-Review': must be lowercase letters, digits and hyphens",
			Severity: types.SeverityError,
		},
		{
			File:     "CLAUDE.md",
			Rule:     "CC-MEM-005",
			Message:  "Generic instruction 'Be helpful' adds no project context",
			Severity: types.SeverityWarning,
		},
		// Same finding on another line collapses.
		{
			File:     "skills/review/SKILL.md",
			Rule:     "AS-004",
			Line:     9,
			Message:  "Invalid name 'Code-Review': must be lowercase letters, digits and hyphens",
			Severity: types.SeverityError,
		},
	}

	b := Create(diags)

	if b.Version != "1.0" {
		t.Errorf("Expected version 1.0, got %s", b.Version)
	}
	if b.CreatedAt == "" {
		t.Error("Expected CreatedAt to be set")
	}
	if b.Len() != 2 {
		t.Errorf("Expected 2 unique fingerprints, got %d", b.Len())
	}
	if len(b.index) != 2 {
		t.Errorf("Expected index with 2 entries, got %d", len(b.index))
	}
}

func TestFilter(t *testing.T) {
	known := types.Diagnostic{File: "AGENTS.md", Rule: "AGM-002", Message: "No markdown headings found"}
	fresh := types.Diagnostic{File: "AGENTS.md", Rule: "AGM-001", Message: "Unclosed code block"}
	otherFile := types.Diagnostic{File: "sub/AGENTS.md", Rule: "AGM-002", Message: "No markdown headings found"}

	b := Create([]types.Diagnostic{known})
	kept, ignored := b.Filter([]types.Diagnostic{known, fresh, otherFile})

	if ignored != 1 {
		t.Errorf("Expected 1 ignored, got %d", ignored)
	}
	if len(kept) != 2 || kept[0].Rule != "AGM-001" || kept[1].File != "sub/AGENTS.md" {
		t.Errorf("Unexpected kept diagnostics: %v", kept)
	}

	var none *Baseline
	kept, ignored = none.Filter([]types.Diagnostic{known})
	if ignored != 0 || len(kept) != 1 {
		t.Error("Nil baseline must keep everything")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	diag := types.Diagnostic{File: "CLAUDE.md", Rule: "REF-002", Message: "Link target not found: ./docs/setup.md"}

	original := Create([]types.Diagnostic{diag})
	if err := original.Save(path); err != nil {
		t.Fatalf("Failed to save baseline: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Baseline file not created: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load baseline: %v", err)
	}
	if loaded.Version != original.Version {
		t.Errorf("Version mismatch: expected %s, got %s", original.Version, loaded.Version)
	}
	if len(loaded.index) != len(original.Fingerprints) {
		t.Errorf("Index not rebuilt: expected %d entries, got %d", len(original.Fingerprints), len(loaded.index))
	}
	if !loaded.IsKnown(diag) {
		t.Error("Expected loaded baseline to recognize original diagnostic")
	}
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			input:    "Name 'test-agent' doesn't match filename 'other-name'",
			expected: "Name '*' doesn't match filename '*'",
		},
		{
			input:    "Skill body is 612 lines, keep it under 500",
			expected: "Skill body is N lines, keep it under N",
		},
		{
			input:    `Missing required field "name"`,
			expected: `Missing required field "*"`,
		},
		{
			input:    "Invalid glob pattern '[abc': syntax error",
			expected: "Invalid glob pattern '*': syntax error",
		},
		{
			input:    "Extra   whitespace   here",
			expected: "Extra whitespace here",
		},
	}

	for _, tt := range tests {
		if got := normalizeMessage(tt.input); got != tt.expected {
			t.Errorf("normalizeMessage(%q)\nExpected: %q\nGot:      %q", tt.input, tt.expected, got)
		}
	}
}

func TestFingerprintStability(t *testing.T) {
	d := types.Diagnostic{
		File:    "agents/reviewer.md",
		Rule:    "CC-AG-005",
		Message: "Skill 'lint' not found",
		Line:    10,
	}
	fp1 := Fingerprint(d)

	d.Line = 20
	if Fingerprint(d) != fp1 {
		t.Error("Fingerprint changed when only the line changed")
	}

	d.Message = "Skill 'format' not found"
	if Fingerprint(d) != fp1 {
		t.Error("Fingerprint changed when only a quoted value changed")
	}

	d.Rule = "CC-AG-001"
	if Fingerprint(d) == fp1 {
		t.Error("Fingerprint didn't change when the rule changed")
	}
}

func TestLoadMissingFile(t *testing.T) {
	b, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	if err != nil {
		t.Fatalf("Expected no error for a missing baseline, got %v", err)
	}
	if b != nil {
		t.Error("Expected nil baseline for a missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte("invalid json"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error when loading invalid JSON")
	}
}
