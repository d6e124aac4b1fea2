package cue

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestNewValidator compiles every embedded schema
func TestNewValidator(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	for _, name := range []string{"plugin", "mcp"} {
		if _, ok := v.schemas[name]; !ok {
			t.Errorf("Expected schema %q to be loaded", name)
		}
	}
}

func TestDefaultIsShared(t *testing.T) {
	a, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	b, _ := Default()
	if a != b {
		t.Error("Default returned different validators")
	}
}

func TestCheckPlugin(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		data     map[string]any
		wantPath string
	}{
		{
			name: "valid manifest",
			data: map[string]any{"name": "demo", "version": "1.0.0", "keywords": []any{"a", "b"}},
		},
		{
			name: "extra fields allowed",
			data: map[string]any{"name": "demo", "x-custom": true},
		},
		{
			name:     "name is not a string",
			data:     map[string]any{"name": 42},
			wantPath: "name",
		},
		{
			name:     "keywords element type",
			data:     map[string]any{"keywords": []any{"ok", 3}},
			wantPath: "keywords",
		},
		{
			name:     "author is not an object",
			data:     map[string]any{"author": "someone"},
			wantPath: "author",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := v.Check("plugin", DefPlugin, tt.data)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if tt.wantPath == "" {
				if len(violations) != 0 {
					t.Errorf("Expected no violations, got %v", violations)
				}
				return
			}
			if len(violations) == 0 {
				t.Fatal("Expected violations, got none")
			}
			found := false
			for _, viol := range violations {
				if strings.HasPrefix(viol.Path, tt.wantPath) {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected a violation under %q, got %v", tt.wantPath, violations)
			}
		})
	}
}

func TestCheckTool(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatal(err)
	}

	var tool map[string]any
	raw := `{"name": "read", "inputSchema": {"type": "object"}, "annotations": {"readOnlyHint": "yes"}}`
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&tool); err != nil {
		t.Fatal(err)
	}

	violations, err := v.Check("mcp", DefTool, tool)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(violations) == 0 {
		t.Fatal("Expected a violation for readOnlyHint")
	}
	if !strings.Contains(violations[0].String(), "annotations.readOnlyHint") {
		t.Errorf("Unexpected violation: %s", violations[0])
	}
}

func TestCheckUnknownSchema(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Check("nope", DefPlugin, map[string]any{}); err == nil {
		t.Error("Expected error for unknown schema")
	}
	if _, err := v.Check("plugin", "#Missing", map[string]any{}); err == nil {
		t.Error("Expected error for unknown definition")
	}
}

func TestViolationString(t *testing.T) {
	if got := (Violation{Message: "bad"}).String(); got != "bad" {
		t.Errorf("got %q", got)
	}
	if got := (Violation{Path: "a.b", Message: "bad"}).String(); got != "a.b: bad" {
		t.Errorf("got %q", got)
	}
}
