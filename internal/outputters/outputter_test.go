package outputters

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentlint/internal/lint"
	"github.com/dotcommander/agentlint/internal/output"
)

// =============================================================================
// Test NewOutputter
// =============================================================================

func TestNewOutputter(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"", false},
		{"console", false},
		{"json", false},
		{"markdown", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := NewOutputter(&bytes.Buffer{}, Options{Format: tt.format})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported format")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, out.Formatter)
		})
	}
}

func TestOutputterJSON(t *testing.T) {
	var buf bytes.Buffer
	out, err := NewOutputter(&buf, Options{Format: "json", Version: "1.2.3"})
	require.NoError(t, err)

	require.NoError(t, out.Format(&lint.RunResult{State: lint.StateDone, FilesChecked: 2}))

	var report output.JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "1.2.3", report.Header.Version)
	assert.Equal(t, 2, report.FilesChecked)
	assert.Contains(t, buf.String(), "\n  ")
}

func TestOutputterQuietConsole(t *testing.T) {
	var buf bytes.Buffer
	out, err := NewOutputter(&buf, Options{Quiet: true})
	require.NoError(t, err)

	require.NoError(t, out.Format(&lint.RunResult{State: lint.StateDone, FilesChecked: 1}))
	assert.Empty(t, buf.String())
}
