package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		dir    bool
	}{
		{name: "git directory", marker: ".git", dir: true},
		{name: "claude directory", marker: ".claude", dir: true},
		{name: "cursor directory", marker: ".cursor", dir: true},
		{name: "go module", marker: "go.mod"},
		{name: "node package", marker: "package.json"},
		{name: "agentlint config", marker: ".agentlintrc.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			marker := filepath.Join(root, tt.marker)
			if tt.dir {
				require.NoError(t, os.Mkdir(marker, 0o755))
			} else {
				require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))
			}
			sub := filepath.Join(root, "a", "b")
			require.NoError(t, os.MkdirAll(sub, 0o755))

			got, err := FindRoot(sub)
			require.NoError(t, err)
			assert.Equal(t, root, got)
		})
	}
}

func TestFindRootNearestWins(t *testing.T) {
	outer := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(outer, ".git"), 0o755))
	inner := filepath.Join(outer, "plugins", "demo")
	require.NoError(t, os.MkdirAll(filepath.Join(inner, ".claude"), 0o755))

	got, err := FindRoot(filepath.Join(inner, ".claude"))
	require.NoError(t, err)
	assert.Equal(t, inner, got)
}

func TestContains(t *testing.T) {
	root := filepath.FromSlash("/work/project")
	tests := map[string]bool{
		"/work/project":            true,
		"/work/project/CLAUDE.md":  true,
		"/work/project/a/b/c.md":   true,
		"/work/project-other/x.md": false,
		"/work/..project/x.md":     false,
		"/work":                    false,
		"/elsewhere/project/x.md":  false,
	}
	for p, want := range tests {
		assert.Equal(t, want, Contains(root, filepath.FromSlash(p)), p)
	}
}
