package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cleanSkill = "---\nname: code-review\ndescription: Use when reviewing code changes\n---\n# Review\n\nRead the diff.\n"
	badSkill   = "---\nname: Code-Review\ndescription: Use when reviewing code\nmodel: Opus\n---\n# Review\n"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// resetFlags puts every flag back to its default so runs do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI with args and returns stdout and the exit code.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	resetFlags(rootCmd)

	code := 0
	original := exitFunc
	exitFunc = func(c int) { code = c }
	t.Cleanup(func() { exitFunc = original })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Logf("stderr: %s", stderr.String())
		return err.Error(), -1
	}
	return stdout.String(), code
}

func TestProjectRoot(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	got, err := projectRoot(nil)
	require.NoError(t, err)
	assert.Equal(t, cwd, got)

	got, err = projectRoot([]string{"sub"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "sub"), got)
}

func TestRootRunsLint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".claude/skills/code-review/SKILL.md", cleanSkill)

	out, code := execute(t, root)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "✓ 1 file passed")
}

func TestUnknownFormat(t *testing.T) {
	out, code := execute(t, "lint", t.TempDir(), "--format", "xml")
	assert.Equal(t, -1, code)
	assert.Contains(t, out, "Format")
}
