package lint

import (
	"fmt"
	"path/filepath"

	"github.com/dotcommander/agentlint/internal/baseline"
)

// BaselinePath resolves path against root. An empty path selects the
// default baseline file.
func BaselinePath(root, path string) string {
	if path == "" {
		path = baseline.DefaultFile
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// FilterBaseline removes the diagnostics b already knows about and records
// how many were ignored. The summary is recomputed.
func FilterBaseline(res *RunResult, b *baseline.Baseline) int {
	if b == nil || res == nil {
		return 0
	}
	kept, ignored := b.Filter(res.Diagnostics)
	res.setDiagnostics(kept)
	res.BaselineIgnored += ignored
	return ignored
}

// SaveBaseline writes every diagnostic of res to path as the new baseline.
func SaveBaseline(res *RunResult, path string) (*baseline.Baseline, error) {
	b := baseline.Create(res.Diagnostics)
	if err := b.Save(path); err != nil {
		return nil, fmt.Errorf("failed to save baseline: %w", err)
	}
	return b, nil
}
