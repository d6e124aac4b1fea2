package lint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/fix"
	"github.com/dotcommander/agentlint/internal/project"
	"github.com/dotcommander/agentlint/internal/rules"
	"github.com/dotcommander/agentlint/internal/types"
)

// ValidateProject validates every file under root. On ErrInvalidRoot or a
// *FileLimitError the result is returned in state Aborted along with the
// error.
func ValidateProject(ctx context.Context, root string, cfg *config.ValidationConfig) (*RunResult, error) {
	return NewOrchestrator(cfg, nil).Run(ctx, root)
}

// ValidateFiles validates the given paths, absolute or relative to root.
// Paths that are not a known kind are ignored.
func ValidateFiles(ctx context.Context, root string, paths []string, cfg *config.ValidationConfig) (*RunResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	files := make([]discovery.File, 0, len(paths))
	for _, p := range paths {
		f, ok := classify(absRoot, p)
		if ok {
			files = append(files, f)
		}
	}
	return NewOrchestrator(cfg, nil).RunFiles(ctx, absRoot, files)
}

// ValidateFile runs the per-file pipeline for one path and returns its
// sorted diagnostics. Paths are reported relative to cfg.Root when the file
// is inside it, otherwise relative to the detected project root.
func ValidateFile(ctx context.Context, path string, cfg *config.ValidationConfig) ([]types.Diagnostic, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	root, err := fileRoot(abs, cfg.Root)
	if err != nil {
		return nil, err
	}
	f, ok := classify(root, abs)
	if !ok {
		return []types.Diagnostic{}, nil
	}
	res, err := NewOrchestrator(cfg, nil).RunFiles(ctx, root, []discovery.File{f})
	if err != nil {
		return nil, err
	}
	return res.Diagnostics, nil
}

// ComputeFixes collects the fixes in diags at or above min, grouped per
// file. The plan carries no content hashes; use RunResult.FixPlan to get
// staleness protection.
func ComputeFixes(diags []types.Diagnostic, min types.Certainty) *fix.Plan {
	return fix.Compute(diags, min)
}

// ApplyFixes applies plan under the current directory's project root and
// returns the number of edits applied. Per-file failures are joined into
// the error; the count still includes every file that succeeded.
func ApplyFixes(ctx context.Context, plan *fix.Plan, dryRun bool) (int, error) {
	res, err := ApplyFixesDetailed(ctx, plan, fix.Options{Root: ".", DryRun: dryRun})
	if err != nil {
		return 0, err
	}
	return res.AppliedCount(), res.Err()
}

// ApplyFixesDetailed applies plan and returns the per-file result.
func ApplyFixesDetailed(ctx context.Context, plan *fix.Plan, opts fix.Options) (*fix.Result, error) {
	return fix.Apply(ctx, plan, opts)
}

// ListRules returns the rule catalog sorted by ID.
func ListRules() []rules.Rule {
	return defaultRegistry().Catalog().Rules()
}

func classify(root, p string) (discovery.File, bool) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return discovery.File{}, false
	}
	rel = filepath.ToSlash(rel)
	kind := discovery.DetectKind(rel)
	if kind == discovery.KindUnknown {
		return discovery.File{}, false
	}
	return discovery.File{Path: abs, RelPath: rel, Kind: kind}, true
}

// fileRoot picks the root a single file is reported against.
func fileRoot(abs, configured string) (string, error) {
	if configured != "" {
		root, err := filepath.Abs(configured)
		if err == nil {
			if info, statErr := os.Stat(root); statErr == nil && info.IsDir() && project.Contains(root, abs) {
				return root, nil
			}
		}
	}
	return project.FindRoot(filepath.Dir(abs))
}
