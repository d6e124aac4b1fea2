package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/agentlint/internal/fix"
	"github.com/dotcommander/agentlint/internal/lint"
	"github.com/dotcommander/agentlint/internal/project"
	"github.com/dotcommander/agentlint/internal/types"
)

var (
	fixDryRun       bool
	fixSafeOnly     bool
	fixMinCertainty string
)

var fixCmd = &cobra.Command{
	Use:   "fix [path]",
	Short: "Apply automatic fixes",
	Long: `Fix validates path, then applies the fixes attached to its diagnostics.

Only high-certainty fixes are applied by default. Files changed since they were
validated are left untouched. Overlapping edits are skipped and picked up by the
next run.

Examples:
  agentlint fix --dry-run
  agentlint fix --min-certainty medium
  agentlint fix CLAUDE.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "Show a diff of the changes without writing")
	fixCmd.Flags().BoolVar(&fixSafeOnly, "safe-only", false, "Only apply high-certainty fixes (overrides --min-certainty)")
	fixCmd.Flags().StringVar(&fixMinCertainty, "min-certainty", "high", "Lowest fix certainty to apply (high|medium|low)")
	fixCmd.Flags().BoolVar(&force, "force", false, "Validate even when more files than maxFiles are found")
}

func parseCertainty(s string) (types.Certainty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return types.CertaintyHigh, nil
	case "medium":
		return types.CertaintyMedium, nil
	case "low":
		return types.CertaintyLow, nil
	default:
		return 0, fmt.Errorf("invalid certainty %q: use high, medium or low", s)
	}
}

func runFix(cmd *cobra.Command, args []string) error {
	minCertainty, err := parseCertainty(fixMinCertainty)
	if err != nil {
		return err
	}
	if fixSafeOnly {
		minCertainty = types.CertaintyHigh
	}

	target, err := projectRoot(args)
	if err != nil {
		return err
	}
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("%w: %s", lint.ErrInvalidRoot, target)
	}
	root := target
	var files []string
	if !info.IsDir() {
		if root, err = project.FindRoot(filepath.Dir(target)); err != nil {
			return err
		}
		files = []string{target}
	}

	cfg, err := loadConfig(root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg.Force = force

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := runValidation(ctx, root, files, info.IsDir(), cfg)
	if err != nil {
		return err
	}

	plan := res.FixPlan(minCertainty)
	applied, err := lint.ApplyFixesDetailed(ctx, plan, fix.Options{
		Root:        res.Root,
		DryRun:      fixDryRun,
		MaxFileSize: cfg.MaxFileSize,
		Workers:     cfg.Workers,
	})
	if err != nil {
		return err
	}

	out, err := newOutputter(cmd, cfg.Format)
	if err != nil {
		return err
	}
	if err := out.FormatFix(applied); err != nil {
		return fmt.Errorf("error formatting output: %w", err)
	}
	if applied.Err() != nil {
		exitFunc(1)
	}
	return nil
}
