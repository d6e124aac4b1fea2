package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dotcommander/agentlint/internal/baseline"
	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/git"
	"github.com/dotcommander/agentlint/internal/lint"
	"github.com/dotcommander/agentlint/internal/project"
)

var (
	useBaseline    bool
	createBaseline bool
	baselinePath   string
	force          bool
	stagedOnly     bool
	changedOnly    bool
)

var lintCmd = &cobra.Command{
	Use:   "lint [path]",
	Short: "Validate every agent configuration file under path",
	Long: `Lint walks path (default ".") and validates every recognised file.

A file path validates that file alone, reported relative to its project root.
Project-level checks (conflicting instruction files, layer precedence) only
run when a whole directory is linted.

Exit status is 1 when diagnostics at or above --fail-on are reported.

Examples:
  agentlint lint
  agentlint lint --format json --fail-on warning
  agentlint lint --staged
  agentlint lint --create-baseline && agentlint lint --baseline`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLintCommand,
}

func init() {
	rootCmd.AddCommand(lintCmd)
	for _, c := range []*cobra.Command{rootCmd, lintCmd} {
		f := c.Flags()
		f.BoolVar(&useBaseline, "baseline", false, "Ignore diagnostics recorded in the baseline file")
		f.BoolVar(&createBaseline, "create-baseline", false, "Record current diagnostics as the baseline and exit 0")
		f.StringVar(&baselinePath, "baseline-file", baseline.DefaultFile, "Baseline file, relative to the project root")
		f.BoolVar(&force, "force", false, "Validate even when more files than maxFiles are found")
		f.BoolVar(&stagedOnly, "staged", false, "Only validate files staged in git")
		f.BoolVar(&changedOnly, "changed", false, "Only validate files with uncommitted changes in git")
	}
}

func runLintCommand(cmd *cobra.Command, args []string) error {
	if stagedOnly && changedOnly {
		return errors.New("--staged and --changed are mutually exclusive")
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

	whole := info.IsDir()
	if whole && (stagedOnly || changedOnly) {
		if files, err = gitFiles(root); err != nil {
			return err
		}
		whole = false
	}

	res, err := runValidation(cmd.Context(), root, files, whole, cfg)
	if err != nil {
		return err
	}
	return report(cmd, res, cfg)
}

// runValidation lints the whole tree when whole is set, otherwise only files.
func runValidation(ctx context.Context, root string, files []string, whole bool, cfg *config.ValidationConfig) (*lint.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if whole {
		return lint.ValidateProject(ctx, root, cfg)
	}
	return lint.ValidateFiles(ctx, root, files, cfg)
}

func gitFiles(root string) ([]string, error) {
	if !git.IsRepo(root) {
		return nil, fmt.Errorf("%s is not inside a git repository", root)
	}
	if stagedOnly {
		return git.StagedFiles(root)
	}
	return git.ChangedFiles(root)
}

// report applies the baseline, prints res and sets the exit status.
func report(cmd *cobra.Command, res *lint.RunResult, cfg *config.ValidationConfig) error {
	path := lint.BaselinePath(res.Root, baselinePath)

	if createBaseline {
		b, err := lint.SaveBaseline(res, path)
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Baseline created: %s (%d issues)\n", path, len(b.Fingerprints))
		}
		return nil
	}

	if useBaseline {
		b, err := baseline.Load(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to load baseline: %v\n", err)
		}
		lint.FilterBaseline(res, b)
	}

	out, err := newOutputter(cmd, cfg.Format)
	if err != nil {
		return err
	}
	if err := out.Format(res); err != nil {
		return fmt.Errorf("error formatting output: %w", err)
	}

	if res.HasFailures(cfg.FailOnSeverity()) {
		exitFunc(1)
	}
	return nil
}
