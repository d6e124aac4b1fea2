package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/agentlint/internal/lint"
	"github.com/dotcommander/agentlint/internal/outputters"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-validate whenever files change",
	Long: `Watch validates path, then validates it again each time files under it change.

Changes are batched until the tree has been quiet for the debounce window. A
result is printed only when the diagnostics differ from the previous run.
Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", lint.DefaultDebounce, "Quiet period before re-validating")
	watchCmd.Flags().BoolVar(&force, "force", false, "Validate even when more files than maxFiles are found")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg.Force = force

	out, err := newOutputter(cmd, cfg.Format)
	if err != nil {
		return err
	}

	w, err := lint.NewWatcher(root, cfg, printWatchResult(cmd, out))
	if err != nil {
		return err
	}
	w.SetDebounce(watchDebounce)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", root)
	}
	return w.Run(ctx)
}

func printWatchResult(cmd *cobra.Command, out *outputters.Outputter) lint.ResultHandler {
	return func(res *lint.RunResult, err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "\n[%s]\n", time.Now().Format(time.TimeOnly))
		}
		if err := out.Format(res); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
}
