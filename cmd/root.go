package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/logger"
	"github.com/dotcommander/agentlint/internal/output"
	"github.com/dotcommander/agentlint/internal/outputters"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	quiet     bool
	verbose   bool
	logLevel  string
	logFormat string
	strict    bool
)

// exitFunc is swapped in tests.
var exitFunc = os.Exit

var rootCmd = &cobra.Command{
	Use:   "agentlint [path]",
	Short: "Validate AI agent configuration files",
	Long: `agentlint validates the configuration artifacts of AI coding agents: skills,
subagents, hooks, memory files (CLAUDE.md, AGENTS.md), plugin manifests,
MCP configs, Cursor rules and Copilot instructions.

Running agentlint without a subcommand is the same as "agentlint lint".`,
	Version:       Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(logLevel, logFormat); err != nil {
			return err
		}
		if strict {
			viper.Set("failOn", "warning")
		}
		return nil
	},
	RunE: runLintCommand,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitFunc(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("format", "f", "console", "Output format (console|json)")
	flags.String("target", config.DefaultTarget, "Target tool (generic|claude-code|cursor|copilot|codex)")
	flags.StringSlice("disable", nil, "Rule IDs to disable (repeatable)")
	flags.String("fail-on", "error", "Exit 1 when diagnostics at or above this level exist (error|warning|info)")
	flags.Int("workers", 0, "Worker pool size (0 uses GOMAXPROCS)")
	flags.StringSlice("exclude", nil, "Glob patterns to exclude (repeatable)")
	flags.Bool("no-ignore", false, "Do not read .gitignore or .agentlintignore files")
	flags.Int("max-files", config.DefaultMaxFiles, "Abort when more files are found (0 disables the limit)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Show help text, assumptions and fixes")
	flags.BoolVar(&strict, "strict", false, "Treat warnings as failures (same as --fail-on warning)")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
	flags.StringVar(&logFormat, "log-format", "console", "Log format (console|json)")

	bind := map[string]string{
		"format":        "format",
		"target":        "target",
		"disabled":      "disable",
		"failOn":        "fail-on",
		"workers":       "workers",
		"exclude":       "exclude",
		"noIgnoreFiles": "no-ignore",
		"maxFiles":      "max-files",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.SetVersionTemplate("agentlint {{.Version}}\n")
}

// projectRoot resolves the path argument to an absolute directory.
func projectRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

// loadConfig reads the configuration at root and reports its warnings.
func loadConfig(root string, stderr io.Writer) (*config.ValidationConfig, error) {
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if !quiet {
		for _, w := range cfg.Warnings {
			fmt.Fprintf(stderr, "Warning: %s\n", w)
		}
	}
	return cfg, nil
}

func newOutputter(cmd *cobra.Command, format string) (*outputters.Outputter, error) {
	out := cmd.OutOrStdout()
	color := false
	if f, ok := out.(*os.File); ok {
		color = output.ColorEnabled(f)
	}
	return outputters.NewOutputter(out, outputters.Options{
		Format:  format,
		Color:   color,
		Quiet:   quiet,
		Verbose: verbose,
		Version: Version,
	})
}
