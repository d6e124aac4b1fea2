package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dotcommander/agentlint/internal/config"
)

var initOverwrite bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default .agentlintrc.yaml",
	Long: `Init writes a .agentlintrc.yaml with the default settings to path (the
current directory when omitted). The --target flag sets the target tool.

An existing file is left alone unless --overwrite is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initOverwrite, "overwrite", false, "Replace an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	path := filepath.Join(root, config.ConfigFiles[0])
	if _, err := os.Stat(path); err == nil && !initOverwrite {
		return fmt.Errorf("%s already exists (use --overwrite to replace it)", path)
	}

	cfg := config.Default()
	if t := viper.GetString("target"); t != "" {
		cfg.Target = t
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
