package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dotcommander/agentlint/internal/lint"
	"github.com/dotcommander/agentlint/internal/rules"
)

var rulesCategory string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rule catalog",
	Long: `The rules command lists every rule agentlint knows, sorted by ID.

Use --category to show one family (skills, hooks, memory, mcp, ...) and
--format json for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().StringVar(&rulesCategory, "category", "", "Only list rules in this category")
}

// filterRules keeps the rules in category. An empty category keeps all.
func filterRules(list []rules.Rule, category string) []rules.Rule {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return list
	}
	out := make([]rules.Rule, 0, len(list))
	for _, r := range list {
		if strings.EqualFold(r.Category, category) {
			out = append(out, r)
		}
	}
	return out
}

func runRules(cmd *cobra.Command, args []string) error {
	list := filterRules(lint.ListRules(), rulesCategory)
	if len(list) == 0 && rulesCategory != "" {
		return fmt.Errorf("no rules in category %q", rulesCategory)
	}

	out, err := newOutputter(cmd, viper.GetString("format"))
	if err != nil {
		return err
	}
	return out.FormatRules(list)
}
