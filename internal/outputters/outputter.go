package outputters

import (
	"fmt"
	"io"

	"github.com/dotcommander/agentlint/internal/fix"
	"github.com/dotcommander/agentlint/internal/lint"
	"github.com/dotcommander/agentlint/internal/output"
	"github.com/dotcommander/agentlint/internal/rules"
)

// Formatter renders every kind of command output in one format.
type Formatter interface {
	Format(res *lint.RunResult) error
	FormatFix(res *fix.Result) error
	FormatRules(list []rules.Rule) error
}

// Options selects how output is rendered.
type Options struct {
	Format  string
	Color   bool
	Quiet   bool
	Verbose bool
	Version string
}

// Outputter handles output formatting
type Outputter struct {
	Formatter
}

// NewOutputter creates the formatter for opts.Format.
func NewOutputter(w io.Writer, opts Options) (*Outputter, error) {
	switch opts.Format {
	case "console", "":
		return &Outputter{output.NewConsoleFormatter(w, opts.Color, opts.Quiet, opts.Verbose)}, nil
	case "json":
		return &Outputter{output.NewJSONFormatter(w, true, opts.Version)}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", opts.Format)
	}
}
