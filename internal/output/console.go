// Package output renders run results, fix results and the rule catalog for
// the terminal or as JSON.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/dotcommander/agentlint/internal/fix"
	"github.com/dotcommander/agentlint/internal/lint"
	"github.com/dotcommander/agentlint/internal/rules"
	"github.com/dotcommander/agentlint/internal/types"
)

// ColorEnabled reports whether f is a terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type palette struct {
	err, warn, info, ok, dim, bold lipgloss.Style
}

func newPalette(colorize bool) palette {
	if !colorize {
		plain := lipgloss.NewStyle()
		return palette{plain, plain, plain, plain, plain, plain}
	}
	return palette{
		err:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		warn: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		info: lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		ok:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		dim:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		bold: lipgloss.NewStyle().Bold(true),
	}
}

func (p palette) severity(s types.Severity) lipgloss.Style {
	switch s {
	case types.SeverityError:
		return p.err
	case types.SeverityWarning:
		return p.warn
	default:
		return p.info
	}
}

func severityIcon(s types.Severity) string {
	switch s {
	case types.SeverityError:
		return "✘"
	case types.SeverityWarning:
		return "⚠"
	default:
		return "ℹ"
	}
}

// ConsoleFormatter formats output for console display
type ConsoleFormatter struct {
	w       io.Writer
	quiet   bool
	verbose bool
	p       palette
}

// NewConsoleFormatter creates a new ConsoleFormatter
func NewConsoleFormatter(w io.Writer, colorize, quiet, verbose bool) *ConsoleFormatter {
	return &ConsoleFormatter{w: w, quiet: quiet, verbose: verbose, p: newPalette(colorize)}
}

// Format prints the diagnostics grouped by file, then a summary line.
func (f *ConsoleFormatter) Format(res *lint.RunResult) error {
	if f.quiet {
		return nil
	}

	var current string
	for _, d := range res.Diagnostics {
		if d.File != current {
			if current != "" {
				fmt.Fprintln(f.w)
			}
			current = d.File
			fmt.Fprintln(f.w, f.p.bold.Render(d.File))
		}
		f.printDiagnostic(d)
	}

	if len(res.Diagnostics) > 0 {
		fmt.Fprintln(f.w)
	}
	f.printSummary(res)
	return nil
}

func (f *ConsoleFormatter) printDiagnostic(d types.Diagnostic) {
	style := f.p.severity(d.Severity)
	loc := fmt.Sprintf("%d:%d", d.Line, d.Column)
	fmt.Fprintf(f.w, "  %s %s %s %s\n",
		style.Render(severityIcon(d.Severity)),
		f.p.dim.Render(loc),
		d.Message,
		f.p.dim.Render("["+d.Rule+"]"))

	if !f.verbose {
		return
	}
	if d.Help != "" {
		fmt.Fprintf(f.w, "      help: %s\n", d.Help)
	}
	if d.Assumption != "" {
		fmt.Fprintf(f.w, "      assumes: %s\n", d.Assumption)
	}
	for _, fx := range d.Fixes {
		fmt.Fprintf(f.w, "      fix (%s): %s\n", fx.Certainty, fx.Description)
	}
}

func (f *ConsoleFormatter) printSummary(res *lint.RunResult) {
	s := res.Summary
	elapsed := res.Duration.Round(time.Millisecond)

	if s.Total() == 0 {
		fmt.Fprintf(f.w, "%s %s\n",
			f.p.ok.Render(fmt.Sprintf("✓ %s passed", plural(res.FilesChecked, "file"))),
			f.p.dim.Render("("+elapsed.String()+")"))
	} else {
		parts := []string{
			f.p.err.Render(plural(s.Errors, "error")),
			f.p.warn.Render(plural(s.Warnings, "warning")),
			f.p.info.Render(fmt.Sprintf("%d info", s.Infos)),
		}
		line := strings.Join(parts, ", ") + " in " + plural(res.FilesChecked, "file")
		if s.Fixable > 0 {
			line += fmt.Sprintf(" (%d fixable)", s.Fixable)
		}
		fmt.Fprintf(f.w, "%s %s\n", line, f.p.dim.Render("("+elapsed.String()+")"))
	}

	if res.BaselineIgnored > 0 {
		fmt.Fprintf(f.w, "%s\n", f.p.dim.Render(plural(res.BaselineIgnored, "baseline issue")+" ignored"))
	}
}

// FormatFix prints per-file fix results. Diffs are shown for dry runs and in
// verbose mode.
func (f *ConsoleFormatter) FormatFix(res *fix.Result) error {
	if f.quiet {
		return nil
	}
	for _, fr := range res.Files {
		if fr.Err != nil {
			fmt.Fprintf(f.w, "%s %s: %v\n", f.p.err.Render("✘"), fr.File, fr.Err)
			continue
		}
		if fr.Applied > 0 {
			verb := "fixed"
			if res.DryRun {
				verb = "would fix"
			}
			fmt.Fprintf(f.w, "%s %s: %s %s\n", f.p.ok.Render("✓"), fr.File, verb, plural(fr.Applied, "issue"))
		}
		for _, sk := range fr.Skipped {
			fmt.Fprintf(f.w, "  %s %s %s: %s\n",
				f.p.warn.Render("⚠"), f.p.dim.Render("["+sk.Rule+"]"), sk.Description, sk.Reason)
		}
		if fr.Diff != "" && (res.DryRun || f.verbose) {
			fmt.Fprint(f.w, f.renderDiff(fr.Diff))
		}
	}

	applied, skipped := res.AppliedCount(), res.SkippedCount()
	if applied == 0 && skipped == 0 && res.Err() == nil {
		fmt.Fprintln(f.w, "No fixes to apply")
		return nil
	}
	summary := fmt.Sprintf("%s applied, %d skipped", plural(applied, "fix"), skipped)
	if res.DryRun {
		summary = fmt.Sprintf("%s would be applied, %d skipped (dry run)", plural(applied, "fix"), skipped)
	}
	fmt.Fprintf(f.w, "\n%s\n", f.p.bold.Render(summary))
	return nil
}

func (f *ConsoleFormatter) renderDiff(diff string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			text = f.p.bold.Render(text)
		case strings.HasPrefix(line, "@@"):
			text = f.p.dim.Render(text)
		case strings.HasPrefix(line, "+"):
			text = f.p.ok.Render(text)
		case strings.HasPrefix(line, "-"):
			text = f.p.err.Render(text)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatRules prints the catalog as a table.
func (f *ConsoleFormatter) FormatRules(list []rules.Rule) error {
	t := table.New().
		Headers("ID", "SEVERITY", "CATEGORY", "FIX", "NAME").
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.p.dim).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Inherit(f.p.bold)
			}
			if col == 1 && row >= 0 && row < len(list) {
				return s.Inherit(f.p.severity(list[row].Severity))
			}
			return s
		})
	for _, r := range list {
		category := r.Category
		if category == "" {
			category = "-"
		}
		t.Row(r.ID, r.Severity.String(), category, r.Fix, r.Name)
	}
	fmt.Fprintln(f.w, t.Render())
	fmt.Fprintln(f.w, f.p.dim.Render(plural(len(list), "rule")))
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	if strings.HasSuffix(word, "x") {
		return fmt.Sprintf("%d %ses", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
