// Package types provides the diagnostic model shared across agentlint.
// This package is at the bottom of the dependency graph and should not import
// any other internal packages to avoid circular dependencies.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Severity orders diagnostics. Lower values are more severe.
type Severity int

// Severity levels, most severe first.
const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts a severity name. "suggestion" is accepted as an alias of info.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info", "suggestion":
		return SeverityInfo, nil
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", s)
}

// AtLeast reports whether s is as severe as floor or more.
func (s Severity) AtLeast(floor Severity) bool {
	return s <= floor
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Certainty is the confidence tier of an automatic fix.
// Only CertaintyHigh fixes are eligible for unattended application.
type Certainty int

const (
	CertaintyLow Certainty = iota + 1
	CertaintyMedium
	CertaintyHigh
)

func (c Certainty) String() string {
	switch c {
	case CertaintyHigh:
		return "high"
	case CertaintyMedium:
		return "medium"
	case CertaintyLow:
		return "low"
	default:
		return "none"
	}
}

// ParseCertainty converts a certainty name. "safe" maps to high and "unsafe" to low.
func ParseCertainty(s string) (Certainty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "safe":
		return CertaintyHigh, nil
	case "medium":
		return CertaintyMedium, nil
	case "low", "unsafe", "review":
		return CertaintyLow, nil
	}
	return 0, fmt.Errorf("unknown certainty %q", s)
}

// Meets reports whether c is at or above min.
func (c Certainty) Meets(min Certainty) bool {
	return c >= min
}

func (c Certainty) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Edit replaces the byte range [Start, End) of the original content.
type Edit struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Replacement string `json:"replacement"`
}

// Fix is a set of edits that together resolve one diagnostic.
type Fix struct {
	Description string    `json:"description"`
	Certainty   Certainty `json:"certainty"`
	Edits       []Edit    `json:"edits"`
}

// Replace builds a single-span replacement fix.
func Replace(start, end int, replacement, description string, certainty Certainty) Fix {
	return Fix{
		Description: description,
		Certainty:   certainty,
		Edits:       []Edit{{Start: start, End: end, Replacement: replacement}},
	}
}

// Insert builds a fix that inserts text at pos.
func Insert(pos int, text, description string, certainty Certainty) Fix {
	return Replace(pos, pos, text, description, certainty)
}

// Delete builds a fix that removes [start, end).
func Delete(start, end int, description string, certainty Certainty) Fix {
	return Replace(start, end, "", description, certainty)
}

// Diagnostic is one finding for one location.
type Diagnostic struct {
	Rule       string   `json:"rule"`
	Severity   Severity `json:"severity"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Message    string   `json:"message"`
	Help       string   `json:"help,omitempty"`
	Assumption string   `json:"assumption,omitempty"`
	Fixes      []Fix    `json:"fixes,omitempty"`
}

// WithHelp returns a copy of d carrying help text.
func (d Diagnostic) WithHelp(help string) Diagnostic {
	d.Help = help
	return d
}

// WithFix returns a copy of d carrying an additional fix.
func (d Diagnostic) WithFix(f Fix) Diagnostic {
	fixes := make([]Fix, 0, len(d.Fixes)+1)
	fixes = append(fixes, d.Fixes...)
	d.Fixes = append(fixes, f)
	return d
}

// WithAssumption returns a copy of d annotated with the default it assumed.
func (d Diagnostic) WithAssumption(note string) Diagnostic {
	d.Assumption = note
	return d
}

// HasFix reports whether d carries at least one fix.
func (d Diagnostic) HasFix() bool {
	return len(d.Fixes) > 0
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s [%s] %s", d.File, d.Line, d.Column, d.Severity, d.Rule, d.Message)
}

// Less is the total order used for output: severity, path, line, column,
// then rule ID and message so equal positions still sort stably.
func Less(a, b Diagnostic) bool {
	if a.Severity != b.Severity {
		return a.Severity < b.Severity
	}
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	if a.Rule != b.Rule {
		return a.Rule < b.Rule
	}
	return a.Message < b.Message
}

// SortDiagnostics sorts ds in place into output order.
func SortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		return Less(ds[i], ds[j])
	})
}

// Summary counts diagnostics by severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
	Fixable  int `json:"fixable"`
}

// Total returns the number of diagnostics counted.
func (s Summary) Total() int {
	return s.Errors + s.Warnings + s.Infos
}

// Summarize counts ds.
func Summarize(ds []Diagnostic) Summary {
	var s Summary
	for _, d := range ds {
		switch d.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		default:
			s.Infos++
		}
		if d.HasFix() {
			s.Fixable++
		}
	}
	return s
}
