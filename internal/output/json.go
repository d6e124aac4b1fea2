package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dotcommander/agentlint/internal/fix"
	"github.com/dotcommander/agentlint/internal/lint"
	"github.com/dotcommander/agentlint/internal/rules"
	"github.com/dotcommander/agentlint/internal/types"
)

// Tool is the name reported in JSON headers.
const Tool = "agentlint"

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	w       io.Writer
	indent  bool
	version string
	now     func() time.Time
}

// NewJSONFormatter creates a new JSONFormatter
func NewJSONFormatter(w io.Writer, indent bool, version string) *JSONFormatter {
	return &JSONFormatter{w: w, indent: indent, version: version, now: time.Now}
}

// JSONReport represents the complete JSON report structure
type JSONReport struct {
	Header          JSONHeader         `json:"header"`
	RunID           string             `json:"runId"`
	State           string             `json:"state"`
	FilesChecked    int                `json:"filesChecked"`
	Summary         types.Summary      `json:"summary"`
	Diagnostics     []types.Diagnostic `json:"diagnostics"`
	BaselineIgnored int                `json:"baselineIgnored,omitempty"`
	DurationMS      int64              `json:"durationMs"`
}

// JSONHeader contains report metadata
type JSONHeader struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// JSONFixReport is the JSON form of a fix run.
type JSONFixReport struct {
	Header  JSONHeader      `json:"header"`
	DryRun  bool            `json:"dryRun"`
	Applied int             `json:"applied"`
	Skipped int             `json:"skipped"`
	Files   []JSONFixResult `json:"files"`
}

// JSONFixResult is one file of a fix run.
type JSONFixResult struct {
	fix.FileResult
	Error string `json:"error,omitempty"`
}

// JSONRulesReport lists the catalog.
type JSONRulesReport struct {
	Header JSONHeader   `json:"header"`
	Rules  []rules.Rule `json:"rules"`
}

func (f *JSONFormatter) header() JSONHeader {
	return JSONHeader{
		Tool:      Tool,
		Version:   f.version,
		Timestamp: f.now().UTC().Format(time.RFC3339),
	}
}

// Format writes the run result as one JSON document.
func (f *JSONFormatter) Format(res *lint.RunResult) error {
	diags := res.Diagnostics
	if diags == nil {
		diags = []types.Diagnostic{}
	}
	return f.write(JSONReport{
		Header:          f.header(),
		RunID:           res.RunID,
		State:           res.State.String(),
		FilesChecked:    res.FilesChecked,
		Summary:         res.Summary,
		Diagnostics:     diags,
		BaselineIgnored: res.BaselineIgnored,
		DurationMS:      res.Duration.Milliseconds(),
	})
}

// FormatFix writes a fix result.
func (f *JSONFormatter) FormatFix(res *fix.Result) error {
	report := JSONFixReport{
		Header:  f.header(),
		DryRun:  res.DryRun,
		Applied: res.AppliedCount(),
		Skipped: res.SkippedCount(),
		Files:   make([]JSONFixResult, 0, len(res.Files)),
	}
	for _, fr := range res.Files {
		out := JSONFixResult{FileResult: fr}
		if fr.Err != nil {
			out.Error = fr.Err.Error()
		}
		report.Files = append(report.Files, out)
	}
	return f.write(report)
}

// FormatRules writes the catalog.
func (f *JSONFormatter) FormatRules(list []rules.Rule) error {
	if list == nil {
		list = []rules.Rule{}
	}
	return f.write(JSONRulesReport{Header: f.header(), Rules: list})
}

func (f *JSONFormatter) write(v any) error {
	var (
		data []byte
		err  error
	)
	if f.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}
	data = append(data, '\n')
	if _, err := f.w.Write(data); err != nil {
		return fmt.Errorf("error writing JSON: %w", err)
	}
	return nil
}
