package rules

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/imports"
	"github.com/dotcommander/agentlint/internal/logger"
	"github.com/dotcommander/agentlint/internal/textutil"
	"github.com/dotcommander/agentlint/internal/types"
)

// =============================================================================
// Emitter
// =============================================================================

// Emitter collects diagnostics for one file, dropping those whose rule is
// filtered out or below the severity floor.
type Emitter struct {
	registry *Registry
	cfg      *config.ValidationConfig
	floor    types.Severity
	enabled  map[string]bool
	diags    []types.Diagnostic
}

// NewEmitter creates an emitter for one validation call. A nil cfg selects
// the defaults.
func NewEmitter(r *Registry, cfg *config.ValidationConfig) *Emitter {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Emitter{
		registry: r,
		cfg:      cfg,
		floor:    cfg.SeverityFloor(),
		enabled:  make(map[string]bool),
	}
}

// Enabled reports whether diagnostics for id would be kept. Validators use it
// to skip work for rules that are filtered out.
func (e *Emitter) Enabled(id string) bool {
	if on, ok := e.enabled[id]; ok {
		return on
	}
	on := e.registry.Enabled(id, e.cfg)
	e.enabled[id] = on
	return on
}

// Emit records d after filtering. Help and assumption text are filled from
// the catalog when the validator left them empty.
func (e *Emitter) Emit(d types.Diagnostic) {
	rule, ok := e.registry.catalog.Get(d.Rule)
	if !ok {
		logger.L().Warn("dropping diagnostic for unknown rule", zap.String("rule", d.Rule), zap.String("file", d.File))
		return
	}
	if !e.Enabled(d.Rule) || !d.Severity.AtLeast(e.floor) {
		return
	}
	if d.Help == "" {
		d.Help = rule.Help
	}
	if d.Assumption == "" {
		d = d.WithAssumption(e.registry.Assumption(d.Rule, e.cfg))
	}
	if d.Line < 1 {
		d.Line = 1
	}
	if d.Column < 1 {
		d.Column = 1
	}
	e.diags = append(e.diags, d)
}

// Diagnostics returns everything emitted so far in output order.
func (e *Emitter) Diagnostics() []types.Diagnostic {
	out := make([]types.Diagnostic, len(e.diags))
	copy(out, e.diags)
	types.SortDiagnostics(out)
	return out
}

// =============================================================================
// Context
// =============================================================================

// Context is everything a validator sees for one file.
type Context struct {
	*Emitter

	Path    string
	Rel     string
	Root    string
	Kind    discovery.FileKind
	Doc     *frontend.Document
	Config  *config.ValidationConfig
	Imports *imports.Resolver
}

// Diag builds a diagnostic for the current file with the catalog severity.
func (c *Context) Diag(id string, line, col int, format string, args ...any) types.Diagnostic {
	sev := types.SeverityError
	if rule, ok := c.registry.catalog.Get(id); ok {
		sev = rule.Severity
	}
	return types.Diagnostic{
		Rule:     id,
		Severity: sev,
		File:     c.Rel,
		Line:     line,
		Column:   col,
		Message:  fmt.Sprintf(format, args...),
	}
}

// DiagAt builds a diagnostic positioned at a byte offset of the content.
func (c *Context) DiagAt(id string, offset int, format string, args ...any) types.Diagnostic {
	line, col := c.Doc.Position(offset)
	return c.Diag(id, line, col, format, args...)
}

// Report builds and emits a diagnostic in one step.
func (c *Context) Report(id string, line, col int, format string, args ...any) {
	c.Emit(c.Diag(id, line, col, format, args...))
}

// ReportAt builds and emits a diagnostic at a byte offset.
func (c *Context) ReportAt(id string, offset int, format string, args ...any) {
	c.Emit(c.DiagAt(id, offset, format, args...))
}

// Content is the raw file content.
func (c *Context) Content() string { return c.Doc.Content }

// Bounded is the content cut to the configured regex input ceiling.
func (c *Context) Bounded() string {
	return textutil.Bound(c.Doc.Content, c.Config.RegexInputLimit)
}

// BoundedBody is the body after frontmatter cut to the regex ceiling,
// together with its offset in the content.
func (c *Context) BoundedBody() (string, int) {
	return textutil.Bound(c.Doc.Body(), c.Config.RegexInputLimit), c.Doc.BodyOffset()
}

// FieldPos returns the position of a frontmatter key, or the frontmatter
// opening line when the key is absent.
func (c *Context) FieldPos(key string) (int, int) {
	fm := c.Doc.Frontmatter
	if f, ok := fm.Get(key); ok {
		return f.Line, f.Column
	}
	if fm != nil && fm.Present {
		return fm.OpenLine, 1
	}
	return 1, 1
}

// FileName is the base name of the file being validated.
func (c *Context) FileName() string { return filepath.Base(c.Path) }

// Dir is the absolute directory of the file being validated.
func (c *Context) Dir() string { return filepath.Dir(c.Path) }

// Relative renders an absolute path relative to the project root with
// forward slashes, falling back to the input when it lies outside.
func (c *Context) Relative(abs string) string {
	return RelPath(c.Root, abs)
}

// RelPath renders abs relative to root with forward slashes.
func RelPath(root, abs string) string {
	if root == "" {
		return filepath.ToSlash(abs)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
