package rules

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/types"
)

var cursorKnownKeys = []string{"description", "globs", "alwaysApply"}

// cursorValidator checks .cursor/rules/*.mdc files and legacy .cursorrules.
type cursorValidator struct{}

func (cursorValidator) Name() string { return "cursor" }

func (cursorValidator) Rules() []string {
	return []string{"CUR-001", "CUR-002", "CUR-003", "CUR-004", "CUR-005", "CUR-006"}
}

func (cursorValidator) Validate(ctx *Context) {
	content := ctx.Content()
	empty := strings.TrimSpace(content) == ""

	if ctx.Kind == discovery.KindCursorLegacy {
		ctx.Report("CUR-006", 1, 1, "Legacy .cursorrules file is deprecated")
		if empty {
			ctx.Report("CUR-001", 1, 1, "Legacy .cursorrules file is empty")
		}
		return
	}

	fm := ctx.Doc.Frontmatter
	if !fm.Present {
		switch {
		case empty:
			ctx.Report("CUR-001", 1, 1, "Cursor rule file is empty")
		case opensFrontmatter(content):
			ctx.Report("CUR-003", 1, 1, "Invalid YAML frontmatter in .mdc file: missing closing ---")
		default:
			ctx.Report("CUR-002", 1, 1, "Cursor rule has no frontmatter")
		}
		return
	}
	if fm.Err != nil {
		ctx.Report("CUR-003", max(fm.Err.Line, fm.OpenLine), 1, "Invalid YAML frontmatter in .mdc file: %s", fm.Err.Message)
		return
	}
	if strings.TrimSpace(fm.Body) == "" {
		ctx.Report("CUR-001", fm.CloseLine+1, 1, "Cursor rule has frontmatter but no content")
	}

	if globs, ok := fm.Get("globs"); ok && ctx.Enabled("CUR-004") {
		for _, pattern := range globPatterns(globs) {
			if msg, ok := validGlob(pattern); !ok {
				ctx.Report("CUR-004", globs.Line, globs.Column, "Invalid glob pattern '%s': %s", pattern, msg)
			}
		}
	}

	checkUnknownKeys(ctx, "CUR-005", cursorKnownKeys, "Cursor rule")
}

func opensFrontmatter(content string) bool {
	first, _, _ := strings.Cut(strings.TrimPrefix(content, "\ufeff"), "\n")
	return strings.TrimRight(first, " \t\r") == "---"
}

// globPatterns accepts a single pattern, a YAML list, or a comma-separated
// string the way Cursor does.
func globPatterns(f frontend.Field) []string {
	var raw []string
	switch f.Kind {
	case frontend.ValueList:
		raw = f.List
	case frontend.ValueString:
		raw = strings.Split(f.Str, ",")
	}
	var out []string
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validGlob(pattern string) (string, bool) {
	if !doublestar.ValidatePattern(pattern) {
		return doublestar.ErrBadPattern.Error(), false
	}
	return "", true
}

// checkUnknownKeys reports top-level frontmatter keys outside known. Each
// finding carries a high-certainty fix removing the key's line.
func checkUnknownKeys(ctx *Context, id string, known []string, what string) {
	if !ctx.Enabled(id) {
		return
	}
	fm := ctx.Doc.Frontmatter
	for _, key := range fm.Keys() {
		if contains(known, key) {
			continue
		}
		f, _ := fm.Get(key)
		d := ctx.Diag(id, f.Line, f.Column, "Unknown frontmatter key '%s' in %s", key, what)
		d = d.WithHelp("Supported keys: " + strings.Join(known, ", "))
		if start, end, ok := fieldLineSpan(ctx.Doc, f); ok {
			d = d.WithFix(types.Delete(start, end, "remove unknown frontmatter key '"+key+"'", types.CertaintyHigh))
		}
		ctx.Emit(d)
	}
}
