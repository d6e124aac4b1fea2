package rules

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/types"
)

// ValidPermissionModes are the accepted permissionMode values for agents.
var ValidPermissionModes = []string{"default", "acceptEdits", "dontAsk", "bypassPermissions", "plan"}

const maxProjectSearchDepth = 10

// agentValidator checks subagent definitions under agents/.
type agentValidator struct{}

func (agentValidator) Name() string { return "agent" }

func (agentValidator) Rules() []string {
	return []string{"CC-AG-001", "CC-AG-002", "CC-AG-003", "CC-AG-004", "CC-AG-005", "CC-AG-006", "CC-AG-007"}
}

func (agentValidator) Validate(ctx *Context) {
	fm := ctx.Doc.Frontmatter
	if !fm.Present {
		ctx.Report("CC-AG-007", 1, 1, "agent file must start with a --- delimited frontmatter block")
		return
	}
	if fm.Err != nil {
		ctx.Report("CC-AG-007", max(fm.Err.Line, fm.OpenLine), 1, "invalid YAML in agent frontmatter: %s", fm.Err.Message)
		return
	}

	if name, ok := scalarField(ctx, "name"); !ok || strings.TrimSpace(name.Str) == "" {
		line, col := ctx.FieldPos("name")
		ctx.Report("CC-AG-001", line, col, "agent frontmatter is missing required 'name'")
	}
	if desc, ok := scalarField(ctx, "description"); !ok || strings.TrimSpace(desc.Str) == "" {
		line, col := ctx.FieldPos("description")
		ctx.Report("CC-AG-002", line, col, "agent frontmatter is missing required 'description'")
	}

	if model, ok := scalarField(ctx, "model"); ok {
		checkEnumField(ctx, "CC-AG-003", model, "model", ValidModels, "sonnet")
	}
	if mode, ok := scalarField(ctx, "permissionMode"); ok {
		checkEnumField(ctx, "CC-AG-004", mode, "permissionMode", ValidPermissionModes, "default")
	}

	if f, ok := fm.Get("skills"); ok && ctx.Enabled("CC-AG-005") {
		checkAgentSkills(ctx, f)
	}

	tools, hasTools := fm.Get("tools")
	denied, hasDenied := fm.Get("disallowedTools")
	if hasTools && hasDenied {
		allowed := make(map[string]bool)
		for _, t := range splitTools(tools) {
			allowed[t] = true
		}
		var both []string
		for _, t := range splitTools(denied) {
			if allowed[t] {
				both = append(both, t)
			}
		}
		if len(both) > 0 {
			ctx.Report("CC-AG-006", denied.Line, denied.Column,
				"tools listed in both tools and disallowedTools: %s", strings.Join(sortedUnique(both), ", "))
		}
	}
}

// checkEnumField reports a value outside valid. A case-only mismatch gets a
// high-certainty fix; anything else is reset to fallback with low certainty.
func checkEnumField(ctx *Context, id string, f frontend.Field, key string, valid []string, fallback string) {
	if contains(valid, f.Str) {
		return
	}
	d := ctx.Diag(id, f.Line, f.Column, "invalid %s '%s', expected one of: %s", key, f.Str, strings.Join(valid, ", "))
	if f.HasValueSpan() {
		if fixed, ok := caseOnlyMatch(f.Str, valid); ok {
			d = d.WithFix(types.Replace(f.ValueStart, f.ValueEnd, fixed, "set "+key+" to '"+fixed+"'", types.CertaintyHigh))
		} else {
			d = d.WithFix(types.Replace(f.ValueStart, f.ValueEnd, fallback, "set "+key+" to '"+fallback+"'", types.CertaintyLow))
		}
	}
	ctx.Emit(d)
}

func checkAgentSkills(ctx *Context, f frontend.Field) {
	project := projectDir(ctx)
	for _, name := range splitTools(f) {
		if !safeSkillName(name) {
			ctx.Report("CC-AG-005", f.Line, f.Column, "invalid skill name '%s'", name)
			continue
		}
		p := filepath.Join(project, ".claude", "skills", name, "SKILL.md")
		if _, err := os.Stat(p); err != nil {
			ctx.Report("CC-AG-005", f.Line, f.Column, "skill '%s' not found at %s", name, ctx.Relative(p))
		}
	}
}

func safeSkillName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..") && !strings.HasPrefix(name, ".")
}

// projectDir returns the parent of the nearest .claude ancestor of the file,
// falling back to the run root and then the file's own directory.
func projectDir(ctx *Context) string {
	dir := ctx.Dir()
	for i := 0; i < maxProjectSearchDepth; i++ {
		if filepath.Base(dir) == ".claude" {
			return filepath.Dir(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if ctx.Root != "" {
		return ctx.Root
	}
	return ctx.Dir()
}
