package rules

import (
	"strings"

	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/textutil"
	"github.com/dotcommander/agentlint/internal/types"
)

const (
	maxSkillNameLen     = 64
	maxDescriptionLen   = 1024
	maxCompatibilityLen = 500
	maxSkillBodyLines   = 500
	maxSkillInjections  = 3
	triggerPhrasePrefix = "Use when user wants to "
	gitBashScope        = "Bash(git:*)"
)

var (
	reservedSkillNames  = []string{"anthropic", "claude", "skill"}
	dangerousSkillWords = []string{"deploy", "ship", "publish", "delete", "release", "push"}

	// ValidModels are the model aliases accepted by skills and agents.
	ValidModels = []string{"sonnet", "opus", "haiku", "inherit"}

	builtinAgents = []string{"Explore", "Plan", "general-purpose"}

	// KnownTools are the tool names accepted in allowed-tools.
	KnownTools = []string{
		"Bash", "Read", "Write", "Edit", "Grep", "Glob", "Task", "WebFetch",
		"AskUserQuestion", "TodoRead", "TodoWrite", "MultiTool",
	}

	descriptionXML = textutil.MustRegexp(`<[^>]+>`)
	plainBash      = textutil.MustRegexp(`\bBash\b`)
	windowsPath    = textutil.MustRegexp(`(?i)\b(?:[a-z]:)?[a-z0-9._-]+(?:\\[a-z0-9._-]+)+\b`)
	windowsToken   = textutil.MustRegexp(`[^\s]+\\[^\s]+`)
)

// skillValidator checks SKILL.md files.
type skillValidator struct{}

func (skillValidator) Name() string { return "skill" }

func (skillValidator) Rules() []string {
	return []string{
		"AS-001", "AS-002", "AS-003", "AS-004", "AS-005", "AS-006", "AS-007", "AS-008",
		"AS-009", "AS-010", "AS-011", "AS-012", "AS-014", "AS-016",
		"CC-SK-001", "CC-SK-002", "CC-SK-003", "CC-SK-004", "CC-SK-005", "CC-SK-006",
		"CC-SK-007", "CC-SK-008", "CC-SK-009",
	}
}

func (skillValidator) Validate(ctx *Context) {
	fm := ctx.Doc.Frontmatter
	if !fm.Present {
		ctx.Report("AS-001", 1, 1, "SKILL.md must start with a --- delimited frontmatter block")
		return
	}
	if fm.Err != nil {
		ctx.Report("AS-016", max(fm.Err.Line, fm.OpenLine), 1, "invalid YAML in frontmatter: %s", fm.Err.Message)
		return
	}

	name, hasName := scalarField(ctx, "name")
	desc, hasDesc := scalarField(ctx, "description")
	if !hasName {
		line, col := ctx.FieldPos("name")
		ctx.Report("AS-002", line, col, "skill frontmatter is missing required 'name'")
	}
	if !hasDesc {
		line, col := ctx.FieldPos("description")
		ctx.Report("AS-003", line, col, "skill frontmatter is missing required 'description'")
	}
	if hasName {
		checkSkillName(ctx, name)
	}
	if hasDesc {
		checkSkillDescription(ctx, desc)
	}
	if compat, ok := scalarField(ctx, "compatibility"); ok {
		if n := len(strings.TrimSpace(compat.Str)); n == 0 || n > maxCompatibilityLen {
			ctx.Report("AS-011", compat.Line, compat.Column,
				"compatibility must be 1-%d characters, got %d", maxCompatibilityLen, n)
		}
	}

	if hasName && hasDesc && strings.TrimSpace(name.Str) != "" && strings.TrimSpace(desc.Str) != "" {
		checkClaudeSkill(ctx, strings.TrimSpace(name.Str))
	}
	checkSkillBody(ctx)
}

// scalarField returns a present, non-null frontmatter field as text.
func scalarField(ctx *Context, key string) (frontend.Field, bool) {
	f, ok := ctx.Doc.Frontmatter.Get(key)
	if !ok || f.Kind == frontend.ValueNull {
		return f, false
	}
	if f.Kind == frontend.ValueList {
		f.Str = strings.Join(f.List, ", ")
	}
	return f, true
}

func checkSkillName(ctx *Context, f frontend.Field) {
	name := strings.TrimSpace(f.Str)

	if len(name) > maxSkillNameLen || !isKebab(name) {
		d := ctx.Diag("AS-004", f.Line, f.Column,
			"invalid skill name '%s': use lowercase letters, digits and single hyphens (max %d)", name, maxSkillNameLen)
		fixed := toKebab(name)
		if fixed != "" && isKebab(fixed) && f.HasValueSpan() && f.Str == name {
			certainty := types.CertaintyMedium
			if strings.ToLower(name) == fixed {
				certainty = types.CertaintyHigh
			}
			d = d.WithFix(types.Replace(f.ValueStart, f.ValueEnd, fixed, "rename skill to '"+fixed+"'", certainty))
		}
		ctx.Emit(d)
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		ctx.Report("AS-005", f.Line, f.Column, "skill name '%s' cannot start or end with a hyphen", name)
	}
	if strings.Contains(name, "--") {
		ctx.Report("AS-006", f.Line, f.Column, "skill name '%s' cannot contain consecutive hyphens", name)
	}
	if name != "" && contains(reservedSkillNames, strings.ToLower(name)) {
		ctx.Report("AS-007", f.Line, f.Column, "skill name '%s' is reserved", name)
	}
}

func checkSkillDescription(ctx *Context, f frontend.Field) {
	desc := strings.TrimSpace(f.Str)

	if n := len(desc); n < 1 || n > maxDescriptionLen {
		ctx.Report("AS-008", f.Line, f.Column, "description must be 1-%d characters, got %d", maxDescriptionLen, n)
	}
	if descriptionXML.MatchString(f.Str) {
		ctx.Report("AS-009", f.Line, f.Column, "description must not contain XML tags")
	}
	if desc != "" && !strings.Contains(strings.ToLower(desc), "use when") {
		d := ctx.Diag("AS-010", f.Line, f.Column, "description should say when to use the skill (\"Use when ...\")")
		next := triggerPhrasePrefix + desc
		if f.HasValueSpan() && f.Str == desc && len(next) <= maxDescriptionLen {
			d = d.WithFix(types.Replace(f.ValueStart, f.ValueEnd, next, "prepend a trigger phrase", types.CertaintyLow))
		}
		ctx.Emit(d)
	}
}

// checkClaudeSkill runs the Claude Code specific field checks.
func checkClaudeSkill(ctx *Context, name string) {
	fm := ctx.Doc.Frontmatter

	if ctx.Enabled("CC-SK-006") {
		disabled := false
		if f, ok := fm.Get("disable-model-invocation"); ok && f.Kind == frontend.ValueBool {
			disabled = f.Bool
		}
		lower := strings.ToLower(name)
		for _, w := range dangerousSkillWords {
			if strings.Contains(lower, w) && !disabled {
				line, col := ctx.FieldPos("name")
				ctx.Report("CC-SK-006", line, col,
					"skill '%s' has side effects and can be invoked automatically; set disable-model-invocation: true", name)
				break
			}
		}
	}

	if n := strings.Count(ctx.Content(), "!`"); n > maxSkillInjections {
		ctx.Report("CC-SK-009", fm.OpenLine, 1, "skill has %d dynamic injections, more than %d", n, maxSkillInjections)
	}

	if f, ok := fm.Get("allowed-tools"); ok {
		checkAllowedTools(ctx, f)
	}

	model, hasModel := scalarField(ctx, "model")
	if hasModel && !contains(ValidModels, model.Str) {
		d := ctx.Diag("CC-SK-001", model.Line, model.Column,
			"invalid model '%s', expected one of: %s", model.Str, strings.Join(ValidModels, ", "))
		if fixed, ok := caseOnlyMatch(model.Str, ValidModels); ok && model.HasValueSpan() {
			d = d.WithFix(types.Replace(model.ValueStart, model.ValueEnd, fixed, "set model to '"+fixed+"'", types.CertaintyHigh))
		}
		ctx.Emit(d)
	}

	context, hasContext := scalarField(ctx, "context")
	agent, hasAgent := scalarField(ctx, "agent")
	fork := hasContext && context.Str == "fork"

	if hasContext && !fork {
		ctx.Report("CC-SK-002", context.Line, context.Column, "invalid context '%s', the only supported value is 'fork'", context.Str)
	}
	if fork && !hasAgent {
		ctx.Report("CC-SK-003", context.Line, context.Column, "context: fork requires an 'agent' field")
	}
	if hasAgent && !fork {
		ctx.Report("CC-SK-004", agent.Line, agent.Column, "'agent' is only used together with context: fork")
	}
	if hasAgent && !validAgentName(agent.Str) {
		ctx.Report("CC-SK-005", agent.Line, agent.Column,
			"invalid agent '%s': use %s or a kebab-case custom agent name", agent.Str, strings.Join(builtinAgents, ", "))
	}
}

func validAgentName(agent string) bool {
	if contains(builtinAgents, agent) {
		return true
	}
	return len(agent) >= 1 && len(agent) <= maxSkillNameLen && isKebab(agent)
}

// splitTools accepts a list, a comma-separated string or a legacy
// space-separated string.
func splitTools(f frontend.Field) []string {
	if f.Kind == frontend.ValueList {
		return f.List
	}
	var out []string
	if strings.Contains(f.Str, ",") {
		for _, t := range strings.Split(f.Str, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	return strings.Fields(f.Str)
}

func checkAllowedTools(ctx *Context, f frontend.Field) {
	tools := splitTools(f)
	fm := ctx.Doc.Frontmatter

	if ctx.Enabled("CC-SK-007") {
		// Plain Bash occurrences inside the frontmatter, from the key on.
		var spans [][2]int
		from := f.KeyStart
		if from < 0 {
			from = fm.RawStart
		}
		region := ctx.Content()[from:fm.BodyOffset]
		for _, loc := range plainBash.FindAllStringIndex(region, -1) {
			end := from + loc[1]
			if end < len(ctx.Content()) && ctx.Content()[end] == '(' {
				continue
			}
			spans = append(spans, [2]int{from + loc[0], end})
		}
		next := 0
		for _, t := range tools {
			if t != "Bash" {
				continue
			}
			d := ctx.Diag("CC-SK-007", f.Line, f.Column, "unrestricted Bash access; scope it, for example Bash(git:*)")
			if next < len(spans) {
				d = d.WithFix(types.Replace(spans[next][0], spans[next][1], gitBashScope,
					"scope Bash to git commands", types.CertaintyLow))
				next++
			}
			ctx.Emit(d)
		}
	}

	for _, t := range tools {
		base, _, _ := strings.Cut(t, "(")
		base = strings.TrimSpace(base)
		if contains(KnownTools, base) || strings.HasPrefix(base, "mcp__") {
			continue
		}
		ctx.Report("CC-SK-008", f.Line, f.Column, "unknown tool '%s', known tools: %s", base, strings.Join(KnownTools, ", "))
	}
}

func checkSkillBody(ctx *Context) {
	body := ctx.Doc.Body()
	offset := ctx.Doc.BodyOffset()

	if n := lineCount(body); n > maxSkillBodyLines {
		ctx.ReportAt("AS-012", offset, "skill body has %d lines, more than %d", n, maxSkillBodyLines)
	}

	if !ctx.Enabled("AS-014") {
		return
	}
	bounded, _ := ctx.BoundedBody()
	for _, p := range windowsPaths(bounded) {
		ctx.ReportAt("AS-014", offset+p.start, "Windows path separator in '%s', use forward slashes", p.text)
	}
}

type pathMatch struct {
	text  string
	start int
}

// windowsPaths finds backslash-separated paths, skipping tokens that look like
// regex escapes.
func windowsPaths(body string) []pathMatch {
	seen := make(map[string]bool)
	var out []pathMatch
	collect := func(locs [][]int) {
		for _, loc := range locs {
			raw := body[loc[0]:loc[1]]
			text := trimPathToken(raw)
			if text == "" || looksLikeRegexEscape(text) || seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, pathMatch{text: text, start: loc[0] + strings.Index(raw, text)})
		}
	}
	collect(windowsPath.FindAllStringIndex(body, -1))
	collect(windowsToken.FindAllStringIndex(body, -1))
	return out
}

func trimPathToken(s string) string {
	s = strings.TrimLeft(s, `([{<"'`)
	return strings.TrimRight(s, `.,;:)]}>"'`)
}

const regexEscapeChars = `nsdwtrb|./$^+*?{}[]()SDWB`

func looksLikeRegexEscape(s string) bool {
	parts := strings.Split(s, `\`)
	if len(parts) < 2 {
		return false
	}
	n := 0
	for _, p := range parts[1:] {
		if p != "" && strings.ContainsRune(regexEscapeChars, rune(p[0])) {
			n++
		}
	}
	return n > 0 && n >= (len(parts)-1)/2
}
