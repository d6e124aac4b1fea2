package rules

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/textutil"
	"github.com/dotcommander/agentlint/internal/types"
)

// ProjectFile is one discovered file as seen by the project-level checks.
// Content is only needed for instruction files.
type ProjectFile struct {
	// Rel is the slash-separated path relative to the project root.
	Rel     string
	Content string
}

var (
	buildCommand   = textutil.MustRegexp("(?:^|\\s|`)((?:npm|pnpm|yarn|bun)\\s+(?:install|i|add|build|test|run|exec|ci)\\b[^\\n`]*)")
	toolAllow      = textutil.MustRegexp(`(?i)(?:allowed[-_]?tools\s*:|tools\s*:\s*\[|\ballways?\s+allow\s+(\w+)\b|\bcan\s+use\s+(\w+)\b|\bmay\s+use\s+(\w+)\b)`)
	toolDisallow   = textutil.MustRegexp(`(?i)(?:disallowed[-_]?tools\s*:|\bnever\s+use\s+(\w+)\b|\bdon'?t\s+use\s+(\w+)\b|\bdo\s+not\s+use\s+(\w+)\b|\bforbidden\s*:\s*(\w+)\b|\bprohibited\s*:\s*(\w+)\b|\bno\s+(\w+)\s+tool\b)`)
	layerPrecedent = textutil.MustRegexp(`(?i)(?:precedence|priority|override|hierarchy|takes?\s+precedence|supersede|primary\s+source|authoritative)`)
)

// constraintTools are the tool names recognised in prose constraints.
var constraintTools = []string{
	"Bash", "Read", "Write", "Edit", "Grep", "Glob", "Task", "WebFetch",
	"AskUserQuestion", "TodoRead", "TodoWrite", "mcp", "computer", "execute",
}

var (
	packageManagers = []string{"npm", "pnpm", "yarn", "bun"}
	commandTypes    = []string{"install", "build", "test", "run", "other"}
)

// IsInstructionFile reports whether rel is an instruction file that takes
// part in the cross-file checks.
func IsInstructionFile(rel string) bool {
	p := strings.ToLower(rel)
	for _, suffix := range []string{".bak", ".old", ".tmp", ".swp", "~"} {
		if strings.HasSuffix(p, suffix) {
			return false
		}
	}
	name := path.Base(p)
	return name == "claude.md" || name == "agents.md" || name == ".clinerules" ||
		(strings.Contains(p, ".cursor") && (strings.HasSuffix(p, ".mdc") || strings.Contains(p, "rules"))) ||
		(strings.Contains(p, ".github") && strings.Contains(p, "copilot")) ||
		strings.Contains(p, ".opencode")
}

// CheckProject runs the checks that need more than one file: nested
// AGENTS.md files and conflicts between instruction layers. The result is
// sorted.
func (r *Registry) CheckProject(files []ProjectFile, cfg *config.ValidationConfig) []types.Diagnostic {
	em := NewEmitter(r, cfg)
	sorted := make([]ProjectFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rel < sorted[j].Rel })

	if em.Enabled("AGM-006") {
		checkAgentsHierarchy(em, sorted)
	}

	var instructions []ProjectFile
	for _, f := range sorted {
		if IsInstructionFile(f.Rel) {
			instructions = append(instructions, f)
		}
	}
	if len(instructions) > 1 {
		limit := em.cfg.RegexInputLimit
		if limit <= 0 {
			limit = textutil.DefaultRegexInputLimit
		}
		if em.Enabled("XP-004") {
			checkBuildConflicts(em, instructions, limit)
		}
		if em.Enabled("XP-005") {
			checkToolConflicts(em, instructions, limit)
		}
		if em.Enabled("XP-006") {
			checkLayerPrecedence(em, instructions, limit)
		}
	}
	return em.Diagnostics()
}

// report emits a diagnostic for a file that has no Context.
func (e *Emitter) report(id, file string, line, col int, format string, args ...any) {
	sev := types.SeverityError
	if rule, ok := e.registry.catalog.Get(id); ok {
		sev = rule.Severity
	}
	e.Emit(types.Diagnostic{
		Rule:     id,
		Severity: sev,
		File:     file,
		Line:     line,
		Column:   col,
		Message:  fmt.Sprintf(format, args...),
	})
}

// =============================================================================
// AGM-006
// =============================================================================

func checkAgentsHierarchy(em *Emitter, files []ProjectFile) {
	var agents []string
	for _, f := range files {
		if path.Base(f.Rel) == "AGENTS.md" {
			agents = append(agents, f.Rel)
		}
	}
	if len(agents) < 2 {
		return
	}
	for _, current := range agents {
		dir := path.Dir(current)
		var parents, others []string
		for _, other := range agents {
			if other == current {
				continue
			}
			others = append(others, other)
			if isAncestorDir(path.Dir(other), dir) {
				parents = append(parents, other)
			}
		}
		if len(parents) > 0 {
			em.report("AGM-006", current, 1, 1,
				"Nested AGENTS.md detected - parent AGENTS.md files exist at: %s", strings.Join(parents, ", "))
			continue
		}
		em.report("AGM-006", current, 1, 1,
			"Multiple AGENTS.md files detected - other AGENTS.md files exist at: %s", strings.Join(others, ", "))
	}
}

func isAncestorDir(ancestor, dir string) bool {
	if ancestor == "." {
		return true
	}
	return dir == ancestor || strings.HasPrefix(dir, ancestor+"/")
}

// =============================================================================
// XP-004
// =============================================================================

type buildCmd struct {
	file    string
	line    int
	col     int
	manager string
	kind    string
}

func extractBuildCommands(file, content string) []buildCmd {
	var out []buildCmd
	eachLine(content, func(i, _ int, line string) {
		for _, m := range buildCommand.FindAllStringSubmatchIndex(line, -1) {
			raw := strings.TrimSpace(line[m[2]:m[3]])
			manager := strings.Fields(raw)[0]
			if !contains(packageManagers, manager) {
				continue
			}
			out = append(out, buildCmd{file: file, line: i + 1, col: m[2] + 1, manager: manager, kind: commandType(raw)})
		}
	})
	return out
}

func commandType(raw string) string {
	switch {
	case strings.Contains(raw, " install"), strings.Contains(raw, " i "), strings.HasSuffix(raw, " i"),
		strings.Contains(raw, " add"), strings.Contains(raw, " ci"):
		return "install"
	case strings.Contains(raw, " build"):
		return "build"
	case strings.Contains(raw, " test"):
		return "test"
	case strings.Contains(raw, " run"), strings.Contains(raw, " exec"):
		return "run"
	}
	return "other"
}

// checkBuildConflicts reports each pair of package managers used for the same
// kind of command in different files, anchored at the first use of each.
func checkBuildConflicts(em *Emitter, files []ProjectFile, limit int) {
	first := make(map[string]map[string]buildCmd)
	for _, f := range files {
		for _, cmd := range extractBuildCommands(f.Rel, textutil.Bound(f.Content, limit)) {
			byManager, ok := first[cmd.kind]
			if !ok {
				byManager = make(map[string]buildCmd)
				first[cmd.kind] = byManager
			}
			if _, seen := byManager[cmd.manager]; !seen {
				byManager[cmd.manager] = cmd
			}
		}
	}

	for _, kind := range commandTypes {
		byManager := first[kind]
		for i, m1 := range packageManagers {
			a, ok := byManager[m1]
			if !ok {
				continue
			}
			for _, m2 := range packageManagers[i+1:] {
				b, ok := byManager[m2]
				if !ok || a.file == b.file {
					continue
				}
				em.report("XP-004", a.file, a.line, a.col,
					"Conflicting package managers: %s uses %s but %s uses %s for %s commands",
					a.file, a.manager, b.file, b.manager, kind)
			}
		}
	}
}

// =============================================================================
// XP-005
// =============================================================================

type toolConstraint struct {
	file  string
	line  int
	col   int
	tool  string
	allow bool
}

func extractToolConstraints(file, content string) []toolConstraint {
	var out []toolConstraint
	eachLine(content, func(i, _ int, line string) {
		out = appendConstraints(out, file, i+1, line, toolAllow, true)
		out = appendConstraints(out, file, i+1, line, toolDisallow, false)
	})
	return out
}

// appendConstraints adds the tools named by the first match of re on line:
// an inline capture such as "never use Bash", then known tools after it.
func appendConstraints(out []toolConstraint, file string, line int, text string, re *regexp.Regexp, allow bool) []toolConstraint {
	m := re.FindStringSubmatchIndex(text)
	if m == nil {
		return out
	}
	for g := 2; g+1 < len(m); g += 2 {
		if m[g] < 0 {
			continue
		}
		if tool, ok := canonicalTool(text[m[g]:m[g+1]]); ok {
			out = append(out, toolConstraint{file: file, line: line, col: m[0] + 1, tool: tool, allow: allow})
		}
	}
	for _, tool := range toolsAfter(text[m[1]:]) {
		out = append(out, toolConstraint{file: file, line: line, col: m[0] + 1, tool: tool, allow: allow})
	}
	return out
}

func canonicalTool(name string) (string, bool) {
	for _, t := range constraintTools {
		if strings.EqualFold(t, name) {
			return t, true
		}
	}
	return "", false
}

// toolsAfter returns the known tools named as whole words in rest.
func toolsAfter(rest string) []string {
	lower := strings.ToLower(rest)
	var out []string
	for _, t := range constraintTools {
		tl := strings.ToLower(t)
		pos := strings.Index(lower, tl)
		if pos < 0 {
			continue
		}
		end := pos + len(tl)
		if (pos == 0 || !isWordByte(lower[pos-1])) && (end >= len(lower) || !isWordByte(lower[end])) {
			out = append(out, t)
		}
	}
	return out
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// checkToolConflicts reports a tool allowed in one file and disallowed in
// another, once per tool and file pair.
func checkToolConflicts(em *Emitter, files []ProjectFile, limit int) {
	var all []toolConstraint
	for _, f := range files {
		all = append(all, extractToolConstraints(f.Rel, textutil.Bound(f.Content, limit))...)
	}

	reported := make(map[string]bool)
	for _, a := range all {
		if !a.allow {
			continue
		}
		for _, d := range all {
			if d.allow || d.file == a.file || !strings.EqualFold(a.tool, d.tool) {
				continue
			}
			lo, hi := a.file, d.file
			if hi < lo {
				lo, hi = hi, lo
			}
			key := strings.ToLower(a.tool) + "|" + lo + "|" + hi
			if reported[key] {
				continue
			}
			reported[key] = true
			em.report("XP-005", a.file, a.line, a.col,
				"Conflicting tool constraints: '%s' is allowed in %s but disallowed in %s", a.tool, a.file, d.file)
		}
	}
}

// =============================================================================
// XP-006
// =============================================================================

func layerName(rel string) string {
	p := strings.ToLower(rel)
	name := path.Base(p)
	switch {
	case name == "claude.md":
		return "CLAUDE.md"
	case name == "agents.md":
		return "AGENTS.md"
	case strings.Contains(p, ".cursor") && strings.Contains(p, "rules"):
		return "Cursor Rules"
	case strings.Contains(p, ".github") && strings.Contains(p, "copilot"):
		return "Copilot Instructions"
	case strings.Contains(p, ".clinerules"):
		return "Cline Rules"
	case strings.Contains(p, ".opencode"):
		return "OpenCode Rules"
	}
	return ""
}

// checkLayerPrecedence reports when several instruction layers exist and
// none of them says which one wins.
func checkLayerPrecedence(em *Emitter, files []ProjectFile, limit int) {
	var layers, paths []string
	for _, f := range files {
		name := layerName(f.Rel)
		if name == "" {
			continue
		}
		if len(f.Content) <= limit && layerPrecedent.MatchString(f.Content) {
			return
		}
		layers = append(layers, fmt.Sprintf("%s (%s)", name, f.Rel))
		paths = append(paths, f.Rel)
	}
	if len(layers) < 2 {
		return
	}
	em.report("XP-006", paths[0], 1, 1,
		"Multiple instruction layers detected without documented precedence: %s", strings.Join(layers, ", "))
}
