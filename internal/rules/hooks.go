package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/textutil"
	"github.com/dotcommander/agentlint/internal/types"
)

// Timeout ceilings, in seconds, before CC-HK-010 warns.
const (
	commandHookTimeout = 600
	promptHookTimeout  = 30
)

var (
	// HookEvents are the hook events Claude Code dispatches.
	HookEvents = []string{
		"PreToolUse", "PermissionRequest", "PostToolUse", "PostToolUseFailure",
		"Notification", "UserPromptSubmit", "Stop", "SubagentStart", "SubagentStop",
		"PreCompact", "Setup", "SessionStart", "SessionEnd",
	}
	toolEvents   = []string{"PreToolUse", "PermissionRequest", "PostToolUse", "PostToolUseFailure"}
	promptEvents = []string{"Stop", "SubagentStop"}

	scriptReference = textutil.MustRegexp(`["']?([^\s"']+\.(?:sh|bash|py|js|ts))["']?\b`)
)

type dangerousCommand struct {
	re     *regexp.Regexp
	reason string
}

var dangerousCommands = []dangerousCommand{
	{textutil.MustRegexp(`(?i)rm\s+-rf\s+/`), "Recursive delete from root is extremely dangerous"},
	{textutil.MustRegexp(`(?i)rm\s+-rf\s+\*`), "Recursive delete with wildcard could delete unintended files"},
	{textutil.MustRegexp(`(?i)rm\s+-rf\s+\.\.`), "Recursive delete of parent directories is dangerous"},
	{textutil.MustRegexp(`(?i)git\s+reset\s+--hard`), "Hard reset discards uncommitted changes permanently"},
	{textutil.MustRegexp(`(?i)git\s+clean\s+-fd`), "Git clean -fd removes untracked files permanently"},
	{textutil.MustRegexp(`(?i)git\s+push\s+.*--force`), "Force push can overwrite remote history"},
	{textutil.MustRegexp(`(?i)drop\s+database`), "Dropping database is irreversible"},
	{textutil.MustRegexp(`(?i)drop\s+table`), "Dropping table is irreversible"},
	{textutil.MustRegexp(`(?i)truncate\s+table`), "Truncating table deletes all data"},
	{textutil.MustRegexp(`(?i)curl\s+.*\|\s*sh`), "Piping curl to shell is a security risk"},
	{textutil.MustRegexp(`(?i)curl\s+.*\|\s*bash`), "Piping curl to bash is a security risk"},
	{textutil.MustRegexp(`(?i)wget\s+.*\|\s*sh`), "Piping wget to shell is a security risk"},
	{textutil.MustRegexp(`(?i)chmod\s+777`), "chmod 777 gives everyone full access"},
	{textutil.MustRegexp(`(?i)>\s*/dev/sd[a-z]`), "Writing directly to block devices can destroy data"},
	{textutil.MustRegexp(`(?i)mkfs\.`), "Formatting filesystem destroys all data"},
	{textutil.MustRegexp(`(?i)dd\s+if=.*of=/dev/`), "dd to device can destroy data"},
}

// hooksValidator checks the hooks section of Claude Code settings files.
type hooksValidator struct{}

func (hooksValidator) Name() string { return "hooks" }

func (hooksValidator) Rules() []string {
	return []string{
		"CC-HK-001", "CC-HK-002", "CC-HK-003", "CC-HK-004", "CC-HK-005", "CC-HK-006",
		"CC-HK-007", "CC-HK-008", "CC-HK-009", "CC-HK-010", "CC-HK-011",
	}
}

// hookEntry is one hook object with its address inside the settings file.
type hookEntry struct {
	event      string
	matcherIdx int
	hookIdx    int
	matcher    string
	hasMatcher bool
	fields     map[string]any
}

func (h hookEntry) location() string {
	if h.hasMatcher {
		return fmt.Sprintf("hooks.%s[matcher=%s].hooks[%d]", h.event, h.matcher, h.hookIdx)
	}
	return fmt.Sprintf("hooks.%s[%d].hooks[%d]", h.event, h.matcherIdx, h.hookIdx)
}

func (h hookEntry) rawLocation() string {
	return fmt.Sprintf("hooks.%s[%d].hooks[%d]", h.event, h.matcherIdx, h.hookIdx)
}

func (hooksValidator) Validate(ctx *Context) {
	root, ok := ctx.Doc.JSON.Object()
	if !ok {
		return
	}
	hooks, ok := root["hooks"].(map[string]any)
	if !ok {
		return
	}
	js := ctx.Doc.JSON
	spans := js.ObjectKeys("hooks")
	eventPos := func(event string) (int, int) {
		if sp, ok := spans[event]; ok {
			return js.Position(sp.Start)
		}
		return 1, 1
	}
	events := make([]string, 0, len(hooks))
	for e := range hooks {
		events = append(events, e)
	}
	sort.Strings(events)

	entries := collectHooks(hooks, events)

	missingType := false
	for _, h := range entries {
		if _, ok := h.fields["type"]; !ok {
			missingType = true
			line, col := eventPos(h.event)
			ctx.Report("CC-HK-005", line, col, "hook at %s is missing required 'type'", h.rawLocation())
		}
	}
	if missingType && ctx.Enabled("CC-HK-005") {
		return
	}

	for _, h := range entries {
		if t, ok := h.fields["timeout"]; ok && !validTimeout(t) {
			line, col := eventPos(h.event)
			d := ctx.Diag("CC-HK-011", line, col, "hook at %s has invalid timeout %s, expected a positive integer", h.rawLocation(), frontend.Compact(t))
			if start, end, ok := js.ValueSpan("timeout", frontend.Compact(t)); ok {
				d = d.WithFix(types.Replace(start, end, "30", "set timeout to 30 seconds", types.CertaintyLow))
			}
			ctx.Emit(d)
		}
	}

	project := hookProjectDir(ctx.Path)
	for _, event := range events {
		line, col := eventPos(event)
		if !contains(HookEvents, event) {
			reportInvalidEvent(ctx, event, spans[event], line, col)
			continue
		}
		matchers, _ := hooks[event].([]any)
		for i, m := range matchers {
			obj, _ := m.(map[string]any)
			matcher, hasMatcher := obj["matcher"].(string)
			location := fmt.Sprintf("hooks.%s[%d]", event, i)
			if contains(toolEvents, event) && !hasMatcher {
				ctx.Report("CC-HK-003", line, col, "tool event '%s' at %s requires a matcher", event, location)
			}
			if !contains(toolEvents, event) && hasMatcher {
				d := ctx.Diag("CC-HK-004", line, col, "matcher at %s is ignored on non-tool event '%s'", location, event)
				if start, end, ok := js.LineSpan("matcher", matcher); ok {
					d = d.WithFix(types.Delete(start, end, "remove matcher from non-tool event", types.CertaintyMedium))
				}
				ctx.Emit(d)
			}
		}
		for _, h := range entries {
			if h.event == event {
				checkHook(ctx, h, project, line, col)
			}
		}
	}
}

func collectHooks(hooks map[string]any, events []string) []hookEntry {
	var out []hookEntry
	for _, event := range events {
		matchers, _ := hooks[event].([]any)
		for i, m := range matchers {
			obj, ok := m.(map[string]any)
			if !ok {
				continue
			}
			matcher, hasMatcher := obj["matcher"].(string)
			list, _ := obj["hooks"].([]any)
			for j, raw := range list {
				fields, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				out = append(out, hookEntry{
					event: event, matcherIdx: i, hookIdx: j,
					matcher: matcher, hasMatcher: hasMatcher, fields: fields,
				})
			}
		}
	}
	return out
}

func validTimeout(v any) bool {
	n, ok := v.(json.Number)
	if !ok {
		return false
	}
	u, err := strconv.ParseUint(n.String(), 10, 64)
	return err == nil && u > 0
}

func timeoutSeconds(v any) (uint64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	u, err := strconv.ParseUint(n.String(), 10, 64)
	return u, err == nil
}

func reportInvalidEvent(ctx *Context, event string, span frontend.Span, line, col int) {
	d := ctx.Diag("CC-HK-001", line, col, "invalid hook event '%s', valid events: %s", event, strings.Join(HookEvents, ", "))
	fixed, certainty := "", types.CertaintyLow
	if m, ok := caseOnlyMatch(event, HookEvents); ok {
		fixed, certainty = m, types.CertaintyHigh
		d = d.WithHelp(fmt.Sprintf("Did you mean '%s'? Event names are case-sensitive.", m))
	} else if m, ok := partialMatch(event, HookEvents); ok {
		fixed, certainty = m, types.CertaintyMedium
		d = d.WithHelp(fmt.Sprintf("Did you mean '%s'?", m))
	}
	if fixed != "" && span.End > span.Start {
		d = d.WithFix(types.Replace(span.Start, span.End, strconv.Quote(fixed), "rename event to '"+fixed+"'", certainty))
	}
	ctx.Emit(d)
}

func checkHook(ctx *Context, h hookEntry, project string, line, col int) {
	kind, _ := h.fields["type"].(string)
	timeout, hasTimeout := h.fields["timeout"]
	secs, numeric := timeoutSeconds(timeout)

	switch kind {
	case "command":
		if !hasTimeout {
			ctx.Report("CC-HK-010", line, col, "command hook at %s has no timeout", h.location())
		} else if numeric && secs > commandHookTimeout {
			ctx.Report("CC-HK-010", line, col, "command hook at %s timeout %ds exceeds the %ds default", h.location(), secs, commandHookTimeout)
		}
		cmd, ok := h.fields["command"].(string)
		if !ok {
			ctx.Report("CC-HK-006", line, col, "command hook at %s is missing 'command'", h.location())
			return
		}
		if ctx.Enabled("CC-HK-008") {
			for _, script := range scriptPaths(cmd) {
				if unresolvedEnv(script) {
					continue
				}
				resolved := resolveScript(script, project)
				if _, err := os.Stat(resolved); err != nil {
					ctx.Report("CC-HK-008", line, col, "hook script '%s' not found at %s", script, resolved)
				}
			}
		}
		for _, dc := range dangerousCommands {
			if dc.re.MatchString(cmd) {
				ctx.Report("CC-HK-009", line, col, "dangerous command in hook at %s: %s", h.location(), dc.reason)
				break
			}
		}
	case "prompt":
		if hasTimeout && numeric && secs > promptHookTimeout {
			ctx.Report("CC-HK-010", line, col, "prompt hook at %s timeout %ds exceeds the %ds default", h.location(), secs, promptHookTimeout)
		}
		if !contains(promptEvents, h.event) {
			ctx.Report("CC-HK-002", line, col, "prompt hook at %s is only supported on Stop and SubagentStop, not '%s'", h.location(), h.event)
		}
		if _, ok := h.fields["prompt"].(string); !ok {
			ctx.Report("CC-HK-007", line, col, "prompt hook at %s is missing 'prompt'", h.location())
		}
	}
}

// hookProjectDir is the directory scripts resolve against: the parent of
// .claude when the settings file lives there.
func hookProjectDir(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == ".claude" {
		return filepath.Dir(dir)
	}
	return dir
}

func scriptPaths(cmd string) []string {
	var out []string
	for _, m := range scriptReference.FindAllStringSubmatch(cmd, -1) {
		p := strings.Trim(m[1], `"'`)
		if strings.Contains(p, "://") || strings.HasPrefix(p, "http") {
			continue
		}
		out = append(out, p)
	}
	return out
}

func unresolvedEnv(p string) bool {
	p = strings.ReplaceAll(p, "${CLAUDE_PROJECT_DIR}", "")
	p = strings.ReplaceAll(p, "$CLAUDE_PROJECT_DIR", "")
	return strings.Contains(p, "$")
}

func resolveScript(script, project string) string {
	p := strings.ReplaceAll(script, "${CLAUDE_PROJECT_DIR}", project)
	p = strings.ReplaceAll(p, "$CLAUDE_PROJECT_DIR", project)
	if !filepath.IsAbs(p) {
		p = filepath.Join(project, filepath.FromSlash(p))
	}
	return p
}
