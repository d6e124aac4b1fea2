package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dotcommander/agentlint/internal/textutil"
)

var (
	claudeSectionGuard = textutil.MustRegexp(`(?i)^(?:#+\s*|<!--\s*)claude(?:\s+code)?(?:\s+specific|\s+only)?(?:\s*-->)?`)
	atImportSyntax     = textutil.MustRegexp(`(?:^|\s)@[\w./*-]+\.\w+`)
	hardCodedPath      = textutil.MustRegexp(`(?i)(?:\.claude/|\.opencode/|\.cursor/|\.cline/|\.github/copilot/|~/Library/|~/\.[a-z][\w-]*/|/Users/[a-zA-Z][\w.-]*/|/home/[a-zA-Z][\w.-]*/|[A-Z]:\\Users\\[a-zA-Z][\w.-]*\\)`)
)

// claudeFeatures are the constructs only Claude Code understands, in the
// order they are checked on a line.
var claudeFeatures = []struct {
	re          *regexp.Regexp
	feature     string
	description string
}{
	{textutil.MustRegexp(`(?i)^\s*-?\s*(?:type|event):\s*(?:PreToolExecution|PostToolExecution|Notification|Stop|SubagentStop)\b`),
		"hooks", "Claude Code hooks are not supported by other AGENTS.md readers"},
	{textutil.MustRegexp(`(?i)^\s*context:\s*fork\b`), "context:fork", "Context forking is Claude Code specific"},
	{textutil.MustRegexp(`(?i)^\s*agent:\s*\S+`), "agent", "Agent field is Claude Code specific"},
	{textutil.MustRegexp(`(?i)^\s*allowed-tools:\s*.+`), "allowed-tools", "Tool restrictions are Claude Code specific"},
}

// crossPlatformValidator flags content that only works for one tool.
type crossPlatformValidator struct{}

func (crossPlatformValidator) Name() string { return "cross-platform" }

func (crossPlatformValidator) Rules() []string { return []string{"XP-001", "XP-002", "XP-003"} }

func (crossPlatformValidator) Validate(ctx *Context) {
	content := ctx.Bounded()
	if isAgentsMD(ctx.Path) {
		if ctx.Enabled("XP-001") {
			checkClaudeFeatures(ctx, content)
		}
		if ctx.Enabled("XP-002") {
			checkHeaderStructure(ctx, content)
		}
	}
	if ctx.Enabled("XP-003") {
		checkHardCodedPaths(ctx, content)
	}
}

// guardLevel returns the heading level a line opens, treating an HTML
// comment as level 2, or 0 when the line is neither.
func guardLevel(line string) int {
	t := strings.TrimLeft(line, " \t")
	switch {
	case strings.HasPrefix(t, "#"):
		return len(t) - len(strings.TrimLeft(t, "#"))
	case strings.HasPrefix(t, "<!--"):
		return 2
	}
	return 0
}

func checkClaudeFeatures(ctx *Context, content string) {
	guarded := false
	level := 0
	eachLine(content, func(i, _ int, line string) {
		if claudeSectionGuard.MatchString(line) {
			guarded = true
			level = guardLevel(line)
			return
		}
		if guarded {
			if l := guardLevel(line); l > 0 && l <= level {
				guarded = false
			}
		}
		if guarded {
			return
		}

		for _, f := range claudeFeatures {
			if loc := f.re.FindStringIndex(line); loc != nil {
				ctx.Report("XP-001", i+1, loc[0]+1, "Claude-specific feature '%s' in %s: %s", f.feature, ctx.FileName(), f.description)
			}
		}
		if loc := atImportSyntax.FindStringIndex(line); loc != nil {
			if strings.Count(line[loc[0]:loc[1]], "@") == 1 {
				ctx.Report("XP-001", i+1, loc[0]+1, "Claude-specific feature '@import' in %s: %s",
					ctx.FileName(), "The @file import syntax is Claude Code specific")
			}
		}
	})
}

func checkHeaderStructure(ctx *Context, content string) {
	if strings.TrimSpace(content) != "" && !hasMarkdownHeader(content) {
		ctx.Report("XP-002", 1, 1, "%s structure issue: No markdown headers found", ctx.FileName())
		return
	}
	last := 0
	eachLine(content, func(i, _ int, line string) {
		if !markdownHeader.MatchString(line) {
			return
		}
		cur := len(line) - len(strings.TrimLeft(line, "#"))
		if last > 0 && cur > last+1 {
			d := ctx.Diag("XP-002", i+1, 1, "%s structure issue: Header level skipped from %d to %d", ctx.FileName(), last, cur)
			ctx.Emit(d.WithHelp(fmt.Sprintf("Use h%d instead of h%d for proper hierarchy", last+1, cur)))
		}
		last = cur
	})
}

func checkHardCodedPaths(ctx *Context, content string) {
	eachLine(content, func(i, _ int, line string) {
		for _, loc := range hardCodedPath.FindAllStringIndex(line, -1) {
			p := line[loc[0]:loc[1]]
			ctx.Report("XP-003", i+1, loc[0]+1, "Hard-coded %s path '%s'", pathPlatform(strings.ToLower(p)), p)
		}
	})
}

func pathPlatform(p string) string {
	switch {
	case strings.Contains(p, ".claude"):
		return "Claude Code"
	case strings.Contains(p, ".opencode"):
		return "OpenCode"
	case strings.Contains(p, ".cursor"):
		return "Cursor"
	case strings.Contains(p, ".cline"):
		return "Cline"
	case strings.Contains(p, ".github/copilot"):
		return "GitHub Copilot"
	case strings.Contains(p, "/library/"):
		return "macOS"
	case strings.HasPrefix(p, "/users/"), strings.HasPrefix(p, "/home/"):
		return "OS-specific absolute"
	case strings.Contains(p, `:\users\`):
		return "Windows absolute"
	case strings.HasPrefix(p, "~/."):
		return "user-specific hidden directory"
	}
	return "OS-specific"
}
