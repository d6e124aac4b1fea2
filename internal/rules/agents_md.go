package rules

import (
	"path/filepath"
	"strings"

	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/textutil"
)

// AgentsMDCharLimit is the size past which some readers truncate AGENTS.md.
const AgentsMDCharLimit = 12000

var agentsMDNames = []string{"AGENTS.md", "AGENTS.local.md", "AGENTS.override.md"}

var (
	markdownHeader  = textutil.MustRegexp(`^#+\s+.+`)
	projectContext  = textutil.MustRegexp(`(?im)^#+\s*(project|overview|about|description|introduction|summary|this\s+(project|repository|repo))\b`)
	platformGuard   = textutil.MustRegexp(`(?i)^(?:#+\s*|<!--\s*)(claude|cursor|codex|opencode|cline|copilot|windsurf)(?:\s+code)?(?:\s+specific|\s+only)?(?:\s*-->)?`)
	platformFeature = textutil.MustRegexp(`(?i)(?:^\s*-?\s*(?:type|event):\s*(?:PreToolExecution|PostToolExecution|Notification|Stop|SubagentStop)\b|^\s*context:\s*fork\b|^\s*agent:\s*\S+|^\s*allowed-tools:\s*.+|\.cursor/|@rules)`)
	unclosedLink    = textutil.MustRegexp(`\[[^\]]*\]\([^)]*$`)
	unclosedRefLink = textutil.MustRegexp(`\[[^\]]*\]\[[^\]]*$`)
)

func isAgentsMD(path string) bool {
	return contains(agentsMDNames, filepath.Base(path))
}

// agentsMDValidator checks AGENTS.md structure for readers other than Claude.
type agentsMDValidator struct{}

func (agentsMDValidator) Name() string { return "agents-md" }

func (agentsMDValidator) Rules() []string {
	return []string{"AGM-001", "AGM-002", "AGM-003", "AGM-004", "AGM-005"}
}

func (agentsMDValidator) Validate(ctx *Context) {
	if !isAgentsMD(ctx.Path) {
		return
	}
	content := ctx.Content()
	md := ctx.Doc.Markdown

	if ctx.Enabled("AGM-001") {
		if cb, ok := md.UnclosedFence(); ok {
			ctx.Report("AGM-001", cb.StartLine, 1, "Invalid markdown structure: unclosed code block (missing closing fence)")
		}
		eachLine(ctx.Bounded(), func(i, _ int, line string) {
			if inCodeBlock(md, i+1) {
				return
			}
			if loc := unclosedLink.FindStringIndex(line); loc != nil {
				ctx.Report("AGM-001", i+1, loc[0]+1, "Invalid markdown structure: malformed link (missing closing parenthesis)")
			} else if loc := unclosedRefLink.FindStringIndex(line); loc != nil {
				ctx.Report("AGM-001", i+1, loc[0]+1, "Invalid markdown structure: malformed link reference (missing closing bracket)")
			}
		})
	}

	blank := strings.TrimSpace(content) == ""

	if !blank && !hasMarkdownHeader(content) {
		ctx.Report("AGM-002", 1, 1, "No markdown headers found in AGENTS instruction file")
	}

	if n := len(content); n > AgentsMDCharLimit {
		ctx.Report("AGM-003", 1, 1, "%s is %d characters, over the %d character limit", ctx.FileName(), n, AgentsMDCharLimit)
	}

	if !blank && ctx.Enabled("AGM-004") && !hasProjectContext(ctx.Bounded()) {
		ctx.Report("AGM-004", 1, 1, "Missing project context section in AGENTS instruction file")
	}

	if ctx.Enabled("AGM-005") {
		checkPlatformGuards(ctx)
	}
}

func inCodeBlock(md *frontend.Markdown, line int) bool {
	for _, cb := range md.CodeBlocks {
		if line >= cb.StartLine && (cb.EndLine == 0 || line <= cb.EndLine) {
			return true
		}
	}
	return false
}

func hasMarkdownHeader(content string) bool {
	found := false
	eachLine(content, func(_, _ int, line string) {
		if !found && markdownHeader.MatchString(line) {
			found = true
		}
	})
	return found
}

func hasProjectContext(content string) bool {
	if projectContext.MatchString(content) {
		return true
	}
	lower := strings.ToLower(content)
	for _, phrase := range []string{"this project", "this repository", "this repo", "the project", "# project"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// checkPlatformGuards reports tool-specific features that are not inside a
// section labelled for that tool.
func checkPlatformGuards(ctx *Context) {
	guard := ""
	eachLine(ctx.Bounded(), func(i, _ int, line string) {
		if m := platformGuard.FindStringSubmatch(line); m != nil {
			guard = strings.ToLower(m[1])
			return
		}
		if strings.HasPrefix(line, "#") {
			guard = ""
		}
		loc := platformFeature.FindStringIndex(line)
		if loc == nil {
			return
		}
		feature, platform := classifyPlatformFeature(strings.TrimSpace(line[loc[0]:loc[1]]))
		if feature == "" {
			return
		}
		if guard != "" && strings.Contains(strings.ToLower(platform), guard) {
			return
		}
		ctx.Report("AGM-005", i+1, loc[0]+1, "%s feature '%s' without platform guard", platform, feature)
	})
}

func classifyPlatformFeature(m string) (feature, platform string) {
	switch {
	case strings.Contains(m, "PreToolExecution"), strings.Contains(m, "PostToolExecution"),
		strings.Contains(m, "Notification"), strings.Contains(m, "Stop"):
		return "hooks", "Claude Code"
	case strings.Contains(m, "context:") && strings.Contains(m, "fork"):
		return "context:fork", "Claude Code"
	case strings.Contains(m, "agent:"):
		return "agent field", "Claude Code"
	case strings.Contains(m, "allowed-tools:"):
		return "allowed-tools", "Claude Code"
	case strings.Contains(m, ".cursor/"), strings.Contains(m, "@rules"):
		return "Cursor paths/rules", "Cursor"
	}
	return "", ""
}
