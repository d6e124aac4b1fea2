package rules

import (
	"strings"

	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/frontend"
)

var copilotKnownKeys = []string{"applyTo"}

// copilotValidator checks .github/copilot-instructions.md and the scoped
// .github/instructions/*.instructions.md files.
type copilotValidator struct{}

func (copilotValidator) Name() string { return "copilot" }

func (copilotValidator) Rules() []string {
	return []string{"COP-001", "COP-002", "COP-003", "COP-004"}
}

func (copilotValidator) Validate(ctx *Context) {
	content := ctx.Content()
	empty := strings.TrimSpace(content) == ""

	if ctx.Kind != discovery.KindCopilotScoped {
		if empty {
			ctx.Report("COP-001", 1, 1, "Copilot instruction file is empty")
		}
		return
	}

	fm := ctx.Doc.Frontmatter
	if !fm.Present {
		switch {
		case empty:
			ctx.Report("COP-001", 1, 1, "Copilot instruction file is empty")
		case opensFrontmatter(content):
			ctx.Report("COP-002", 1, 1, "Invalid YAML frontmatter: missing closing ---")
		default:
			ctx.Report("COP-002", 1, 1, "Scoped instruction file is missing frontmatter with applyTo")
		}
		return
	}
	if fm.Err != nil {
		ctx.Report("COP-002", max(fm.Err.Line, fm.OpenLine), 1, "Invalid YAML frontmatter: %s", fm.Err.Message)
		return
	}
	if strings.TrimSpace(fm.Body) == "" {
		ctx.Report("COP-001", fm.CloseLine+1, 1, "Copilot instruction file has frontmatter but no content")
	}

	applyTo, ok := fm.Get("applyTo")
	switch {
	case !ok || applyTo.Kind == frontend.ValueNull:
		ctx.Report("COP-002", fm.OpenLine, 1, "Scoped instruction file is missing the 'applyTo' field")
	case applyTo.Kind != frontend.ValueString:
		ctx.Report("COP-003", applyTo.Line, applyTo.Column, "applyTo must be a glob string")
	default:
		for _, pattern := range globPatterns(applyTo) {
			if msg, ok := validGlob(pattern); !ok {
				ctx.Report("COP-003", applyTo.Line, applyTo.Column, "Invalid applyTo glob pattern '%s': %s", pattern, msg)
			}
		}
	}

	checkUnknownKeys(ctx, "COP-004", copilotKnownKeys, "Copilot instruction file")
}
