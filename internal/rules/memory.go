package rules

import (
	"regexp"
	"strings"

	"github.com/dotcommander/agentlint/internal/textutil"
	"github.com/dotcommander/agentlint/internal/types"
)

var (
	genericInstructions = []*regexp.Regexp{
		textutil.MustRegexp(`(?i)\bbe\s+helpful`),
		textutil.MustRegexp(`(?i)\bbe\s+accurate`),
		textutil.MustRegexp(`(?i)\bthink\s+step\s+by\s+step`),
		textutil.MustRegexp(`(?i)\bbe\s+concise`),
		textutil.MustRegexp(`(?i)\bformat.*properly`),
		textutil.MustRegexp(`(?i)\bprovide.*clear.*explanations`),
		textutil.MustRegexp(`(?i)\bmake\s+sure\s+to`),
		textutil.MustRegexp(`(?i)\balways\s+be`),
		textutil.MustRegexp(`(?i)^#+\s*(?:you\s+are|your\s+role)\b`),
		textutil.MustRegexp(`(?i)^\s*-?\s*you(?:'re|\s+are)\s+a\s+(?:helpful|expert|senior|skilled|experienced)\b`),
		textutil.MustRegexp(`(?i)\bfollow\s+(?:best\s+practices|coding\s+standards|clean\s+code)\b`),
		textutil.MustRegexp(`(?i)\bwrite\s+clean\s+(?:and\s+)?(?:maintainable|readable)\s+code\b`),
	}

	negativeInstruction = textutil.MustRegexp(`(?i)\b(don't|do\s+not|never|avoid|shouldn't|should\s+not)\b`)
	positiveInstruction = textutil.MustRegexp(`(?i)\b(instead|rather|prefer|better\s+to|alternative|always|use\s+\w|ensure|verify|check|open\s+an?\b|run\s+\w|apply|create|add|set|enable)\b`)
)

// memoryValidator checks CLAUDE.md style instruction files for content that
// wastes context.
type memoryValidator struct{}

func (memoryValidator) Name() string { return "memory" }

func (memoryValidator) Rules() []string { return []string{"CC-MEM-005", "CC-MEM-006"} }

func (memoryValidator) Validate(ctx *Context) {
	content := ctx.Bounded()
	var lines []string
	var offsets []int
	eachLine(content, func(_, off int, line string) {
		lines = append(lines, line)
		offsets = append(offsets, off)
	})

	if ctx.Enabled("CC-MEM-005") {
		for i, line := range lines {
			for _, re := range genericInstructions {
				loc := re.FindStringIndex(line)
				if loc == nil {
					continue
				}
				d := ctx.Diag("CC-MEM-005", i+1, loc[0]+1,
					"Generic instruction '%s' - the model already knows this", line[loc[0]:loc[1]])
				start := offsets[i]
				end := start + len(line)
				if end < len(ctx.Content()) && ctx.Content()[end] == '\r' {
					end++
				}
				if end < len(ctx.Content()) && ctx.Content()[end] == '\n' {
					end++
				}
				d = d.WithFix(types.Delete(start, end, "remove generic instruction", types.CertaintyLow))
				ctx.Emit(d)
			}
		}
	}

	if ctx.Enabled("CC-MEM-006") {
		for i, line := range lines {
			loc := negativeInstruction.FindStringIndex(line)
			if loc == nil || hasAlternative(lines, i, loc) {
				continue
			}
			ctx.Report("CC-MEM-006", i+1, loc[0]+1,
				"Negative instruction '%s' without a positive alternative", line[loc[0]:loc[1]])
		}
	}
}

// hasAlternative reports whether the negative at loc on lines[i] comes with a
// positive instruction on the same line or the next one.
func hasAlternative(lines []string, i int, loc []int) bool {
	line := lines[i]
	if positiveInstruction.MatchString(line) {
		return true
	}
	before := strings.TrimSpace(line[:loc[0]])
	if len(before) > 5 &&
		(strings.Contains(before, ",") || strings.Contains(before, ";") || strings.Contains(before, " - ")) &&
		!strings.HasPrefix(before, "//") && !strings.HasPrefix(before, "#") {
		return true
	}
	return i+1 < len(lines) && positiveInstruction.MatchString(lines[i+1])
}
