package rules

import (
	"strings"

	"github.com/dotcommander/agentlint/internal/textutil"
)

// Documents shorter than this are not checked for buried critical content.
const minLinesForPosition = 10

var (
	criticalKeyword = textutil.MustRegexp(`(?i)\b(critical|important|must|required|essential|mandatory|crucial|never|always)\b`)
	criticalSection = textutil.MustRegexp(`(?i)^#+\s*.*\b(critical|important|required|mandatory|rules|must|essential|security|danger)\b`)
	weakLanguage    = textutil.MustRegexp(`(?i)\b(should|try\s+to|consider|maybe|might|could|possibly|preferably|ideally|optionally)\b`)
)

type promptValidator struct{}

func (promptValidator) Name() string { return "prompt" }

func (promptValidator) Rules() []string { return []string{"PE-001", "PE-003"} }

func (promptValidator) Validate(ctx *Context) {
	var lines []string
	eachLine(ctx.Bounded(), func(_, _ int, line string) { lines = append(lines, line) })

	if ctx.Enabled("PE-001") && len(lines) >= minLinesForPosition {
		for i, line := range lines {
			loc := criticalKeyword.FindStringIndex(line)
			if loc == nil {
				continue
			}
			pct := float64(i) / float64(len(lines)) * 100
			if pct >= 40 && pct < 60 {
				ctx.Report("PE-001", i+1, loc[0]+1,
					"Critical keyword '%s' at %.0f%% of document (40-60%% is the 'lost in the middle' zone)",
					line[loc[0]:loc[1]], pct)
			}
		}
	}

	if ctx.Enabled("PE-003") {
		section := ""
		for i, line := range lines {
			if strings.HasPrefix(line, "#") {
				section = ""
				if criticalSection.MatchString(line) {
					section = strings.TrimSpace(strings.TrimLeft(line, "#"))
				}
			}
			if section == "" {
				continue
			}
			if loc := weakLanguage.FindStringIndex(line); loc != nil {
				ctx.Report("PE-003", i+1, loc[0]+1,
					"Weak language '%s' in critical section '%s'", line[loc[0]:loc[1]], section)
			}
		}
	}
}
