// Package discovery classifies files into kinds and walks a project tree to
// collect the files worth validating.
package discovery

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileKind categorizes discovered files
type FileKind int

const (
	KindUnknown FileKind = iota
	KindSkill
	KindMemory
	KindAgent
	KindHooks
	KindPlugin
	KindMcp
	KindCopilot
	KindCopilotScoped
	KindCursorRule
	KindCursorLegacy
	KindGenericMarkdown
)

// String returns the human-readable name of the file kind.
func (k FileKind) String() string {
	switch k {
	case KindSkill:
		return "skill"
	case KindMemory:
		return "memory"
	case KindAgent:
		return "agent"
	case KindHooks:
		return "hooks"
	case KindPlugin:
		return "plugin"
	case KindMcp:
		return "mcp"
	case KindCopilot:
		return "copilot"
	case KindCopilotScoped:
		return "copilot-scoped"
	case KindCursorRule:
		return "cursor-rule"
	case KindCursorLegacy:
		return "cursor-legacy"
	case KindGenericMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// ParseFileKind converts a string to a FileKind.
func ParseFileKind(s string) (FileKind, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k := KindSkill; k <= KindGenericMarkdown; k++ {
		if k.String() == want {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("invalid kind %q", s)
}

// IsJSON reports whether files of this kind are JSON manifests.
func (k FileKind) IsJSON() bool {
	return k == KindHooks || k == KindPlugin || k == KindMcp
}

// KindPattern maps a glob pattern to a FileKind.
// Patterns are matched in order; first match wins.
type KindPattern struct {
	Pattern string
	Kind    FileKind
}

// kindPatterns are matched against the last three path components
// (grandparent/parent/name) so classification depends only on the name and
// its two nearest directories. Order matters: exact names before directory rules.
var kindPatterns = []KindPattern{
	{"**/SKILL.md", KindSkill},
	{"**/{CLAUDE,CLAUDE.local,AGENTS,AGENTS.local,AGENTS.override}.md", KindMemory},
	{"**/{settings,settings.local}.json", KindHooks},
	{"**/plugin.json", KindPlugin},
	{"**/{mcp,*.mcp,mcp-*}.json", KindMcp},
	{"**/.github/copilot-instructions.md", KindCopilot},
	{".github/instructions/*.instructions.md", KindCopilotScoped},
	{".cursor/rules/*.mdc", KindCursorRule},
	{"**/.cursorrules", KindCursorLegacy},
	{"**/agents/*.md", KindAgent},
	{"agents/*/*.md", KindAgent},
	{"**/*.md", KindGenericMarkdown},
}

// DetectKind determines the file kind from a path using glob pattern matching.
// It performs no I/O.
func DetectKind(p string) FileKind {
	tail := pathTail(filepath.ToSlash(p), 3)
	for _, kp := range kindPatterns {
		matched, err := doublestar.Match(kp.Pattern, tail)
		if err != nil {
			continue
		}
		if matched {
			return kp.Kind
		}
	}
	return KindUnknown
}

// pathTail returns the last n slash-separated components of p.
func pathTail(p string, n int) string {
	p = strings.TrimSuffix(p, "/")
	parts := strings.Split(p, "/")
	var kept []string
	for i := len(parts) - 1; i >= 0 && len(kept) < n; i-- {
		if parts[i] == "" || parts[i] == "." {
			continue
		}
		kept = append([]string{parts[i]}, kept...)
	}
	return path.Join(kept...)
}

// hasPathComponent checks if a path contains a directory component.
// Unlike strings.Contains, this matches on path boundaries to avoid
// false positives (e.g., "agents" won't match "my-agents-backup").
func hasPathComponent(p, component string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == component {
			return true
		}
	}
	return false
}

// InDirectory reports whether rel has dir among its parent components.
func InDirectory(rel, dir string) bool {
	return hasPathComponent(path.Dir(filepath.ToSlash(rel)), dir)
}
