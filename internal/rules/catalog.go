// Package rules holds the rule catalog, the registry that decides which rules
// run for a file, and the validators that implement them.
package rules

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/types"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Normative strength of a rule.
const (
	NormativeMust         = "MUST"
	NormativeShould       = "SHOULD"
	NormativeBestPractice = "BEST_PRACTICE"
)

// Fix availability of a rule.
const (
	FixNone   = "none"
	FixSafe   = "safe"
	FixUnsafe = "unsafe"
)

// VersionRange gates a rule on the pinned version of Tool. Min is inclusive,
// Max exclusive; either may be empty.
type VersionRange struct {
	Tool string `yaml:"tool" json:"tool"`
	Min  string `yaml:"min,omitempty" json:"min,omitempty"`
	Max  string `yaml:"max,omitempty" json:"max,omitempty"`
}

// Contains reports whether the canonical version v is inside the range.
func (r VersionRange) Contains(v string) bool {
	if lo := config.NormalizeVersion(r.Min); lo != "" && compareVersions(v, lo) < 0 {
		return false
	}
	if hi := config.NormalizeVersion(r.Max); hi != "" && compareVersions(v, hi) >= 0 {
		return false
	}
	return true
}

func (r VersionRange) String() string {
	switch {
	case r.Min != "" && r.Max != "":
		return fmt.Sprintf("%s >=%s <%s", r.Tool, r.Min, r.Max)
	case r.Min != "":
		return fmt.Sprintf("%s >=%s", r.Tool, r.Min)
	case r.Max != "":
		return fmt.Sprintf("%s <%s", r.Tool, r.Max)
	}
	return r.Tool
}

// Rule is the metadata of one catalog entry.
type Rule struct {
	ID         string         `yaml:"id" json:"id"`
	Name       string         `yaml:"name" json:"name"`
	Category   string         `yaml:"category" json:"category"`
	Severity   types.Severity `yaml:"-" json:"severity"`
	Normative  string         `yaml:"normative" json:"normative"`
	Fix        string         `yaml:"fix" json:"fix"`
	Tools      []string       `yaml:"tools,omitempty" json:"tools,omitempty"`
	Version    *VersionRange  `yaml:"version,omitempty" json:"version,omitempty"`
	Spec       string         `yaml:"spec,omitempty" json:"spec,omitempty"`
	Revisions  []string       `yaml:"revisions,omitempty" json:"revisions,omitempty"`
	Assumption string         `yaml:"assumption,omitempty" json:"assumption,omitempty"`
	Help       string         `yaml:"help,omitempty" json:"help,omitempty"`

	SeverityName string `yaml:"severity" json:"-"`
}

// Catalog is the immutable set of known rules.
type Catalog struct {
	byID    map[string]*Rule
	ordered []Rule
}

// ParseCatalog decodes and checks a YAML rule list.
func ParseCatalog(data []byte) (*Catalog, error) {
	var entries []Rule
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding rule catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]*Rule, len(entries))}
	for i := range entries {
		r := entries[i]
		if r.ID == "" {
			return nil, fmt.Errorf("rule catalog entry %d has no id", i)
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %s", r.ID)
		}
		sev, err := types.ParseSeverity(r.SeverityName)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		r.Severity = sev
		if r.Fix == "" {
			r.Fix = FixNone
		}
		if want := CategoryFor(r.ID); want != "" && want != r.Category {
			return nil, fmt.Errorf("rule %s: category %q does not match prefix category %q", r.ID, r.Category, want)
		}
		c.ordered = append(c.ordered, r)
	}

	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })
	for i := range c.ordered {
		c.byID[c.ordered[i].ID] = &c.ordered[i]
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the embedded catalog. A broken embedded catalog is a
// build defect, so it panics.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := ParseCatalog(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Get returns the rule with the given ID.
func (c *Catalog) Get(id string) (*Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Rules returns a copy of every rule sorted by ID.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len is the number of rules.
func (c *Catalog) Len() int { return len(c.ordered) }

// categoryPrefixes maps ID prefixes to categories. Longer prefixes come first
// so CC-SK- wins over any shorter match.
var categoryPrefixes = []struct {
	prefix   string
	category string
}{
	{"CC-MEM-", "memory"},
	{"CC-SK-", "skills"},
	{"CC-HK-", "hooks"},
	{"CC-AG-", "agents"},
	{"CC-PL-", "plugins"},
	{"AGM-", "agents_md"},
	{"COP-", "copilot"},
	{"CUR-", "cursor"},
	{"XML-", "xml"},
	{"MCP-", "mcp"},
	{"REF-", "imports"},
	{"AS-", "skills"},
	{"XP-", "cross_platform"},
	{"PE-", "prompt_engineering"},
}

// CategoryFor derives a rule's category from its ID prefix. Engine rules
// (io::, parse::, engine::) have no category and return "".
func CategoryFor(id string) string {
	for _, p := range categoryPrefixes {
		if strings.HasPrefix(id, p.prefix) {
			return p.category
		}
	}
	return ""
}

// IsEngineRule reports whether id is one of the synthetic engine rules.
func IsEngineRule(id string) bool {
	return strings.HasPrefix(id, "io::") || strings.HasPrefix(id, "parse::") || strings.HasPrefix(id, "engine::")
}
