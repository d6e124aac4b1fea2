// Package config loads the validation settings for a run from defaults, an
// optional .agentlintrc file at the project root, and AGENTLINT_* environment
// variables. The resulting ValidationConfig is read-only once a run starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/agentlint/internal/types"
)

const (
	DefaultMaxFiles        = 10000
	DefaultMaxFileSize     = 1 << 20
	DefaultRegexInputLimit = 64 * 1024
	DefaultImportDepth     = 5
	DefaultTarget          = "generic"
)

// ConfigFiles are looked up in the root, in this order.
var ConfigFiles = []string{".agentlintrc.yaml", ".agentlintrc.yml", ".agentlintrc.json"}

// KnownTools are the tool names accepted by target, tools and toolVersions.
var KnownTools = []string{"generic", "claude-code", "cursor", "copilot", "codex"}

// KnownRulePrefixes are the rule ID prefixes the catalog uses.
var KnownRulePrefixes = []string{
	"AS-", "CC-SK-", "CC-HK-", "CC-AG-", "CC-MEM-", "CC-PL-", "XML-", "MCP-", "REF-",
	"XP-", "AGM-", "COP-", "CUR-", "PE-", "io::", "parse::", "engine::",
}

// ValidationConfig holds every value that influences a validation run.
type ValidationConfig struct {
	Root            string            `mapstructure:"root" yaml:"-"`
	Severity        string            `mapstructure:"severity" yaml:"severity" validate:"oneof=error warning info"`
	Target          string            `mapstructure:"target" yaml:"target" validate:"oneof=generic claude-code cursor copilot codex"`
	Tools           []string          `mapstructure:"tools" yaml:"tools,omitempty"`
	Categories      map[string]bool   `mapstructure:"categories" yaml:"categories,omitempty"`
	Disabled        []string          `mapstructure:"disabled" yaml:"disabled,omitempty" validate:"dive,required"`
	Exclude         []string          `mapstructure:"exclude" yaml:"exclude,omitempty" validate:"dive,glob"`
	ToolVersions    map[string]string `mapstructure:"toolVersions" yaml:"toolVersions,omitempty" validate:"dive,version"`
	SpecRevisions   map[string]string `mapstructure:"specRevisions" yaml:"specRevisions,omitempty"`
	MaxFiles        int               `mapstructure:"maxFiles" yaml:"maxFiles" validate:"min=0"`
	Force           bool              `mapstructure:"force" yaml:"-"`
	MaxFileSize     int64             `mapstructure:"maxFileSize" yaml:"maxFileSize" validate:"min=1"`
	RegexInputLimit int               `mapstructure:"regexInputLimit" yaml:"regexInputLimit" validate:"min=1"`
	ImportDepth     int               `mapstructure:"importDepth" yaml:"importDepth" validate:"min=1,max=64"`
	Workers         int               `mapstructure:"workers" yaml:"workers,omitempty" validate:"min=0"`
	NoIgnoreFiles   bool              `mapstructure:"noIgnoreFiles" yaml:"noIgnoreFiles,omitempty"`
	Format          string            `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	FailOn          string            `mapstructure:"failOn" yaml:"failOn" validate:"oneof=error warning info"`

	// Warnings collects non-fatal problems found while loading.
	Warnings []string `mapstructure:"-" yaml:"-"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(strings.TrimSuffix(fl.Field().String(), "/"))
	})
	_ = validate.RegisterValidation("version", func(fl validator.FieldLevel) bool {
		return NormalizeVersion(fl.Field().String()) != ""
	})
}

// Default returns the configuration used when nothing is overridden.
func Default() *ValidationConfig {
	return &ValidationConfig{
		Root:            ".",
		Severity:        "info",
		Target:          DefaultTarget,
		MaxFiles:        DefaultMaxFiles,
		MaxFileSize:     DefaultMaxFileSize,
		RegexInputLimit: DefaultRegexInputLimit,
		ImportDepth:     DefaultImportDepth,
		Format:          "console",
		FailOn:          "error",
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root", d.Root)
	v.SetDefault("severity", d.Severity)
	v.SetDefault("target", d.Target)
	v.SetDefault("tools", []string{})
	v.SetDefault("categories", map[string]bool{})
	v.SetDefault("disabled", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("toolVersions", map[string]string{})
	v.SetDefault("specRevisions", map[string]string{})
	v.SetDefault("maxFiles", d.MaxFiles)
	v.SetDefault("force", false)
	v.SetDefault("maxFileSize", d.MaxFileSize)
	v.SetDefault("regexInputLimit", d.RegexInputLimit)
	v.SetDefault("importDepth", d.ImportDepth)
	v.SetDefault("workers", 0)
	v.SetDefault("noIgnoreFiles", false)
	v.SetDefault("format", d.Format)
	v.SetDefault("failOn", d.FailOn)
}

// LoadConfig loads configuration for rootPath using the global viper
// instance, so flags bound by the CLI take precedence over file values.
func LoadConfig(rootPath string) (*ValidationConfig, error) {
	return Load(viper.GetViper(), rootPath)
}

// Load resolves configuration from v. Precedence, highest first: values set
// on v (bound flags), AGENTLINT_* environment, the config file, defaults.
func Load(v *viper.Viper, rootPath string) (*ValidationConfig, error) {
	setDefaults(v)

	if rootPath == "" {
		rootPath = "."
	}
	for _, name := range ConfigFiles {
		path := filepath.Join(rootPath, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		break
	}

	v.SetEnvPrefix("AGENTLINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg ValidationConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Root = rootPath

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints and records warnings for unknown rule
// prefixes and tool names.
func (c *ValidationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	c.Warnings = c.Warnings[:0]
	for _, id := range c.Disabled {
		if !hasKnownPrefix(id) {
			c.Warnings = append(c.Warnings, fmt.Sprintf("disabled rule %q has an unknown prefix", id))
		}
	}
	for _, tool := range c.Tools {
		if !isKnownTool(tool) {
			c.Warnings = append(c.Warnings, fmt.Sprintf("unknown tool %q", tool))
		}
	}
	for _, tool := range sortedKeys(c.ToolVersions) {
		if !isKnownTool(tool) {
			c.Warnings = append(c.Warnings, fmt.Sprintf("version pinned for unknown tool %q", tool))
		}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s: %q must be one of [%s]", fe.Field(), fe.Value(), fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s: must be %s %s", fe.Field(), map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	case "glob":
		return fmt.Sprintf("%s: invalid glob %q", fe.Field(), fe.Value())
	case "version":
		return fmt.Sprintf("%s: invalid version %q", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
	}
}

func hasKnownPrefix(id string) bool {
	for _, p := range KnownRulePrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

func isKnownTool(tool string) bool {
	tool = strings.ReplaceAll(strings.ToLower(tool), "_", "-")
	for _, t := range KnownTools {
		if t == tool {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeVersion turns "1.2" or "v1.2.3" into a canonical semver string
// ("v1.2.0", "v1.2.3"). It returns "" when the input is not a version.
func NormalizeVersion(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return ""
	}
	return semver.Canonical(s)
}

// SeverityFloor is the least severe level still reported.
func (c *ValidationConfig) SeverityFloor() types.Severity {
	s, err := types.ParseSeverity(c.Severity)
	if err != nil {
		return types.SeverityInfo
	}
	return s
}

// FailOnSeverity is the level at which the CLI exits non-zero.
func (c *ValidationConfig) FailOnSeverity() types.Severity {
	s, err := types.ParseSeverity(c.FailOn)
	if err != nil {
		return types.SeverityError
	}
	return s
}

// CategoryEnabled reports whether a rule category is on. Unlisted categories are on.
func (c *ValidationConfig) CategoryEnabled(category string) bool {
	if enabled, ok := c.Categories[strings.ToLower(category)]; ok {
		return enabled
	}
	return true
}

// RuleDisabled reports whether id is in the disabled set.
func (c *ValidationConfig) RuleDisabled(id string) bool {
	for _, d := range c.Disabled {
		if strings.EqualFold(d, id) {
			return true
		}
	}
	return false
}

// TargetsTool reports whether the run targets tool, either as the main
// target or through the tools list. The generic target matches every tool.
func (c *ValidationConfig) TargetsTool(tool string) bool {
	if c.Target == "" || c.Target == DefaultTarget {
		if len(c.Tools) == 0 {
			return true
		}
	}
	if c.Target == tool {
		return true
	}
	for _, t := range c.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// ToolVersion returns the canonical pinned version for tool. Keys may be
// written with either "-" or "_" ("claude-code" and "claude_code").
func (c *ValidationConfig) ToolVersion(tool string) (string, bool) {
	v := NormalizeVersion(lookupKey(c.ToolVersions, tool))
	return v, v != ""
}

// SpecRevision returns the pinned revision for a spec such as "mcp_protocol".
func (c *ValidationConfig) SpecRevision(spec string) (string, bool) {
	r := strings.TrimSpace(lookupKey(c.SpecRevisions, spec))
	return r, r != ""
}

func lookupKey(m map[string]string, key string) string {
	for _, k := range []string{key, strings.ReplaceAll(key, "-", "_"), strings.ReplaceAll(key, "_", "-")} {
		if v, ok := m[strings.ToLower(k)]; ok {
			return v
		}
		if v, ok := m[k]; ok {
			return v
		}
	}
	return ""
}

// EffectiveWorkers is the pool size for a run.
func (c *ValidationConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(cfg *ValidationConfig, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
