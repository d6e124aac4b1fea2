package rules

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/imports"
	"github.com/dotcommander/agentlint/internal/logger"
	"github.com/dotcommander/agentlint/internal/safeio"
	"github.com/dotcommander/agentlint/internal/types"
)

// Engine rule IDs that are not tied to a validator.
const (
	RuleParseFrontmatter = "parse::frontmatter"
	RuleParseJSON        = "parse::json"
	RulePanic            = "engine::panic"
)

// =============================================================================
// Validator interface
// =============================================================================

// Validator implements one group of rules for the kinds it is registered on.
//
// Validate must only read ctx and report through it. The import cache reached
// through ctx.Imports is the one shared structure a validator may touch.
type Validator interface {
	// Name identifies the validator in logs and panic diagnostics.
	Name() string

	// Rules lists every rule ID the validator can emit. A validator whose
	// rules are all filtered out is not run.
	Rules() []string

	Validate(ctx *Context)
}

// ownsFrontmatterErrors lists the kinds whose validator reports malformed
// frontmatter under its own rule ID instead of parse::frontmatter.
var ownsFrontmatterErrors = map[discovery.FileKind]string{
	discovery.KindSkill:         "AS-016",
	discovery.KindAgent:         "CC-AG-007",
	discovery.KindCursorRule:    "CUR-003",
	discovery.KindCopilotScoped: "COP-002",
}

// =============================================================================
// Registry
// =============================================================================

// Registry maps file kinds to validators and decides which rules are enabled.
// It is read-only after construction.
type Registry struct {
	catalog *Catalog
	byKind  map[discovery.FileKind][]Validator
}

// NewRegistry builds the static dispatch table over catalog. A nil catalog
// selects the embedded one.
func NewRegistry(catalog *Catalog) *Registry {
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	skill := skillValidator{}
	xml := xmlValidator{}
	imps := importsValidator{}
	memory := memoryValidator{}
	agentsMD := agentsMDValidator{}
	xp := crossPlatformValidator{}
	prompt := promptValidator{}
	agent := agentValidator{}
	hooks := hooksValidator{}
	plugin := pluginValidator{}
	mcp := mcpValidator{}
	copilot := copilotValidator{}
	cursor := cursorValidator{}

	return &Registry{
		catalog: catalog,
		byKind: map[discovery.FileKind][]Validator{
			discovery.KindSkill:           {skill, xml, imps},
			discovery.KindMemory:          {memory, agentsMD, xp, xml, imps, prompt},
			discovery.KindAgent:           {agent, xml},
			discovery.KindHooks:           {hooks},
			discovery.KindPlugin:          {plugin},
			discovery.KindMcp:             {mcp},
			discovery.KindCopilot:         {copilot, xml},
			discovery.KindCopilotScoped:   {copilot, xml},
			discovery.KindCursorRule:      {cursor},
			discovery.KindCursorLegacy:    {cursor},
			discovery.KindGenericMarkdown: {xp, xml, imps},
		},
	}
}

// Catalog returns the catalog the registry was built from.
func (r *Registry) Catalog() *Catalog { return r.catalog }

// For returns the validators for kind that have at least one enabled rule.
func (r *Registry) For(kind discovery.FileKind, cfg *config.ValidationConfig) []Validator {
	all := r.byKind[kind]
	out := make([]Validator, 0, len(all))
	for _, v := range all {
		for _, id := range v.Rules() {
			if r.Enabled(id, cfg) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// Enabled runs the filter pipeline for one rule: catalog membership, category
// toggle, disabled set, target tools, then version and spec-revision gates.
func (r *Registry) Enabled(id string, cfg *config.ValidationConfig) bool {
	rule, ok := r.catalog.Get(id)
	if !ok {
		return false
	}
	if cfg == nil {
		return true
	}

	if !IsEngineRule(id) {
		if cat := CategoryFor(id); cat != "" && !cfg.CategoryEnabled(cat) {
			return false
		}
	}
	if cfg.RuleDisabled(id) {
		return false
	}
	if len(rule.Tools) > 0 && !targetsAny(cfg, rule.Tools) {
		return false
	}
	if rule.Version != nil {
		if v, pinned := cfg.ToolVersion(rule.Version.Tool); pinned && !rule.Version.Contains(v) {
			return false
		}
	}
	if rule.Spec != "" && len(rule.Revisions) > 0 {
		if rev, pinned := cfg.SpecRevision(rule.Spec); pinned && !containsFold(rule.Revisions, rev) {
			return false
		}
	}
	return true
}

// Assumption returns the note attached to diagnostics of id when the run did
// not pin the tool version or spec revision the rule depends on.
func (r *Registry) Assumption(id string, cfg *config.ValidationConfig) string {
	rule, ok := r.catalog.Get(id)
	if !ok || rule.Assumption == "" {
		return ""
	}
	if cfg == nil {
		return rule.Assumption
	}
	if rule.Version != nil {
		if _, pinned := cfg.ToolVersion(rule.Version.Tool); !pinned {
			return rule.Assumption
		}
	}
	if rule.Spec != "" {
		if _, pinned := cfg.SpecRevision(rule.Spec); !pinned {
			return rule.Assumption
		}
	}
	return ""
}

func targetsAny(cfg *config.ValidationConfig, tools []string) bool {
	for _, t := range tools {
		if cfg.TargetsTool(t) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func compareVersions(a, b string) int {
	return semver.Compare(a, b)
}

// =============================================================================
// Per-file dispatch
// =============================================================================

// Input is one file handed to Check.
type Input struct {
	// Path is the absolute path of the file.
	Path string
	// Rel is the slash-separated path relative to Root used in diagnostics.
	Rel      string
	Root     string
	Kind     discovery.FileKind
	Content  string
	Config   *config.ValidationConfig
	Resolver *imports.Resolver
}

// Parse builds the document view for a kind: JSON manifests are decoded,
// everything else is treated as Markdown with optional frontmatter.
func Parse(kind discovery.FileKind, content string) *frontend.Document {
	if kind.IsJSON() {
		return frontend.ParseJSONDocument(content)
	}
	return frontend.ParseMarkdownDocument(content)
}

// Check parses in.Content and runs every enabled validator for in.Kind. A file
// that fails to parse gets exactly one parse diagnostic. The result is sorted.
func (r *Registry) Check(in Input) []types.Diagnostic {
	doc := Parse(in.Kind, in.Content)
	em := NewEmitter(r, in.Config)
	ctx := &Context{
		Emitter: em,
		Path:    in.Path,
		Rel:     in.Rel,
		Root:    in.Root,
		Kind:    in.Kind,
		Doc:     doc,
		Config:  em.cfg,
		Imports: in.Resolver,
	}

	if doc.JSON != nil && doc.JSON.Err != nil {
		e := doc.JSON.Err
		ctx.Report(RuleParseJSON, e.Line, e.Column, "invalid JSON: %s", e.Message)
		return em.Diagnostics()
	}
	if fm := doc.Frontmatter; fm != nil && fm.Err != nil {
		if _, owned := ownsFrontmatterErrors[in.Kind]; !owned {
			ctx.Report(RuleParseFrontmatter, max(fm.Err.Line, 1), 1, "invalid frontmatter: %s", fm.Err.Message)
		}
	}

	for _, v := range r.For(in.Kind, em.cfg) {
		r.run(v, ctx)
	}
	return em.Diagnostics()
}

// ReadFailure reports a file the read guard refused. The file gets exactly
// one io:: diagnostic, subject to the usual filters.
func (r *Registry) ReadFailure(rel string, err error, cfg *config.ValidationConfig) []types.Diagnostic {
	em := NewEmitter(r, cfg)
	id := safeio.Classify(err)

	var tooLarge *safeio.TooLargeError
	switch {
	case errors.As(err, &tooLarge):
		em.report(id, rel, 1, 1, "File skipped: %d bytes exceeds the %d byte limit", tooLarge.Size, tooLarge.Limit)
	case id == safeio.RuleSymlink:
		em.report(id, rel, 1, 1, "File skipped: symlinks are not followed")
	case id == safeio.RuleNotRegular:
		em.report(id, rel, 1, 1, "File skipped: not a regular file")
	case id == safeio.RuleNotFound:
		em.report(id, rel, 1, 1, "File skipped: it no longer exists")
	case id == safeio.RulePermission:
		em.report(id, rel, 1, 1, "File skipped: permission denied")
	default:
		cause := errors.Unwrap(err)
		if cause == nil {
			cause = err
		}
		em.report(id, rel, 1, 1, "File skipped: %v", cause)
	}
	return em.Diagnostics()
}

// Panicked reports a failure outside any validator, such as in a parser.
func (r *Registry) Panicked(rel string, rec any, cfg *config.ValidationConfig) []types.Diagnostic {
	em := NewEmitter(r, cfg)
	em.report(RulePanic, rel, 1, 1, "validation failed: %v", rec)
	return em.Diagnostics()
}

// run calls v, turning a panic into an engine::panic diagnostic. Diagnostics
// emitted before the panic are kept.
func (r *Registry) run(v Validator, ctx *Context) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.L().Warn("validator panicked",
				zap.String("validator", v.Name()),
				zap.String("file", ctx.Rel),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			ctx.Report(RulePanic, 1, 1, "validator %s failed: %v", v.Name(), rec)
		}
	}()
	v.Validate(ctx)
}

// Describe formats a rule for logs and listings.
func (r Rule) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s, %s]", r.ID, r.Name, r.Severity, r.Category)
	if r.Version != nil {
		fmt.Fprintf(&b, " requires %s", r.Version)
	}
	return b.String()
}
