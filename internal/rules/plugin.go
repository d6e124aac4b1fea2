package rules

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/dotcommander/agentlint/internal/cue"
	"github.com/dotcommander/agentlint/internal/logger"
)

// Directories that belong at the plugin root, not inside .claude-plugin/.
var pluginComponentDirs = []string{"skills", "agents", "hooks", "commands"}

var requiredPluginFields = []string{"name", "description", "version"}

// pluginValidator checks .claude-plugin/plugin.json manifests.
type pluginValidator struct{}

func (pluginValidator) Name() string { return "plugin" }

func (pluginValidator) Rules() []string {
	return []string{"CC-PL-001", "CC-PL-002", "CC-PL-003", "CC-PL-004"}
}

func (pluginValidator) Validate(ctx *Context) {
	inPluginDir := filepath.Base(ctx.Dir()) == ".claude-plugin"
	if !inPluginDir {
		ctx.Report("CC-PL-001", 1, 1, "plugin.json must live in a .claude-plugin/ directory")
	}
	if inPluginDir && ctx.Enabled("CC-PL-002") {
		for _, dir := range pluginComponentDirs {
			if _, err := os.Stat(filepath.Join(ctx.Dir(), dir)); err == nil {
				ctx.Report("CC-PL-002", 1, 1, "'%s' must be at the plugin root, not inside .claude-plugin/", dir)
			}
		}
	}

	js := ctx.Doc.JSON
	root, ok := js.Object()
	if !ok {
		ctx.Report("CC-PL-002", 1, 1, "plugin manifest must be a JSON object")
		return
	}

	for _, field := range requiredPluginFields {
		s, isString := root[field].(string)
		if !isString || strings.TrimSpace(s) == "" {
			line, col := js.KeyPosition(field)
			ctx.Report("CC-PL-004", line, col, "plugin manifest is missing required field '%s'", field)
		}
	}

	if ctx.Enabled("CC-PL-002") {
		checkManifestSchema(ctx, cue.DefPlugin, "plugin", root, "plugin manifest")
	}

	if version, ok := root["version"].(string); ok {
		version = strings.TrimSpace(version)
		if version != "" && !isStrictSemver(version) {
			line, col := js.KeyPosition("version")
			ctx.Report("CC-PL-003", line, col, "plugin version '%s' is not valid semver (MAJOR.MINOR.PATCH)", version)
		}
	}
}

// isStrictSemver accepts MAJOR.MINOR.PATCH with optional prerelease and build
// suffixes and no leading "v".
func isStrictSemver(v string) bool {
	if strings.HasPrefix(v, "v") || !semver.IsValid("v"+v) {
		return false
	}
	core := v
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}

// checkManifestSchema reports CUE type violations of value against def
// under CC-PL-002. The path of the first offending key anchors the position.
func checkManifestSchema(ctx *Context, def, schema string, value any, what string) {
	violations, err := schemaViolations(def, schema, value)
	if err != nil {
		logger.L().Warn("schema check failed", zap.String("file", ctx.Rel), zap.Error(err))
		return
	}
	for _, viol := range violations {
		line, col := 1, 1
		if viol.Path != "" {
			key, _, _ := strings.Cut(viol.Path, ".")
			line, col = ctx.Doc.JSON.KeyPosition(key)
		}
		ctx.Report("CC-PL-002", line, col, "%s does not match schema: %s", what, viol)
	}
}

func schemaViolations(def, schema string, value any) ([]cue.Violation, error) {
	v, err := cue.Default()
	if err != nil {
		return nil, err
	}
	return v.Check(schema, def, value)
}
