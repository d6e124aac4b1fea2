package rules

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dotcommander/agentlint/internal/imports"
)

// importsValidator follows @imports from the current file and checks local
// Markdown links.
type importsValidator struct{}

func (importsValidator) Name() string { return "imports" }

func (importsValidator) Rules() []string {
	return []string{
		"CC-MEM-001", "CC-MEM-002", "CC-MEM-003",
		"REF-001", "REF-002", "REF-003", "REF-004", "REF-005",
	}
}

func (importsValidator) Validate(ctx *Context) {
	md := ctx.Doc.Markdown
	if md == nil {
		return
	}
	if ctx.Imports != nil && len(md.Imports) > 0 {
		for _, f := range ctx.Imports.Walk(ctx.Path, md.Imports) {
			reportImportFinding(ctx, f)
		}
	}
	checkLinks(ctx)
}

// isMemoryImporter reports whether imports in path follow the memory file
// rules rather than the generic reference rules.
func isMemoryImporter(path string) bool {
	switch filepath.Base(path) {
	case "CLAUDE.md", "CLAUDE.local.md":
		return true
	}
	return false
}

func reportImportFinding(ctx *Context, f imports.Finding) {
	memory := isMemoryImporter(f.File)
	pick := func(mem, ref string) string {
		if memory {
			return mem
		}
		return ref
	}

	var id string
	switch f.Outcome {
	case imports.NotFound:
		id = pick("CC-MEM-001", "REF-001")
	case imports.Escapes:
		id = "REF-003"
	case imports.CycleDetected:
		id = pick("CC-MEM-002", "REF-004")
	case imports.DepthExceeded:
		id = pick("CC-MEM-003", "REF-005")
	default:
		return
	}
	if !ctx.Enabled(id) || !ctx.Imports.Cache().Claim(id+"|"+f.Key) {
		return
	}

	d := ctx.Diag(id, f.Import.Line, f.Import.Column, "%s", importMessage(ctx, f))
	d.File = ctx.Relative(f.File)
	ctx.Emit(d)
}

func importMessage(ctx *Context, f imports.Finding) string {
	switch f.Outcome {
	case imports.NotFound:
		return "Import not found: @" + f.Import.Path
	case imports.Escapes:
		return "Import escapes the project root: @" + f.Import.Path
	case imports.CycleDetected:
		chain := make([]string, len(f.Chain))
		for i, p := range f.Chain {
			chain[i] = ctx.Relative(p)
		}
		return "Circular @import detected: " + strings.Join(chain, " -> ")
	default:
		return "Import depth exceeds " + strconv.Itoa(ctx.Imports.MaxDepth()) + " hops at @" + f.Import.Path
	}
}

var externalLinkPrefixes = []string{
	"http://", "https://", "mailto:", "tel:", "data:", "ftp://", "file://", "//",
}

func checkLinks(ctx *Context) {
	if !ctx.Enabled("REF-002") {
		return
	}
	for _, l := range ctx.Doc.Markdown.Links {
		target := strings.TrimSpace(l.Target)
		if target == "" || strings.HasPrefix(target, "#") || isExternalLink(target) {
			continue
		}
		if i := strings.IndexAny(target, "#?"); i >= 0 {
			target = target[:i]
		}
		if target == "" {
			continue
		}
		if decoded, err := url.PathUnescape(target); err == nil {
			target = decoded
		}
		var p string
		if filepath.IsAbs(target) {
			p = target
		} else {
			p = filepath.Join(ctx.Dir(), filepath.FromSlash(target))
		}
		if _, err := os.Stat(p); err == nil {
			continue
		}
		ctx.Report("REF-002", l.Line, l.Column, "Link target not found: %s", l.Target)
	}
}

func isExternalLink(target string) bool {
	lower := strings.ToLower(target)
	for _, p := range externalLinkPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
