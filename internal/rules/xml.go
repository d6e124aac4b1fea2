package rules

import (
	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/types"
)

// xmlValidator reports unbalanced XML-style tags in Markdown bodies.
type xmlValidator struct{}

func (xmlValidator) Name() string { return "xml" }

func (xmlValidator) Rules() []string { return []string{"XML-001", "XML-002", "XML-003"} }

func (xmlValidator) Validate(ctx *Context) {
	if ctx.Doc.Markdown == nil {
		return
	}
	for _, t := range ctx.Doc.Markdown.Tags {
		switch t.Kind {
		case frontend.TagUnclosed:
			ctx.Report("XML-001", t.Line, t.Column, "Unclosed XML tag '<%s>'", t.Name)
		case frontend.TagMismatch:
			ctx.Report("XML-002", t.Line, t.Column, "Expected '</%s>' but found '</%s>'", t.Expected, t.Name)
		case frontend.TagUnmatchedClosing:
			d := ctx.Diag("XML-003", t.Line, t.Column, "Unmatched closing tag '</%s>'", t.Name)
			ctx.Emit(d.WithFix(types.Delete(t.Start, t.End, "remove unmatched closing tag", types.CertaintyHigh)))
		}
	}
}
