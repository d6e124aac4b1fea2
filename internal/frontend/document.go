// Package frontend turns raw file content into the structural view rules evaluate:
// frontmatter fields, a Markdown outline with tag balance and import directives,
// and decoded JSON manifests. Parsing goes only as deep as rules need.
package frontend

import (
	"github.com/dotcommander/agentlint/internal/textutil"
)

// Document is the parsed form of one file. It is owned by the validation call
// that produced it.
type Document struct {
	Content     string
	Lines       *textutil.LineIndex
	Frontmatter *Frontmatter
	Markdown    *Markdown
	JSON        *JSONDoc
}

// ParseMarkdownDocument parses frontmatter and scans the body that follows it.
// A frontmatter parse error does not stop the body scan.
func ParseMarkdownDocument(content string) *Document {
	idx := textutil.NewLineIndex(content)
	fm := ParseFrontmatter(content)
	from := 0
	if fm.Present {
		from = fm.BodyOffset
	}
	return &Document{
		Content:     content,
		Lines:       idx,
		Frontmatter: fm,
		Markdown:    ScanMarkdown(content, from, idx),
	}
}

// ParseJSONDocument decodes a JSON manifest.
func ParseJSONDocument(content string) *Document {
	idx := textutil.NewLineIndex(content)
	return &Document{
		Content: content,
		Lines:   idx,
		JSON:    ParseJSON(content, idx),
	}
}

// Size is the raw byte length of the document.
func (d *Document) Size() int {
	return len(d.Content)
}

// Body returns the content after any frontmatter block.
func (d *Document) Body() string {
	if d.Frontmatter != nil && d.Frontmatter.Present {
		return d.Frontmatter.Body
	}
	return d.Content
}

// BodyOffset is the byte offset at which the body starts.
func (d *Document) BodyOffset() int {
	if d.Frontmatter != nil && d.Frontmatter.Present {
		return d.Frontmatter.BodyOffset
	}
	return 0
}

// BodyStartLine is the 1-based line on which the body starts.
func (d *Document) BodyStartLine() int {
	line, _ := d.Lines.Position(d.BodyOffset())
	return line
}

// Position maps a byte offset to a 1-based line and column.
func (d *Document) Position(offset int) (int, int) {
	return d.Lines.Position(offset)
}
