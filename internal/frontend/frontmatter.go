package frontend

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ValueKind is the shape of a frontmatter value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueBool
	ValueList
	ValueMap
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueBool:
		return "bool"
	case ValueList:
		return "list"
	case ValueMap:
		return "map"
	default:
		return "null"
	}
}

// Field is one top-level frontmatter entry. Positions are absolute within the file.
type Field struct {
	Key  string
	Kind ValueKind
	Str  string
	Bool bool
	List []string
	Node *yaml.Node

	Line   int
	Column int

	// KeyStart/KeyEnd span the key text. ValueStart/ValueEnd span the
	// scalar's text (inside any quotes); both are -1 when the value is not a
	// single-line scalar.
	KeyStart   int
	KeyEnd     int
	ValueStart int
	ValueEnd   int
}

// HasValueSpan reports whether the scalar value can be targeted by a fix.
func (f Field) HasValueSpan() bool {
	return f.ValueStart >= 0 && f.ValueEnd >= f.ValueStart
}

// ParseError describes malformed frontmatter.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Frontmatter represents parsed frontmatter data
type Frontmatter struct {
	Present bool
	Raw     string
	Fields  []Field
	Err     *ParseError

	OpenLine   int
	CloseLine  int
	RawStart   int
	BodyOffset int
	Body       string

	index map[string]int
}

// Get returns the first field named key.
func (fm *Frontmatter) Get(key string) (Field, bool) {
	if fm == nil || fm.index == nil {
		return Field{}, false
	}
	i, ok := fm.index[key]
	if !ok {
		return Field{}, false
	}
	return fm.Fields[i], true
}

// Has reports whether key is present.
func (fm *Frontmatter) Has(key string) bool {
	_, ok := fm.Get(key)
	return ok
}

// String returns the scalar text for key. Lists are joined with ", ".
func (fm *Frontmatter) String(key string) (string, bool) {
	f, ok := fm.Get(key)
	if !ok {
		return "", false
	}
	switch f.Kind {
	case ValueString:
		return f.Str, true
	case ValueBool:
		return strconv.FormatBool(f.Bool), true
	case ValueList:
		return strings.Join(f.List, ", "), true
	case ValueNull:
		return "", true
	}
	return "", false
}

// Keys returns field names in document order.
func (fm *Frontmatter) Keys() []string {
	if fm == nil {
		return nil
	}
	keys := make([]string, 0, len(fm.Fields))
	for _, f := range fm.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

var yamlErrLine = regexp.MustCompile(`line (\d+)`)

// ParseFrontmatter extracts a leading ----delimited YAML block from content.
// A missing closing delimiter means there is no frontmatter and the whole
// file is body. Malformed YAML is reported through Err and the body is still
// returned so body-level rules keep working.
func ParseFrontmatter(content string) *Frontmatter {
	fm := &Frontmatter{Body: content}

	start := 0
	if strings.HasPrefix(content, "\ufeff") {
		start = len("\ufeff")
	}
	firstEnd := strings.IndexByte(content[start:], '\n')
	if firstEnd < 0 || !isDelimiter(content[start:start+firstEnd]) {
		return fm
	}

	rawStart := start + firstEnd + 1
	pos := rawStart
	line := 2
	closeAt, closeEnd := -1, -1
	for pos <= len(content) {
		nl := strings.IndexByte(content[pos:], '\n')
		end := len(content)
		next := len(content) + 1
		if nl >= 0 {
			end = pos + nl
			next = end + 1
		}
		if isDelimiter(content[pos:end]) {
			closeAt = pos
			closeEnd = next
			break
		}
		if nl < 0 {
			break
		}
		pos = next
		line++
	}
	if closeAt < 0 {
		return fm
	}
	if closeEnd > len(content) {
		closeEnd = len(content)
	}

	fm.Present = true
	fm.OpenLine = 1
	fm.CloseLine = line
	fm.RawStart = rawStart
	fm.Raw = content[rawStart:closeAt]
	fm.BodyOffset = closeEnd
	fm.Body = content[closeEnd:]

	fm.decode()
	return fm
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == "---"
}

func (fm *Frontmatter) decode() {
	fm.index = make(map[string]int)
	if strings.TrimSpace(fm.Raw) == "" {
		return
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(fm.Raw), &doc); err != nil {
		fm.Err = &ParseError{Message: cleanYAMLError(err)}
		if m := yamlErrLine.FindStringSubmatch(err.Error()); m != nil {
			n, _ := strconv.Atoi(m[1])
			fm.Err.Line = fm.OpenLine + n
		}
		return
	}
	if len(doc.Content) == 0 {
		return
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		fm.Err = &ParseError{Line: fm.OpenLine + root.Line, Message: "frontmatter is not a key/value mapping"}
		return
	}

	rawLines := strings.Split(fm.Raw, "\n")
	lineOffsets := make([]int, len(rawLines))
	off := 0
	for i, l := range rawLines {
		lineOffsets[i] = off
		off += len(l) + 1
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		f := Field{
			Key:        k.Value,
			Node:       v,
			Line:       fm.OpenLine + k.Line,
			Column:     k.Column,
			KeyStart:   -1,
			KeyEnd:     -1,
			ValueStart: -1,
			ValueEnd:   -1,
		}
		classify(&f, v)

		if ks, ok := scalarSpan(rawLines, lineOffsets, k); ok {
			f.KeyStart = fm.RawStart + ks
			f.KeyEnd = f.KeyStart + len(k.Value)
		}
		if v.Kind == yaml.ScalarNode && v.Line == k.Line {
			if vs, ok := scalarSpan(rawLines, lineOffsets, v); ok {
				f.ValueStart = fm.RawStart + vs
				f.ValueEnd = f.ValueStart + len(v.Value)
			}
		}

		if _, dup := fm.index[f.Key]; !dup {
			fm.index[f.Key] = len(fm.Fields)
		}
		fm.Fields = append(fm.Fields, f)
	}
}

func classify(f *Field, v *yaml.Node) {
	switch v.Kind {
	case yaml.ScalarNode:
		switch v.Tag {
		case "!!null":
			f.Kind = ValueNull
		case "!!bool":
			f.Kind = ValueBool
			f.Bool, _ = strconv.ParseBool(strings.ToLower(v.Value))
			f.Str = v.Value
		default:
			f.Kind = ValueString
			f.Str = v.Value
		}
	case yaml.SequenceNode:
		f.Kind = ValueList
		for _, item := range v.Content {
			if item.Kind == yaml.ScalarNode {
				f.List = append(f.List, item.Value)
				continue
			}
			out, err := yaml.Marshal(item)
			if err == nil {
				f.List = append(f.List, strings.TrimSpace(string(out)))
			}
		}
	case yaml.AliasNode:
		if v.Alias != nil {
			classify(f, v.Alias)
		}
	default:
		f.Kind = ValueMap
		if out, err := yaml.Marshal(v); err == nil {
			f.Str = strings.TrimSpace(string(out))
		}
	}
}

// scalarSpan locates a single-line scalar's text within the raw YAML and
// returns its byte offset relative to the start of the raw block.
func scalarSpan(lines []string, offsets []int, n *yaml.Node) (int, bool) {
	if n.Kind != yaml.ScalarNode || n.Line < 1 || n.Line > len(lines) || n.Value == "" {
		return 0, false
	}
	if n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return 0, false
	}
	text := lines[n.Line-1]
	col := runeColumnToByte(text, n.Column-1)
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		col++
	}
	if col > len(text) || !strings.HasPrefix(text[col:], n.Value) {
		return 0, false
	}
	return offsets[n.Line-1] + col, true
}

func runeColumnToByte(s string, runes int) int {
	i := 0
	for n := 0; n < runes && i < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

func cleanYAMLError(err error) string {
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	if i := strings.Index(msg, ": "); i >= 0 && strings.HasPrefix(msg, "line ") {
		msg = msg[i+2:]
	}
	return msg
}
