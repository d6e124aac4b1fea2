package frontend

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/dotcommander/agentlint/internal/textutil"
)

// JSONError is a syntax failure mapped back to a source position.
type JSONError struct {
	Offset  int
	Line    int
	Column  int
	Message string
}

func (e *JSONError) Error() string {
	return e.Message
}

// JSONDoc is a decoded JSON manifest plus the index used to map positions.
type JSONDoc struct {
	Root    any
	Err     *JSONError
	content string
	idx     *textutil.LineIndex
}

// ParseJSON decodes content. Numbers are kept as json.Number so integer
// checks do not lose precision. A syntax failure yields Err and a nil Root.
func ParseJSON(content string, idx *textutil.LineIndex) *JSONDoc {
	if idx == nil {
		idx = textutil.NewLineIndex(content)
	}
	doc := &JSONDoc{content: content, idx: idx}

	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var root any
	err := dec.Decode(&root)
	if err == nil {
		off := int(dec.InputOffset())
		rest := content[off:]
		if trimmed := strings.TrimLeft(rest, " \t\r\n"); trimmed != "" {
			at := off + len(rest) - len(trimmed)
			line, col := idx.Position(at)
			doc.Err = &JSONError{Offset: at, Line: line, Column: col, Message: "invalid character after top-level value"}
			return doc
		}
	}
	if err != nil {
		doc.Err = doc.mapError(err)
		return doc
	}
	doc.Root = root
	return doc
}

func (d *JSONDoc) mapError(err error) *JSONError {
	offset := len(d.content)
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syn):
		offset = int(syn.Offset)
	case errors.As(err, &typ):
		offset = int(typ.Offset)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		offset = len(d.content)
	}
	msg := err.Error()
	if strings.TrimSpace(d.content) == "" {
		msg = "empty document"
		offset = 0
	}
	if offset > 0 && offset <= len(d.content) {
		// Decoder offsets point just past the offending byte.
		offset--
	}
	line, col := d.idx.Position(offset)
	return &JSONError{Offset: offset, Line: line, Column: col, Message: msg}
}

// Object returns the root as an object when it is one.
func (d *JSONDoc) Object() (map[string]any, bool) {
	m, ok := d.Root.(map[string]any)
	return m, ok
}

// KeyPosition returns the 1-based position of the first occurrence of "key":.
// Returns (1, 1) when the key cannot be located so diagnostics still anchor.
func (d *JSONDoc) KeyPosition(key string) (int, int) {
	start, _, ok := d.KeySpan(key, 0)
	if !ok {
		return 1, 1
	}
	return d.idx.Position(start)
}

// Span is the byte span of a quoted object key, quotes included.
type Span struct {
	Start, End int
}

// ObjectKeys returns the key spans of the object reached by following path
// from the root object. A repeated key keeps its first span. The result is
// nil when the path does not lead to an object.
func (d *JSONDoc) ObjectKeys(path ...string) map[string]Span {
	dec := json.NewDecoder(strings.NewReader(d.content))
	for depth := 0; ; depth++ {
		if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
			return nil
		}
		last := depth == len(path)
		var spans map[string]Span
		if last {
			spans = make(map[string]Span)
		}
		descended := false
		for dec.More() {
			prev := int(dec.InputOffset())
			tok, err := dec.Token()
			if err != nil {
				return nil
			}
			name, ok := tok.(string)
			if !ok {
				return nil
			}
			end := int(dec.InputOffset())
			if last {
				if _, seen := spans[name]; !seen {
					spans[name] = Span{Start: prev + strings.IndexByte(d.content[prev:end], '"'), End: end}
				}
			} else if name == path[depth] {
				descended = true
				break
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil
			}
		}
		if last {
			return spans
		}
		if !descended {
			return nil
		}
	}
}

// KeySpan returns the span of the quoted key (quotes included) at or after from.
func (d *JSONDoc) KeySpan(key string, from int) (int, int, bool) {
	if from < 0 || from > len(d.content) {
		return 0, 0, false
	}
	re, err := regexp.Compile(`("` + regexp.QuoteMeta(key) + `")\s*:`)
	if err != nil {
		return 0, 0, false
	}
	loc := re.FindStringSubmatchIndex(d.content[from:])
	if loc == nil {
		return 0, 0, false
	}
	return from + loc[2], from + loc[3], true
}

// ValueSpan locates a unique "key": <serialized> pair and returns the span of
// the serialized value only. ok is false when the pair is absent or ambiguous.
func (d *JSONDoc) ValueSpan(key, serialized string) (int, int, bool) {
	re, err := regexp.Compile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*(` + regexp.QuoteMeta(serialized) + `)`)
	if err != nil {
		return 0, 0, false
	}
	all := re.FindAllStringSubmatchIndex(d.content, 2)
	if len(all) != 1 {
		return 0, 0, false
	}
	return all[0][2], all[0][3], true
}

// LineSpan locates a unique whole line matching "key": "value" (with an
// optional trailing comma) and returns its span including the newline.
func (d *JSONDoc) LineSpan(key, value string) (int, int, bool) {
	q, _ := json.Marshal(value)
	re, err := regexp.Compile(`(?m)^[ \t]*"` + regexp.QuoteMeta(key) + `"\s*:\s*` + regexp.QuoteMeta(string(q)) + `[ \t]*,?[ \t]*\r?\n?`)
	if err != nil {
		return 0, 0, false
	}
	all := re.FindAllStringIndex(d.content, 2)
	if len(all) != 1 {
		return 0, 0, false
	}
	return all[0][0], all[0][1], true
}

// Position maps an offset to a 1-based line and column.
func (d *JSONDoc) Position(offset int) (int, int) {
	return d.idx.Position(offset)
}

// Compact re-encodes v the way it would appear as a JSON literal.
func Compact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

// ElementOffset returns the offset of the opening brace of the index-th object
// in the first array following "key":. Strings are skipped while counting.
func (d *JSONDoc) ElementOffset(key string, index int) (int, bool) {
	_, end, ok := d.KeySpan(key, 0)
	if !ok {
		return 0, false
	}
	open := strings.IndexByte(d.content[end:], '[')
	if open < 0 {
		return 0, false
	}
	depth, count := 0, 0
	inString, escaped := false, false
	for i := end + open + 1; i < len(d.content); i++ {
		c := d.content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				if count == index {
					return i, true
				}
				count++
			}
			depth++
		case '}':
			depth--
		case ']':
			if depth == 0 {
				return 0, false
			}
		}
	}
	return 0, false
}
