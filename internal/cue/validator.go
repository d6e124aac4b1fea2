// Package cue checks decoded JSON manifests against embedded CUE schemas.
package cue

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schemas/*.cue
var schemaFS embed.FS

// Schema definitions exposed by the embedded files.
const (
	DefPlugin = "#Plugin"
	DefTool   = "#Tool"
)

// Violation is one schema failure. Path is dot-separated and empty for the
// value itself.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Validator holds the compiled schemas. A cue.Context is not safe for
// concurrent use, so every check holds mu.
type Validator struct {
	mu      sync.Mutex
	ctx     *cue.Context
	schemas map[string]cue.Value
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	v := &Validator{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("reading embedded schemas: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".cue" {
			continue
		}
		content, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", entry.Name(), err)
		}
		val := v.ctx.CompileBytes(content, cue.Filename(entry.Name()))
		if err := val.Err(); err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", entry.Name(), err)
		}
		v.schemas[strings.TrimSuffix(entry.Name(), ".cue")] = val
	}
	if len(v.schemas) == 0 {
		return nil, fmt.Errorf("no CUE schemas embedded")
	}
	return v, nil
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
	defaultErr  error
)

// Default returns the shared validator built from the embedded schemas.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultV, defaultErr = NewValidator()
	})
	return defaultV, defaultErr
}

// Check unifies data with definition def of the named schema file and
// returns the violations sorted by path. Missing fields are not violations;
// callers check required fields themselves so they can report them by name.
func (v *Validator) Check(schema, def string, data any) ([]Violation, error) {
	// Round-trip through JSON so json.Number stays numeric in CUE.
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding value for %s: %w", def, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	file, ok := v.schemas[schema]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
	definition := file.LookupPath(cue.ParsePath(def))
	if !definition.Exists() {
		return nil, fmt.Errorf("schema %q has no definition %s", schema, def)
	}

	value := v.ctx.CompileBytes(raw, cue.Filename("input.json"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling value for %s: %w", def, err)
	}

	unified := definition.Unify(value)
	err = unified.Err()
	if err == nil {
		err = unified.Validate()
	}
	if err == nil {
		return nil, nil
	}
	return violations(err), nil
}

func violations(err error) []Violation {
	seen := make(map[Violation]bool)
	var out []Violation
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		viol := Violation{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if seen[viol] {
			continue
		}
		seen[viol] = true
		out = append(out, viol)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Message < out[j].Message
	})
	return out
}
