// Package baseline records a snapshot of known diagnostics so that later
// runs only report new ones.
package baseline

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dotcommander/agentlint/internal/types"
)

// DefaultFile is the baseline file name at the project root.
const DefaultFile = ".agentlintbaseline.json"

const formatVersion = "1.0"

var (
	doubleQuoted = regexp.MustCompile(`"[^"]+"`)
	// Only quotes bounded by whitespace, so contractions survive.
	singleQuoted = regexp.MustCompile(`(^|\s)'([^']+)'(\s|$|[,.:;])`)
	numbers      = regexp.MustCompile(`\b\d+\b`)
)

// Baseline is a set of diagnostic fingerprints.
type Baseline struct {
	Version      string   `json:"version"`
	CreatedAt    string   `json:"created_at"`
	Fingerprints []string `json:"fingerprints"`
	index        map[string]bool
}

// Create builds a baseline from diags. Duplicate fingerprints collapse.
func Create(diags []types.Diagnostic) *Baseline {
	fingerprints := make([]string, 0, len(diags))
	index := make(map[string]bool)
	for _, d := range diags {
		fp := Fingerprint(d)
		if !index[fp] {
			fingerprints = append(fingerprints, fp)
			index[fp] = true
		}
	}
	sort.Strings(fingerprints)

	return &Baseline{
		Version:      formatVersion,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Fingerprints: fingerprints,
		index:        index,
	}
}

// Load reads a baseline file. A missing file yields (nil, nil).
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline file: %w", err)
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse baseline file: %w", err)
	}
	b.index = make(map[string]bool, len(b.Fingerprints))
	for _, fp := range b.Fingerprints {
		b.index[fp] = true
	}
	return &b, nil
}

// Save writes the baseline as indented JSON.
func (b *Baseline) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write baseline file: %w", err)
	}
	return nil
}

// IsKnown reports whether d is in the baseline. A nil baseline knows nothing.
func (b *Baseline) IsKnown(d types.Diagnostic) bool {
	if b == nil || b.index == nil {
		return false
	}
	return b.index[Fingerprint(d)]
}

// Filter splits diags into those not in the baseline and the ignored count.
// Order is preserved.
func (b *Baseline) Filter(diags []types.Diagnostic) ([]types.Diagnostic, int) {
	kept := make([]types.Diagnostic, 0, len(diags))
	ignored := 0
	for _, d := range diags {
		if b.IsKnown(d) {
			ignored++
			continue
		}
		kept = append(kept, d)
	}
	return kept, ignored
}

// Len is the number of fingerprints.
func (b *Baseline) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Fingerprints)
}

// Fingerprint hashes file, rule and the normalized message. Line numbers are
// left out because they shift as files are edited.
func Fingerprint(d types.Diagnostic) string {
	data := fmt.Sprintf("%s|%s|%s", d.File, d.Rule, normalizeMessage(d.Message))
	return fmt.Sprintf("%x", sha256.Sum256([]byte(data)))
}

// normalizeMessage replaces quoted values and numbers with placeholders so
// that similar findings share a fingerprint.
func normalizeMessage(msg string) string {
	msg = doubleQuoted.ReplaceAllString(msg, `"*"`)
	msg = singleQuoted.ReplaceAllString(msg, `$1'*'$3`)
	msg = numbers.ReplaceAllString(msg, `N`)
	return strings.Join(strings.Fields(msg), " ")
}
