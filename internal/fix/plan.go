// Package fix turns diagnostic fixes into per-file edit plans and applies
// them to disk.
package fix

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/dotcommander/agentlint/internal/types"
)

// PlannedEdit is one edit together with the fix it came from.
type PlannedEdit struct {
	types.Edit
	Rule        string          `json:"rule"`
	Description string          `json:"description"`
	Certainty   types.Certainty `json:"certainty"`
	// Group ties together the edits of one fix within a file; they are
	// applied all together or not at all. Zero means the edit stands alone.
	Group int `json:"group,omitempty"`
}

// FilePlan holds the edits for one file, ordered by descending start with
// the rule ID as tie-break.
type FilePlan struct {
	// File is the slash-separated path relative to the project root, as
	// reported in diagnostics.
	File string `json:"file"`
	// Hash is the hex sha256 of the content the diagnostics were computed
	// from. An empty hash disables the staleness check.
	Hash  string        `json:"hash,omitempty"`
	Edits []PlannedEdit `json:"edits"`
}

// Plan is every file that has at least one eligible edit, sorted by path.
type Plan struct {
	Files []*FilePlan `json:"files"`
}

// Compute collects the fixes in diags whose certainty meets min.
func Compute(diags []types.Diagnostic, min types.Certainty) *Plan {
	byFile := make(map[string]*FilePlan)
	groups := make(map[string]int)
	for _, d := range diags {
		for _, f := range d.Fixes {
			if !f.Certainty.Meets(min) {
				continue
			}
			fp, ok := byFile[d.File]
			if !ok {
				fp = &FilePlan{File: d.File}
				byFile[d.File] = fp
			}
			groups[d.File]++
			for _, e := range f.Edits {
				fp.Edits = append(fp.Edits, PlannedEdit{
					Edit:        e,
					Rule:        d.Rule,
					Description: f.Description,
					Certainty:   f.Certainty,
					Group:       groups[d.File],
				})
			}
		}
	}

	plan := &Plan{}
	for _, fp := range byFile {
		sortEdits(fp.Edits)
		plan.Files = append(plan.Files, fp)
	}
	sort.Slice(plan.Files, func(i, j int) bool { return plan.Files[i].File < plan.Files[j].File })
	return plan
}

func sortEdits(edits []PlannedEdit) {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Start != edits[j].Start {
			return edits[i].Start > edits[j].Start
		}
		if edits[i].Rule != edits[j].Rule {
			return edits[i].Rule < edits[j].Rule
		}
		return edits[i].End > edits[j].End
	})
}

// Pin records the content hash each file had when it was validated. Files
// missing from hashes keep their current hash.
func (p *Plan) Pin(hashes map[string]string) *Plan {
	for _, fp := range p.Files {
		if h, ok := hashes[fp.File]; ok {
			fp.Hash = h
		}
	}
	return p
}

// Empty reports whether the plan has nothing to apply.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Files) == 0
}

// EditCount is the number of planned edits across all files.
func (p *Plan) EditCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, fp := range p.Files {
		n += len(fp.Edits)
	}
	return n
}

// HashContent returns the hex sha256 used for staleness checks.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
