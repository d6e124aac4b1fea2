package lint

import (
	"errors"
	"fmt"
	"time"

	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/fix"
	"github.com/dotcommander/agentlint/internal/types"
)

// ErrInvalidRoot is returned when the root is missing or not a directory.
var ErrInvalidRoot = discovery.ErrInvalidRoot

// ErrFileLimit matches every *FileLimitError.
var ErrFileLimit = errors.New("file limit exceeded")

// FileLimitError reports a discovery result larger than the configured
// ceiling while Force is unset.
type FileLimitError struct {
	Count int
	Limit int
}

func (e *FileLimitError) Error() string {
	return fmt.Sprintf("found %d files, more than the limit of %d (raise maxFiles or use --force)", e.Count, e.Limit)
}

func (e *FileLimitError) Is(target error) bool {
	return target == ErrFileLimit
}

// State is the phase a run is in. A run only moves forward, or to Aborted.
type State int

const (
	StateDiscovering State = iota
	StateDispatched
	StateCollecting
	StateSorted
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateDispatched:
		return "dispatched"
	case StateCollecting:
		return "collecting"
	case StateSorted:
		return "sorted"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RunResult is the outcome of one validation run.
type RunResult struct {
	RunID        string             `json:"runId"`
	Root         string             `json:"root"`
	State        State              `json:"state"`
	FilesChecked int                `json:"filesChecked"`
	Diagnostics  []types.Diagnostic `json:"diagnostics"`
	Summary      types.Summary      `json:"summary"`
	Duration     time.Duration      `json:"-"`
	// BaselineIgnored counts diagnostics removed by a baseline.
	BaselineIgnored int `json:"baselineIgnored,omitempty"`

	// hashes maps each read file to the sha256 of the content validated.
	hashes map[string]string
}

// FixPlan collects the fixes at or above min, pinned to the content this
// run validated so that files edited since are rejected as stale.
func (r *RunResult) FixPlan(min types.Certainty) *fix.Plan {
	return fix.Compute(r.Diagnostics, min).Pin(r.hashes)
}

// HasFailures reports whether any diagnostic is at or above floor.
func (r *RunResult) HasFailures(floor types.Severity) bool {
	for _, d := range r.Diagnostics {
		if d.Severity.AtLeast(floor) {
			return true
		}
	}
	return false
}

func (r *RunResult) setDiagnostics(diags []types.Diagnostic) {
	if diags == nil {
		diags = []types.Diagnostic{}
	}
	r.Diagnostics = diags
	r.Summary = types.Summarize(diags)
}
