package fix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/logger"
	"github.com/dotcommander/agentlint/internal/safeio"
)

var (
	// ErrStale means the file changed after its diagnostics were computed.
	ErrStale = errors.New("file changed since it was validated")
	// ErrInvalidUTF8 means applying the edits would leave invalid UTF-8.
	ErrInvalidUTF8 = errors.New("fixed content is not valid UTF-8")
)

// Skip reasons recorded for edits that were not applied.
const (
	SkipOutOfBounds = "out of bounds"
	SkipInverted    = "start after end"
	SkipSplitsRune  = "splits a UTF-8 code point"
	SkipOverlap     = "overlaps an applied edit"
	SkipSibling     = "another edit of the same fix was skipped"
)

// Options controls Apply.
type Options struct {
	// Root is the directory plan paths are relative to.
	Root string
	// DryRun computes results and previews without writing.
	DryRun bool
	// MaxFileSize bounds re-reads. Zero selects the engine default.
	MaxFileSize int64
	// Workers bounds concurrent files. Zero selects GOMAXPROCS.
	Workers int
}

// SkippedEdit is an edit that was left out, with the reason.
type SkippedEdit struct {
	PlannedEdit
	Reason string `json:"reason"`
}

// FileResult is the outcome for one file.
type FileResult struct {
	File    string        `json:"file"`
	Applied int           `json:"applied"`
	Skipped []SkippedEdit `json:"skipped,omitempty"`
	// Diff is a unified diff of the change, empty when nothing changed.
	Diff string `json:"diff,omitempty"`
	Err  error  `json:"-"`
}

// Result collects per-file outcomes in plan order.
type Result struct {
	Files  []FileResult `json:"files"`
	DryRun bool         `json:"dryRun"`
}

// AppliedCount is the number of edits applied over all files.
func (r *Result) AppliedCount() int {
	n := 0
	for _, f := range r.Files {
		n += f.Applied
	}
	return n
}

// SkippedCount is the number of edits skipped over all files.
func (r *Result) SkippedCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Skipped)
	}
	return n
}

// Err joins the per-file errors, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errors.Join(errs...)
}

// Apply applies plan file by file in parallel. A failure in one file is
// recorded in its FileResult and never stops the others; the returned error
// is only set when ctx is cancelled.
func Apply(ctx context.Context, plan *Plan, opts Options) (*Result, error) {
	res := &Result{DryRun: opts.DryRun}
	if plan.Empty() {
		return res, nil
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = config.DefaultMaxFileSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	res.Files = make([]FileResult, len(plan.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, fp := range plan.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Files[i] = applyFile(fp, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("apply fixes: %w", err)
	}

	logger.L().Debug("fixes applied",
		zap.Int("files", len(res.Files)),
		zap.Int("applied", res.AppliedCount()),
		zap.Int("skipped", res.SkippedCount()),
		zap.Bool("dry_run", opts.DryRun))
	return res, nil
}

func applyFile(fp *FilePlan, opts Options) FileResult {
	out := FileResult{File: fp.File}
	path := filepath.Join(opts.Root, filepath.FromSlash(fp.File))

	original, err := safeio.Read(path, opts.MaxFileSize)
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", fp.File, err)
		return out
	}
	if fp.Hash != "" && HashContent(original) != fp.Hash {
		out.Err = fmt.Errorf("%s: %w", fp.File, ErrStale)
		return out
	}

	fixed, applied, skipped := ApplyEdits(original, fp.Edits)
	out.Skipped = skipped
	if !utf8.Valid(fixed) {
		out.Err = fmt.Errorf("%s: %w", fp.File, ErrInvalidUTF8)
		return out
	}
	out.Applied = applied
	if applied == 0 {
		return out
	}
	out.Diff = Preview(fp.File, original, fixed)

	if opts.DryRun {
		return out
	}
	if err := writeAtomic(path, fixed); err != nil {
		out.Applied = 0
		out.Err = fmt.Errorf("%s: %w", fp.File, err)
	}
	return out
}

// ApplyEdits applies edits, which must be in plan order, to content and
// returns the new content with the applied count and the skipped edits.
// Edits sharing a Group are applied together or skipped together. content is
// never modified.
func ApplyEdits(content []byte, edits []PlannedEdit) ([]byte, int, []SkippedEdit) {
	group := func(i int) int {
		if edits[i].Group != 0 {
			return edits[i].Group
		}
		return -(i + 1)
	}

	// Rejecting a group that already placed an edit frees that span, so the
	// pass starts over. Each restart rejects one more group.
	reasons := make([]string, len(edits))
	rejected := make(map[int]bool)
	for pass := true; pass; {
		pass = false
		lowest := -1
		placed := make(map[int]bool)
		for i, e := range edits {
			if rejected[group(i)] {
				continue
			}
			reason := checkEdit(content, e.Start, e.End)
			if reason == "" && lowest >= 0 && (e.End > lowest || e.Start == lowest) {
				reason = SkipOverlap
			}
			if reason != "" {
				reasons[i] = reason
				rejected[group(i)] = true
				if placed[group(i)] {
					pass = true
					break
				}
				continue
			}
			placed[group(i)] = true
			lowest = e.Start
		}
	}

	buf := append([]byte(nil), content...)
	var skipped []SkippedEdit
	applied := 0
	for i, e := range edits {
		if rejected[group(i)] {
			reason := reasons[i]
			if reason == "" {
				reason = SkipSibling
			}
			skipped = append(skipped, SkippedEdit{PlannedEdit: e, Reason: reason})
			continue
		}
		next := make([]byte, 0, len(buf)-(e.End-e.Start)+len(e.Replacement))
		next = append(next, buf[:e.Start]...)
		next = append(next, e.Replacement...)
		next = append(next, buf[e.End:]...)
		buf = next
		applied++
	}
	return buf, applied, skipped
}

func checkEdit(content []byte, start, end int) string {
	switch {
	case start < 0 || end > len(content):
		return SkipOutOfBounds
	case start > end:
		return SkipInverted
	case !runeBoundary(content, start) || !runeBoundary(content, end):
		return SkipSplitsRune
	}
	return ""
}

func runeBoundary(b []byte, i int) bool {
	return i == len(b) || utf8.RuneStart(b[i])
}

// writeAtomic replaces path through a temp file in the same directory so a
// crash never leaves a half-written file behind.
func writeAtomic(path string, data []byte) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+name+".agentlint-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	success = true
	return nil
}
