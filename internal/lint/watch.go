package lint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/logger"
	"github.com/dotcommander/agentlint/internal/types"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 300 * time.Millisecond

// ResultHandler receives each run that changed the outcome. err is set when
// a run could not complete; res may then be a partial, aborted result.
type ResultHandler func(res *RunResult, err error)

// Watcher re-validates a project whenever files under it change.
type Watcher struct {
	root     string
	cfg      *config.ValidationConfig
	debounce time.Duration
	onResult ResultHandler

	fsw  *fsnotify.Watcher
	last []types.Diagnostic
	ran  bool
}

// NewWatcher creates a watcher over root. It does not watch anything until
// Run is called.
func NewWatcher(root string, cfg *config.ValidationConfig, onResult ResultHandler) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Watcher{
		root:     absRoot,
		cfg:      cfg,
		debounce: DefaultDebounce,
		onResult: onResult,
	}, nil
}

// SetDebounce overrides the settle window.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Run validates once, then again after every settled burst of changes,
// until ctx is done. The handler is only called when the diagnostics differ
// from the previous run.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.fsw = fsw
	defer fsw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.validate(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						logger.L().Debug("watch add failed", zap.String("dir", event.Name), zap.Error(err))
					}
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.validate(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.L().Warn("watch error", zap.Error(err))
		}
	}
}

// validate runs the project and reports it when the outcome changed.
func (w *Watcher) validate(ctx context.Context) {
	res, err := ValidateProject(ctx, w.root, w.cfg)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		w.ran = false
		w.last = nil
		if w.onResult != nil {
			w.onResult(res, err)
		}
		return
	}
	if w.ran && slices.EqualFunc(w.last, res.Diagnostics, sameDiagnostic) {
		logger.L().Debug("watch run unchanged", zap.Int("diagnostics", len(res.Diagnostics)))
		return
	}
	w.ran = true
	w.last = res.Diagnostics
	if w.onResult != nil {
		w.onResult(res, nil)
	}
}

// addRecursive watches dir and every directory under it that discovery
// would descend into.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && discovery.IsPrunedDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant drops events inside pruned directories and the fixer's own
// temporary files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if discovery.IsPrunedDir(part) {
			return false
		}
	}
	return !strings.Contains(filepath.Base(event.Name), ".agentlint-")
}

func sameDiagnostic(a, b types.Diagnostic) bool {
	return a.File == b.File &&
		a.Line == b.Line &&
		a.Column == b.Column &&
		a.Rule == b.Rule &&
		a.Severity == b.Severity &&
		a.Message == b.Message
}
