// Package lint runs validation over a project: discovery, parallel per-file
// checks, project-level checks and deterministic ordering.
package lint

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dotcommander/agentlint/internal/config"
	"github.com/dotcommander/agentlint/internal/discovery"
	"github.com/dotcommander/agentlint/internal/fix"
	"github.com/dotcommander/agentlint/internal/imports"
	"github.com/dotcommander/agentlint/internal/logger"
	"github.com/dotcommander/agentlint/internal/rules"
	"github.com/dotcommander/agentlint/internal/safeio"
	"github.com/dotcommander/agentlint/internal/types"
)

// Orchestrator runs one validation over a root. It is not reusable: build a
// new one per run.
type Orchestrator struct {
	cfg      *config.ValidationConfig
	registry *rules.Registry
	log      *zap.Logger
	result   *RunResult
}

// fileOutcome is what one worker hands back.
type fileOutcome struct {
	rel     string
	diags   []types.Diagnostic
	hash    string
	content string
	read    bool
}

// NewOrchestrator creates an orchestrator. A nil cfg selects the defaults and
// a nil registry the built-in one.
func NewOrchestrator(cfg *config.ValidationConfig, registry *rules.Registry) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	if registry == nil {
		registry = defaultRegistry()
	}
	id := uuid.NewString()
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		log:      logger.With(zap.String("run_id", id)),
		result:   &RunResult{RunID: id, State: StateDiscovering, hashes: make(map[string]string)},
	}
}

var defaultRegistry = sync.OnceValue(func() *rules.Registry { return rules.NewRegistry(nil) })

func (o *Orchestrator) transition(s State) {
	o.result.State = s
	o.log.Debug("run state", zap.Stringer("state", s))
}

// abort marks the run aborted and returns the partial result with err.
func (o *Orchestrator) abort(err error) (*RunResult, error) {
	o.transition(StateAborted)
	o.result.setDiagnostics(nil)
	return o.result, err
}

// Run validates every file under root.
func (o *Orchestrator) Run(ctx context.Context, root string) (*RunResult, error) {
	start := time.Now()
	defer func() { o.result.Duration = time.Since(start) }()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return o.abort(fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err))
	}
	o.result.Root = absRoot

	o.transition(StateDiscovering)
	files, err := discovery.Walk(absRoot, discovery.WalkOptions{
		Exclude:       o.cfg.Exclude,
		NoIgnoreFiles: o.cfg.NoIgnoreFiles,
	})
	if err != nil {
		return o.abort(fmt.Errorf("discovery: %w", err))
	}
	o.log.Debug("discovery complete", zap.String("root", absRoot), zap.Int("files", len(files)))

	if o.cfg.MaxFiles > 0 && len(files) > o.cfg.MaxFiles && !o.cfg.Force {
		return o.abort(&FileLimitError{Count: len(files), Limit: o.cfg.MaxFiles})
	}

	outcomes, err := o.dispatch(ctx, absRoot, files)
	if err != nil {
		return o.abort(err)
	}

	o.transition(StateCollecting)
	var diags []types.Diagnostic
	project := make([]rules.ProjectFile, 0, len(outcomes))
	for _, out := range outcomes {
		diags = append(diags, out.diags...)
		if out.read {
			o.result.hashes[out.rel] = out.hash
			project = append(project, rules.ProjectFile{Rel: out.rel, Content: out.content})
		}
	}
	diags = append(diags, o.registry.CheckProject(project, o.cfg)...)
	o.result.FilesChecked = len(outcomes)

	types.SortDiagnostics(diags)
	o.transition(StateSorted)
	o.result.setDiagnostics(diags)

	o.transition(StateDone)
	o.log.Debug("run complete",
		zap.Int("files", o.result.FilesChecked),
		zap.Int("diagnostics", len(diags)),
		zap.Duration("elapsed", time.Since(start)))
	return o.result, nil
}

// RunFiles validates the given files only. Project-level checks are skipped
// because they need the whole tree.
func (o *Orchestrator) RunFiles(ctx context.Context, root string, files []discovery.File) (*RunResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return o.abort(fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err))
	}
	o.result.Root = absRoot

	outcomes, err := o.dispatch(ctx, absRoot, files)
	if err != nil {
		return o.abort(err)
	}

	o.transition(StateCollecting)
	var diags []types.Diagnostic
	for _, out := range outcomes {
		diags = append(diags, out.diags...)
		if out.read {
			o.result.hashes[out.rel] = out.hash
		}
	}
	o.result.FilesChecked = len(outcomes)
	types.SortDiagnostics(diags)
	o.transition(StateSorted)
	o.result.setDiagnostics(diags)
	o.transition(StateDone)
	return o.result, nil
}

// dispatch checks files on the worker pool and returns the outcomes in the
// order the files were given.
func (o *Orchestrator) dispatch(ctx context.Context, root string, files []discovery.File) ([]fileOutcome, error) {
	o.transition(StateDispatched)

	resolver, err := imports.NewResolver(root, o.cfg.ImportDepth, imports.NewCache(o.cfg.MaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("import resolver: %w", err)
	}
	pool, err := NewPool("validate", o.cfg.EffectiveWorkers())
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	type indexed struct {
		i   int
		out fileOutcome
	}
	results := make(chan indexed, len(files))
	var wg sync.WaitGroup

	var submitErr error
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}
		wg.Add(1)
		err := pool.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results <- indexed{i: i, out: o.checkFile(root, f, resolver)}
		})
		if err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}
	wg.Wait()
	close(results)
	if submitErr == nil {
		submitErr = ctx.Err()
	}
	if submitErr != nil {
		return nil, fmt.Errorf("dispatch: %w", submitErr)
	}

	outcomes := make([]fileOutcome, len(files))
	for r := range results {
		outcomes[r.i] = r.out
	}
	hits, misses := resolver.Cache().Stats()
	o.log.Debug("dispatch complete",
		zap.Int("files", len(files)),
		zap.Int("workers", pool.Cap()),
		zap.Int64("import_cache_hits", hits),
		zap.Int64("import_cache_misses", misses))
	return outcomes, nil
}

// checkFile runs the per-file pipeline: guarded read, parse and validators.
// A panic outside the validators still yields a diagnostic for the file.
func (o *Orchestrator) checkFile(root string, f discovery.File, resolver *imports.Resolver) (out fileOutcome) {
	out.rel = f.RelPath
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Warn("file check panicked", zap.String("file", f.RelPath), zap.Any("panic", rec))
			out.diags = o.registry.Panicked(f.RelPath, rec, o.cfg)
		}
	}()

	data, err := safeio.Read(f.Path, o.cfg.MaxFileSize)
	if err != nil {
		o.log.Debug("file skipped", zap.String("file", f.RelPath), zap.Error(err))
		out.diags = o.registry.ReadFailure(f.RelPath, err, o.cfg)
		return out
	}

	out.read = true
	out.hash = fix.HashContent(data)
	content := string(data)
	if rules.IsInstructionFile(f.RelPath) {
		out.content = content
	}
	out.diags = o.registry.Check(rules.Input{
		Path:     f.Path,
		Rel:      f.RelPath,
		Root:     root,
		Kind:     f.Kind,
		Content:  content,
		Config:   o.cfg,
		Resolver: resolver,
	})
	return out
}
