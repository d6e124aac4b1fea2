package lint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/dotcommander/agentlint/internal/logger"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a unit of work run on the pool. It receives the caller's context
// and must check it before doing work.
type Task func(ctx context.Context)

// Pool is a fixed-size ants pool with unified panic recovery.
type Pool struct {
	pool *ants.Pool
	name string
}

// NewPool creates a blocking pool of size workers.
func NewPool(name string, size int) (*Pool, error) {
	panicHandler := func(p any) {
		logger.L().Error("worker panic recovered",
			zap.String("pool", name),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	p, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s pool: %w", name, err)
	}
	return &Pool{pool: p, name: name}, nil
}

// Submit queues task. It returns ctx.Err() without queueing when ctx is
// already done, and blocks while every worker is busy.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() { task(ctx) })
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Release waits for running tasks and frees the workers.
func (p *Pool) Release() {
	if err := p.pool.ReleaseTimeout(30 * time.Second); err != nil {
		logger.L().Warn("pool shutdown timeout", zap.String("pool", p.name), zap.Error(err))
	}
}

// Cap is the number of workers.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}
