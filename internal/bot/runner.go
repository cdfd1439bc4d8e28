package bot

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/lumen/internal/model"
)

const (
	DefaultConcurrency    = 16
	DefaultHandlerTimeout = 30 * time.Second
)

// Source delivers inbound events until ctx is done.
type Source interface {
	Updates(ctx context.Context) <-chan model.Event
}

// Runner handles events concurrently with a bounded number of in-flight handlers.
type Runner struct {
	src     Source
	h       Handler
	limit   int
	timeout time.Duration
	log     *zap.Logger
}

// NewRunner builds a runner; non-positive limit and timeout use defaults.
func NewRunner(src Source, h Handler, limit int, timeout time.Duration, log *zap.Logger) *Runner {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{src: src, h: h, limit: limit, timeout: timeout, log: log}
}

// Run consumes events until the source is closed, then waits for in-flight handlers.
// Handler errors are logged by middleware and never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(r.limit)

	for ev := range r.src.Updates(ctx) {
		g.Go(func() error {
			// in-flight handlers finish after shutdown starts
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
			defer cancel()
			_ = r.h(hctx, ev)
			return nil
		})
	}
	err := g.Wait()
	r.log.Info("event loop stopped")
	return err
}
