// Package tasks runs best-effort background work that must not fail a request.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"twitsnap/internal/middleware"
	"twitsnap/internal/observability"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// Runner executes tasks asynchronously, at most once each and without retries.
// Failures and panics are logged and counted. Submitting never blocks: a task
// arriving while every worker is busy, or after Wait, is dropped.
type Runner struct {
	mu      sync.RWMutex
	closed  bool
	slots   *semaphore.Weighted
	wg      conc.WaitGroup
	timeout time.Duration
}

// NewRunner returns a Runner that runs up to workers tasks at a time, each bounded by timeout.
func NewRunner(workers int, timeout time.Duration) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{slots: semaphore.NewWeighted(int64(workers)), timeout: timeout}
}

// Go schedules fn. The task keeps the request's trace and log attributes but not
// its cancellation.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || !r.slots.TryAcquire(1) {
		observability.BackgroundTasks.WithLabelValues(name, "dropped").Inc()
		middleware.Logger.WarnContext(ctx, "background task dropped",
			slog.String("task", name), slog.Bool("shutting_down", r.closed))
		return
	}

	taskCtx := detach(ctx)
	r.wg.Go(func() {
		defer r.slots.Release(1)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(taskCtx, r.timeout)
			defer cancel()
		}

		outcome := "ok"
		defer func() {
			if p := recover(); p != nil {
				outcome = "panic"
				middleware.Logger.ErrorContext(taskCtx, "background task panicked",
					slog.String("task", name), slog.String("panic", fmt.Sprint(p)))
			}
			observability.BackgroundTasks.WithLabelValues(name, outcome).Inc()
		}()

		if err := fn(taskCtx); err != nil {
			outcome = "error"
			middleware.Logger.WarnContext(taskCtx, "background task failed",
				slog.String("task", name), slog.String("error", err.Error()))
		}
	})
}

// Wait stops accepting tasks and blocks until every scheduled task has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

func detach(ctx context.Context) context.Context {
	out := trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
	for _, key := range []interface{}{middleware.RequestIDKey, middleware.UserIDKey, middleware.TraceIDKey} {
		if v := ctx.Value(key); v != nil {
			out = context.WithValue(out, key, v)
		}
	}
	return out
}
