// Package server runs the daemon's long-lived components under one lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Component is a long-running part of the daemon. Run blocks until ctx is canceled
// or the component fails; a clean stop returns nil.
type Component interface {
	Name() string
	Run(ctx context.Context) error
}

type funcComponent struct {
	name string
	run  func(ctx context.Context) error
}

func (f funcComponent) Name() string                  { return f.name }
func (f funcComponent) Run(ctx context.Context) error { return f.run(ctx) }

// Func adapts a function to a Component.
func Func(name string, run func(ctx context.Context) error) Component {
	return funcComponent{name: name, run: run}
}

// Pruner is the retention side of the event log.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Retention returns a component that prunes events older than keep once per interval.
func Retention(p Pruner, keep, interval time.Duration, logger *slog.Logger) Component {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "retention")
	return Func("retention", func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			n, err := p.Prune(ctx, keep)
			switch {
			case err != nil && ctx.Err() == nil:
				logger.Warn("prune events failed", "error", err)
			case n > 0:
				logger.Info("pruned events", "count", n)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
}

// Runner manages the daemon components.
type Runner struct {
	components []Component
	logger     *slog.Logger
}

// NewRunner creates a new runner.
func NewRunner(logger *slog.Logger, components ...Component) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		components: components,
		logger:     logger.With("component", "runner"),
	}
}

// Run starts every component and blocks until ctx is canceled or one of them fails.
// A failure stops the others; the first error is returned.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, c := range r.components {
		g.Go(func() error {
			r.logger.Debug("component starting", "name", c.Name())
			err := c.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("component failed", "name", c.Name(), "error", err)
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
			r.logger.Debug("component stopped", "name", c.Name())
			return nil
		})
	}

	return g.Wait()
}
