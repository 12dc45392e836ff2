package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("platform already started")

// step is a named unit of startup or shutdown work.
type step struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

// Lifecycle runs start steps in registration order and stop steps in
// reverse, so whatever starts first stops last.
type Lifecycle struct {
	mu      sync.Mutex
	steps   []step
	started bool
	logger  *slog.Logger
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{logger: logger}
}

// OnStart adds a start step.
func (l *Lifecycle) OnStart(name string, fn func(context.Context) error) {
	l.add(step{name: name, start: fn})
}

// OnStop adds a stop step.
func (l *Lifecycle) OnStop(name string, fn func(context.Context) error) {
	l.add(step{name: name, stop: fn})
}

// RegisterCloser closes c on stop.
func (l *Lifecycle) RegisterCloser(name string, c io.Closer) {
	l.OnStop(name, func(context.Context) error { return c.Close() })
}

func (l *Lifecycle) add(s step) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, s)
}

// Start runs every start step. If one fails, the stop steps registered
// before it run and the lifecycle stays stopped.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return ErrAlreadyStarted
	}
	for i, s := range l.steps {
		if s.start == nil {
			continue
		}
		l.logger.Debug("starting", "step", s.name)
		if err := s.start(ctx); err != nil {
			if rbErr := l.stopFrom(ctx, i-1); rbErr != nil {
				l.logger.Warn("rollback incomplete", "error", rbErr)
			}
			return fmt.Errorf("starting %s: %w", s.name, err)
		}
	}
	l.started = true
	return nil
}

// Stop runs every stop step, newest first. Stopping a lifecycle that is not
// running does nothing.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}
	l.started = false
	return l.stopFrom(ctx, len(l.steps)-1)
}

// stopFrom runs the stop steps at indexes last..0 and joins their errors.
func (l *Lifecycle) stopFrom(ctx context.Context, last int) error {
	var errs []error
	for i := last; i >= 0; i-- {
		s := l.steps[i]
		if s.stop == nil {
			continue
		}
		l.logger.Debug("stopping", "step", s.name)
		if err := s.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// IsStarted reports whether Start succeeded and Stop has not run since.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
