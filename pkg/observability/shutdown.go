package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownFunc releases one resource during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager runs registered teardown steps under a shared deadline.
// Steps run in registration order so dependents can be drained before the
// resources they lean on (server before pool, pool before database).
type ShutdownManager struct {
	logger  *logrus.Logger
	timeout time.Duration

	mu    sync.Mutex
	names []string
	funcs []ShutdownFunc
}

// NewShutdownManager creates a shutdown manager
func NewShutdownManager(logger *logrus.Logger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{logger: logger, timeout: timeout}
}

// Register adds a named teardown step
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.names = append(sm.names, name)
	sm.funcs = append(sm.funcs, fn)
}

// Run executes every registered step in order under the manager's timeout.
// A failing step is logged and the rest still run; the first error wins.
func (sm *ShutdownManager) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	sm.mu.Lock()
	names := append([]string(nil), sm.names...)
	funcs := append([]ShutdownFunc(nil), sm.funcs...)
	sm.mu.Unlock()

	var firstErr error
	for i, fn := range funcs {
		if ctx.Err() != nil {
			sm.logger.Warn("Shutdown timeout reached, remaining steps skipped")
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown timeout reached before %q", names[i])
			}
			break
		}
		sm.logger.WithField("step", names[i]).Info("Shutting down")
		if err := fn(ctx); err != nil {
			sm.logger.WithError(err).WithField("step", names[i]).Error("Shutdown step failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown step %q: %w", names[i], err)
			}
		}
	}

	if firstErr == nil {
		sm.logger.Info("Graceful shutdown complete")
	}
	return firstErr
}
