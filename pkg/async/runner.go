package async

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTaskTimeout bounds a background task that was submitted without an
// explicit timeout configured on its Runner.
const DefaultTaskTimeout = 30 * time.Second

// Runner executes named background tasks. The context handed to the task is
// detached from any request context, so tasks are never cancelled by the
// operation that spawned them; they are bounded only by the Runner's own
// timeout and by process shutdown.
type Runner interface {
	Submit(name string, fn func(context.Context))
}

// Spawner runs each task on its own goroutine with panic recovery. Suitable
// as the default Runner when task volume is low.
type Spawner struct {
	logger  *logrus.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewSpawner creates a Spawner. A zero timeout falls back to
// DefaultTaskTimeout.
func NewSpawner(logger *logrus.Logger, timeout time.Duration) *Spawner {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Spawner{logger: logger, timeout: timeout}
}

// Submit starts the task immediately on a new goroutine
func (s *Spawner) Submit(name string, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runTask(s.logger, s.timeout, name, fn)
	}()
}

// Wait blocks until every submitted task has finished. Used during shutdown
// and in tests.
func (s *Spawner) Wait() {
	s.wg.Wait()
}

// Sync executes tasks inline on the calling goroutine. It makes side effects
// deterministic in tests.
type Sync struct{}

// Submit runs the task before returning
func (Sync) Submit(name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"task":  name,
				"panic": r,
			}).Error("Background task panicked")
		}
	}()
	fn(context.Background())
}

// runTask executes fn with a detached, timeout-bounded context and converts
// panics into error logs so a misbehaving side effect cannot crash the
// process.
func runTask(logger *logrus.Logger, timeout time.Duration, name string, fn func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"task":  name,
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Background task panicked")
		}
	}()

	fn(ctx)
}
