package async

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Pool is a bounded worker pool Runner. Tasks queue up to the configured
// capacity; when the queue is full, Submit drops the task with a warning
// rather than blocking the caller, because everything dispatched here is
// best-effort by contract.
type Pool struct {
	tasks     chan poolTask
	logger    *logrus.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   atomic.Int64
}

type poolTask struct {
	name string
	fn   func(context.Context)
}

// NewPool starts workers goroutines consuming a queue of queueSize tasks
func NewPool(workers, queueSize int, timeout time.Duration, logger *logrus.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}

	p := &Pool{
		tasks:   make(chan poolTask, queueSize),
		logger:  logger,
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues the task without blocking. A full queue drops the task.
func (p *Pool) Submit(name string, fn func(context.Context)) {
	select {
	case p.tasks <- poolTask{name: name, fn: fn}:
	default:
		p.dropped.Add(1)
		p.logger.WithField("task", name).Warn("Task queue full, dropping background task")
	}
}

// Dropped returns how many tasks were rejected by a full queue
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting tasks, drains the queue, and waits for in-flight
// tasks to finish. Submit must not be called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		runTask(p.logger, p.timeout, t.name, t.fn)
	}
}
