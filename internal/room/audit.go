// internal/room/audit.go
package room

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// auditQueue serializes best-effort persistence work off the room loop. The
// queue is bounded: when the sink is down long enough to fill it, new work is
// dropped with a log line instead of stalling gameplay.
type auditQueue struct {
	mu      sync.Mutex
	closed  bool
	tasks   chan func(context.Context)
	done    chan struct{}
	once    sync.Once
	logger  *logrus.Logger
	timeout time.Duration
}

func newAuditQueue(depth int, logger *logrus.Logger) *auditQueue {
	q := &auditQueue{
		tasks:   make(chan func(context.Context), depth),
		done:    make(chan struct{}),
		logger:  logger,
		timeout: 5 * time.Second,
	}
	go q.run()
	return q
}

func (q *auditQueue) run() {
	for task := range q.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		task(ctx)
		cancel()
	}
	close(q.done)
}

// enqueue hands work to the worker. Work arriving after close, or while the
// queue is full, is dropped; the mutex orders enqueues against close so a late
// enqueue never hits a closed channel.
func (q *auditQueue) enqueue(task func(context.Context)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.tasks <- task:
	default:
		q.logger.Warn("audit queue full, dropping record")
	}
}

// close drains queued work, then returns. Safe to call more than once.
func (q *auditQueue) close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()
	})
	<-q.done
}
