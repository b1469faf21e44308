package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/weakwords/internal/model"
)

// ErrQueueClosed is returned for updates issued after Close.
var ErrQueueClosed = errors.New("store: queue closed")

const opTimeout = 10 * time.Second

// Updater mutates a freshly read copy of the record in place.
type Updater func(*model.Data) error

type op struct {
	name   string
	fn     Updater
	result chan error
}

// Queue applies read-modify-write operations to the record one at a time, in
// the order Update was called. Operation n reads the record only after
// operation n-1 has finished writing it. A failing operation is logged and
// dropped; it never stalls the operations behind it.
type Queue struct {
	store *Store
	log   *slog.Logger

	mu      sync.Mutex
	pending []op
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewQueue starts the queue worker.
func NewQueue(st *Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		store: st,
		log:   logger,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Update enqueues fn and returns a channel that receives the outcome (nil on
// success) and is then closed. Callers may ignore the channel.
func (q *Queue) Update(name string, fn Updater) <-chan error {
	result := make(chan error, 1)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		result <- ErrQueueClosed
		close(result)
		return result
	}
	q.pending = append(q.pending, op{name: name, fn: fn, result: result})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return result
}

// Pending returns the number of operations not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting updates and waits until every queued operation has
// run, or ctx ends.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		next, ok := q.next()
		if !ok {
			return
		}
		err := q.apply(next)
		if err != nil {
			q.log.Error("update failed", "op", next.name, "error", err)
		}
		next.result <- err
		close(next.result)
	}
}

// next pops the oldest operation, blocking until one arrives. It reports
// false once the queue is closed and drained.
func (q *Queue) next() (op, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			head := q.pending[0]
			q.pending[0] = op{}
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return head, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return op{}, false
		}
		<-q.wake
	}
}

func (q *Queue) apply(o op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store: %s panicked: %v", o.name, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := q.store.Get(ctx)
	if err != nil {
		return err
	}
	if err := o.fn(&data); err != nil {
		return fmt.Errorf("store: %s: %w", o.name, err)
	}
	data.Touch(q.store.now())
	return q.store.Set(ctx, data)
}
