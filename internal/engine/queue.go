package engine

import (
	"context"
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("task queue stopped")

type ownerKey struct{}

// Queue serializes work onto one owner goroutine. Everything that touches
// the store, selection or persistent shapes runs through it.
type Queue struct {
	mu      sync.Mutex
	pending []func(context.Context)
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// OnOwner reports whether ctx was handed out by a running Queue.
func OnOwner(ctx context.Context) bool {
	_, ok := ctx.Value(ownerKey{}).(*Queue)
	return ok
}

func (q *Queue) owns(ctx context.Context) bool {
	owner, _ := ctx.Value(ownerKey{}).(*Queue)
	return owner == q
}

// Run executes tasks in order until ctx is cancelled. Tasks receive a context
// marking them as running on the owner.
func (q *Queue) Run(ctx context.Context) error {
	ownerCtx := context.WithValue(ctx, ownerKey{}, q)
	defer func() {
		q.mu.Lock()
		q.stopped = true
		q.pending = nil
		q.mu.Unlock()
		close(q.done)
	}()

	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, fn := range batch {
			fn(ownerCtx)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}
	}
}

// Post runs fn inline when ctx is already on the owner, and otherwise
// enqueues it without waiting.
func (q *Queue) Post(ctx context.Context, fn func(context.Context)) error {
	if q.owns(ctx) {
		fn(ctx)
		return nil
	}
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Exec is Post that waits for fn to finish or ctx to end.
func (q *Queue) Exec(ctx context.Context, fn func(context.Context)) error {
	if q.owns(ctx) {
		fn(ctx)
		return nil
	}
	finished := make(chan struct{})
	err := q.Post(ctx, func(owner context.Context) {
		defer close(finished)
		fn(owner)
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrQueueClosed
		}
	}
}
