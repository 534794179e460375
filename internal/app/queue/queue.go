// Package queue is the durable offline action queue. Mutating actions
// attempted while the device has no connectivity are recorded here and
// replayed in FIFO order once connectivity returns. Replay is
// at-least-once: handlers re-enter the rate limiter and the ledger, so
// duplicate application is refused by the same invariants that guard
// live calls.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coinflow-app/coinflow/internal/domain"
	"github.com/coinflow-app/coinflow/internal/infra/observability"
)

// Store persists queued actions across restarts.
type Store interface {
	EnqueueAction(ctx context.Context, kind string, args []byte, enqueuedAt time.Time) (int64, error)
	PendingActions(ctx context.Context) ([]domain.QueuedAction, error)
	DeleteAction(ctx context.Context, id int64) error
	BumpActionAttempts(ctx context.Context, id int64) error
	QueueDepth(ctx context.Context) (int, error)
}

// Handler replays one action kind from its JSON-encoded arguments.
type Handler func(ctx context.Context, args []byte) error

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"` // no handler registered for the kind
}

// Queue is the replay engine over the durable store.
type Queue struct {
	store Store

	mu       sync.RWMutex
	handlers map[string]Handler

	now func() time.Time
}

// New creates a queue over the given store.
func New(store Store) *Queue {
	return &Queue{
		store:    store,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
}

// Register binds a handler to an action kind. Later registrations for
// the same kind replace earlier ones.
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	q.handlers[kind] = h
	q.mu.Unlock()
}

// Enqueue records an action for later replay. args is marshaled to JSON.
func (q *Queue) Enqueue(ctx context.Context, kind string, args any) (int64, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return 0, fmt.Errorf("encode queued action %q: %w", kind, err)
	}
	id, err := q.store.EnqueueAction(ctx, kind, payload, q.now())
	if err != nil {
		return 0, err
	}
	log.Printf("[queue] deferred %s action (id=%d)", kind, id)
	q.updateDepth(ctx)
	return id, nil
}

// Drain replays every pending action in insertion order. A failed item
// keeps its place with an incremented attempt counter and the drain
// moves on to the next item; only a store failure aborts the pass.
func (q *Queue) Drain(ctx context.Context) (DrainStats, error) {
	var stats DrainStats

	pending, err := q.store.PendingActions(ctx)
	if err != nil {
		return stats, err
	}
	if len(pending) == 0 {
		return stats, nil
	}
	log.Printf("[queue] draining %d pending action(s)", len(pending))

	for _, action := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		q.mu.RLock()
		h, ok := q.handlers[action.Kind]
		q.mu.RUnlock()
		if !ok {
			stats.Skipped++
			log.Printf("[queue] no handler for %s (id=%d), keeping", action.Kind, action.ID)
			if err := q.store.BumpActionAttempts(ctx, action.ID); err != nil {
				return stats, err
			}
			continue
		}

		if err := h(ctx, action.Args); err != nil {
			stats.Failed++
			observability.QueueReplays.WithLabelValues("failed").Inc()
			log.Printf("[queue] replay %s (id=%d, attempt %d) failed: %v",
				action.Kind, action.ID, action.Attempts+1, err)
			if err := q.store.BumpActionAttempts(ctx, action.ID); err != nil {
				return stats, err
			}
			continue
		}

		stats.Replayed++
		observability.QueueReplays.WithLabelValues("ok").Inc()
		if err := q.store.DeleteAction(ctx, action.ID); err != nil {
			return stats, err
		}
	}

	q.updateDepth(ctx)
	log.Printf("[queue] drain done: %d replayed, %d failed, %d skipped",
		stats.Replayed, stats.Failed, stats.Skipped)
	return stats, nil
}

// Depth returns the number of pending actions.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	return q.store.QueueDepth(ctx)
}

func (q *Queue) updateDepth(ctx context.Context) {
	if depth, err := q.store.QueueDepth(ctx); err == nil {
		observability.QueueDepth.Set(float64(depth))
	}
}
