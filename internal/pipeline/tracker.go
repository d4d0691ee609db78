package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ponchovillalobos/maity-desktop/internal/events"
)

// Tracker maintains the chunk accounting invariant:
//
//	queued == completed + dropped
//
// once input has finished and the queue has drained. Every chunk that
// enters the queue is eventually counted exactly once.
type Tracker struct {
	queued        atomic.Uint64
	completed     atomic.Uint64
	dropped       atomic.Uint64
	inputFinished atomic.Bool
}

func (t *Tracker) AddQueued()    { t.queued.Add(1) }
func (t *Tracker) AddCompleted() { t.completed.Add(1) }
func (t *Tracker) AddDropped()   { t.dropped.Add(1) }

func (t *Tracker) Queued() uint64    { return t.queued.Load() }
func (t *Tracker) Completed() uint64 { return t.completed.Load() }
func (t *Tracker) Dropped() uint64   { return t.dropped.Load() }

// MarkInputFinished records that no further chunks will be queued.
func (t *Tracker) MarkInputFinished() { t.inputFinished.Store(true) }

func (t *Tracker) InputFinished() bool { return t.inputFinished.Load() }

// Reconciled reports whether the accounting invariant currently holds.
func (t *Tracker) Reconciled() bool {
	return t.Queued() == t.Completed()+t.Dropped()
}

// Verify polls for reconciliation, giving in-flight counter updates a
// chance to land. Returns the final summary and whether the books
// balanced.
func (t *Tracker) Verify(ctx context.Context, attempts int, interval time.Duration) (events.Summary, bool) {
	if attempts <= 0 {
		attempts = 1
	}

	ok := false
	for i := 0; i < attempts; i++ {
		if t.Reconciled() {
			ok = true
			break
		}
		select {
		case <-ctx.Done():
			i = attempts
		case <-time.After(interval):
		}
	}

	return t.Summary(ok), ok
}

// Summary builds the end-of-session accounting report.
func (t *Tracker) Summary(reconciled bool) events.Summary {
	queued := t.Queued()
	completed := t.Completed()
	dropped := t.Dropped()

	var lossPct float64
	if queued > 0 {
		lossPct = float64(dropped) / float64(queued) * 100
	}

	status := "complete"
	if !reconciled || dropped > 0 {
		status = "incomplete"
	}

	return events.Summary{
		ChunksQueued:    queued,
		ChunksCompleted: completed,
		ChunksDropped:   dropped,
		LossPercentage:  lossPct,
		Status:          status,
	}
}
