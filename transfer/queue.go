package transfer

import (
	"context"
	"log/slog"
	"sync"

	"mega-relay/domain"
	"mega-relay/errors"
)

// maxAttempts bounds how often a failing job is re-run before its
// submitter sees the failure. Counts the first run.
const maxAttempts = 3

// JobFn is one full transfer pipeline, run to completion by the queue worker.
type JobFn func(ctx context.Context) (*domain.TransferResult, error)

// Outcome is the single terminal value a submitter receives.
type Outcome struct {
	Result *domain.TransferResult
	Err    error
}

type submission struct {
	job      JobFn
	out      chan Outcome
	attempts int
}

// Queue serializes transfer jobs: one pipeline runs to completion before
// the next starts, which bounds bandwidth and disk usage on a small host.
// A failing job is requeued at the FRONT so retries happen before newer
// work, and the submitter's channel resolves exactly once either way.
type Queue struct {
	log *slog.Logger

	mu     sync.Mutex
	items  []*submission
	closed bool

	wake chan struct{}
}

func NewQueue(log *slog.Logger) *Queue {
	return &Queue{
		log:  log,
		wake: make(chan struct{}, 1),
	}
}

// Submit enqueues a job and returns a buffered channel that receives
// exactly one Outcome. Retries are invisible to the submitter.
func (q *Queue) Submit(job JobFn) <-chan Outcome {
	out := make(chan Outcome, 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		out <- Outcome{Err: errors.ErrQueueClosed}
		return out
	}
	q.items = append(q.items, &submission{job: job, out: out})
	q.mu.Unlock()

	q.notify()
	return out
}

// Len reports how many submissions are waiting, not counting the running one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run is the single queue worker. It exits when the context is canceled:
// pending submissions are rejected, in-flight work is left to the ambient
// context (shutdown does not abort a running transfer cleanly, process
// termination does).
func (q *Queue) Run(ctx context.Context) error {
	for {
		sub := q.pop()
		if sub == nil {
			select {
			case <-ctx.Done():
				q.shutdown()
				return nil
			case <-q.wake:
				continue
			}
		}

		sub.attempts++
		result, err := sub.job(ctx)
		if err == nil {
			sub.out <- Outcome{Result: result}
			continue
		}

		if sub.attempts < maxAttempts && ctx.Err() == nil {
			q.log.Warn("Job failed, requeueing at the front",
				"attempt", sub.attempts, "max", maxAttempts, "error", err)
			q.pushFront(sub)
			continue
		}

		sub.out <- Outcome{Err: err}
	}
}

func (q *Queue) pop() *submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	sub := q.items[0]
	q.items = q.items[1:]
	return sub
}

func (q *Queue) pushFront(sub *submission) {
	q.mu.Lock()
	q.items = append([]*submission{sub}, q.items...)
	q.mu.Unlock()
	q.notify()
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// shutdown stops accepting jobs and rejects everything still queued.
func (q *Queue) shutdown() {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.closed = true
	q.mu.Unlock()

	for _, sub := range pending {
		sub.out <- Outcome{Err: errors.ErrQueueClosed}
	}
}
