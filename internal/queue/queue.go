// Package queue serializes concurrent load requests into priority order and
// feeds them one at a time to the lifecycle manager. The single dispatcher
// is what makes the VRAM invariant provable without holding a lock across
// slow provider I/O.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vramd/pkg/types"
)

// Admitter is the lifecycle manager's admission entry point.
type Admitter interface {
	Admit(ctx context.Context, req types.PendingRequest) (types.LoadedModel, error)
}

// Result completes one queued request.
type Result struct {
	Model types.LoadedModel
	Err   error
}

// defaultMaxDepth bounds the queue when the config leaves it unset.
const defaultMaxDepth = 64

type item struct {
	ctx  context.Context
	req  types.PendingRequest
	seq  uint64
	done chan Result
	idx  int
}

// pendingHeap orders by (priority desc, submitted_at asc, seq asc). The
// sequence number keeps ties strictly FIFO even at equal timestamps.
type pendingHeap []*item

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.req.Priority != b.req.Priority {
		return a.req.Priority > b.req.Priority
	}
	if !a.req.SubmittedAt.Equal(b.req.SubmittedAt) {
		return a.req.SubmittedAt.Before(b.req.SubmittedAt)
	}
	return a.seq < b.seq
}

func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}

func (h *pendingHeap) Push(x any) {
	it := x.(*item)
	it.idx = len(*h)
	*h = append(*h, it)
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is a bounded priority admission queue with one dispatcher loop.
type Queue struct {
	mu    sync.Mutex
	items pendingHeap
	seq   uint64

	maxDepth int
	wake     chan struct{}
	adm      Admitter
	log      zerolog.Logger
	nowFn    func() time.Time
}

// New constructs a Queue feeding adm. maxDepth <= 0 uses the default.
func New(adm Admitter, maxDepth int, log zerolog.Logger) *Queue {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Queue{
		maxDepth: maxDepth,
		wake:     make(chan struct{}, 1),
		adm:      adm,
		log:      log,
		nowFn:    time.Now,
	}
}

// Enqueue adds a request and returns the channel its result arrives on.
// A full queue fails immediately with a TooBusy error.
func (q *Queue) Enqueue(ctx context.Context, req types.PendingRequest) (<-chan Result, error) {
	q.mu.Lock()
	if len(q.items) >= q.maxDepth {
		q.mu.Unlock()
		return nil, ErrTooBusy(q.maxDepth)
	}
	q.seq++
	it := &item{ctx: ctx, req: req, seq: q.seq, done: make(chan Result, 1)}
	heap.Push(&q.items, it)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return it.done, nil
}

// Load enqueues and blocks until the admission result or ctx cancellation.
// Cancellation while queued abandons the request without side effects: the
// dispatcher discards it when popped. Cancellation after dispatch does not
// interrupt the in-flight provider call.
func (q *Queue) Load(ctx context.Context, req types.PendingRequest) (types.LoadedModel, error) {
	ch, err := q.Enqueue(ctx, req)
	if err != nil {
		return types.LoadedModel{}, err
	}
	select {
	case res := <-ch:
		return res.Model, res.Err
	case <-ctx.Done():
		return types.LoadedModel{}, ctx.Err()
	}
}

// Depth returns the number of queued requests.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run is the dispatcher loop: one request end-to-end at a time, strictly by
// (priority desc, arrival asc). Every dequeue either reaches Admit or fails
// the request explicitly, so the loop always makes progress.
func (q *Queue) Run(ctx context.Context) {
	for {
		it := q.pop()
		if it == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			}
			continue
		}
		q.dispatch(it)
	}
}

func (q *Queue) pop() *item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*item)
}

func (q *Queue) dispatch(it *item) {
	// Canceled while queued: discard without calling Admit.
	if err := it.ctx.Err(); err != nil {
		q.log.Debug().Str("request_id", it.req.RequestID).Msg("request canceled while queued")
		it.done <- Result{Err: err}
		return
	}
	// Deadline passed in the queue: fail before ever reaching Admit.
	if !it.req.Deadline.IsZero() && q.nowFn().After(it.req.Deadline) {
		queueTimeouts.Inc()
		it.done <- Result{Err: ErrDeadlineExceeded(it.req.RequestID)}
		return
	}
	model, err := q.adm.Admit(it.ctx, it.req)
	it.done <- Result{Model: model, Err: err}
}
