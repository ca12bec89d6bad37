package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vramd/pkg/types"
)

// recordingAdmitter captures dispatch order.
type recordingAdmitter struct {
	mu    sync.Mutex
	order []string
	err   error
	block chan struct{} // when set, Admit waits on it
}

func (a *recordingAdmitter) Admit(ctx context.Context, req types.PendingRequest) (types.LoadedModel, error) {
	if a.block != nil {
		<-a.block
	}
	a.mu.Lock()
	a.order = append(a.order, req.RequestID)
	a.mu.Unlock()
	if a.err != nil {
		return types.LoadedModel{}, a.err
	}
	return types.LoadedModel{Provider: req.Provider, ModelID: req.ModelID, Priority: req.Priority}, nil
}

func (a *recordingAdmitter) dispatched() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.order...)
}

func pending(id string, priority int, submitted time.Time) types.PendingRequest {
	return types.PendingRequest{RequestID: id, Provider: "llm-runner", ModelID: id, Priority: priority, SubmittedAt: submitted}
}

func collect(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for result")
		return Result{}
	}
}

func TestPriorityOrder(t *testing.T) {
	for name, first := range map[string]int{"low_first": 1, "high_first": 10} {
		t.Run(name, func(t *testing.T) {
			adm := &recordingAdmitter{}
			q := New(adm, 8, zerolog.Nop())
			now := time.Now()

			second := 11 - first // the other of 1 and 10
			ch1, err := q.Enqueue(context.Background(), pending("p1", first, now))
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			ch2, err := q.Enqueue(context.Background(), pending("p2", second, now.Add(time.Millisecond)))
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go q.Run(ctx)

			collect(t, ch1)
			collect(t, ch2)
			order := adm.dispatched()
			want := "p1"
			if second == 10 {
				want = "p2"
			}
			if len(order) != 2 || order[0] != want {
				t.Fatalf("dispatch order = %v, want %s first", order, want)
			}
		})
	}
}

func TestFIFOWithinSamePriority(t *testing.T) {
	adm := &recordingAdmitter{}
	q := New(adm, 8, zerolog.Nop())
	now := time.Now()

	var chans []<-chan Result
	for _, id := range []string{"a", "b", "c"} {
		ch, err := q.Enqueue(context.Background(), pending(id, 5, now))
		if err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
		chans = append(chans, ch)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	for _, ch := range chans {
		collect(t, ch)
	}

	order := adm.dispatched()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("dispatch order = %v, want [a b c]", order)
	}
}

func TestOverflowReturnsTooBusy(t *testing.T) {
	q := New(&recordingAdmitter{}, 2, zerolog.Nop())
	now := time.Now()
	for i, id := range []string{"a", "b"} {
		if _, err := q.Enqueue(context.Background(), pending(id, i, now)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	_, err := q.Enqueue(context.Background(), pending("c", 9, now))
	if !IsTooBusy(err) {
		t.Fatalf("expected TooBusy, got %v", err)
	}
}

func TestDeadlinePassedWhileQueued(t *testing.T) {
	adm := &recordingAdmitter{}
	q := New(adm, 8, zerolog.Nop())
	now := time.Now()

	req := pending("late", 5, now.Add(-time.Minute))
	req.Deadline = now.Add(-time.Second)
	ch, err := q.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	res := collect(t, ch)
	if !IsDeadlineExceeded(res.Err) {
		t.Fatalf("expected deadline error, got %v", res.Err)
	}
	if len(adm.dispatched()) != 0 {
		t.Fatalf("expired request reached Admit")
	}
}

func TestCancellationWhileQueuedSkipsAdmit(t *testing.T) {
	adm := &recordingAdmitter{}
	q := New(adm, 8, zerolog.Nop())

	reqCtx, cancelReq := context.WithCancel(context.Background())
	ch, err := q.Enqueue(reqCtx, pending("gone", 5, time.Now()))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	cancelReq()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	res := collect(t, ch)
	if res.Err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	if len(adm.dispatched()) != 0 {
		t.Fatalf("canceled request reached Admit")
	}
}

func TestLoadReturnsAdmitResult(t *testing.T) {
	adm := &recordingAdmitter{}
	q := New(adm, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	model, err := q.Load(context.Background(), pending("m", 5, time.Now()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if model.ModelID != "m" {
		t.Fatalf("model = %+v", model)
	}
	if q.Depth() != 0 {
		t.Fatalf("depth=%d after drain", q.Depth())
	}
}
