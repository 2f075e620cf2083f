package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitWaitRetriesUntilSuccess(t *testing.T) {
	var calls int32
	p, err := New(Config{Workers: 2, QueueSize: 4, MaxRetries: 3, RetryDelay: time.Millisecond},
		func(context.Context, *Task) error {
			if atomic.AddInt32(&calls, 1) < 3 {
				return errors.New("supplier busy")
			}
			return nil
		}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	res, err := p.SubmitWait(context.Background(), &Task{ID: "alert-1"})
	if err != nil {
		t.Fatalf("SubmitWait: %v", err)
	}
	if !res.Success() || res.Attempts != 3 {
		t.Errorf("result = %+v", res)
	}
	if s := p.Stats(); s.TasksCompleted != 1 || s.TasksRetried != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRetryableStopsEarly(t *testing.T) {
	permanent := errors.New("bad request")
	p, _ := New(Config{
		Workers:    1,
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		Retryable:  func(err error) bool { return !errors.Is(err, permanent) },
	}, func(context.Context, *Task) error { return permanent }, nil)
	p.Start()
	defer p.Stop()

	res, err := p.SubmitWait(context.Background(), &Task{ID: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 1 || !errors.Is(res.Err, permanent) {
		t.Errorf("result = %+v", res)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	block := make(chan struct{})
	p, _ := New(Config{Workers: 1, QueueSize: 1}, func(context.Context, *Task) error {
		<-block
		return nil
	}, nil)
	p.Start()
	defer p.Stop()
	defer close(block)

	// The first task occupies the worker, the second fills the queue.
	_ = p.Submit(&Task{ID: "1"})
	deadline := time.Now().Add(time.Second)
	for p.Stats().QueueDepth != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := p.Submit(&Task{ID: "2"}); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if err := p.Submit(&Task{ID: "3"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

func TestStopDrainsQueueAndRejectsNewTasks(t *testing.T) {
	var done int32
	p, _ := New(Config{Workers: 2, QueueSize: 10}, func(context.Context, *Task) error {
		atomic.AddInt32(&done, 1)
		return nil
	}, nil)
	var results int32
	p.OnResult(func(*Result) { atomic.AddInt32(&results, 1) })
	p.Start()

	for i := 0; i < 5; i++ {
		if err := p.Submit(&Task{ID: "t"}); err != nil {
			t.Fatal(err)
		}
	}
	p.Stop()

	if atomic.LoadInt32(&done) != 5 || atomic.LoadInt32(&results) != 5 {
		t.Errorf("done = %d, results = %d", done, results)
	}
	if err := p.Submit(&Task{ID: "late"}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("err = %v, want ErrPoolClosed", err)
	}
	p.Stop()
}

func TestNewRequiresWorkerFunc(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil); err == nil {
		t.Error("expected error")
	}
}
