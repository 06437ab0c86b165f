package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_ConcurrencyLimit(t *testing.T) {
	p := New(2)

	var active atomic.Int32
	var maxActive atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func() {
			defer wg.Done()
			cur := active.Add(1)

			// Track the max concurrency observed
			for {
				old := maxActive.Load()
				if cur <= old || maxActive.CompareAndSwap(old, cur) {
					break
				}
			}

			time.Sleep(50 * time.Millisecond)
			active.Add(-1)
		})
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	wg.Wait()
	p.Wait()

	if m := maxActive.Load(); m > 2 {
		t.Errorf("max active = %d, want <= 2", m)
	}
	if m := maxActive.Load(); m < 2 {
		t.Errorf("max active = %d, want >= 2 (should use full concurrency)", m)
	}
}

func TestPool_WaitRunsAllTasks(t *testing.T) {
	p := New(4)

	var done atomic.Int32
	for i := 0; i < 20; i++ {
		if err := p.Submit(context.Background(), func() {
			done.Add(1)
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	p.Wait()

	if n := done.Load(); n != 20 {
		t.Errorf("completed tasks = %d, want 20", n)
	}
}

func TestPool_SubmitAfterWait(t *testing.T) {
	p := New(1)
	p.Wait()

	err := p.Submit(context.Background(), func() {})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestPool_SubmitCancelled(t *testing.T) {
	p := New(1)
	defer p.Wait()

	block := make(chan struct{})
	defer close(block)

	// Occupy the only worker.
	if err := p.Submit(context.Background(), func() { <-block }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Submit(ctx, func() {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
