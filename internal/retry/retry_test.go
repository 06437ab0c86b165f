package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDo_SuccessFirstAttempt(t *testing.T) {
	attempts, err := Do(context.Background(), Config{Attempts: 3, Interval: time.Millisecond}, func(context.Context) error {
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	attempts, err := Do(context.Background(), Config{Attempts: 3, Interval: time.Millisecond}, func(context.Context) error {
		callCount++
		if callCount < 3 {
			return fmt.Errorf("fail-%d", callCount)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_AllFail(t *testing.T) {
	callCount := 0
	attempts, err := Do(context.Background(), Config{Attempts: 3, Interval: time.Millisecond}, func(context.Context) error {
		callCount++
		return errors.New("always-fail")
	})

	if err == nil {
		t.Fatal("expected error after all attempts")
	}
	if err.Error() != "always-fail" {
		t.Errorf("expected 'always-fail', got %q", err.Error())
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_SingleAttempt(t *testing.T) {
	callCount := 0
	_, err := Do(context.Background(), Config{Attempts: 1, Interval: time.Millisecond}, func(context.Context) error {
		callCount++
		return errors.New("fail")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call with Attempts=1, got %d", callCount)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Do(ctx, Config{Attempts: 5, Interval: time.Minute}, func(context.Context) error {
			callCount++
			return errors.New("fail")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}()

	// Let the first attempt run, then cancel during the interval wait.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not abort on cancel")
	}

	if callCount != 1 {
		t.Errorf("expected 1 call before cancel, got %d", callCount)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Attempts)
	}
	if cfg.Interval != time.Second {
		t.Errorf("expected 1s interval, got %v", cfg.Interval)
	}
}
