package backend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (c *countingPurger) PurgeExpired(context.Context, time.Time, time.Duration) (int64, error) {
	c.calls.Add(1)
	return 3, c.err
}

func TestStartJanitor_RunsUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		StartJanitor(ctx, p, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(time.Second)
	for p.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("purge ran %d times, want at least 2", p.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestRunPurge_ErrorIsLogged(t *testing.T) {
	p := &countingPurger{err: errors.New("db down")}
	runPurge(context.Background(), p)
	if p.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", p.calls.Load())
	}
}
