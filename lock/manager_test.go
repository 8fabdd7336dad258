package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/lock"
	"github.com/carebridge/scheduler/store/memory"
)

func TestManager_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	m := lock.NewManager(memory.New(), nil)
	jobID := id.NewJobID()

	acquired, err := m.Acquire(ctx, jobID, id.NewExecutionID(), time.Minute)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if !acquired {
		t.Fatal("Acquire = false on free lock")
	}

	held, err := m.Held(ctx, jobID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Held error: %v", err)
	}
	if !held {
		t.Error("Held = false after acquire")
	}

	// Second acquire while held loses.
	acquired, err = m.Acquire(ctx, jobID, id.NewExecutionID(), time.Minute)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if acquired {
		t.Error("Acquire = true while another holder is active")
	}

	if err := m.Release(ctx, jobID); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	held, err = m.Held(ctx, jobID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Held error: %v", err)
	}
	if held {
		t.Error("Held = true after release")
	}
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := lock.NewManager(memory.New(), nil)
	jobID := id.NewJobID()

	// Never acquired.
	if err := m.Release(ctx, jobID); err != nil {
		t.Fatalf("Release on free lock error: %v", err)
	}

	if _, err := m.Acquire(ctx, jobID, id.NewExecutionID(), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(ctx, jobID); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := m.Release(ctx, jobID); err != nil {
		t.Fatalf("double Release error: %v", err)
	}
}

func TestManager_ExpiredLockIsReacquirable(t *testing.T) {
	ctx := context.Background()
	m := lock.NewManager(memory.New(), nil)
	jobID := id.NewJobID()

	if _, err := m.Acquire(ctx, jobID, id.NewExecutionID(), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	held, err := m.Held(ctx, jobID, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if held {
		t.Error("Held = true past TTL")
	}

	acquired, err := m.Acquire(ctx, jobID, id.NewExecutionID(), time.Minute)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if !acquired {
		t.Error("Acquire = false on expired lock, want takeover")
	}
}

func TestManager_ConcurrentAcquireGrantsExactlyOne(t *testing.T) {
	ctx := context.Background()
	m := lock.NewManager(memory.New(), nil)
	jobID := id.NewJobID()

	const contenders = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			acquired, err := m.Acquire(ctx, jobID, id.NewExecutionID(), time.Minute)
			if err != nil {
				t.Errorf("Acquire error: %v", err)
				return
			}
			if acquired {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d contenders won the lock, want exactly 1", wins)
	}
}
