package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/middleware"
)

func testExecution() *execution.Execution {
	return execution.New(id.NewJobID(), "tenant-1", execution.RunnerIdentitySystem, nil, 0, 3)
}

func TestChain_OrderIsOutermostFirst(t *testing.T) {
	var order []string
	mw := func(name string) middleware.Middleware {
		return func(ctx context.Context, e *execution.Execution, next middleware.Handler) error {
			order = append(order, name+":before")
			err := next(ctx)
			order = append(order, name+":after")
			return err
		}
	}

	chain := middleware.Chain(mw("outer"), mw("inner"))
	err := chain(context.Background(), testExecution(), func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("chain error: %v", err)
	}

	want := []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChain_EmptyRunsHandler(t *testing.T) {
	ran := false
	chain := middleware.Chain()
	err := chain(context.Background(), testExecution(), func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("empty chain did not invoke handler")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	wantErr := errors.New("handler failed")
	chain := middleware.Chain(middleware.Logging(slog.Default()))
	err := chain(context.Background(), testExecution(), func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("chain error = %v, want %v", err, wantErr)
	}
}

func TestRecover_ConvertsPanicToError(t *testing.T) {
	rec := middleware.Recover(slog.Default())
	err := rec(context.Background(), testExecution(), func(context.Context) error {
		panic("something broke")
	})
	if err == nil {
		t.Fatal("panic was not converted to an error")
	}
	if !strings.Contains(err.Error(), "something broke") {
		t.Errorf("error %q does not carry the panic value", err)
	}
}

func TestRecover_PassesThroughSuccess(t *testing.T) {
	rec := middleware.Recover(slog.Default())
	err := rec(context.Background(), testExecution(), func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("recover middleware error on success: %v", err)
	}
}

func TestTimeout_CancelsSlowHandler(t *testing.T) {
	to := middleware.Timeout(10 * time.Millisecond)
	err := to(context.Background(), testExecution(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}

func TestTimeout_FastHandlerUnaffected(t *testing.T) {
	to := middleware.Timeout(time.Second)
	err := to(context.Background(), testExecution(), func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("timeout middleware error on fast handler: %v", err)
	}
}
