package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
)

func noopHandler(t job.Type) job.Handler {
	return job.HandlerFunc{
		JobType: t,
		Fn: func(context.Context, id.ExecutionID, string) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := job.NewRegistry()

	types := []job.Type{job.TypeRecurringTasks, job.TypeReminders, job.TypeAggregation, job.TypeReports}
	for _, typ := range types {
		if err := r.Register(noopHandler(typ)); err != nil {
			t.Fatalf("Register(%s) error: %v", typ, err)
		}
	}

	for _, typ := range types {
		h, ok := r.Get(typ)
		if !ok {
			t.Fatalf("Get(%s) = not found, want handler", typ)
		}
		if h.Type() != typ {
			t.Errorf("Get(%s).Type() = %s", typ, h.Type())
		}
	}

	if got := len(r.Types()); got != len(types) {
		t.Errorf("Types() has %d entries, want %d", got, len(types))
	}
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := job.NewRegistry()

	if err := r.Register(noopHandler(job.TypeReminders)); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	err := r.Register(noopHandler(job.TypeReminders))
	if !errors.Is(err, scheduler.ErrDuplicateHandler) {
		t.Errorf("second Register error = %v, want ErrDuplicateHandler", err)
	}
}

func TestRegistry_RejectsInvalidType(t *testing.T) {
	r := job.NewRegistry()

	err := r.Register(noopHandler(job.Type("nonsense")))
	if !errors.Is(err, scheduler.ErrUnknownJobType) {
		t.Errorf("Register error = %v, want ErrUnknownJobType", err)
	}
}

func TestRegistry_GetUnregistered(t *testing.T) {
	r := job.NewRegistry()

	if _, ok := r.Get(job.TypeAggregation); ok {
		t.Error("Get on empty registry returned a handler")
	}
}

func TestType_Valid(t *testing.T) {
	valid := []job.Type{job.TypeRecurringTasks, job.TypeReminders, job.TypeAggregation, job.TypeReports}
	for _, typ := range valid {
		if !typ.Valid() {
			t.Errorf("%s.Valid() = false, want true", typ)
		}
	}
	if job.Type("bogus").Valid() {
		t.Error(`Type("bogus").Valid() = true, want false`)
	}
}

func TestParseSchedule(t *testing.T) {
	sched, err := job.ParseSchedule("*/5 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule error: %v", err)
	}
	if sched == nil {
		t.Fatal("ParseSchedule returned nil schedule")
	}

	_, err = job.ParseSchedule("not a cron expression")
	if !errors.Is(err, scheduler.ErrInvalidSchedule) {
		t.Errorf("ParseSchedule error = %v, want ErrInvalidSchedule", err)
	}
}

func TestValidateSchedule_EmptyIsValid(t *testing.T) {
	if err := job.ValidateSchedule(""); err != nil {
		t.Errorf("ValidateSchedule(\"\") = %v, want nil", err)
	}
	if err := job.ValidateSchedule("@every 30m"); err != nil {
		t.Errorf("ValidateSchedule(@every 30m) = %v, want nil", err)
	}
}
