package backoff_test

import (
	"testing"
	"time"

	"github.com/carebridge/scheduler/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestLinear_GrowsLinearly(t *testing.T) {
	l := backoff.NewLinear(time.Second, time.Minute)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{5, 5 * time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := l.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestLinear_CapsAtMax(t *testing.T) {
	l := backoff.NewLinear(time.Second, 5*time.Second)

	if got := l.Delay(100); got != 5*time.Second {
		t.Errorf("Delay(100) = %v, want %v (capped at Max)", got, 5*time.Second)
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second}, // 1 * 2^0
		{2, 2 * time.Second}, // 1 * 2^1
		{3, 4 * time.Second}, // 1 * 2^2
		{4, 8 * time.Second}, // 1 * 2^3
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, time.Minute)

	for attempt := 1; attempt <= 10; attempt++ {
		got := e.Delay(attempt)
		if got < 0 || got > time.Minute {
			t.Errorf("Delay(%d) = %v, want within [0, %v]", attempt, got, time.Minute)
		}
	}
}

// The default strategy backs a job that has failed n consecutive times
// off by min(2^n, 60) minutes. The runner calls Delay(retryCount+1), so
// attempt n+1 maps to failure streak n.
func TestDefaultStrategy_MinutesFormula(t *testing.T) {
	s := backoff.DefaultStrategy()

	tests := []struct {
		failures int
		wantMin  int
	}{
		{0, 1},
		{1, 2},
		{2, 4},
		{5, 32},
		{6, 60},
		{10, 60},
	}
	for _, tt := range tests {
		want := time.Duration(tt.wantMin) * time.Minute
		if got := s.Delay(tt.failures + 1); got != want {
			t.Errorf("Delay(%d) = %v, want %v", tt.failures+1, got, want)
		}
	}
}

func TestDefaultStrategy_NonDecreasing(t *testing.T) {
	s := backoff.DefaultStrategy()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		got := s.Delay(attempt)
		if got < prev {
			t.Fatalf("Delay(%d) = %v < Delay(%d) = %v, want non-decreasing", attempt, got, attempt-1, prev)
		}
		prev = got
	}
}
