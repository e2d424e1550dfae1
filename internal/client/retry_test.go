package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxNetworkAttempts: 3,
		MaxDecodeAttempts:  3,
		MaxRegionAttempts:  4,
		PollInterval:       time.Millisecond,
		BackoffBase:        time.Millisecond,
		BackoffCap:         4 * time.Millisecond,
	}
}

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection refused" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"decode", &decodeError{err: errors.New("bad json")}, ClassDecode},
		{"not ready", &notReadyError{regionID: uuid.New()}, ClassNotReady},
		{"service failure", ErrServiceFailure, ClassFatal},
		{"canceled", context.Canceled, ClassFatal},
		{"http 500", &statusError{code: 502, body: "boom"}, ClassTransient},
		{"http 404", &statusError{code: 404, body: "nope"}, ClassFatal},
		{"net error", fakeNetError{}, ClassTransient},
		{"unknown", errors.New("mystery"), ClassTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	p := testPolicy()
	calls := 0

	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fakeNetError{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_ExhaustsNetworkBudget(t *testing.T) {
	p := testPolicy()
	calls := 0

	err := p.Do(context.Background(), func() error {
		calls++
		return fakeNetError{}
	})
	if err == nil {
		t.Fatal("expected error after budget exhaustion")
	}
	if calls != p.MaxNetworkAttempts {
		t.Errorf("expected %d attempts, got %d", p.MaxNetworkAttempts, calls)
	}
}

func TestDo_ExhaustsDecodeBudget(t *testing.T) {
	p := testPolicy()
	calls := 0

	err := p.Do(context.Background(), func() error {
		calls++
		return &decodeError{err: errors.New("bad json")}
	})

	var de *decodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if calls != p.MaxDecodeAttempts {
		t.Errorf("expected %d attempts, got %d", p.MaxDecodeAttempts, calls)
	}
}

func TestDo_FatalStopsImmediately(t *testing.T) {
	p := testPolicy()
	calls := 0

	err := p.Do(context.Background(), func() error {
		calls++
		return ErrServiceFailure
	})
	if !errors.Is(err, ErrServiceFailure) {
		t.Fatalf("expected ErrServiceFailure, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fatal error must not be retried, got %d attempts", calls)
	}
}

func TestDo_NetworkBudgetResetsAfterRoundTrip(t *testing.T) {
	p := testPolicy()
	calls := 0

	// Two transient failures, then a decode failure (a completed round
	// trip), then two more transient failures. Without the reset the fifth
	// transient attempt would exceed the budget of three.
	errs := []error{
		fakeNetError{},
		fakeNetError{},
		&decodeError{err: errors.New("bad json")},
		fakeNetError{},
		fakeNetError{},
	}

	err := p.Do(context.Background(), func() error {
		calls++
		if calls <= len(errs) {
			return errs[calls-1]
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after reset, got %v", err)
	}
	if calls != len(errs)+1 {
		t.Errorf("expected %d attempts, got %d", len(errs)+1, calls)
	}
}

func TestDo_NotReadyUsesRegionBudget(t *testing.T) {
	p := testPolicy()
	id := uuid.New()
	calls := 0

	err := p.Do(context.Background(), func() error {
		calls++
		return &notReadyError{regionID: id}
	})

	var nr *notReadyError
	if !errors.As(err, &nr) {
		t.Fatalf("expected not-ready error, got %v", err)
	}
	if calls != p.MaxRegionAttempts {
		t.Errorf("expected %d attempts, got %d", p.MaxRegionAttempts, calls)
	}
}

func TestDo_ContextCancelStopsRetry(t *testing.T) {
	p := testPolicy()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func() error {
		return fakeNetError{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	p := testPolicy()

	if d := p.backoff(1); d != time.Millisecond {
		t.Errorf("attempt 1: expected 1ms, got %v", d)
	}
	if d := p.backoff(2); d != 2*time.Millisecond {
		t.Errorf("attempt 2: expected 2ms, got %v", d)
	}
	if d := p.backoff(10); d != p.BackoffCap {
		t.Errorf("attempt 10: expected cap %v, got %v", p.BackoffCap, d)
	}
}
