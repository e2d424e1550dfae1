package client

import (
	"context"
	"time"

	"github.com/mixboard/gateway/internal/config"
)

// RetryPolicy decides, for a classified failure and attempt count, whether
// an operation is retried, how long to wait first, and when to give up.
// Budgets are per-class: exhausting one class's budget fails the call even
// if other classes have attempts left.
type RetryPolicy struct {
	MaxNetworkAttempts int
	MaxDecodeAttempts  int
	MaxRegionAttempts  int
	PollInterval       time.Duration
	BackoffBase        time.Duration
	BackoffCap         time.Duration
}

// NewRetryPolicy builds a policy from the generator config.
func NewRetryPolicy(cfg config.GeneratorConfig) RetryPolicy {
	return RetryPolicy{
		MaxNetworkAttempts: cfg.MaxNetworkAttempts,
		MaxDecodeAttempts:  cfg.MaxDecodeAttempts,
		MaxRegionAttempts:  cfg.MaxRegionAttempts,
		PollInterval:       cfg.PollInterval(),
		BackoffBase:        250 * time.Millisecond,
		BackoffCap:         5 * time.Second,
	}
}

// retryState tracks per-class attempt counters across one logical call.
type retryState struct {
	network  int
	decode   int
	notReady int
}

// next reports whether the call should be retried after err, and the delay
// to wait before the retry. A false return means err is final.
func (p RetryPolicy) next(st *retryState, err error) (time.Duration, bool) {
	switch Classify(err) {
	case ClassTransient:
		st.network++
		if st.network >= p.MaxNetworkAttempts {
			return 0, false
		}
		return p.backoff(st.network), true
	case ClassDecode:
		st.decode++
		if st.decode >= p.MaxDecodeAttempts {
			return 0, false
		}
		return 0, true
	case ClassNotReady:
		st.notReady++
		if st.notReady >= p.MaxRegionAttempts {
			return 0, false
		}
		return p.PollInterval, true
	default:
		return 0, false
	}
}

// backoff doubles the base delay per consecutive network failure, capped.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BackoffBase
	for i := 1; i < attempt && d < p.BackoffCap; i++ {
		d *= 2
	}
	if d > p.BackoffCap {
		d = p.BackoffCap
	}
	return d
}

// Do runs op under the policy, sleeping between classified retries until a
// budget is exhausted, the error is fatal, or ctx is done. The network
// counter resets after any successful round-trip inside op is observed via
// a nil or non-transient error; callers that poll repeatedly construct a
// fresh state per call, so a budget always means consecutive failures.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	st := &retryState{}
	for {
		err := op()
		if err == nil {
			return nil
		}
		if Classify(err) != ClassTransient {
			// A decoded-but-unusable response proves the network path works;
			// start the transient budget over.
			st.network = 0
		}

		delay, retry := p.next(st, err)
		if !retry {
			return err
		}
		if delay == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
