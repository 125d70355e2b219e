package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls how transient failures are retried.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy retries twice after the first attempt, waiting 2s then 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 2 * time.Second, Multiplier: 2}
}

// RetryingCaller wraps a Caller and re-invokes it after transient failures.
// Rate limits and fatal failures are returned on the first occurrence.
type RetryingCaller struct {
	next   Caller
	policy RetryPolicy
	logger *zap.Logger
	// sleep waits for d or until ctx is done; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryingCaller wraps next with policy.
func NewRetryingCaller(next Caller, policy RetryPolicy, logger *zap.Logger) *RetryingCaller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingCaller{next: next, policy: policy, logger: logger, sleep: sleepContext}
}

// Call implements Caller.
func (r *RetryingCaller) Call(ctx context.Context, req Request) Outcome {
	outcome, _ := r.CallWithAttempts(ctx, req)
	return outcome
}

// CallWithAttempts is Call that also reports how many attempts were made.
func (r *RetryingCaller) CallWithAttempts(ctx context.Context, req Request) (Outcome, int) {
	delay := r.policy.InitialDelay
	var outcome Outcome

	for attempt := 1; ; attempt++ {
		outcome = r.next.Call(ctx, req)
		if outcome.Kind != OutcomeTransientFailure || attempt >= r.policy.MaxAttempts {
			return outcome, attempt
		}

		r.logger.Warn("transient remote failure, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.String("detail", outcome.Detail))

		if err := r.sleep(ctx, delay); err != nil {
			return Transient(err.Error()), attempt
		}
		delay = time.Duration(float64(delay) * r.policy.Multiplier)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
