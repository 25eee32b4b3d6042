package quickpay

import (
	"context"
	"math/rand"
	"time"

	"github.com/alapierre/go-quickpay/quickpay/api"
)

// RetryPolicy bounds retries of transient failures: exponential backoff
// with jitter, a fixed attempt budget and no retry of non-transient
// errors.
type RetryPolicy struct {
	Initial    time.Duration
	Multiplier float64
	Jitter     float64 // fraction of the wait, e.g. 0.25 for ±25%
	Attempts   int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Initial:    500 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     0.25,
		Attempts:   4,
	}
}

// retry runs fn up to p.Attempts times, sleeping between attempts, and
// gives up immediately on errors that are not transient.
func retry(ctx context.Context, p RetryPolicy, op string, fn func() error) error {

	wait := p.Initial
	var err error

	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !api.IsTransient(err) || attempt >= p.Attempts {
			return err
		}

		logger.Debugf("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt, p.Attempts, wait, err)

		timer := time.NewTimer(jittered(wait, p.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		wait = time.Duration(float64(wait) * p.Multiplier)
	}
}

func jittered(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	// uniform in [d*(1-jitter), d*(1+jitter)]
	f := 1 + jitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * f)
}
