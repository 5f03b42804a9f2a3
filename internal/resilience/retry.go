package resilience

import (
  "context"
  "math/rand"
  "time"
)

type RetryPolicy struct {
  MaxAttempts int
  BaseDelay   time.Duration
  MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
  return RetryPolicy{
    MaxAttempts: 3,
    BaseDelay:   1 * time.Second,
    MaxDelay:    10 * time.Second,
  }
}

// Retry runs fn up to MaxAttempts times with exponential backoff and jitter,
// sleeping only between attempts whose error retryable classifies as transient.
// The last error is returned when attempts are exhausted.
func Retry(ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func() error) error {
  if policy.MaxAttempts <= 0 {
    policy.MaxAttempts = 3
  }
  if policy.BaseDelay <= 0 {
    policy.BaseDelay = 1 * time.Second
  }

  backoff := policy.BaseDelay
  var lastErr error

  for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
    if ctx.Err() != nil {
      return ctx.Err()
    }

    lastErr = fn()
    if lastErr == nil {
      return nil
    }
    if retryable != nil && !retryable(lastErr) {
      return lastErr
    }
    if attempt == policy.MaxAttempts {
      break
    }

    select {
    case <-ctx.Done():
      return ctx.Err()
    case <-time.After(Jitter(backoff)):
    }

    backoff *= 2
    if policy.MaxDelay > 0 && backoff > policy.MaxDelay {
      backoff = policy.MaxDelay
    }
  }
  return lastErr
}

// Jitter spreads a delay by +/- 20% to avoid retry stampedes.
func Jitter(base time.Duration) time.Duration {
  if base <= 0 {
    return 0
  }
  j := 0.2
  delta := base.Seconds() * j
  low := base.Seconds() - delta
  high := base.Seconds() + delta
  if low < 0 {
    low = 0
  }
  v := low + rand.Float64()*(high-low)
  return time.Duration(v * float64(time.Second))
}
