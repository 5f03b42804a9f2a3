// Package resilience provides reliability patterns for provider calls.
package resilience

import (
  "errors"
  "sync"
  "time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
  stateClosed state = iota
  stateOpen
  stateHalfOpen
)

// Breaker trips after maxFailures consecutive qualifying failures inside a
// rolling window, fails fast for cooldown, then half-opens to probe recovery.
type Breaker struct {
  mu          sync.Mutex
  state       state
  failures    int
  firstFailAt time.Time
  maxFailures int
  window      time.Duration
  cooldown    time.Duration
  openedAt    time.Time
  now         func() time.Time // for testing
}

func NewBreaker(maxFailures int, window, cooldown time.Duration) *Breaker {
  if maxFailures <= 0 {
    maxFailures = 5
  }
  if window <= 0 {
    window = time.Minute
  }
  if cooldown <= 0 {
    cooldown = 30 * time.Second
  }
  return &Breaker{
    maxFailures: maxFailures,
    window:      window,
    cooldown:    cooldown,
    now:         time.Now,
  }
}

// Execute runs fn if the circuit is closed or half-open.
// Returns ErrCircuitOpen without calling fn if the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
  if !b.allowRequest() {
    return ErrCircuitOpen
  }

  err := fn()

  b.mu.Lock()
  defer b.mu.Unlock()

  if err != nil {
    b.onFailure()
    return err
  }

  b.onSuccess()
  return nil
}

// State reports whether the breaker currently fails fast.
func (b *Breaker) Open() bool {
  b.mu.Lock()
  defer b.mu.Unlock()
  return b.state == stateOpen && b.now().Sub(b.openedAt) < b.cooldown
}

func (b *Breaker) allowRequest() bool {
  b.mu.Lock()
  defer b.mu.Unlock()

  switch b.state {
  case stateClosed:
    return true
  case stateOpen:
    if b.now().Sub(b.openedAt) >= b.cooldown {
      b.state = stateHalfOpen
      return true
    }
    return false
  case stateHalfOpen:
    return true
  }
  return false
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
  now := b.now()
  if b.failures == 0 || now.Sub(b.firstFailAt) > b.window {
    // stale streak, restart the rolling window
    b.failures = 0
    b.firstFailAt = now
  }
  b.failures++
  if b.state == stateHalfOpen || b.failures >= b.maxFailures {
    b.state = stateOpen
    b.openedAt = now
  }
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
  b.failures = 0
  b.state = stateClosed
}
