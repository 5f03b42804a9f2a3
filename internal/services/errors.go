package services

import (
  "errors"
  "fmt"
  "strings"
  "time"
)

// ErrRunNotFound is returned by status lookups for unknown job ids. The page
// layer maps it to "no plan found, create a new one".
var ErrRunNotFound = errors.New("generation run not found")

var ErrPlanNotFound = errors.New("plan not found")

// RateLimitedError is raised before any provider call; it never marks a job
// failed, the request is simply rejected pre-flight.
type RateLimitedError struct {
  RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
  return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

// ProviderFailure records why one provider in the chain did not produce a
// response.
type ProviderFailure struct {
  Provider string `json:"provider"`
  Reason   string `json:"reason"`
}

// AllProvidersFailedError aggregates every provider's failure when the whole
// chain is exhausted.
type AllProvidersFailedError struct {
  Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
  parts := make([]string, 0, len(e.Failures))
  for _, f := range e.Failures {
    parts = append(parts, f.Provider+": "+f.Reason)
  }
  return "all itinerary providers failed: " + strings.Join(parts, "; ")
}

// DeltaValidationError rejects a malformed plan delta before anything is
// mutated. Reason is safe to surface to the caller.
type DeltaValidationError struct {
  Reason string
}

func (e *DeltaValidationError) Error() string { return e.Reason }
