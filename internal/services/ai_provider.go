package services

import (
  "context"
  "errors"
  "fmt"
  "net"
  "strings"

  "github.com/wanderplan/wanderplan-backend/internal/types"
)

// ItineraryProvider is one generative-text backend. Providers without
// credentials report Available() == false and are skipped by the chain.
type ItineraryProvider interface {
  Name() string
  Available() bool
  // Generate returns itinerary text for the prompt. An empty model selects
  // the provider's default.
  Generate(ctx context.Context, prompt string, model string) (*ProviderResponse, error)
}

type ProviderResponse struct {
  Text       string
  Model      string
  TokenCount int
}

// ProviderError normalizes provider-specific failures into the
// transient/permanent classification the resilience wrapper needs.
type ProviderError struct {
  Provider   string
  StatusCode int
  Message    string
  Transient  bool
}

func (e *ProviderError) Error() string {
  if e.StatusCode > 0 {
    return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Message)
  }
  return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func isRetryableHTTP(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  if code >= 500 && code <= 599 {
    return true
  }
  return false
}

// IsTransientProviderError reports whether a failed call is worth retrying:
// timeouts, connection failures and 5xx-equivalent responses qualify; bad
// credentials and malformed requests do not.
func IsTransientProviderError(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, context.Canceled) {
    return false
  }
  if errors.Is(err, context.DeadlineExceeded) {
    return true
  }
  var netErr net.Error
  if errors.As(err, &netErr) {
    return true
  }
  var pErr *ProviderError
  if errors.As(err, &pErr) {
    return pErr.Transient
  }
  return false
}

// BuildTripPrompt renders the structured trip request as the prompt sent to
// providers. The text is also the cache key input, so formatting here is
// stable on purpose.
func BuildTripPrompt(req types.TripRequest) string {
  var b strings.Builder
  fmt.Fprintf(&b, "Create a day-by-day travel itinerary for %s.\n", req.Destination)
  fmt.Fprintf(&b, "Trip length: %d days (%s to %s).\n",
    req.Days(), req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"))
  fmt.Fprintf(&b, "Travelers: %d. Budget: %.0f.\n", req.Travelers, req.Budget)
  if req.TripType != "" {
    fmt.Fprintf(&b, "Trip type: %s.\n", req.TripType)
  }
  if req.TransportMode != "" {
    fmt.Fprintf(&b, "Preferred transport: %s.\n", req.TransportMode)
  }
  if req.DepartureFrom != "" {
    fmt.Fprintf(&b, "Departing from: %s.\n", req.DepartureFrom)
  }
  if req.Preferences != "" {
    fmt.Fprintf(&b, "Preferences: %s.\n", req.Preferences)
  }
  b.WriteString("Format each day as a 'Day N' heading with Morning:, Afternoon: and Evening: sections.")
  return b.String()
}

// BuildEditPrompt renders a chat-assistant edit request over an existing
// itinerary.
func BuildEditPrompt(itineraryText, instruction string) string {
  var b strings.Builder
  b.WriteString("You are editing an existing travel itinerary. Apply the instruction and return the full revised itinerary, keeping the 'Day N' headings and Morning:/Afternoon:/Evening: sections.\n\n")
  b.WriteString("Instruction: ")
  b.WriteString(strings.TrimSpace(instruction))
  b.WriteString("\n\nItinerary:\n")
  b.WriteString(itineraryText)
  return b.String()
}
