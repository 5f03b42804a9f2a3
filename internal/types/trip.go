package types

import (
  "fmt"
  "time"

  "github.com/google/uuid"
)

// TripRequest is the structured input for one itinerary generation.
type TripRequest struct {
  Destination   string    `json:"destination"`
  StartDate     time.Time `json:"start_date"`
  EndDate       time.Time `json:"end_date"`
  Travelers     int       `json:"travelers"`
  Budget        float64   `json:"budget"`
  Preferences   string    `json:"preferences"`
  TripType      string    `json:"trip_type"`
  TransportMode string    `json:"transport_mode"`
  DepartureFrom string    `json:"departure_from"`
}

func (r TripRequest) Days() int {
  if r.EndDate.Before(r.StartDate) {
    return 0
  }
  return int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
}

func (r TripRequest) Summary() string {
  return fmt.Sprintf("%s, %d day(s), %d traveler(s)", r.Destination, r.Days(), r.Travelers)
}

// Requester identifies who asked for a generation: an authenticated user id
// or an anonymous cookie id, never both.
type Requester struct {
  UserID uuid.UUID `json:"user_id,omitempty"`
  AnonID string    `json:"anon_id,omitempty"`
}

func (r Requester) IsZero() bool {
  return r.UserID == uuid.Nil && r.AnonID == ""
}

// ChannelKey is the pub/sub group key for requester-scoped events.
func (r Requester) ChannelKey() string {
  if r.UserID != uuid.Nil {
    return r.UserID.String()
  }
  return "anon:" + r.AnonID
}
