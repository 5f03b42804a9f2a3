package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

type Plan struct {
  ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID        *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
  AnonID        string         `gorm:"column:anon_id;index" json:"anon_id,omitempty"`
  Destination   string         `gorm:"column:destination;not null" json:"destination"`
  StartDate     time.Time      `gorm:"column:start_date;not null" json:"start_date"`
  EndDate       time.Time      `gorm:"column:end_date;not null" json:"end_date"`
  Travelers     int            `gorm:"column:travelers;not null;default:1" json:"travelers"`
  Budget        float64        `gorm:"column:budget" json:"budget"`
  Preferences   string         `gorm:"column:preferences" json:"preferences"`
  TripType      string         `gorm:"column:trip_type" json:"trip_type"`
  TransportMode string         `gorm:"column:transport_mode" json:"transport_mode"`
  DepartureFrom string         `gorm:"column:departure_from" json:"departure_from"`
  Itinerary     string         `gorm:"column:itinerary;type:text" json:"itinerary"`
  Accommodations  datatypes.JSON `gorm:"type:jsonb;column:accommodations" json:"accommodations"`
  Activities      datatypes.JSON `gorm:"type:jsonb;column:activities" json:"activities"`
  Transportation  datatypes.JSON `gorm:"type:jsonb;column:transportation" json:"transportation"`
  CreatedAt     time.Time      `gorm:"not null;default:now();index" json:"created_at"`
  UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Plan) TableName() string { return "plan" }

// PlanDelta is a structured, partial edit to an existing itinerary.
// It is a transient request payload and never persisted.
type PlanDelta struct {
  Days           []DayDelta `json:"days"`
  TruncateToDays int        `json:"truncate_to_days,omitempty"`
}

type DayDelta struct {
  Day          int      `json:"day"`
  AddMorning   []string `json:"add_morning,omitempty"`
  AddAfternoon []string `json:"add_afternoon,omitempty"`
  AddEvening   []string `json:"add_evening,omitempty"`
  Remove       []string `json:"remove,omitempty"`
  Note         string   `json:"note,omitempty"`
}

func (d DayDelta) IsEmpty() bool {
  return len(d.AddMorning) == 0 &&
    len(d.AddAfternoon) == 0 &&
    len(d.AddEvening) == 0 &&
    len(d.Remove) == 0 &&
    d.Note == ""
}

func (d PlanDelta) IsEmpty() bool {
  if d.TruncateToDays > 0 {
    return false
  }
  for _, day := range d.Days {
    if !day.IsEmpty() {
      return false
    }
  }
  return true
}
