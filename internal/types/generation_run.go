package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// Generation run statuses. Transitions are monotone:
// queued -> running -> completed | failed.
const (
  GenerationQueued    = "queued"
  GenerationRunning   = "running"
  GenerationCompleted = "completed"
  GenerationFailed    = "failed"
)

func IsTerminalGenerationStatus(status string) bool {
  return status == GenerationCompleted || status == GenerationFailed
}

// GenerationRun is the persisted state of one itinerary generation job.
// The run ID doubles as the externally visible job id.
type GenerationRun struct {
  ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID      *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
  AnonID      string         `gorm:"column:anon_id;index" json:"anon_id,omitempty"`
  Status      string         `gorm:"column:status;not null;index" json:"status"`
  Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
  Step        string         `gorm:"column:step" json:"step"`
  TripSummary string         `gorm:"column:trip_summary" json:"trip_summary"`
  Error       string         `gorm:"column:error" json:"error"`
  PlanID      *uuid.UUID     `gorm:"type:uuid;index" json:"plan_id,omitempty"`
  Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
  CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
  UpdatedAt   time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
  CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
  DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (GenerationRun) TableName() string { return "generation_run" }

func (r *GenerationRun) Requester() Requester {
  req := Requester{AnonID: r.AnonID}
  if r.UserID != nil {
    req.UserID = *r.UserID
  }
  return req
}
