package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// AICallLog records the outcome of a single provider call, best-effort.
type AICallLog struct {
  ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID    *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
  RunID     *uuid.UUID     `gorm:"type:uuid;index" json:"run_id,omitempty"`
  Provider  string         `gorm:"column:provider;not null" json:"provider"`
  Model     string         `gorm:"column:model;not null" json:"model"`
  Success   bool           `gorm:"column:success;not null" json:"success"`
  Error     string         `gorm:"column:error" json:"error"`
  Usage     datatypes.JSON `gorm:"type:jsonb;column:usage" json:"usage"`
  CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (AICallLog) TableName() string { return "ai_call_log" }
