package types

import (
  "time"

  "github.com/google/uuid"
)

// AIResponseCache stores one provider response keyed by the hex SHA-256
// digest of the canonicalized prompt text.
type AIResponseCache struct {
  ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  PromptHash string     `gorm:"column:prompt_hash;size:64;not null;uniqueIndex" json:"prompt_hash"`
  Response   string     `gorm:"column:response;type:text;not null" json:"response"`
  Model      string     `gorm:"column:model;not null" json:"model"`
  TokenCount int        `gorm:"column:token_count;not null;default:0" json:"token_count"`
  Hits       int64      `gorm:"column:hits;not null;default:0" json:"hits"`
  ExpiresAt  *time.Time `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
  CreatedAt  time.Time  `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt  time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (AIResponseCache) TableName() string { return "ai_response_cache" }

func (c *AIResponseCache) Expired(now time.Time) bool {
  return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
