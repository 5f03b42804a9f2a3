package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

type AIResponseCacheRepo interface {
  // GetByHash returns nil (no error) when the hash has no row.
  GetByHash(ctx context.Context, tx *gorm.DB, promptHash string) (*types.AIResponseCache, error)

  // Upsert inserts a row for the prompt hash or refreshes the existing one.
  Upsert(ctx context.Context, tx *gorm.DB, row *types.AIResponseCache) error

  IncrementHits(ctx context.Context, tx *gorm.DB, promptHash string) error
  DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
  DeleteByHash(ctx context.Context, tx *gorm.DB, promptHash string) error
}

type aiResponseCacheRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAIResponseCacheRepo(db *gorm.DB, baseLog *logger.Logger) AIResponseCacheRepo {
  repoLog := baseLog.With("repo", "AIResponseCacheRepo")
  return &aiResponseCacheRepo{db: db, log: repoLog}
}

func (r *aiResponseCacheRepo) GetByHash(ctx context.Context, tx *gorm.DB, promptHash string) (*types.AIResponseCache, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if promptHash == "" {
    return nil, nil
  }
  var row types.AIResponseCache
  err := transaction.WithContext(ctx).
    Where("prompt_hash = ?", promptHash).
    First(&row).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &row, nil
}

func (r *aiResponseCacheRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.AIResponseCache) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if row == nil {
    return nil
  }
  if row.ID == uuid.Nil {
    row.ID = uuid.New()
  }
  now := time.Now()
  if row.CreatedAt.IsZero() {
    row.CreatedAt = now
  }
  row.UpdatedAt = now
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "prompt_hash"}},
      DoUpdates: clause.AssignmentColumns([]string{
        "response", "model", "token_count", "expires_at", "updated_at",
      }),
    }).
    Create(row).Error
}

func (r *aiResponseCacheRepo) IncrementHits(ctx context.Context, tx *gorm.DB, promptHash string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.AIResponseCache{}).
    Where("prompt_hash = ?", promptHash).
    UpdateColumn("hits", gorm.Expr("hits + 1")).Error
}

func (r *aiResponseCacheRepo) DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Where("expires_at IS NOT NULL AND expires_at <= ?", now).
    Delete(&types.AIResponseCache{})
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}

func (r *aiResponseCacheRepo) DeleteByHash(ctx context.Context, tx *gorm.DB, promptHash string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if promptHash == "" {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("prompt_hash = ?", promptHash).
    Delete(&types.AIResponseCache{}).Error
}
