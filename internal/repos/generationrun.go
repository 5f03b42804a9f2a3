package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

type GenerationRunRepo interface {
  Create(ctx context.Context, tx *gorm.DB, runs []*types.GenerationRun) ([]*types.GenerationRun, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.GenerationRun, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

  // ListRecentByRequester backs the "my plans in progress" view.
  ListRecentByRequester(ctx context.Context, tx *gorm.DB, requester types.Requester, limit int) ([]*types.GenerationRun, error)

  // DeleteTerminalOlderThan removes completed/failed runs older than the
  // cutoff and returns how many were removed.
  DeleteTerminalOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type generationRunRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
  repoLog := baseLog.With("repo", "GenerationRunRepo")
  return &generationRunRepo{db: db, log: repoLog}
}

func (r *generationRunRepo) Create(ctx context.Context, tx *gorm.DB, runs []*types.GenerationRun) ([]*types.GenerationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(runs) == 0 {
    return []*types.GenerationRun{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&runs).Error; err != nil {
    return nil, err
  }
  return runs, nil
}

func (r *generationRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.GenerationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.GenerationRun
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *generationRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil || len(updates) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.GenerationRun{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *generationRunRepo) ListRecentByRequester(ctx context.Context, tx *gorm.DB, requester types.Requester, limit int) ([]*types.GenerationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    limit = 20
  }
  q := transaction.WithContext(ctx).Model(&types.GenerationRun{})
  if requester.UserID != uuid.Nil {
    q = q.Where("user_id = ?", requester.UserID)
  } else {
    q = q.Where("anon_id = ?", requester.AnonID)
  }
  var results []*types.GenerationRun
  if err := q.Order("created_at DESC").Limit(limit).Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *generationRunRepo) DeleteTerminalOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Where("status IN ?", []string{types.GenerationCompleted, types.GenerationFailed}).
    Where("updated_at < ?", cutoff).
    Delete(&types.GenerationRun{})
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}
