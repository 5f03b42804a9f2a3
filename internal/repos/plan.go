package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

type PlanRepo interface {
  Create(ctx context.Context, tx *gorm.DB, plans []*types.Plan) ([]*types.Plan, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Plan, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type planRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPlanRepo(db *gorm.DB, baseLog *logger.Logger) PlanRepo {
  repoLog := baseLog.With("repo", "PlanRepo")
  return &planRepo{db: db, log: repoLog}
}

func (r *planRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.Plan) ([]*types.Plan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(plans) == 0 {
    return []*types.Plan{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
    return nil, err
  }
  return plans, nil
}

func (r *planRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Plan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Plan
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

func (r *planRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil || len(updates) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.Plan{}).
    Where("id = ?", id).
    Updates(updates).Error
}
