package services

import (
  "context"
  "sync"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

func testLogger() *logger.Logger { return logger.NewNop() }

// fakeRunRepo is an in-memory GenerationRunRepo.
type fakeRunRepo struct {
  mu   sync.Mutex
  runs map[uuid.UUID]*types.GenerationRun
}

func newFakeRunRepo() *fakeRunRepo {
  return &fakeRunRepo{runs: make(map[uuid.UUID]*types.GenerationRun)}
}

func (r *fakeRunRepo) Create(ctx context.Context, tx *gorm.DB, runs []*types.GenerationRun) ([]*types.GenerationRun, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  for _, run := range runs {
    copied := *run
    r.runs[run.ID] = &copied
  }
  return runs, nil
}

func (r *fakeRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.GenerationRun, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  out := make([]*types.GenerationRun, 0, len(ids))
  for _, id := range ids {
    if run, ok := r.runs[id]; ok {
      copied := *run
      out = append(out, &copied)
    }
  }
  return out, nil
}

func (r *fakeRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  r.mu.Lock()
  defer r.mu.Unlock()
  run, ok := r.runs[id]
  if !ok {
    return nil
  }
  for field, val := range updates {
    switch field {
    case "status":
      run.Status = val.(string)
    case "progress":
      run.Progress = val.(int)
    case "step":
      run.Step = val.(string)
    case "error":
      run.Error = val.(string)
    case "plan_id":
      planID := val.(uuid.UUID)
      run.PlanID = &planID
    case "completed_at":
      at := val.(time.Time)
      run.CompletedAt = &at
    case "updated_at":
      run.UpdatedAt = val.(time.Time)
    }
  }
  return nil
}

func (r *fakeRunRepo) ListRecentByRequester(ctx context.Context, tx *gorm.DB, requester types.Requester, limit int) ([]*types.GenerationRun, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  out := []*types.GenerationRun{}
  for _, run := range r.runs {
    if run.Requester().ChannelKey() == requester.ChannelKey() {
      copied := *run
      out = append(out, &copied)
    }
  }
  return out, nil
}

func (r *fakeRunRepo) DeleteTerminalOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  var removed int64
  for id, run := range r.runs {
    if types.IsTerminalGenerationStatus(run.Status) && run.UpdatedAt.Before(cutoff) {
      delete(r.runs, id)
      removed++
    }
  }
  return removed, nil
}

func (r *fakeRunRepo) get(id uuid.UUID) *types.GenerationRun {
  r.mu.Lock()
  defer r.mu.Unlock()
  run, ok := r.runs[id]
  if !ok {
    return nil
  }
  copied := *run
  return &copied
}

// fakePlanRepo is an in-memory PlanRepo.
type fakePlanRepo struct {
  mu    sync.Mutex
  plans map[uuid.UUID]*types.Plan
}

func newFakePlanRepo() *fakePlanRepo {
  return &fakePlanRepo{plans: make(map[uuid.UUID]*types.Plan)}
}

func (r *fakePlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.Plan) ([]*types.Plan, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  for _, p := range plans {
    copied := *p
    r.plans[p.ID] = &copied
  }
  return plans, nil
}

func (r *fakePlanRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Plan, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  out := make([]*types.Plan, 0, len(ids))
  for _, id := range ids {
    if p, ok := r.plans[id]; ok {
      copied := *p
      out = append(out, &copied)
    }
  }
  return out, nil
}

func (r *fakePlanRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  r.mu.Lock()
  defer r.mu.Unlock()
  p, ok := r.plans[id]
  if !ok {
    return nil
  }
  for field, val := range updates {
    switch field {
    case "itinerary":
      p.Itinerary = val.(string)
    case "end_date":
      p.EndDate = val.(time.Time)
    case "updated_at":
      p.UpdatedAt = val.(time.Time)
    }
  }
  return nil
}

func (r *fakePlanRepo) get(id uuid.UUID) *types.Plan {
  r.mu.Lock()
  defer r.mu.Unlock()
  p, ok := r.plans[id]
  if !ok {
    return nil
  }
  copied := *p
  return &copied
}

// fakeCacheRepo is an in-memory AIResponseCacheRepo keyed by prompt hash.
type fakeCacheRepo struct {
  mu   sync.Mutex
  rows map[string]*types.AIResponseCache
}

func newFakeCacheRepo() *fakeCacheRepo {
  return &fakeCacheRepo{rows: make(map[string]*types.AIResponseCache)}
}

func (r *fakeCacheRepo) GetByHash(ctx context.Context, tx *gorm.DB, promptHash string) (*types.AIResponseCache, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  row, ok := r.rows[promptHash]
  if !ok {
    return nil, nil
  }
  copied := *row
  return &copied, nil
}

func (r *fakeCacheRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.AIResponseCache) error {
  r.mu.Lock()
  defer r.mu.Unlock()
  if existing, ok := r.rows[row.PromptHash]; ok {
    existing.Response = row.Response
    existing.Model = row.Model
    existing.TokenCount = row.TokenCount
    existing.ExpiresAt = row.ExpiresAt
    return nil
  }
  copied := *row
  if copied.ID == uuid.Nil {
    copied.ID = uuid.New()
  }
  r.rows[row.PromptHash] = &copied
  return nil
}

func (r *fakeCacheRepo) IncrementHits(ctx context.Context, tx *gorm.DB, promptHash string) error {
  r.mu.Lock()
  defer r.mu.Unlock()
  if row, ok := r.rows[promptHash]; ok {
    row.Hits++
  }
  return nil
}

func (r *fakeCacheRepo) DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  var removed int64
  for hash, row := range r.rows {
    if row.ExpiresAt != nil && !row.ExpiresAt.After(now) {
      delete(r.rows, hash)
      removed++
    }
  }
  return removed, nil
}

func (r *fakeCacheRepo) DeleteByHash(ctx context.Context, tx *gorm.DB, promptHash string) error {
  r.mu.Lock()
  defer r.mu.Unlock()
  delete(r.rows, promptHash)
  return nil
}

func (r *fakeCacheRepo) hits(promptHash string) int64 {
  r.mu.Lock()
  defer r.mu.Unlock()
  if row, ok := r.rows[promptHash]; ok {
    return row.Hits
  }
  return 0
}

// fakeCallLogRepo records AI call log rows in memory.
type fakeCallLogRepo struct {
  mu   sync.Mutex
  rows []*types.AICallLog
}

func (r *fakeCallLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*types.AICallLog) ([]*types.AICallLog, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  r.rows = append(r.rows, logs...)
  return logs, nil
}

// fakeProvider is a scriptable ItineraryProvider.
type fakeProvider struct {
  mu        sync.Mutex
  name      string
  available bool
  resp      *ProviderResponse
  err       error
  calls     int
}

func (p *fakeProvider) Name() string    { return p.name }
func (p *fakeProvider) Available() bool { return p.available }

func (p *fakeProvider) Generate(ctx context.Context, prompt string, model string) (*ProviderResponse, error) {
  p.mu.Lock()
  defer p.mu.Unlock()
  p.calls++
  if p.err != nil {
    return nil, p.err
  }
  return p.resp, nil
}

func (p *fakeProvider) callCount() int {
  p.mu.Lock()
  defer p.mu.Unlock()
  return p.calls
}
