package services

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/repos"
  "github.com/wanderplan/wanderplan-backend/internal/sse"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

// GenerationStatusService is the status tracker: every transition is written
// to storage and broadcast to live subscribers of the job's channel. Status
// writes are best effort for the worker; only terminal marks return errors
// the worker cares about.
type GenerationStatusService interface {
  CreateStatus(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, trip types.TripRequest, requester types.Requester) (*types.GenerationRun, error)
  MarkRunning(ctx context.Context, jobID uuid.UUID, step string)
  UpdateProgress(ctx context.Context, jobID uuid.UUID, percent int, step string)
  MarkCompleted(ctx context.Context, jobID uuid.UUID, planID uuid.UUID) error
  MarkFailed(ctx context.Context, jobID uuid.UUID, message string) error
  GetStatus(ctx context.Context, jobID uuid.UUID) (*types.GenerationRun, error)
  ListRecent(ctx context.Context, requester types.Requester, limit int) ([]*types.GenerationRun, error)
  Sweep(ctx context.Context, maxAge time.Duration) (int64, error)
}

type generationStatusService struct {
  db      *gorm.DB
  log     *logger.Logger
  runRepo repos.GenerationRunRepo
  hub     *sse.SSEHub
  bus     SSEBus
}

// NewGenerationStatusService wires the tracker. bus may be nil when the
// process runs without redis; events then stay in-process.
func NewGenerationStatusService(db *gorm.DB, baseLog *logger.Logger, runRepo repos.GenerationRunRepo, hub *sse.SSEHub, bus SSEBus) GenerationStatusService {
  return &generationStatusService{
    db:      db,
    log:     baseLog.With("service", "GenerationStatusService"),
    runRepo: runRepo,
    hub:     hub,
    bus:     bus,
  }
}

func (s *generationStatusService) CreateStatus(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, trip types.TripRequest, requester types.Requester) (*types.GenerationRun, error) {
  now := time.Now()
  run := &types.GenerationRun{
    ID:          jobID,
    AnonID:      requester.AnonID,
    Status:      types.GenerationQueued,
    Progress:    0,
    Step:        "Waiting in queue",
    TripSummary: trip.Summary(),
    Metadata:    datatypes.JSON([]byte(`{}`)),
    CreatedAt:   now,
    UpdatedAt:   now,
  }
  if requester.UserID != uuid.Nil {
    uid := requester.UserID
    run.UserID = &uid
  }
  created, err := s.runRepo.Create(ctx, tx, []*types.GenerationRun{run})
  if err != nil {
    return nil, err
  }
  run = created[0]
  s.broadcast(run, sse.SSEEventGenerationQueued)
  return run, nil
}

func (s *generationStatusService) MarkRunning(ctx context.Context, jobID uuid.UUID, step string) {
  run := s.load(ctx, jobID)
  if run == nil {
    s.log.Warn("MarkRunning for unknown job", "job_id", jobID)
    return
  }
  if types.IsTerminalGenerationStatus(run.Status) {
    return
  }
  now := time.Now()
  updates := map[string]any{
    "status":     types.GenerationRunning,
    "step":       step,
    "updated_at": now,
  }
  if err := s.runRepo.UpdateFields(ctx, nil, jobID, updates); err != nil {
    s.log.Warn("MarkRunning write failed", "job_id", jobID, "error", err)
    return
  }
  run.Status = types.GenerationRunning
  run.Step = step
  run.UpdatedAt = now
  s.broadcast(run, sse.SSEEventGenerationProgress)
}

// UpdateProgress is a logged no-op when the record is missing or terminal.
// Progress never moves backwards.
func (s *generationStatusService) UpdateProgress(ctx context.Context, jobID uuid.UUID, percent int, step string) {
  run := s.load(ctx, jobID)
  if run == nil {
    s.log.Warn("UpdateProgress for unknown job", "job_id", jobID)
    return
  }
  if types.IsTerminalGenerationStatus(run.Status) {
    return
  }
  if percent < run.Progress {
    percent = run.Progress
  }
  if percent > 100 {
    percent = 100
  }
  now := time.Now()
  updates := map[string]any{
    "progress":   percent,
    "step":       step,
    "updated_at": now,
  }
  if err := s.runRepo.UpdateFields(ctx, nil, jobID, updates); err != nil {
    s.log.Warn("UpdateProgress write failed", "job_id", jobID, "error", err)
    return
  }
  run.Progress = percent
  run.Step = step
  run.UpdatedAt = now
  s.broadcast(run, sse.SSEEventGenerationProgress)
}

// MarkCompleted is idempotent; only the first terminal transition broadcasts.
func (s *generationStatusService) MarkCompleted(ctx context.Context, jobID uuid.UUID, planID uuid.UUID) error {
  run := s.load(ctx, jobID)
  if run == nil {
    s.log.Warn("MarkCompleted for unknown job", "job_id", jobID)
    return ErrRunNotFound
  }
  if types.IsTerminalGenerationStatus(run.Status) {
    return nil
  }
  now := time.Now()
  updates := map[string]any{
    "status":       types.GenerationCompleted,
    "progress":     100,
    "step":         "Done",
    "plan_id":      planID,
    "completed_at": now,
    "updated_at":   now,
  }
  if err := s.runRepo.UpdateFields(ctx, nil, jobID, updates); err != nil {
    return err
  }
  run.Status = types.GenerationCompleted
  run.Progress = 100
  run.Step = "Done"
  run.PlanID = &planID
  run.CompletedAt = &now
  run.UpdatedAt = now
  s.broadcast(run, sse.SSEEventGenerationCompleted)
  return nil
}

// MarkFailed is idempotent; only the first terminal transition broadcasts.
func (s *generationStatusService) MarkFailed(ctx context.Context, jobID uuid.UUID, message string) error {
  run := s.load(ctx, jobID)
  if run == nil {
    s.log.Warn("MarkFailed for unknown job", "job_id", jobID)
    return ErrRunNotFound
  }
  if types.IsTerminalGenerationStatus(run.Status) {
    return nil
  }
  now := time.Now()
  updates := map[string]any{
    "status":       types.GenerationFailed,
    "error":        message,
    "completed_at": now,
    "updated_at":   now,
  }
  if err := s.runRepo.UpdateFields(ctx, nil, jobID, updates); err != nil {
    return err
  }
  run.Status = types.GenerationFailed
  run.Error = message
  run.CompletedAt = &now
  run.UpdatedAt = now
  s.broadcast(run, sse.SSEEventGenerationFailed)
  return nil
}

func (s *generationStatusService) GetStatus(ctx context.Context, jobID uuid.UUID) (*types.GenerationRun, error) {
  runs, err := s.runRepo.GetByIDs(ctx, nil, []uuid.UUID{jobID})
  if err != nil {
    return nil, err
  }
  if len(runs) == 0 || runs[0] == nil {
    return nil, ErrRunNotFound
  }
  return runs[0], nil
}

func (s *generationStatusService) ListRecent(ctx context.Context, requester types.Requester, limit int) ([]*types.GenerationRun, error) {
  if requester.IsZero() {
    return []*types.GenerationRun{}, nil
  }
  return s.runRepo.ListRecentByRequester(ctx, nil, requester, limit)
}

func (s *generationStatusService) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
  return s.runRepo.DeleteTerminalOlderThan(ctx, nil, time.Now().Add(-maxAge))
}

func (s *generationStatusService) load(ctx context.Context, jobID uuid.UUID) *types.GenerationRun {
  runs, err := s.runRepo.GetByIDs(ctx, nil, []uuid.UUID{jobID})
  if err != nil {
    s.log.Warn("run load failed", "job_id", jobID, "error", err)
    return nil
  }
  if len(runs) == 0 {
    return nil
  }
  return runs[0]
}

// broadcast fans the transition out to the job channel and the requester
// channel, in-process first, then across processes via the bus.
func (s *generationStatusService) broadcast(run *types.GenerationRun, event sse.SSEEvent) {
  if run == nil {
    return
  }
  data := map[string]any{"run": run}
  channels := []string{run.ID.String()}
  if key := run.Requester().ChannelKey(); key != "" && key != "anon:" {
    channels = append(channels, key)
  }
  for _, ch := range channels {
    msg := sse.SSEMessage{Channel: ch, Event: event, Data: data}
    if s.hub != nil {
      s.hub.Broadcast(msg)
    }
    if s.bus != nil {
      if err := s.bus.Publish(context.Background(), msg); err != nil {
        s.log.Debug("bus publish failed", "channel", ch, "error", err)
      }
    }
  }
}
