package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/itinerary"
  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/ratelimit"
  "github.com/wanderplan/wanderplan-backend/internal/repos"
  "github.com/wanderplan/wanderplan-backend/internal/requestdata"
  "github.com/wanderplan/wanderplan-backend/internal/types"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
)

// GenerationJob is the value handed from the request path to the worker.
// It is consumed exactly once and never persisted; only its resulting run
// state is.
type GenerationJob struct {
  ID        uuid.UUID
  Trip      types.TripRequest
  Requester types.Requester
}

// PlanGenerationService owns the in-process job queue and the worker loop.
// Enqueue returns as soon as the job is accepted; once accepted, a job runs
// to a terminal status regardless of the originating request's lifetime.
type PlanGenerationService interface {
  Enqueue(ctx context.Context, trip types.TripRequest, requester types.Requester) (*types.GenerationRun, error)
  StartWorker(ctx context.Context)
}

type planGenerationService struct {
  db       *gorm.DB
  log      *logger.Logger
  queue    chan GenerationJob
  workers  int
  status   GenerationStatusService
  chain    FallbackChainService
  planRepo repos.PlanRepo
  limiter  *ratelimit.Limiter
}

func NewPlanGenerationService(
  db *gorm.DB,
  baseLog *logger.Logger,
  status GenerationStatusService,
  chain FallbackChainService,
  planRepo repos.PlanRepo,
  limiter *ratelimit.Limiter,
) PlanGenerationService {
  queueSize := utils.GetEnvAsInt("GENERATION_QUEUE_SIZE", 256, nil)
  if queueSize <= 0 {
    queueSize = 256
  }
  workers := utils.GetEnvAsInt("GENERATION_WORKERS", 1, nil)
  if workers <= 0 {
    workers = 1
  }
  return &planGenerationService{
    db:       db,
    log:      baseLog.With("service", "PlanGenerationService"),
    queue:    make(chan GenerationJob, queueSize),
    workers:  workers,
    status:   status,
    chain:    chain,
    planRepo: planRepo,
    limiter:  limiter,
  }
}

// Enqueue validates the request, creates the queued status record, then hands
// the job to the queue. The ctx only guards the handoff: a caller abort
// before acceptance surfaces as an error, but an accepted job is not
// cancellable.
func (s *planGenerationService) Enqueue(ctx context.Context, trip types.TripRequest, requester types.Requester) (*types.GenerationRun, error) {
  if trip.Destination == "" {
    return nil, fmt.Errorf("destination is required")
  }
  if trip.Days() < 1 {
    return nil, fmt.Errorf("end date must not be before start date")
  }
  if requester.IsZero() {
    return nil, fmt.Errorf("requester identity required")
  }

  // Rate limiting is decided here, before any job is accepted; an accepted
  // job is never failed for it.
  if s.limiter != nil {
    if d := s.limiter.CheckAndRecord(globalLimiterKey); !d.Allowed {
      return nil, &RateLimitedError{RetryAfter: d.RetryAfter}
    }
  }

  job := GenerationJob{
    ID:        uuid.New(),
    Trip:      trip,
    Requester: requester,
  }

  run, err := s.status.CreateStatus(ctx, nil, job.ID, trip, requester)
  if err != nil {
    return nil, fmt.Errorf("create generation status: %w", err)
  }

  select {
  case s.queue <- job:
    s.log.Info("generation job accepted", "job_id", job.ID, "trip", trip.Summary())
    return run, nil
  case <-ctx.Done():
    _ = s.status.MarkFailed(context.Background(), job.ID, "request aborted before the job was accepted")
    return nil, ctx.Err()
  default:
    _ = s.status.MarkFailed(ctx, job.ID, "generation queue is full")
    return nil, fmt.Errorf("generation queue is full")
  }
}

// StartWorker launches the consumer loop(s). One worker is the default;
// more are a capacity knob, not a correctness requirement, since jobs are
// independent.
func (s *planGenerationService) StartWorker(ctx context.Context) {
  for i := 0; i < s.workers; i++ {
    go func(worker int) {
      log := s.log.With("worker", worker)
      log.Info("generation worker started")
      for {
        select {
        case <-ctx.Done():
          log.Info("generation worker stopped")
          return
        case job := <-s.queue:
          s.processJob(ctx, job)
        }
      }
    }(i)
  }
}

// processJob drives one job to a terminal status. Panics and errors are
// converted into a failed status; nothing here may kill the worker loop.
func (s *planGenerationService) processJob(ctx context.Context, job GenerationJob) {
  defer func() {
    if r := recover(); r != nil {
      s.log.Error("generation job panic", "job_id", job.ID, "panic", r)
      _ = s.status.MarkFailed(ctx, job.ID, "internal error while generating the itinerary")
    }
  }()

  s.status.MarkRunning(ctx, job.ID, "Contacting itinerary provider")
  s.status.UpdateProgress(ctx, job.ID, 10, "Contacting itinerary provider")

  // Carry the requester identity so the call log can attribute the call.
  callCtx := requestdata.WithRequestData(ctx, &requestdata.RequestData{
    UserID: job.Requester.UserID,
    AnonID: job.Requester.AnonID,
  })
  resp, err := s.chain.GenerateForTrip(callCtx, job.ID, job.Trip)
  if err != nil {
    s.log.Warn("generation failed", "job_id", job.ID, "error", err)
    _ = s.status.MarkFailed(ctx, job.ID, "We couldn't generate your itinerary right now. Please try again later.")
    return
  }

  s.status.UpdateProgress(ctx, job.ID, 70, "Parsing response")

  plan, err := s.persistPlan(ctx, job, resp)
  if err != nil {
    s.log.Error("plan persist failed", "job_id", job.ID, "error", err)
    _ = s.status.MarkFailed(ctx, job.ID, "Your itinerary was generated but could not be saved.")
    return
  }

  s.status.UpdateProgress(ctx, job.ID, 90, "Saving your plan")

  if err := s.status.MarkCompleted(ctx, job.ID, plan.ID); err != nil {
    s.log.Warn("MarkCompleted failed", "job_id", job.ID, "error", err)
  }
  s.log.Info("generation job completed",
    "job_id", job.ID,
    "plan_id", plan.ID,
    "days", itinerary.CountDays(plan.Itinerary),
  )
}

func (s *planGenerationService) persistPlan(ctx context.Context, job GenerationJob, resp *ProviderResponse) (*types.Plan, error) {
  now := time.Now()
  plan := &types.Plan{
    ID:            uuid.New(),
    AnonID:        job.Requester.AnonID,
    Destination:   job.Trip.Destination,
    StartDate:     job.Trip.StartDate,
    EndDate:       job.Trip.EndDate,
    Travelers:     job.Trip.Travelers,
    Budget:        job.Trip.Budget,
    Preferences:   job.Trip.Preferences,
    TripType:      job.Trip.TripType,
    TransportMode: job.Trip.TransportMode,
    DepartureFrom: job.Trip.DepartureFrom,
    Itinerary:     resp.Text,
    Accommodations: datatypes.JSON([]byte(`[]`)),
    Activities:     datatypes.JSON([]byte(`[]`)),
    Transportation: datatypes.JSON([]byte(`[]`)),
    CreatedAt:     now,
    UpdatedAt:     now,
  }
  if job.Requester.UserID != uuid.Nil {
    uid := job.Requester.UserID
    plan.UserID = &uid
  }
  created, err := s.planRepo.Create(ctx, nil, []*types.Plan{plan})
  if err != nil {
    return nil, err
  }
  return created[0], nil
}
