package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/itinerary"
  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/repos"
  "github.com/wanderplan/wanderplan-backend/internal/requestdata"
  "github.com/wanderplan/wanderplan-backend/internal/sse"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

// PlanEditService applies structured deltas to a stored itinerary and
// re-enqueues full regenerations. Deltas are pure text transforms; no
// provider is involved.
type PlanEditService interface {
  GetPlan(ctx context.Context, planID uuid.UUID) (*types.Plan, error)
  ApplyDelta(ctx context.Context, planID uuid.UUID, delta types.PlanDelta) (*types.Plan, error)
  Regenerate(ctx context.Context, planID uuid.UUID) (*types.GenerationRun, error)
}

type planEditService struct {
  db       *gorm.DB
  log      *logger.Logger
  planRepo repos.PlanRepo
  gen      PlanGenerationService
  hub      *sse.SSEHub
  bus      SSEBus
}

func NewPlanEditService(
  db *gorm.DB,
  baseLog *logger.Logger,
  planRepo repos.PlanRepo,
  gen PlanGenerationService,
  hub *sse.SSEHub,
  bus SSEBus,
) PlanEditService {
  return &planEditService{
    db:       db,
    log:      baseLog.With("service", "PlanEditService"),
    planRepo: planRepo,
    gen:      gen,
    hub:      hub,
    bus:      bus,
  }
}

func (s *planEditService) GetPlan(ctx context.Context, planID uuid.UUID) (*types.Plan, error) {
  return loadOwnedPlan(ctx, s.planRepo, planID)
}

func (s *planEditService) ApplyDelta(ctx context.Context, planID uuid.UUID, delta types.PlanDelta) (*types.Plan, error) {
  plan, err := loadOwnedPlan(ctx, s.planRepo, planID)
  if err != nil {
    return nil, err
  }

  planDays := itinerary.CountDays(plan.Itinerary)
  if err := validateDelta(delta, planDays); err != nil {
    return nil, err
  }

  updatedText := itinerary.Apply(plan.Itinerary, delta)

  updates := map[string]interface{}{
    "itinerary":  updatedText,
    "updated_at": time.Now(),
  }
  if delta.TruncateToDays > 0 && delta.TruncateToDays < planDays {
    // keep the stored date range consistent with the shortened itinerary
    newEnd := plan.StartDate.AddDate(0, 0, delta.TruncateToDays-1)
    updates["end_date"] = newEnd
    plan.EndDate = newEnd
  }
  if err := s.planRepo.UpdateFields(ctx, nil, plan.ID, updates); err != nil {
    return nil, fmt.Errorf("persist itinerary: %w", err)
  }
  plan.Itinerary = updatedText
  plan.UpdatedAt = updates["updated_at"].(time.Time)

  s.broadcastUpdated(plan)
  s.log.Info("plan delta applied", "plan_id", plan.ID, "days", itinerary.CountDays(updatedText))
  return plan, nil
}

// Regenerate discards nothing; it enqueues a fresh generation for the same
// trip parameters and returns the new run. The old plan stays readable until
// the caller switches to the new one.
func (s *planEditService) Regenerate(ctx context.Context, planID uuid.UUID) (*types.GenerationRun, error) {
  plan, err := loadOwnedPlan(ctx, s.planRepo, planID)
  if err != nil {
    return nil, err
  }
  trip := types.TripRequest{
    Destination:   plan.Destination,
    StartDate:     plan.StartDate,
    EndDate:       plan.EndDate,
    Travelers:     plan.Travelers,
    Budget:        plan.Budget,
    Preferences:   plan.Preferences,
    TripType:      plan.TripType,
    TransportMode: plan.TransportMode,
    DepartureFrom: plan.DepartureFrom,
  }
  return s.gen.Enqueue(ctx, trip, requesterFromContext(ctx))
}

// loadOwnedPlan loads the plan and enforces that the caller owns it. Unknown
// ids and foreign plans both come back as ErrPlanNotFound so ids cannot be
// probed.
func loadOwnedPlan(ctx context.Context, planRepo repos.PlanRepo, planID uuid.UUID) (*types.Plan, error) {
  if planID == uuid.Nil {
    return nil, ErrPlanNotFound
  }
  plans, err := planRepo.GetByIDs(ctx, nil, []uuid.UUID{planID})
  if err != nil {
    return nil, fmt.Errorf("load plan: %w", err)
  }
  if len(plans) == 0 {
    return nil, ErrPlanNotFound
  }
  plan := plans[0]
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, ErrPlanNotFound
  }
  switch {
  case plan.UserID != nil:
    if rd.UserID != *plan.UserID {
      return nil, ErrPlanNotFound
    }
  case plan.AnonID != "":
    if rd.AnonID != plan.AnonID {
      return nil, ErrPlanNotFound
    }
  default:
    return nil, ErrPlanNotFound
  }
  return plan, nil
}

func validateDelta(delta types.PlanDelta, planDays int) error {
  if delta.IsEmpty() {
    return &DeltaValidationError{Reason: "delta contains no changes"}
  }
  for _, day := range delta.Days {
    if day.Day < 1 || day.Day > planDays {
      return &DeltaValidationError{
        Reason: fmt.Sprintf("Invalid day number: %d. Plan has %d days.", day.Day, planDays),
      }
    }
    if day.IsEmpty() {
      return &DeltaValidationError{
        Reason: fmt.Sprintf("Day %d has no changes.", day.Day),
      }
    }
  }
  if delta.TruncateToDays < 0 {
    return &DeltaValidationError{Reason: "truncate_to_days must be positive"}
  }
  if delta.TruncateToDays > planDays {
    return &DeltaValidationError{
      Reason: fmt.Sprintf("Invalid day number: %d. Plan has %d days.", delta.TruncateToDays, planDays),
    }
  }
  return nil
}

func (s *planEditService) broadcastUpdated(plan *types.Plan) {
  requester := types.Requester{AnonID: plan.AnonID}
  if plan.UserID != nil {
    requester.UserID = *plan.UserID
  }
  for _, channel := range []string{plan.ID.String(), requester.ChannelKey()} {
    msg := sse.SSEMessage{
      Channel: channel,
      Event:   sse.SSEEventPlanUpdated,
      Data:    plan,
    }
    s.hub.Broadcast(msg)
    if s.bus != nil {
      if err := s.bus.Publish(context.Background(), msg); err != nil {
        s.log.Warn("bus publish failed", "channel", channel, "error", err)
      }
    }
  }
}

func requesterFromContext(ctx context.Context) types.Requester {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return types.Requester{}
  }
  return types.Requester{UserID: rd.UserID, AnonID: rd.AnonID}
}
