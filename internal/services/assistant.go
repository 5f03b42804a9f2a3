package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/itinerary"
  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/ratelimit"
  "github.com/wanderplan/wanderplan-backend/internal/repos"
  "github.com/wanderplan/wanderplan-backend/internal/requestdata"
  "github.com/wanderplan/wanderplan-backend/internal/sse"
  "github.com/wanderplan/wanderplan-backend/internal/types"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
)

// AssistantService handles free-text edit instructions. It is the only path
// that picks a model per request: simple instructions go to the default
// model, complex ones to the escalation model.
type AssistantService interface {
  EditPlan(ctx context.Context, planID uuid.UUID, instruction string, forceEscalate bool) (*types.Plan, error)
}

type assistantService struct {
  db         *gorm.DB
  log        *logger.Logger
  planRepo   repos.PlanRepo
  chain      FallbackChainService
  complexity ComplexityEvaluator
  limiter    *ratelimit.Limiter
  hub        *sse.SSEHub
  bus        SSEBus

  defaultModel    string
  escalationModel string
}

func NewAssistantService(
  db *gorm.DB,
  baseLog *logger.Logger,
  planRepo repos.PlanRepo,
  chain FallbackChainService,
  complexity ComplexityEvaluator,
  limiter *ratelimit.Limiter,
  hub *sse.SSEHub,
  bus SSEBus,
) AssistantService {
  log := baseLog.With("service", "AssistantService")
  return &assistantService{
    db:              db,
    log:             log,
    planRepo:        planRepo,
    chain:           chain,
    complexity:      complexity,
    limiter:         limiter,
    hub:             hub,
    bus:             bus,
    defaultModel:    utils.GetEnv("ASSISTANT_MODEL", "", log),
    escalationModel: utils.GetEnv("ASSISTANT_ESCALATION_MODEL", "", log),
  }
}

func (s *assistantService) EditPlan(ctx context.Context, planID uuid.UUID, instruction string, forceEscalate bool) (*types.Plan, error) {
  if instruction == "" {
    return nil, &DeltaValidationError{Reason: "instruction must not be empty"}
  }
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return nil, ErrPlanNotFound
  }
  requester := types.Requester{UserID: rd.UserID, AnonID: rd.AnonID}

  decision := s.limiter.CheckAndRecord(requester.ChannelKey())
  if !decision.Allowed {
    return nil, &RateLimitedError{RetryAfter: decision.RetryAfter}
  }

  plan, err := loadOwnedPlan(ctx, s.planRepo, planID)
  if err != nil {
    return nil, err
  }

  mentions := CountDayMentions(instruction)
  model := s.defaultModel
  if s.complexity.IsComplex(instruction, mentions, forceEscalate) {
    model = s.escalationModel
    s.log.Info("assistant request escalated", "plan_id", planID, "day_mentions", mentions)
  }

  prompt := BuildEditPrompt(plan.Itinerary, instruction)
  resp, err := s.chain.GetCachedOrGenerate(ctx, prompt, model)
  if err != nil {
    return nil, err
  }

  now := time.Now()
  if err := s.planRepo.UpdateFields(ctx, nil, plan.ID, map[string]interface{}{
    "itinerary":  resp.Text,
    "updated_at": now,
  }); err != nil {
    return nil, fmt.Errorf("persist itinerary: %w", err)
  }
  plan.Itinerary = resp.Text
  plan.UpdatedAt = now

  s.broadcastUpdated(plan, requester)
  s.log.Info("assistant edit applied",
    "plan_id", plan.ID,
    "model", resp.Model,
    "days", itinerary.CountDays(plan.Itinerary),
  )
  return plan, nil
}

func (s *assistantService) broadcastUpdated(plan *types.Plan, requester types.Requester) {
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
