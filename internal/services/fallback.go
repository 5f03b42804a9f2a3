package services

import (
  "context"
  "errors"
  "strconv"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/singleflight"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/ratelimit"
  "github.com/wanderplan/wanderplan-backend/internal/requestdata"
  "github.com/wanderplan/wanderplan-backend/internal/repos"
  "github.com/wanderplan/wanderplan-backend/internal/resilience"
  "github.com/wanderplan/wanderplan-backend/internal/types"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
)

// globalLimiterKey is the single identifier used for process-wide AI cost
// control; per-user throttling uses its own limiter in the assistant path.
const globalLimiterKey = "ai:global"

// FallbackChainService walks providers in priority order behind a response
// cache, a global rate limiter, and per-provider retry + circuit breaking.
type FallbackChainService interface {
  GenerateForTrip(ctx context.Context, runID uuid.UUID, req types.TripRequest) (*ProviderResponse, error)
  GetCachedOrGenerate(ctx context.Context, prompt string, modelHint string) (*ProviderResponse, error)
}

type fallbackChainService struct {
  db        *gorm.DB
  log       *logger.Logger
  providers []ItineraryProvider
  breakers  map[string]*resilience.Breaker
  retry     resilience.RetryPolicy
  cache     ResponseCacheService
  limiter   *ratelimit.Limiter
  callLog   repos.AICallLogRepo
  cacheTTL  time.Duration
  group     singleflight.Group
}

func NewFallbackChainService(
  db *gorm.DB,
  baseLog *logger.Logger,
  providers []ItineraryProvider,
  cache ResponseCacheService,
  limiter *ratelimit.Limiter,
  callLog repos.AICallLogRepo,
) FallbackChainService {
  log := baseLog.With("service", "FallbackChainService")

  breakers := make(map[string]*resilience.Breaker, len(providers))
  for _, p := range providers {
    breakers[p.Name()] = resilience.NewBreaker(
      5,
      time.Minute,
      time.Duration(utils.GetEnvAsInt("PROVIDER_BREAKER_COOLDOWN_SECONDS", 30, nil))*time.Second,
    )
  }

  ttlHours := utils.GetEnvAsInt("AI_CACHE_TTL_HOURS", 24, nil)

  return &fallbackChainService{
    db:        db,
    log:       log,
    providers: providers,
    breakers:  breakers,
    retry:     resilience.DefaultRetryPolicy(),
    cache:     cache,
    limiter:   limiter,
    callLog:   callLog,
    cacheTTL:  time.Duration(ttlHours) * time.Hour,
  }
}

// GenerateForTrip serves the worker path. The global limiter is consumed at
// enqueue time for generation jobs, so an accepted job is never failed for
// rate limiting here.
func (s *fallbackChainService) GenerateForTrip(ctx context.Context, runID uuid.UUID, req types.TripRequest) (*ProviderResponse, error) {
  return s.getCachedOrGenerate(ctx, runID, BuildTripPrompt(req), "", false)
}

func (s *fallbackChainService) GetCachedOrGenerate(ctx context.Context, prompt string, modelHint string) (*ProviderResponse, error) {
  return s.getCachedOrGenerate(ctx, uuid.Nil, prompt, modelHint, true)
}

func (s *fallbackChainService) getCachedOrGenerate(ctx context.Context, runID uuid.UUID, prompt string, modelHint string, useLimiter bool) (*ProviderResponse, error) {
  if resp := s.cache.Get(ctx, prompt); resp != nil {
    s.log.Debug("cache hit", "prompt_hash", PromptHash(prompt))
    return resp, nil
  }

  // Collapse concurrent identical prompts into one provider call.
  v, err, _ := s.group.Do(PromptHash(prompt)+"|"+modelHint, func() (any, error) {
    if useLimiter && s.limiter != nil {
      if d := s.limiter.CheckAndRecord(globalLimiterKey); !d.Allowed {
        return nil, &RateLimitedError{RetryAfter: d.RetryAfter}
      }
    }
    resp, err := s.generate(ctx, runID, prompt, modelHint)
    if err != nil {
      return nil, err
    }
    s.cache.Put(ctx, prompt, resp, s.cacheTTL)
    return resp, nil
  })
  if err != nil {
    return nil, err
  }
  return v.(*ProviderResponse), nil
}

// generate walks the chain. The first success short-circuits; every failure
// or unavailable provider is accumulated into the aggregate error.
func (s *fallbackChainService) generate(ctx context.Context, runID uuid.UUID, prompt string, modelHint string) (*ProviderResponse, error) {
  failures := make([]ProviderFailure, 0, len(s.providers))

  for _, provider := range s.providers {
    if !provider.Available() {
      failures = append(failures, ProviderFailure{Provider: provider.Name(), Reason: "not configured"})
      continue
    }

    breaker := s.breakers[provider.Name()]
    var resp *ProviderResponse

    err := resilience.Retry(ctx, s.retry, s.retryable, func() error {
      return breaker.Execute(func() error {
        r, callErr := provider.Generate(ctx, prompt, modelHint)
        if callErr != nil {
          return callErr
        }
        resp = r
        return nil
      })
    })
    s.recordCall(ctx, runID, provider.Name(), modelHint, resp, err)
    if err == nil {
      return resp, nil
    }

    s.log.Warn("provider failed", "provider", provider.Name(), "error", err)
    failures = append(failures, ProviderFailure{Provider: provider.Name(), Reason: err.Error()})
  }

  return nil, &AllProvidersFailedError{Failures: failures}
}

// retryable keeps breaker-open failures out of the retry loop so an open
// circuit fails fast instead of burning attempts.
func (s *fallbackChainService) retryable(err error) bool {
  if errors.Is(err, resilience.ErrCircuitOpen) {
    return false
  }
  return IsTransientProviderError(err)
}

// recordCall writes the AI call log row, best effort.
func (s *fallbackChainService) recordCall(ctx context.Context, runID uuid.UUID, provider, model string, resp *ProviderResponse, callErr error) {
  if s.callLog == nil {
    return
  }
  row := &types.AICallLog{
    Provider: provider,
    Model:    model,
    Success:  callErr == nil,
    Usage:    datatypes.JSON([]byte(`{}`)),
  }
  if runID != uuid.Nil {
    id := runID
    row.RunID = &id
  }
  if rd := requestdata.GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
    uid := rd.UserID
    row.UserID = &uid
  }
  if resp != nil {
    row.Model = resp.Model
    row.Usage = datatypes.JSON([]byte(`{"total_tokens":` + strconv.Itoa(resp.TokenCount) + `}`))
  }
  if callErr != nil {
    row.Error = callErr.Error()
  }
  if _, err := s.callLog.Create(ctx, nil, []*types.AICallLog{row}); err != nil {
    s.log.Debug("ai call log write failed", "error", err)
  }
}
