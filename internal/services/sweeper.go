package services

import (
  "context"
  "time"

  "github.com/robfig/cron/v3"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/ratelimit"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
)

// SweeperService runs the periodic cleanup jobs: terminal generation runs
// past retention, expired cache rows, and idle rate limiter entries.
type SweeperService interface {
  Start()
  Stop()
}

type sweeperService struct {
  log       *logger.Logger
  cron      *cron.Cron
  status    GenerationStatusService
  cache     ResponseCacheService
  limiters  []*ratelimit.Limiter
  retention time.Duration
}

func NewSweeperService(
  baseLog *logger.Logger,
  status GenerationStatusService,
  cache ResponseCacheService,
  limiters ...*ratelimit.Limiter,
) SweeperService {
  log := baseLog.With("service", "SweeperService")
  retentionDays := utils.GetEnvAsInt("RUN_RETENTION_DAYS", 30, log)
  if retentionDays < 1 {
    retentionDays = 30
  }
  return &sweeperService{
    log:       log,
    cron:      cron.New(),
    status:    status,
    cache:     cache,
    limiters:  limiters,
    retention: time.Duration(retentionDays) * 24 * time.Hour,
  }
}

func (s *sweeperService) Start() {
  if _, err := s.cron.AddFunc("@hourly", s.sweepRuns); err != nil {
    s.log.Error("failed to schedule run sweep", "error", err)
  }
  if _, err := s.cron.AddFunc("@every 10m", s.sweepCache); err != nil {
    s.log.Error("failed to schedule cache sweep", "error", err)
  }
  if _, err := s.cron.AddFunc("@every 5m", s.sweepLimiters); err != nil {
    s.log.Error("failed to schedule limiter sweep", "error", err)
  }
  s.cron.Start()
  s.log.Info("sweeper started", "run_retention", s.retention.String())
}

func (s *sweeperService) Stop() {
  <-s.cron.Stop().Done()
  s.log.Info("sweeper stopped")
}

func (s *sweeperService) sweepRuns() {
  ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
  defer cancel()
  removed, err := s.status.Sweep(ctx, s.retention)
  if err != nil {
    s.log.Warn("run sweep failed", "error", err)
    return
  }
  if removed > 0 {
    s.log.Info("swept terminal generation runs", "removed", removed)
  }
}

func (s *sweeperService) sweepCache() {
  ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
  defer cancel()
  removed, err := s.cache.SweepExpired(ctx)
  if err != nil {
    s.log.Warn("cache sweep failed", "error", err)
    return
  }
  if removed > 0 {
    s.log.Info("swept expired cache rows", "removed", removed)
  }
}

func (s *sweeperService) sweepLimiters() {
  total := 0
  for _, l := range s.limiters {
    total += l.Sweep()
  }
  if total > 0 {
    s.log.Info("swept idle rate limiter entries", "removed", total)
  }
}
