package services

import (
  "context"
  "crypto/sha256"
  "encoding/hex"
  "strings"
  "sync"
  "time"

  "gorm.io/gorm"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/repos"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

// ResponseCacheService fronts the providers with a content-addressed cache.
// Keys are the hex SHA-256 of the canonicalized prompt, never the raw text.
// Cache I/O failures degrade to a miss; the generation path never blocks on
// the cache.
type ResponseCacheService interface {
  Get(ctx context.Context, prompt string) *ProviderResponse
  Put(ctx context.Context, prompt string, resp *ProviderResponse, ttl time.Duration)
  Invalidate(ctx context.Context, prompt string) error
  SweepExpired(ctx context.Context) (int64, error)
}

type responseCacheService struct {
  db   *gorm.DB
  log  *logger.Logger
  repo repos.AIResponseCacheRepo

  // Serializes writes across the whole cache so two callers computing the
  // same prompt concurrently cannot race into duplicate rows. Writes are
  // rare next to reads, so one mutex is enough.
  writeMu sync.Mutex
}

func NewResponseCacheService(db *gorm.DB, baseLog *logger.Logger, repo repos.AIResponseCacheRepo) ResponseCacheService {
  return &responseCacheService{
    db:   db,
    log:  baseLog.With("service", "ResponseCacheService"),
    repo: repo,
  }
}

// CanonicalizePrompt collapses whitespace so cosmetically different prompts
// share a cache key.
func CanonicalizePrompt(prompt string) string {
  return strings.Join(strings.Fields(prompt), " ")
}

// PromptHash is the fixed-length hex digest used as the storage key.
func PromptHash(prompt string) string {
  sum := sha256.Sum256([]byte(CanonicalizePrompt(prompt)))
  return hex.EncodeToString(sum[:])
}

func (s *responseCacheService) Get(ctx context.Context, prompt string) *ProviderResponse {
  hash := PromptHash(prompt)
  row, err := s.repo.GetByHash(ctx, nil, hash)
  if err != nil {
    s.log.Warn("cache lookup failed, treating as miss", "error", err)
    return nil
  }
  if row == nil || row.Expired(time.Now()) {
    return nil
  }
  if err := s.repo.IncrementHits(ctx, nil, hash); err != nil {
    s.log.Warn("cache hit counter update failed", "error", err)
  }
  return &ProviderResponse{
    Text:       row.Response,
    Model:      row.Model,
    TokenCount: row.TokenCount,
  }
}

func (s *responseCacheService) Put(ctx context.Context, prompt string, resp *ProviderResponse, ttl time.Duration) {
  if resp == nil {
    return
  }
  hash := PromptHash(prompt)

  // A zero or negative ttl stores an already-expired row: Get never serves
  // it and the sweep reclaims it.
  t := time.Now().Add(ttl)
  expiresAt := &t

  s.writeMu.Lock()
  defer s.writeMu.Unlock()

  err := s.repo.Upsert(ctx, nil, &types.AIResponseCache{
    PromptHash: hash,
    Response:   resp.Text,
    Model:      resp.Model,
    TokenCount: resp.TokenCount,
    ExpiresAt:  expiresAt,
  })
  if err != nil {
    s.log.Warn("cache write failed", "error", err, "prompt_hash", hash)
  }
}

func (s *responseCacheService) Invalidate(ctx context.Context, prompt string) error {
  s.writeMu.Lock()
  defer s.writeMu.Unlock()
  return s.repo.DeleteByHash(ctx, nil, PromptHash(prompt))
}

func (s *responseCacheService) SweepExpired(ctx context.Context) (int64, error) {
  s.writeMu.Lock()
  defer s.writeMu.Unlock()
  return s.repo.DeleteExpired(ctx, nil, time.Now())
}
