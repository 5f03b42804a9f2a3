package services

import (
  "errors"
  "strings"
  "testing"
  "time"

  "github.com/wanderplan/wanderplan-backend/internal/ratelimit"
  "github.com/wanderplan/wanderplan-backend/internal/sse"
)

func newAssistantFixture(t *testing.T, limiter *ratelimit.Limiter, providers ...ItineraryProvider) (AssistantService, *fakePlanRepo) {
  t.Helper()
  planRepo := newFakePlanRepo()
  hub := sse.NewSSEHub(testLogger())
  cache := NewResponseCacheService(nil, testLogger(), newFakeCacheRepo())
  chain := NewFallbackChainService(nil, testLogger(), providers, cache, nil, nil)
  svc := NewAssistantService(nil, testLogger(), planRepo, chain, NewComplexityEvaluator(testLogger()), limiter, hub, nil)
  return svc, planRepo
}

func freshLimiter() *ratelimit.Limiter {
  return ratelimit.New(ratelimit.Config{ShortWindow: time.Minute, ShortLimit: 10, LongWindow: time.Hour, LongLimit: 100})
}

func TestAssistantEditReplacesItinerary(t *testing.T) {
  revised := "Day 1\nMorning: Louvre\nAfternoon: vegan lunch\nEvening: Seine cruise"
  provider := &fakeProvider{name: "openai", available: true, resp: &ProviderResponse{Text: revised, Model: "m1"}}
  svc, planRepo := newAssistantFixture(t, freshLimiter(), provider)
  plan := seedPlan(t, planRepo, "anon-1", 3)

  updated, err := svc.EditPlan(anonCtx("anon-1"), plan.ID, "make lunches vegan", false)
  if err != nil {
    t.Fatalf("EditPlan: %v", err)
  }
  if updated.Itinerary != revised {
    t.Fatalf("itinerary not replaced:\n%s", updated.Itinerary)
  }
  if planRepo.get(plan.ID).Itinerary != revised {
    t.Fatalf("revision not persisted")
  }
  if provider.callCount() != 1 {
    t.Fatalf("provider calls: want=1 got=%d", provider.callCount())
  }
}

func TestAssistantRejectsEmptyInstruction(t *testing.T) {
  svc, planRepo := newAssistantFixture(t, freshLimiter(), &fakeProvider{name: "openai", available: true})
  plan := seedPlan(t, planRepo, "anon-1", 3)

  _, err := svc.EditPlan(anonCtx("anon-1"), plan.ID, "", false)
  var dErr *DeltaValidationError
  if !errors.As(err, &dErr) {
    t.Fatalf("want DeltaValidationError, got %v", err)
  }
}

func TestAssistantPerUserRateLimit(t *testing.T) {
  provider := &fakeProvider{name: "openai", available: true, resp: &ProviderResponse{Text: "Day 1\nMorning: x", Model: "m1"}}
  limiter := ratelimit.New(ratelimit.Config{ShortWindow: time.Minute, ShortLimit: 1, LongWindow: time.Hour, LongLimit: 10})
  svc, planRepo := newAssistantFixture(t, limiter, provider)
  plan := seedPlan(t, planRepo, "anon-1", 3)
  other := seedPlan(t, planRepo, "anon-2", 3)

  if _, err := svc.EditPlan(anonCtx("anon-1"), plan.ID, "shorten day 1", false); err != nil {
    t.Fatalf("first edit: %v", err)
  }
  _, err := svc.EditPlan(anonCtx("anon-1"), plan.ID, "lengthen day 1", false)
  var rateErr *RateLimitedError
  if !errors.As(err, &rateErr) {
    t.Fatalf("want RateLimitedError, got %v", err)
  }
  if rateErr.RetryAfter <= 0 {
    t.Fatalf("RetryAfter missing")
  }

  // a different requester is not throttled by the first one
  if _, err := svc.EditPlan(anonCtx("anon-2"), other.ID, "shorten day 1", false); err != nil {
    t.Fatalf("other requester throttled: %v", err)
  }
}

func TestAssistantEnforcesOwnership(t *testing.T) {
  provider := &fakeProvider{name: "openai", available: true, resp: &ProviderResponse{Text: "x", Model: "m1"}}
  svc, planRepo := newAssistantFixture(t, freshLimiter(), provider)
  plan := seedPlan(t, planRepo, "anon-1", 3)

  if _, err := svc.EditPlan(anonCtx("intruder"), plan.ID, "delete everything", false); !errors.Is(err, ErrPlanNotFound) {
    t.Fatalf("want ErrPlanNotFound got %v", err)
  }
  if provider.callCount() != 0 {
    t.Fatalf("provider called for foreign plan")
  }
}

func TestAssistantPromptCarriesItineraryAndInstruction(t *testing.T) {
  prompt := BuildEditPrompt(parisItinerary, "  add more food stops  ")
  if !strings.Contains(prompt, "add more food stops") {
    t.Fatalf("instruction missing from prompt")
  }
  if !strings.Contains(prompt, "Day 2") {
    t.Fatalf("itinerary missing from prompt")
  }
}
