package services

import (
  "context"
  "errors"
  "strings"
  "testing"
  "time"

  "github.com/google/uuid"

  "github.com/wanderplan/wanderplan-backend/internal/ratelimit"
  "github.com/wanderplan/wanderplan-backend/internal/resilience"
  "github.com/wanderplan/wanderplan-backend/internal/sse"
  "github.com/wanderplan/wanderplan-backend/internal/types"
)

const parisItinerary = `Day 1
Morning: Louvre
Afternoon: Tuileries
Evening: Seine cruise

Day 2
Morning: Montmartre
Afternoon: Sacre-Coeur
Evening: Le Marais

Day 3
Morning: Versailles
Afternoon: Gardens
Evening: Latin Quarter`

type genFixture struct {
  svc      PlanGenerationService
  status   GenerationStatusService
  runRepo  *fakeRunRepo
  planRepo *fakePlanRepo
}

func newGenFixture(t *testing.T, providers ...ItineraryProvider) *genFixture {
  t.Helper()
  runRepo := newFakeRunRepo()
  planRepo := newFakePlanRepo()
  hub := sse.NewSSEHub(testLogger())
  status := NewGenerationStatusService(nil, testLogger(), runRepo, hub, nil)

  cache := NewResponseCacheService(nil, testLogger(), newFakeCacheRepo())
  chain := NewFallbackChainService(nil, testLogger(), providers, cache, nil, nil)
  chain.(*fallbackChainService).retry = resilience.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

  svc := NewPlanGenerationService(nil, testLogger(), status, chain, planRepo, nil)
  return &genFixture{svc: svc, status: status, runRepo: runRepo, planRepo: planRepo}
}

func waitForTerminal(t *testing.T, repo *fakeRunRepo, jobID uuid.UUID) *types.GenerationRun {
  t.Helper()
  deadline := time.Now().Add(3 * time.Second)
  for time.Now().Before(deadline) {
    if run := repo.get(jobID); run != nil && types.IsTerminalGenerationStatus(run.Status) {
      return run
    }
    time.Sleep(5 * time.Millisecond)
  }
  t.Fatalf("job %s never reached a terminal status", jobID)
  return nil
}

func TestGenerationEndToEnd(t *testing.T) {
  unconfigured := &fakeProvider{name: "openai", available: false}
  working := &fakeProvider{name: "gemini", available: true, resp: &ProviderResponse{Text: parisItinerary, Model: "m2", TokenCount: 120}}
  f := newGenFixture(t, unconfigured, working)

  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()
  f.svc.StartWorker(ctx)

  run, err := f.svc.Enqueue(context.Background(), testTrip(3), types.Requester{AnonID: "anon-1"})
  if err != nil {
    t.Fatalf("Enqueue: %v", err)
  }
  if run.Status != types.GenerationQueued {
    t.Fatalf("fresh run status: %s", run.Status)
  }

  done := waitForTerminal(t, f.runRepo, run.ID)
  if done.Status != types.GenerationCompleted {
    t.Fatalf("run status: want=completed got=%s error=%q", done.Status, done.Error)
  }
  if done.Progress != 100 {
    t.Fatalf("run progress: want=100 got=%d", done.Progress)
  }
  if done.PlanID == nil {
    t.Fatalf("completed run has no plan id")
  }

  plan := f.planRepo.get(*done.PlanID)
  if plan == nil {
    t.Fatalf("plan not persisted")
  }
  if plan.AnonID != "anon-1" {
    t.Fatalf("plan owner: want=anon-1 got=%q", plan.AnonID)
  }
  if got := strings.Count(plan.Itinerary, "Day "); got != 3 {
    t.Fatalf("itinerary days: want=3 got=%d", got)
  }
}

func TestGenerationFailsWhenAllProvidersFail(t *testing.T) {
  broken := &fakeProvider{name: "openai", available: true, err: &ProviderError{Provider: "openai", StatusCode: 500, Message: "down", Transient: true}}
  f := newGenFixture(t, broken)

  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()
  f.svc.StartWorker(ctx)

  run, err := f.svc.Enqueue(context.Background(), testTrip(2), types.Requester{AnonID: "anon-2"})
  if err != nil {
    t.Fatalf("Enqueue: %v", err)
  }

  done := waitForTerminal(t, f.runRepo, run.ID)
  if done.Status != types.GenerationFailed {
    t.Fatalf("run status: want=failed got=%s", done.Status)
  }
  if done.Error == "" {
    t.Fatalf("failed run has no user-facing message")
  }
}

func TestWorkerSurvivesFailingJob(t *testing.T) {
  provider := &fakeProvider{name: "gemini", available: true, err: &ProviderError{Provider: "gemini", StatusCode: 400, Message: "bad", Transient: false}}
  f := newGenFixture(t, provider)

  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()
  f.svc.StartWorker(ctx)

  first, err := f.svc.Enqueue(context.Background(), testTrip(2), types.Requester{AnonID: "a"})
  if err != nil {
    t.Fatalf("Enqueue first: %v", err)
  }
  if done := waitForTerminal(t, f.runRepo, first.ID); done.Status != types.GenerationFailed {
    t.Fatalf("first run: want=failed got=%s", done.Status)
  }

  // worker keeps consuming after the failure
  provider.mu.Lock()
  provider.err = nil
  provider.resp = &ProviderResponse{Text: parisItinerary, Model: "m2"}
  provider.mu.Unlock()

  second, err := f.svc.Enqueue(context.Background(), testTrip(3), types.Requester{AnonID: "a"})
  if err != nil {
    t.Fatalf("Enqueue second: %v", err)
  }
  if done := waitForTerminal(t, f.runRepo, second.ID); done.Status != types.GenerationCompleted {
    t.Fatalf("second run: want=completed got=%s error=%q", done.Status, done.Error)
  }
}

func TestEnqueueValidation(t *testing.T) {
  f := newGenFixture(t, &fakeProvider{name: "gemini", available: true, resp: &ProviderResponse{Text: parisItinerary}})

  if _, err := f.svc.Enqueue(context.Background(), types.TripRequest{}, types.Requester{AnonID: "a"}); err == nil {
    t.Fatalf("empty destination accepted")
  }

  trip := testTrip(3)
  trip.EndDate = trip.StartDate.AddDate(0, 0, -1)
  if _, err := f.svc.Enqueue(context.Background(), trip, types.Requester{AnonID: "a"}); err == nil {
    t.Fatalf("inverted date range accepted")
  }

  if _, err := f.svc.Enqueue(context.Background(), testTrip(2), types.Requester{}); err == nil {
    t.Fatalf("anonymous request with no identity accepted")
  }
}

func TestEnqueueFailsFastWhenQueueSaturated(t *testing.T) {
  t.Setenv("GENERATION_QUEUE_SIZE", "1")
  f := newGenFixture(t, &fakeProvider{name: "gemini", available: true, resp: &ProviderResponse{Text: parisItinerary}})
  // no worker started: the queue fills up and stays full

  if _, err := f.svc.Enqueue(context.Background(), testTrip(2), types.Requester{AnonID: "a"}); err != nil {
    t.Fatalf("first enqueue: %v", err)
  }
  run, err := f.svc.Enqueue(context.Background(), testTrip(2), types.Requester{AnonID: "a"})
  if err == nil {
    t.Fatalf("saturated queue accepted a job")
  }
  if run != nil {
    t.Fatalf("saturated enqueue returned a run")
  }
}

func TestEnqueueRateLimited(t *testing.T) {
  f := newGenFixture(t, &fakeProvider{name: "gemini", available: true, resp: &ProviderResponse{Text: parisItinerary}})
  limiter := ratelimit.New(ratelimit.Config{ShortLimit: 1, LongLimit: 100})
  f.svc.(*planGenerationService).limiter = limiter

  if _, err := f.svc.Enqueue(context.Background(), testTrip(2), types.Requester{AnonID: "a"}); err != nil {
    t.Fatalf("first enqueue: %v", err)
  }
  _, err := f.svc.Enqueue(context.Background(), testTrip(2), types.Requester{AnonID: "a"})
  var rateErr *RateLimitedError
  if !errors.As(err, &rateErr) {
    t.Fatalf("expected RateLimitedError, got %v", err)
  }
  if rateErr.RetryAfter <= 0 {
    t.Fatalf("retry-after hint missing: %v", rateErr.RetryAfter)
  }
  // the denied request never created a run
  if got := len(f.runRepo.runs); got != 1 {
    t.Fatalf("run rows after denied enqueue: %d", got)
  }
}
