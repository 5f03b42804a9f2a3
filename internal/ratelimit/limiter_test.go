package ratelimit

import (
  "sync"
  "sync/atomic"
  "testing"
  "time"
)

func newTestLimiter(cfg Config, start time.Time) (*Limiter, *time.Time) {
  l := New(cfg)
  current := start
  l.now = func() time.Time { return current }
  return l, &current
}

func TestCheckAndRecordShortWindowCeiling(t *testing.T) {
  start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
  l, now := newTestLimiter(Config{ShortWindow: time.Minute, ShortLimit: 3, LongWindow: time.Hour, LongLimit: 100}, start)

  for i := 0; i < 3; i++ {
    if d := l.CheckAndRecord("user-a"); !d.Allowed {
      t.Fatalf("request %d under ceiling denied", i+1)
    }
  }
  d := l.CheckAndRecord("user-a")
  if d.Allowed {
    t.Fatalf("request over short ceiling allowed")
  }
  if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
    t.Fatalf("RetryAfter out of range: %s", d.RetryAfter)
  }

  // after the oldest stamp leaves the window the request passes again
  *now = start.Add(61 * time.Second)
  if d := l.CheckAndRecord("user-a"); !d.Allowed {
    t.Fatalf("request after window expiry denied, retry_after=%s", d.RetryAfter)
  }
}

func TestCheckAndRecordLongWindowCeiling(t *testing.T) {
  start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
  l, now := newTestLimiter(Config{ShortWindow: time.Minute, ShortLimit: 5, LongWindow: time.Hour, LongLimit: 8}, start)

  for i := 0; i < 8; i++ {
    // spread out so the short window never trips
    *now = start.Add(time.Duration(i) * 2 * time.Minute)
    if d := l.CheckAndRecord("user-b"); !d.Allowed {
      t.Fatalf("request %d under long ceiling denied", i+1)
    }
  }
  *now = start.Add(30 * time.Minute)
  d := l.CheckAndRecord("user-b")
  if d.Allowed {
    t.Fatalf("request over long ceiling allowed")
  }
  // oldest stamp was at start, so it exits the window at start+1h
  want := 30 * time.Minute
  if d.RetryAfter != want {
    t.Fatalf("RetryAfter: want=%s got=%s", want, d.RetryAfter)
  }
}

func TestIdentifiersAreIndependent(t *testing.T) {
  start := time.Now()
  l, _ := newTestLimiter(Config{ShortWindow: time.Minute, ShortLimit: 1, LongWindow: time.Hour, LongLimit: 10}, start)

  if d := l.CheckAndRecord("a"); !d.Allowed {
    t.Fatalf("first request for a denied")
  }
  if d := l.CheckAndRecord("a"); d.Allowed {
    t.Fatalf("second request for a allowed over ceiling")
  }
  if d := l.CheckAndRecord("b"); !d.Allowed {
    t.Fatalf("b throttled by a's usage")
  }
}

func TestConcurrentRequestsNeverExceedCeiling(t *testing.T) {
  l := New(Config{ShortWindow: time.Minute, ShortLimit: 10, LongWindow: time.Hour, LongLimit: 100})

  var allowed int64
  var wg sync.WaitGroup
  for i := 0; i < 50; i++ {
    wg.Add(1)
    go func() {
      defer wg.Done()
      if d := l.CheckAndRecord("shared"); d.Allowed {
        atomic.AddInt64(&allowed, 1)
      }
    }()
  }
  wg.Wait()

  if allowed != 10 {
    t.Fatalf("concurrent allowance: want=10 got=%d", allowed)
  }
}

func TestSweepDropsIdleIdentifiers(t *testing.T) {
  start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
  l, now := newTestLimiter(Config{ShortWindow: time.Minute, ShortLimit: 5, LongWindow: time.Hour, LongLimit: 10}, start)

  l.CheckAndRecord("old")
  *now = start.Add(30 * time.Minute)
  l.CheckAndRecord("fresh")

  *now = start.Add(70 * time.Minute)
  if removed := l.Sweep(); removed != 1 {
    t.Fatalf("Sweep: want=1 got=%d", removed)
  }
  l.mu.Lock()
  _, oldExists := l.entries["old"]
  _, freshExists := l.entries["fresh"]
  l.mu.Unlock()
  if oldExists || !freshExists {
    t.Fatalf("sweep kept wrong entries: old=%v fresh=%v", oldExists, freshExists)
  }
}

func TestSweepNeverOrphansConcurrentRecordings(t *testing.T) {
  // A sweep can drop a just-created entry before its first recording takes
  // the entry lock; the recording must still land where later checks see it.
  for iter := 0; iter < 200; iter++ {
    l := New(Config{ShortWindow: time.Minute, ShortLimit: 1, LongWindow: time.Hour, LongLimit: 100})

    stop := make(chan struct{})
    var wg sync.WaitGroup
    wg.Add(1)
    go func() {
      defer wg.Done()
      for {
        select {
        case <-stop:
          return
        default:
          l.Sweep()
        }
      }
    }()

    if d := l.CheckAndRecord("x"); !d.Allowed {
      t.Fatalf("iter %d: first request denied", iter)
    }
    if d := l.CheckAndRecord("x"); d.Allowed {
      t.Fatalf("iter %d: request over ceiling allowed after sweep", iter)
    }
    close(stop)
    wg.Wait()
  }
}
