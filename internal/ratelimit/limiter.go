// Package ratelimit implements a dual-window sliding-window limiter used for
// global AI-cost control and per-user assistant throttling.
package ratelimit

import (
  "sync"
  "time"
)

type Config struct {
  ShortWindow time.Duration
  ShortLimit  int
  LongWindow  time.Duration
  LongLimit   int
}

func DefaultConfig() Config {
  return Config{
    ShortWindow: time.Minute,
    ShortLimit:  10,
    LongWindow:  time.Hour,
    LongLimit:   100,
  }
}

type Decision struct {
  Allowed    bool
  RetryAfter time.Duration
}

// Limiter tracks request timestamps per identifier. The identifier map is
// guarded by its own lock; each identifier's timestamps are guarded by a
// per-identifier lock so unrelated identifiers never contend.
type Limiter struct {
  cfg     Config
  mu      sync.Mutex
  entries map[string]*entry
  now     func() time.Time // for testing
}

type entry struct {
  mu     sync.Mutex
  stamps []time.Time
}

func New(cfg Config) *Limiter {
  if cfg.ShortWindow <= 0 {
    cfg.ShortWindow = time.Minute
  }
  if cfg.LongWindow <= 0 {
    cfg.LongWindow = time.Hour
  }
  if cfg.ShortLimit <= 0 {
    cfg.ShortLimit = 10
  }
  if cfg.LongLimit <= 0 {
    cfg.LongLimit = 100
  }
  return &Limiter{
    cfg:     cfg,
    entries: make(map[string]*entry),
    now:     time.Now,
  }
}

// CheckAndRecord allows the request and records its timestamp, or denies it
// with the wait until the oldest offending timestamp leaves its window.
func (l *Limiter) CheckAndRecord(identifier string) Decision {
  for {
    e := l.entryFor(identifier)
    e.mu.Lock()

    // Sweep may have dropped this entry between the map lookup and the
    // entry lock; a timestamp recorded on an orphaned entry would be
    // invisible to every later check.
    l.mu.Lock()
    live := l.entries[identifier] == e
    l.mu.Unlock()
    if !live {
      e.mu.Unlock()
      continue
    }

    d := l.decide(e)
    e.mu.Unlock()
    return d
  }
}

// decide runs the window checks against e, which must be locked and still
// installed in the identifier map.
func (l *Limiter) decide(e *entry) Decision {
  now := l.now()
  longCutoff := now.Add(-l.cfg.LongWindow)

  // discard timestamps older than the long window
  keep := e.stamps[:0]
  for _, ts := range e.stamps {
    if ts.After(longCutoff) {
      keep = append(keep, ts)
    }
  }
  e.stamps = keep

  if len(e.stamps) >= l.cfg.LongLimit {
    wait := e.stamps[0].Add(l.cfg.LongWindow).Sub(now)
    if wait < 0 {
      wait = 0
    }
    return Decision{Allowed: false, RetryAfter: wait}
  }

  shortCutoff := now.Add(-l.cfg.ShortWindow)
  firstShort := len(e.stamps)
  for i, ts := range e.stamps {
    if ts.After(shortCutoff) {
      firstShort = i
      break
    }
  }
  shortCount := len(e.stamps) - firstShort
  if shortCount >= l.cfg.ShortLimit {
    wait := e.stamps[firstShort].Add(l.cfg.ShortWindow).Sub(now)
    if wait < 0 {
      wait = 0
    }
    return Decision{Allowed: false, RetryAfter: wait}
  }

  e.stamps = append(e.stamps, now)
  return Decision{Allowed: true}
}

// Sweep removes identifiers whose every timestamp has left the long window
// and returns how many identifiers were dropped.
//
// Lock order is entry lock then map lock, same as CheckAndRecord.
func (l *Limiter) Sweep() int {
  now := l.now()
  longCutoff := now.Add(-l.cfg.LongWindow)

  l.mu.Lock()
  snapshot := make(map[string]*entry, len(l.entries))
  for id, e := range l.entries {
    snapshot[id] = e
  }
  l.mu.Unlock()

  removed := 0
  for id, e := range snapshot {
    e.mu.Lock()
    stale := true
    for _, ts := range e.stamps {
      if ts.After(longCutoff) {
        stale = false
        break
      }
    }
    if stale {
      l.mu.Lock()
      if l.entries[id] == e {
        delete(l.entries, id)
        removed++
      }
      l.mu.Unlock()
    }
    e.mu.Unlock()
  }
  return removed
}

func (l *Limiter) entryFor(identifier string) *entry {
  l.mu.Lock()
  defer l.mu.Unlock()
  e, ok := l.entries[identifier]
  if !ok {
    e = &entry{}
    l.entries[identifier] = e
  }
  return e
}
