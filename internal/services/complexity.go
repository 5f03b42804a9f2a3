package services

import (
  "regexp"
  "strings"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
)

// ComplexityEvaluator decides whether an edit prompt warrants the larger,
// more expensive model. It looks only at the prompt text and the caller's
// escalation flag; it never calls a provider.
type ComplexityEvaluator interface {
  IsComplex(prompt string, dayMentions int, force bool) bool
}

var (
  complexKeywordRe = regexp.MustCompile(`(?i)\b(reorganiz\w*|optimiz\w*|rearrang\w*|reschedul\w*|re-?rout\w*|routing|re-?plan\w*|restructur\w*|entire|whole trip|every day|all days)\b`)
  dayMentionRe     = regexp.MustCompile(`(?i)\bday\s+(\d+)\b`)
)

const complexPromptLength = 400

type complexityEvaluator struct {
  log *logger.Logger
}

func NewComplexityEvaluator(baseLog *logger.Logger) ComplexityEvaluator {
  return &complexityEvaluator{log: baseLog.With("service", "ComplexityEvaluator")}
}

func (e *complexityEvaluator) IsComplex(prompt string, dayMentions int, force bool) bool {
  if force {
    return true
  }
  trimmed := strings.TrimSpace(prompt)
  switch {
  case complexKeywordRe.MatchString(trimmed):
    e.log.Debug("prompt escalated on keyword match")
    return true
  case dayMentions >= 3:
    e.log.Debug("prompt escalated on day mentions", "mentions", dayMentions)
    return true
  case len(trimmed) > complexPromptLength:
    e.log.Debug("prompt escalated on length", "length", len(trimmed))
    return true
  }
  return false
}

// CountDayMentions counts distinct day numbers referenced in the prompt.
// "move day 2 to day 2" counts once.
func CountDayMentions(prompt string) int {
  matches := dayMentionRe.FindAllStringSubmatch(prompt, -1)
  if len(matches) == 0 {
    return 0
  }
  seen := make(map[string]struct{}, len(matches))
  for _, m := range matches {
    seen[m[1]] = struct{}{}
  }
  return len(seen)
}
