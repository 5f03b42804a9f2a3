// Package itinerary contains pure text transformations over the generated
// day-by-day itinerary document. Nothing here touches storage or the network.
package itinerary

import (
  "regexp"
  "strconv"
  "strings"

  "github.com/wanderplan/wanderplan-backend/internal/types"
)

// Day headings look like "Day 3", optionally prefixed with markdown
// decoration ("## Day 3", "**Day 3: Montmartre**"). Matching is
// case-insensitive.
var dayHeadingRe = regexp.MustCompile(`(?i)^[\s#*]*day\s+(\d+)\b`)

var sections = []string{"morning", "afternoon", "evening"}

// Apply patches the itinerary text with the delta and returns the new text.
// Day numbers that have no matching heading are skipped silently; the caller
// is expected to have validated the delta against the plan's day count.
func Apply(text string, delta types.PlanDelta) string {
  lines := strings.Split(text, "\n")
  for _, d := range delta.Days {
    lines = applyDay(lines, d)
  }
  if delta.TruncateToDays > 0 {
    lines = truncate(lines, delta.TruncateToDays)
  }
  return strings.Join(lines, "\n")
}

// CountDays returns the highest day number mentioned in a heading, 0 when
// the text has no day headings.
func CountDays(text string) int {
  max := 0
  for _, line := range strings.Split(text, "\n") {
    if n, ok := headingDayNumber(line); ok && n > max {
      max = n
    }
  }
  return max
}

func headingDayNumber(line string) (int, bool) {
  m := dayHeadingRe.FindStringSubmatch(line)
  if m == nil {
    return 0, false
  }
  n, err := strconv.Atoi(m[1])
  if err != nil || n <= 0 {
    return 0, false
  }
  return n, true
}

// findDayRegion returns the half-open line range [start, end) covering the
// heading of the requested day through the line before the next day heading.
func findDayRegion(lines []string, day int) (int, int, bool) {
  start := -1
  for i, line := range lines {
    if n, ok := headingDayNumber(line); ok && n == day {
      start = i
      break
    }
  }
  if start < 0 {
    return 0, 0, false
  }
  end := len(lines)
  for i := start + 1; i < len(lines); i++ {
    if _, ok := headingDayNumber(lines[i]); ok {
      end = i
      break
    }
  }
  return start, end, true
}

func applyDay(lines []string, d types.DayDelta) []string {
  start, end, ok := findDayRegion(lines, d.Day)
  if !ok {
    return lines
  }

  // removals first; the region shrinks as lines are deleted
  for i := start + 1; i < end; {
    if containsAnyFold(lines[i], d.Remove) {
      lines = append(lines[:i], lines[i+1:]...)
      end--
      continue
    }
    i++
  }

  adds := map[string][]string{
    "morning":   d.AddMorning,
    "afternoon": d.AddAfternoon,
    "evening":   d.AddEvening,
  }
  for _, section := range sections {
    activities := adds[section]
    if len(activities) == 0 {
      continue
    }
    labelAt := -1
    for i := start; i < end; i++ {
      if hasSectionLabel(lines[i], section) {
        labelAt = i
        break
      }
    }
    if labelAt < 0 {
      continue
    }
    bullets := make([]string, 0, len(activities))
    for _, a := range activities {
      bullets = append(bullets, "- "+a)
    }
    lines = insertAfter(lines, labelAt, bullets)
    end += len(bullets)
  }

  if d.Note != "" {
    lines = insertAfter(lines, end-1, []string{d.Note})
  }
  return lines
}

// truncate drops everything from the first heading past the kept day count.
func truncate(lines []string, keepDays int) []string {
  for i, line := range lines {
    if n, ok := headingDayNumber(line); ok && n > keepDays {
      return lines[:i]
    }
  }
  return lines
}

func containsAnyFold(line string, subs []string) bool {
  if len(subs) == 0 {
    return false
  }
  lower := strings.ToLower(line)
  for _, sub := range subs {
    sub = strings.TrimSpace(sub)
    if sub == "" {
      continue
    }
    if strings.Contains(lower, strings.ToLower(sub)) {
      return true
    }
  }
  return false
}

// hasSectionLabel reports whether the line carries "<section>:" in any case,
// e.g. "Morning:" or "**Afternoon:** walk the old town".
func hasSectionLabel(line, section string) bool {
  lower := strings.ToLower(line)
  idx := strings.Index(lower, section)
  if idx < 0 {
    return false
  }
  rest := lower[idx+len(section):]
  rest = strings.TrimLeft(rest, "* ")
  return strings.HasPrefix(rest, ":")
}

func insertAfter(lines []string, idx int, inserted []string) []string {
  if len(inserted) == 0 {
    return lines
  }
  out := make([]string, 0, len(lines)+len(inserted))
  out = append(out, lines[:idx+1]...)
  out = append(out, inserted...)
  out = append(out, lines[idx+1:]...)
  return out
}
