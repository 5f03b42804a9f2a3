package itinerary

import (
  "strconv"
  "strings"
  "testing"

  "github.com/wanderplan/wanderplan-backend/internal/types"
)

func sampleItinerary(days int) string {
  var b strings.Builder
  for d := 1; d <= days; d++ {
    if d > 1 {
      b.WriteString("\n")
    }
    b.WriteString("Day " + itoa(d) + "\n")
    b.WriteString("Morning: visit museum " + itoa(d) + "\n")
    b.WriteString("Afternoon: walk district " + itoa(d) + "\n")
    b.WriteString("Evening: dinner spot " + itoa(d) + "\n")
  }
  return b.String()
}

func itoa(n int) string { return strconv.Itoa(n) }

func TestCountDays(t *testing.T) {
  tests := []struct {
    name string
    text string
    want int
  }{
    {"empty", "", 0},
    {"no headings", "Morning: coffee\nEvening: wine", 0},
    {"five days", sampleItinerary(5), 5},
    {"markdown heading", "## Day 1\nstuff\n**Day 2: Old Town**\nstuff", 2},
    {"mid-sentence day is not a heading", "Day 1\nWe return on day 9 by train", 1},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      if got := CountDays(tt.text); got != tt.want {
        t.Fatalf("CountDays: want=%d got=%d", tt.want, got)
      }
    })
  }
}

func TestApplyAddsActivityAfterSectionLabel(t *testing.T) {
  text := sampleItinerary(3)
  out := Apply(text, types.PlanDelta{
    Days: []types.DayDelta{{Day: 2, AddMorning: []string{"bakery run"}}},
  })

  lines := strings.Split(out, "\n")
  labelAt := -1
  for i, line := range lines {
    if strings.HasPrefix(line, "Morning: visit museum 2") {
      labelAt = i
      break
    }
  }
  if labelAt < 0 {
    t.Fatalf("day 2 morning label missing from output:\n%s", out)
  }
  if lines[labelAt+1] != "- bakery run" {
    t.Fatalf("expected bullet after morning label, got %q", lines[labelAt+1])
  }
}

func TestApplyLeavesOtherDaysUntouched(t *testing.T) {
  text := sampleItinerary(5)
  out := Apply(text, types.PlanDelta{
    Days: []types.DayDelta{{
      Day:        2,
      AddEvening: []string{"rooftop bar"},
      Remove:     []string{"walk district 2"},
    }},
  })

  for _, d := range []int{1, 3, 4, 5} {
    start, end, ok := findDayRegion(strings.Split(text, "\n"), d)
    if !ok {
      t.Fatalf("day %d missing from input", d)
    }
    wantRegion := strings.Join(strings.Split(text, "\n")[start:end], "\n")
    if !strings.Contains(out, wantRegion) {
      t.Fatalf("day %d region changed:\nwant:\n%s\ngot:\n%s", d, wantRegion, out)
    }
  }
}

func TestApplyRemovesMatchingLines(t *testing.T) {
  text := sampleItinerary(3)
  out := Apply(text, types.PlanDelta{
    Days: []types.DayDelta{{Day: 3, Remove: []string{"DINNER SPOT 3"}}},
  })
  if strings.Contains(out, "dinner spot 3") {
    t.Fatalf("case-insensitive removal failed:\n%s", out)
  }
  if !strings.Contains(out, "dinner spot 2") {
    t.Fatalf("removal leaked into day 2:\n%s", out)
  }
}

func TestApplyMissingDayIsSilentlySkipped(t *testing.T) {
  text := sampleItinerary(2)
  out := Apply(text, types.PlanDelta{
    Days: []types.DayDelta{{Day: 7, AddMorning: []string{"ghost activity"}}},
  })
  if out != text {
    t.Fatalf("delta for absent day must leave text unchanged\nwant:\n%s\ngot:\n%s", text, out)
  }
}

func TestApplyNoteAppendsToDayRegion(t *testing.T) {
  text := sampleItinerary(3)
  out := Apply(text, types.PlanDelta{
    Days: []types.DayDelta{{Day: 1, Note: "Bring rain gear."}},
  })
  lines := strings.Split(out, "\n")
  noteAt := -1
  for i, line := range lines {
    if line == "Bring rain gear." {
      noteAt = i
      break
    }
  }
  if noteAt < 0 {
    t.Fatalf("note missing from output:\n%s", out)
  }
  // note must land before the Day 2 heading
  for i := 0; i < noteAt; i++ {
    if strings.HasPrefix(lines[i], "Day 2") {
      t.Fatalf("note inserted after day 2 heading:\n%s", out)
    }
  }
}

func TestApplyTruncateDropsLaterDays(t *testing.T) {
  text := sampleItinerary(5)
  out := Apply(text, types.PlanDelta{TruncateToDays: 3})
  if CountDays(out) != 3 {
    t.Fatalf("truncate: want 3 days got %d:\n%s", CountDays(out), out)
  }
  if strings.Contains(out, "Day 4") || strings.Contains(out, "Day 5") {
    t.Fatalf("truncated days still present:\n%s", out)
  }
  if !strings.Contains(out, "Evening: dinner spot 3") {
    t.Fatalf("kept day content lost:\n%s", out)
  }
}

func TestApplyTruncateBeyondLastDayIsNoop(t *testing.T) {
  text := sampleItinerary(3)
  out := Apply(text, types.PlanDelta{TruncateToDays: 9})
  if out != text {
    t.Fatalf("truncate past the end must not change text")
  }
}

func TestApplySameDeltaTwiceAddsTwice(t *testing.T) {
  text := sampleItinerary(2)
  delta := types.PlanDelta{Days: []types.DayDelta{{Day: 1, AddAfternoon: []string{"kayak tour"}}}}
  once := Apply(text, delta)
  twice := Apply(once, delta)
  if got := strings.Count(twice, "- kayak tour"); got != 2 {
    t.Fatalf("expected two inserted bullets after two applies, got %d", got)
  }
}
