package validator

import (
	"fmt"
	"math"
	"time"
)

// Progress is a point-in-time view of a validation run.
type Progress struct {
	Processed int64
	Total     int64
	Valid     int64
	Invalid   int64
	Percent   float64       // processed share of total, 0..100
	Speed     float64       // domains per second
	ETA       time.Duration // whole seconds
	Elapsed   time.Duration
}

// Report derives a Progress from the run counters. It never divides by
// zero: percent, speed and ETA are 0 when their divisor is 0.
func Report(processed, total, validSoFar int64, elapsed time.Duration) Progress {
	p := Progress{
		Processed: processed,
		Total:     total,
		Valid:     validSoFar,
		Invalid:   processed - validSoFar,
		Elapsed:   elapsed,
	}
	if total > 0 {
		p.Percent = float64(processed) / float64(total) * 100
	}
	if secs := elapsed.Seconds(); secs > 0 {
		p.Speed = float64(processed) / secs
	}
	if p.Speed > 0 && total > processed {
		remaining := float64(total-processed) / p.Speed
		p.ETA = time.Duration(int64(remaining)) * time.Second
	}
	return p
}

// String renders the human progress line.
func (p Progress) String() string {
	return fmt.Sprintf("%d/%d | %.1f%% | speed %.1f domains/s | eta %s | valid %d | invalid %d",
		p.Processed, p.Total, p.Percent, p.Speed, formatClock(p.ETA), p.Valid, p.Invalid)
}

// Fields returns the structured log fields for the progress line.
func (p Progress) Fields() map[string]any {
	return map[string]any{
		"processed": p.Processed,
		"total":     p.Total,
		"percent":   round1(p.Percent),
		"speed":     round1(p.Speed),
		"eta":       formatClock(p.ETA),
		"elapsed":   p.Elapsed.Round(time.Millisecond).String(),
		"valid":     p.Valid,
		"invalid":   p.Invalid,
	}
}

// RunSummary is the end-of-run tally.
type RunSummary struct {
	Total          int64
	Valid          int64
	Invalid        int64
	ValidPercent   float64
	InvalidPercent float64
}

// Summary computes the final tally; percentages are 0 for an empty run.
func Summary(valid, total int64) RunSummary {
	s := RunSummary{Total: total, Valid: valid, Invalid: total - valid}
	if total > 0 {
		s.ValidPercent = float64(valid) / float64(total) * 100
		s.InvalidPercent = float64(s.Invalid) / float64(total) * 100
	}
	return s
}

func (s RunSummary) String() string {
	return fmt.Sprintf("valid %d/%d (%.1f%%) | invalid %d/%d (%.1f%%)",
		s.Valid, s.Total, s.ValidPercent, s.Invalid, s.Total, s.InvalidPercent)
}

func (s RunSummary) Fields() map[string]any {
	return map[string]any{
		"total":           s.Total,
		"valid":           s.Valid,
		"invalid":         s.Invalid,
		"valid_percent":   round1(s.ValidPercent),
		"invalid_percent": round1(s.InvalidPercent),
	}
}

// formatClock renders d as H:MM:SS.
func formatClock(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
