package anomaly

import (
	"math"
	"time"

	"github.com/logweave/logweave/internal/logline"
)

// defaultTemporalWindow bounds both the burst-detection window and the
// gap beyond which a template's reappearance counts as anomalous.
const defaultTemporalWindow = 30 * time.Second

// temporalScorer scores time-pattern anomalies: a template reappearing
// after a long gap, a template never seen before, or a burst of activity
// in the recent window.
type temporalScorer struct {
	window time.Duration

	lastSeen map[string]time.Time
	recent   []time.Time
}

func newTemporalScorer(window time.Duration) *temporalScorer {
	if window <= 0 {
		window = defaultTemporalWindow
	}
	return &temporalScorer{
		window:   window,
		lastSeen: make(map[string]time.Time),
	}
}

func (s *temporalScorer) Name() string { return "temporal" }

func (s *temporalScorer) Score(line *logline.Line) float64 {
	now := line.ID.Timestamp
	s.dropOld(now)

	var score float64

	if last, ok := s.lastSeen[line.TemplateKey]; ok {
		// Absolute gap so out-of-order arrival does not go negative.
		gap := now.Sub(last)
		if gap < 0 {
			gap = -gap
		}
		if gap > s.window {
			score += 0.5
		} else {
			ratio := math.Min(float64(gap)/float64(s.window), 1.0)
			score += ratio * 0.3
		}
	} else {
		score += 0.7
	}

	// Burst detection: unusually dense recent activity boosts everything
	// arriving inside the burst.
	if n := len(s.recent); n > 0 {
		rate := float64(n) / s.window.Seconds()
		if n > 100 && rate > 10.0 {
			score += 0.3
		}
	}

	return clamp01(score)
}

func (s *temporalScorer) Update(line *logline.Line) {
	now := line.ID.Timestamp
	s.lastSeen[line.TemplateKey] = now
	s.recent = append(s.recent, now)
	if len(s.recent)%1000 == 0 {
		s.dropOld(now)
	}
}

func (s *temporalScorer) dropOld(now time.Time) {
	cut := 0
	for cut < len(s.recent) && now.Sub(s.recent[cut]) > s.window {
		cut++
	}
	if cut > 0 {
		s.recent = append(s.recent[:0], s.recent[cut:]...)
	}
}
