package anomaly

import (
	"math"

	"github.com/logweave/logweave/internal/logline"
)

// rarityScorer scores by inverse template frequency. Unseen templates are
// maximally anomalous; frequent ones decay toward zero.
type rarityScorer struct {
	templateCounts map[string]int
	totalLines     int
}

func newRarityScorer() *rarityScorer {
	return &rarityScorer{templateCounts: make(map[string]int)}
}

func (s *rarityScorer) Name() string { return "rarity" }

func (s *rarityScorer) Score(line *logline.Line) float64 {
	if s.totalLines == 0 {
		return 1.0
	}
	count := s.templateCounts[line.TemplateKey]
	if count == 0 {
		return 1.0
	}
	// sqrt(1 - frequency) keeps moderately rare templates scoring high
	// instead of collapsing everything toward the frequent baseline.
	frequency := float64(count) / float64(s.totalLines)
	return clamp01(math.Sqrt(1.0 - frequency))
}

func (s *rarityScorer) Update(line *logline.Line) {
	s.templateCounts[line.TemplateKey]++
	s.totalLines++
}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}
