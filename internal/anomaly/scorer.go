// Package anomaly assigns scores to stored lines. It runs strictly
// downstream of the index: it reads lines in per-source order and writes
// scores back through LogIndex.UpdateScore, never touching ordering or
// filter membership.
package anomaly

import (
	"time"

	"github.com/logweave/logweave/internal/logline"
)

// Scorer is one scoring heuristic. Score judges a line against the state
// accumulated so far; Update folds the line into that state. The split
// lets the pipeline score a line against only the lines that preceded it.
type Scorer interface {
	// Name identifies the heuristic in logs.
	Name() string

	// Score returns a raw anomaly estimate in [0, 1].
	Score(line *logline.Line) float64

	// Update records the line in the scorer's running state.
	Update(line *logline.Line)
}

type weightedScorer struct {
	scorer Scorer
	weight float64
}

// Composite combines registered scorers as a weighted average. Scorers
// carry per-source state, so one Composite serves exactly one source.
type Composite struct {
	scorers []weightedScorer
}

// NewComposite builds the default scorer set. Rarity dominates because an
// unseen template is the strongest signal; keywords come next since they
// encode explicit severity. window <= 0 selects the default temporal
// window.
func NewComposite(window time.Duration) *Composite {
	c := &Composite{}
	c.Register(newRarityScorer(), 3.0)
	c.Register(newTemporalScorer(window), 2.0)
	c.Register(newEntropyScorer(), 1.5)
	c.Register(newKeywordScorer(), 2.5)
	return c
}

// Register adds a scorer with its weight. Zero or negative weights are
// ignored.
func (c *Composite) Register(s Scorer, weight float64) {
	if weight <= 0 {
		return
	}
	c.scorers = append(c.scorers, weightedScorer{scorer: s, weight: weight})
}

// Score returns the weighted average of all registered scorers in [0, 1].
func (c *Composite) Score(line *logline.Line) float64 {
	var sum, total float64
	for _, ws := range c.scorers {
		sum += ws.scorer.Score(line) * ws.weight
		total += ws.weight
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// Update feeds the line into every scorer's running state.
func (c *Composite) Update(line *logline.Line) {
	for _, ws := range c.scorers {
		ws.scorer.Update(line)
	}
}
