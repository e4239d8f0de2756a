package anomaly

import (
	"context"
	"math"
	"time"

	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logger"
)

// skipInitial is how many leading lines are exempt from scoring. Every
// scorer starts with empty state, so the first lines would all look novel
// and drown real anomalies; they still feed Update.
const skipInitial = 10

// Pipeline scores sources and writes results back through the index.
type Pipeline struct {
	idx    *index.LogIndex
	window time.Duration
	log    *logger.Logger
}

// NewPipeline creates a scoring pipeline over the index. window is the
// temporal scorer's gap/burst window; <= 0 selects the default.
func NewPipeline(idx *index.LogIndex, window time.Duration, log *logger.Logger) *Pipeline {
	return &Pipeline{idx: idx, window: window, log: log}
}

// ScoreSource runs the default scorer set over one source in stored
// (arrival) order and writes normalized scores to its lines. Safe to run
// while the source is read elsewhere; scores update atomically per line
// and never bump the index version.
func (p *Pipeline) ScoreSource(ctx context.Context, sourceID int) error {
	store, err := p.idx.Source(sourceID)
	if err != nil {
		return err
	}

	start := time.Now()
	composite := NewComposite(p.window)
	total := store.Len()
	raw := make([]float64, 0, max(total-skipInitial, 0))

	for i := 0; i < total; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line, err := store.Get(i)
		if err != nil {
			return err
		}
		if i >= skipInitial {
			raw = append(raw, composite.Score(line))
		}
		composite.Update(line)
	}

	normalized := Normalize(raw)
	for i := 0; i < total && i < skipInitial; i++ {
		line, err := store.Get(i)
		if err != nil {
			return err
		}
		if err := p.idx.UpdateScore(line.ID, 0); err != nil {
			return err
		}
	}
	for i, score := range normalized {
		line, err := store.Get(skipInitial + i)
		if err != nil {
			return err
		}
		if err := p.idx.UpdateScore(line.ID, score); err != nil {
			return err
		}
	}

	p.logStats(sourceID, raw, time.Since(start))
	return nil
}

// ScoreAll scores every source currently in the index.
func (p *Pipeline) ScoreAll(ctx context.Context) error {
	for _, info := range p.idx.Sources() {
		if err := p.ScoreSource(ctx, info.ID); err != nil {
			return err
		}
	}
	return nil
}

// Normalize maps raw scores to the 0-100 display range by min-max
// scaling. When every score is (numerically) identical there is no
// spread to stretch, so everything lands on 50.
func Normalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}

	out := make([]float64, len(scores))
	if maxScore-minScore < 1e-10 {
		for i := range out {
			out[i] = 50.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - minScore) / (maxScore - minScore) * 100.0
	}
	return out
}

func (p *Pipeline) logStats(sourceID int, raw []float64, elapsed time.Duration) {
	if len(raw) == 0 {
		p.log.Debug("nothing to score", logger.F("source", sourceID))
		return
	}
	minRaw, maxRaw, sum := raw[0], raw[0], 0.0
	for _, s := range raw {
		minRaw = math.Min(minRaw, s)
		maxRaw = math.Max(maxRaw, s)
		sum += s
	}
	p.log.Debug("scoring complete",
		logger.F("source", sourceID),
		logger.F("lines", len(raw)),
		logger.F("min", minRaw),
		logger.F("max", maxRaw),
		logger.F("avg", sum/float64(len(raw))),
		logger.F("elapsed", elapsed))
}
