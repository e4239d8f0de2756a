package anomaly

import (
	"math"

	"github.com/logweave/logweave/internal/logline"
)

// entropyScorer tracks the running average message entropy and length and
// scores by deviation from them. Unusually random or unusually flat
// messages both stand out.
type entropyScorer struct {
	avgLength   float64
	avgEntropy  float64
	sampleCount int
}

func newEntropyScorer() *entropyScorer {
	return &entropyScorer{}
}

func (s *entropyScorer) Name() string { return "entropy" }

func (s *entropyScorer) Score(line *logline.Line) float64 {
	if s.sampleCount == 0 {
		return 0.5
	}

	entropy := shannonEntropy(line.Message)
	length := float64(len(line.Message))

	entropyDev := math.Abs(entropy-s.avgEntropy) / math.Max(s.avgEntropy, 1.0)
	lengthDev := math.Abs(length-s.avgLength) / math.Max(s.avgLength, 1.0)

	return math.Min((entropyDev+lengthDev)/2.0, 1.0)
}

func (s *entropyScorer) Update(line *logline.Line) {
	entropy := shannonEntropy(line.Message)
	length := float64(len(line.Message))

	n := float64(s.sampleCount)
	s.avgEntropy = (s.avgEntropy*n + entropy) / (n + 1)
	s.avgLength = (s.avgLength*n + length) / (n + 1)
	s.sampleCount++
}

// shannonEntropy computes byte-level Shannon entropy in bits.
func shannonEntropy(text string) float64 {
	if text == "" {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(text); i++ {
		counts[text[i]]++
	}
	total := float64(len(text))
	var entropy float64
	for _, count := range counts {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
