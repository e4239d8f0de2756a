package anomaly

import (
	"regexp"

	"github.com/logweave/logweave/internal/logline"
)

// Severity tiers, highest first. A message takes the score of the most
// severe tier it matches.
var keywordTiers = []struct {
	re    *regexp.Regexp
	score float64
}{
	{regexp.MustCompile(`(?i)\b(error|err|exception|fatal|critical|crash|panic|abort)\b`), 1.0},
	{regexp.MustCompile(`(?i)\b(fail|failed|failure|unsuccessful|denied|rejected|timeout|timed out)\b`), 0.8},
	{regexp.MustCompile(`(?i)\b(warn|warning|caution|alert)\b`), 0.6},
	{regexp.MustCompile(`(?i)\b(issue|problem|unable|cannot|can't|couldn't|invalid|illegal|unexpected)\b`), 0.4},
}

// keywordScorer is stateless: it scores messages by the severity keywords
// they contain.
type keywordScorer struct{}

func newKeywordScorer() *keywordScorer { return &keywordScorer{} }

func (s *keywordScorer) Name() string { return "keyword" }

func (s *keywordScorer) Score(line *logline.Line) float64 {
	for _, tier := range keywordTiers {
		if tier.re.MatchString(line.Message) {
			return tier.score
		}
	}
	return 0
}

func (s *keywordScorer) Update(*logline.Line) {}
