package safety

import "fmt"

// RiskLevel is the discrete label derived from a safety score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
	RiskUnknown  RiskLevel = "unknown"
)

// Weights of each analyzer in the aggregate safety score. They sum to 1.
const (
	contentWeight  = 0.3
	biasWeight     = 0.25
	ethicalWeight  = 0.25
	toxicityWeight = 0.2
)

// Assessment is the combined result of the four analyzers.
type Assessment struct {
	Score           float64
	RiskLevel       RiskLevel
	Recommendations []string
}

// Scorer turns analyzer badness into a goodness score and recommendations.
type Scorer struct {
	mitigation map[string]string
}

// NewScorer returns a Scorer using mitigation for bias recommendations.
func NewScorer(mitigation map[string]string) *Scorer {
	return &Scorer{mitigation: mitigation}
}

// Score combines the four analyses. All inputs are badness values in [0,1].
func (s *Scorer) Score(content, bias, ethical Analysis, toxicity Toxicity) Assessment {
	score := (1-content.Aggregate)*contentWeight +
		(1-bias.Aggregate)*biasWeight +
		(1-ethical.Aggregate)*ethicalWeight +
		(1-toxicity.Score)*toxicityWeight
	score = clamp(score)

	return Assessment{
		Score:           score,
		RiskLevel:       RiskFor(score),
		Recommendations: s.recommend(content, bias, ethical, toxicity),
	}
}

// RiskFor maps a safety score onto a risk level.
func RiskFor(score float64) RiskLevel {
	switch {
	case score >= 0.8:
		return RiskLow
	case score >= 0.6:
		return RiskMedium
	case score >= 0.4:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func (s *Scorer) recommend(content, bias, ethical Analysis, toxicity Toxicity) []string {
	recs := []string{}
	if content.Aggregate > 0.5 {
		recs = append(recs, "Review content for potentially harmful language")
	}
	for _, c := range bias.Categories {
		if c.Score <= 0.3 {
			continue
		}
		mitigation, ok := s.mitigation[c.Name]
		if !ok {
			mitigation = "Review for bias"
		}
		recs = append(recs, fmt.Sprintf("Address %s: %s", c.Name, mitigation))
	}
	if ethical.Aggregate > 0.5 {
		recs = append(recs, "Review for ethical compliance")
	}
	if toxicity.Score > 0.5 {
		recs = append(recs, "Reduce toxic language and tone")
	}
	return recs
}
