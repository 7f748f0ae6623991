package analysis

import (
	"errors"
	"fmt"
)

// Weights is the global AI/manual weight split applied when combining the
// AI-derived overall score with human-entered manual scores. The two values
// are percentages and must sum to 100.
type Weights struct {
	AI     int `yaml:"ai" json:"ai_weight"`
	Manual int `yaml:"manual" json:"manual_weight"`
}

// DefaultWeights is the 60/40 AI/manual split used when nothing is
// configured.
var DefaultWeights = Weights{AI: 60, Manual: 40}

// Validate reports whether w is an acceptable weight pair.
func (w Weights) Validate() error {
	var errs []error
	if w.AI < 0 {
		errs = append(errs, fmt.Errorf("ai weight %d must not be negative", w.AI))
	}
	if w.Manual < 0 {
		errs = append(errs, fmt.Errorf("manual weight %d must not be negative", w.Manual))
	}
	if w.AI+w.Manual != 100 {
		errs = append(errs, fmt.Errorf("weights must sum to 100, got %d", w.AI+w.Manual))
	}
	return errors.Join(errs...)
}

// WeightedScore is one indicator's contribution to the overall score.
type WeightedScore struct {
	Score  float64
	Weight float64
}

// WeightedOverall computes the weighted mean of indicator scores. A missing
// (non-positive) weight counts as 1.0. Returns 0 when scores is empty.
func WeightedOverall(scores []WeightedScore) float64 {
	var sum, weightSum float64
	for _, s := range scores {
		w := s.Weight
		if w <= 0 {
			w = 1.0
		}
		sum += s.Score * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// ManualAverage returns the arithmetic mean of the manual scores that are
// present; missing entries are excluded, not treated as zero. Returns nil
// when no manual score is present.
func ManualAverage(scores []*float64) *float64 {
	var sum float64
	n := 0
	for _, s := range scores {
		if s == nil {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// FinalScore combines the AI overall score with an optional manual overall
// score under the given weight split. Without a manual score the AI score
// stands alone.
func FinalScore(ai float64, manual *float64, w Weights) float64 {
	if manual == nil {
		return ai
	}
	return (ai*float64(w.AI) + *manual*float64(w.Manual)) / 100
}

// Recommendation is the hiring suggestion derived from a final score.
type Recommendation struct {
	Decision   string   `json:"decision"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	NextSteps  []string `json:"next_steps"`
}

// Tier-keyed next-step suggestion lists. Fixed per tier, not derived from
// the score.
var (
	advanceSteps = []string{
		"Proceed to final interview round",
		"Verify references and credentials",
		"Discuss compensation and start date",
	}
	considerSteps = []string{
		"Conduct additional technical assessment",
		"Schedule follow-up interview on weak areas",
		"Compare with other candidates",
	}
	rejectSteps = []string{
		"Send polite rejection with feedback",
		"Keep in talent pool for future opportunities",
		"Continue candidate search",
	}
)

// Recommend maps a final score onto the fixed recommendation tiers.
func Recommend(finalScore float64) Recommendation {
	switch {
	case finalScore >= 80:
		return Recommendation{
			Decision:   "HIGHLY RECOMMENDED",
			Confidence: 0.95,
			Reason:     "Exceptional performance across all indicators",
			NextSteps:  advanceSteps,
		}
	case finalScore >= 70:
		return Recommendation{
			Decision:   "RECOMMENDED",
			Confidence: 0.85,
			Reason:     "Strong performance with good potential",
			NextSteps:  advanceSteps,
		}
	case finalScore >= 60:
		return Recommendation{
			Decision:   "CONSIDER",
			Confidence: 0.70,
			Reason:     "Meets basic requirements, some areas need improvement",
			NextSteps:  considerSteps,
		}
	case finalScore >= 50:
		return Recommendation{
			Decision:   "BORDERLINE",
			Confidence: 0.60,
			Reason:     "Several concerns, requires further evaluation",
			NextSteps:  rejectSteps,
		}
	default:
		return Recommendation{
			Decision:   "NOT RECOMMENDED",
			Confidence: 0.50,
			Reason:     "Significant gaps in required competencies",
			NextSteps:  rejectSteps,
		}
	}
}
