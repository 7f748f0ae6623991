package analysis

import (
	"math"
	"testing"
)

func TestWeightedOverall(t *testing.T) {
	t.Parallel()

	// A(weight 1, score 80), B(weight 3, score 40) -> (80+120)/4 = 50.
	got := WeightedOverall([]WeightedScore{
		{Score: 80, Weight: 1},
		{Score: 40, Weight: 3},
	})
	if got != 50 {
		t.Errorf("weighted overall = %f, want 50", got)
	}
}

func TestWeightedOverall_EqualWeightsIsMean(t *testing.T) {
	t.Parallel()

	got := WeightedOverall([]WeightedScore{
		{Score: 60, Weight: 2},
		{Score: 80, Weight: 2},
		{Score: 100, Weight: 2},
	})
	if got != 80 {
		t.Errorf("equal weights should reduce to the mean, got %f", got)
	}
}

func TestWeightedOverall_MissingWeightDefaultsToOne(t *testing.T) {
	t.Parallel()

	got := WeightedOverall([]WeightedScore{
		{Score: 80, Weight: 0},
		{Score: 40, Weight: 1},
	})
	if got != 60 {
		t.Errorf("missing weight should default to 1, got %f", got)
	}
}

func TestWeightedOverall_Empty(t *testing.T) {
	t.Parallel()

	if got := WeightedOverall(nil); got != 0 {
		t.Errorf("no indicators should score 0, got %f", got)
	}
}

func TestFinalScore(t *testing.T) {
	t.Parallel()

	if got := FinalScore(70, nil, DefaultWeights); got != 70 {
		t.Errorf("AI-only final = %f, want 70", got)
	}

	manual := 50.0
	if got := FinalScore(70, &manual, DefaultWeights); math.Abs(got-62) > 1e-9 {
		t.Errorf("blended final = %f, want 62", got)
	}

	if got := FinalScore(70, &manual, Weights{AI: 100, Manual: 0}); got != 70 {
		t.Errorf("AI-weight-100 final = %f, want 70", got)
	}
}

func TestManualAverage(t *testing.T) {
	t.Parallel()

	if got := ManualAverage(nil); got != nil {
		t.Errorf("no manual scores should yield nil, got %v", got)
	}

	a, b := 80.0, 60.0
	got := ManualAverage([]*float64{&a, nil, &b})
	if got == nil || *got != 70 {
		t.Errorf("manual average = %v, want 70 (nil entries excluded)", got)
	}
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		w       Weights
		wantErr bool
	}{
		{"default", DefaultWeights, false},
		{"fifty-fifty", Weights{AI: 50, Manual: 50}, false},
		{"does not sum", Weights{AI: 60, Manual: 50}, true},
		{"negative", Weights{AI: 120, Manual: -20}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.w.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.w, err, tt.wantErr)
			}
		})
	}
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score          float64
		wantDecision   string
		wantConfidence float64
	}{
		{81, "HIGHLY RECOMMENDED", 0.95},
		{75, "RECOMMENDED", 0.85},
		{65, "CONSIDER", 0.70},
		{55, "BORDERLINE", 0.60},
		{45, "NOT RECOMMENDED", 0.50},
	}
	for _, tt := range tests {
		r := Recommend(tt.score)
		if r.Decision != tt.wantDecision {
			t.Errorf("Recommend(%f).Decision = %q, want %q", tt.score, r.Decision, tt.wantDecision)
		}
		if r.Confidence != tt.wantConfidence {
			t.Errorf("Recommend(%f).Confidence = %f, want %f", tt.score, r.Confidence, tt.wantConfidence)
		}
		if len(r.NextSteps) == 0 || r.Reason == "" {
			t.Errorf("Recommend(%f) missing next steps or reason", tt.score)
		}
	}
}
