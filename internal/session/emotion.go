package session

// mergeWindowSec is the window within which facial and speech observations
// are merged into one sample (last-writer-wins per field).
const mergeWindowSec = 2.0

// historyLimit bounds the label history used for the stability computation.
const historyLimit = 100

// Sample is one timestamped emotion observation on the session timeline.
// Facial and speech fields may each be absent (empty label).
type Sample struct {
	Timestamp        float64
	FacialEmotion    string
	FacialConfidence float64
	SpeechEmotion    string
	SpeechConfidence float64
	Scores           map[string]float64
}

// Timeline accumulates emotion samples for one session and derives the
// running stability score. It is not safe for concurrent use; the owning
// session processes events sequentially.
type Timeline struct {
	samples []Sample
	history []string
}

// AddFacial records a facial classification. If the previous sample is
// within the merge window the facial fields are overwritten on it; otherwise
// a new sample is appended. The label is also pushed onto the bounded
// history used for stability.
func (t *Timeline) AddFacial(ts float64, label string, confidence float64, scores map[string]float64) {
	if last := t.mergeTarget(ts); last != nil {
		last.FacialEmotion = label
		last.FacialConfidence = confidence
		last.Scores = scores
	} else {
		t.samples = append(t.samples, Sample{
			Timestamp:        ts,
			FacialEmotion:    label,
			FacialConfidence: confidence,
			Scores:           scores,
		})
	}
	t.pushLabel(label)
}

// AddSpeech records a speech-characteristics classification under the same
// merge rule as [Timeline.AddFacial]. Speech labels do not feed the facial
// stability history.
func (t *Timeline) AddSpeech(ts float64, label string, confidence float64) {
	if last := t.mergeTarget(ts); last != nil {
		last.SpeechEmotion = label
		last.SpeechConfidence = confidence
		return
	}
	t.samples = append(t.samples, Sample{
		Timestamp:        ts,
		SpeechEmotion:    label,
		SpeechConfidence: confidence,
	})
}

// mergeTarget returns the last sample when ts falls inside its merge window,
// else nil.
func (t *Timeline) mergeTarget(ts float64) *Sample {
	if len(t.samples) == 0 {
		return nil
	}
	last := &t.samples[len(t.samples)-1]
	if ts-last.Timestamp < mergeWindowSec {
		return last
	}
	return nil
}

func (t *Timeline) pushLabel(label string) {
	t.history = append(t.history, label)
	if len(t.history) > historyLimit {
		t.history = t.history[len(t.history)-historyLimit:]
	}
}

// Stability is 1 minus the rate of label changes between consecutive
// observations over the bounded recent history, clamped to [0,1]. With fewer
// than two observations there is no variability, so stability is 1.0.
func (t *Timeline) Stability() float64 {
	if len(t.history) < 2 {
		return 1.0
	}
	changes := 0
	for i := 1; i < len(t.history); i++ {
		if t.history[i] != t.history[i-1] {
			changes++
		}
	}
	s := 1.0 - float64(changes)/float64(len(t.history))
	if s < 0 {
		return 0
	}
	return s
}

// SampleCount returns the number of accumulated samples.
func (t *Timeline) SampleCount() int {
	return len(t.samples)
}

// Flush returns the samples that pass the persistence quality gate: only
// samples with facial confidence strictly above 0.5 are kept. Speech-only
// samples carry zero facial confidence and are excluded with the rest, so
// low-quality emotion trails never reach storage.
func (t *Timeline) Flush() []Sample {
	var kept []Sample
	for _, s := range t.samples {
		if s.FacialConfidence > 0.5 {
			kept = append(kept, s)
		}
	}
	return kept
}
