package batch

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/talentlens/talentlens/internal/analysis"
	"github.com/talentlens/talentlens/internal/store"
	"github.com/talentlens/talentlens/pkg/provider/asr"
	asrmock "github.com/talentlens/talentlens/pkg/provider/asr/mock"
	embedmock "github.com/talentlens/talentlens/pkg/provider/embed/mock"
	"github.com/talentlens/talentlens/pkg/provider/sentiment"
	sentmock "github.com/talentlens/talentlens/pkg/provider/sentiment/mock"
)

const testTranscript = "I took ownership of the leadership transition and guided the team " +
	"through the migration. Communication with stakeholders stayed open the whole time."

func testResult() asr.Result {
	return asr.Result{
		Text:       testTranscript,
		Language:   "en",
		Confidence: 0.85,
		Segments: []asr.Segment{
			{Text: "I took ownership of the leadership transition and guided the team through the migration.", Start: 0, End: 6.2, Confidence: 0.9},
			{Text: "Communication with stakeholders stayed open the whole time.", Start: 6.2, End: 10.1, Confidence: 0.8},
			{Text: "ok", Start: 10.1, End: 10.4, Confidence: 0.99}, // too short to keep
		},
	}
}

// newTestEngine wires an engine against an in-memory store with mock
// providers and a keyword-fallback scorer.
func newTestEngine(t *testing.T, tr *asrmock.Transcriber) (*Engine, *store.MemStore) {
	t.Helper()
	mem := store.NewMemStore()
	e := NewEngine(Config{
		Store:       mem,
		Transcriber: tr,
		Sentiment:   &sentmock.Analyzer{Score: sentiment.Score{Value: 0.7, Label: "positive"}},
		Scorer:      analysis.NewScorer(nil, nil),
		Embedder:    &embedmock.Provider{Vector: []float32{0.1, 0.2, 0.3}},
	})
	return e, mem
}

// newRecordedInterview creates an interview with an on-disk audio file and
// one indicator, ready for processing.
func newRecordedInterview(t *testing.T, mem *store.MemStore) store.Interview {
	t.Helper()
	ctx := context.Background()

	iv, err := mem.CreateInterview(ctx, "Dana", "Backend Engineer")
	if err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	audioPath := filepath.Join(t.TempDir(), "interview.wav")
	if err := os.WriteFile(audioPath, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := mem.SetAudioPath(ctx, iv.ID, audioPath); err != nil {
		t.Fatalf("SetAudioPath: %v", err)
	}
	if _, err := mem.AddIndicator(ctx, store.Indicator{
		InterviewID: iv.ID,
		Name:        "Leadership",
		Description: "Takes ownership and guides others",
		Weight:      1,
	}); err != nil {
		t.Fatalf("AddIndicator: %v", err)
	}
	iv, _ = mem.GetInterview(ctx, iv.ID)
	return iv
}

func TestEngine_ProcessCompletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := &asrmock.Transcriber{Result: testResult()}
	e, mem := newTestEngine(t, tr)
	iv := newRecordedInterview(t, mem)

	res, err := e.Process(ctx, iv.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.RunID == "" {
		t.Error("result is missing a run ID")
	}
	if res.AssessmentCount != 1 {
		t.Errorf("assessment count = %d, want 1", res.AssessmentCount)
	}
	if res.OverallScore <= 0 {
		t.Errorf("overall score = %f, want > 0", res.OverallScore)
	}

	got, _ := mem.GetInterview(ctx, iv.ID)
	if got.Status != store.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Error("processed timestamp not stamped")
	}
	if got.Transcript != testTranscript {
		t.Errorf("transcript not saved: %q", got.Transcript)
	}
	if got.TranscriptConfidence != 0.85 {
		t.Errorf("transcript confidence = %f, want 0.85", got.TranscriptConfidence)
	}

	// The source audio is deleted and its path cleared after a clean run.
	if got.AudioPath != "" {
		t.Errorf("audio path not cleared: %q", got.AudioPath)
	}
	if _, err := os.Stat(iv.AudioPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("audio file still on disk: %v", err)
	}

	rec, err := mem.GetScoreRecord(ctx, iv.ID)
	if err != nil {
		t.Fatalf("GetScoreRecord: %v", err)
	}
	if rec.OverallAI != res.OverallScore {
		t.Errorf("stored AI score %f != result %f", rec.OverallAI, res.OverallScore)
	}
	if rec.OverallManual != nil {
		t.Error("fresh run must not carry a manual score")
	}
	if rec.FinalScore != rec.OverallAI {
		t.Errorf("final score %f should equal the AI score without manual input", rec.FinalScore)
	}
}

func TestEngine_SegmentPersistence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := &asrmock.Transcriber{Result: testResult()}
	e, mem := newTestEngine(t, tr)
	iv := newRecordedInterview(t, mem)

	if _, err := e.Process(ctx, iv.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// The two-character segment is dropped before persistence.
	segs, _ := mem.ListSegments(ctx, iv.ID)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	for _, seg := range segs {
		if seg.Sentiment != 0.7 {
			t.Errorf("segment sentiment = %f, want 0.7", seg.Sentiment)
		}
		if len(seg.Embedding) == 0 {
			t.Error("segment stored without an embedding")
		}
	}

	rec, _ := mem.GetScoreRecord(ctx, iv.ID)
	if want := (0.9 + 0.8) / 2; math.Abs(rec.SpeechClarity-want) > 1e-9 {
		t.Errorf("speech clarity = %f, want %f", rec.SpeechClarity, want)
	}
	if math.Abs(rec.AnswerCoherence-0.7) > 1e-9 {
		t.Errorf("answer coherence = %f, want 0.7", rec.AnswerCoherence)
	}
	// No persisted emotion trail means a perfectly stable default.
	if rec.EmotionStability != 1.0 {
		t.Errorf("emotion stability = %f, want 1.0", rec.EmotionStability)
	}
}

func TestEngine_EmbedderFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := store.NewMemStore()
	e := NewEngine(Config{
		Store:       mem,
		Transcriber: &asrmock.Transcriber{Result: testResult()},
		Scorer:      analysis.NewScorer(nil, nil),
		Embedder:    &embedmock.Provider{Err: errors.New("model offline")},
	})
	iv := newRecordedInterview(t, mem)

	if _, err := e.Process(ctx, iv.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	segs, _ := mem.ListSegments(ctx, iv.ID)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	for _, seg := range segs {
		if len(seg.Embedding) != 0 {
			t.Error("segment should be stored without an embedding when embedding fails")
		}
		// Nil sentiment analyzer defaults segments to neutral.
		if seg.Sentiment != sentiment.Neutral().Value {
			t.Errorf("segment sentiment = %f, want neutral", seg.Sentiment)
		}
	}
}

func TestEngine_ReprocessingReplacesResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := &asrmock.Transcriber{Result: testResult()}
	e, mem := newTestEngine(t, tr)
	iv := newRecordedInterview(t, mem)

	if _, err := e.Process(ctx, iv.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Restore an audio file; the first run deleted it.
	audioPath := filepath.Join(t.TempDir(), "rerun.wav")
	if err := os.WriteFile(audioPath, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := mem.SetAudioPath(ctx, iv.ID, audioPath); err != nil {
		t.Fatalf("SetAudioPath: %v", err)
	}

	if _, err := e.Process(ctx, iv.ID); err != nil {
		t.Fatalf("second run: %v", err)
	}

	assessments, _ := mem.ListAssessments(ctx, iv.ID)
	if len(assessments) != 1 {
		t.Errorf("got %d assessments after reprocessing, want 1", len(assessments))
	}
	segs, _ := mem.ListSegments(ctx, iv.ID)
	if len(segs) != 2 {
		t.Errorf("got %d segments after reprocessing, want 2", len(segs))
	}
	if got := tr.CallCount(); got != 2 {
		t.Errorf("transcriber called %d times, want 2", got)
	}
}

func TestEngine_ReprocessingKeepsManualScores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := &asrmock.Transcriber{Result: testResult()}
	e, mem := newTestEngine(t, tr)
	iv := newRecordedInterview(t, mem)

	if _, err := e.Process(ctx, iv.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	assessments, _ := mem.ListAssessments(ctx, iv.ID)
	if len(assessments) != 1 {
		t.Fatalf("got %d assessments, want 1", len(assessments))
	}
	if _, err := e.ApplyManualScores(ctx, iv.ID, map[int64]float64{assessments[0].ID: 90}); err != nil {
		t.Fatalf("ApplyManualScores: %v", err)
	}

	audioPath := filepath.Join(t.TempDir(), "rerun.wav")
	if err := os.WriteFile(audioPath, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := mem.SetAudioPath(ctx, iv.ID, audioPath); err != nil {
		t.Fatalf("SetAudioPath: %v", err)
	}
	res, err := e.Process(ctx, iv.ID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	rec, err := mem.GetScoreRecord(ctx, iv.ID)
	if err != nil {
		t.Fatalf("GetScoreRecord: %v", err)
	}
	if rec.OverallManual == nil || *rec.OverallManual != 90 {
		t.Fatalf("overall manual after reprocessing = %v, want 90", rec.OverallManual)
	}
	weights, _ := mem.GetScoringWeights(ctx)
	want := (res.OverallScore*float64(weights.AI) + 90*float64(weights.Manual)) / 100
	if math.Abs(rec.FinalScore-want) > 1e-9 {
		t.Errorf("final score after reprocessing = %f, want %f", rec.FinalScore, want)
	}
	if rec.OverallAI != res.OverallScore {
		t.Errorf("stored AI score %f != second run result %f", rec.OverallAI, res.OverallScore)
	}
}

func TestEngine_RejectsWhileProcessing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, mem := newTestEngine(t, &asrmock.Transcriber{Result: testResult()})
	iv := newRecordedInterview(t, mem)
	if err := mem.SetStatus(ctx, iv.ID, store.StatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if _, err := e.Process(ctx, iv.ID); !errors.Is(err, ErrAlreadyProcessing) {
		t.Errorf("got %v, want ErrAlreadyProcessing", err)
	}
	// The rejection must not touch the interview state.
	got, _ := mem.GetInterview(ctx, iv.ID)
	if got.Status != store.StatusProcessing {
		t.Errorf("status = %q, want processing", got.Status)
	}
}

func TestEngine_EmptyTranscriptFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr := &asrmock.Transcriber{Result: asr.Result{Text: "   "}}
	e, mem := newTestEngine(t, tr)
	iv := newRecordedInterview(t, mem)

	if _, err := e.Process(ctx, iv.ID); err == nil {
		t.Fatal("expected an error for an empty transcript")
	}
	got, _ := mem.GetInterview(ctx, iv.ID)
	if got.Status != store.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
}

func TestEngine_MissingAudioFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, mem := newTestEngine(t, &asrmock.Transcriber{Result: testResult()})
	iv, _ := mem.CreateInterview(ctx, "Dana", "Backend Engineer")

	if _, err := e.Process(ctx, iv.ID); err == nil {
		t.Fatal("expected an error when no audio was recorded")
	}
	got, _ := mem.GetInterview(ctx, iv.ID)
	if got.Status != store.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
}

func TestEngine_ApplyManualScores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, mem := newTestEngine(t, &asrmock.Transcriber{Result: testResult()})
	iv := newRecordedInterview(t, mem)

	// Manual scoring before processing completes is rejected.
	if _, err := e.ApplyManualScores(ctx, iv.ID, map[int64]float64{1: 90}); err == nil {
		t.Error("expected rejection while still recording")
	}

	if _, err := e.Process(ctx, iv.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	assessments, _ := mem.ListAssessments(ctx, iv.ID)
	if len(assessments) != 1 {
		t.Fatalf("got %d assessments, want 1", len(assessments))
	}
	aiScore := assessments[0].AIScore

	if _, err := e.ApplyManualScores(ctx, iv.ID, map[int64]float64{assessments[0].ID: 150}); err == nil {
		t.Error("expected rejection of an out-of-range score")
	}

	rec, err := e.ApplyManualScores(ctx, iv.ID, map[int64]float64{assessments[0].ID: 90})
	if err != nil {
		t.Fatalf("ApplyManualScores: %v", err)
	}
	if rec.OverallManual == nil || *rec.OverallManual != 90 {
		t.Fatalf("overall manual = %v, want 90", rec.OverallManual)
	}
	// Default 60/40 blend.
	want := (aiScore*60 + 90*40) / 100
	if math.Abs(rec.FinalScore-want) > 1e-9 {
		t.Errorf("final score = %f, want %f", rec.FinalScore, want)
	}

	stored, _ := mem.GetScoreRecord(ctx, iv.ID)
	if stored.FinalScore != rec.FinalScore {
		t.Errorf("stored final %f != returned %f", stored.FinalScore, rec.FinalScore)
	}
}

func TestHighlightSummaryRuneBoundary(t *testing.T) {
	t.Parallel()

	reasoning := strings.Repeat("é", reasoningSummaryLimit+10)
	h := highlight(store.Assessment{Reasoning: reasoning}, nil)
	if !utf8.ValidString(h.Summary) {
		t.Error("summary contains a split rune")
	}
	if got := len([]rune(h.Summary)); got != reasoningSummaryLimit {
		t.Errorf("summary runes = %d, want %d", got, reasoningSummaryLimit)
	}
}

func TestEngine_SearchEvidence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := store.NewMemStore()
	e := NewEngine(Config{
		Store:       mem,
		Transcriber: &asrmock.Transcriber{},
		Scorer:      analysis.NewScorer(nil, nil),
		Embedder:    &embedmock.Provider{Vector: []float32{1, 0}},
	})
	iv, _ := mem.CreateInterview(ctx, "Dana", "Backend Engineer")
	if _, err := mem.InsertSegment(ctx, store.TranscriptSegment{
		InterviewID: iv.ID, Text: "I led the team", Embedding: []float32{1, 0},
	}); err != nil {
		t.Fatalf("InsertSegment: %v", err)
	}
	if _, err := mem.InsertSegment(ctx, store.TranscriptSegment{
		InterviewID: iv.ID, Text: "We discussed salary", Embedding: []float32{0, 1},
	}); err != nil {
		t.Fatalf("InsertSegment: %v", err)
	}

	matches, err := e.SearchEvidence(ctx, iv.ID, "leadership", 1)
	if err != nil {
		t.Fatalf("SearchEvidence: %v", err)
	}
	if len(matches) != 1 || matches[0].Segment.Text != "I led the team" {
		t.Fatalf("unexpected matches: %+v", matches)
	}

	if _, err := e.SearchEvidence(ctx, iv.ID, "   ", 3); err == nil {
		t.Error("expected an error for an empty query")
	}

	noEmbed := NewEngine(Config{
		Store:       mem,
		Transcriber: &asrmock.Transcriber{},
		Scorer:      analysis.NewScorer(nil, nil),
	})
	if _, err := noEmbed.SearchEvidence(ctx, iv.ID, "leadership", 3); err == nil {
		t.Error("expected an error without an embeddings provider")
	}
}

func TestEngine_Recommendation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e, mem := newTestEngine(t, &asrmock.Transcriber{})
	iv, _ := mem.CreateInterview(ctx, "Dana", "Backend Engineer")

	longReasoning := strings.Repeat("evidence ", 30)
	names := []string{"Leadership", "Communication", "Problem Solving", "Teamwork"}
	scores := []float64{88, 72, 64, 41}
	for i, name := range names {
		ind, _ := mem.AddIndicator(ctx, store.Indicator{InterviewID: iv.ID, Name: name, Weight: 1})
		if _, err := mem.InsertAssessment(ctx, store.Assessment{
			InterviewID: iv.ID,
			IndicatorID: ind.ID,
			AIScore:     scores[i],
			Reasoning:   longReasoning,
		}); err != nil {
			t.Fatalf("InsertAssessment: %v", err)
		}
	}
	if err := mem.UpsertScoreRecord(ctx, store.ScoreRecord{InterviewID: iv.ID, FinalScore: 75}); err != nil {
		t.Fatalf("UpsertScoreRecord: %v", err)
	}

	rec, err := e.Recommendation(ctx, iv.ID)
	if err != nil {
		t.Fatalf("Recommendation: %v", err)
	}
	if rec.Decision != "RECOMMENDED" {
		t.Errorf("decision = %q, want RECOMMENDED", rec.Decision)
	}
	if rec.FinalScore != 75 {
		t.Errorf("final score = %f, want 75", rec.FinalScore)
	}

	if len(rec.Strengths) != 3 {
		t.Fatalf("got %d strengths, want 3", len(rec.Strengths))
	}
	if rec.Strengths[0].Indicator != "Leadership" || rec.Strengths[0].Score != 88 {
		t.Errorf("top strength = %+v", rec.Strengths[0])
	}
	if len(rec.Improvements) != 3 {
		t.Fatalf("got %d improvements, want 3", len(rec.Improvements))
	}
	if rec.Improvements[0].Indicator != "Teamwork" || rec.Improvements[0].Score != 41 {
		t.Errorf("weakest indicator = %+v", rec.Improvements[0])
	}
	if len(rec.Strengths[0].Summary) != reasoningSummaryLimit {
		t.Errorf("summary length = %d, want %d", len(rec.Strengths[0].Summary), reasoningSummaryLimit)
	}

	// No score record means no recommendation.
	if _, err := e.Recommendation(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
