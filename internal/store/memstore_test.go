package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/talentlens/talentlens/internal/analysis"
)

func TestMemStore_InterviewLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	iv, err := s.CreateInterview(ctx, "Alex Chen", "Backend Engineer")
	if err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	if iv.ID == 0 {
		t.Fatal("expected an assigned interview ID")
	}
	if iv.Status != StatusRecording {
		t.Errorf("new interview status = %q, want %q", iv.Status, StatusRecording)
	}

	if err := s.SetStatus(ctx, iv.ID, StatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.SetAudioPath(ctx, iv.ID, "/tmp/interview_1.wav"); err != nil {
		t.Fatalf("SetAudioPath: %v", err)
	}
	if err := s.SaveTranscript(ctx, iv.ID, "full transcript", 0.9); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	now := time.Now()
	if err := s.SetProcessedAt(ctx, iv.ID, now); err != nil {
		t.Fatalf("SetProcessedAt: %v", err)
	}

	got, err := s.GetInterview(ctx, iv.ID)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if got.Status != StatusProcessing || got.AudioPath != "/tmp/interview_1.wav" {
		t.Errorf("unexpected interview state: %+v", got)
	}
	if got.Transcript != "full transcript" || got.TranscriptConfidence != 0.9 {
		t.Errorf("transcript not saved: %+v", got)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(now) {
		t.Errorf("processed_at not stamped: %v", got.ProcessedAt)
	}

	if _, err := s.GetInterview(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing interview error = %v, want ErrNotFound", err)
	}
	if err := s.SetStatus(ctx, 9999, StatusFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus on missing interview = %v, want ErrNotFound", err)
	}
}

func TestMemStore_AssessmentsReplacedWholesale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	iv, _ := s.CreateInterview(ctx, "", "")
	ind, err := s.AddIndicator(ctx, Indicator{InterviewID: iv.ID, Name: "Leadership", Weight: 2})
	if err != nil {
		t.Fatalf("AddIndicator: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.DeleteAssessments(ctx, iv.ID); err != nil {
			t.Fatalf("DeleteAssessments: %v", err)
		}
		if _, err := s.InsertAssessment(ctx, Assessment{
			InterviewID: iv.ID,
			IndicatorID: ind.ID,
			AIScore:     70,
		}); err != nil {
			t.Fatalf("InsertAssessment: %v", err)
		}
	}

	list, err := s.ListAssessments(ctx, iv.ID)
	if err != nil {
		t.Fatalf("ListAssessments: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("reprocessing left %d assessment rows, want 1", len(list))
	}

	manual := 55.0
	if err := s.SetManualScore(ctx, list[0].ID, &manual); err != nil {
		t.Fatalf("SetManualScore: %v", err)
	}
	list, _ = s.ListAssessments(ctx, iv.ID)
	if list[0].ManualScore == nil || *list[0].ManualScore != 55 {
		t.Errorf("manual score not set: %+v", list[0])
	}
}

func TestMemStore_ScoreRecordUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	iv, _ := s.CreateInterview(ctx, "", "")
	if _, err := s.GetScoreRecord(ctx, iv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("score record before processing = %v, want ErrNotFound", err)
	}

	if err := s.UpsertScoreRecord(ctx, ScoreRecord{InterviewID: iv.ID, OverallAI: 70, FinalScore: 70}); err != nil {
		t.Fatalf("UpsertScoreRecord: %v", err)
	}
	if err := s.UpsertScoreRecord(ctx, ScoreRecord{InterviewID: iv.ID, OverallAI: 75, FinalScore: 67}); err != nil {
		t.Fatalf("UpsertScoreRecord (second): %v", err)
	}

	rec, err := s.GetScoreRecord(ctx, iv.ID)
	if err != nil {
		t.Fatalf("GetScoreRecord: %v", err)
	}
	if rec.OverallAI != 75 || rec.FinalScore != 67 {
		t.Errorf("upsert did not replace the record: %+v", rec)
	}
}

func TestMemStore_SearchSegments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	iv, _ := s.CreateInterview(ctx, "", "")
	segments := []TranscriptSegment{
		{InterviewID: iv.ID, Text: "close", Embedding: []float32{1, 0}},
		{InterviewID: iv.ID, Text: "far", Embedding: []float32{0, 1}},
		{InterviewID: iv.ID, Text: "no embedding"},
	}
	for _, seg := range segments {
		if _, err := s.InsertSegment(ctx, seg); err != nil {
			t.Fatalf("InsertSegment: %v", err)
		}
	}

	matches, err := s.SearchSegments(ctx, iv.ID, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("SearchSegments: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 (unembedded segment excluded)", len(matches))
	}
	if matches[0].Segment.Text != "close" {
		t.Errorf("most similar segment = %q, want %q", matches[0].Segment.Text, "close")
	}
	if matches[0].Distance >= matches[1].Distance {
		t.Errorf("matches not ordered by ascending distance: %v", matches)
	}

	if got, _ := s.SearchSegments(ctx, iv.ID, []float32{1, 0}, 1); len(got) != 1 {
		t.Errorf("topK not applied, got %d matches", len(got))
	}
}

func TestMemStore_ScoringWeights(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	w, err := s.GetScoringWeights(ctx)
	if err != nil {
		t.Fatalf("GetScoringWeights: %v", err)
	}
	if w != analysis.DefaultWeights {
		t.Errorf("unconfigured weights = %+v, want default split", w)
	}

	if err := s.SetScoringWeights(ctx, analysis.Weights{AI: 70, Manual: 30}); err != nil {
		t.Fatalf("SetScoringWeights: %v", err)
	}
	w, _ = s.GetScoringWeights(ctx)
	if w.AI != 70 || w.Manual != 30 {
		t.Errorf("weights not persisted: %+v", w)
	}
}
