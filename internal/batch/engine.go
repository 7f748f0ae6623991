// Package batch implements the post-recording analysis pipeline: audio
// transcription, sentence segmentation, per-indicator scoring, weighted
// aggregation, and the recording→processing→completed/failed lifecycle.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/talentlens/talentlens/internal/analysis"
	"github.com/talentlens/talentlens/internal/observe"
	"github.com/talentlens/talentlens/internal/store"
	"github.com/talentlens/talentlens/pkg/provider/asr"
	"github.com/talentlens/talentlens/pkg/provider/embed"
	"github.com/talentlens/talentlens/pkg/provider/sentiment"
)

// ErrAlreadyProcessing is returned when a batch run is requested while one is
// already in flight for the same interview. The request is rejected, not
// queued.
var ErrAlreadyProcessing = errors.New("batch: interview is already being processed")

// minSegmentChars drops trivial transcription segments before persistence.
const minSegmentChars = 3

// defaultMaxConcurrent bounds how many interviews may be processed at once.
const defaultMaxConcurrent = 2

// Result summarises one completed batch run.
type Result struct {
	RunID            string  `json:"run_id"`
	TranscriptLength int     `json:"transcript_length"`
	AssessmentCount  int     `json:"assessment_count"`
	OverallScore     float64 `json:"overall_score"`
}

// Highlight is one indicator called out in a recommendation.
type Highlight struct {
	Indicator string  `json:"indicator"`
	Score     float64 `json:"score"`
	Summary   string  `json:"summary"`
}

// Recommendation is the hiring suggestion assembled from the score record
// and the per-indicator assessments.
type Recommendation struct {
	analysis.Recommendation

	FinalScore   float64     `json:"final_score"`
	Strengths    []Highlight `json:"strengths"`
	Improvements []Highlight `json:"improvements"`
}

// Engine orchestrates batch analysis runs. At most one run is active per
// interview at any time; a weighted semaphore bounds how many different
// interviews run concurrently. Engine is safe for concurrent use.
type Engine struct {
	store       store.Store
	transcriber asr.Transcriber
	sentiment   sentiment.Analyzer
	scorer      *analysis.Scorer
	embedder    embed.Provider
	sem         *semaphore.Weighted
	metrics     *observe.Metrics
	logger      *slog.Logger

	mu      sync.Mutex
	running map[int64]struct{}
}

// Config holds the dependencies for an [Engine].
type Config struct {
	// Store is the persistence surface. Required.
	Store store.Store

	// Transcriber converts the recorded audio to text. Required.
	Transcriber asr.Transcriber

	// Sentiment tags transcript segments. May be nil; segments then default
	// to neutral sentiment.
	Sentiment sentiment.Analyzer

	// Scorer evaluates indicators against the transcript. Required.
	Scorer *analysis.Scorer

	// Embedder produces segment embeddings for evidence lookup. May be nil;
	// segments are then stored without embeddings.
	Embedder embed.Provider

	// MaxConcurrent bounds simultaneous batch runs across interviews.
	// Defaults to 2.
	MaxConcurrent int64

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// NewEngine creates an Engine with the given dependencies.
func NewEngine(cfg Config) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:       cfg.Store,
		transcriber: cfg.Transcriber,
		sentiment:   cfg.Sentiment,
		scorer:      cfg.Scorer,
		embedder:    cfg.Embedder,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrent),
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		running:     make(map[int64]struct{}),
	}
}

// Process runs the full analysis pipeline for one interview. It is
// idempotent: reprocessing deletes all prior assessments and segments and
// overwrites the transcript in place. A request while the interview is
// already processing is rejected with [ErrAlreadyProcessing].
//
// On any pipeline failure the interview is marked failed and the error is
// returned; partial writes before the failure point remain and a retry
// reprocesses from scratch.
func (e *Engine) Process(ctx context.Context, interviewID int64) (Result, error) {
	iv, err := e.store.GetInterview(ctx, interviewID)
	if err != nil {
		return Result{}, fmt.Errorf("batch: load interview %d: %w", interviewID, err)
	}
	if iv.Status == store.StatusProcessing {
		e.metrics.RecordBatchRun(ctx, "rejected")
		return Result{}, ErrAlreadyProcessing
	}

	e.mu.Lock()
	if _, busy := e.running[interviewID]; busy {
		e.mu.Unlock()
		e.metrics.RecordBatchRun(ctx, "rejected")
		return Result{}, ErrAlreadyProcessing
	}
	e.running[interviewID] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, interviewID)
		e.mu.Unlock()
	}()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("batch: acquire worker slot: %w", err)
	}
	defer e.sem.Release(1)

	runID := uuid.NewString()
	logger := e.logger.With("interview_id", interviewID, "run_id", runID)
	start := time.Now()

	res, err := e.run(ctx, logger, iv)
	if err != nil {
		if stErr := e.store.SetStatus(ctx, interviewID, store.StatusFailed); stErr != nil {
			logger.Error("failed to mark interview failed", "err", stErr)
		}
		e.metrics.RecordBatchRun(ctx, "failed")
		logger.Error("batch run failed", "err", err)
		return Result{}, err
	}

	res.RunID = runID
	e.metrics.RecordBatchRun(ctx, "completed")
	e.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	logger.Info("batch run completed",
		"transcript_length", res.TranscriptLength,
		"assessments", res.AssessmentCount,
		"overall_score", res.OverallScore,
		"duration", time.Since(start),
	)
	return res, nil
}

// run executes pipeline steps 2–8. The interview is marked processing first;
// the caller handles the failed transition.
func (e *Engine) run(ctx context.Context, logger *slog.Logger, iv store.Interview) (Result, error) {
	if iv.AudioPath == "" {
		return Result{}, fmt.Errorf("batch: interview %d has no recorded audio", iv.ID)
	}
	if err := e.store.SetStatus(ctx, iv.ID, store.StatusProcessing); err != nil {
		return Result{}, fmt.Errorf("batch: set processing status: %w", err)
	}

	tStart := time.Now()
	tr, err := e.transcriber.TranscribeFile(ctx, iv.AudioPath)
	e.metrics.TranscriptionDuration.Record(ctx, time.Since(tStart).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("batch: transcribe %q: %w", iv.AudioPath, err)
	}
	transcript := strings.TrimSpace(tr.Text)
	if transcript == "" {
		return Result{}, fmt.Errorf("batch: transcription of interview %d produced an empty transcript", iv.ID)
	}

	if err := e.store.SaveTranscript(ctx, iv.ID, transcript, tr.Confidence); err != nil {
		return Result{}, fmt.Errorf("batch: save transcript: %w", err)
	}

	// Wipe prior run output so evidence always matches the latest transcript.
	if err := e.store.DeleteAssessments(ctx, iv.ID); err != nil {
		return Result{}, fmt.Errorf("batch: delete prior assessments: %w", err)
	}
	if err := e.store.DeleteSegments(ctx, iv.ID); err != nil {
		return Result{}, fmt.Errorf("batch: delete prior segments: %w", err)
	}

	clarity, coherence, err := e.persistSegments(ctx, logger, iv.ID, tr.Segments)
	if err != nil {
		return Result{}, err
	}

	// The indicator list is snapshotted once; mutations during the run have
	// no effect on it.
	indicators, err := e.store.ListIndicators(ctx, iv.ID)
	if err != nil {
		return Result{}, fmt.Errorf("batch: list indicators: %w", err)
	}

	weighted := make([]analysis.WeightedScore, 0, len(indicators))
	for _, ind := range indicators {
		a := e.scorer.ScoreIndicator(ctx, transcript, ind.Name, ind.Description)
		if _, err := e.store.InsertAssessment(ctx, store.Assessment{
			InterviewID: iv.ID,
			IndicatorID: ind.ID,
			AIScore:     a.Score,
			Evidence:    a.Evidence,
			Reasoning:   a.Reasoning,
		}); err != nil {
			return Result{}, fmt.Errorf("batch: insert assessment for %q: %w", ind.Name, err)
		}
		weighted = append(weighted, analysis.WeightedScore{Score: a.Score, Weight: ind.Weight})
	}
	overall := analysis.WeightedOverall(weighted)

	stability, err := e.emotionStability(ctx, iv.ID)
	if err != nil {
		return Result{}, err
	}
	weights, err := e.store.GetScoringWeights(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("batch: load scoring weights: %w", err)
	}

	// A reprocessing run recomputes the AI side only. A manual average
	// applied to an earlier run survives and keeps blending into the final.
	var manual *float64
	if prev, err := e.store.GetScoreRecord(ctx, iv.ID); err == nil {
		manual = prev.OverallManual
	} else if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("batch: load prior score record: %w", err)
	}

	if err := e.store.UpsertScoreRecord(ctx, store.ScoreRecord{
		InterviewID:      iv.ID,
		OverallAI:        overall,
		OverallManual:    manual,
		FinalScore:       analysis.FinalScore(overall, manual, weights),
		EmotionStability: stability,
		SpeechClarity:    clarity,
		AnswerCoherence:  coherence,
	}); err != nil {
		return Result{}, fmt.Errorf("batch: upsert score record: %w", err)
	}

	if err := e.store.SetStatus(ctx, iv.ID, store.StatusCompleted); err != nil {
		return Result{}, fmt.Errorf("batch: set completed status: %w", err)
	}
	if err := e.store.SetProcessedAt(ctx, iv.ID, time.Now()); err != nil {
		return Result{}, fmt.Errorf("batch: stamp processed time: %w", err)
	}

	// Best-effort cleanup of the source audio; never escalated.
	if err := os.Remove(iv.AudioPath); err != nil {
		logger.Warn("could not delete processed audio", "path", iv.AudioPath, "err", err)
	} else if err := e.store.SetAudioPath(ctx, iv.ID, ""); err != nil {
		logger.Warn("could not clear audio path", "err", err)
	}

	return Result{
		TranscriptLength: len(transcript),
		AssessmentCount:  len(indicators),
		OverallScore:     overall,
	}, nil
}

// persistSegments stores every non-trivial transcription segment with its
// sentiment score and (best-effort) embedding. It returns the mean segment
// confidence (speech clarity) and mean sentiment (answer coherence).
func (e *Engine) persistSegments(ctx context.Context, logger *slog.Logger, interviewID int64, segments []asr.Segment) (clarity, coherence float64, err error) {
	kept := make([]asr.Segment, 0, len(segments))
	for _, seg := range segments {
		if len(strings.TrimSpace(seg.Text)) >= minSegmentChars {
			kept = append(kept, seg)
		}
	}
	if len(kept) == 0 {
		return 0, 0, nil
	}

	var embeddings [][]float32
	if e.embedder != nil {
		texts := make([]string, len(kept))
		for i, seg := range kept {
			texts[i] = seg.Text
		}
		eStart := time.Now()
		embeddings, err = e.embedder.EmbedBatch(ctx, texts)
		e.metrics.EmbeddingDuration.Record(ctx, time.Since(eStart).Seconds())
		if err != nil || len(embeddings) != len(kept) {
			logger.Warn("segment embedding failed, storing segments without vectors", "err", err)
			embeddings = nil
		}
	}

	var confidenceSum, sentimentSum float64
	for i, seg := range kept {
		score := sentiment.Neutral()
		if e.sentiment != nil {
			if s, sErr := e.sentiment.Analyze(ctx, seg.Text); sErr == nil {
				score = s
			} else {
				logger.Warn("segment sentiment failed, defaulting to neutral", "err", sErr)
			}
		}

		rec := store.TranscriptSegment{
			InterviewID: interviewID,
			Text:        seg.Text,
			StartSec:    seg.Start,
			EndSec:      seg.End,
			Confidence:  seg.Confidence,
			Sentiment:   score.Value,
		}
		if embeddings != nil {
			rec.Embedding = embeddings[i]
		}
		if _, err := e.store.InsertSegment(ctx, rec); err != nil {
			return 0, 0, fmt.Errorf("batch: insert segment: %w", err)
		}

		confidenceSum += seg.Confidence
		sentimentSum += score.Value
	}

	n := float64(len(kept))
	return confidenceSum / n, sentimentSum / n, nil
}

// emotionStability recomputes the label-change stability over the persisted
// facial emotion trail, mirroring the live session formula.
func (e *Engine) emotionStability(ctx context.Context, interviewID int64) (float64, error) {
	logs, err := e.store.ListEmotionLogs(ctx, interviewID)
	if err != nil {
		return 0, fmt.Errorf("batch: list emotion logs: %w", err)
	}

	var labels []string
	for _, l := range logs {
		if l.FacialEmotion != "" {
			labels = append(labels, l.FacialEmotion)
		}
	}
	if len(labels) < 2 {
		return 1.0, nil
	}
	changes := 0
	for i := 1; i < len(labels); i++ {
		if labels[i] != labels[i-1] {
			changes++
		}
	}
	s := 1.0 - float64(changes)/float64(len(labels))
	if s < 0 {
		return 0, nil
	}
	return s, nil
}

// ApplyManualScores sets manual scores on the given assessments and
// recomputes the overall manual average and the blended final score under
// the configured weight split. It is rejected unless the interview has
// completed processing.
func (e *Engine) ApplyManualScores(ctx context.Context, interviewID int64, scores map[int64]float64) (store.ScoreRecord, error) {
	iv, err := e.store.GetInterview(ctx, interviewID)
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("batch: load interview %d: %w", interviewID, err)
	}
	if iv.Status != store.StatusCompleted {
		return store.ScoreRecord{}, fmt.Errorf("batch: interview %d is %s, manual scoring requires completed processing", interviewID, iv.Status)
	}

	for assessmentID, score := range scores {
		if score < 0 || score > 100 {
			return store.ScoreRecord{}, fmt.Errorf("batch: manual score %.1f for assessment %d out of range [0,100]", score, assessmentID)
		}
	}
	for assessmentID, score := range scores {
		s := score
		if err := e.store.SetManualScore(ctx, assessmentID, &s); err != nil {
			return store.ScoreRecord{}, fmt.Errorf("batch: set manual score on assessment %d: %w", assessmentID, err)
		}
	}

	assessments, err := e.store.ListAssessments(ctx, interviewID)
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("batch: list assessments: %w", err)
	}
	manuals := make([]*float64, len(assessments))
	for i, a := range assessments {
		manuals[i] = a.ManualScore
	}
	manualAvg := analysis.ManualAverage(manuals)

	weights, err := e.store.GetScoringWeights(ctx)
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("batch: load scoring weights: %w", err)
	}

	rec, err := e.store.GetScoreRecord(ctx, interviewID)
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("batch: load score record: %w", err)
	}
	rec.OverallManual = manualAvg
	rec.FinalScore = analysis.FinalScore(rec.OverallAI, manualAvg, weights)
	if err := e.store.UpsertScoreRecord(ctx, rec); err != nil {
		return store.ScoreRecord{}, fmt.Errorf("batch: upsert score record: %w", err)
	}
	return rec, nil
}

// SearchEvidence embeds the query text and returns the interview's closest
// transcript segments, most similar first. Requires an embeddings provider
// and a prior processing run that stored segment vectors.
func (e *Engine) SearchEvidence(ctx context.Context, interviewID int64, query string, topK int) ([]store.SegmentMatch, error) {
	if e.embedder == nil {
		return nil, errors.New("batch: evidence search requires an embeddings provider")
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, errors.New("batch: evidence query must not be empty")
	}
	if topK <= 0 {
		topK = 5
	}

	vec, err := e.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("batch: embed evidence query: %w", err)
	}
	matches, err := e.store.SearchSegments(ctx, interviewID, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("batch: search segments: %w", err)
	}
	return matches, nil
}

// reasoningSummaryLimit truncates assessment reasoning in recommendation
// highlights.
const reasoningSummaryLimit = 150

// Recommendation assembles the hiring suggestion for a processed interview:
// the score-derived tier plus the top-3 strongest and bottom-3 weakest
// indicators.
func (e *Engine) Recommendation(ctx context.Context, interviewID int64) (Recommendation, error) {
	rec, err := e.store.GetScoreRecord(ctx, interviewID)
	if err != nil {
		return Recommendation{}, fmt.Errorf("batch: load score record for interview %d: %w", interviewID, err)
	}
	assessments, err := e.store.ListAssessments(ctx, interviewID)
	if err != nil {
		return Recommendation{}, fmt.Errorf("batch: list assessments: %w", err)
	}
	indicators, err := e.store.ListIndicators(ctx, interviewID)
	if err != nil {
		return Recommendation{}, fmt.Errorf("batch: list indicators: %w", err)
	}
	names := make(map[int64]string, len(indicators))
	for _, ind := range indicators {
		names[ind.ID] = ind.Name
	}

	sorted := make([]store.Assessment, len(assessments))
	copy(sorted, assessments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AIScore > sorted[j].AIScore })

	out := Recommendation{
		Recommendation: analysis.Recommend(rec.FinalScore),
		FinalScore:     rec.FinalScore,
	}
	for i := 0; i < len(sorted) && i < 3; i++ {
		out.Strengths = append(out.Strengths, highlight(sorted[i], names))
	}
	for i := len(sorted) - 1; i >= 0 && len(out.Improvements) < 3; i-- {
		out.Improvements = append(out.Improvements, highlight(sorted[i], names))
	}
	return out, nil
}

func highlight(a store.Assessment, names map[int64]string) Highlight {
	summary := a.Reasoning
	if r := []rune(summary); len(r) > reasoningSummaryLimit {
		summary = string(r[:reasoningSummaryLimit])
	}
	return Highlight{
		Indicator: names[a.IndicatorID],
		Score:     a.AIScore,
		Summary:   summary,
	}
}
