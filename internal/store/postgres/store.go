package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/talentlens/talentlens/internal/analysis"
	"github.com/talentlens/talentlens/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed implementation of [store.Store]. All
// operations share a single [pgxpool.Pool] and are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the configured
// embedding model.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that the segment
	// embedding column can be scanned into and inserted from pgvector.Vector
	// values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateInterview implements [store.InterviewStore.CreateInterview].
func (s *Store) CreateInterview(ctx context.Context, candidateName, position string) (store.Interview, error) {
	const q = `
		INSERT INTO interviews (candidate_name, position, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	iv := store.Interview{
		CandidateName: candidateName,
		Position:      position,
		Status:        store.StatusRecording,
	}
	err := s.pool.QueryRow(ctx, q, candidateName, position, string(store.StatusRecording)).
		Scan(&iv.ID, &iv.CreatedAt)
	if err != nil {
		return store.Interview{}, fmt.Errorf("postgres store: create interview: %w", err)
	}
	return iv, nil
}

// GetInterview implements [store.InterviewStore.GetInterview].
func (s *Store) GetInterview(ctx context.Context, id int64) (store.Interview, error) {
	const q = `
		SELECT id, candidate_name, position, status, transcript,
		       transcript_confidence, audio_path, processed_at, created_at
		FROM   interviews
		WHERE  id = $1`

	var (
		iv     store.Interview
		status string
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&iv.ID,
		&iv.CandidateName,
		&iv.Position,
		&status,
		&iv.Transcript,
		&iv.TranscriptConfidence,
		&iv.AudioPath,
		&iv.ProcessedAt,
		&iv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Interview{}, store.ErrNotFound
	}
	if err != nil {
		return store.Interview{}, fmt.Errorf("postgres store: get interview: %w", err)
	}
	iv.Status = store.Status(status)
	return iv, nil
}

// updateInterview runs an UPDATE against one interview row and converts the
// zero-rows case into [store.ErrNotFound].
func (s *Store) updateInterview(ctx context.Context, op, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres store: %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetStatus implements [store.InterviewStore.SetStatus].
func (s *Store) SetStatus(ctx context.Context, id int64, status store.Status) error {
	return s.updateInterview(ctx, "set status",
		`UPDATE interviews SET status = $2 WHERE id = $1`, id, string(status))
}

// SetAudioPath implements [store.InterviewStore.SetAudioPath].
func (s *Store) SetAudioPath(ctx context.Context, id int64, path string) error {
	return s.updateInterview(ctx, "set audio path",
		`UPDATE interviews SET audio_path = $2 WHERE id = $1`, id, path)
}

// SaveTranscript implements [store.InterviewStore.SaveTranscript].
func (s *Store) SaveTranscript(ctx context.Context, id int64, text string, confidence float64) error {
	return s.updateInterview(ctx, "save transcript",
		`UPDATE interviews SET transcript = $2, transcript_confidence = $3 WHERE id = $1`,
		id, text, confidence)
}

// SetProcessedAt implements [store.InterviewStore.SetProcessedAt].
func (s *Store) SetProcessedAt(ctx context.Context, id int64, at time.Time) error {
	return s.updateInterview(ctx, "set processed at",
		`UPDATE interviews SET processed_at = $2 WHERE id = $1`, id, at)
}

// AddIndicator implements [store.IndicatorStore.AddIndicator].
func (s *Store) AddIndicator(ctx context.Context, ind store.Indicator) (store.Indicator, error) {
	const q = `
		INSERT INTO indicators (interview_id, name, description, weight)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := s.pool.QueryRow(ctx, q, ind.InterviewID, ind.Name, ind.Description, ind.Weight).
		Scan(&ind.ID)
	if err != nil {
		return store.Indicator{}, fmt.Errorf("postgres store: add indicator: %w", err)
	}
	return ind, nil
}

// ListIndicators implements [store.IndicatorStore.ListIndicators].
func (s *Store) ListIndicators(ctx context.Context, interviewID int64) ([]store.Indicator, error) {
	const q = `
		SELECT id, interview_id, name, description, weight
		FROM   indicators
		WHERE  interview_id = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list indicators: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[store.Indicator])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan indicators: %w", err)
	}
	if out == nil {
		out = []store.Indicator{}
	}
	return out, nil
}

// DeleteAssessments implements [store.AssessmentStore.DeleteAssessments].
func (s *Store) DeleteAssessments(ctx context.Context, interviewID int64) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM assessments WHERE interview_id = $1`, interviewID); err != nil {
		return fmt.Errorf("postgres store: delete assessments: %w", err)
	}
	return nil
}

// InsertAssessment implements [store.AssessmentStore.InsertAssessment].
func (s *Store) InsertAssessment(ctx context.Context, a store.Assessment) (store.Assessment, error) {
	const q = `
		INSERT INTO assessments
		    (interview_id, indicator_id, ai_score, manual_score, evidence, reasoning, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, q,
		a.InterviewID, a.IndicatorID, a.AIScore, a.ManualScore,
		a.Evidence, a.Reasoning, a.Notes,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return store.Assessment{}, fmt.Errorf("postgres store: insert assessment: %w", err)
	}
	return a, nil
}

// ListAssessments implements [store.AssessmentStore.ListAssessments].
func (s *Store) ListAssessments(ctx context.Context, interviewID int64) ([]store.Assessment, error) {
	const q = `
		SELECT id, interview_id, indicator_id, ai_score, manual_score,
		       evidence, reasoning, notes, created_at
		FROM   assessments
		WHERE  interview_id = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list assessments: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[store.Assessment])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan assessments: %w", err)
	}
	if out == nil {
		out = []store.Assessment{}
	}
	return out, nil
}

// SetManualScore implements [store.AssessmentStore.SetManualScore].
func (s *Store) SetManualScore(ctx context.Context, assessmentID int64, score *float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assessments SET manual_score = $2 WHERE id = $1`, assessmentID, score)
	if err != nil {
		return fmt.Errorf("postgres store: set manual score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpsertScoreRecord implements [store.ScoreStore.UpsertScoreRecord].
func (s *Store) UpsertScoreRecord(ctx context.Context, rec store.ScoreRecord) error {
	const q = `
		INSERT INTO score_records
		    (interview_id, overall_ai, overall_manual, final_score,
		     emotion_stability, speech_clarity, answer_coherence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (interview_id) DO UPDATE SET
		    overall_ai        = EXCLUDED.overall_ai,
		    overall_manual    = EXCLUDED.overall_manual,
		    final_score       = EXCLUDED.final_score,
		    emotion_stability = EXCLUDED.emotion_stability,
		    speech_clarity    = EXCLUDED.speech_clarity,
		    answer_coherence  = EXCLUDED.answer_coherence,
		    updated_at        = now()`

	_, err := s.pool.Exec(ctx, q,
		rec.InterviewID, rec.OverallAI, rec.OverallManual, rec.FinalScore,
		rec.EmotionStability, rec.SpeechClarity, rec.AnswerCoherence,
	)
	if err != nil {
		return fmt.Errorf("postgres store: upsert score record: %w", err)
	}
	return nil
}

// GetScoreRecord implements [store.ScoreStore.GetScoreRecord].
func (s *Store) GetScoreRecord(ctx context.Context, interviewID int64) (store.ScoreRecord, error) {
	const q = `
		SELECT interview_id, overall_ai, overall_manual, final_score,
		       emotion_stability, speech_clarity, answer_coherence, updated_at
		FROM   score_records
		WHERE  interview_id = $1`

	var rec store.ScoreRecord
	err := s.pool.QueryRow(ctx, q, interviewID).Scan(
		&rec.InterviewID,
		&rec.OverallAI,
		&rec.OverallManual,
		&rec.FinalScore,
		&rec.EmotionStability,
		&rec.SpeechClarity,
		&rec.AnswerCoherence,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ScoreRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("postgres store: get score record: %w", err)
	}
	return rec, nil
}

// DeleteSegments implements [store.SegmentStore.DeleteSegments].
func (s *Store) DeleteSegments(ctx context.Context, interviewID int64) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM transcript_segments WHERE interview_id = $1`, interviewID); err != nil {
		return fmt.Errorf("postgres store: delete segments: %w", err)
	}
	return nil
}

// InsertSegment implements [store.SegmentStore.InsertSegment].
func (s *Store) InsertSegment(ctx context.Context, seg store.TranscriptSegment) (store.TranscriptSegment, error) {
	const q = `
		INSERT INTO transcript_segments
		    (interview_id, text, start_sec, end_sec, confidence, sentiment, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var embedding any
	if len(seg.Embedding) > 0 {
		embedding = pgvector.NewVector(seg.Embedding)
	}
	err := s.pool.QueryRow(ctx, q,
		seg.InterviewID, seg.Text, seg.StartSec, seg.EndSec,
		seg.Confidence, seg.Sentiment, embedding,
	).Scan(&seg.ID)
	if err != nil {
		return store.TranscriptSegment{}, fmt.Errorf("postgres store: insert segment: %w", err)
	}
	return seg, nil
}

// ListSegments implements [store.SegmentStore.ListSegments].
func (s *Store) ListSegments(ctx context.Context, interviewID int64) ([]store.TranscriptSegment, error) {
	const q = `
		SELECT id, interview_id, text, start_sec, end_sec, confidence, sentiment, embedding
		FROM   transcript_segments
		WHERE  interview_id = $1
		ORDER  BY start_sec, id`

	rows, err := s.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list segments: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanSegment)
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan segments: %w", err)
	}
	if out == nil {
		out = []store.TranscriptSegment{}
	}
	return out, nil
}

// SearchSegments implements [store.SegmentStore.SearchSegments] using
// pgvector cosine distance over the HNSW index.
func (s *Store) SearchSegments(ctx context.Context, interviewID int64, embedding []float32, topK int) ([]store.SegmentMatch, error) {
	const q = `
		SELECT id, interview_id, text, start_sec, end_sec, confidence, sentiment, embedding,
		       embedding <=> $2 AS distance
		FROM   transcript_segments
		WHERE  interview_id = $1
		  AND  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, interviewID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search segments: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SegmentMatch, error) {
		var (
			m   store.SegmentMatch
			vec *pgvector.Vector
		)
		if err := row.Scan(
			&m.Segment.ID,
			&m.Segment.InterviewID,
			&m.Segment.Text,
			&m.Segment.StartSec,
			&m.Segment.EndSec,
			&m.Segment.Confidence,
			&m.Segment.Sentiment,
			&vec,
			&m.Distance,
		); err != nil {
			return store.SegmentMatch{}, err
		}
		if vec != nil {
			m.Segment.Embedding = vec.Slice()
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan segment matches: %w", err)
	}
	if out == nil {
		out = []store.SegmentMatch{}
	}
	return out, nil
}

// scanSegment scans one transcript_segments row, tolerating NULL embeddings.
func scanSegment(row pgx.CollectableRow) (store.TranscriptSegment, error) {
	var (
		seg store.TranscriptSegment
		vec *pgvector.Vector
	)
	if err := row.Scan(
		&seg.ID,
		&seg.InterviewID,
		&seg.Text,
		&seg.StartSec,
		&seg.EndSec,
		&seg.Confidence,
		&seg.Sentiment,
		&vec,
	); err != nil {
		return store.TranscriptSegment{}, err
	}
	if vec != nil {
		seg.Embedding = vec.Slice()
	}
	return seg, nil
}

// SaveTranscriptEntry implements [store.LiveStore.SaveTranscriptEntry].
func (s *Store) SaveTranscriptEntry(ctx context.Context, entry store.TranscriptEntry) error {
	const q = `
		INSERT INTO transcript_entries
		    (interview_id, speaker, text, ts, confidence, emotion_detected, sentiment_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		entry.InterviewID, entry.Speaker, entry.Text, entry.Timestamp,
		entry.Confidence, entry.EmotionDetected, entry.SentimentScore,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save transcript entry: %w", err)
	}
	return nil
}

// ListTranscriptEntries implements [store.LiveStore.ListTranscriptEntries].
func (s *Store) ListTranscriptEntries(ctx context.Context, interviewID int64) ([]store.TranscriptEntry, error) {
	const q = `
		SELECT interview_id, speaker, text, ts, confidence, emotion_detected, sentiment_score
		FROM   transcript_entries
		WHERE  interview_id = $1
		ORDER  BY ts, id`

	rows, err := s.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list transcript entries: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[store.TranscriptEntry])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan transcript entries: %w", err)
	}
	if out == nil {
		out = []store.TranscriptEntry{}
	}
	return out, nil
}

// SaveEmotionLog implements [store.LiveStore.SaveEmotionLog].
func (s *Store) SaveEmotionLog(ctx context.Context, log store.EmotionLog) error {
	const q = `
		INSERT INTO emotion_logs
		    (interview_id, ts, facial_emotion, facial_confidence,
		     speech_emotion, speech_confidence, scores)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	scores := log.Scores
	if scores == nil {
		scores = map[string]float64{}
	}
	_, err := s.pool.Exec(ctx, q,
		log.InterviewID, log.Timestamp, log.FacialEmotion, log.FacialConfidence,
		log.SpeechEmotion, log.SpeechConfidence, scores,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save emotion log: %w", err)
	}
	return nil
}

// ListEmotionLogs implements [store.LiveStore.ListEmotionLogs].
func (s *Store) ListEmotionLogs(ctx context.Context, interviewID int64) ([]store.EmotionLog, error) {
	const q = `
		SELECT interview_id, ts, facial_emotion, facial_confidence,
		       speech_emotion, speech_confidence, scores
		FROM   emotion_logs
		WHERE  interview_id = $1
		ORDER  BY ts, id`

	rows, err := s.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list emotion logs: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.EmotionLog, error) {
		var l store.EmotionLog
		if err := row.Scan(
			&l.InterviewID,
			&l.Timestamp,
			&l.FacialEmotion,
			&l.FacialConfidence,
			&l.SpeechEmotion,
			&l.SpeechConfidence,
			&l.Scores,
		); err != nil {
			return store.EmotionLog{}, err
		}
		return l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan emotion logs: %w", err)
	}
	if out == nil {
		out = []store.EmotionLog{}
	}
	return out, nil
}

// scoringWeightsKey is the settings row holding the AI/manual weight split.
const scoringWeightsKey = "scoring_weights"

// GetScoringWeights implements [store.SettingsStore.GetScoringWeights]. It
// returns [analysis.DefaultWeights] when no split has been persisted.
func (s *Store) GetScoringWeights(ctx context.Context) (analysis.Weights, error) {
	const q = `SELECT value FROM settings WHERE key = $1`

	var w analysis.Weights
	err := s.pool.QueryRow(ctx, q, scoringWeightsKey).Scan(&w)
	if errors.Is(err, pgx.ErrNoRows) {
		return analysis.DefaultWeights, nil
	}
	if err != nil {
		return analysis.Weights{}, fmt.Errorf("postgres store: get scoring weights: %w", err)
	}
	return w, nil
}

// SetScoringWeights implements [store.SettingsStore.SetScoringWeights].
func (s *Store) SetScoringWeights(ctx context.Context, w analysis.Weights) error {
	const q = `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

	if _, err := s.pool.Exec(ctx, q, scoringWeightsKey, w); err != nil {
		return fmt.Errorf("postgres store: set scoring weights: %w", err)
	}
	return nil
}
