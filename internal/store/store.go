// Package store defines the persistence contracts and record types for
// interviews, indicators, assessments, and the live-session event trail.
//
// Two implementations exist:
//
//   - [MemStore]: thread-safe in-memory store, suitable for tests and for
//     running the server without a database.
//   - postgres.Store: PostgreSQL/pgvector-backed store for deployments.
//
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/talentlens/talentlens/internal/analysis"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Status is the processing lifecycle state of an interview.
type Status string

const (
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Interview is one recorded interview session.
type Interview struct {
	ID            int64
	CandidateName string
	Position      string
	Status        Status

	// Transcript is the full batch transcription text; empty until the first
	// completed processing run.
	Transcript           string
	TranscriptConfidence float64

	// AudioPath is the absolute path of the recorded WAV file, set when the
	// live session closes and cleared after batch processing deletes it.
	AudioPath string

	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// Indicator is a named, weighted behavioral trait evaluated against an
// interview transcript. Weight defaults to 1.0 when non-positive.
type Indicator struct {
	ID          int64
	InterviewID int64
	Name        string
	Description string
	Weight      float64
}

// Assessment is the scored outcome for one (interview, indicator) pair.
// Assessments are deleted and recreated wholesale on reprocessing so the
// evidence always matches the latest transcript.
type Assessment struct {
	ID          int64
	InterviewID int64
	IndicatorID int64
	AIScore     float64
	ManualScore *float64
	Evidence    string
	Reasoning   string
	Notes       string
	CreatedAt   time.Time
}

// ScoreRecord is the per-interview aggregate: overall AI score, optional
// overall manual score, the blended final score, and derived behavioral
// metrics.
type ScoreRecord struct {
	InterviewID      int64
	OverallAI        float64
	OverallManual    *float64
	FinalScore       float64
	EmotionStability float64
	SpeechClarity    float64
	AnswerCoherence  float64
	UpdatedAt        time.Time
}

// TranscriptSegment is one timed unit of the batch transcription, tagged with
// a sentiment score and optionally a pre-computed embedding for evidence
// lookup. Segments are created in bulk at the end of transcription and never
// mutated.
type TranscriptSegment struct {
	ID          int64
	InterviewID int64
	Text        string
	StartSec    float64
	EndSec      float64
	Confidence  float64
	Sentiment   float64
	Embedding   []float32
}

// SegmentMatch pairs a retrieved segment with its cosine distance from a
// query embedding. Lower distance means higher similarity.
type SegmentMatch struct {
	Segment  TranscriptSegment
	Distance float64
}

// TranscriptEntry is one live transcript line pushed by the client during
// recording (distinct from the batch transcription).
type TranscriptEntry struct {
	InterviewID     int64
	Speaker         string
	Text            string
	Timestamp       float64
	Confidence      float64
	EmotionDetected string
	SentimentScore  float64
}

// EmotionLog is one persisted emotion sample, either pushed directly by the
// client or flushed from the session timeline on disconnect.
type EmotionLog struct {
	InterviewID      int64
	Timestamp        float64
	FacialEmotion    string
	FacialConfidence float64
	SpeechEmotion    string
	SpeechConfidence float64
	Scores           map[string]float64
}

// InterviewStore manages interview rows and their processing lifecycle.
type InterviewStore interface {
	// CreateInterview inserts a new interview in the recording state and
	// returns it with its assigned ID.
	CreateInterview(ctx context.Context, candidateName, position string) (Interview, error)

	// GetInterview returns the interview by ID, or [ErrNotFound].
	GetInterview(ctx context.Context, id int64) (Interview, error)

	// SetStatus transitions the interview's processing status.
	SetStatus(ctx context.Context, id int64, status Status) error

	// SetAudioPath records (or clears, with "") the recorded audio path.
	SetAudioPath(ctx context.Context, id int64, path string) error

	// SaveTranscript overwrites the interview's batch transcript in place.
	SaveTranscript(ctx context.Context, id int64, text string, confidence float64) error

	// SetProcessedAt stamps the completion time of a processing run.
	SetProcessedAt(ctx context.Context, id int64, at time.Time) error
}

// IndicatorStore manages the indicator set of an interview.
type IndicatorStore interface {
	// AddIndicator inserts an indicator and returns it with its assigned ID.
	AddIndicator(ctx context.Context, ind Indicator) (Indicator, error)

	// ListIndicators returns the interview's indicators in insertion order.
	// Returns an empty (non-nil) slice when none exist.
	ListIndicators(ctx context.Context, interviewID int64) ([]Indicator, error)
}

// AssessmentStore manages per-indicator assessment rows.
type AssessmentStore interface {
	// DeleteAssessments removes all assessment rows for the interview.
	// Deleting when none exist is not an error.
	DeleteAssessments(ctx context.Context, interviewID int64) error

	// InsertAssessment inserts one assessment row and returns it with its
	// assigned ID.
	InsertAssessment(ctx context.Context, a Assessment) (Assessment, error)

	// ListAssessments returns the interview's assessments in insertion order.
	// Returns an empty (non-nil) slice when none exist.
	ListAssessments(ctx context.Context, interviewID int64) ([]Assessment, error)

	// SetManualScore sets or clears the manual score of one assessment.
	SetManualScore(ctx context.Context, assessmentID int64, score *float64) error
}

// ScoreStore manages the per-interview aggregate score record.
type ScoreStore interface {
	// UpsertScoreRecord replaces the interview's score record.
	UpsertScoreRecord(ctx context.Context, rec ScoreRecord) error

	// GetScoreRecord returns the interview's score record, or [ErrNotFound]
	// when no processing run has produced one yet.
	GetScoreRecord(ctx context.Context, interviewID int64) (ScoreRecord, error)
}

// SegmentStore manages the timed transcript segments of the batch
// transcription, including embedding-based evidence lookup.
type SegmentStore interface {
	// DeleteSegments removes all segments for the interview.
	DeleteSegments(ctx context.Context, interviewID int64) error

	// InsertSegment inserts one segment (with optional embedding) and returns
	// it with its assigned ID.
	InsertSegment(ctx context.Context, seg TranscriptSegment) (TranscriptSegment, error)

	// ListSegments returns the interview's segments ordered by start offset.
	// Returns an empty (non-nil) slice when none exist.
	ListSegments(ctx context.Context, interviewID int64) ([]TranscriptSegment, error)

	// SearchSegments finds the topK segments of the interview whose embeddings
	// are closest to the query embedding, most similar first. Segments stored
	// without an embedding are not returned.
	SearchSegments(ctx context.Context, interviewID int64, embedding []float32, topK int) ([]SegmentMatch, error)
}

// LiveStore is the persistence passthrough for live-session events.
type LiveStore interface {
	// SaveTranscriptEntry appends one live transcript line.
	SaveTranscriptEntry(ctx context.Context, entry TranscriptEntry) error

	// ListTranscriptEntries returns the interview's live transcript lines in
	// timestamp order. Returns an empty (non-nil) slice when none exist.
	ListTranscriptEntries(ctx context.Context, interviewID int64) ([]TranscriptEntry, error)

	// SaveEmotionLog appends one emotion sample.
	SaveEmotionLog(ctx context.Context, log EmotionLog) error

	// ListEmotionLogs returns the interview's emotion samples in timestamp
	// order. Returns an empty (non-nil) slice when none exist.
	ListEmotionLogs(ctx context.Context, interviewID int64) ([]EmotionLog, error)
}

// SettingsStore holds the global scoring-weight configuration.
type SettingsStore interface {
	// GetScoringWeights returns the configured AI/manual weight split, or the
	// default split when none has been persisted.
	GetScoringWeights(ctx context.Context) (analysis.Weights, error)

	// SetScoringWeights persists a validated weight split.
	SetScoringWeights(ctx context.Context, w analysis.Weights) error
}

// Store is the full persistence surface consumed by the server, the session
// coordinator, and the batch engine.
type Store interface {
	InterviewStore
	IndicatorStore
	AssessmentStore
	ScoreStore
	SegmentStore
	LiveStore
	SettingsStore
}
