// Package postgres provides the PostgreSQL-backed implementation of the
// talentlens persistence surface.
//
// All tables share a single [pgxpool.Pool]. The pgvector extension must be
// available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS, since transcript segments carry a vector
// column for embedding-based evidence lookup.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlInterviews = `
CREATE TABLE IF NOT EXISTS interviews (
    id                    BIGSERIAL    PRIMARY KEY,
    candidate_name        TEXT         NOT NULL DEFAULT '',
    position              TEXT         NOT NULL DEFAULT '',
    status                TEXT         NOT NULL DEFAULT 'recording',
    transcript            TEXT         NOT NULL DEFAULT '',
    transcript_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    audio_path            TEXT         NOT NULL DEFAULT '',
    processed_at          TIMESTAMPTZ,
    created_at            TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interviews_status ON interviews (status);
`

const ddlIndicators = `
CREATE TABLE IF NOT EXISTS indicators (
    id           BIGSERIAL        PRIMARY KEY,
    interview_id BIGINT           NOT NULL REFERENCES interviews (id) ON DELETE CASCADE,
    name         TEXT             NOT NULL,
    description  TEXT             NOT NULL DEFAULT '',
    weight       DOUBLE PRECISION NOT NULL DEFAULT 1.0
);

CREATE INDEX IF NOT EXISTS idx_indicators_interview
    ON indicators (interview_id);
`

const ddlAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id           BIGSERIAL        PRIMARY KEY,
    interview_id BIGINT           NOT NULL REFERENCES interviews (id) ON DELETE CASCADE,
    indicator_id BIGINT           NOT NULL,
    ai_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
    manual_score DOUBLE PRECISION,
    evidence     TEXT             NOT NULL DEFAULT '',
    reasoning    TEXT             NOT NULL DEFAULT '',
    notes        TEXT             NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ      NOT NULL DEFAULT now(),
    UNIQUE (interview_id, indicator_id)
);

CREATE INDEX IF NOT EXISTS idx_assessments_interview
    ON assessments (interview_id);
`

const ddlScoreRecords = `
CREATE TABLE IF NOT EXISTS score_records (
    interview_id      BIGINT           PRIMARY KEY REFERENCES interviews (id) ON DELETE CASCADE,
    overall_ai        DOUBLE PRECISION NOT NULL DEFAULT 0,
    overall_manual    DOUBLE PRECISION,
    final_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
    emotion_stability DOUBLE PRECISION NOT NULL DEFAULT 0,
    speech_clarity    DOUBLE PRECISION NOT NULL DEFAULT 0,
    answer_coherence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    updated_at        TIMESTAMPTZ      NOT NULL DEFAULT now()
);
`

const ddlLiveEvents = `
CREATE TABLE IF NOT EXISTS transcript_entries (
    id               BIGSERIAL        PRIMARY KEY,
    interview_id     BIGINT           NOT NULL REFERENCES interviews (id) ON DELETE CASCADE,
    speaker          TEXT             NOT NULL DEFAULT '',
    text             TEXT             NOT NULL,
    ts               DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
    emotion_detected TEXT             NOT NULL DEFAULT '',
    sentiment_score  DOUBLE PRECISION NOT NULL DEFAULT 0.5
);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_interview
    ON transcript_entries (interview_id, ts);

CREATE TABLE IF NOT EXISTS emotion_logs (
    id                BIGSERIAL        PRIMARY KEY,
    interview_id      BIGINT           NOT NULL REFERENCES interviews (id) ON DELETE CASCADE,
    ts                DOUBLE PRECISION NOT NULL DEFAULT 0,
    facial_emotion    TEXT             NOT NULL DEFAULT '',
    facial_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    speech_emotion    TEXT             NOT NULL DEFAULT '',
    speech_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    scores            JSONB            NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_emotion_logs_interview
    ON emotion_logs (interview_id, ts);
`

const ddlSettings = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT  PRIMARY KEY,
    value JSONB NOT NULL
);
`

// ddlSegments returns the transcript_segments DDL with the embedding
// dimension substituted. The vector dimension is baked into the column type
// at schema creation time.
func ddlSegments(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS transcript_segments (
    id           BIGSERIAL        PRIMARY KEY,
    interview_id BIGINT           NOT NULL REFERENCES interviews (id) ON DELETE CASCADE,
    text         TEXT             NOT NULL,
    start_sec    DOUBLE PRECISION NOT NULL DEFAULT 0,
    end_sec      DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
    sentiment    DOUBLE PRECISION NOT NULL DEFAULT 0.5,
    embedding    vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_segments_interview
    ON transcript_segments (interview_id, start_sec);

CREATE INDEX IF NOT EXISTS idx_segments_embedding
    ON transcript_segments USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
//
// embeddingDimensions must match the configured embedding model (e.g., 1536
// for OpenAI text-embedding-3-small, 768 for nomic-embed-text). Changing it
// after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlInterviews,
		ddlIndicators,
		ddlAssessments,
		ddlScoreRecords,
		ddlSegments(embeddingDimensions),
		ddlLiveEvents,
		ddlSettings,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
