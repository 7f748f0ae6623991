package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talentlens/talentlens/internal/observe"
	"github.com/talentlens/talentlens/internal/store"
	"github.com/talentlens/talentlens/pkg/audio"
	"github.com/talentlens/talentlens/pkg/provider/vision"
	"github.com/talentlens/talentlens/pkg/provider/voice"
)

const (
	// defaultFrameDivisor forwards every 5th video frame to the classifier.
	defaultFrameDivisor = 5

	// defaultSpeechAnalysisEvery runs speech analysis on every 5th audio chunk.
	defaultSpeechAnalysisEvery = 5
)

// Storage is the subset of the persistence surface the coordinator needs:
// the live-event passthrough plus the audio-path handoff on disconnect.
type Storage interface {
	store.LiveStore
	SetAudioPath(ctx context.Context, id int64, path string) error
	SetStatus(ctx context.Context, id int64, status store.Status) error
}

// state is the per-interview session state. Event handling within one
// session is strictly sequential (one socket, one reader loop), so the state
// needs no internal locking; only the coordinator's session map is shared.
type state struct {
	recorder *audio.Recorder
	timeline *Timeline

	frameCount int
	chunkCount int
}

// Coordinator owns one isolated session state per active interview and
// routes inbound live events to the capture and emotion collaborators.
// Concurrently active interviews are independent; the keyed session map is
// the only shared mutable state.
type Coordinator struct {
	mu       sync.RWMutex
	sessions map[int64]*state

	vision  vision.Classifier
	voice   voice.Analyzer
	storage Storage
	metrics *observe.Metrics
	logger  *slog.Logger

	recordingDir        string
	sampleRate          int
	frameDivisor        int
	speechAnalysisEvery int

	// now is swappable for deterministic timeline tests.
	now func() float64
}

// Config holds the dependencies and tuning knobs for a [Coordinator].
type Config struct {
	// Vision classifies video frames. May be nil; frames are then dropped.
	Vision vision.Classifier

	// Voice analyzes speech characteristics. May be nil; the periodic speech
	// sample is then skipped.
	Voice voice.Analyzer

	// Storage receives live-event writes and the disconnect handoff.
	Storage Storage

	// RecordingDir is where session WAV files are written.
	RecordingDir string

	// SampleRate of inbound PCM audio. Defaults to 16000.
	SampleRate int

	// FrameDivisor forwards only every Nth video frame to the classifier.
	// Defaults to 5.
	FrameDivisor int

	// SpeechAnalysisEvery runs speech analysis on every Nth audio chunk.
	// Defaults to 5.
	SpeechAnalysisEvery int

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// NewCoordinator creates a Coordinator with the given dependencies.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.FrameDivisor <= 0 {
		cfg.FrameDivisor = defaultFrameDivisor
	}
	if cfg.SpeechAnalysisEvery <= 0 {
		cfg.SpeechAnalysisEvery = defaultSpeechAnalysisEvery
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		sessions:            make(map[int64]*state),
		vision:              cfg.Vision,
		voice:               cfg.Voice,
		storage:             cfg.Storage,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger,
		recordingDir:        cfg.RecordingDir,
		sampleRate:          cfg.SampleRate,
		frameDivisor:        cfg.FrameDivisor,
		speechAnalysisEvery: cfg.SpeechAnalysisEvery,
		now:                 func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// Open creates a fresh session state for the interview and starts audio
// capture. A capture failure is logged but does not prevent the session from
// opening; the session simply records no audio.
//
// Returns an error when a session for this interview is already active.
func (c *Coordinator) Open(ctx context.Context, interviewID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sessions[interviewID]; exists {
		return fmt.Errorf("session: interview %d already has an active session", interviewID)
	}

	rec := audio.NewRecorder(c.recordingDir, interviewID, c.sampleRate)
	if err := rec.Start(); err != nil {
		c.logger.Error("audio capture failed to start, session continues without audio",
			"interview_id", interviewID, "err", err)
	}

	c.sessions[interviewID] = &state{
		recorder: rec,
		timeline: &Timeline{},
	}
	c.metrics.ActiveSessions.Add(ctx, 1)

	c.logger.Info("session opened",
		"interview_id", interviewID,
		"recording", rec.Started(),
		"path", rec.Path(),
	)
	return nil
}

// Active reports whether the interview has an open session.
func (c *Coordinator) Active(interviewID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[interviewID]
	return ok
}

// HandleEvent dispatches one inbound envelope for the interview's session
// and returns the reply envelope to send back, if any. Per-event failures
// (bad base64, classifier errors, storage write errors) are logged and the
// event dropped; they never terminate the session. Unknown event types are
// logged and ignored.
//
// Events for one interview must be delivered sequentially; the per-session
// state is not internally locked.
func (c *Coordinator) HandleEvent(ctx context.Context, interviewID int64, env Envelope) (*Envelope, error) {
	c.mu.RLock()
	st, ok := c.sessions[interviewID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session: no active session for interview %d", interviewID)
	}

	switch env.Type {
	case TypeVideoFrame:
		return c.handleVideoFrame(ctx, interviewID, st, env)
	case TypeAudioChunk:
		c.handleAudioChunk(ctx, interviewID, st, env)
		return nil, nil
	case TypeSaveTranscript:
		c.handleSaveTranscript(ctx, interviewID, env)
		return nil, nil
	case TypeSaveEmotion:
		c.handleSaveEmotion(ctx, interviewID, env)
		return nil, nil
	case TypeGetAnalysis:
		reply, err := NewEnvelope(TypeAnalysisUpdate, AnalysisUpdatePayload{
			Stability:   st.timeline.Stability(),
			SampleCount: st.timeline.SampleCount(),
			Status:      string(store.StatusRecording),
		})
		if err != nil {
			return nil, err
		}
		return &reply, nil
	case TypePing:
		var p PingPayload
		if err := env.Decode(&p); err != nil {
			c.dropEvent(ctx, interviewID, env.Type, "decode", err)
			return nil, nil
		}
		reply, err := NewEnvelope(TypePong, p)
		if err != nil {
			return nil, err
		}
		return &reply, nil
	default:
		c.logger.Warn("unknown live event type, ignoring",
			"interview_id", interviewID, "type", env.Type)
		c.metrics.RecordDroppedEvent(ctx, "unknown_type")
		return nil, nil
	}
}

// handleVideoFrame rate-limits frames by the divisor, classifies the kept
// ones, and pushes an emotion update on a positive face detection.
func (c *Coordinator) handleVideoFrame(ctx context.Context, interviewID int64, st *state, env Envelope) (*Envelope, error) {
	st.frameCount++
	if st.frameCount%c.frameDivisor != 0 {
		c.metrics.RecordVideoFrame(ctx, "skipped")
		return nil, nil
	}
	if c.vision == nil {
		c.metrics.RecordVideoFrame(ctx, "skipped")
		return nil, nil
	}

	var p FramePayload
	if err := env.Decode(&p); err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "decode", err)
		c.metrics.RecordVideoFrame(ctx, "error")
		return nil, nil
	}
	img, err := base64.StdEncoding.DecodeString(p.Image)
	if err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "base64", err)
		c.metrics.RecordVideoFrame(ctx, "error")
		return nil, nil
	}

	reading, err := c.vision.ClassifyFrame(ctx, img)
	if err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "classify", err)
		c.metrics.RecordVideoFrame(ctx, "error")
		return nil, nil
	}
	if !reading.FaceDetected {
		c.metrics.RecordVideoFrame(ctx, "no_face")
		return nil, nil
	}

	st.timeline.AddFacial(c.now(), reading.Dominant, reading.Confidence, reading.Scores)
	c.metrics.RecordVideoFrame(ctx, "analyzed")

	reply, err := NewEnvelope(TypeEmotionUpdate, EmotionUpdatePayload{
		Emotion:     reading.Dominant,
		Confidence:  reading.Confidence,
		Stability:   st.timeline.Stability(),
		AllEmotions: reading.Scores,
	})
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// handleAudioChunk writes the decoded samples through the capture resource
// immediately and runs speech analysis on every Nth chunk.
func (c *Coordinator) handleAudioChunk(ctx context.Context, interviewID int64, st *state, env Envelope) {
	var p ChunkPayload
	if err := env.Decode(&p); err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "decode", err)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(p.Audio)
	if err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "base64", err)
		return
	}

	samples := audio.DecodePCM16(raw)
	if err := st.recorder.WriteChunk(samples); err != nil {
		// The chunk is lost but the session carries on.
		c.logger.Error("audio chunk write failed",
			"interview_id", interviewID, "err", err)
	}

	st.chunkCount++
	c.metrics.AudioChunks.Add(ctx, 1)

	if st.chunkCount%c.speechAnalysisEvery != 0 || c.voice == nil {
		return
	}
	// Too-short or silent chunks are skipped silently by the analyzer.
	sample, ok := c.voice.Analyze(samples)
	if !ok {
		return
	}
	st.timeline.AddSpeech(c.now(), sample.Emotion, sample.Confidence)
}

func (c *Coordinator) handleSaveTranscript(ctx context.Context, interviewID int64, env Envelope) {
	var p TranscriptPayload
	if err := env.Decode(&p); err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "decode", err)
		return
	}
	err := c.storage.SaveTranscriptEntry(ctx, store.TranscriptEntry{
		InterviewID:     interviewID,
		Speaker:         p.Speaker,
		Text:            p.Text,
		Timestamp:       p.Timestamp,
		Confidence:      p.Confidence,
		EmotionDetected: p.EmotionDetected,
		SentimentScore:  p.SentimentScore,
	})
	if err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "persist", err)
	}
}

func (c *Coordinator) handleSaveEmotion(ctx context.Context, interviewID int64, env Envelope) {
	var p EmotionPayload
	if err := env.Decode(&p); err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "decode", err)
		return
	}
	err := c.storage.SaveEmotionLog(ctx, store.EmotionLog{
		InterviewID:      interviewID,
		Timestamp:        p.Timestamp,
		FacialEmotion:    p.FacialEmotion,
		FacialConfidence: p.FacialConfidence,
		SpeechEmotion:    p.SpeechEmotion,
		SpeechConfidence: p.SpeechConfidence,
		Scores:           p.EmotionScores,
	})
	if err != nil {
		c.dropEvent(ctx, interviewID, env.Type, "persist", err)
	}
}

// dropEvent logs and counts one discarded live event.
func (c *Coordinator) dropEvent(ctx context.Context, interviewID int64, typ, reason string, err error) {
	c.logger.Warn("live event dropped",
		"interview_id", interviewID, "type", typ, "reason", reason, "err", err)
	c.metrics.RecordDroppedEvent(ctx, reason)
}

// Close tears down the interview's session: it stops the capture resource,
// hands the final audio path to storage, resets the interview to the
// ready-for-processing state, and flushes the quality-gated emotion timeline.
// Persistence failures during teardown are logged and swallowed.
func (c *Coordinator) Close(ctx context.Context, interviewID int64) error {
	c.mu.Lock()
	st, ok := c.sessions[interviewID]
	if ok {
		delete(c.sessions, interviewID)
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: no active session for interview %d", interviewID)
	}
	c.metrics.ActiveSessions.Add(ctx, -1)

	path, err := st.recorder.Stop()
	if err != nil {
		c.logger.Error("failed to finalise recording",
			"interview_id", interviewID, "err", err)
	}
	if path != "" {
		if err := c.storage.SetAudioPath(ctx, interviewID, path); err != nil {
			c.logger.Error("failed to persist audio path",
				"interview_id", interviewID, "path", path, "err", err)
		}
		// Mark ready for batch processing.
		if err := c.storage.SetStatus(ctx, interviewID, store.StatusRecording); err != nil {
			c.logger.Error("failed to reset processing status",
				"interview_id", interviewID, "err", err)
		}
	}

	flushed := 0
	for _, s := range st.timeline.Flush() {
		err := c.storage.SaveEmotionLog(ctx, store.EmotionLog{
			InterviewID:      interviewID,
			Timestamp:        s.Timestamp,
			FacialEmotion:    s.FacialEmotion,
			FacialConfidence: s.FacialConfidence,
			SpeechEmotion:    s.SpeechEmotion,
			SpeechConfidence: s.SpeechConfidence,
			Scores:           s.Scores,
		})
		if err != nil {
			c.logger.Error("failed to flush emotion sample",
				"interview_id", interviewID, "err", err)
			continue
		}
		flushed++
	}

	c.logger.Info("session closed",
		"interview_id", interviewID,
		"audio_path", path,
		"emotions_flushed", flushed,
		"samples_total", st.timeline.SampleCount(),
	)
	return nil
}
