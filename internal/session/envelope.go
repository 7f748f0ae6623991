// Package session implements the live interview multiplexer: per-interview
// state during recording, routing of inbound real-time events to audio
// capture and emotion aggregation, and live analysis snapshots.
package session

import (
	"encoding/json"
	"fmt"
)

// Live channel event types. Inbound types are sent by the client; outbound
// types are pushed or returned by the coordinator.
const (
	TypeVideoFrame     = "video_frame"
	TypeAudioChunk     = "audio_chunk"
	TypeSaveTranscript = "save_transcript"
	TypeSaveEmotion    = "save_emotion"
	TypeGetAnalysis    = "get_analysis"
	TypePing           = "ping"

	TypeEmotionUpdate  = "emotion_update"
	TypeAnalysisUpdate = "analysis_update"
	TypePong           = "pong"
)

// Envelope is the JSON wire format of every live-channel message. Data holds
// the type-specific payload and stays raw until the dispatcher knows which
// payload struct to decode it into.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload value into an Envelope of the given type.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("session: encode %s payload: %w", typ, err)
	}
	return Envelope{Type: typ, Data: data}, nil
}

// Decode unmarshals the envelope's payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("session: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// FramePayload carries one base64-encoded video frame.
type FramePayload struct {
	Image string `json:"image"`
}

// ChunkPayload carries one base64-encoded block of 16-bit PCM audio.
type ChunkPayload struct {
	Audio string `json:"audio"`
}

// TranscriptPayload is one live transcript line to persist.
type TranscriptPayload struct {
	Speaker         string  `json:"speaker"`
	Text            string  `json:"text"`
	Timestamp       float64 `json:"timestamp"`
	Confidence      float64 `json:"confidence"`
	EmotionDetected string  `json:"emotion_detected"`
	SentimentScore  float64 `json:"sentiment_score"`
}

// EmotionPayload is one client-side emotion sample to persist.
type EmotionPayload struct {
	Timestamp        float64            `json:"timestamp"`
	FacialEmotion    string             `json:"facial_emotion"`
	FacialConfidence float64            `json:"facial_confidence"`
	SpeechEmotion    string             `json:"speech_emotion"`
	SpeechConfidence float64            `json:"speech_confidence"`
	EmotionScores    map[string]float64 `json:"emotion_scores"`
}

// PingPayload carries the client timestamp echoed back in the pong reply.
type PingPayload struct {
	Timestamp float64 `json:"timestamp"`
}

// EmotionUpdatePayload is pushed after each accepted facial sample.
type EmotionUpdatePayload struct {
	Emotion     string             `json:"emotion"`
	Confidence  float64            `json:"confidence"`
	Stability   float64            `json:"stability"`
	AllEmotions map[string]float64 `json:"all_emotions"`
}

// AnalysisUpdatePayload is the live snapshot returned for get_analysis.
// Transcription is batch-only, so the snapshot carries no transcript.
type AnalysisUpdatePayload struct {
	Stability   float64 `json:"stability"`
	SampleCount int     `json:"sample_count"`
	Status      string  `json:"status"`
}
