package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/talentlens/talentlens/internal/analysis"
	"github.com/talentlens/talentlens/internal/store"
)

// interviewID parses the {id} path segment. A non-numeric or non-positive
// value reports false after writing the 400.
func (s *Server) interviewID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.badRequest(w, "interview id must be a positive integer")
		return 0, false
	}
	return id, true
}

type interviewResponse struct {
	ID                   int64      `json:"id"`
	CandidateName        string     `json:"candidate_name"`
	Position             string     `json:"position"`
	Status               string     `json:"status"`
	Transcript           string     `json:"transcript,omitempty"`
	TranscriptConfidence float64    `json:"transcript_confidence,omitempty"`
	AudioPath            string     `json:"audio_path,omitempty"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

func toInterviewResponse(iv store.Interview) interviewResponse {
	return interviewResponse{
		ID:                   iv.ID,
		CandidateName:        iv.CandidateName,
		Position:             iv.Position,
		Status:               string(iv.Status),
		Transcript:           iv.Transcript,
		TranscriptConfidence: iv.TranscriptConfidence,
		AudioPath:            iv.AudioPath,
		ProcessedAt:          iv.ProcessedAt,
		CreatedAt:            iv.CreatedAt,
	}
}

func (s *Server) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CandidateName string `json:"candidate_name"`
		Position      string `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if req.CandidateName == "" {
		s.badRequest(w, "candidate_name is required")
		return
	}

	iv, err := s.store.CreateInterview(r.Context(), req.CandidateName, req.Position)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toInterviewResponse(iv))
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	iv, err := s.store.GetInterview(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toInterviewResponse(iv))
}

type indicatorResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight"`
}

func (s *Server) handleAddIndicator(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Weight      float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		s.badRequest(w, "name is required")
		return
	}
	if req.Weight < 0 {
		s.badRequest(w, "weight must not be negative")
		return
	}

	ind, err := s.store.AddIndicator(r.Context(), store.Indicator{
		InterviewID: id,
		Name:        req.Name,
		Description: req.Description,
		Weight:      req.Weight,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, indicatorResponse{
		ID:          ind.ID,
		Name:        ind.Name,
		Description: ind.Description,
		Weight:      ind.Weight,
	})
}

func (s *Server) handleListIndicators(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	indicators, err := s.store.ListIndicators(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]indicatorResponse, 0, len(indicators))
	for _, ind := range indicators {
		out = append(out, indicatorResponse{
			ID:          ind.ID,
			Name:        ind.Name,
			Description: ind.Description,
			Weight:      ind.Weight,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type assessmentResponse struct {
	ID          int64    `json:"id"`
	IndicatorID int64    `json:"indicator_id"`
	AIScore     float64  `json:"ai_score"`
	ManualScore *float64 `json:"manual_score,omitempty"`
	Evidence    string   `json:"evidence"`
	Reasoning   string   `json:"reasoning"`
}

func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	assessments, err := s.store.ListAssessments(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]assessmentResponse, 0, len(assessments))
	for _, a := range assessments {
		out = append(out, assessmentResponse{
			ID:          a.ID,
			IndicatorID: a.IndicatorID,
			AIScore:     a.AIScore,
			ManualScore: a.ManualScore,
			Evidence:    a.Evidence,
			Reasoning:   a.Reasoning,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type scoreResponse struct {
	OverallAI        float64   `json:"overall_ai"`
	OverallManual    *float64  `json:"overall_manual,omitempty"`
	FinalScore       float64   `json:"final_score"`
	EmotionStability float64   `json:"emotion_stability"`
	SpeechClarity    float64   `json:"speech_clarity"`
	AnswerCoherence  float64   `json:"answer_coherence"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toScoreResponse(rec store.ScoreRecord) scoreResponse {
	return scoreResponse{
		OverallAI:        rec.OverallAI,
		OverallManual:    rec.OverallManual,
		FinalScore:       rec.FinalScore,
		EmotionStability: rec.EmotionStability,
		SpeechClarity:    rec.SpeechClarity,
		AnswerCoherence:  rec.AnswerCoherence,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetScoreRecord(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toScoreResponse(rec))
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	// The run must finish (or fail) on its own terms even when the caller
	// disconnects, so detach it from the request's cancellation.
	res, err := s.engine.Process(context.WithoutCancel(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleManualScores(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	var req struct {
		Scores map[int64]float64 `json:"scores"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if len(req.Scores) == 0 {
		s.badRequest(w, "scores must not be empty")
		return
	}

	rec, err := s.engine.ApplyManualScores(r.Context(), id, req.Scores)
	if err != nil {
		// Validation failures (wrong status, out-of-range score) are the
		// caller's to fix.
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, r, err)
			return
		}
		s.badRequest(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toScoreResponse(rec))
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	rec, err := s.engine.Recommendation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type segmentMatchResponse struct {
	Text      string  `json:"text"`
	StartSec  float64 `json:"start_sec"`
	EndSec    float64 `json:"end_sec"`
	Sentiment float64 `json:"sentiment"`
	Distance  float64 `json:"distance"`
}

func (s *Server) handleSearchSegments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.interviewID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.badRequest(w, "query parameter q is required")
		return
	}
	topK := 0
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.badRequest(w, "top_k must be a positive integer")
			return
		}
		topK = n
	}

	matches, err := s.engine.SearchEvidence(r.Context(), id, query, topK)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, r, err)
			return
		}
		s.badRequest(w, err.Error())
		return
	}
	out := make([]segmentMatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, segmentMatchResponse{
			Text:      m.Segment.Text,
			StartSec:  m.Segment.StartSec,
			EndSec:    m.Segment.EndSec,
			Sentiment: m.Segment.Sentiment,
			Distance:  m.Distance,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	weights, err := s.store.GetScoringWeights(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, weights)
}

func (s *Server) handlePutWeights(w http.ResponseWriter, r *http.Request) {
	var weights analysis.Weights
	if err := json.NewDecoder(r.Body).Decode(&weights); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if err := weights.Validate(); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.store.SetScoringWeights(r.Context(), weights); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, weights)
}
