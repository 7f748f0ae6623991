package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/talentlens/talentlens/internal/analysis"
	"github.com/talentlens/talentlens/internal/batch"
	"github.com/talentlens/talentlens/internal/session"
	"github.com/talentlens/talentlens/internal/store"
	"github.com/talentlens/talentlens/pkg/provider/asr"
	asrmock "github.com/talentlens/talentlens/pkg/provider/asr/mock"
	embedmock "github.com/talentlens/talentlens/pkg/provider/embed/mock"
	visionmock "github.com/talentlens/talentlens/pkg/provider/vision/mock"
	voicemock "github.com/talentlens/talentlens/pkg/provider/voice/mock"
)

// newTestServer wires a full server against the in-memory store and mock
// providers, served over httptest.
func newTestServer(t *testing.T) (*httptest.Server, *store.MemStore) {
	t.Helper()
	mem := store.NewMemStore()

	coordinator := session.NewCoordinator(session.Config{
		Vision:       &visionmock.Classifier{},
		Voice:        &voicemock.Analyzer{},
		Storage:      mem,
		RecordingDir: t.TempDir(),
	})
	engine := batch.NewEngine(batch.Config{
		Store: mem,
		Transcriber: &asrmock.Transcriber{Result: asr.Result{
			Text:       "I led the team through the replatforming and we shipped on schedule.",
			Confidence: 0.9,
			Segments: []asr.Segment{
				{Text: "I led the team through the replatforming and we shipped on schedule.", Start: 0, End: 5, Confidence: 0.9},
			},
		}},
		Scorer:   analysis.NewScorer(nil, nil),
		Embedder: &embedmock.Provider{Vector: []float32{1, 0}},
	})

	srv := New(Config{
		Store:       mem,
		Coordinator: coordinator,
		Engine:      engine,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mem
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
}

func TestServer_InterviewLifecycle(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/interviews", map[string]string{
		"candidate_name": "Dana",
		"position":       "Backend Engineer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Status != "recording" {
		t.Errorf("new interview status = %q, want recording", created.Status)
	}

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/interviews/%d", ts.URL, created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, body %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/interviews/%d/indicators", ts.URL, created.ID), map[string]any{
		"name":        "Leadership",
		"description": "Takes ownership",
		"weight":      2.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add indicator status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/interviews/%d/indicators", ts.URL, created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list indicators status = %d", resp.StatusCode)
	}
	var indicators []map[string]any
	if err := json.Unmarshal(body, &indicators); err != nil {
		t.Fatalf("decode indicators: %v", err)
	}
	if len(indicators) != 1 {
		t.Errorf("got %d indicators, want 1", len(indicators))
	}

	// Missing candidate name and malformed IDs are client errors.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/interviews", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty create status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/interviews/abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/interviews/9999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_ProcessingFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts, mem := newTestServer(t)

	iv, _ := mem.CreateInterview(ctx, "Dana", "Backend Engineer")
	audioPath := filepath.Join(t.TempDir(), "interview.wav")
	if err := os.WriteFile(audioPath, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := mem.SetAudioPath(ctx, iv.ID, audioPath); err != nil {
		t.Fatalf("SetAudioPath: %v", err)
	}
	if _, err := mem.AddIndicator(ctx, store.Indicator{InterviewID: iv.ID, Name: "Leadership", Weight: 1}); err != nil {
		t.Fatalf("AddIndicator: %v", err)
	}

	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/interviews/%d/process", ts.URL, iv.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process status = %d, body %s", resp.StatusCode, body)
	}
	var result batch.Result
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.AssessmentCount != 1 || result.OverallScore <= 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/interviews/%d/score", ts.URL, iv.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("score status = %d, body %s", resp.StatusCode, body)
	}
	var score struct {
		OverallAI  float64 `json:"overall_ai"`
		FinalScore float64 `json:"final_score"`
	}
	if err := json.Unmarshal(body, &score); err != nil {
		t.Fatalf("decode score: %v", err)
	}
	if score.FinalScore != score.OverallAI {
		t.Errorf("final %f != AI %f before manual scoring", score.FinalScore, score.OverallAI)
	}

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/interviews/%d/assessments", ts.URL, iv.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assessments status = %d", resp.StatusCode)
	}
	var assessments []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &assessments); err != nil {
		t.Fatalf("decode assessments: %v", err)
	}
	if len(assessments) != 1 {
		t.Fatalf("got %d assessments, want 1", len(assessments))
	}

	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/interviews/%d/manual-scores", ts.URL, iv.ID), map[string]any{
		"scores": map[string]float64{fmt.Sprint(assessments[0].ID): 90},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("manual scores status = %d, body %s", resp.StatusCode, body)
	}
	var updated struct {
		OverallManual *float64 `json:"overall_manual"`
	}
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("decode updated score: %v", err)
	}
	if updated.OverallManual == nil || *updated.OverallManual != 90 {
		t.Errorf("overall manual = %v, want 90", updated.OverallManual)
	}

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/interviews/%d/recommendation", ts.URL, iv.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recommendation status = %d, body %s", resp.StatusCode, body)
	}
	var rec struct {
		Decision string `json:"decision"`
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		t.Fatalf("decode recommendation: %v", err)
	}
	if rec.Decision == "" {
		t.Error("recommendation has no decision")
	}
}

// slowTranscriber blocks until released so a test can disconnect the client
// while the run is in flight.
type slowTranscriber struct {
	started chan struct{}
	release chan struct{}
	result  asr.Result
}

func (s *slowTranscriber) TranscribeFile(ctx context.Context, path string) (asr.Result, error) {
	close(s.started)
	<-s.release
	if err := ctx.Err(); err != nil {
		return asr.Result{}, err
	}
	return s.result, nil
}

func TestServer_ProcessSurvivesClientDisconnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := store.NewMemStore()
	tr := &slowTranscriber{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result: asr.Result{
			Text:       "I led the team through the replatforming.",
			Confidence: 0.9,
			Segments: []asr.Segment{
				{Text: "I led the team through the replatforming.", Start: 0, End: 4, Confidence: 0.9},
			},
		},
	}
	coordinator := session.NewCoordinator(session.Config{
		Vision:       &visionmock.Classifier{},
		Voice:        &voicemock.Analyzer{},
		Storage:      mem,
		RecordingDir: t.TempDir(),
	})
	engine := batch.NewEngine(batch.Config{
		Store:       mem,
		Transcriber: tr,
		Scorer:      analysis.NewScorer(nil, nil),
	})
	srv := New(Config{Store: mem, Coordinator: coordinator, Engine: engine})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	iv, _ := mem.CreateInterview(ctx, "Dana", "Backend Engineer")
	audioPath := filepath.Join(t.TempDir(), "interview.wav")
	if err := os.WriteFile(audioPath, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := mem.SetAudioPath(ctx, iv.ID, audioPath); err != nil {
		t.Fatalf("SetAudioPath: %v", err)
	}
	if _, err := mem.AddIndicator(ctx, store.Indicator{InterviewID: iv.ID, Name: "Leadership", Weight: 1}); err != nil {
		t.Fatalf("AddIndicator: %v", err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		fmt.Sprintf("%s/interviews/%d/process", ts.URL, iv.ID), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	errCh := make(chan error, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
		errCh <- err
	}()

	<-tr.started
	cancel()
	<-errCh
	// Give the server a moment to notice the dropped connection before the
	// transcriber is allowed to finish.
	time.Sleep(50 * time.Millisecond)
	close(tr.release)

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := mem.GetInterview(ctx, iv.ID)
		if err != nil {
			t.Fatalf("GetInterview: %v", err)
		}
		if got.Status == store.StatusCompleted {
			break
		}
		if got.Status == store.StatusFailed {
			t.Fatal("run failed after the client disconnected")
		}
		if time.Now().After(deadline) {
			t.Fatalf("run did not complete, status %q", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_ProcessConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts, mem := newTestServer(t)

	iv, _ := mem.CreateInterview(ctx, "Dana", "Backend Engineer")
	if err := mem.SetStatus(ctx, iv.ID, store.StatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/interviews/%d/process", ts.URL, iv.ID), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestServer_ScoringWeights(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/settings/scoring-weights", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get weights status = %d", resp.StatusCode)
	}
	var weights analysis.Weights
	if err := json.Unmarshal(body, &weights); err != nil {
		t.Fatalf("decode weights: %v", err)
	}
	if weights != analysis.DefaultWeights {
		t.Errorf("default weights = %+v", weights)
	}

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/settings/scoring-weights", map[string]int{
		"ai_weight": 70, "manual_weight": 30,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put weights status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/settings/scoring-weights", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get weights status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &weights); err != nil {
		t.Fatalf("decode weights: %v", err)
	}
	if weights.AI != 70 || weights.Manual != 30 {
		t.Errorf("weights after update = %+v", weights)
	}

	// A pair not summing to 100 is rejected before persistence.
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/settings/scoring-weights", map[string]int{
		"ai_weight": 80, "manual_weight": 30,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid weights status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_SearchSegments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts, mem := newTestServer(t)

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

	base := fmt.Sprintf("%s/interviews/%d/segments/search", ts.URL, iv.ID)
	resp, body := doJSON(t, http.MethodGet, base+"?q=leadership", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, body %s", resp.StatusCode, body)
	}
	var matches []struct {
		Text     string  `json:"text"`
		Distance float64 `json:"distance"`
	}
	if err := json.Unmarshal(body, &matches); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(matches) != 2 || matches[0].Text != "I led the team" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if matches[0].Distance >= matches[1].Distance {
		t.Errorf("matches not ordered by ascending distance: %+v", matches)
	}

	resp, _ = doJSON(t, http.MethodGet, base+"?q=leadership&top_k=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("top_k search status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, base+"?q=x&top_k=0", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad top_k status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_LiveSession(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts, mem := newTestServer(t)

	iv, _ := mem.CreateInterview(ctx, "Dana", "Backend Engineer")
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + fmt.Sprintf("/ws/interview/%d", iv.ID)

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	transcript, err := session.NewEnvelope(session.TypeSaveTranscript, session.TranscriptPayload{
		Speaker: "candidate",
		Text:    "I led the migration",
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := wsjson.Write(ctx, conn, transcript); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	// A ping after the transcript acts as a barrier: events on one socket are
	// handled in order, so the pong confirms the transcript was persisted.
	ping, err := session.NewEnvelope(session.TypePing, session.PingPayload{Timestamp: 42})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := wsjson.Write(ctx, conn, ping); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	var reply session.Envelope
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if reply.Type != session.TypePong {
		t.Fatalf("reply type = %q, want pong", reply.Type)
	}

	entries, _ := mem.ListTranscriptEntries(ctx, iv.ID)
	if len(entries) != 1 || entries[0].Text != "I led the migration" {
		t.Errorf("unexpected transcript entries: %+v", entries)
	}
}

func TestServer_LiveSessionUnknownInterview(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/ws/interview/9999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
