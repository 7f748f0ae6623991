// Package whisper provides an asr.Transcriber backed by a running
// whisper-server binary (whisper.cpp), which exposes a REST API at
// POST /inference.
//
// The recorded WAV file is uploaded as multipart/form-data with
// response_format=verbose_json so the server returns per-segment timings and
// average log probabilities, from which segment confidences are derived.
//
// Usage:
//
//	c, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	)
//	result, err := c.TranscribeFile(ctx, "/recordings/interview_7_20260829_101500.wav")
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/talentlens/talentlens/pkg/provider/asr"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 5 * time.Minute
)

// Compile-time assertion that Client implements asr.Transcriber.
var _ asr.Transcriber = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the whisper-server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with; this is the default.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper-server
// (e.g., "en", "de", "id"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Batch transcription of long
// recordings can take minutes; defaults to 5 minutes.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client implements asr.Transcriber against a whisper-server HTTP endpoint.
// A single Client may serve concurrent transcription requests.
type Client struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Client that connects to the whisper-server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// inferenceResponse mirrors the verbose_json payload of whisper-server.
type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		AvgLogProb float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// TranscribeFile implements asr.Transcriber. It uploads the WAV file at path
// to the /inference endpoint and converts the verbose JSON response into an
// asr.Result.
func (c *Client) TranscribeFile(ctx context.Context, path string) (asr.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: open %q: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: copy wav data: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
	}
	if c.language != "" {
		fields["language"] = c.language
	}
	if c.model != "" {
		fields["model"] = c.model
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return asr.Result{}, fmt.Errorf("whisper: write field %q: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", &body)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return asr.Result{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var payload inferenceResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	result := asr.Result{
		Text:     strings.TrimSpace(payload.Text),
		Language: payload.Language,
	}
	if result.Language == "" {
		result.Language = c.language
	}

	var confSum float64
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		conf := asr.SegmentConfidence(seg.AvgLogProb)
		confSum += conf
		result.Segments = append(result.Segments, asr.Segment{
			Text:       text,
			Start:      seg.Start,
			End:        seg.End,
			AvgLogProb: seg.AvgLogProb,
			Confidence: conf,
		})
	}
	if len(result.Segments) > 0 {
		result.Confidence = confSum / float64(len(result.Segments))
	}

	return result, nil
}
