// Package remote provides a vision.Classifier backed by an HTTP inference
// server.
//
// The server is expected to expose POST /classify accepting a JSON body
// {"image": "<base64>"} and returning
// {"emotion": "...", "confidence": 0.87, "scores": {...}, "face_detected": true}.
// This matches the contract of common face-analysis sidecars (DeepFace, FER
// wrappers) deployed next to the interview server.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/talentlens/talentlens/pkg/provider/vision"
)

const defaultTimeout = 10 * time.Second

// Compile-time assertion that Client implements vision.Classifier.
var _ vision.Classifier = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client implements vision.Classifier against a remote HTTP classifier.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the classifier server at baseURL
// (e.g., "http://localhost:9090"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("vision remote: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type classifyRequest struct {
	Image string `json:"image"`
}

type classifyResponse struct {
	Emotion      string             `json:"emotion"`
	Confidence   float64            `json:"confidence"`
	Scores       map[string]float64 `json:"scores"`
	FaceDetected bool               `json:"face_detected"`
}

// ClassifyFrame implements vision.Classifier.
func (c *Client) ClassifyFrame(ctx context.Context, image []byte) (vision.Reading, error) {
	body, err := json.Marshal(classifyRequest{
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return vision.Reading{}, fmt.Errorf("vision remote: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return vision.Reading{}, fmt.Errorf("vision remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return vision.Reading{}, fmt.Errorf("vision remote: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vision.Reading{}, fmt.Errorf("vision remote: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return vision.Reading{}, fmt.Errorf("vision remote: read response body: %w", err)
	}

	var payload classifyResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return vision.Reading{}, fmt.Errorf("vision remote: parse JSON response: %w", err)
	}

	return vision.Reading{
		Dominant:     payload.Emotion,
		Confidence:   payload.Confidence,
		Scores:       payload.Scores,
		FaceDetected: payload.FaceDetected,
	}, nil
}
