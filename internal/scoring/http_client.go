package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 64 << 10

// HTTPScorerConfig configures one scoring endpoint. Path defaults to /v1/score.
type HTTPScorerConfig struct {
	BaseURL    string
	Path       string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

// HTTPScorer posts stories to a scoring endpoint. It makes exactly one
// request per call; attempts and deadlines belong to the caller's context.
type HTTPScorer struct {
	baseURL string
	path    string
	model   string
	apiKey  string
	client  *http.Client
}

// NewHTTPScorer validates cfg and returns a scorer for its endpoint.
func NewHTTPScorer(cfg HTTPScorerConfig) (*HTTPScorer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scorer base url required")
	}
	path := cfg.Path
	if path == "" {
		path = "/v1/score"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPScorer{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		path:    path,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		client:  client,
	}, nil
}

func (c *HTTPScorer) Score(ctx context.Context, story string) (string, error) {
	payload := map[string]interface{}{
		"prompt": Prompt(story),
		"story":  story,
	}
	if c.model != "" {
		payload["model"] = c.model
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("scorer marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("scorer build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scorer request: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (string, error) {
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("scorer unavailable: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scorer rejected request: %s", resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("scorer read response: %w", err)
	}
	// Generation-style backends wrap the model output in {"text": "..."}.
	var wrapped struct {
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Text != "" {
		return wrapped.Text, nil
	}
	return string(raw), nil
}
