// Package client is a Go SDK for the PhyChat backend API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/group03/phychat-backend/internal/models"
)

// Response types shared with the server
type (
	Recommendation         = models.Recommendation
	TutorResponse          = models.TutorResponse
	Explanation            = models.Explanation
	Challenge              = models.Challenge
	ChatRequest            = models.ChatRequest
	Outcome                = models.Outcome
	ProgressUpdateResponse = models.ProgressUpdateResponse
	StudentProgress        = models.StudentProgressResponse
)

// APIError is an error reported by the server in the response envelope
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}

// IsCode reports whether err is an APIError with the given code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client is a Go SDK for the PhyChat backend API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithAPIKey sets the key sent as a Bearer token
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// NewClient creates a new PhyChat client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Chat sends a message to the tutor
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*TutorResponse, error) {
	var out TutorResponse
	if err := c.call(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recommend asks for the next challenge for a student
func (c *Client) Recommend(ctx context.Context, studentID string) (*Recommendation, error) {
	var out Recommendation
	req := models.RecommendationRequest{UserID: studentID}
	if err := c.call(ctx, http.MethodPost, "/api/recommend", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecommendFor is Recommend over the GET endpoint
func (c *Client) RecommendFor(ctx context.Context, studentID string) (*Recommendation, error) {
	var out Recommendation
	if err := c.call(ctx, http.MethodGet, "/api/recommend/"+url.PathEscape(studentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Explain asks which lines of code influenced a prediction
func (c *Client) Explain(ctx context.Context, code, prediction string) (*Explanation, error) {
	var out Explanation
	req := models.ExplainRequest{CodeSnippet: code, ModelPrediction: prediction}
	if err := c.call(ctx, http.MethodPost, "/api/xai/explain", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProgress reports a challenge attempt
func (c *Client) UpdateProgress(ctx context.Context, outcome Outcome) (*ProgressUpdateResponse, error) {
	var out ProgressUpdateResponse
	if err := c.call(ctx, http.MethodPost, "/api/progress/update", outcome, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress returns a student's recorded progress
func (c *Client) Progress(ctx context.Context, studentID string) (*StudentProgress, error) {
	var out StudentProgress
	path := fmt.Sprintf("/api/students/%s/progress", url.PathEscape(studentID))
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Challenges lists the challenge catalog
func (c *Client) Challenges(ctx context.Context) ([]Challenge, error) {
	var out struct {
		Challenges []Challenge `json:"challenges"`
		Total      int         `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/challenges", nil, &out); err != nil {
		return nil, err
	}
	return out.Challenges, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// call performs a request and decodes the envelope's data into out
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *APIError       `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		if status >= 400 {
			return fmt.Errorf("HTTP %d: %s", status, string(resp))
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		apiErr := result.Error
		if apiErr == nil {
			apiErr = &APIError{Code: "unknown", Message: http.StatusText(status)}
		}
		apiErr.StatusCode = status
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
