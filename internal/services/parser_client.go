package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hearthware/homeboard/internal/models"
)

// ParserSnapshot is one observation of a remote parse job
type ParserSnapshot struct {
	Done   bool
	Failed bool
	Error  string
	Recipe *models.ParsedRecipe
	Meta   *models.ParseMeta
}

// ParserClient talks to the external text-to-structured-recipe service. Only
// its job status contract matters here; the parsing itself is opaque.
type ParserClient interface {
	// Submit sends raw recipe text and returns the remote job identifier
	Submit(ctx context.Context, rawText string) (string, error)
	// Fetch reads the current snapshot of a remote job. Safe to call
	// repeatedly; it never resubmits work.
	Fetch(ctx context.Context, remoteID string) (*ParserSnapshot, error)
}

// HTTPParserClient is the resty-backed parser client
type HTTPParserClient struct {
	client *resty.Client
}

// NewHTTPParserClient builds a client for the parser service API
func NewHTTPParserClient(baseURL, apiKey string, timeout time.Duration) *HTTPParserClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &HTTPParserClient{client: client}
}

type parserSubmitResponse struct {
	JobID string `json:"job_id"`
}

type parserJobResponse struct {
	JobID  string               `json:"job_id"`
	Status string               `json:"status"` // queued | processing | completed | failed
	Error  *string              `json:"error,omitempty"`
	Recipe *models.ParsedRecipe `json:"recipe,omitempty"`
	Meta   *models.ParseMeta    `json:"meta,omitempty"`
}

// Submit sends raw text for parsing
func (c *HTTPParserClient) Submit(ctx context.Context, rawText string) (string, error) {
	var out parserSubmitResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": rawText}).
		SetResult(&out).
		Post("/v1/parse")
	if err != nil {
		return "", fmt.Errorf("submit parse job: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted && resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("submit parse job: parser returned %s", resp.Status())
	}
	if out.JobID == "" {
		return "", fmt.Errorf("submit parse job: parser returned no job id")
	}
	return out.JobID, nil
}

// Fetch reads the remote job status
func (c *HTTPParserClient) Fetch(ctx context.Context, remoteID string) (*ParserSnapshot, error) {
	var out parserJobResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/parse/" + remoteID)
	if err != nil {
		return nil, fmt.Errorf("fetch parse job: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("parse job %s: %w", remoteID, ErrNotFound)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch parse job: parser returned %s", resp.Status())
	}

	snap := &ParserSnapshot{Recipe: out.Recipe, Meta: out.Meta}
	switch out.Status {
	case "completed":
		snap.Done = true
	case "failed":
		snap.Done = true
		snap.Failed = true
		if out.Error != nil {
			snap.Error = *out.Error
		} else {
			snap.Error = "parser reported failure"
		}
	}
	return snap, nil
}
