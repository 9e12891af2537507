package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/converse-ai/converse/internal/logging"
	"github.com/converse-ai/converse/pkg/types"
)

// Client talks to the JSON endpoints: session persistence, title
// generation and summarization. It performs exactly one network attempt
// per call; retry policy belongs to the persistence synchronizer.
type Client struct {
	rc *resty.Client
}

// NewClient creates a client for the given backend.
func NewClient(baseURL, apiKey string) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		rc.SetAuthToken(apiKey)
	}
	return &Client{rc: rc}
}

// SaveChatSession creates or overwrites a persisted session. The endpoint
// upserts by id, so repeated calls with the same transcript are idempotent.
func (c *Client) SaveChatSession(ctx context.Context, req *types.SaveSessionRequest) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		Post("/api/sessions")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if resp.IsError() {
		return &HTTPError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return nil
}

// LoadChatSession fetches a persisted session by id. A 404 maps to
// ErrNotFound so the caller can distinguish "never existed" from outage.
func (c *Client) LoadChatSession(ctx context.Context, id string) (*types.PersistedSession, error) {
	var envelope types.SessionEnvelope
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&envelope).
		Get("/api/sessions/" + id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, &HTTPError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	if envelope.Session == nil {
		return nil, ErrNotFound
	}
	return envelope.Session, nil
}

// DeleteChatSession removes a session and any dependent derived summary.
func (c *Client) DeleteChatSession(ctx context.Context, id string) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		Delete("/api/sessions/" + id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil // Already gone
	}
	if resp.IsError() {
		return &HTTPError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return nil
}

// GenerateTitle asks the title endpoint for a session title. Any non-2xx
// response is treated as "no title produced", never as a fatal error.
func (c *Client) GenerateTitle(ctx context.Context, req *types.TitleRequest) (string, error) {
	req.PreserveExistingOnFailure = true

	var result types.TitleResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/api/sessions/title")
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	if resp.IsError() {
		log := logging.Component("api")
		log.Debug().
			Int("status", resp.StatusCode()).
			Msg("title endpoint returned no title")
		return "", nil
	}
	return strings.TrimSpace(result.Title), nil
}

// Summarize asks the summarization endpoint for derived preferences.
func (c *Client) Summarize(ctx context.Context, req *types.SummarizeRequest) (*types.SummarizeResponse, error) {
	var result types.SummarizeResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/api/sessions/summarize")
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	if resp.IsError() {
		return nil, &HTTPError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return &result, nil
}
