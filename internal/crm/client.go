// Package crm holds the dispatch client that turns validated
// classifications into CRM backend calls.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voiceops/crmbot/internal/intent"
)

var tracer = otel.Tracer("crmbot.internal.crm")

// ErrNotDispatchable reports a classification that has no CRM route.
var ErrNotDispatchable = errors.New("crm: classification is not dispatchable")

const defaultBaseURL = "http://localhost:8001"

// Config controls how the dispatch client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	BackoffCap time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client wraps the CRM backend endpoints. The HTTP client is shared and
// pooled; Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	backoffCap time.Duration
	logger     *slog.Logger
}

// New creates a configured Client with sane defaults.
func New(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	backoffCap := cfg.BackoffCap
	if backoffCap <= 0 {
		backoffCap = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		backoffCap: backoffCap,
		logger:     logger,
	}
}

// DispatchOutcome records what happened on the wire for one
// classification, including failed attempts.
type DispatchOutcome struct {
	Endpoint   string          `json:"endpoint"`
	Method     string          `json:"method"`
	StatusCode int             `json:"status_code,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Attempts   int             `json:"attempts"`
	Error      string          `json:"error,omitempty"`
}

// OK reports whether the dispatch reached the CRM successfully.
func (o *DispatchOutcome) OK() bool {
	return o != nil && o.Error == "" && o.StatusCode >= 200 && o.StatusCode < 300
}

// Dispatch routes a validated classification to the matching CRM
// endpoint. The returned outcome is non-nil whenever a route existed,
// so callers can report attempts and the final status even on failure.
func (c *Client) Dispatch(ctx context.Context, cls intent.Classification) (*DispatchOutcome, error) {
	path, payload, err := route(cls)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "crm.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("crm.intent", string(cls.Intent)),
		attribute.String("crm.endpoint", path),
	)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("crm: marshal payload: %w", err)
	}

	outcome := &DispatchOutcome{Endpoint: path, Method: http.MethodPost}
	err = c.invoke(ctx, path, body, outcome)
	if err != nil {
		outcome.Error = err.Error()
		span.SetAttributes(attribute.Int("crm.attempts", outcome.Attempts))
		return outcome, err
	}
	span.SetAttributes(
		attribute.Int("crm.attempts", outcome.Attempts),
		attribute.Int("crm.status", outcome.StatusCode),
	)
	return outcome, nil
}

func route(cls intent.Classification) (string, any, error) {
	ents := cls.Entities
	switch cls.Intent {
	case intent.LeadCreate:
		return "/crm/leads", struct {
			Name   string `json:"name"`
			Phone  string `json:"phone"`
			City   string `json:"city"`
			Source string `json:"source,omitempty"`
		}{ents["name"], ents["phone"], ents["city"], ents["source"]}, nil
	case intent.VisitSchedule:
		return "/crm/visits", struct {
			LeadID    string `json:"lead_id"`
			VisitTime string `json:"visit_time"`
			Notes     string `json:"notes,omitempty"`
		}{ents["lead_id"], ents["visit_time"], ents["notes"]}, nil
	case intent.LeadUpdate:
		path := "/crm/leads/" + url.PathEscape(ents["lead_id"]) + "/status"
		return path, struct {
			Status string `json:"status"`
			Notes  string `json:"notes,omitempty"`
		}{ents["status"], ents["notes"]}, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNotDispatchable, cls.Intent)
}

func (c *Client) invoke(ctx context.Context, path string, body []byte, outcome *DispatchOutcome) error {
	fullURL := c.baseURL + path
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("crm: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		outcome.Attempts++
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return fmt.Errorf("crm: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("crm: read response: %w", readErr)
		}
		outcome.StatusCode = resp.StatusCode
		outcome.Body = data
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		return apiErr
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("crm: request failed without response")
}

// sleep waits out the exponential backoff for attempt, capped and with
// jitter so concurrent dispatches don't synchronize.
func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("crm dispatch retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}

type apiError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func (e *apiError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("crm: %s (status=%d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("crm: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &apiError{StatusCode: status, Detail: strings.TrimSpace(string(body))}
	}
	parsed.StatusCode = status
	return &parsed
}
