package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"google.golang.org/api/googleapi"

	"github.com/voiceops/crmbot/internal/intent"
)

var (
	// ErrUnavailable reports that no usable AI classification could be
	// obtained in time. Callers fall back to rule-based classification.
	ErrUnavailable = errors.New("ai: classifier unavailable")

	// ErrMalformedResponse reports that the model answered but the answer
	// did not honor the output contract.
	ErrMalformedResponse = errors.New("ai: malformed classifier response")
)

const classifierSystemPrompt = `You are an intent classifier for a CRM voice bot. Analyze the transcript and extract structured CRM actions.

Supported intents:
- LEAD_CREATE: create a new lead. Entities: name, phone, city, source.
- VISIT_SCHEDULE: schedule a visit for an existing lead. Entities: lead_id, visit_time, notes.
- LEAD_UPDATE: update a lead's status. Entities: lead_id, status, notes.
- UNKNOWN: the transcript matches none of the above.

Valid status values: NEW, IN_PROGRESS, FOLLOW_UP, WON, LOST.
Known sources: instagram, facebook, linkedin, website, google, ads.

Respond with ONLY a JSON object, no prose:
{"requests": [{"intent": "...", "confidence": 0.0, "entities": {...}, "reasoning": "..."}], "multiple_requests": false}

Rules:
- confidence is a number between 0 and 1 and is required for every request.
- entities contains only values present in the transcript; never invent values.
- phone numbers are digits only.
- status must be one of the valid values, uppercased.
- If the transcript contains several independent actions, emit one request per action in transcript order and set multiple_requests to true.`

// ClassifierConfig carries the tunables for the AI classification path.
type ClassifierConfig struct {
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// Classifier turns free-text segments into classifications by prompting
// an LLM and parsing its structured reply. All failures collapse into
// ErrUnavailable or ErrMalformedResponse so the caller's fallback
// decision stays simple.
type Classifier struct {
	llm        LLMClient
	model      string
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

func NewClassifier(llm LLMClient, cfg ClassifierConfig) *Classifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Classifier{
		llm:        llm,
		model:      cfg.Model,
		timeout:    timeout,
		maxRetries: retries,
		logger:     logger,
	}
}

type modelRequest struct {
	Intent     string            `json:"intent"`
	Confidence *float64          `json:"confidence"`
	Entities   map[string]string `json:"entities"`
	Reasoning  string            `json:"reasoning"`
}

type modelEnvelope struct {
	Requests         []modelRequest `json:"requests"`
	MultipleRequests bool           `json:"multiple_requests"`
}

// Classify asks the model to classify a single transcript segment.
// Transient transport failures are retried up to MaxRetries times;
// contract violations and permanent provider errors are not retried.
func (c *Classifier) Classify(ctx context.Context, text string) (intent.Classification, error) {
	req := LLMRequest{
		Model:  c.model,
		System: []string{classifierSystemPrompt},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: text},
		},
		MaxTokens:   512,
		Temperature: 0,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.llm.Complete(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			c.logger.Warn("ai classification attempt failed",
				"attempt", attempt+1,
				"error", err.Error(),
			)
			if !shouldRetry(err) {
				break
			}
			continue
		}

		cls, err := c.parse(resp.Text)
		if err != nil {
			return intent.Classification{}, err
		}
		return cls, nil
	}

	if lastErr != nil {
		return intent.Classification{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return intent.Classification{}, ErrUnavailable
}

// shouldRetry reports whether a failed Complete call is worth another
// attempt. Throttling, server faults, and transport errors are
// transient; auth and request validation failures are permanent and
// fail the attempt loop immediately.
func shouldRetry(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailableException", "ModelTimeoutException", "InternalServerException":
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}

	return true
}

func (c *Classifier) parse(text string) (intent.Classification, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return intent.Classification{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var envelope modelEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return intent.Classification{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(envelope.Requests) == 0 {
		return intent.Classification{}, fmt.Errorf("%w: empty requests", ErrMalformedResponse)
	}

	// Segments arrive pre-split, so only the first request is relevant.
	first := envelope.Requests[0]

	in, err := parseIntent(first.Intent)
	if err != nil {
		return intent.Classification{}, err
	}
	if first.Confidence == nil {
		return intent.Classification{}, fmt.Errorf("%w: confidence is missing", ErrMalformedResponse)
	}
	confidence := *first.Confidence
	if confidence < 0 || confidence > 1 {
		return intent.Classification{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, confidence)
	}

	ents := intent.Entities{}
	for k, v := range first.Entities {
		if strings.TrimSpace(v) != "" {
			ents[k] = strings.TrimSpace(v)
		}
	}

	return intent.Classification{
		Intent:     in,
		Entities:   ents,
		Confidence: confidence,
		Source:     intent.SourceAI,
	}, nil
}

func parseIntent(s string) (intent.Intent, error) {
	switch intent.Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case intent.LeadCreate:
		return intent.LeadCreate, nil
	case intent.VisitSchedule:
		return intent.VisitSchedule, nil
	case intent.LeadUpdate:
		return intent.LeadUpdate, nil
	case intent.Unknown:
		return intent.Unknown, nil
	}
	return "", fmt.Errorf("%w: unrecognized intent %q", ErrMalformedResponse, s)
}

// extractJSON pulls the outermost JSON object out of model text, which
// some providers wrap in markdown fences or prose.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
