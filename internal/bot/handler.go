// Package bot holds the ingress for transcript handling.
package bot

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/voiceops/crmbot/internal/analytics"
	"github.com/voiceops/crmbot/internal/pipeline"
	"github.com/voiceops/crmbot/pkg/logging"
)

// HandleRequest is the body of POST /bot/handle.
type HandleRequest struct {
	Transcript string            `json:"transcript"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// errorResponse is the body returned for rejected input.
type errorResponse struct {
	Type    string `json:"type"`
	Details string `json:"details"`
}

// Handler handles HTTP requests for transcript resolution.
type Handler struct {
	orchestrator  *pipeline.Orchestrator
	analytics     *analytics.Sink
	maxTranscript int
	logger        *logging.Logger
}

// NewHandler creates a new bot handler.
func NewHandler(orchestrator *pipeline.Orchestrator, sink *analytics.Sink, maxTranscript int, logger *logging.Logger) *Handler {
	if maxTranscript <= 0 {
		maxTranscript = 1000
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		orchestrator:  orchestrator,
		analytics:     sink,
		maxTranscript: maxTranscript,
		logger:        logger,
	}
}

// Handle handles POST /bot/handle requests.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req HandleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		h.rejectInput(w, requestID, req.Transcript, "invalid request body")
		return
	}

	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		h.rejectInput(w, requestID, req.Transcript, "transcript is empty")
		return
	}
	if utf8.RuneCountInString(req.Transcript) > h.maxTranscript {
		h.rejectInput(w, requestID, req.Transcript,
			fmt.Sprintf("transcript exceeds %d characters", h.maxTranscript))
		return
	}

	resp := h.orchestrator.Handle(r.Context(), pipeline.Request{
		ID:         requestID,
		Transcript: transcript,
		Metadata:   req.Metadata,
	})

	h.logger.Info("transcript handled",
		"request_id", requestID,
		"segments", len(resp.Results),
		"success", resp.Success,
		"ai_enhanced", resp.AIEnhanced,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// rejectInput answers a 400 and records the rejection in analytics so
// malformed traffic still shows up in interaction logs.
func (h *Handler) rejectInput(w http.ResponseWriter, requestID, transcript, details string) {
	h.analytics.Log(analytics.Record{
		RequestID:    requestID,
		Transcript:   transcript,
		Intent:       "VALIDATION_ERROR",
		Success:      false,
		ErrorMessage: details,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(errorResponse{
		Type:    "VALIDATION_ERROR",
		Details: details,
	})
}
