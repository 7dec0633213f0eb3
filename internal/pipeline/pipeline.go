// Package pipeline drives transcript resolution: split into segments,
// classify each one (AI first, rules as fallback), validate against the
// intent schema and dispatch the actionable results to the CRM.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voiceops/crmbot/internal/analytics"
	"github.com/voiceops/crmbot/internal/crm"
	"github.com/voiceops/crmbot/internal/intent"
	"github.com/voiceops/crmbot/internal/observability/metrics"
)

var tracer = otel.Tracer("crmbot.internal.pipeline")

// AIClassifier is the model-backed classification path.
type AIClassifier interface {
	Classify(ctx context.Context, text string) (intent.Classification, error)
}

// Dispatcher forwards a validated classification to the CRM backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, cls intent.Classification) (*crm.DispatchOutcome, error)
}

// Cache is the optional classification cache consulted before the
// classifiers run.
type Cache interface {
	Get(ctx context.Context, segment string) (intent.Classification, bool)
	Put(ctx context.Context, segment string, cls intent.Classification)
}

// Config wires the orchestrator's collaborators. AI, Cache, Metrics and
// Analytics are optional.
type Config struct {
	AI          AIClassifier
	AIThreshold float64
	Dispatcher  Dispatcher
	Cache       Cache
	Metrics     *metrics.PipelineMetrics
	Analytics   *analytics.Sink
	Deadline    time.Duration
	Logger      *slog.Logger
}

// Orchestrator resolves transcripts end to end. It is safe for
// concurrent use.
type Orchestrator struct {
	splitter    *intent.Splitter
	rules       *intent.RuleClassifier
	ai          AIClassifier
	aiThreshold float64
	dispatcher  Dispatcher
	cache       Cache
	metrics     *metrics.PipelineMetrics
	analytics   *analytics.Sink
	deadline    time.Duration
	logger      *slog.Logger
}

func NewOrchestrator(cfg Config) *Orchestrator {
	threshold := cfg.AIThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		splitter:    intent.NewSplitter(),
		rules:       intent.NewRuleClassifier(),
		ai:          cfg.AI,
		aiThreshold: threshold,
		dispatcher:  cfg.Dispatcher,
		cache:       cfg.Cache,
		metrics:     cfg.Metrics,
		analytics:   cfg.Analytics,
		deadline:    deadline,
		logger:      logger,
	}
}

// Request is one transcript to resolve.
type Request struct {
	ID         string
	Transcript string
	Metadata   map[string]string
}

// SegmentResult is the resolution of a single segment, in source order.
type SegmentResult struct {
	Segment        string                `json:"segment"`
	Classification intent.Classification `json:"classification"`
	Validation     intent.Validation     `json:"validation"`
	Dispatch       *crm.DispatchOutcome  `json:"crm_call,omitempty"`
}

// Response aggregates the per-segment results for a transcript.
type Response struct {
	RequestID        string          `json:"request_id"`
	MultipleRequests bool            `json:"multiple_requests_detected"`
	AIEnhanced       bool            `json:"ai_enhanced"`
	Confidence       float64         `json:"confidence"`
	Success          bool            `json:"success"`
	Results          []SegmentResult `json:"results"`
	ElapsedMS        int64           `json:"response_time_ms"`
}

// Handle resolves one transcript. It never fails; degraded paths show
// up in the per-segment results instead.
func (o *Orchestrator) Handle(ctx context.Context, req Request) *Response {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	ctx, span := tracer.Start(ctx, "pipeline.handle")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.request_id", req.ID))

	segments := o.splitter.Split(req.Transcript)
	results := make([]SegmentResult, len(segments))

	var wg sync.WaitGroup
	for i, segment := range segments {
		wg.Add(1)
		go func(i int, segment string) {
			defer wg.Done()
			results[i] = o.resolveSegment(ctx, segment)
		}(i, segment)
	}
	wg.Wait()

	resp := o.aggregate(req, segments, results)
	resp.ElapsedMS = time.Since(start).Milliseconds()

	status := "ok"
	if !resp.Success {
		status = "error"
	}
	o.metrics.ObserveRequest(status, time.Since(start).Seconds())
	o.emitAnalytics(req, resp)

	span.SetAttributes(
		attribute.Int("pipeline.segments", len(segments)),
		attribute.Bool("pipeline.success", resp.Success),
	)
	return resp
}

func (o *Orchestrator) resolveSegment(ctx context.Context, segment string) SegmentResult {
	cls := o.classify(ctx, segment)
	result := SegmentResult{Segment: segment, Classification: cls}

	if cls.Intent == intent.Unknown {
		result.Validation = intent.Validation{State: intent.ValidationSkipped}
		o.metrics.ObserveSegment(string(cls.Intent), string(cls.Source), string(result.Validation.State))
		return result
	}

	validation, err := intent.Validate(cls.Intent, cls.Entities)
	if err != nil {
		// Unreachable for known intents; treat like an unresolvable segment.
		result.Validation = intent.Validation{State: intent.ValidationSkipped}
		o.metrics.ObserveSegment(string(cls.Intent), string(cls.Source), string(result.Validation.State))
		return result
	}
	result.Validation = validation
	o.metrics.ObserveSegment(string(cls.Intent), string(cls.Source), string(validation.State))

	if !validation.OK() || o.dispatcher == nil {
		return result
	}

	dispatchStart := time.Now()
	outcome, err := o.dispatcher.Dispatch(ctx, cls)
	elapsed := time.Since(dispatchStart).Seconds()
	if outcome != nil {
		result.Dispatch = outcome
	}
	if err != nil {
		o.logger.Warn("dispatch failed",
			"intent", cls.Intent,
			"error", err.Error(),
		)
		o.metrics.ObserveDispatch(string(cls.Intent), "error", elapsed)
		return result
	}
	o.metrics.ObserveDispatch(string(cls.Intent), strconv.Itoa(outcome.StatusCode), elapsed)
	return result
}

// classify picks the best classification for a segment: cache first,
// then AI when it is confident enough, then rules.
func (o *Orchestrator) classify(ctx context.Context, segment string) intent.Classification {
	if cached, ok := o.cacheGet(ctx, segment); ok {
		return cached
	}

	if o.ai != nil {
		cls, err := o.ai.Classify(ctx, segment)
		if err == nil && cls.Confidence >= o.aiThreshold {
			o.cachePut(ctx, segment, cls)
			return cls
		}
		if err != nil {
			o.logger.Warn("ai classification unavailable, using rules",
				"error", err.Error(),
			)
		} else {
			o.logger.Info("ai classification below threshold, using rules",
				"confidence", cls.Confidence,
				"threshold", o.aiThreshold,
			)
		}
	}

	cls := o.rules.Classify(segment)
	o.cachePut(ctx, segment, cls)
	return cls
}

func (o *Orchestrator) cacheGet(ctx context.Context, segment string) (intent.Classification, bool) {
	if o.cache == nil {
		return intent.Classification{}, false
	}
	return o.cache.Get(ctx, segment)
}

func (o *Orchestrator) cachePut(ctx context.Context, segment string, cls intent.Classification) {
	if o.cache == nil {
		return
	}
	o.cache.Put(ctx, segment, cls)
}

func (o *Orchestrator) aggregate(req Request, segments []string, results []SegmentResult) *Response {
	resp := &Response{
		RequestID:        req.ID,
		MultipleRequests: len(segments) > 1,
		Results:          results,
	}

	actionable := 0
	dispatchedOK := 0
	minOK := 1.0
	maxAny := 0.0
	for _, r := range results {
		if r.Classification.Source == intent.SourceAI {
			resp.AIEnhanced = true
		}
		if r.Classification.Confidence > maxAny {
			maxAny = r.Classification.Confidence
		}
		if r.Validation.OK() {
			actionable++
			if r.Classification.Confidence < minOK {
				minOK = r.Classification.Confidence
			}
			if r.Dispatch.OK() {
				dispatchedOK++
			}
		}
	}

	// Aggregate confidence is the weakest actionable segment; when
	// nothing was actionable, report the strongest signal seen.
	if actionable > 0 {
		resp.Confidence = minOK
	} else {
		resp.Confidence = maxAny
	}
	resp.Success = actionable > 0 && dispatchedOK == actionable
	return resp
}

func (o *Orchestrator) emitAnalytics(req Request, resp *Response) {
	if o.analytics == nil {
		return
	}

	rec := analytics.Record{
		RequestID:      req.ID,
		Transcript:     req.Transcript,
		Confidence:     resp.Confidence,
		Success:        resp.Success,
		ResponseTimeMS: resp.ElapsedMS,
		AIEnhanced:     resp.AIEnhanced,
		SegmentCount:   len(resp.Results),
	}
	if len(resp.Results) > 0 {
		first := resp.Results[0]
		rec.Intent = string(first.Classification.Intent)
		rec.Entities = first.Classification.Entities
		for _, r := range resp.Results {
			rec.Intents = append(rec.Intents, string(r.Classification.Intent))
		}
		rec.CRMCallResult = crmCallSummary(resp.Results)
	}
	o.analytics.Log(rec)
}

func crmCallSummary(results []SegmentResult) string {
	summary := ""
	for _, r := range results {
		if r.Dispatch == nil {
			continue
		}
		status := "error"
		if r.Dispatch.OK() {
			status = fmt.Sprintf("%d", r.Dispatch.StatusCode)
		}
		if summary != "" {
			summary += ","
		}
		summary += status
	}
	return summary
}
