package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"google.golang.org/api/googleapi"

	"github.com/voiceops/crmbot/internal/intent"
)

type llmFunc func(ctx context.Context, req LLMRequest) (LLMResponse, error)

func (f llmFunc) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	return f(ctx, req)
}

func textResponse(text string) llmFunc {
	return func(ctx context.Context, req LLMRequest) (LLMResponse, error) {
		return LLMResponse{Text: text}, nil
	}
}

func TestClassifyParsesModelResponse(t *testing.T) {
	c := NewClassifier(textResponse(`{"requests":[{"intent":"LEAD_CREATE","confidence":0.92,"entities":{"name":"John Smith","phone":"9876543210","city":"Delhi"},"reasoning":"explicit create request"}],"multiple_requests":false}`), ClassifierConfig{Model: "test-model"})

	cls, err := c.Classify(context.Background(), "Add a new lead John Smith from Delhi phone 9876543210")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Intent != intent.LeadCreate {
		t.Errorf("expected LEAD_CREATE, got %s", cls.Intent)
	}
	if cls.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", cls.Confidence)
	}
	if cls.Source != intent.SourceAI {
		t.Errorf("expected AI source, got %s", cls.Source)
	}
	if cls.Entities["name"] != "John Smith" {
		t.Errorf("expected name entity, got %v", cls.Entities)
	}
}

func TestClassifyStripsMarkdownFences(t *testing.T) {
	c := NewClassifier(textResponse("```json\n{\"requests\":[{\"intent\":\"LEAD_UPDATE\",\"confidence\":0.8,\"entities\":{\"lead_id\":\"abc-123\",\"status\":\"WON\"}}],\"multiple_requests\":false}\n```"), ClassifierConfig{})

	cls, err := c.Classify(context.Background(), "update lead abc-123 status to WON")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Intent != intent.LeadUpdate {
		t.Errorf("expected LEAD_UPDATE, got %s", cls.Intent)
	}
}

func TestClassifyMissingConfidenceIsMalformed(t *testing.T) {
	c := NewClassifier(textResponse(`{"requests":[{"intent":"LEAD_CREATE","entities":{}}],"multiple_requests":false}`), ClassifierConfig{})

	_, err := c.Classify(context.Background(), "add a new lead")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClassifyOutOfRangeConfidenceIsMalformed(t *testing.T) {
	c := NewClassifier(textResponse(`{"requests":[{"intent":"LEAD_CREATE","confidence":1.5,"entities":{}}],"multiple_requests":false}`), ClassifierConfig{})

	_, err := c.Classify(context.Background(), "add a new lead")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClassifyNonJSONIsMalformed(t *testing.T) {
	c := NewClassifier(textResponse("I could not understand that transcript."), ClassifierConfig{})

	_, err := c.Classify(context.Background(), "add a new lead")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClassifyUnrecognizedIntentIsMalformed(t *testing.T) {
	c := NewClassifier(textResponse(`{"requests":[{"intent":"ORDER_PIZZA","confidence":0.9,"entities":{}}],"multiple_requests":false}`), ClassifierConfig{})

	_, err := c.Classify(context.Background(), "order a pizza")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClassifyRetriesTransportErrors(t *testing.T) {
	calls := 0
	llm := llmFunc(func(ctx context.Context, req LLMRequest) (LLMResponse, error) {
		calls++
		if calls < 3 {
			return LLMResponse{}, errors.New("connection reset")
		}
		return LLMResponse{Text: `{"requests":[{"intent":"UNKNOWN","confidence":0.1,"entities":{}}],"multiple_requests":false}`}, nil
	})

	c := NewClassifier(llm, ClassifierConfig{MaxRetries: 2})

	cls, err := c.Classify(context.Background(), "hmm")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if cls.Intent != intent.Unknown {
		t.Errorf("expected UNKNOWN, got %s", cls.Intent)
	}
}

func TestClassifyExhaustedRetriesIsUnavailable(t *testing.T) {
	calls := 0
	llm := llmFunc(func(ctx context.Context, req LLMRequest) (LLMResponse, error) {
		calls++
		return LLMResponse{}, errors.New("boom")
	})

	c := NewClassifier(llm, ClassifierConfig{MaxRetries: 2})

	_, err := c.Classify(context.Background(), "add a new lead")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestClassifyAuthErrorIsNotRetried(t *testing.T) {
	calls := 0
	llm := llmFunc(func(ctx context.Context, req LLMRequest) (LLMResponse, error) {
		calls++
		return LLMResponse{}, &googleapi.Error{Code: 401, Message: "API key not valid"}
	})

	c := NewClassifier(llm, ClassifierConfig{MaxRetries: 2})

	_, err := c.Classify(context.Background(), "add a new lead")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestClassifyAccessDeniedIsNotRetried(t *testing.T) {
	calls := 0
	llm := llmFunc(func(ctx context.Context, req LLMRequest) (LLMResponse, error) {
		calls++
		return LLMResponse{}, &smithy.GenericAPIError{
			Code:    "AccessDeniedException",
			Message: "not authorized to invoke this model",
			Fault:   smithy.FaultClient,
		}
	})

	c := NewClassifier(llm, ClassifierConfig{MaxRetries: 2})

	_, err := c.Classify(context.Background(), "add a new lead")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestClassifyThrottlingIsRetried(t *testing.T) {
	calls := 0
	llm := llmFunc(func(ctx context.Context, req LLMRequest) (LLMResponse, error) {
		calls++
		if calls < 2 {
			return LLMResponse{}, &smithy.GenericAPIError{
				Code:  "ThrottlingException",
				Fault: smithy.FaultClient,
			}
		}
		return LLMResponse{Text: `{"requests":[{"intent":"UNKNOWN","confidence":0.1,"entities":{}}],"multiple_requests":false}`}, nil
	})

	c := NewClassifier(llm, ClassifierConfig{MaxRetries: 2})

	if _, err := c.Classify(context.Background(), "hmm"); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestClassifyMalformedResponseIsNotRetried(t *testing.T) {
	calls := 0
	llm := llmFunc(func(ctx context.Context, req LLMRequest) (LLMResponse, error) {
		calls++
		return LLMResponse{Text: "not json"}, nil
	})

	c := NewClassifier(llm, ClassifierConfig{MaxRetries: 3})

	_, err := c.Classify(context.Background(), "add a new lead")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestClassifyCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClassifier(llmFunc(func(ctx context.Context, req LLMRequest) (LLMResponse, error) {
		<-ctx.Done()
		return LLMResponse{}, ctx.Err()
	}), ClassifierConfig{Timeout: 50 * time.Millisecond})

	_, err := c.Classify(ctx, "add a new lead")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
