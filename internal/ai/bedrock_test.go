package ai

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type stubConverseAPI struct {
	lastInput *bedrockruntime.ConverseInput
	output    *bedrockruntime.ConverseOutput
	err       error
}

func (s *stubConverseAPI) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.lastInput = params
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

func converseTextOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: text},
				},
			},
		},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(15),
		},
	}
}

func TestBedrockCompleteExtractsText(t *testing.T) {
	api := &stubConverseAPI{output: converseTextOutput("  hello  ")}
	c := NewBedrockLLMClient(api)

	resp, err := c.Complete(context.Background(), LLMRequest{
		Model:    "anthropic.claude-3-haiku",
		System:   []string{"be terse"},
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("expected trimmed text, got %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected usage 15, got %d", resp.Usage.TotalTokens)
	}
	if len(api.lastInput.System) != 1 {
		t.Errorf("expected 1 system block, got %d", len(api.lastInput.System))
	}
}

func TestBedrockCompleteRequiresModel(t *testing.T) {
	c := NewBedrockLLMClient(&stubConverseAPI{})

	_, err := c.Complete(context.Background(), LLMRequest{})
	if err == nil {
		t.Fatal("expected error for missing model id")
	}
}

func TestBedrockCompleteRejectsUnknownRole(t *testing.T) {
	c := NewBedrockLLMClient(&stubConverseAPI{output: converseTextOutput("x")})

	_, err := c.Complete(context.Background(), LLMRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error for unsupported role")
	}
}
