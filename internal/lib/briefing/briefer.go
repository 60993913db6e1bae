package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const maxTips = 5

// briefer implements the Briefer interface using OpenAI
type briefer struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

// NewBriefer creates a Briefer backed by the OpenAI chat completions API
func NewBriefer(apiKey, model string) Briefer {
	if apiKey == "" {
		return &briefer{model: model, now: time.Now}
	}
	return NewBrieferWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewBrieferWithConfig creates a Briefer with a custom client config, e.g. a different base URL
func NewBrieferWithConfig(config openai.ClientConfig, model string) Briefer {
	return &briefer{
		client: openai.NewClientWithConfig(config),
		model:  model,
		now:    time.Now,
	}
}

// Brief asks the model for a structured briefing of the route
func (b *briefer) Brief(ctx context.Context, summary RouteSummary) (Briefing, error) {
	if b.client == nil {
		return Briefing{}, errors.New("OpenAI client not initialized - missing API key")
	}

	input, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return Briefing{}, fmt.Errorf("failed to marshal route summary: %w", err)
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Explain this walking route assessment:\n\n" + string(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type:       openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &BriefingSchema,
		},
		Temperature: 0.3,
		MaxTokens:   600,
	})
	if err != nil {
		return Briefing{}, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Briefing{}, errors.New("no response from OpenAI API")
	}

	var out Briefing
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return Briefing{}, fmt.Errorf("failed to parse OpenAI JSON response: %w", err)
	}

	if strings.TrimSpace(out.Headline) == "" {
		out.Headline = fallbackHeadline(summary)
	}
	if len(out.Tips) > maxTips {
		out.Tips = out.Tips[:maxTips]
	}
	out.GeneratedAt = b.now()

	return out, nil
}

// HealthCheck verifies OpenAI API connectivity
func (b *briefer) HealthCheck(ctx context.Context) error {
	if b.client == nil {
		return errors.New("OpenAI client not initialized")
	}

	_, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Test",
			},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("OpenAI API health check failed: %w", err)
	}
	return nil
}

func fallbackHeadline(s RouteSummary) string {
	return fmt.Sprintf("%s risk route, safety score %d/100", strings.ToLower(string(s.RiskLevel)), s.OverallScore)
}
