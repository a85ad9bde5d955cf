package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 2048

type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, apiBase, model string, opts ...option.RequestOption) *AnthropicProvider {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if apiBase != "" {
		base = append(base, option.WithBaseURL(apiBase))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  model,
	}
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if model == "" {
		model = p.model
	}

	maxTokens := defaultAnthropicMaxTokens
	if n, ok := intOption(options, OptMaxTokens); ok {
		maxTokens = n
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if t, ok := floatOption(options, OptTemperature); ok {
		params.Temperature = anthropic.Float(t)
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	// The Messages API has no free-form file field; the attachment rides
	// along as a text block on the last user turn.
	if f := fileOption(options); f != nil && len(params.Messages) > 0 {
		last := &params.Messages[len(params.Messages)-1]
		last.Content = append(last.Content, anthropic.NewTextBlock(
			fmt.Sprintf("Attached file %s (base64):\n%s", f.Name, f.Content)))
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &LLMResponse{
		Content:      sb.String(),
		FinishReason: string(msg.StopReason),
		Usage: &UsageInfo{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func (p *AnthropicProvider) GetDefaultModel() string {
	return p.model
}
