package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
// DeepSeek, OpenRouter and Groq all go through it.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, apiBase, model string, opts ...option.RequestOption) *OpenAIProvider {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if apiBase != "" {
		base = append(base, option.WithBaseURL(apiBase))
	}
	return &OpenAIProvider{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if model == "" {
		model = p.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if t, ok := floatOption(options, OptTemperature); ok {
		params.Temperature = openai.Float(t)
	}
	if n, ok := intOption(options, OptMaxTokens); ok {
		params.MaxTokens = openai.Int(int64(n))
	}

	var reqOpts []option.RequestOption
	if f := fileOption(options); f != nil {
		reqOpts = append(reqOpts, option.WithJSONSet("file", f))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return &LLMResponse{FinishReason: "empty"}, nil
	}

	choice := completion.Choices[0]
	return &LLMResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: &UsageInfo{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

func (p *OpenAIProvider) GetDefaultModel() string {
	return p.model
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
