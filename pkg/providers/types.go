package providers

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Option keys understood by every provider.
const (
	OptTemperature = "temperature"
	OptMaxTokens   = "max_tokens"
	// OptFile carries an *Attachment sent alongside the messages.
	OptFile = "file"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Attachment is a file forwarded to the model, base64-encoded.
type Attachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type LLMResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        *UsageInfo `json:"usage,omitempty"`
}

type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}

func floatOption(options map[string]interface{}, key string) (float64, bool) {
	switch v := options[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intOption(options map[string]interface{}, key string) (int, bool) {
	switch v := options[key].(type) {
	case int:
		return v, v > 0
	case int64:
		return int(v), v > 0
	case float64:
		return int(v), v > 0
	}
	return 0, false
}

func fileOption(options map[string]interface{}) *Attachment {
	switch v := options[OptFile].(type) {
	case *Attachment:
		return v
	case Attachment:
		return &v
	}
	return nil
}
