package providers

import (
	"fmt"
	"strings"

	"github.com/vortexlabs/loginchat/pkg/config"
	"github.com/vortexlabs/loginchat/pkg/logger"
)

// CreateProvider builds the configured provider, wrapped in a
// FallbackProvider when fallbacks are configured. Fallbacks without an API
// key are skipped.
func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	primary, err := newProvider(cfg, cfg.Chat.Provider, cfg.Chat.Model)
	if err != nil {
		return nil, err
	}
	if len(cfg.Chat.FallbackProviders) == 0 {
		return primary, nil
	}

	var fallbacks []FallbackEntry
	for _, fc := range cfg.Chat.FallbackProviders {
		p, err := newProvider(cfg, fc.Provider, fc.Model)
		if err != nil {
			logger.WarnCF("provider", "Skipping fallback provider", map[string]interface{}{
				"provider": fc.Provider,
				"error":    err.Error(),
			})
			continue
		}
		fallbacks = append(fallbacks, FallbackEntry{Name: fc.Provider, Provider: p, Model: fc.Model})
	}
	return NewFallbackProvider(primary, cfg.Chat.Model, fallbacks), nil
}

func newProvider(cfg *config.Config, name, model string) (LLMProvider, error) {
	apiKey, apiBase := cfg.ProviderEndpoint(name)
	if apiBase == "" {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", name)
	}

	switch strings.ToLower(name) {
	case "anthropic":
		return NewAnthropicProvider(apiKey, apiBase, model), nil
	default:
		return NewOpenAIProvider(apiKey, apiBase, model), nil
	}
}
