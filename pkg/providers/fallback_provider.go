package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/vortexlabs/loginchat/pkg/logger"
)

// FallbackEntry is one link of the chain. An empty Model means the model
// the caller asked for.
type FallbackEntry struct {
	Name     string
	Provider LLMProvider
	Model    string
}

// FallbackProvider asks the primary provider and, when it errors, each
// fallback in order. The first reply wins.
type FallbackProvider struct {
	chain []FallbackEntry
	model string
}

func NewFallbackProvider(primary LLMProvider, model string, fallbacks []FallbackEntry) *FallbackProvider {
	chain := make([]FallbackEntry, 0, len(fallbacks)+1)
	chain = append(chain, FallbackEntry{Name: "primary", Provider: primary, Model: model})
	chain = append(chain, fallbacks...)
	return &FallbackProvider{chain: chain, model: model}
}

// Fallbacks returns the entries tried after the primary.
func (p *FallbackProvider) Fallbacks() []FallbackEntry {
	return p.chain[1:]
}

func (p *FallbackProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if model == "" {
		model = p.model
	}

	var errs []error
	for i, entry := range p.chain {
		if i > 0 && ctx.Err() != nil {
			break
		}
		m := entry.Model
		if m == "" || i == 0 {
			m = model
		}

		resp, err := entry.Provider.Chat(ctx, messages, m, options)
		if err == nil {
			if i > 0 {
				logger.InfoCF("provider", "Fallback answered", map[string]interface{}{
					"provider": entry.label(i),
					"model":    m,
				})
			}
			return resp, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", entry.label(i), err))
		if len(p.chain) > 1 {
			logger.WarnCF("provider", "Provider failed", map[string]interface{}{
				"provider": entry.label(i),
				"model":    m,
				"error":    err.Error(),
			})
		}
	}

	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	if len(errs) == 1 {
		return nil, errors.Unwrap(errs[0])
	}
	return nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

func (p *FallbackProvider) GetDefaultModel() string {
	return p.model
}

func (e FallbackEntry) label(i int) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("fallback #%d", i)
}
