package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"paranote/backend/config"
)

// Gateway walks an ordered provider list, falling back to the next provider
// on any provider-level failure. The provider list is read-only
// configuration shared by all concurrent jobs; per-provider rate limiters
// are the only mutable state and guard their own counters.
type Gateway struct {
	providers []Provider
	limiters  map[string]*rateLimiter
	log       *logrus.Logger
}

// NewGateway builds a gateway from an explicit ordered provider list.
// Providers start unlimited; see Limit.
func NewGateway(providers []Provider, log *logrus.Logger) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, errors.New("no llm providers configured")
	}
	return &Gateway{
		providers: providers,
		limiters:  map[string]*rateLimiter{},
		log:       log,
	}, nil
}

// Limit installs a request budget for the named provider. Calls beyond the
// budget skip the provider and fall through to the next one.
func (g *Gateway) Limit(provider string, limit RateLimit) {
	g.limiters[provider] = newRateLimiter(limit)
}

// NewGatewayFromConfig assembles the configured providers in priority
// order, skipping any whose credentials are absent.
func NewGatewayFromConfig(cfg *config.Config, log *logrus.Logger) (*Gateway, error) {
	var providers []Provider
	limits := map[string]RateLimit{}
	for _, name := range cfg.LLMProviders {
		switch name {
		case "openai":
			if cfg.OpenAIKey != "" {
				providers = append(providers, NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel))
				limits[name] = RateLimit{PerMinute: cfg.OpenAIRPM, PerDay: cfg.OpenAIRPD}
			}
		case "anthropic":
			if cfg.AnthropicKey != "" {
				providers = append(providers, NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel))
				limits[name] = RateLimit{PerMinute: cfg.AnthropicRPM, PerDay: cfg.AnthropicRPD}
			}
		case "gemini":
			if cfg.GoogleKey != "" {
				providers = append(providers, NewGemini(cfg.GoogleKey, cfg.GeminiModel))
				limits[name] = RateLimit{PerMinute: cfg.GeminiRPM, PerDay: cfg.GeminiRPD}
			}
		default:
			return nil, fmt.Errorf("unknown llm provider %q", name)
		}
	}
	gateway, err := NewGateway(providers, log)
	if err != nil {
		return nil, err
	}
	for name, limit := range limits {
		gateway.Limit(name, limit)
	}
	return gateway, nil
}

// Generate calls providers in order until one succeeds. Provider failures
// (auth errors, rate limits, timeouts, malformed replies) are logged and
// absorbed while alternatives remain; only full exhaustion surfaces.
func (g *Gateway) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for _, provider := range g.providers {
		if !g.limiters[provider.Name()].allow() {
			lastErr = fmt.Errorf("%w: %s", ErrRateLimited, provider.Name())
			g.log.WithField("provider", provider.Name()).
				Warn("LLM provider over budget, trying next")
			continue
		}
		resp, err := provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		g.log.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"error":    err.Error(),
		}).Warn("LLM provider failed, trying next")

		// A cancelled caller should not burn through the remaining providers.
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersExhausted, lastErr)
}
