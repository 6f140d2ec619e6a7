package backend

import (
	"context"
	"fmt"
	"sort"

	"github.com/beigebox/beigebox/internal/config"
)

// Build constructs every configured backend and returns a Dispatcher over
// them in ascending priority order (lower Priority value tried first,
// matching the donor's provider-candidate ordering convention). Backend
// construction does not contact the network; it only validates config and
// builds clients.
func Build(ctx context.Context, cfgs []config.BackendConfig, retry config.RetryConfig) (*Dispatcher, error) {
	ordered := make([]config.BackendConfig, len(cfgs))
	copy(ordered, cfgs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	backends := make([]Backend, 0, len(ordered))
	for _, c := range ordered {
		b, err := buildOne(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", c.Name, err)
		}
		backends = append(backends, b)
	}

	policy := RetryPolicy{MaxRetries: retry.MaxRetries, BackoffBase: retry.BackoffBase, BackoffCapS: retry.BackoffCapS}
	if policy.BackoffBase == 0 {
		policy.BackoffBase = 1.5
	}
	if policy.BackoffCapS == 0 {
		policy.BackoffCapS = 10
	}
	return New(backends, policy), nil
}

func buildOne(ctx context.Context, c config.BackendConfig) (Backend, error) {
	switch c.Kind {
	case "ollama":
		return NewOpenAICompatible(c.Name, c.URL, c.APIKey, AuthNone, false)
	case "openai_compatible":
		return NewOpenAICompatible(c.Name, c.URL, c.APIKey, AuthOptionalBearer, false)
	case "openrouter":
		return NewOpenAICompatible(c.Name, c.URL, c.APIKey, AuthRequiredBearer, true)
	case "anthropic":
		return NewAnthropic(c.Name, c.APIKey, c.URL)
	case "gemini":
		return NewGemini(ctx, c.Name, c.APIKey)
	case "bedrock":
		return NewBedrock(ctx, c.Name, c.URL) // URL holds the AWS region for this kind
	default:
		return nil, fmt.Errorf("unknown backend kind %q", c.Kind)
	}
}
