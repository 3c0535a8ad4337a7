package ailink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lensgate/lensgate/internal/ailink/driver"
	"github.com/lensgate/lensgate/internal/ailink/driver/openai"
	"github.com/lensgate/lensgate/internal/ailink/prompt"
	"github.com/lensgate/lensgate/internal/dispatch"
)

// Upstream adapts a provider driver and a prompt definition to the
// dispatcher's invoker contract. One Upstream is built at startup and shared
// by all request workers; it holds no mutable state.
type Upstream struct {
	driver  driver.Driver
	prompt  *prompt.Prompt
	model   string
	timeout time.Duration
}

// NewUpstream resolves the configured provider instance into a ready invoker.
//
// The model is chosen from the prompt's preferred_models list when one of
// them is offered by the provider instance, otherwise the instance's first
// declared model is used.
func NewUpstream(cfg Config, p *prompt.Prompt) (*Upstream, error) {
	if p == nil {
		return nil, fmt.Errorf("prompt is required")
	}

	name := cfg.DefaultProvider
	inst, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider instance %q is not declared", name)
	}
	if !inst.Enabled {
		return nil, fmt.Errorf("provider instance %q is disabled", name)
	}

	drv, err := buildDriver(inst)
	if err != nil {
		return nil, err
	}

	model := resolveModel(p, inst.Models)
	if model == "" {
		return nil, fmt.Errorf("provider instance %q declares no models", name)
	}

	return &Upstream{
		driver:  drv,
		prompt:  p,
		model:   model,
		timeout: cfg.DefaultTimeout,
	}, nil
}

func buildDriver(inst ProviderInstanceConfig) (driver.Driver, error) {
	switch strings.ToLower(strings.TrimSpace(inst.AIProvider)) {
	case "openai":
		client := openai.NewClient(inst.BaseURL)
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported ai_provider %q", inst.AIProvider)
	}
}

// resolveModel picks the first preferred model offered by the instance, then
// falls back to the instance's first declared model.
func resolveModel(p *prompt.Prompt, offered []string) string {
	for _, preferred := range p.PreferredModels() {
		for _, model := range offered {
			if strings.EqualFold(preferred, model) {
				return model
			}
		}
	}
	if len(offered) > 0 {
		return offered[0]
	}
	return ""
}

// Model returns the resolved model identifier.
func (u *Upstream) Model() string { return u.model }

// Provider returns the driver name.
func (u *Upstream) Provider() string { return u.driver.Name() }

// Invoke implements dispatch.Invoker. Each call carries the secret selected
// by the credential ring; quota errors surface as driver.ProviderError and
// are classified by the dispatcher.
func (u *Upstream) Invoke(ctx context.Context, secret string, req *dispatch.Request) (*dispatch.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	resp, err := u.driver.Analyze(ctx, secret, &driver.Request{
		Model:        u.model,
		SystemPrompt: u.prompt.Config.SystemTemplate,
		Description:  req.Description,
		ImageB64:     req.ImageB64,
	})
	if err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = u.model
	}

	return &dispatch.Result{
		Source:   u.driver.Name(),
		Model:    model,
		Analysis: resp.Content,
	}, nil
}
