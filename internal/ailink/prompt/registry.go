package prompt

import (
	"fmt"
	"strings"
)

// Registry maps prompt slugs to loaded prompts.
type Registry map[string]*Prompt

// NewRegistry indexes prompts by slug, rejecting duplicates.
func NewRegistry(prompts []*Prompt) (Registry, error) {
	reg := make(Registry, len(prompts))
	for _, p := range prompts {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		if slug == "" {
			return nil, fmt.Errorf("prompt %s missing slug", p.Source)
		}
		if _, exists := reg[slug]; exists {
			return nil, fmt.Errorf("duplicate prompt slug %q (%s)", slug, p.Source)
		}
		reg[slug] = p
	}
	return reg, nil
}

// Get returns the prompt for a slug.
func (r Registry) Get(slug string) (*Prompt, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry not initialized")
	}
	p, ok := r[strings.TrimSpace(slug)]
	if !ok {
		return nil, fmt.Errorf("unknown prompt %q", slug)
	}
	return p, nil
}

// Merge overlays override prompts onto the registry, replacing same-slug
// entries from the defaults.
func (r Registry) Merge(overrides []*Prompt) Registry {
	merged := make(Registry, len(r)+len(overrides))
	for slug, p := range r {
		merged[slug] = p
	}
	for _, p := range overrides {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		if slug == "" {
			continue
		}
		merged[slug] = p
	}
	return merged
}
