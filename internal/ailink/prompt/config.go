package prompt

// Config describes a prompt definition loaded from YAML frontmatter.
type Config struct {
	Slug           string         `yaml:"slug" json:"slug"`
	Name           string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Version        string         `yaml:"version,omitempty" json:"version,omitempty"`
	Updated        string         `yaml:"updated,omitempty" json:"updated,omitempty"`
	SystemTemplate string         `yaml:"system_template,omitempty" json:"system_template,omitempty"`
	AcceptsImages  bool           `yaml:"accepts_images,omitempty" json:"accepts_images,omitempty"`
	ResponseOpts   map[string]any `yaml:"response_options,omitempty" json:"response_options,omitempty"`
	ProviderHints  map[string]any `yaml:"provider_hints,omitempty" json:"provider_hints,omitempty"`
}

// Prompt wraps a parsed prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}

// PreferredModels returns the provider_hints.preferred_models list, if set.
func (p Prompt) PreferredModels() []string {
	raw, ok := p.Config.ProviderHints["preferred_models"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	models := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			models = append(models, s)
		}
	}
	return models
}
