package model

import "github.com/furisto/toolgate/backend/toolcall"

type Model struct {
	Name          string
	Provider      toolcall.ProviderKind
	ContextWindow int64
	MaxTokens     int64
}

func SupportedModels(provider toolcall.ProviderKind) []Model {
	switch provider {
	case toolcall.ProviderKindAnthropic:
		return []Model{
			{Name: "claude-sonnet-4-5", Provider: provider, ContextWindow: 200000, MaxTokens: 8192},
			{Name: "claude-haiku-4-5", Provider: provider, ContextWindow: 200000, MaxTokens: 8192},
		}
	case toolcall.ProviderKindOpenAI:
		return []Model{
			{Name: "gpt-4.1", Provider: provider, ContextWindow: 1047576, MaxTokens: 32768},
			{Name: "gpt-4.1-mini", Provider: provider, ContextWindow: 1047576, MaxTokens: 32768},
		}
	case toolcall.ProviderKindGemini:
		return []Model{
			{Name: "gemini-2.5-flash", Provider: provider, ContextWindow: 1048576, MaxTokens: 65536},
			{Name: "gemini-2.5-pro", Provider: provider, ContextWindow: 1048576, MaxTokens: 65536},
		}
	}

	return nil
}

// DefaultModel is the first supported model of a provider.
func DefaultModel(provider toolcall.ProviderKind) Model {
	models := SupportedModels(provider)
	if len(models) == 0 {
		return Model{Provider: provider}
	}
	return models[0]
}

func lookupModel(provider toolcall.ProviderKind, name string) (Model, bool) {
	for _, model := range SupportedModels(provider) {
		if model.Name == name {
			return model, true
		}
	}
	return Model{}, false
}

// maxTokensFor picks the explicit limit, then the catalog limit, then a
// conservative default for unknown models.
func maxTokensFor(cfg ClientConfig) int64 {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	if model, ok := lookupModel(cfg.Kind, cfg.Model); ok {
		return model.MaxTokens
	}
	return 4096
}
