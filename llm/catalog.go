package llm

// ModelInfo describes a known model.
type ModelInfo struct {
	ID                   string   `json:"id" yaml:"id"`
	Provider             string   `json:"provider" yaml:"provider"`
	DisplayName          string   `json:"display_name" yaml:"display_name"`
	ContextWindow        int      `json:"context_window" yaml:"context_window"`
	MaxOutput            int      `json:"max_output,omitempty" yaml:"max_output,omitempty"`
	SupportsTools        bool     `json:"supports_tools" yaml:"supports_tools"`
	SupportsStreaming    bool     `json:"supports_streaming" yaml:"supports_streaming"`
	InputCostPerMillion  float64  `json:"input_cost_per_million,omitempty" yaml:"input_cost_per_million,omitempty"`
	OutputCostPerMillion float64  `json:"output_cost_per_million,omitempty" yaml:"output_cost_per_million,omitempty"`
	Aliases              []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Models is the built-in catalog. Within a provider, entries are ordered
// best first.
var Models = []ModelInfo{
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, MaxOutput: 16384,
		SupportsTools: true, SupportsStreaming: true,
		InputCostPerMillion: 2.50, OutputCostPerMillion: 10.0,
		Aliases: []string{"4o"},
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o mini",
		ContextWindow: 128000, MaxOutput: 16384,
		SupportsTools: true, SupportsStreaming: true,
		InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60,
		Aliases: []string{"4o-mini"},
	},
	{
		ID: "gpt-4o", Provider: "azure", DisplayName: "Azure OpenAI GPT-4o",
		ContextWindow: 128000, MaxOutput: 16384,
		SupportsTools: true, SupportsStreaming: true,
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: 16384,
		SupportsTools: true, SupportsStreaming: true,
		InputCostPerMillion: 3.0, OutputCostPerMillion: 15.0,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-haiku-4-5", Provider: "anthropic", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, MaxOutput: 8192,
		SupportsTools: true, SupportsStreaming: true,
		InputCostPerMillion: 1.0, OutputCostPerMillion: 5.0,
		Aliases: []string{"haiku"},
	},
	{
		ID: "gemini-2.5-pro", Provider: "gemini", DisplayName: "Gemini 2.5 Pro",
		ContextWindow: 1048576, MaxOutput: 65536,
		SupportsTools: true, SupportsStreaming: true,
		InputCostPerMillion: 1.25, OutputCostPerMillion: 10.0,
		Aliases: []string{"gemini-pro"},
	},
	{
		ID: "llama3.1", Provider: "ollama", DisplayName: "Llama 3.1 (local)",
		ContextWindow: 128000,
		SupportsStreaming: true,
	},
	{
		ID: "mock-model", Provider: "mock", DisplayName: "Mock",
		ContextWindow: 8192,
		SupportsTools: true, SupportsStreaming: true,
	},
}

// GetModelInfo returns the catalog entry for a model ID or alias, or nil.
func GetModelInfo(modelID string) *ModelInfo {
	if modelID == "" {
		return nil
	}
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all models, or only those of provider when non-empty.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// GetLatestModel returns the first model for provider that has capability
// ("", "tools" or "streaming").
func GetLatestModel(provider string, capability string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider != provider {
			continue
		}
		switch capability {
		case "":
			return &Models[i]
		case "tools":
			if Models[i].SupportsTools {
				return &Models[i]
			}
		case "streaming":
			if Models[i].SupportsStreaming {
				return &Models[i]
			}
		}
	}
	return nil
}
