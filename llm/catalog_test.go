package llm

import "testing"

func TestGetModelInfo(t *testing.T) {
	info := GetModelInfo("gpt-4o-mini")
	if info == nil || info.Provider != "openai" {
		t.Fatalf("expected openai model, got %+v", info)
	}
	if alias := GetModelInfo("sonnet"); alias == nil || alias.ID != "claude-sonnet-4-5" {
		t.Errorf("expected alias lookup, got %+v", alias)
	}
	if GetModelInfo("") != nil || GetModelInfo("nonexistent") != nil {
		t.Error("expected nil for unknown models")
	}
}

func TestListModels(t *testing.T) {
	if len(ListModels("")) != len(Models) {
		t.Error("expected all models without a filter")
	}
	for _, m := range ListModels("anthropic") {
		if m.Provider != "anthropic" {
			t.Errorf("unexpected provider %q", m.Provider)
		}
	}
	if len(ListModels("nobody")) != 0 {
		t.Error("expected no models for unknown provider")
	}
}

func TestGetLatestModel(t *testing.T) {
	if m := GetLatestModel("openai", ""); m == nil || m.ID != "gpt-4o" {
		t.Errorf("expected gpt-4o, got %+v", m)
	}
	if m := GetLatestModel("ollama", "tools"); m != nil {
		t.Errorf("ollama entry has no tool support, got %+v", m)
	}
	if m := GetLatestModel("ollama", "streaming"); m == nil {
		t.Error("expected a streaming ollama model")
	}
}

func TestRoughTokens(t *testing.T) {
	if roughTokens("") != 0 || roughTokens("ab") != 1 || roughTokens("abcdefgh") != 2 {
		t.Error("unexpected rough token counts")
	}
	if EstimateTokens("") != 0 {
		t.Error("empty text has no tokens")
	}
}
