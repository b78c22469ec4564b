package anthropic

import (
	"testing"

	"github.com/MiyeonLin/talemate"
)

func TestBuildMessageParams(t *testing.T) {
	params := talemate.Parameters{
		"max_tokens":  256,
		"temperature": 0.7,
		"top_p":       0.95,
		"top_k":       40,
	}

	apiParams := buildMessageParams("claude-haiku-4-5-20251001", "Describe the harbor.", "", params)

	if string(apiParams.Model) != "claude-haiku-4-5-20251001" {
		t.Errorf("model = %q", apiParams.Model)
	}
	if apiParams.MaxTokens != 256 {
		t.Errorf("max_tokens = %d, want 256", apiParams.MaxTokens)
	}
	if len(apiParams.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(apiParams.Messages))
	}
	if !apiParams.Temperature.Valid() || apiParams.Temperature.Value != 0.7 {
		t.Errorf("temperature not forwarded: %+v", apiParams.Temperature)
	}
	if !apiParams.TopP.Valid() || apiParams.TopP.Value != 0.95 {
		t.Errorf("top_p not forwarded: %+v", apiParams.TopP)
	}
	if !apiParams.TopK.Valid() || apiParams.TopK.Value != 40 {
		t.Errorf("top_k not forwarded: %+v", apiParams.TopK)
	}
}

func TestBuildMessageParams_PrefillAddsAssistantTurn(t *testing.T) {
	apiParams := buildMessageParams("claude-haiku-4-5-20251001", "Describe the harbor. ", "The first light", talemate.Parameters{})

	if len(apiParams.Messages) != 2 {
		t.Fatalf("expected user + assistant prefill, got %d messages", len(apiParams.Messages))
	}
	if apiParams.Messages[1].Role != "assistant" {
		t.Errorf("second message role = %q, want assistant", apiParams.Messages[1].Role)
	}
}

func TestBuildMessageParams_DefaultMaxTokens(t *testing.T) {
	apiParams := buildMessageParams("claude-haiku-4-5-20251001", "p", "", talemate.Parameters{})
	if apiParams.MaxTokens != 512 {
		t.Errorf("max_tokens = %d, want default 512", apiParams.MaxTokens)
	}
}

func TestTunePromptParameters_DropsUnsupported(t *testing.T) {
	c := New(talemate.ClientConfig{MaxTokenLength: 4096})

	params := talemate.Parameters{
		"temperature":        0.8,
		"presence_penalty":   0.5,
		"repetition_penalty": 1.1,
		"mirostat":           2,
	}
	c.TunePromptParameters(params, talemate.KindConversation)

	allowed := map[string]bool{
		"max_tokens":  true,
		"temperature": true,
		"top_p":       true,
		"top_k":       true,
	}
	for k := range params {
		if !allowed[k] {
			t.Errorf("key %q survived tuning", k)
		}
	}
}

func TestCanBeCoerced_AlwaysTrue(t *testing.T) {
	c := New(talemate.ClientConfig{})
	if !c.CanBeCoerced() {
		t.Error("the Messages API supports assistant prefill; coercion must be available")
	}
}

func TestRegistryIntegration(t *testing.T) {
	if !talemate.GetClientRegistry().IsRegistered(ClientType) {
		t.Fatalf("client type %q should self-register", ClientType)
	}
}
