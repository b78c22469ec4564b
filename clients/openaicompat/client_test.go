package openaicompat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MiyeonLin/talemate"
	"github.com/MiyeonLin/talemate/emit"
)

type stubAPI struct {
	resp   openai.CompletionResponse
	err    error
	gotReq openai.CompletionRequest
	calls  int
}

func (s *stubAPI) CreateCompletion(_ context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error) {
	s.calls++
	s.gotReq = req
	return s.resp, s.err
}

type statusRecorder struct {
	bus      *emit.Bus
	messages []emit.Message
}

func newStatusRecorder() *statusRecorder {
	r := &statusRecorder{bus: emit.NewBus()}
	r.bus.Subscribe(emit.ChannelStatus, func(msg emit.Message) {
		r.messages = append(r.messages, msg)
	})
	return r
}

func newTestClient(t *testing.T, cfg talemate.ClientConfig, api *stubAPI, rec *statusRecorder) *Client {
	t.Helper()
	c := New(cfg,
		WithEmitter(rec.bus),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if api != nil {
		c.api = api
	}
	return c
}

func TestGenerate_Success(t *testing.T) {
	api := &stubAPI{
		resp: openai.CompletionResponse{
			Choices: []openai.CompletionChoice{
				{Text: "  The harbor glittered.  "},
				{Text: "second choice ignored"},
			},
		},
	}
	rec := newStatusRecorder()
	c := newTestClient(t, talemate.ClientConfig{Model: "local-model"}, api, rec)

	params := talemate.Parameters{"max_tokens": 64, "temperature": 0.7}
	got := c.Generate(context.Background(), "Describe the harbor.", params, talemate.KindNarrate)

	if got != "  The harbor glittered.  " {
		t.Errorf("Generate() = %q, want the first choice's text unmodified", got)
	}
	if len(rec.messages) != 0 {
		t.Errorf("success should emit no status, got %d", len(rec.messages))
	}
	if api.calls != 1 {
		t.Errorf("expected 1 API call, got %d", api.calls)
	}
}

func TestGenerate_InsertsRawPromptIntoParams(t *testing.T) {
	api := &stubAPI{resp: openai.CompletionResponse{Choices: []openai.CompletionChoice{{Text: "ok"}}}}
	rec := newStatusRecorder()
	c := newTestClient(t, talemate.ClientConfig{Model: "m"}, api, rec)

	prompt := "  untrimmed prompt  "
	params := talemate.Parameters{}
	c.Generate(context.Background(), prompt, params, talemate.KindConversation)

	if v, _ := params.String("prompt"); v != prompt {
		t.Errorf("params[prompt] = %q, want the untrimmed prompt", v)
	}
	if api.gotReq.Prompt != prompt {
		t.Errorf("request prompt = %v, want the untrimmed prompt", api.gotReq.Prompt)
	}
	if api.gotReq.Model != "m" {
		t.Errorf("request model = %q, want m", api.gotReq.Model)
	}
}

func TestGenerate_PermissionDenied(t *testing.T) {
	api := &stubAPI{err: &openai.APIError{HTTPStatusCode: 403, Message: "forbidden"}}
	rec := newStatusRecorder()
	c := newTestClient(t, talemate.ClientConfig{Model: "m"}, api, rec)

	got := c.Generate(context.Background(), "p", talemate.Parameters{}, talemate.KindConversation)

	if got != "" {
		t.Errorf("Generate() = %q, want empty-string sentinel", got)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("expected exactly 1 status emission, got %d", len(rec.messages))
	}
	msg := rec.messages[0]
	if msg.Text != "Client API: Permission Denied" {
		t.Errorf("status text = %q", msg.Text)
	}
	if msg.Severity != emit.SeverityError {
		t.Errorf("status severity = %q, want error", msg.Severity)
	}
}

func TestGenerate_GenericFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transport error", errors.New("connection refused")},
		{"server error", &openai.APIError{HTTPStatusCode: 500, Message: "boom"}},
		{"not found routes through generic branch", &openai.APIError{HTTPStatusCode: 404, Message: "no such model"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &stubAPI{err: tt.err}
			rec := newStatusRecorder()
			c := newTestClient(t, talemate.ClientConfig{Model: "m"}, api, rec)

			got := c.Generate(context.Background(), "p", talemate.Parameters{}, talemate.KindConversation)

			if got != "" {
				t.Errorf("Generate() = %q, want empty-string sentinel", got)
			}
			if len(rec.messages) != 1 {
				t.Fatalf("expected exactly 1 status emission, got %d", len(rec.messages))
			}
			if rec.messages[0].Text != "Error during generation (check logs)" {
				t.Errorf("status text = %q", rec.messages[0].Text)
			}
			if rec.messages[0].Severity != emit.SeverityError {
				t.Errorf("status severity = %q, want error", rec.messages[0].Severity)
			}
		})
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	api := &stubAPI{resp: openai.CompletionResponse{}}
	rec := newStatusRecorder()
	c := newTestClient(t, talemate.ClientConfig{Model: "m"}, api, rec)

	got := c.Generate(context.Background(), "p", talemate.Parameters{}, talemate.KindConversation)

	if got != "" {
		t.Errorf("Generate() = %q, want empty-string sentinel", got)
	}
	if len(rec.messages) != 1 {
		t.Errorf("expected exactly 1 status emission, got %d", len(rec.messages))
	}
}

func TestComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		permissionDenied bool
		notFound         bool
	}{
		{"403 api error", &openai.APIError{HTTPStatusCode: 403}, true, false},
		{"404 api error", &openai.APIError{HTTPStatusCode: 404}, false, true},
		{"500 api error", &openai.APIError{HTTPStatusCode: 500}, false, false},
		{"plain error", errors.New("dial tcp: refused"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &stubAPI{err: tt.err}
			rec := newStatusRecorder()
			c := newTestClient(t, talemate.ClientConfig{Model: "m"}, api, rec)

			_, err := c.Complete(context.Background(), "p", talemate.Parameters{}, talemate.KindConversation)
			if err == nil {
				t.Fatal("Complete() should return the classified error")
			}
			if got := talemate.IsPermissionDenied(err); got != tt.permissionDenied {
				t.Errorf("IsPermissionDenied = %v, want %v", got, tt.permissionDenied)
			}
			if got := talemate.IsNotFound(err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
		})
	}
}

func TestTunePromptParameters_AllowList(t *testing.T) {
	c := newTestClient(t, talemate.ClientConfig{MaxTokenLength: 4096}, nil, newStatusRecorder())

	params := talemate.Parameters{
		"temperature": 0.8,
		"top_k":       40,
		"mirostat":    2,
		"min_p":       0.05,
	}
	c.TunePromptParameters(params, talemate.KindConversation)

	allowed := map[string]bool{
		"max_tokens":       true,
		"presence_penalty": true,
		"top_p":            true,
		"temperature":      true,
	}
	for k := range params {
		if !allowed[k] {
			t.Errorf("key %q survived tuning", k)
		}
	}
}

func TestTunePromptParameters_RenamesRepetitionPenalty(t *testing.T) {
	c := newTestClient(t, talemate.ClientConfig{MaxTokenLength: 4096}, nil, newStatusRecorder())

	params := talemate.Parameters{"repetition_penalty": 1.15}
	c.TunePromptParameters(params, talemate.KindConversation)

	if _, ok := params["repetition_penalty"]; ok {
		t.Error("repetition_penalty should be renamed away")
	}
	if v, _ := params.Float("presence_penalty"); v != 1.15 {
		t.Errorf("presence_penalty = %v, want 1.15", v)
	}
}

func TestPromptTemplate_DelegatesWhenAPIDoesNotHandleTemplating(t *testing.T) {
	c := newTestClient(t, talemate.ClientConfig{}, nil, newStatusRecorder())

	c.renderTemplate = func(system, prompt string) string { return prompt }

	got := c.PromptTemplate("system ignored by stub", "Hello <|BOT|>world")
	if got != "Hello <|BOT|>world" {
		t.Errorf("PromptTemplate() = %q, want identity passthrough from stub", got)
	}
}

func TestPromptTemplate_APIHandlesTemplating(t *testing.T) {
	c := newTestClient(t, talemate.ClientConfig{APIHandlesPromptTemplate: true}, nil, newStatusRecorder())

	tests := []struct {
		prompt string
		want   string
	}{
		{"Hello <|BOT|>world", "Hello \nStart your response with: world"},
		{"Hello <|BOT|>", "Hello "},
		{"Hello", "Hello"},
	}

	for _, tt := range tests {
		if got := c.PromptTemplate("system is ignored", tt.prompt); got != tt.want {
			t.Errorf("PromptTemplate(%q) = %q, want %q", tt.prompt, got, tt.want)
		}
	}
}

func TestCanBeCoerced_NegatesTemplateFlag(t *testing.T) {
	c := newTestClient(t, talemate.ClientConfig{APIHandlesPromptTemplate: false}, nil, newStatusRecorder())
	if !c.CanBeCoerced() {
		t.Error("CanBeCoerced() = false with flag unset")
	}

	c.Reconfigure(talemate.ConfigUpdate{APIHandlesPromptTemplate: boolPtr(true)})
	if c.CanBeCoerced() {
		t.Error("CanBeCoerced() = true with flag set")
	}

	c.Reconfigure(talemate.ConfigUpdate{APIHandlesPromptTemplate: boolPtr(false)})
	if !c.CanBeCoerced() {
		t.Error("CanBeCoerced() should track reconfiguration")
	}
}

func TestReconfigure_ReplacesAPIHandle(t *testing.T) {
	api := &stubAPI{}
	c := newTestClient(t, talemate.ClientConfig{Model: "old"}, api, newStatusRecorder())

	c.Reconfigure(talemate.ConfigUpdate{
		APIURL: stringPtr("http://elsewhere:9000/v1"),
		Model:  stringPtr("new"),
	})

	if c.ModelName() != "new" {
		t.Errorf("ModelName() = %q, want new", c.ModelName())
	}
	if c.api == completionAPI(api) {
		t.Error("API handle should be replaced wholesale on reconfigure")
	}
}

func TestJiggleRandomness_Deterministic(t *testing.T) {
	c := newTestClient(t, talemate.ClientConfig{}, nil, newStatusRecorder())
	c.rand = rand.New(rand.NewSource(11))

	params := talemate.Parameters{"temperature": 0.7, "frequency_penalty": 0.2}
	c.JiggleRandomness(params, 0.3)

	temp, _ := params.Float("temperature")
	if temp < 0.79 || temp > 1.0 {
		t.Errorf("temperature %v out of [0.79, 1.0]", temp)
	}
	freq, _ := params.Float("frequency_penalty")
	if freq < 0.218 || freq > 0.29 {
		t.Errorf("frequency_penalty %v out of [0.218, 0.29]", freq)
	}
}

func TestRegistryIntegration(t *testing.T) {
	if !talemate.GetClientRegistry().IsRegistered(ClientType) {
		t.Fatalf("client type %q should self-register", ClientType)
	}

	client, err := talemate.CreateClient(ClientType, talemate.ClientConfig{Model: "m"})
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	if client.Type() != ClientType {
		t.Errorf("Type() = %q, want %q", client.Type(), ClientType)
	}
}

func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }
