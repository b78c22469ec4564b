// Package anthropic implements the backend client for Anthropic (Claude)
// models via the Messages API.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MiyeonLin/talemate"
	"github.com/MiyeonLin/talemate/emit"
)

// ClientType is the registry tag for this client.
const ClientType = "anthropic"

// allowedParams is the parameter set the Messages API accepts. The penalty
// parameters have no Anthropic equivalent and are dropped during tuning.
var allowedParams = []string{"max_tokens", "temperature", "top_p", "top_k"}

func init() {
	_ = talemate.RegisterClient(talemate.ClientDefinition{
		Type:  ClientType,
		Label: "Anthropic",
		Factory: func(cfg talemate.ClientConfig) (talemate.Client, error) {
			return New(cfg), nil
		},
	})
}

// Client talks to the Anthropic Messages API.
type Client struct {
	cfg     talemate.ClientConfig
	client  *anthropic.Client
	emitter *emit.Bus
	log     *slog.Logger
	rand    *rand.Rand
}

// Option customizes a Client.
type Option func(*Client)

// WithEmitter routes status notifications to a specific bus.
func WithEmitter(bus *emit.Bus) Option {
	return func(c *Client) { c.emitter = bus }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRand sets the random source used for parameter jitter.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rand = r }
}

// New creates a client for the given configuration. The API URL is only
// forwarded when set, so the SDK default endpoint applies otherwise.
func New(cfg talemate.ClientConfig, opts ...Option) *Client {
	if cfg.MaxTokenLength <= 0 {
		cfg.MaxTokenLength = talemate.DefaultMaxTokenLength
	}

	c := &Client{
		cfg:     cfg,
		emitter: emit.Default(),
		log:     slog.Default().With("client", ClientType),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.setClient()
	return c
}

func (c *Client) setClient() {
	requestOpts := []option.RequestOption{option.WithAPIKey(c.cfg.APIKey)}
	if c.cfg.APIURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(c.cfg.APIURL))
	}
	client := anthropic.NewClient(requestOpts...)
	c.client = &client
}

// Type returns the registry tag.
func (c *Client) Type() string { return ClientType }

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string { return c.cfg.Model }

// CanBeCoerced is always true: the Messages API accepts a prefilled
// assistant turn, which gives local control over how output begins.
func (c *Client) CanBeCoerced() bool { return true }

// Reconfigure applies a partial configuration update and rebuilds the SDK
// client.
func (c *Client) Reconfigure(update talemate.ConfigUpdate) {
	c.cfg.Apply(update)
	c.log.Warn("reconfigure", "model", c.cfg.Model, "max_token_length", c.cfg.MaxTokenLength)
	c.setClient()
}

// TunePromptParameters applies the shared tuning, then drops everything the
// Messages API does not accept.
func (c *Client) TunePromptParameters(params talemate.Parameters, kind talemate.GenerationKind) {
	talemate.TuneForKind(params, kind, c.cfg.MaxTokenLength)
	params.Restrict(allowedParams...)
}

// PromptTemplate joins the system message and prompt. The coercion marker is
// left in place; Generate turns it into an assistant prefill.
func (c *Client) PromptTemplate(system, prompt string) string {
	return talemate.DefaultPromptTemplate(system, prompt)
}

// JiggleRandomness nudges temperature and the repetition-control parameter.
func (c *Client) JiggleRandomness(params talemate.Parameters, offset float64) {
	talemate.JiggleRandomness(params, offset, c.rand)
}

// Generate produces text for the prompt. Failures are logged, reported on
// the status bus, and converted into the empty-string sentinel.
func (c *Client) Generate(ctx context.Context, prompt string, params talemate.Parameters, kind talemate.GenerationKind) string {
	text, err := c.Complete(ctx, prompt, params, kind)
	if err != nil {
		c.log.Error("generate error", "error", err)
		if talemate.IsPermissionDenied(err) {
			c.emitter.Status("Client API: Permission Denied", emit.SeverityError)
		} else {
			c.emitter.Status("Error during generation (check logs)", emit.SeverityError)
		}
		return ""
	}
	return text
}

// Complete is the error-returning form of Generate. Text after the coercion
// marker is sent as a prefilled assistant turn and prepended to the result,
// so callers see the coerced opening followed by the model's continuation.
func (c *Client) Complete(ctx context.Context, prompt string, params talemate.Parameters, _ talemate.GenerationKind) (string, error) {
	if params == nil {
		params = talemate.Parameters{}
	}

	userText, prefill := talemate.SplitCoercionMarker(prompt)
	prefill = strings.TrimRight(prefill, " ")

	apiParams := buildMessageParams(c.cfg.Model, userText, prefill, params)

	c.log.Debug("generate", "model", c.cfg.Model, "prefill", prefill != "", "parameters", params)

	message, err := c.client.Messages.New(ctx, apiParams)
	if err != nil {
		return "", c.classify(err)
	}

	var out strings.Builder
	out.WriteString(prefill)
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

// buildMessageParams constructs the Messages API parameters from the tuned
// parameter map.
func buildMessageParams(model, userText, prefill string, params talemate.Parameters) anthropic.MessageNewParams {
	maxTokens := 512
	if v, ok := params.Int("max_tokens"); ok {
		maxTokens = v
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(strings.TrimSpace(userText))),
	}
	if prefill != "" {
		messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(prefill)))
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	if v, ok := params.Float("temperature"); ok {
		apiParams.Temperature = anthropic.Float(v)
	}
	if v, ok := params.Float("top_p"); ok {
		apiParams.TopP = anthropic.Float(v)
	}
	if v, ok := params.Int("top_k"); ok {
		apiParams.TopK = anthropic.Int(int64(v))
	}

	return apiParams
}

func (c *Client) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		wrapped := talemate.ErrGenerationFailed
		switch apiErr.StatusCode {
		case 403:
			wrapped = talemate.ErrPermissionDenied
		case 404:
			wrapped = talemate.ErrNotFound
		}
		return &talemate.ClientError{
			ClientType: ClientType,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Err:        wrapped,
		}
	}

	return &talemate.ClientError{
		ClientType: ClientType,
		Message:    err.Error(),
		Err:        talemate.ErrGenerationFailed,
	}
}
