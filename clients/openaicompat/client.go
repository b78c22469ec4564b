// Package openaicompat implements the backend client for services exposing
// an OpenAI-compatible completion API. Success depends on the level of
// compatibility; use a dedicated client for OpenAI's own API.
package openaicompat

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MiyeonLin/talemate"
	"github.com/MiyeonLin/talemate/emit"
)

// ClientType is the registry tag for this client.
const ClientType = "openai_compat"

// allowedParams is the fixed parameter set the OpenAI-compatible API family
// understands. Everything else is dropped before the call so the request is
// not rejected.
var allowedParams = []string{"max_tokens", "presence_penalty", "top_p", "temperature"}

func init() {
	_ = talemate.RegisterClient(talemate.ClientDefinition{
		Type:  ClientType,
		Label: "OpenAI Compatible API",
		Factory: func(cfg talemate.ClientConfig) (talemate.Client, error) {
			return New(cfg), nil
		},
	})
}

// completionAPI is the subset of the OpenAI client used here; it keeps the
// remote API easy to stub in tests.
type completionAPI interface {
	CreateCompletion(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error)
}

// Client talks to an OpenAI-compatible completion endpoint.
//
// The client holds no state between calls beyond its configuration and the
// underlying API handle. The handle is replaced wholesale on Reconfigure; the
// surrounding system is expected to serialize reconfiguration against
// in-flight generations.
type Client struct {
	cfg     talemate.ClientConfig
	api     completionAPI
	emitter *emit.Bus
	log     *slog.Logger
	rand    *rand.Rand

	// renderTemplate is the shared templating collaborator used when the
	// remote API does not own prompt templating.
	renderTemplate func(system, prompt string) string
}

// Option customizes a Client.
type Option func(*Client)

// WithEmitter routes status notifications to a specific bus instead of the
// process-wide default.
func WithEmitter(bus *emit.Bus) Option {
	return func(c *Client) { c.emitter = bus }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRand sets the random source used for parameter jitter. Pass a seeded
// source for deterministic behavior under test.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rand = r }
}

// New creates a client for the given configuration. Zero-valued URL and
// token length fall back to the library defaults.
func New(cfg talemate.ClientConfig, opts ...Option) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = talemate.DefaultConfig().APIURL
	}
	if cfg.MaxTokenLength <= 0 {
		cfg.MaxTokenLength = talemate.DefaultMaxTokenLength
	}

	c := &Client{
		cfg:            cfg,
		emitter:        emit.Default(),
		log:            slog.Default().With("client", ClientType),
		renderTemplate: talemate.DefaultPromptTemplate,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.setClient()
	return c
}

// setClient builds a fresh API handle bound to the current URL and key,
// replacing the previous one.
func (c *Client) setClient() {
	config := openai.DefaultConfig(c.cfg.APIKey)
	config.BaseURL = c.cfg.APIURL
	c.api = openai.NewClientWithConfig(config)
}

// Type returns the registry tag.
func (c *Client) Type() string { return ClientType }

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string { return c.cfg.Model }

// CanBeCoerced reports whether partial output can be pre-seeded in the
// prompt. Coercion requires local control over prompt structure, so it is
// unavailable when the remote API owns templating.
func (c *Client) CanBeCoerced() bool {
	return !c.cfg.APIHandlesPromptTemplate
}

// Reconfigure applies a partial configuration update and rebuilds the API
// handle against the possibly updated URL and key.
func (c *Client) Reconfigure(update talemate.ConfigUpdate) {
	c.cfg.Apply(update)
	c.log.Warn("reconfigure",
		"api_url", c.cfg.APIURL,
		"model", c.cfg.Model,
		"max_token_length", c.cfg.MaxTokenLength,
		"api_handles_prompt_template", c.cfg.APIHandlesPromptTemplate,
	)
	c.setClient()
}

// TunePromptParameters applies the shared tuning for the generation kind,
// then translates the result into the parameter set this API family accepts:
// repetition_penalty becomes presence_penalty, and unsupported parameters are
// dropped.
func (c *Client) TunePromptParameters(params talemate.Parameters, kind talemate.GenerationKind) {
	talemate.TuneForKind(params, kind, c.cfg.MaxTokenLength)

	params.Rename("repetition_penalty", "presence_penalty")
	params.Restrict(allowedParams...)
}

// PromptTemplate renders the final prompt. When the remote API handles its
// own templating, no structural templating happens here; only the coercion
// marker is rewritten.
func (c *Client) PromptTemplate(system, prompt string) string {
	c.log.Debug("prompt template", "api_handles_prompt_template", c.cfg.APIHandlesPromptTemplate)

	if !c.cfg.APIHandlesPromptTemplate {
		return c.renderTemplate(system, prompt)
	}
	return talemate.ApplyCoercionMarker(prompt)
}

// JiggleRandomness nudges temperature and the repetition-control parameter.
func (c *Client) JiggleRandomness(params talemate.Parameters, offset float64) {
	talemate.JiggleRandomness(params, offset, c.rand)
}

// Generate produces text for the prompt. Every failure is logged, reported
// as an error-severity status notification, and converted into the
// empty-string sentinel; no error reaches the caller.
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

// Complete is the error-returning form of Generate. The returned error is
// classified (permission denied, not found, generic) so callers can branch
// without parsing log text. The kind tag is accepted for interface symmetry
// but does not influence the call.
func (c *Client) Complete(ctx context.Context, prompt string, params talemate.Parameters, _ talemate.GenerationKind) (string, error) {
	if params == nil {
		params = talemate.Parameters{}
	}

	// Informational only; the call itself uses the raw prompt.
	userMessage := map[string]string{"role": "user", "content": strings.TrimSpace(prompt)}
	c.log.Debug("generate",
		"prompt", truncate(prompt, 128),
		"message_role", userMessage["role"],
		"parameters", params,
	)

	params["prompt"] = prompt

	resp, err := c.api.CreateCompletion(ctx, c.buildRequest(params))
	if err != nil {
		return "", c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &talemate.ClientError{
			ClientType: ClientType,
			Message:    "response contained no choices",
			Err:        talemate.ErrEmptyResponse,
		}
	}

	c.log.Debug("generate response", "choices", len(resp.Choices))
	return resp.Choices[0].Text, nil
}

// buildRequest maps the tuned parameters onto the completion request. Only
// the allow-listed parameters plus the prompt itself are forwarded.
func (c *Client) buildRequest(params talemate.Parameters) openai.CompletionRequest {
	req := openai.CompletionRequest{Model: c.cfg.Model}

	if s, ok := params.String("prompt"); ok {
		req.Prompt = s
	}
	if v, ok := params.Int("max_tokens"); ok {
		req.MaxTokens = v
	}
	if v, ok := params.Float("temperature"); ok {
		req.Temperature = float32(v)
	}
	if v, ok := params.Float("top_p"); ok {
		req.TopP = float32(v)
	}
	if v, ok := params.Float("presence_penalty"); ok {
		req.PresencePenalty = float32(v)
	}

	return req
}

// classify converts transport and API errors into the library taxonomy.
// 404 is recognized as its own class but Generate still routes it through
// the generic status message.
func (c *Client) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &talemate.ClientError{
			ClientType: ClientType,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        sentinelForStatus(apiErr.HTTPStatusCode),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &talemate.ClientError{
			ClientType: ClientType,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Err:        sentinelForStatus(reqErr.HTTPStatusCode),
		}
	}

	return &talemate.ClientError{
		ClientType: ClientType,
		Message:    err.Error(),
		Err:        talemate.ErrGenerationFailed,
	}
}

func sentinelForStatus(status int) error {
	switch status {
	case 403:
		return talemate.ErrPermissionDenied
	case 404:
		return talemate.ErrNotFound
	default:
		return talemate.ErrGenerationFailed
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + " ..."
}
