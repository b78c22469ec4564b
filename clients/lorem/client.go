// Package lorem implements a mock backend client that generates lorem ipsum
// text. It lets the orchestrator run without real API keys during
// development and testing.
package lorem

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"

	loremgen "github.com/bozaro/golorem"

	"github.com/MiyeonLin/talemate"
)

// ClientType is the registry tag for this client.
const ClientType = "lorem"

func init() {
	_ = talemate.RegisterClient(talemate.ClientDefinition{
		Type:  ClientType,
		Label: "Lorem Ipsum (mock)",
		Factory: func(cfg talemate.ClientConfig) (talemate.Client, error) {
			return New(cfg), nil
		},
	})
}

// Client generates lorem ipsum sized by the tuned max_tokens. It never
// fails, so nothing is ever emitted on the status bus.
type Client struct {
	cfg       talemate.ClientConfig
	generator *loremgen.Lorem
	log       *slog.Logger
	rand      *rand.Rand
}

// New creates a mock client. An empty model defaults to "lorem-ipsum".
func New(cfg talemate.ClientConfig) *Client {
	if cfg.Model == "" {
		cfg.Model = "lorem-ipsum"
	}
	if cfg.MaxTokenLength <= 0 {
		cfg.MaxTokenLength = talemate.DefaultMaxTokenLength
	}
	return &Client{
		cfg:       cfg,
		generator: loremgen.New(),
		log:       slog.Default().With("client", ClientType),
	}
}

// Type returns the registry tag.
func (c *Client) Type() string { return ClientType }

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string { return c.cfg.Model }

// CanBeCoerced is always true; the mock owns its prompt structure.
func (c *Client) CanBeCoerced() bool { return true }

// Reconfigure applies a partial configuration update.
func (c *Client) Reconfigure(update talemate.ConfigUpdate) {
	c.cfg.Apply(update)
}

// TunePromptParameters applies the shared tuning only; the mock accepts any
// parameter and ignores most of them.
func (c *Client) TunePromptParameters(params talemate.Parameters, kind talemate.GenerationKind) {
	talemate.TuneForKind(params, kind, c.cfg.MaxTokenLength)
}

// PromptTemplate joins the system message and prompt.
func (c *Client) PromptTemplate(system, prompt string) string {
	return talemate.DefaultPromptTemplate(system, prompt)
}

// JiggleRandomness nudges temperature and the repetition-control parameter.
func (c *Client) JiggleRandomness(params talemate.Parameters, offset float64) {
	talemate.JiggleRandomness(params, offset, c.rand)
}

// Generate returns lorem ipsum text. The coercion marker is honored: text
// after the marker opens the response. Context cancellation yields the
// empty-string sentinel like a real failure would.
func (c *Client) Generate(ctx context.Context, prompt string, params talemate.Parameters, _ talemate.GenerationKind) string {
	select {
	case <-ctx.Done():
		c.log.Error("generate error", "error", ctx.Err())
		return ""
	default:
	}

	if params == nil {
		params = talemate.Parameters{}
	}
	maxTokens := 192
	if v, ok := params.Int("max_tokens"); ok {
		maxTokens = v
	}

	_, prefill := talemate.SplitCoercionMarker(prompt)

	// Estimate: 1 token is roughly 4 characters.
	text := c.generateText(maxTokens * 4)
	if prefill != "" {
		text = strings.TrimRight(prefill, " ") + " " + text
	}
	return text
}

// generateText produces approximately targetChars characters of lorem ipsum.
func (c *Client) generateText(targetChars int) string {
	var sb strings.Builder
	for sb.Len() < targetChars {
		sb.WriteString(c.generator.Paragraph(3, 5))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}
