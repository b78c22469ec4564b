package talemate

import (
	"context"
	"math/rand"
)

// GenerationKind selects the tuning behavior for a generation request.
// The orchestrator tags every request with the kind of content it expects,
// and clients use the tag to pick sampling defaults.
type GenerationKind string

// Generation kinds used by the orchestrator.
const (
	KindConversation GenerationKind = "conversation"
	KindNarrate      GenerationKind = "narrate"
	KindCreate       GenerationKind = "create"
	KindDirector     GenerationKind = "director"
	KindSummarize    GenerationKind = "summarize"
	KindAnalyze      GenerationKind = "analyze"
)

// Client is the interface every backend client must implement.
// A client translates the orchestrator's generic "generate text" request
// into the shape its remote API expects and translates the response back.
//
// Generate never returns an error: every failure is caught at the client
// boundary, logged, reported through the status bus, and converted into the
// empty-string sentinel. Callers that need to branch on the failure cause
// should use the client's lower-level completion method where one is exposed.
type Client interface {
	// Type returns the registry tag for this client (e.g. "openai_compat").
	Type() string

	// ModelName returns the currently configured model identifier.
	ModelName() string

	// Generate produces text for the given prompt. An empty string signals
	// failure; the cause is reported via logs and the status bus.
	Generate(ctx context.Context, prompt string, params Parameters, kind GenerationKind) string

	// TunePromptParameters adjusts params in place: shared defaults for the
	// generation kind first, then translation into the parameter set the
	// backend API accepts.
	TunePromptParameters(params Parameters, kind GenerationKind)

	// PromptTemplate renders the final prompt from a system message and a
	// prompt body.
	PromptTemplate(system, prompt string) string

	// CanBeCoerced reports whether the client can pre-seed partial output in
	// the prompt. Requires local control over prompt structure.
	CanBeCoerced() bool

	// Reconfigure applies a partial configuration update. Fields left nil in
	// the update keep their current value.
	Reconfigure(update ConfigUpdate)

	// JiggleRandomness nudges sampling parameters in place by random values
	// centered on their current settings.
	JiggleRandomness(params Parameters, offset float64)
}

// DefaultJiggleOffset is the offset used when callers do not care to pick one.
const DefaultJiggleOffset = 0.3

// JiggleRandomness redraws temperature and the repetition-control parameter
// from uniform ranges above their current values. The repetition-control key
// is frequency_penalty when present, repetition_penalty otherwise. Parameters
// that are absent from the map are left untouched.
//
// rng may be nil, in which case the shared global source is used. Passing a
// seeded *rand.Rand makes the redraw deterministic under test.
func JiggleRandomness(params Parameters, offset float64, rng *rand.Rand) {
	minOffset := offset * 0.3

	if temp, ok := params.Float("temperature"); ok {
		params["temperature"] = uniform(rng, temp+minOffset, temp+offset)
	}

	repKey := "repetition_penalty"
	if _, ok := params["frequency_penalty"]; ok {
		repKey = "frequency_penalty"
	}
	if rep, ok := params.Float(repKey); ok {
		params[repKey] = uniform(rng, rep+minOffset*0.3, rep+offset*0.3)
	}
}

func uniform(rng *rand.Rand, low, high float64) float64 {
	if rng == nil {
		return low + rand.Float64()*(high-low)
	}
	return low + rng.Float64()*(high-low)
}
