package talemate

import "strings"

// BOTMarker is the sentinel the prompt engine inserts at the position where
// the model's reply should conceptually begin. Text after the marker is
// pre-seeded partial output (coercion).
const BOTMarker = "<|BOT|>"

// coercionCue nudges APIs that own their own prompt templating to continue
// with the coerced suffix, since the marker itself cannot be expressed
// structurally there.
const coercionCue = "\nStart your response with: "

// ApplyCoercionMarker rewrites the coercion marker for backends where no
// structural templating happens locally. If non-empty text follows the first
// marker occurrence, the marker becomes a natural-language cue; otherwise the
// marker is removed and the prompt is left otherwise unmodified.
func ApplyCoercionMarker(prompt string) string {
	if !strings.Contains(prompt, BOTMarker) {
		return prompt
	}
	_, right, _ := strings.Cut(prompt, BOTMarker)
	if right != "" {
		return strings.ReplaceAll(prompt, BOTMarker, coercionCue)
	}
	return strings.ReplaceAll(prompt, BOTMarker, "")
}

// SplitCoercionMarker separates a prompt into the text before the first
// coercion marker and the pre-seeded output after it. Backends that can
// prefill assistant output (rather than rewriting the prompt) use this form.
// The second return value is empty when no marker is present.
func SplitCoercionMarker(prompt string) (string, string) {
	left, right, found := strings.Cut(prompt, BOTMarker)
	if !found {
		return prompt, ""
	}
	return left, right
}

// DefaultPromptTemplate is the shared templating fallback used by clients
// whose remote API does not apply templating itself and that have no model
// template configured: the system message and prompt are joined as plain
// text.
func DefaultPromptTemplate(system, prompt string) string {
	system = strings.TrimSpace(system)
	if system == "" {
		return prompt
	}
	return system + "\n\n" + prompt
}
