package talemate

// Parameters is the mapping of tuning-parameter name to value that travels
// with a generation request. Values are whatever the orchestrator put there,
// typically float64 or int; the typed accessors below coerce between the two.
type Parameters map[string]any

// Float returns the value for key coerced to float64.
func (p Parameters) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns the value for key coerced to int.
func (p Parameters) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}

// String returns the value for key if it is a string.
func (p Parameters) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// Rename moves the value under from to the key to, removing the original
// entry. It reports whether a value was moved.
func (p Parameters) Rename(from, to string) bool {
	v, ok := p[from]
	if !ok {
		return false
	}
	p[to] = v
	delete(p, from)
	return true
}

// Restrict deletes every key that is not in the allowed set. Backends call
// this after tuning so requests never carry parameters the remote API would
// reject.
func (p Parameters) Restrict(allowed ...string) {
	keep := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		keep[k] = true
	}
	for k := range p {
		if !keep[k] {
			delete(p, k)
		}
	}
}

// Clone returns a shallow copy of the parameters.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// TuneForKind applies the shared tuning defaults for a generation kind:
// sampling parameters absent from the map are filled from the kind's preset,
// and max_tokens is clamped to the client's context window. Parameters the
// orchestrator set explicitly are never overwritten.
func TuneForKind(params Parameters, kind GenerationKind, maxTokenLength int) {
	preset := PresetFor(kind)

	setIfAbsent := func(key string, v *float64) {
		if v == nil {
			return
		}
		if _, ok := params[key]; !ok {
			params[key] = *v
		}
	}

	setIfAbsent("temperature", preset.Temperature)
	setIfAbsent("top_p", preset.TopP)
	setIfAbsent("repetition_penalty", preset.RepetitionPenalty)

	if _, ok := params["max_tokens"]; !ok && preset.MaxTokens != nil {
		params["max_tokens"] = *preset.MaxTokens
	}

	if maxTokenLength <= 0 {
		maxTokenLength = DefaultMaxTokenLength
	}
	if mt, ok := params.Int("max_tokens"); ok {
		if mt > maxTokenLength {
			params["max_tokens"] = maxTokenLength
		} else {
			// normalize to int regardless of the incoming numeric type
			params["max_tokens"] = mt
		}
	}
}
