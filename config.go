package talemate

// DefaultMaxTokenLength is the context window assumed when a configuration
// does not carry one.
const DefaultMaxTokenLength = 8192

// ClientConfig holds the connection settings for a backend client.
// It is constructed once at client creation and mutated in place through
// Apply whenever the orchestrator reconfigures the client. It is never
// persisted by this layer.
type ClientConfig struct {
	// APIURL is the base URL of the remote API.
	APIURL string `yaml:"api_url"`

	// APIKey authenticates against the remote API. May be empty for local
	// backends that do not check credentials.
	APIKey string `yaml:"api_key"`

	// MaxTokenLength is the context window the client may assume.
	MaxTokenLength int `yaml:"max_token_length"`

	// Model is the model identifier sent with every request.
	Model string `yaml:"model"`

	// APIHandlesPromptTemplate indicates the remote API applies its own
	// prompt templating, in which case local templating is bypassed and
	// output coercion is unavailable.
	APIHandlesPromptTemplate bool `yaml:"api_handles_prompt_template"`
}

// DefaultConfig returns the settings used for a freshly created client.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		APIURL:         "http://localhost:5000",
		MaxTokenLength: DefaultMaxTokenLength,
	}
}

// ConfigUpdate is a partial configuration update. Every field is optional;
// nil fields leave the current value in place. Using an explicit struct
// instead of a loosely-typed map means a misspelled setting fails to compile
// rather than being silently ignored.
type ConfigUpdate struct {
	APIURL                   *string
	APIKey                   *string
	MaxTokenLength           *int
	Model                    *string
	APIHandlesPromptTemplate *bool
}

// Apply merges the update into the configuration. Apply is idempotent.
//
// Two quirks of the reconfiguration contract: an empty model name is ignored
// rather than clearing the model, and a non-positive max token length falls
// back to DefaultMaxTokenLength.
func (c *ClientConfig) Apply(u ConfigUpdate) {
	if u.APIURL != nil {
		c.APIURL = *u.APIURL
	}
	if u.APIKey != nil {
		c.APIKey = *u.APIKey
	}
	if u.MaxTokenLength != nil {
		if *u.MaxTokenLength > 0 {
			c.MaxTokenLength = *u.MaxTokenLength
		} else {
			c.MaxTokenLength = DefaultMaxTokenLength
		}
	}
	if u.Model != nil && *u.Model != "" {
		c.Model = *u.Model
	}
	if u.APIHandlesPromptTemplate != nil {
		c.APIHandlesPromptTemplate = *u.APIHandlesPromptTemplate
	}
}
