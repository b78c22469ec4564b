package talemate

import (
	"fmt"
	"sync"
)

// ClientFactory constructs a backend client from a configuration bundle.
type ClientFactory func(cfg ClientConfig) (Client, error)

// ClientDefinition describes a registrable backend client type.
type ClientDefinition struct {
	Type    string        // Unique type tag ("openai_compat", "anthropic", ...)
	Label   string        // Human-readable name shown to users
	Factory ClientFactory // Factory function to create the client
}

// ClientRegistry associates type tags with client factories so the host
// system can instantiate backends by name.
type ClientRegistry struct {
	defs map[string]ClientDefinition
	mu   sync.RWMutex
}

var (
	globalClientRegistry     *ClientRegistry
	globalClientRegistryOnce sync.Once
)

// GetClientRegistry returns the global client registry (singleton).
// Backend packages register themselves here from their init functions.
func GetClientRegistry() *ClientRegistry {
	globalClientRegistryOnce.Do(func() {
		globalClientRegistry = &ClientRegistry{
			defs: make(map[string]ClientDefinition),
		}
	})
	return globalClientRegistry
}

// Register adds a client definition to the registry.
func (r *ClientRegistry) Register(def ClientDefinition) error {
	if def.Type == "" {
		return fmt.Errorf("client type tag is required")
	}
	if def.Factory == nil {
		return fmt.Errorf("factory function is required for client %s", def.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Type]; exists {
		return fmt.Errorf("client %s is already registered", def.Type)
	}

	r.defs[def.Type] = def
	return nil
}

// Get retrieves a client definition by type tag.
func (r *ClientRegistry) Get(clientType string) (ClientDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.defs[clientType]
	if !exists {
		return ClientDefinition{}, fmt.Errorf("unknown client type: %s", clientType)
	}
	return def, nil
}

// IsRegistered checks if a client type is registered.
func (r *ClientRegistry) IsRegistered(clientType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.defs[clientType]
	return exists
}

// Types returns all registered client type tags.
func (r *ClientRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	return types
}

// Create instantiates a client of the given type with the configuration.
func (r *ClientRegistry) Create(clientType string, cfg ClientConfig) (Client, error) {
	def, err := r.Get(clientType)
	if err != nil {
		return nil, err
	}
	return def.Factory(cfg)
}

// RegisterClient registers a client definition with the global registry.
func RegisterClient(def ClientDefinition) error {
	return GetClientRegistry().Register(def)
}

// CreateClient instantiates a client using the global registry.
func CreateClient(clientType string, cfg ClientConfig) (Client, error) {
	return GetClientRegistry().Create(clientType, cfg)
}
