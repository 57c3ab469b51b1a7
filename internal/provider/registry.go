package provider

import (
	"fmt"
	"sort"

	"github.com/alanmeadows/autodev/internal/issue"
)

// Registry maps provider names to registered clients.
type Registry struct {
	clients map[string]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a client, keyed by its Name().
func (r *Registry) Register(c Client) {
	r.clients[c.Name()] = c
}

// Get returns the client for a provider name.
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("no client registered for provider %q (registered: %v)", name, r.Names())
	}
	return c, nil
}

// For returns the client serving a parsed issue reference.
func (r *Registry) For(ref issue.Ref) (Client, error) {
	return r.Get(string(ref.Provider))
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
