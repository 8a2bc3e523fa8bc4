// Package connector keeps the named link sources the pipeline can sync.
package connector

import (
	"fmt"
	"sort"

	"ArticleDesk/internal/ports"
)

// Registry keeps a mapping from connector names to their implementations.
type Registry struct {
	connectors map[string]ports.Connector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: map[string]ports.Connector{}}
}

// Register adds or replaces a connector implementation. Nil connectors are ignored.
func (r *Registry) Register(conn ports.Connector) {
	if conn == nil {
		return
	}
	if r.connectors == nil {
		r.connectors = map[string]ports.Connector{}
	}
	r.connectors[conn.Name()] = conn
}

// Resolve returns a connector by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Connector, error) {
	if conn, ok := r.connectors[name]; ok {
		return conn, nil
	}
	return nil, fmt.Errorf("connector %s is not registered", name)
}

// Names lists registered connectors in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
