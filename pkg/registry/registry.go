// Package registry holds the node factories available to the execution
// driver.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/convflow/convflow/pkg/protocol"
)

// Registry maps node types to their factories. The node set is closed at
// startup; factories are registered once during wiring.
type Registry struct {
	logger        *slog.Logger
	nodeFactories map[string]protocol.NodeFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

// RegisterNode adds a node factory, replacing any previous factory for the
// same type.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.nodeFactories[factory.ID()] = factory
}

// CreateNode instantiates a handler for a graph node.
func (r *Registry) CreateNode(nodeType, nodeID string, config json.RawMessage) (protocol.Node, error) {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type %q not registered", nodeType)
	}

	return factory.Create(nodeID, config)
}

// AvailableNodeTypes returns the registered node types, sorted.
func (r *Registry) AvailableNodeTypes() []string {
	types := make([]string, 0, len(r.nodeFactories))
	for t := range r.nodeFactories {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}
