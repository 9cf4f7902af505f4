// Package protocol defines the contracts between the execution driver and
// node handlers.
package protocol

import (
	"context"
	"encoding/json"

	"github.com/convflow/convflow/pkg/models"
)

// Node is one executable handler instance bound to a graph node. Execute
// mutates the context synchronously and returns an explicit outcome;
// suspension travels as a value, never as a panic.
type Node interface {
	// ID returns the graph node id this instance is bound to.
	ID() string

	// Type returns the node type identifier (start, llm, condition, ...).
	Type() string

	// Execute runs the node against the context. A returned error is an
	// unexpected fault and is treated as models.Fail by the driver.
	Execute(ctx context.Context, ec *models.ExecutionContext) (models.Outcome, error)
}

// NodeFactory creates node instances for one node type and describes it.
type NodeFactory interface {
	// Create builds a handler for a graph node with its raw config blob.
	Create(id string, config json.RawMessage) (Node, error)

	// ID returns the node type this factory serves.
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns what this node type does.
	Description() string
}
