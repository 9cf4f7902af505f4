// Package start provides the workflow entry node.
package start

import (
	"context"
	"encoding/json"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
)

// StartNode normalizes the inbound query into the first node output so
// downstream nodes always have a lastOutput.
type StartNode struct {
	id string
}

// NewStartNode creates a start node. The config blob is unused.
func NewStartNode(id string, _ json.RawMessage) (*StartNode, error) {
	return &StartNode{id: id}, nil
}

func (n *StartNode) ID() string {
	return n.id
}

func (n *StartNode) Type() string {
	return string(models.NodeTypeStart)
}

func (n *StartNode) Execute(_ context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	ec.SetOutput(n.id, ec.Query)

	return models.Continue{Output: ec.Query}, nil
}

// Factory creates StartNode instances.
type Factory struct{}

func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewStartNode(id, config)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeStart)
}

func (f *Factory) Name() string {
	return "Start"
}

func (f *Factory) Description() string {
	return "Entry point of the workflow; seeds the inbound query as the first output."
}
