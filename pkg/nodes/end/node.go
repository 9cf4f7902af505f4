// Package end provides the terminal workflow node.
package end

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
	"github.com/convflow/convflow/pkg/template"
)

// Config holds the end node options.
type Config struct {
	// Reply is an optional template rendered into the final reply. When
	// empty, the final reply already accumulated on the context wins, then
	// the last node output.
	Reply string `json:"reply,omitempty"`
}

// EndNode finishes the run and fixes the final reply.
type EndNode struct {
	id     string
	config Config
}

func NewEndNode(id string, raw json.RawMessage) (*EndNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse end node config: %w", err)
		}
	}

	return &EndNode{id: id, config: config}, nil
}

func (n *EndNode) ID() string {
	return n.id
}

func (n *EndNode) Type() string {
	return string(models.NodeTypeEnd)
}

func (n *EndNode) Execute(_ context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	reply := ec.FinalReply
	if n.config.Reply != "" {
		reply = template.Render(n.config.Reply, ec)
	}
	if reply == "" {
		reply = toText(ec.LastOutput())
	}

	ec.FinalReply = reply
	ec.SetOutput(n.id, reply)

	return models.Complete{
		FinalReply:    reply,
		HumanTransfer: ec.NeedHumanTransfer,
		Reason:        ec.HumanTransferReason,
	}, nil
}

func toText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Factory creates EndNode instances.
type Factory struct{}

func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewEndNode(id, config)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeEnd)
}

func (f *Factory) Name() string {
	return "End"
}

func (f *Factory) Description() string {
	return "Terminates the workflow and fixes the final reply."
}
