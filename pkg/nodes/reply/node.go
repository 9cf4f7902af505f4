// Package reply provides the canned-response node.
package reply

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
	"github.com/convflow/convflow/pkg/template"
)

// Config holds the reply node options.
type Config struct {
	// Text is the reply template. Expressions like {{sys.query}} or
	// {{nodeId.output}} are resolved against the execution context.
	Text string `json:"text"`
	// Terminal ends the run immediately with the rendered text as the
	// final reply instead of continuing to the next node.
	Terminal bool `json:"terminal,omitempty"`
}

// ReplyNode renders a templated message to the user.
type ReplyNode struct {
	id     string
	config Config
}

func NewReplyNode(id string, raw json.RawMessage) (*ReplyNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse reply node config: %w", err)
		}
	}

	return &ReplyNode{id: id, config: config}, nil
}

func (n *ReplyNode) ID() string {
	return n.id
}

func (n *ReplyNode) Type() string {
	return string(models.NodeTypeReply)
}

func (n *ReplyNode) Execute(_ context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	rendered := template.Render(n.config.Text, ec)

	ec.SetOutput(n.id, rendered)
	ec.FinalReply = rendered

	if n.config.Terminal {
		return models.Complete{
			FinalReply:    rendered,
			HumanTransfer: ec.NeedHumanTransfer,
			Reason:        ec.HumanTransferReason,
		}, nil
	}

	return models.Continue{Output: rendered}, nil
}

// Factory creates ReplyNode instances.
type Factory struct{}

func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewReplyNode(id, config)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeReply)
}

func (f *Factory) Name() string {
	return "Reply"
}

func (f *Factory) Description() string {
	return "Renders a templated message as the reply to the user."
}
