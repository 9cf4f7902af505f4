// Package humantransfer provides the hand-off-to-agent node.
package humantransfer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
	"github.com/convflow/convflow/pkg/template"
)

const defaultMessage = "Transferring you to a human agent."

// Config holds the human transfer node options.
type Config struct {
	// Reason is recorded on the execution context and surfaced to the
	// session layer so it can route the conversation.
	Reason string `json:"reason,omitempty"`
	// Message is the templated reply shown while the transfer happens.
	Message string `json:"message,omitempty"`
}

// TransferNode flags the conversation for human takeover and ends the run.
type TransferNode struct {
	id     string
	config Config
}

func NewTransferNode(id string, raw json.RawMessage) (*TransferNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse human transfer node config: %w", err)
		}
	}

	return &TransferNode{id: id, config: config}, nil
}

func (n *TransferNode) ID() string {
	return n.id
}

func (n *TransferNode) Type() string {
	return string(models.NodeTypeHumanTransfer)
}

func (n *TransferNode) Execute(_ context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	message := defaultMessage
	if n.config.Message != "" {
		message = template.Render(n.config.Message, ec)
	}

	reason := template.Render(n.config.Reason, ec)

	ec.NeedHumanTransfer = true
	ec.HumanTransferReason = reason
	ec.FinalReply = message
	ec.SetOutput(n.id, message)

	return models.Complete{
		FinalReply:    message,
		HumanTransfer: true,
		Reason:        reason,
	}, nil
}

// Factory creates TransferNode instances.
type Factory struct{}

func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewTransferNode(id, config)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeHumanTransfer)
}

func (f *Factory) Name() string {
	return "Human Transfer"
}

func (f *Factory) Description() string {
	return "Ends the run and flags the conversation for human takeover."
}
