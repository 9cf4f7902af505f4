// Package intent provides the intent classification node. It asks the chat
// model to pick one intent from the configured list and routes the traversal
// to the edge whose sourceHandle matches the chosen intent id. Anything the
// model cannot place lands on the "default" handle.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
	"github.com/convflow/convflow/pkg/thinking"
)

// DefaultBranch is the fallback handle for unclassifiable queries.
const DefaultBranch = "default"

// Intent is one classification target.
type Intent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Config holds the intent node options.
type Config struct {
	Intents []Intent `json:"intents"`
	Model   string   `json:"model,omitempty"`
}

// IntentNode classifies the inbound query against a closed intent list.
type IntentNode struct {
	id     string
	config Config
	client llm.ChatClient
}

func NewIntentNode(id string, raw json.RawMessage, client llm.ChatClient) (*IntentNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse intent node config: %w", err)
		}
	}
	if len(config.Intents) == 0 {
		return nil, fmt.Errorf("intent node %s has no intents configured", id)
	}

	return &IntentNode{id: id, config: config, client: client}, nil
}

func (n *IntentNode) ID() string {
	return n.id
}

func (n *IntentNode) Type() string {
	return string(models.NodeTypeIntent)
}

func (n *IntentNode) Execute(ctx context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	resp, err := n.client.Chat(ctx, llm.ChatRequest{
		SystemPrompt: n.classifierPrompt(),
		Messages:     []llm.Message{{Role: "user", Content: ec.Query}},
		Model:        n.config.Model,
	})
	if err != nil {
		return models.Fail{Err: err}, fmt.Errorf("failed to classify intent: %w", err)
	}

	answer, _ := thinking.Extract(resp.Text, resp.RawBody)

	intentID, confidence := n.parseAnswer(answer)

	ec.Intent = intentID
	ec.IntentConfidence = confidence
	ec.SetOutput(n.id, intentID)

	return models.Continue{Output: intentID, Branch: intentID}, nil
}

// classifierPrompt asks for a strict "<intentId>|<confidence>" answer so
// parsing stays trivial.
func (n *IntentNode) classifierPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are an intent classifier. Pick exactly one intent id for the user message from this list:\n")
	for _, it := range n.config.Intents {
		sb.WriteString("- ")
		sb.WriteString(it.ID)
		sb.WriteString(": ")
		sb.WriteString(it.Name)
		if it.Description != "" {
			sb.WriteString(" (")
			sb.WriteString(it.Description)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("If none fit, answer \"default\". Reply with only \"<intentId>|<confidence between 0 and 1>\".")

	return sb.String()
}

func (n *IntentNode) parseAnswer(answer string) (string, float64) {
	answer = strings.TrimSpace(answer)

	id := answer
	confidence := 1.0
	if idx := strings.IndexByte(answer, '|'); idx >= 0 {
		id = strings.TrimSpace(answer[:idx])
		if _, err := fmt.Sscanf(strings.TrimSpace(answer[idx+1:]), "%f", &confidence); err != nil {
			confidence = 1.0
		}
	}

	for _, it := range n.config.Intents {
		if strings.EqualFold(it.ID, id) {
			return it.ID, confidence
		}
	}

	return DefaultBranch, confidence
}

// Factory creates IntentNode instances bound to a shared chat client.
type Factory struct {
	client llm.ChatClient
}

func NewFactory(client llm.ChatClient) protocol.NodeFactory {
	return &Factory{client: client}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewIntentNode(id, config, f.client)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeIntent)
}

func (f *Factory) Name() string {
	return "Intent"
}

func (f *Factory) Description() string {
	return "Classifies the user query against a configured intent list."
}
