package llmnode

import (
	"encoding/json"
	"fmt"

	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
	"github.com/convflow/convflow/pkg/toolcall"
)

// Config holds the llm node options.
type Config struct {
	// SystemPrompt and UserPrompt are templates rendered per turn.
	SystemPrompt string `json:"systemPrompt,omitempty"`
	UserPrompt   string `json:"userPrompt,omitempty"`
	Model        string `json:"model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	// HistoryCount is the number of prior turns sent to the model.
	HistoryCount int `json:"historyCount,omitempty"`
	// Tools the model may call from this node.
	Tools []toolcall.ToolDefinition `json:"tools,omitempty"`
	// OutputVariable additionally stores the answer under this variable.
	OutputVariable string `json:"outputVariable,omitempty"`
}

// NewLLMNode parses the config and binds the chat client and tool invoker.
func NewLLMNode(id string, raw json.RawMessage, client llm.ChatClient, invoker toolcall.Invoker) (*LLMNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse llm node config: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(config.Tools))
	for _, tool := range config.Tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("llm node %s has a tool without a name", id)
		}
		if _, dup := seen[tool.Name]; dup {
			return nil, fmt.Errorf("llm node %s declares tool %s twice", id, tool.Name)
		}
		seen[tool.Name] = struct{}{}
	}

	return &LLMNode{
		id:        id,
		config:    config,
		client:    client,
		processor: toolcall.NewProcessor(invoker),
	}, nil
}

// Factory creates LLMNode instances bound to shared collaborators.
type Factory struct {
	client  llm.ChatClient
	invoker toolcall.Invoker
}

func NewFactory(client llm.ChatClient, invoker toolcall.Invoker) protocol.NodeFactory {
	return &Factory{client: client, invoker: invoker}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewLLMNode(id, config, f.client, f.invoker)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeLLM)
}

func (f *Factory) Name() string {
	return "LLM"
}

func (f *Factory) Description() string {
	return "Runs a chat completion with optional tool calling and parameter collection."
}
