// Package llmnode provides the chat-completion node. Besides plain prompting
// it owns the tool-call flow: when the model requests a tool whose required
// parameters are incomplete, the run suspends with a clarifying question and
// later turns resume here until the tool executes or the round budget runs
// out.
package llmnode

import (
	"context"
	"fmt"

	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/template"
	"github.com/convflow/convflow/pkg/thinking"
	"github.com/convflow/convflow/pkg/toolcall"
)

const defaultUserPrompt = "{{sys.query}}"

// LLMNode runs a chat completion, optionally with tools.
type LLMNode struct {
	id        string
	config    Config
	client    llm.ChatClient
	processor *toolcall.Processor
}

func (n *LLMNode) ID() string {
	return n.id
}

func (n *LLMNode) Type() string {
	return string(models.NodeTypeLLM)
}

func (n *LLMNode) Execute(ctx context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	if state := ec.ToolCallState; state != nil && state.ShouldPauseWorkflow() && state.PausedNodeID == n.id {
		return n.resumeCollection(ctx, ec, state)
	}

	return n.chat(ctx, ec)
}

// chat performs a fresh completion. A tool request switches the node into
// the parameter-collection flow.
func (n *LLMNode) chat(ctx context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	req := llm.ChatRequest{
		SystemPrompt: template.Render(n.config.SystemPrompt, ec),
		Messages:     n.buildMessages(ec),
		Temperature:  n.config.Temperature,
		Model:        n.config.Model,
	}

	for i := range n.config.Tools {
		req.Tools = append(req.Tools, toolSpec(&n.config.Tools[i]))
	}

	resp, err := n.client.Chat(ctx, req)
	if err != nil {
		return models.Fail{Err: err}, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.ToolCalls) > 0 {
		return n.beginToolCall(ctx, ec, resp)
	}

	answer, thought := thinking.Extract(resp.Text, resp.RawBody)
	if thought != "" {
		ec.SetVariable("_thinking_"+n.id, thought)
	}

	ec.SetOutput(n.id, answer)
	ec.FinalReply = answer
	if n.config.OutputVariable != "" {
		ec.SetVariable(n.config.OutputVariable, answer)
	}

	return models.Continue{Output: answer}, nil
}

// beginToolCall seeds the tool-call state from the model's request and runs
// the first processing step.
func (n *LLMNode) beginToolCall(ctx context.Context, ec *models.ExecutionContext, resp *llm.ChatResponse) (models.Outcome, error) {
	call := resp.ToolCalls[0]

	tool := n.toolByName(call.Name)
	if tool == nil {
		return models.Fail{Err: fmt.Errorf("model requested unknown tool %s", call.Name)},
			fmt.Errorf("model requested unknown tool %s", call.Name)
	}

	state := ec.GetOrCreateToolCallState()
	state.Reset()
	state.Status = models.ToolCallDetected
	state.PausedNodeID = n.id
	state.RawToolCallText = resp.Text
	if tool.MaxRounds > 0 {
		state.MaxRounds = tool.MaxRounds
	}

	req := models.ToolCallRequest{
		ID:        call.ID,
		ToolName:  call.Name,
		ToolID:    tool.ID,
		Arguments: call.Arguments,
	}
	state.AddToolCall(req)
	state.CurrentToolCall = &req

	return n.step(ctx, ec, state, tool)
}

// resumeCollection handles a user turn answering a clarifying question.
func (n *LLMNode) resumeCollection(ctx context.Context, ec *models.ExecutionContext, state *models.ToolCallState) (models.Outcome, error) {
	tool := n.toolForState(state)
	if tool == nil {
		state.Reset()

		return models.Fail{Err: fmt.Errorf("pending tool call references unknown tool")},
			fmt.Errorf("pending tool call references unknown tool")
	}

	extracted, err := n.client.Extract(ctx, state.MissingParams, ec.Query)
	if err != nil {
		return models.Fail{Err: err}, fmt.Errorf("failed to extract tool parameters: %w", err)
	}

	toolcall.MergeUserParams(state, extracted)
	toolcall.AdvanceRound(state)

	return n.step(ctx, ec, state, tool)
}

// step runs one processing round and maps the result onto an outcome.
func (n *LLMNode) step(ctx context.Context, ec *models.ExecutionContext, state *models.ToolCallState, tool *toolcall.ToolDefinition) (models.Outcome, error) {
	result := n.processor.Process(ctx, state, tool)

	switch {
	case result.NeedsInput:
		state.PausedNodeID = n.id
		reason := "missing_param"
		if len(state.MissingParams) > 0 {
			reason = "missing_param:" + state.MissingParams[0]
		}
		ec.PauseWorkflow(reason, result.Question)
		ec.FinalReply = result.Question

		return models.Suspend{Reason: reason, Message: result.Question}, nil

	case result.Executed:
		ec.SetToolParams(tool.Name, state.CollectedParams)
		ec.ResumeWorkflow()
		state.Reset()

		ec.SetOutput(n.id, result.Output)
		if n.config.OutputVariable != "" {
			ec.SetVariable(n.config.OutputVariable, result.Output)
		}

		return models.Continue{Output: result.Output}, nil

	default:
		// Round budget exhausted or tool failure: terminal, user-visible.
		ec.ResumeWorkflow()
		state.Reset()
		ec.FinalReply = result.Message
		ec.SetOutput(n.id, result.Message)

		return models.Complete{
			FinalReply:    result.Message,
			HumanTransfer: ec.NeedHumanTransfer,
			Reason:        ec.HumanTransferReason,
		}, nil
	}
}

// buildMessages assembles the bounded history window plus the rendered user
// prompt.
func (n *LLMNode) buildMessages(ec *models.ExecutionContext) []llm.Message {
	var messages []llm.Message

	history := ec.ChatHistory
	if n.config.HistoryCount > 0 && len(history) > n.config.HistoryCount {
		history = history[len(history)-n.config.HistoryCount:]
	}
	if n.config.HistoryCount == 0 {
		history = nil
	}

	for _, item := range history {
		messages = append(messages, llm.Message{Role: item.Role, Content: item.Content})
	}

	prompt := n.config.UserPrompt
	if prompt == "" {
		prompt = defaultUserPrompt
	}

	messages = append(messages, llm.Message{Role: "user", Content: template.Render(prompt, ec)})

	return messages
}

func (n *LLMNode) toolByName(name string) *toolcall.ToolDefinition {
	for i := range n.config.Tools {
		if n.config.Tools[i].Name == name {
			return &n.config.Tools[i]
		}
	}

	return nil
}

func (n *LLMNode) toolForState(state *models.ToolCallState) *toolcall.ToolDefinition {
	if state.CurrentToolCall == nil {
		return nil
	}

	for i := range n.config.Tools {
		t := &n.config.Tools[i]
		if (state.CurrentToolCall.ToolID != "" && t.ID == state.CurrentToolCall.ToolID) ||
			t.Name == state.CurrentToolCall.ToolName {
			return t
		}
	}

	return nil
}

// toolSpec converts a tool definition into the provider-facing spec.
func toolSpec(tool *toolcall.ToolDefinition) llm.ToolSpec {
	properties := make(map[string]any, len(tool.Parameters))
	var required []string

	for _, p := range tool.Parameters {
		paramType := p.Type
		if paramType == "" {
			paramType = "string"
		}
		properties[p.Name] = map[string]any{
			"type":        paramType,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return llm.ToolSpec{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
