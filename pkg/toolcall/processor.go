// Package toolcall drives the multi-round parameter-collection dialogue for
// tool invocations requested by an LLM node. Each inbound user turn during
// an active collection advances one round; missing required parameters make
// the run suspend with a clarifying question instead of failing.
package toolcall

import (
	"context"
	"fmt"
	"strings"

	"github.com/convflow/convflow/pkg/models"
)

// ParamDefinition describes one tool parameter.
type ParamDefinition struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Type        string `json:"type,omitempty"` // string, integer, number, boolean
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// ToolDefinition describes one tool available to an LLM node, declared in
// the node's config.
type ToolDefinition struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Endpoint       string            `json:"endpoint,omitempty"`
	Method         string            `json:"method,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Parameters     []ParamDefinition `json:"parameters,omitempty"`
	FailureMessage string            `json:"failureMessage,omitempty"`
	MaxRounds      int               `json:"maxRounds,omitempty"`
}

// RequiredParams returns the names of required parameters in order.
func (t *ToolDefinition) RequiredParams() []string {
	var required []string

	for _, p := range t.Parameters {
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return required
}

// ParamByName returns the parameter definition, or nil.
func (t *ToolDefinition) ParamByName(name string) *ParamDefinition {
	for i := range t.Parameters {
		if t.Parameters[i].Name == name {
			return &t.Parameters[i]
		}
	}

	return nil
}

// Invoker executes a tool with its collected parameters.
type Invoker interface {
	Invoke(ctx context.Context, tool *ToolDefinition, params map[string]any) (string, error)
}

// ProcessResult is the outcome of one processing step of the state machine.
type ProcessResult struct {
	// NeedsInput is true when required parameters are still missing and the
	// run must suspend with Question as the reply.
	NeedsInput bool
	Question   string

	// Executed is true when the tool ran; Output carries its result text.
	Executed bool
	Output   string

	// Failed is true for the terminal failure paths (round budget exhausted,
	// tool error); Message is the user-visible text.
	Failed  bool
	Message string
}

// Processor evaluates a tool-call state against a tool definition, merging
// parameters and deciding whether to collect, execute or give up.
type Processor struct {
	invoker Invoker
}

// NewProcessor creates a processor using the given invoker for dispatch.
func NewProcessor(invoker Invoker) *Processor {
	return &Processor{invoker: invoker}
}

// Process merges the current request's arguments into the accumulated
// parameter map, recomputes missing required parameters and either executes
// the tool or asks for more input. The round counter is NOT advanced here;
// AdvanceRound is called once per inbound user turn.
func (p *Processor) Process(ctx context.Context, state *models.ToolCallState, tool *ToolDefinition) ProcessResult {
	if state.CurrentToolCall == nil {
		return ProcessResult{Failed: true, Message: "no pending tool call"}
	}

	merged := make(map[string]any, len(state.CollectedParams))
	for k, v := range state.CollectedParams {
		merged[k] = v
	}

	for k, v := range state.CurrentToolCall.Arguments {
		if !isMissingValue(v) {
			merged[k] = v
		}
	}

	var missing []string

	for _, name := range tool.RequiredParams() {
		if v, ok := merged[name]; !ok || isMissingValue(v) {
			missing = append(missing, name)
		}
	}

	state.CollectedParams = merged
	state.MissingParams = missing

	if len(missing) == 0 {
		return p.execute(ctx, state, tool)
	}

	if state.RoundBudgetExhausted() {
		state.Status = models.ToolCallFailed

		msg := tool.FailureMessage
		if msg == "" {
			msg = "Sorry, I couldn't collect the information needed to complete this request."
		}

		return ProcessResult{Failed: true, Message: msg}
	}

	question := BuildFollowupQuestion(tool, missing)
	state.Status = models.ToolCallWaitingUserInput
	state.NextQuestion = question

	return ProcessResult{NeedsInput: true, Question: question}
}

// MergeUserParams folds parameters extracted from a user's answer into the
// accumulated map, skipping empty values.
func MergeUserParams(state *models.ToolCallState, extracted map[string]any) {
	if state.CollectedParams == nil {
		state.CollectedParams = make(map[string]any)
	}

	for k, v := range extracted {
		if !isMissingValue(v) {
			state.CollectedParams[k] = v
		}
	}
}

// AdvanceRound counts one user/assistant exchange of the collection dialogue.
func AdvanceRound(state *models.ToolCallState) {
	state.CurrentRound++
}

func (p *Processor) execute(ctx context.Context, state *models.ToolCallState, tool *ToolDefinition) ProcessResult {
	state.Status = models.ToolCallExecuting

	output, err := p.invoker.Invoke(ctx, tool, state.CollectedParams)
	if err != nil {
		state.Status = models.ToolCallFailed
		state.AddResult(models.ToolCallResult{
			ToolCallID:   state.CurrentToolCall.ID,
			ToolName:     tool.Name,
			Success:      false,
			ErrorMessage: err.Error(),
		})

		msg := tool.FailureMessage
		if msg == "" {
			msg = fmt.Sprintf("Tool %s failed: %s", tool.Name, err.Error())
		}

		return ProcessResult{Failed: true, Message: msg}
	}

	state.Status = models.ToolCallCompleted
	state.AddResult(models.ToolCallResult{
		ToolCallID: state.CurrentToolCall.ID,
		ToolName:   tool.Name,
		Success:    true,
		Result:     output,
	})

	return ProcessResult{Executed: true, Output: output}
}

// BuildFollowupQuestion produces the clarifying question for the missing
// parameters, preferring display names over raw parameter names.
func BuildFollowupQuestion(tool *ToolDefinition, missing []string) string {
	names := make([]string, 0, len(missing))

	for _, name := range missing {
		label := name
		if def := tool.ParamByName(name); def != nil && def.DisplayName != "" {
			label = def.DisplayName
		}

		names = append(names, label)
	}

	return fmt.Sprintf("To continue, please provide: %s", strings.Join(names, ", "))
}

// isMissingValue treats nil, empty strings and the literal "null" the LLM
// sometimes emits as absent.
func isMissingValue(v any) bool {
	if v == nil {
		return true
	}

	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)

		return trimmed == "" || strings.EqualFold(trimmed, "null")
	}

	return false
}
