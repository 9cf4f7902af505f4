package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChatHistoryItem is one prior turn of the conversation as seen by the engine.
type ChatHistoryItem struct {
	Role      string `json:"role"` // user / assistant
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// AgentSessionRef is the embedded agent-session reference injected when a
// workflow runs on behalf of a special agent session. Only SysPrompt is
// template-addressable.
type AgentSessionRef struct {
	ID        string `json:"id"`
	SysPrompt string `json:"sys_prompt"`
}

// NodeExecutionDetail records timing and result of one node invocation.
type NodeExecutionDetail struct {
	NodeID       string `json:"node_id"`
	NodeType     string `json:"node_type"`
	NodeName     string `json:"node_name,omitempty"`
	Input        any    `json:"input,omitempty"`
	Output       any    `json:"output,omitempty"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	DurationMs   int64  `json:"duration_ms"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ExecutionContext is the mutable state threaded through one workflow run.
// It is owned exclusively by the handling request; all mutation happens
// synchronously within one graph traversal or its resumption, so it carries
// no locking.
type ExecutionContext struct {
	WorkflowID string `json:"workflow_id"`
	SessionID  string `json:"session_id"`
	MessageID  string `json:"message_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`

	Query string   `json:"query"`
	Files []string `json:"files,omitempty"`

	Intent           string  `json:"intent,omitempty"`
	IntentConfidence float64 `json:"intent_confidence,omitempty"`
	Entities         map[string]any `json:"entities,omitempty"`

	NodesConfig map[string]json.RawMessage `json:"nodes_config,omitempty"`
	NodeLabels  map[string]string          `json:"node_labels,omitempty"`
	NodeOutputs map[string]any             `json:"node_outputs,omitempty"`

	ExecutionDetails []NodeExecutionDetail `json:"execution_details,omitempty"`

	FinalReply          string `json:"final_reply,omitempty"`
	NeedHumanTransfer   bool   `json:"need_human_transfer"`
	HumanTransferReason string `json:"human_transfer_reason,omitempty"`

	Variables    map[string]any            `json:"variables,omitempty"`
	ChatHistory  []ChatHistoryItem         `json:"chat_history,omitempty"`
	CustomerInfo map[string]any            `json:"customer_info,omitempty"`
	ToolsParams  map[string]map[string]any `json:"tools_params,omitempty"`

	ToolCallState *ToolCallState   `json:"tool_call_state,omitempty"`
	AgentSession  *AgentSessionRef `json:"agent_session,omitempty"`

	Paused       bool   `json:"paused"`
	PauseReason  string `json:"pause_reason,omitempty"`
	PauseMessage string `json:"pause_message,omitempty"`
}

// NewExecutionContext creates a context for one run with all maps allocated.
func NewExecutionContext(workflowID, sessionID, query string) *ExecutionContext {
	return &ExecutionContext{
		WorkflowID:   workflowID,
		SessionID:    sessionID,
		Query:        query,
		Entities:     make(map[string]any),
		NodesConfig:  make(map[string]json.RawMessage),
		NodeLabels:   make(map[string]string),
		NodeOutputs:  make(map[string]any),
		Variables:    make(map[string]any),
		CustomerInfo: make(map[string]any),
		ToolsParams:  make(map[string]map[string]any),
	}
}

// NodeConfig returns the raw config blob for a node, or nil when absent.
func (c *ExecutionContext) NodeConfig(nodeID string) json.RawMessage {
	return c.NodesConfig[nodeID]
}

// SetOutput records a node's output.
func (c *ExecutionContext) SetOutput(nodeID string, output any) {
	if c.NodeOutputs == nil {
		c.NodeOutputs = make(map[string]any)
	}

	c.NodeOutputs[nodeID] = output
}

// Output returns a node's recorded output, or nil.
func (c *ExecutionContext) Output(nodeID string) any {
	return c.NodeOutputs[nodeID]
}

// LastOutput returns the output recorded by the most recent node execution.
// Only the final execution detail counts: a node that produced no output
// resets the chain, and the query is the neutral fallback. It never returns
// an empty marker for "nothing ran".
func (c *ExecutionContext) LastOutput() string {
	if len(c.ExecutionDetails) == 0 {
		return c.Query
	}

	if out := c.ExecutionDetails[len(c.ExecutionDetails)-1].Output; out != nil {
		return stringify(out)
	}

	return c.Query
}

// PreviousOutput is an alias for LastOutput.
func (c *ExecutionContext) PreviousOutput() string {
	return c.LastOutput()
}

// AddExecutionDetail appends a node execution record.
func (c *ExecutionContext) AddExecutionDetail(detail NodeExecutionDetail) {
	c.ExecutionDetails = append(c.ExecutionDetails, detail)
}

// SetVariable stores a named variable.
func (c *ExecutionContext) SetVariable(key string, value any) {
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}

	c.Variables[key] = value
}

// Variable returns a named variable, or nil.
func (c *ExecutionContext) Variable(key string) any {
	return c.Variables[key]
}

// SetToolParams stores the accumulated parameter map for a tool.
func (c *ExecutionContext) SetToolParams(toolName string, params map[string]any) {
	if c.ToolsParams == nil {
		c.ToolsParams = make(map[string]map[string]any)
	}

	c.ToolsParams[toolName] = params
}

// ToolParams returns the accumulated parameter map for a tool, or nil.
func (c *ExecutionContext) ToolParams(toolName string) map[string]any {
	return c.ToolsParams[toolName]
}

// GetOrCreateToolCallState lazily creates the tool-call state. Once any tool
// flow has started the context never holds a nil state.
func (c *ExecutionContext) GetOrCreateToolCallState() *ToolCallState {
	if c.ToolCallState == nil {
		c.ToolCallState = NewToolCallState()
	}

	return c.ToolCallState
}

// PauseWorkflow sets the pause triple atomically.
func (c *ExecutionContext) PauseWorkflow(reason, message string) {
	c.Paused = true
	c.PauseReason = reason
	c.PauseMessage = message
}

// ResumeWorkflow clears the pause triple.
func (c *ExecutionContext) ResumeWorkflow() {
	c.Paused = false
	c.PauseReason = ""
	c.PauseMessage = ""
}

// AppendChatHistory appends one turn to the in-context history.
func (c *ExecutionContext) AppendChatHistory(role, content string) {
	c.ChatHistory = append(c.ChatHistory, ChatHistoryItem{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
