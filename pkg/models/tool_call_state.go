package models

// ToolCallStatus is the state of an in-progress tool interaction.
type ToolCallStatus string

const (
	ToolCallIdle             ToolCallStatus = "IDLE"
	ToolCallDetected         ToolCallStatus = "TOOL_CALL_DETECTED"
	ToolCallExtractingParams ToolCallStatus = "EXTRACTING_PARAMS"
	ToolCallWaitingUserInput ToolCallStatus = "WAITING_USER_INPUT"
	ToolCallExecuting        ToolCallStatus = "EXECUTING_TOOL"
	ToolCallCompleted        ToolCallStatus = "TOOL_COMPLETED"
	ToolCallFailed           ToolCallStatus = "TOOL_FAILED"
	ToolCallSkipped          ToolCallStatus = "SKIPPED"
)

// ToolCallRequest is one tool invocation requested by the LLM.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	ToolID    string         `json:"tool_id,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallResult is the outcome of one executed tool invocation.
type ToolCallResult struct {
	ToolCallID   string `json:"tool_call_id"`
	ToolName     string `json:"tool_name"`
	Success      bool   `json:"success"`
	Result       string `json:"result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}

// DefaultMaxRounds bounds the parameter-collection dialogue per tool call.
const DefaultMaxRounds = 5

// ToolCallState tracks a possibly multi-round structured-parameter
// collection dialogue tied to one tool invocation. It is created lazily via
// ExecutionContext.GetOrCreateToolCallState and serialized alongside the
// context when a run suspends.
type ToolCallState struct {
	Status           ToolCallStatus    `json:"status"`
	PendingToolCalls []ToolCallRequest `json:"pending_tool_calls,omitempty"`
	CurrentToolCall  *ToolCallRequest  `json:"current_tool_call,omitempty"`
	CompletedResults []ToolCallResult  `json:"completed_results,omitempty"`
	CollectedParams  map[string]any    `json:"collected_params,omitempty"`
	MissingParams    []string          `json:"missing_params,omitempty"`
	NextQuestion     string            `json:"next_question,omitempty"`
	CurrentRound     int               `json:"current_round"`
	MaxRounds        int               `json:"max_rounds"`
	PausedNodeID     string            `json:"paused_node_id,omitempty"`
	RawToolCallText  string            `json:"raw_tool_call_text,omitempty"`
}

// NewToolCallState returns an idle state with the default round budget.
func NewToolCallState() *ToolCallState {
	return &ToolCallState{
		Status:          ToolCallIdle,
		CollectedParams: make(map[string]any),
		MaxRounds:       DefaultMaxRounds,
	}
}

// Reset returns the state to idle, dropping all accumulated progress.
func (s *ToolCallState) Reset() {
	s.Status = ToolCallIdle
	s.PendingToolCalls = nil
	s.CurrentToolCall = nil
	s.CompletedResults = nil
	s.CollectedParams = make(map[string]any)
	s.MissingParams = nil
	s.NextQuestion = ""
	s.CurrentRound = 0
	s.PausedNodeID = ""
	s.RawToolCallText = ""
}

// ShouldPauseWorkflow reports whether the run must suspend for user input.
func (s *ToolCallState) ShouldPauseWorkflow() bool {
	return s.Status == ToolCallWaitingUserInput
}

// HasAllParams reports whether every required parameter has been collected.
func (s *ToolCallState) HasAllParams() bool {
	return len(s.MissingParams) == 0
}

// RoundBudgetExhausted reports whether the collection dialogue has used up
// its round budget.
func (s *ToolCallState) RoundBudgetExhausted() bool {
	max := s.MaxRounds
	if max <= 0 {
		max = DefaultMaxRounds
	}

	return s.CurrentRound >= max
}

// AddToolCall queues a tool invocation request.
func (s *ToolCallState) AddToolCall(req ToolCallRequest) {
	s.PendingToolCalls = append(s.PendingToolCalls, req)
}

// AddResult records a completed tool execution.
func (s *ToolCallState) AddResult(res ToolCallResult) {
	s.CompletedResults = append(s.CompletedResults, res)
}
