package models

import "time"

// PausedStateStatus is the lifecycle status of a durable suspension record.
type PausedStateStatus string

const (
	PausedStatusWaitingUserInput PausedStateStatus = "WAITING_USER_INPUT"
	PausedStatusResumed          PausedStateStatus = "RESUMED"
	PausedStatusCompleted        PausedStateStatus = "COMPLETED"
	PausedStatusExpired          PausedStateStatus = "EXPIRED"
	PausedStatusCancelled        PausedStateStatus = "CANCELLED"
)

// PausedStateSchemaVersion is the current serialization format of the
// context/tool-state blobs. Records with an unknown version are never
// deserialized; they are cancelled and the turn starts over.
const PausedStateSchemaVersion = 1

// DefaultPauseTTL is how long a suspension waits for the user before the
// sweep expires it.
const DefaultPauseTTL = 30 * time.Minute

// WorkflowPausedState is the durable record of a suspended execution,
// keyed by conversation session. At most one record per session may be in
// WAITING_USER_INPUT at a time.
type WorkflowPausedState struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"session_id"`
	WorkflowID    string            `json:"workflow_id"`
	TenantID      string            `json:"tenant_id,omitempty"`
	SubChainID    string            `json:"sub_chain_id"`
	LLMNodeID     string            `json:"llm_node_id"`
	PauseReason   string            `json:"pause_reason,omitempty"`
	SchemaVersion int               `json:"schema_version"`
	ContextJSON   string            `json:"context_json,omitempty"`
	ToolStateJSON string            `json:"tool_state_json,omitempty"`
	ParamsJSON    string            `json:"params_json,omitempty"`
	HistoryJSON   string            `json:"history_json,omitempty"`
	CurrentRound  int               `json:"current_round"`
	MaxRounds     int               `json:"max_rounds"`
	PendingToolID string            `json:"pending_tool_id,omitempty"`
	PendingTool   string            `json:"pending_tool_name,omitempty"`
	NextQuestion  string            `json:"next_question,omitempty"`
	Status        PausedStateStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ExpiredAt     time.Time         `json:"expired_at"`
}

// Expired reports whether the record is past its expiry, regardless of
// whether the sweep has transitioned its status yet.
func (s *WorkflowPausedState) Expired(now time.Time) bool {
	return !s.ExpiredAt.IsZero() && now.After(s.ExpiredAt)
}
