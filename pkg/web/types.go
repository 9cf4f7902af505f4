// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"time"

	"github.com/convflow/convflow/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"         validate:"required,min=3"`
	Description string         `json:"description"`
	Graph       models.Graph   `json:"graph"`
	Enabled     bool           `json:"enabled"`
	TriggerType string         `json:"trigger_type" validate:"omitempty,oneof=ALL CHAT WEBHOOK SCHEDULE"`
	Variables   map[string]any `json:"variables"`
	Owner       string         `json:"owner"`
}

// UpdateWorkflowRequest represents the request body for updating a workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string        `json:"description,omitempty"`
	Graph       *models.Graph  `json:"graph,omitempty"`
	TriggerType *string        `json:"trigger_type,omitempty" validate:"omitempty,oneof=ALL CHAT WEBHOOK SCHEDULE"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// ExecuteTurnRequest represents one inbound user message.
type ExecuteTurnRequest struct {
	WorkflowID   string         `json:"workflow_id,omitempty"`
	SessionID    string         `json:"session_id"   validate:"required"`
	MessageID    string         `json:"message_id,omitempty"`
	TenantID     string         `json:"tenant_id,omitempty"`
	CustomerID   string         `json:"customer_id,omitempty"`
	Query        string         `json:"query"        validate:"required"`
	CustomerInfo map[string]any `json:"customer_info,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	HistoryLimit int            `json:"history_limit,omitempty" validate:"omitempty,min=1,max=100"`

	AgentSession *models.AgentSessionRef `json:"agent_session,omitempty"`
}

// PausedStateResponse is the externally visible view of a suspension. The
// serialized context blobs stay internal.
type PausedStateResponse struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	WorkflowID   string    `json:"workflow_id"`
	NodeID       string    `json:"node_id"`
	Reason       string    `json:"reason,omitempty"`
	NextQuestion string    `json:"next_question,omitempty"`
	CurrentRound int       `json:"current_round"`
	MaxRounds    int       `json:"max_rounds"`
	PendingTool  string    `json:"pending_tool,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiredAt    time.Time `json:"expired_at"`
}

// TransformPausedState filters a suspension record for API exposure.
func TransformPausedState(state *models.WorkflowPausedState) PausedStateResponse {
	return PausedStateResponse{
		ID:           state.ID,
		SessionID:    state.SessionID,
		WorkflowID:   state.WorkflowID,
		NodeID:       state.LLMNodeID,
		Reason:       state.PauseReason,
		NextQuestion: state.NextQuestion,
		CurrentRound: state.CurrentRound,
		MaxRounds:    state.MaxRounds,
		PendingTool:  state.PendingTool,
		Status:       string(state.Status),
		CreatedAt:    state.CreatedAt,
		ExpiredAt:    state.ExpiredAt,
	}
}
