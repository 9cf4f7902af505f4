package models

import "time"

// Workflow is a stored conversation workflow with its executable graph.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Graph       Graph          `json:"graph"`
	Enabled     bool           `json:"enabled"`
	IsDefault   bool           `json:"is_default"`
	Version     int            `json:"version"`
	TriggerType string         `json:"trigger_type,omitempty"` // ALL, CHAT, WEBHOOK, SCHEDULE
	Variables   map[string]any `json:"variables,omitempty"`
	Owner       string         `json:"owner,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// ExecutionLog is the persisted record of one workflow run (one chat turn).
type ExecutionLog struct {
	ID              string    `json:"id"`
	WorkflowID      string    `json:"workflow_id"`
	SessionID       string    `json:"session_id"`
	MessageID       string    `json:"message_id,omitempty"`
	TenantID        string    `json:"tenant_id,omitempty"`
	Query           string    `json:"query"`
	Reply           string    `json:"reply,omitempty"`
	Success         bool      `json:"success"`
	Paused          bool      `json:"paused"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	NodeDetailsJSON string    `json:"node_details_json,omitempty"`
	DurationMs      int64     `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
