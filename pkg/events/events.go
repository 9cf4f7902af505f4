// Package events defines the lifecycle notifications published for
// conversation workflow runs.
package events

import (
	"time"
)

type EventType string

// Topic is the Kafka topic carrying all workflow execution events.
const Topic = "convflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events, one run = one chat turn.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"

	// Suspension sweep events.
	PausedStateExpiredEvent EventType = "paused_state.expired"

	// Definition management events.
	WorkflowSavedEvent   EventType = "workflow.saved"
	WorkflowDeletedEvent EventType = "workflow.deleted"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	SessionID  string         `json:"session_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	MessageID string `json:"message_id,omitempty"`
	Query     string `json:"query,omitempty"`
	Resumed   bool   `json:"resumed"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Reply         string        `json:"reply,omitempty"`
	HumanTransfer bool          `json:"human_transfer"`
	Duration      time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	NodeID   string        `json:"node_id,omitempty"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionPaused struct {
	BaseEvent

	PausedStateID string    `json:"paused_state_id"`
	NodeID        string    `json:"node_id"`
	Reason        string    `json:"reason,omitempty"`
	Question      string    `json:"question,omitempty"`
	ExpiredAt     time.Time `json:"expired_at"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	PausedStateID string `json:"paused_state_id"`
	NodeID        string `json:"node_id"`
	Round         int    `json:"round"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type PausedStateExpired struct {
	BaseEvent

	ExpiredCount int `json:"expired_count"`
	PurgedCount  int `json:"purged_count"`
}

func (e PausedStateExpired) GetType() EventType {
	return PausedStateExpiredEvent
}

type WorkflowSaved struct {
	BaseEvent

	Name    string `json:"name"`
	Version int    `json:"version"`
	Enabled bool   `json:"enabled"`
}

func (e WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (e WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}
