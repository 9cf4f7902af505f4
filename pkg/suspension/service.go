// Package suspension manages the durable pause/resume lifecycle of workflow
// runs waiting for user input.
package suspension

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/events"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

// ErrUnsupportedSchemaVersion indicates a stored record was serialized with
// a format this build does not understand. The caller cancels the record and
// starts the turn fresh instead of guessing.
var ErrUnsupportedSchemaVersion = errors.New("unsupported paused state schema version")

// Service owns the suspension records of workflow runs.
type Service struct {
	logger    *slog.Logger
	repo      persistence.PausedStateRepository
	publisher eventbus.EventPublisher
	ttl       time.Duration
}

// NewService creates a suspension service. A nil publisher disables event
// notifications; a non-positive ttl falls back to the default.
func NewService(logger *slog.Logger, repo persistence.PausedStateRepository, publisher eventbus.EventPublisher, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = models.DefaultPauseTTL
	}

	return &Service{
		logger:    logger.With("module", "suspension"),
		repo:      repo,
		publisher: publisher,
		ttl:       ttl,
	}
}

// Pause persists the suspended run. Any previous pending record of the
// session is cancelled first so at most one suspension is ever live per
// conversation.
func (s *Service) Pause(ctx context.Context, ec *models.ExecutionContext, nodeID, reason, question string) (*models.WorkflowPausedState, error) {
	state, err := buildRecord(ec, nodeID, reason, question, s.ttl)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.repo.CancelPendingBySession(ctx, ec.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel previous pending states: %w", err)
	}

	if cancelled > 0 {
		s.logger.InfoContext(ctx, "Cancelled previous pending suspension",
			"session_id", ec.SessionID, "count", cancelled)
	}

	if err := s.repo.SavePausedState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save paused state: %w", err)
	}

	s.logger.InfoContext(ctx, "Workflow suspended",
		"session_id", ec.SessionID, "workflow_id", ec.WorkflowID,
		"node_id", nodeID, "reason", reason, "expired_at", state.ExpiredAt)

	s.publish(ctx, ec.SessionID, events.ExecutionPaused{
		BaseEvent: events.BaseEvent{
			Type:       events.ExecutionPausedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: ec.WorkflowID,
			SessionID:  ec.SessionID,
			TenantID:   ec.TenantID,
		},
		PausedStateID: state.ID,
		NodeID:        nodeID,
		Reason:        reason,
		Question:      question,
		ExpiredAt:     state.ExpiredAt,
	})

	return state, nil
}

// FindPending returns the session's live suspension, or
// persistence.ErrPausedStateNotFound wrapped when there is none.
func (s *Service) FindPending(ctx context.Context, sessionID string) (*models.WorkflowPausedState, error) {
	return s.repo.FindPendingBySession(ctx, sessionID)
}

// Restore deserializes the execution context captured at suspension time.
// Records with an unknown schema version are refused, never half-decoded.
func (s *Service) Restore(state *models.WorkflowPausedState) (*models.ExecutionContext, error) {
	if state.SchemaVersion != models.PausedStateSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchemaVersion, state.SchemaVersion)
	}

	var ec models.ExecutionContext
	if err := json.Unmarshal([]byte(state.ContextJSON), &ec); err != nil {
		return nil, fmt.Errorf("failed to restore execution context: %w", err)
	}

	if state.ToolStateJSON != "" {
		var toolState models.ToolCallState
		if err := json.Unmarshal([]byte(state.ToolStateJSON), &toolState); err != nil {
			return nil, fmt.Errorf("failed to restore tool call state: %w", err)
		}

		ec.ToolCallState = &toolState
	}

	return &ec, nil
}

// MarkResumed transitions the record out of pending once a new user turn
// picks it up.
func (s *Service) MarkResumed(ctx context.Context, state *models.WorkflowPausedState) error {
	if err := s.repo.UpdatePausedStateStatus(ctx, state.ID, models.PausedStatusResumed); err != nil {
		return fmt.Errorf("failed to mark paused state resumed: %w", err)
	}

	s.publish(ctx, state.SessionID, events.ExecutionResumed{
		BaseEvent: events.BaseEvent{
			Type:       events.ExecutionResumedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: state.WorkflowID,
			SessionID:  state.SessionID,
			TenantID:   state.TenantID,
		},
		PausedStateID: state.ID,
		NodeID:        state.LLMNodeID,
		Round:         state.CurrentRound,
	})

	return nil
}

// MarkCompleted transitions a resumed record to its terminal state after the
// resumed run finished without suspending again.
func (s *Service) MarkCompleted(ctx context.Context, stateID string) error {
	if err := s.repo.UpdatePausedStateStatus(ctx, stateID, models.PausedStatusCompleted); err != nil {
		return fmt.Errorf("failed to mark paused state completed: %w", err)
	}

	return nil
}

// CancelPending cancels the session's pending suspension, if any. Returns
// how many records were cancelled.
func (s *Service) CancelPending(ctx context.Context, sessionID string) (int, error) {
	cancelled, err := s.repo.CancelPendingBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending states: %w", err)
	}

	return cancelled, nil
}

// Cancel cancels a specific record by ID.
func (s *Service) Cancel(ctx context.Context, stateID string) error {
	if err := s.repo.UpdatePausedStateStatus(ctx, stateID, models.PausedStatusCancelled); err != nil {
		return fmt.Errorf("failed to cancel paused state: %w", err)
	}

	return nil
}

func (s *Service) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish suspension event",
			"event_type", event.GetType(), "error", err)
	}
}

// buildRecord serializes the execution context and tool state into a durable
// record with the current schema version.
func buildRecord(ec *models.ExecutionContext, nodeID, reason, question string, ttl time.Duration) (*models.WorkflowPausedState, error) {
	contextJSON, err := json.Marshal(ec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize execution context: %w", err)
	}

	state := &models.WorkflowPausedState{
		SessionID:     ec.SessionID,
		WorkflowID:    ec.WorkflowID,
		TenantID:      ec.TenantID,
		SubChainID:    nodeID,
		LLMNodeID:     nodeID,
		PauseReason:   reason,
		SchemaVersion: models.PausedStateSchemaVersion,
		ContextJSON:   string(contextJSON),
		NextQuestion:  question,
		Status:        models.PausedStatusWaitingUserInput,
		ExpiredAt:     time.Now().UTC().Add(ttl),
	}

	if toolState := ec.ToolCallState; toolState != nil {
		toolStateJSON, err := json.Marshal(toolState)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize tool call state: %w", err)
		}

		state.ToolStateJSON = string(toolStateJSON)
		state.CurrentRound = toolState.CurrentRound
		state.MaxRounds = toolState.MaxRounds

		if toolState.CurrentToolCall != nil {
			state.PendingToolID = toolState.CurrentToolCall.ToolID
			state.PendingTool = toolState.CurrentToolCall.ToolName
		}

		if len(toolState.CollectedParams) > 0 {
			paramsJSON, err := json.Marshal(toolState.CollectedParams)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize collected params: %w", err)
			}

			state.ParamsJSON = string(paramsJSON)
		}
	}

	if len(ec.ChatHistory) > 0 {
		historyJSON, err := json.Marshal(ec.ChatHistory)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize chat history: %w", err)
		}

		state.HistoryJSON = string(historyJSON)
	}

	return state, nil
}
