package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/events"
	"github.com/convflow/convflow/pkg/history"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/suspension"
)

// TurnRequest is one inbound user message to run through a workflow.
type TurnRequest struct {
	// WorkflowID selects the workflow; empty falls back to the tenant's
	// default workflow.
	WorkflowID string
	SessionID  string
	MessageID  string
	TenantID   string
	CustomerID string
	Query      string

	CustomerInfo map[string]any
	Variables    map[string]any
	AgentSession *models.AgentSessionRef
	HistoryLimit int
}

// TurnResult is the reply produced for one turn.
type TurnResult struct {
	Reply          string               `json:"reply"`
	WorkflowID     string               `json:"workflow_id"`
	Paused         bool                 `json:"paused"`
	PauseReason    string               `json:"pause_reason,omitempty"`
	Resumed        bool                 `json:"resumed"`
	HumanTransfer  bool                 `json:"human_transfer"`
	TransferReason string               `json:"transfer_reason,omitempty"`
	Intent         string               `json:"intent,omitempty"`
	DurationMs     int64                `json:"duration_ms"`
	NodeDetails    []models.NodeExecutionDetail `json:"node_details,omitempty"`
}

// Engine coordinates one conversation turn end to end: suspension lookup,
// graph traversal, re-suspension, history recording and execution logging.
type Engine struct {
	logger      *slog.Logger
	store       persistence.Persistence
	executor    *Executor
	suspensions *suspension.Service
	histories   history.Loader
	publisher   eventbus.EventPublisher
}

// NewEngine wires the turn execution pipeline. histories and publisher may
// be nil; the engine then skips those concerns.
func NewEngine(logger *slog.Logger, store persistence.Persistence, executor *Executor, suspensions *suspension.Service, histories history.Loader, publisher eventbus.EventPublisher) *Engine {
	return &Engine{
		logger:      logger.With("module", "engine"),
		store:       store,
		executor:    executor,
		suspensions: suspensions,
		histories:   histories,
		publisher:   publisher,
	}
}

// ExecuteTurn runs one user message through the session's workflow. A live
// suspension resumes at its recorded node; otherwise a fresh traversal
// starts at the graph's start node.
func (e *Engine) ExecuteTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := time.Now()
	triggeredAt := start.UTC()

	logger := e.logger.With("session_id", req.SessionID, "tenant_id", req.TenantID)

	pending, resumeCtx, workflowHint := e.findResumable(ctx, req, logger)

	var (
		workflow *models.Workflow
		err      error
	)

	switch {
	case pending != nil:
		workflow, err = e.store.WorkflowByID(ctx, pending.WorkflowID)
	case req.WorkflowID == "" && workflowHint != "":
		// The session's suspension was cancelled as unusable; restart its
		// workflow fresh rather than falling back to the default.
		workflow, err = e.store.WorkflowByID(ctx, workflowHint)
	default:
		workflow, err = e.resolveWorkflow(ctx, req.WorkflowID)
	}

	if err != nil {
		return nil, err
	}

	if !workflow.Enabled {
		return nil, fmt.Errorf("workflow %s is disabled", workflow.ID)
	}

	var (
		ec          *models.ExecutionContext
		startNodeID string
	)

	if pending != nil {
		ec = resumeCtx
		ec.Query = req.Query
		ec.MessageID = req.MessageID
		ec.ResumeWorkflow()
		// The previous turn's reply (the clarifying question) was already
		// delivered; it must not leak into this turn's final reply.
		ec.FinalReply = ""
		startNodeID = pending.LLMNodeID

		if err := e.suspensions.MarkResumed(ctx, pending); err != nil {
			logger.ErrorContext(ctx, "Failed to mark suspension resumed", "error", err)
		}
	} else {
		ec = e.buildContext(ctx, workflow, req, triggeredAt)
	}

	e.publishStarted(ctx, ec, req, pending != nil)

	result, runErr := e.executor.Run(ctx, &workflow.Graph, ec, startNodeID)
	duration := time.Since(start)

	if runErr != nil {
		e.publishFailed(ctx, ec, result, duration)
		e.recordLog(ctx, workflow.ID, req, ec, result, duration)

		return nil, fmt.Errorf("workflow %s execution failed: %w", workflow.ID, runErr)
	}

	if result.Paused {
		if _, err := e.suspensions.Pause(ctx, ec, result.PausedNodeID, result.PauseReason, result.Reply); err != nil {
			return nil, fmt.Errorf("failed to persist suspension: %w", err)
		}
	} else if pending != nil {
		if err := e.suspensions.MarkCompleted(ctx, pending.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to mark suspension completed", "error", err)
		}
	}

	e.recordHistory(ctx, req, result)
	e.recordLog(ctx, workflow.ID, req, ec, result, duration)

	if !result.Paused {
		e.publishCompleted(ctx, ec, result, duration)
	}

	logger.InfoContext(ctx, "Turn executed",
		"workflow_id", workflow.ID,
		"paused", result.Paused,
		"human_transfer", result.HumanTransfer,
		"duration_ms", duration.Milliseconds())

	return &TurnResult{
		Reply:          result.Reply,
		WorkflowID:     workflow.ID,
		Paused:         result.Paused,
		PauseReason:    result.PauseReason,
		Resumed:        pending != nil,
		HumanTransfer:  result.HumanTransfer,
		TransferReason: result.TransferReason,
		Intent:         ec.Intent,
		DurationMs:     duration.Milliseconds(),
		NodeDetails:    ec.ExecutionDetails,
	}, nil
}

// findResumable returns the session's live suspension with its restored
// context, or nil when the turn must start fresh. A record with an unknown
// schema version is cancelled, never guessed at; its workflow id is still
// returned so the fresh run stays on the session's workflow.
func (e *Engine) findResumable(ctx context.Context, req TurnRequest, logger *slog.Logger) (*models.WorkflowPausedState, *models.ExecutionContext, string) {
	pending, err := e.suspensions.FindPending(ctx, req.SessionID)
	if err != nil {
		if !persistence.IsPausedStateNotFound(err) {
			logger.ErrorContext(ctx, "Failed to look up pending suspension", "error", err)
		}

		return nil, nil, ""
	}

	ec, err := e.suspensions.Restore(pending)
	if err != nil {
		if errors.Is(err, suspension.ErrUnsupportedSchemaVersion) {
			logger.WarnContext(ctx, "Cancelling suspension with unsupported schema version",
				"paused_state_id", pending.ID, "schema_version", pending.SchemaVersion)
		} else {
			logger.ErrorContext(ctx, "Failed to restore suspended context, starting fresh",
				"paused_state_id", pending.ID, "error", err)
		}

		if cancelErr := e.suspensions.Cancel(ctx, pending.ID); cancelErr != nil {
			logger.ErrorContext(ctx, "Failed to cancel unusable suspension", "error", cancelErr)
		}

		return nil, nil, pending.WorkflowID
	}

	return pending, ec, pending.WorkflowID
}

// resolveWorkflow loads the requested workflow, or the default when none is
// named.
func (e *Engine) resolveWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	if workflowID != "" {
		return e.store.WorkflowByID(ctx, workflowID)
	}

	return e.store.DefaultWorkflow(ctx)
}

// buildContext assembles a fresh execution context, merging workflow-level
// variables under request variables and loading bounded history.
func (e *Engine) buildContext(ctx context.Context, workflow *models.Workflow, req TurnRequest, triggeredAt time.Time) *models.ExecutionContext {
	ec := models.NewExecutionContext(workflow.ID, req.SessionID, req.Query)
	ec.MessageID = req.MessageID
	ec.TenantID = req.TenantID
	ec.CustomerID = req.CustomerID
	ec.AgentSession = req.AgentSession

	for k, v := range workflow.Variables {
		ec.Variables[k] = v
	}

	for k, v := range req.Variables {
		ec.Variables[k] = v
	}

	for k, v := range req.CustomerInfo {
		ec.CustomerInfo[k] = v
	}

	if e.histories != nil {
		items, err := e.histories.Load(ctx, req.SessionID, req.HistoryLimit, triggeredAt)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to load chat history, continuing without",
				"session_id", req.SessionID, "error", err)
		} else {
			ec.ChatHistory = items
		}
	}

	return ec
}

// recordHistory appends the user turn and the reply. The clarifying question
// of a suspension is recorded too; it is a real assistant turn.
func (e *Engine) recordHistory(ctx context.Context, req TurnRequest, result *ExecutionResult) {
	if e.histories == nil {
		return
	}

	if err := e.histories.Append(ctx, req.SessionID, history.Entry{Role: "user", Content: req.Query}); err != nil {
		e.logger.ErrorContext(ctx, "Failed to record user turn", "error", err)
	}

	if result.Reply == "" {
		return
	}

	if err := e.histories.Append(ctx, req.SessionID, history.Entry{Role: "assistant", Content: result.Reply}); err != nil {
		e.logger.ErrorContext(ctx, "Failed to record assistant turn", "error", err)
	}
}

func (e *Engine) recordLog(ctx context.Context, workflowID string, req TurnRequest, ec *models.ExecutionContext, result *ExecutionResult, duration time.Duration) {
	log := &models.ExecutionLog{
		WorkflowID: workflowID,
		SessionID:  req.SessionID,
		MessageID:  req.MessageID,
		TenantID:   req.TenantID,
		Query:      req.Query,
		DurationMs: duration.Milliseconds(),
	}

	if result != nil {
		log.Reply = result.Reply
		log.Success = !result.Failed
		log.Paused = result.Paused

		if result.Err != nil {
			log.ErrorMessage = result.Err.Error()
		}
	}

	if details, err := json.Marshal(ec.ExecutionDetails); err == nil {
		log.NodeDetailsJSON = string(details)
	}

	if err := e.store.SaveExecutionLog(ctx, log); err != nil {
		e.logger.ErrorContext(ctx, "Failed to save execution log", "error", err)
	}
}

func (e *Engine) publishStarted(ctx context.Context, ec *models.ExecutionContext, req TurnRequest, resumed bool) {
	e.publish(ctx, ec.SessionID, events.ExecutionStarted{
		BaseEvent: baseEvent(events.ExecutionStartedEvent, ec),
		MessageID: req.MessageID,
		Query:     req.Query,
		Resumed:   resumed,
	})
}

func (e *Engine) publishCompleted(ctx context.Context, ec *models.ExecutionContext, result *ExecutionResult, duration time.Duration) {
	e.publish(ctx, ec.SessionID, events.ExecutionCompleted{
		BaseEvent:     baseEvent(events.ExecutionCompletedEvent, ec),
		Reply:         result.Reply,
		HumanTransfer: result.HumanTransfer,
		Duration:      duration,
	})
}

func (e *Engine) publishFailed(ctx context.Context, ec *models.ExecutionContext, result *ExecutionResult, duration time.Duration) {
	event := events.ExecutionFailed{
		BaseEvent: baseEvent(events.ExecutionFailedEvent, ec),
		Duration:  duration,
	}

	if result != nil {
		event.NodeID = result.FailedNodeID
		if result.Err != nil {
			event.Error = result.Err.Error()
		}
	}

	e.publish(ctx, ec.SessionID, event)
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish execution event",
			"event_type", event.GetType(), "error", err)
	}
}

func baseEvent(eventType events.EventType, ec *models.ExecutionContext) events.BaseEvent {
	return events.BaseEvent{
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: ec.WorkflowID,
		SessionID:  ec.SessionID,
		TenantID:   ec.TenantID,
	}
}
