package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

// PausedStateRepository handles suspension-record database operations.
type PausedStateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPausedStateRepository creates a new paused-state repository.
func NewPausedStateRepository(db *sql.DB, logger *slog.Logger) *PausedStateRepository {
	return &PausedStateRepository{db: db, logger: logger}
}

const pausedStateColumns = `
		id
	  , session_id
	  , workflow_id
	  , tenant_id
	  , sub_chain_id
	  , llm_node_id
	  , pause_reason
	  , schema_version
	  , context_json
	  , tool_state_json
	  , params_json
	  , history_json
	  , current_round
	  , max_rounds
	  , pending_tool_id
	  , pending_tool_name
	  , next_question
	  , status
	  , created_at
	  , updated_at
	  , expired_at
`

// Save upserts a suspension record. The partial unique index on
// (session_id) WHERE status = 'WAITING_USER_INPUT' enforces the
// one-pending-per-session invariant; a violation surfaces as
// ErrPausedStateConflict.
func (r *PausedStateRepository) Save(ctx context.Context, state *models.WorkflowPausedState) error {
	now := time.Now().UTC()

	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}

	state.UpdatedAt = now

	if state.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate paused state ID: %w", err)
		}

		state.ID = id.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_paused_states (
			id, session_id, workflow_id, tenant_id, sub_chain_id, llm_node_id,
			pause_reason, schema_version, context_json, tool_state_json,
			params_json, history_json, current_round, max_rounds,
			pending_tool_id, pending_tool_name, next_question, status,
			created_at, updated_at, expired_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		ON CONFLICT (id) DO UPDATE SET
			pause_reason = EXCLUDED.pause_reason,
			context_json = EXCLUDED.context_json,
			tool_state_json = EXCLUDED.tool_state_json,
			params_json = EXCLUDED.params_json,
			history_json = EXCLUDED.history_json,
			current_round = EXCLUDED.current_round,
			pending_tool_id = EXCLUDED.pending_tool_id,
			pending_tool_name = EXCLUDED.pending_tool_name,
			next_question = EXCLUDED.next_question,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			expired_at = EXCLUDED.expired_at
	`,
		state.ID, state.SessionID, state.WorkflowID, state.TenantID,
		state.SubChainID, state.LLMNodeID, state.PauseReason,
		state.SchemaVersion, state.ContextJSON, state.ToolStateJSON,
		state.ParamsJSON, state.HistoryJSON, state.CurrentRound,
		state.MaxRounds, state.PendingToolID, state.PendingTool,
		state.NextQuestion, state.Status, state.CreatedAt, state.UpdatedAt,
		state.ExpiredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &persistence.PausedStateError{
				Op:        "Save",
				SessionID: state.SessionID,
				Err:       persistence.ErrPausedStateConflict,
			}
		}

		return fmt.Errorf("failed to save paused state %s: %w", state.ID, err)
	}

	return nil
}

// FindPendingBySession returns the session's WAITING_USER_INPUT record,
// excluding rows whose expiry has passed but which the sweep has not
// transitioned yet.
func (r *PausedStateRepository) FindPendingBySession(ctx context.Context, sessionID string) (*models.WorkflowPausedState, error) {
	query := `
		SELECT ` + pausedStateColumns + `
		FROM workflow_paused_states
		WHERE session_id = $1
		  AND status = $2
		  AND expired_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	state, err := scanPausedState(r.db.QueryRowContext(ctx, query, sessionID, models.PausedStatusWaitingUserInput))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.PausedStateError{
				Op:        "FindPendingBySession",
				SessionID: sessionID,
				Err:       persistence.ErrPausedStateNotFound,
			}
		}

		return nil, fmt.Errorf("failed to scan paused state: %w", err)
	}

	return state, nil
}

// GetByID returns a suspension record by ID.
func (r *PausedStateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowPausedState, error) {
	query := `
		SELECT ` + pausedStateColumns + `
		FROM workflow_paused_states
		WHERE id = $1
	`

	state, err := scanPausedState(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.PausedStateError{
				Op:      "GetByID",
				StateID: id,
				Err:     persistence.ErrPausedStateNotFound,
			}
		}

		return nil, fmt.Errorf("failed to scan paused state: %w", err)
	}

	return state, nil
}

// UpdateStatus transitions one record's status.
func (r *PausedStateRepository) UpdateStatus(ctx context.Context, id string, status models.PausedStateStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE workflow_paused_states SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to update paused state %s status: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		return &persistence.PausedStateError{
			Op:      "UpdateStatus",
			StateID: id,
			Err:     persistence.ErrPausedStateNotFound,
		}
	}

	return nil
}

// CancelPendingBySession transitions all pending records of a session to
// CANCELLED. Zero affected rows is not an error; the caller uses this to
// clear the way before inserting a new pending record.
func (r *PausedStateRepository) CancelPendingBySession(ctx context.Context, sessionID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_paused_states
		SET status = $1, updated_at = NOW()
		WHERE session_id = $2 AND status = $3
	`, models.PausedStatusCancelled, sessionID, models.PausedStatusWaitingUserInput)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending paused states for session %s: %w", sessionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read cancel result: %w", err)
	}

	return int(affected), nil
}

// MarkExpired transitions overdue pending records to EXPIRED. Safe to run
// concurrently; the WHERE clause makes the transition idempotent.
func (r *PausedStateRepository) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_paused_states
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expired_at <= $3
	`, models.PausedStatusExpired, models.PausedStatusWaitingUserInput, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired paused states: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read expire result: %w", err)
	}

	return int(affected), nil
}

// DeleteTerminalBefore purges terminal records older than the cutoff.
func (r *PausedStateRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM workflow_paused_states
		WHERE status IN ($1, $2, $3, $4) AND updated_at < $5
	`, models.PausedStatusResumed, models.PausedStatusCompleted,
		models.PausedStatusExpired, models.PausedStatusCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge terminal paused states: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}

	return int(affected), nil
}

func scanPausedState(row rowScanner) (*models.WorkflowPausedState, error) {
	var state models.WorkflowPausedState

	err := row.Scan(
		&state.ID, &state.SessionID, &state.WorkflowID, &state.TenantID,
		&state.SubChainID, &state.LLMNodeID, &state.PauseReason,
		&state.SchemaVersion, &state.ContextJSON, &state.ToolStateJSON,
		&state.ParamsJSON, &state.HistoryJSON, &state.CurrentRound,
		&state.MaxRounds, &state.PendingToolID, &state.PendingTool,
		&state.NextQuestion, &state.Status, &state.CreatedAt,
		&state.UpdatedAt, &state.ExpiredAt,
	)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// isUniqueViolation matches the postgres unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return false
}
