package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/convflow/convflow/pkg/models"
)

const defaultLogLimit = 50

// ExecutionLogRepository handles per-turn execution records.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

// Save stores one execution record.
func (r *ExecutionLogRepository) Save(ctx context.Context, log *models.ExecutionLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	if log.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution log ID: %w", err)
		}

		log.ID = id.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_logs (
			id, workflow_id, session_id, message_id, tenant_id, query, reply,
			success, paused, error_message, node_details_json, duration_ms,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		log.ID, log.WorkflowID, log.SessionID, log.MessageID, log.TenantID,
		log.Query, log.Reply, log.Success, log.Paused, log.ErrorMessage,
		log.NodeDetailsJSON, log.DurationMs, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save execution log: %w", err)
	}

	return nil
}

// ByWorkflow returns recent runs of a workflow, newest first.
func (r *ExecutionLogRepository) ByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	return r.query(ctx, "workflow_id", workflowID, limit)
}

// BySession returns recent runs of a session, newest first.
func (r *ExecutionLogRepository) BySession(ctx context.Context, sessionID string, limit int) ([]*models.ExecutionLog, error) {
	return r.query(ctx, "session_id", sessionID, limit)
}

func (r *ExecutionLogRepository) query(ctx context.Context, column, value string, limit int) ([]*models.ExecutionLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	query := fmt.Sprintf(`
		SELECT
			id, workflow_id, session_id, message_id, tenant_id, query, reply,
			success, paused, error_message, node_details_json, duration_ms,
			created_at
		FROM execution_logs
		WHERE %s = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, column)

	rows, err := r.db.QueryContext(ctx, query, value, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		var log models.ExecutionLog

		err := rows.Scan(
			&log.ID, &log.WorkflowID, &log.SessionID, &log.MessageID,
			&log.TenantID, &log.Query, &log.Reply, &log.Success, &log.Paused,
			&log.ErrorMessage, &log.NodeDetailsJSON, &log.DurationMs,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return logs, nil
}
