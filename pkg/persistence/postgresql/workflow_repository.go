package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
		id
	  , name
	  , description
	  , graph
	  , enabled
	  , is_default
	  , version
	  , trigger_type
	  , variables
	  , owner
	  , created_at
	  , updated_at
	  , deleted_at
`

// GetAll returns all non-deleted workflows, newest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// GetDefault returns the workflow flagged as default.
func (r *WorkflowRepository) GetDefault(ctx context.Context) (*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE is_default AND deleted_at IS NULL
		LIMIT 1
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDefaultWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan default workflow: %w", err)
	}

	return workflow, nil
}

// Save upserts a workflow. Flagging a workflow as default clears the flag on
// every other workflow in the same statement batch.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	graphJSON, err := json.Marshal(workflow.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow graph: %w", err)
	}

	variablesJSON, err := json.Marshal(workflow.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow variables: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if workflow.IsDefault {
		_, err = tx.ExecContext(ctx,
			`UPDATE workflows SET is_default = FALSE, updated_at = $1 WHERE is_default AND id <> $2`,
			now, workflow.ID)
		if err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("failed to clear previous default workflow: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (
			id, name, description, graph, enabled, is_default, version,
			trigger_type, variables, owner, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			graph = EXCLUDED.graph,
			enabled = EXCLUDED.enabled,
			is_default = EXCLUDED.is_default,
			version = EXCLUDED.version,
			trigger_type = EXCLUDED.trigger_type,
			variables = EXCLUDED.variables,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at
	`,
		workflow.ID, workflow.Name, workflow.Description, graphJSON,
		workflow.Enabled, workflow.IsDefault, workflow.Version,
		workflow.TriggerType, variablesJSON, workflow.Owner,
		workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workflow save: %w", err)
	}

	return nil
}

// Delete soft deletes a workflow by setting deleted_at.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE workflows SET deleted_at = NOW(), is_default = FALSE WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		graphJSON     []byte
		variablesJSON []byte
		description   sql.NullString
		owner         sql.NullString
		deletedAt     sql.NullTime
	)

	err := row.Scan(
		&workflow.ID, &workflow.Name, &description, &graphJSON,
		&workflow.Enabled, &workflow.IsDefault, &workflow.Version,
		&workflow.TriggerType, &variablesJSON, &owner,
		&workflow.CreatedAt, &workflow.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Description = description.String
	workflow.Owner = owner.String

	if deletedAt.Valid {
		workflow.DeletedAt = &deletedAt.Time
	}

	if len(graphJSON) > 0 {
		if err := json.Unmarshal(graphJSON, &workflow.Graph); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow graph: %w", err)
		}
	}

	if len(variablesJSON) > 0 && string(variablesJSON) != "null" {
		if err := json.Unmarshal(variablesJSON, &workflow.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow variables: %w", err)
		}
	}

	return &workflow, nil
}
