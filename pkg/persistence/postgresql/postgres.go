// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db              *sql.DB
	logger          *slog.Logger
	workflowRepo    *WorkflowRepository
	pausedStateRepo *PausedStateRepository
	executionRepo   *ExecutionLogRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:              database,
		logger:          logger,
		workflowRepo:    NewWorkflowRepository(database, logger),
		pausedStateRepo: NewPausedStateRepository(database, logger),
		executionRepo:   NewExecutionLogRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Workflows returns all non-deleted workflows.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx)
}

// WorkflowByID returns a workflow by its ID.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

// DefaultWorkflow returns the workflow flagged as default.
func (p *Persistence) DefaultWorkflow(ctx context.Context) (*models.Workflow, error) {
	return p.workflowRepo.GetDefault(ctx)
}

// SaveWorkflow saves a workflow to the database.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Save(ctx, workflow)
}

// DeleteWorkflow soft deletes a workflow by setting deleted_at.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return p.workflowRepo.Delete(ctx, id)
}

// SavePausedState inserts or updates a suspension record.
func (p *Persistence) SavePausedState(ctx context.Context, state *models.WorkflowPausedState) error {
	return p.pausedStateRepo.Save(ctx, state)
}

// FindPendingBySession returns the session's pending, unexpired record.
func (p *Persistence) FindPendingBySession(ctx context.Context, sessionID string) (*models.WorkflowPausedState, error) {
	return p.pausedStateRepo.FindPendingBySession(ctx, sessionID)
}

// PausedStateByID returns a suspension record by ID.
func (p *Persistence) PausedStateByID(ctx context.Context, id string) (*models.WorkflowPausedState, error) {
	return p.pausedStateRepo.GetByID(ctx, id)
}

// UpdatePausedStateStatus transitions one record's status.
func (p *Persistence) UpdatePausedStateStatus(ctx context.Context, id string, status models.PausedStateStatus) error {
	return p.pausedStateRepo.UpdateStatus(ctx, id, status)
}

// CancelPendingBySession cancels all pending records of a session.
func (p *Persistence) CancelPendingBySession(ctx context.Context, sessionID string) (int, error) {
	return p.pausedStateRepo.CancelPendingBySession(ctx, sessionID)
}

// MarkExpired expires overdue pending records.
func (p *Persistence) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	return p.pausedStateRepo.MarkExpired(ctx, now)
}

// DeleteTerminalBefore purges old terminal records.
func (p *Persistence) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return p.pausedStateRepo.DeleteTerminalBefore(ctx, cutoff)
}

// SaveExecutionLog stores one per-turn execution record.
func (p *Persistence) SaveExecutionLog(ctx context.Context, log *models.ExecutionLog) error {
	return p.executionRepo.Save(ctx, log)
}

// ExecutionLogs returns recent runs of a workflow.
func (p *Persistence) ExecutionLogs(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	return p.executionRepo.ByWorkflow(ctx, workflowID, limit)
}

// ExecutionLogsBySession returns recent runs of a session.
func (p *Persistence) ExecutionLogsBySession(ctx context.Context, sessionID string, limit int) ([]*models.ExecutionLog, error) {
	return p.executionRepo.BySession(ctx, sessionID, limit)
}
