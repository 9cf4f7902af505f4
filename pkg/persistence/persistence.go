// Package persistence provides the data storage abstraction for workflows,
// suspension records and execution logs.
package persistence

import (
	"context"
	"time"

	"github.com/convflow/convflow/pkg/models"
)

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DefaultWorkflow(ctx context.Context) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// PausedStateRepository stores durable suspension records. FindPending must
// never return a record whose expiry has passed, even before the sweep has
// transitioned it.
type PausedStateRepository interface {
	SavePausedState(ctx context.Context, state *models.WorkflowPausedState) error
	FindPendingBySession(ctx context.Context, sessionID string) (*models.WorkflowPausedState, error)
	PausedStateByID(ctx context.Context, id string) (*models.WorkflowPausedState, error)
	UpdatePausedStateStatus(ctx context.Context, id string, status models.PausedStateStatus) error
	// CancelPendingBySession transitions all WAITING_USER_INPUT records of a
	// session to CANCELLED and reports how many it touched.
	CancelPendingBySession(ctx context.Context, sessionID string) (int, error)
	// MarkExpired transitions all WAITING_USER_INPUT records past their
	// expiry and reports how many it touched.
	MarkExpired(ctx context.Context, now time.Time) (int, error)
	// DeleteTerminalBefore purges terminal records older than the cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ExecutionLogRepository stores per-turn execution records.
type ExecutionLogRepository interface {
	SaveExecutionLog(ctx context.Context, log *models.ExecutionLog) error
	ExecutionLogs(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error)
	ExecutionLogsBySession(ctx context.Context, sessionID string, limit int) ([]*models.ExecutionLog, error)
}

// Persistence is the full storage surface the engine wires at startup.
type Persistence interface {
	WorkflowRepository
	PausedStateRepository
	ExecutionLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
