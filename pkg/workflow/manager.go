package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/events"
	"github.com/convflow/convflow/pkg/graph"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

// CopySuffix is appended to the name of a duplicated workflow.
const CopySuffix = "_copy"

// Manager owns workflow definition lifecycle: create, update, copy, toggle,
// default selection and deletion.
type Manager struct {
	logger    *slog.Logger
	store     persistence.Persistence
	validate  *validator.Validate
	publisher eventbus.EventPublisher
}

// NewManager creates a workflow manager. publisher may be nil.
func NewManager(logger *slog.Logger, store persistence.Persistence, publisher eventbus.EventPublisher) *Manager {
	return &Manager{
		logger:    logger.With("module", "workflow_manager"),
		store:     store,
		validate:  validator.New(),
		publisher: publisher,
	}
}

// List returns all workflows.
func (m *Manager) List(ctx context.Context) ([]*models.Workflow, error) {
	return m.store.Workflows(ctx)
}

// Get returns one workflow by ID.
func (m *Manager) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return m.store.WorkflowByID(ctx, id)
}

// Save validates and stores a workflow, bumping its version on update.
func (m *Manager) Save(ctx context.Context, workflow *models.Workflow) error {
	if err := m.validate.Struct(workflow); err != nil {
		return fmt.Errorf("workflow validation failed: %w", err)
	}

	if result := graph.Validate(&workflow.Graph); !result.Valid() {
		return fmt.Errorf("workflow graph is invalid: %s", strings.Join(result.Errors, "; "))
	}

	if workflow.ID != "" {
		existing, err := m.store.WorkflowByID(ctx, workflow.ID)
		if err == nil {
			workflow.Version = existing.Version + 1
			workflow.CreatedAt = existing.CreatedAt
		} else if !persistence.IsWorkflowNotFound(err) {
			return err
		}
	}

	if workflow.Version == 0 {
		workflow.Version = 1
	}

	if err := m.store.SaveWorkflow(ctx, workflow); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Workflow saved",
		"workflow_id", workflow.ID, "name", workflow.Name, "version", workflow.Version)

	m.publish(ctx, workflow.ID, events.WorkflowSaved{
		BaseEvent: events.BaseEvent{
			Type:       events.WorkflowSavedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflow.ID,
		},
		Name:    workflow.Name,
		Version: workflow.Version,
		Enabled: workflow.Enabled,
	})

	return nil
}

// Copy duplicates a workflow under a new ID. The copy starts disabled and
// never inherits the default flag.
func (m *Manager) Copy(ctx context.Context, id string) (*models.Workflow, error) {
	source, err := m.store.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	duplicate := *source
	duplicate.ID = ""
	duplicate.Name = source.Name + CopySuffix
	duplicate.Enabled = false
	duplicate.IsDefault = false
	duplicate.Version = 1
	duplicate.CreatedAt = time.Time{}
	duplicate.UpdatedAt = time.Time{}
	duplicate.DeletedAt = nil

	if err := m.store.SaveWorkflow(ctx, &duplicate); err != nil {
		return nil, fmt.Errorf("failed to save workflow copy: %w", err)
	}

	m.logger.InfoContext(ctx, "Workflow copied",
		"source_id", id, "copy_id", duplicate.ID)

	return &duplicate, nil
}

// SetEnabled toggles a workflow on or off.
func (m *Manager) SetEnabled(ctx context.Context, id string, enabled bool) (*models.Workflow, error) {
	workflow, err := m.store.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.Enabled == enabled {
		return workflow, nil
	}

	workflow.Enabled = enabled
	if !enabled {
		workflow.IsDefault = false
	}

	if err := m.store.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Workflow toggled", "workflow_id", id, "enabled", enabled)

	return workflow, nil
}

// SetDefault flags a workflow as the session fallback. The store clears the
// flag on the previous default.
func (m *Manager) SetDefault(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := m.store.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !workflow.Enabled {
		return nil, fmt.Errorf("cannot make disabled workflow %s the default", id)
	}

	workflow.IsDefault = true

	if err := m.store.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Delete soft deletes a workflow.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.DeleteWorkflow(ctx, id); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id)

	m.publish(ctx, id, events.WorkflowDeleted{
		BaseEvent: events.BaseEvent{
			Type:       events.WorkflowDeletedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: id,
		},
	})

	return nil
}

// ExecutionLogs returns recent runs of a workflow.
func (m *Manager) ExecutionLogs(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	return m.store.ExecutionLogs(ctx, workflowID, limit)
}

func (m *Manager) publish(ctx context.Context, key string, event eventbus.Event) {
	if m.publisher == nil {
		return
	}

	if err := m.publisher.Publish(ctx, key, event); err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish workflow event",
			"event_type", event.GetType(), "error", err)
	}
}
