package file

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

const workflowKind = "workflows"

// Workflows returns all non-deleted workflows, newest first.
func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids, err := p.listRecordIDs(workflowKind)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		var workflow models.Workflow
		if err := p.readRecord(workflowKind, id, &workflow); err != nil {
			return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
		}

		if workflow.DeletedAt != nil {
			continue
		}

		workflows = append(workflows, &workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// WorkflowByID returns a workflow by its ID.
func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.workflowByIDLocked(id)
}

func (p *Persistence) workflowByIDLocked(id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := p.readRecord(workflowKind, id, &workflow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, err
	}

	if workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

// DefaultWorkflow returns the workflow flagged as default.
func (p *Persistence) DefaultWorkflow(ctx context.Context) (*models.Workflow, error) {
	workflows, err := p.Workflows(ctx)
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if workflow.IsDefault {
			return workflow, nil
		}
	}

	return nil, persistence.ErrDefaultWorkflowNotFound
}

// SaveWorkflow upserts a workflow. Flagging one as default clears the flag
// on every other stored workflow.
func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

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

	if workflow.IsDefault {
		if err := p.clearDefaultLocked(workflow.ID); err != nil {
			return err
		}
	}

	return p.writeRecord(workflowKind, workflow.ID, workflow)
}

func (p *Persistence) clearDefaultLocked(exceptID string) error {
	ids, err := p.listRecordIDs(workflowKind)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == exceptID {
			continue
		}

		var workflow models.Workflow
		if err := p.readRecord(workflowKind, id, &workflow); err != nil {
			return fmt.Errorf("failed to read workflow %s: %w", id, err)
		}

		if !workflow.IsDefault {
			continue
		}

		workflow.IsDefault = false
		if err := p.writeRecord(workflowKind, id, &workflow); err != nil {
			return err
		}
	}

	return nil
}

// DeleteWorkflow soft deletes a workflow by setting DeletedAt.
func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	workflow, err := p.workflowByIDLocked(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now
	workflow.IsDefault = false
	workflow.UpdatedAt = now

	return p.writeRecord(workflowKind, id, workflow)
}
