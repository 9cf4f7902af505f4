package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func testWorkflow(name string) *models.Workflow {
	return &models.Workflow{
		Name:    name,
		Enabled: true,
		Graph: models.Graph{
			Nodes: []*models.Node{{ID: "start-1", Type: models.NodeTypeStart}},
		},
	}
}

func TestPersistence_SaveWorkflow_GeneratesID(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	workflow := testWorkflow("Support flow")
	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	loaded, err := store.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Support flow", loaded.Name)
	require.Len(t, loaded.Graph.Nodes, 1)
}

func TestPersistence_WorkflowByID_NotFound(t *testing.T) {
	store := newTestPersistence(t)

	_, err := store.WorkflowByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_SaveWorkflow_DefaultFlagIsExclusive(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	first := testWorkflow("First")
	first.IsDefault = true
	require.NoError(t, store.SaveWorkflow(ctx, first))

	second := testWorkflow("Second")
	second.IsDefault = true
	require.NoError(t, store.SaveWorkflow(ctx, second))

	def, err := store.DefaultWorkflow(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	reloaded, err := store.WorkflowByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)
}

func TestPersistence_DefaultWorkflow_NoneFlagged(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, store.SaveWorkflow(ctx, testWorkflow("Plain")))

	_, err := store.DefaultWorkflow(ctx)
	assert.ErrorIs(t, err, persistence.ErrDefaultWorkflowNotFound)
}

func TestPersistence_DeleteWorkflow_SoftDeletes(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	workflow := testWorkflow("Doomed")
	require.NoError(t, store.SaveWorkflow(ctx, workflow))
	require.NoError(t, store.DeleteWorkflow(ctx, workflow.ID))

	_, err := store.WorkflowByID(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	workflows, err := store.Workflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestPersistence_DeleteWorkflow_Missing(t *testing.T) {
	store := newTestPersistence(t)

	err := store.DeleteWorkflow(context.Background(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_Workflows_SkipsDeleted(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	keep := testWorkflow("Keep")
	drop := testWorkflow("Drop")
	require.NoError(t, store.SaveWorkflow(ctx, keep))
	require.NoError(t, store.SaveWorkflow(ctx, drop))
	require.NoError(t, store.DeleteWorkflow(ctx, drop.ID))

	workflows, err := store.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, keep.ID, workflows[0].ID)
}

func TestPersistence_SaveExecutionLog_AndQuery(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	for _, sessionID := range []string{"s-1", "s-1", "s-2"} {
		require.NoError(t, store.SaveExecutionLog(ctx, &models.ExecutionLog{
			WorkflowID: "wf-1",
			SessionID:  sessionID,
			Query:      "hello",
			Success:    true,
		}))
	}

	byWorkflow, err := store.ExecutionLogs(ctx, "wf-1", 0)
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 3)

	bySession, err := store.ExecutionLogsBySession(ctx, "s-1", 0)
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	limited, err := store.ExecutionLogs(ctx, "wf-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPersistence_HealthCheck(t *testing.T) {
	store := newTestPersistence(t)
	assert.NoError(t, store.HealthCheck(context.Background()))

	missing := NewPersistence("/nonexistent/convflow-test-root")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
