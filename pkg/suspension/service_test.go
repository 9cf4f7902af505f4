package suspension

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/persistence/file"
)

func newTestService(t *testing.T) (*Service, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := file.NewPersistence(t.TempDir())

	return NewService(logger, store, nil, 30*time.Minute), store
}

func suspendedContext() *models.ExecutionContext {
	ec := models.NewExecutionContext("wf-1", "session-1", "weather in lisbon")
	ec.TenantID = "tenant-1"
	ec.AppendChatHistory("user", "weather in lisbon")

	state := ec.GetOrCreateToolCallState()
	state.Status = models.ToolCallWaitingUserInput
	state.PausedNodeID = "llm-1"
	state.CollectedParams = map[string]any{"city": "Lisbon"}
	state.MissingParams = []string{"date"}
	state.CurrentRound = 1
	state.CurrentToolCall = &models.ToolCallRequest{ID: "call-1", ToolName: "get_weather", ToolID: "tool-weather"}

	return ec
}

func TestService_Pause_PersistsRecord(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	ec := suspendedContext()

	state, err := service.Pause(ctx, ec, "llm-1", "missing_param:date", "Which date?")
	require.NoError(t, err)

	assert.NotEmpty(t, state.ID)
	assert.Equal(t, "session-1", state.SessionID)
	assert.Equal(t, "tenant-1", state.TenantID)
	assert.Equal(t, "llm-1", state.LLMNodeID)
	assert.Equal(t, models.PausedStateSchemaVersion, state.SchemaVersion)
	assert.Equal(t, models.PausedStatusWaitingUserInput, state.Status)
	assert.Equal(t, "Which date?", state.NextQuestion)
	assert.Equal(t, "get_weather", state.PendingTool)
	assert.Equal(t, 1, state.CurrentRound)
	assert.NotEmpty(t, state.ContextJSON)
	assert.NotEmpty(t, state.ToolStateJSON)
	assert.NotEmpty(t, state.HistoryJSON)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), state.ExpiredAt, 5*time.Second)

	found, err := service.FindPending(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, state.ID, found.ID)
}

func TestService_Pause_CancelsPreviousPending(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	first, err := service.Pause(ctx, suspendedContext(), "llm-1", "missing_param:date", "Which date?")
	require.NoError(t, err)

	second, err := service.Pause(ctx, suspendedContext(), "llm-1", "missing_param:date", "Still which date?")
	require.NoError(t, err)

	previous, err := store.PausedStateByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PausedStatusCancelled, previous.Status)

	found, err := service.FindPending(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
}

func TestService_Restore_RoundTripsContext(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	state, err := service.Pause(ctx, suspendedContext(), "llm-1", "missing_param:date", "Which date?")
	require.NoError(t, err)

	restored, err := service.Restore(state)
	require.NoError(t, err)

	assert.Equal(t, "wf-1", restored.WorkflowID)
	assert.Equal(t, "session-1", restored.SessionID)
	require.NotNil(t, restored.ToolCallState)
	assert.Equal(t, models.ToolCallWaitingUserInput, restored.ToolCallState.Status)
	assert.Equal(t, "Lisbon", restored.ToolCallState.CollectedParams["city"])
	assert.Equal(t, []string{"date"}, restored.ToolCallState.MissingParams)
	require.Len(t, restored.ChatHistory, 1)
}

func TestService_Restore_RefusesUnknownSchemaVersion(t *testing.T) {
	service, _ := newTestService(t)

	state := &models.WorkflowPausedState{
		SchemaVersion: models.PausedStateSchemaVersion + 1,
		ContextJSON:   `{"workflow_id":"wf-1"}`,
	}

	_, err := service.Restore(state)
	assert.ErrorIs(t, err, ErrUnsupportedSchemaVersion)
}

func TestService_Restore_MalformedContext(t *testing.T) {
	service, _ := newTestService(t)

	state := &models.WorkflowPausedState{
		SchemaVersion: models.PausedStateSchemaVersion,
		ContextJSON:   `{broken`,
	}

	_, err := service.Restore(state)
	assert.Error(t, err)
}

func TestService_MarkResumedAndCompleted(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	state, err := service.Pause(ctx, suspendedContext(), "llm-1", "missing_param:date", "Which date?")
	require.NoError(t, err)

	require.NoError(t, service.MarkResumed(ctx, state))

	loaded, err := store.PausedStateByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PausedStatusResumed, loaded.Status)

	require.NoError(t, service.MarkCompleted(ctx, state.ID))

	loaded, err = store.PausedStateByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PausedStatusCompleted, loaded.Status)
}

func TestService_CancelPending(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Pause(ctx, suspendedContext(), "llm-1", "reason", "question")
	require.NoError(t, err)

	cancelled, err := service.CancelPending(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	_, err = service.FindPending(ctx, "session-1")
	assert.True(t, persistence.IsPausedStateNotFound(err))
}
