package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/nodes/end"
	"github.com/convflow/convflow/pkg/nodes/reply"
	"github.com/convflow/convflow/pkg/nodes/start"
	"github.com/convflow/convflow/pkg/persistence/file"
	"github.com/convflow/convflow/pkg/registry"
	"github.com/convflow/convflow/pkg/suspension"
	"github.com/convflow/convflow/pkg/workflow"
)

func newTestAPI(t *testing.T) (*fiber.App, *file.Persistence, *suspension.Service) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := file.NewPersistence(t.TempDir())
	suspensions := suspension.NewService(logger, store, nil, models.DefaultPauseTTL)

	reg := registry.NewRegistry(logger)
	reg.RegisterNode(start.NewFactory())
	reg.RegisterNode(reply.NewFactory())
	reg.RegisterNode(end.NewFactory())

	executor := workflow.NewExecutor(logger, reg, nil)
	engine := workflow.NewEngine(logger, store, executor, suspensions, nil, nil)
	manager := workflow.NewManager(logger, store, nil)

	app := fiber.New()
	NewAPIHandlers(manager, engine, suspensions, store, validator.New(), reg).Register(app)

	return app, store, suspensions
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func echoGraph() models.Graph {
	return models.Graph{
		Nodes: []*models.Node{
			{ID: "start-1", Type: models.NodeTypeStart},
			{
				ID:   "reply-1",
				Type: models.NodeTypeReply,
				Data: models.NodeData{Config: json.RawMessage(`{"text":"Echo: {{sys.query}}"}`)},
			},
			{ID: "end-1", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start-1", Target: "reply-1"},
			{ID: "e2", Source: "reply-1", Target: "end-1"},
		},
	}
}

func createWorkflow(t *testing.T, app *fiber.App, req CreateWorkflowRequest) *models.Workflow {
	t.Helper()

	resp := doJSON(t, app, fiber.MethodPost, "/workflows", req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created models.Workflow
	decodeJSON(t, resp, &created)
	require.NotEmpty(t, created.ID)

	return &created
}

func TestAPIHandlers_Health(t *testing.T) {
	app, _, _ := newTestAPI(t)

	resp := doJSON(t, app, fiber.MethodGet, "/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeJSON(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestAPIHandlers_GetNodeTypes(t *testing.T) {
	app, _, _ := newTestAPI(t)

	resp := doJSON(t, app, fiber.MethodGet, "/node-types", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		NodeTypes []string `json:"node_types"`
	}
	decodeJSON(t, resp, &body)

	assert.Equal(t, []string{"end", "reply", "start"}, body.NodeTypes)
}

func TestAPIHandlers_CreateAndGetWorkflow(t *testing.T) {
	app, _, _ := newTestAPI(t)

	created := createWorkflow(t, app, CreateWorkflowRequest{
		Name:    "Echo flow",
		Enabled: true,
		Graph:   echoGraph(),
	})
	assert.Equal(t, "ALL", created.TriggerType)

	resp := doJSON(t, app, fiber.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fetched models.Workflow
	decodeJSON(t, resp, &fetched)
	assert.Equal(t, "Echo flow", fetched.Name)

	resp = doJSON(t, app, fiber.MethodGet, "/workflows", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list struct {
		Count int `json:"count"`
	}
	decodeJSON(t, resp, &list)
	assert.Equal(t, 1, list.Count)
}

func TestAPIHandlers_CreateWorkflow_RejectsShortName(t *testing.T) {
	app, _, _ := newTestAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/workflows", CreateWorkflowRequest{
		Name:  "ab",
		Graph: echoGraph(),
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflow_NotFound(t *testing.T) {
	app, _, _ := newTestAPI(t)

	resp := doJSON(t, app, fiber.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_UpdateWorkflow(t *testing.T) {
	app, _, _ := newTestAPI(t)

	created := createWorkflow(t, app, CreateWorkflowRequest{
		Name:    "Echo flow",
		Enabled: true,
		Graph:   echoGraph(),
	})

	name := "Renamed flow"
	resp := doJSON(t, app, fiber.MethodPatch, "/workflows/"+created.ID, UpdateWorkflowRequest{Name: &name})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated models.Workflow
	decodeJSON(t, resp, &updated)
	assert.Equal(t, "Renamed flow", updated.Name)
	assert.Equal(t, 2, updated.Version)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	app, _, _ := newTestAPI(t)

	created := createWorkflow(t, app, CreateWorkflowRequest{
		Name:    "Echo flow",
		Enabled: true,
		Graph:   echoGraph(),
	})

	resp := doJSON(t, app, fiber.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodGet, "/workflows/"+created.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_CopyWorkflow(t *testing.T) {
	app, _, _ := newTestAPI(t)

	created := createWorkflow(t, app, CreateWorkflowRequest{
		Name:    "Echo flow",
		Enabled: true,
		Graph:   echoGraph(),
	})

	resp := doJSON(t, app, fiber.MethodPost, "/workflows/"+created.ID+"/copy", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var copied models.Workflow
	decodeJSON(t, resp, &copied)
	assert.Equal(t, "Echo flow"+workflow.CopySuffix, copied.Name)
	assert.False(t, copied.Enabled)
	assert.NotEqual(t, created.ID, copied.ID)
}

func TestAPIHandlers_EnableDisableWorkflow(t *testing.T) {
	app, _, _ := newTestAPI(t)

	created := createWorkflow(t, app, CreateWorkflowRequest{
		Name:    "Echo flow",
		Enabled: true,
		Graph:   echoGraph(),
	})

	resp := doJSON(t, app, fiber.MethodPost, "/workflows/"+created.ID+"/disable", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var toggled models.Workflow
	decodeJSON(t, resp, &toggled)
	assert.False(t, toggled.Enabled)

	resp = doJSON(t, app, fiber.MethodPost, "/workflows/"+created.ID+"/enable", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &toggled)
	assert.True(t, toggled.Enabled)
}

func TestAPIHandlers_SetDefaultWorkflow_RejectsDisabled(t *testing.T) {
	app, _, _ := newTestAPI(t)

	created := createWorkflow(t, app, CreateWorkflowRequest{
		Name:  "Echo flow",
		Graph: echoGraph(),
	})

	resp := doJSON(t, app, fiber.MethodPost, "/workflows/"+created.ID+"/default", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_ExecuteTurn(t *testing.T) {
	app, _, _ := newTestAPI(t)

	created := createWorkflow(t, app, CreateWorkflowRequest{
		Name:    "Echo flow",
		Enabled: true,
		Graph:   echoGraph(),
	})

	resp := doJSON(t, app, fiber.MethodPost, "/turns", ExecuteTurnRequest{
		WorkflowID: created.ID,
		SessionID:  "session-1",
		Query:      "hello",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result workflow.TurnResult
	decodeJSON(t, resp, &result)
	assert.Equal(t, "Echo: hello", result.Reply)
	assert.False(t, result.Paused)

	resp = doJSON(t, app, fiber.MethodGet, "/sessions/session-1/executions", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var logs struct {
		Count int `json:"count"`
	}
	decodeJSON(t, resp, &logs)
	assert.Equal(t, 1, logs.Count)
}

func TestAPIHandlers_ExecuteTurn_RejectsMissingQuery(t *testing.T) {
	app, _, _ := newTestAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/turns", ExecuteTurnRequest{SessionID: "session-1"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_ExecuteTurn_NoDefaultWorkflow(t *testing.T) {
	app, _, _ := newTestAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/turns", ExecuteTurnRequest{
		SessionID: "session-1",
		Query:     "hello",
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_PausedStateLifecycle(t *testing.T) {
	app, _, suspensions := newTestAPI(t)

	ec := models.NewExecutionContext("wf-1", "session-9", "book a flight")
	_, err := suspensions.Pause(context.Background(), ec, "llm-1", "missing_param:date", "Which date?")
	require.NoError(t, err)

	resp := doJSON(t, app, fiber.MethodGet, "/sessions/session-9/paused-state", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var state PausedStateResponse
	decodeJSON(t, resp, &state)
	assert.Equal(t, "session-9", state.SessionID)
	assert.Equal(t, "llm-1", state.NodeID)
	assert.Equal(t, "Which date?", state.NextQuestion)
	assert.Equal(t, string(models.PausedStatusWaitingUserInput), state.Status)

	resp = doJSON(t, app, fiber.MethodDelete, "/sessions/session-9/paused-state", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cancelled map[string]int
	decodeJSON(t, resp, &cancelled)
	assert.Equal(t, 1, cancelled["cancelled"])

	resp = doJSON(t, app, fiber.MethodDelete, "/sessions/session-9/paused-state", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_GetPausedState_NotFound(t *testing.T) {
	app, _, _ := newTestAPI(t)

	resp := doJSON(t, app, fiber.MethodGet, "/sessions/none/paused-state", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
