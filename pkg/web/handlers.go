// Package web provides the REST API for workflow management and turn
// execution.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/registry"
	"github.com/convflow/convflow/pkg/suspension"
	"github.com/convflow/convflow/pkg/workflow"
)

type APIHandlers struct {
	manager     *workflow.Manager
	engine      *workflow.Engine
	suspensions *suspension.Service
	store       persistence.Persistence
	validator   *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	manager *workflow.Manager,
	engine *workflow.Engine,
	suspensions *suspension.Service,
	store persistence.Persistence,
	validate *validator.Validate,
	reg *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		manager:     manager,
		engine:      engine,
		suspensions: suspensions,
		store:       store,
		validator:   validate,
		registry:    reg,
	}
}

// Register mounts every route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/node-types", h.GetNodeTypes)

	app.Get("/workflows", h.GetWorkflows)
	app.Post("/workflows", h.CreateWorkflow)
	app.Get("/workflows/:id", h.GetWorkflow)
	app.Patch("/workflows/:id", h.UpdateWorkflow)
	app.Delete("/workflows/:id", h.DeleteWorkflow)
	app.Post("/workflows/:id/copy", h.CopyWorkflow)
	app.Post("/workflows/:id/enable", h.EnableWorkflow)
	app.Post("/workflows/:id/disable", h.DisableWorkflow)
	app.Post("/workflows/:id/default", h.SetDefaultWorkflow)
	app.Get("/workflows/:id/executions", h.GetExecutionLogs)

	app.Post("/turns", h.ExecuteTurn)
	app.Get("/sessions/:sessionId/paused-state", h.GetPausedState)
	app.Delete("/sessions/:sessionId/paused-state", h.CancelPausedState)
	app.Get("/sessions/:sessionId/executions", h.GetSessionExecutionLogs)
}

func (h *APIHandlers) Health(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	storeCheck := "ok"
	if err := h.store.HealthCheck(c.Context()); err != nil {
		storeCheck = err.Error()
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"persistence": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"node_types": h.registry.AvailableNodeTypes(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.manager.List(c.Context())
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	found, err := h.manager.Get(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Graph:       req.Graph,
		Enabled:     req.Enabled,
		TriggerType: defaultTriggerType(req.TriggerType),
		Variables:   req.Variables,
		Owner:       req.Owner,
	}

	if err := h.manager.Save(c.Context(), created); err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.manager.Get(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Graph != nil {
		existing.Graph = *req.Graph
	}

	if req.TriggerType != nil {
		existing.TriggerType = *req.TriggerType
	}

	if req.Variables != nil {
		existing.Variables = req.Variables
	}

	if err := h.manager.Save(c.Context(), existing); err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.manager.Delete(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CopyWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	copied, err := h.manager.Copy(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(copied)
}

func (h *APIHandlers) EnableWorkflow(c fiber.Ctx) error {
	return h.toggleWorkflow(c, true)
}

func (h *APIHandlers) DisableWorkflow(c fiber.Ctx) error {
	return h.toggleWorkflow(c, false)
}

func (h *APIHandlers) toggleWorkflow(c fiber.Ctx, enabled bool) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	toggled, err := h.manager.SetEnabled(c.Context(), id, enabled)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(toggled)
}

func (h *APIHandlers) SetDefaultWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	updated, err := h.manager.SetDefault(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return handleStoreError(c, err)
		}

		return conflict(c, err.Error())
	}

	return c.JSON(updated)
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit parameter")
	}

	logs, err := h.manager.ExecutionLogs(c.Context(), id, limit)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"executions": logs, "count": len(logs)})
}

func (h *APIHandlers) GetSessionExecutionLogs(c fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return badRequest(c, "Session ID is required")
	}

	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit parameter")
	}

	logs, err := h.store.ExecutionLogsBySession(c.Context(), sessionID, limit)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"executions": logs, "count": len(logs)})
}

func (h *APIHandlers) ExecuteTurn(c fiber.Ctx) error {
	var req ExecuteTurnRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.ExecuteTurn(c.Context(), workflow.TurnRequest{
		WorkflowID:   req.WorkflowID,
		SessionID:    req.SessionID,
		MessageID:    req.MessageID,
		TenantID:     req.TenantID,
		CustomerID:   req.CustomerID,
		Query:        req.Query,
		CustomerInfo: req.CustomerInfo,
		Variables:    req.Variables,
		AgentSession: req.AgentSession,
		HistoryLimit: req.HistoryLimit,
	})
	if err != nil {
		if persistence.IsWorkflowNotFound(err) || errors.Is(err, persistence.ErrDefaultWorkflowNotFound) {
			return notFound(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetPausedState(c fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return badRequest(c, "Session ID is required")
	}

	state, err := h.suspensions.FindPending(c.Context(), sessionID)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(TransformPausedState(state))
}

func (h *APIHandlers) CancelPausedState(c fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return badRequest(c, "Session ID is required")
	}

	cancelled, err := h.suspensions.CancelPending(c.Context(), sessionID)
	if err != nil {
		return internalError(c, err)
	}

	if cancelled == 0 {
		return notFound(c, "no pending suspension for this session")
	}

	return c.JSON(fiber.Map{"cancelled": cancelled})
}

func parseLimit(c fiber.Ctx) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return 0, nil
	}

	return strconv.Atoi(limitStr)
}

func defaultTriggerType(t string) string {
	if t == "" {
		return "ALL"
	}

	return t
}
