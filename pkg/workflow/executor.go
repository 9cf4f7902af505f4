// Package workflow drives graph traversal for conversation turns and owns
// workflow definition management.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/otelhelper"
	"github.com/convflow/convflow/pkg/registry"
)

// maxSteps bounds one traversal so a cyclic graph cannot spin forever.
const maxSteps = 100

// ExecutionResult is the outcome of one graph traversal.
type ExecutionResult struct {
	Reply          string
	Paused         bool
	PausedNodeID   string
	PauseReason    string
	HumanTransfer  bool
	TransferReason string
	Failed         bool
	FailedNodeID   string
	Err            error
}

// Executor walks a workflow graph node by node, dispatching each node to its
// registered handler and following edges by the handler's branch decision.
type Executor struct {
	logger   *slog.Logger
	registry *registry.Registry
	tracer   trace.Tracer
}

// NewExecutor creates an executor. A nil tracer disables tracing.
func NewExecutor(logger *slog.Logger, reg *registry.Registry, tracer trace.Tracer) *Executor {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("convflow")
	}

	return &Executor{
		logger:   logger.With("module", "executor"),
		registry: reg,
		tracer:   tracer,
	}
}

// Run traverses the graph starting at startNodeID, mutating the execution
// context in place. An empty startNodeID starts at the graph's start node.
func (e *Executor) Run(ctx context.Context, graph *models.Graph, ec *models.ExecutionContext, startNodeID string) (*ExecutionResult, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String(otelhelper.WorkflowIDKey, ec.WorkflowID),
			attribute.String(otelhelper.SessionIDKey, ec.SessionID),
			attribute.String(otelhelper.TenantIDKey, ec.TenantID),
		))
	defer span.End()

	seedContext(graph, ec)

	current := graph.NodeByID(startNodeID)
	if startNodeID == "" {
		current = graph.StartNode()
	}

	if current == nil {
		return nil, fmt.Errorf("workflow %s has no node to start from (start_node=%q)", ec.WorkflowID, startNodeID)
	}

	logger := e.logger.With(
		"workflow_id", ec.WorkflowID,
		"session_id", ec.SessionID,
	)

	for step := 0; step < maxSteps; step++ {
		outcome, detail := e.executeNode(ctx, current, ec)
		ec.AddExecutionDetail(detail)

		switch o := outcome.(type) {
		case models.Continue:
			next, err := e.nextNode(graph, current, o.Branch)
			if err != nil {
				logger.ErrorContext(ctx, "Traversal failed", "node_id", current.ID, "error", err)

				return &ExecutionResult{
					Failed:       true,
					FailedNodeID: current.ID,
					Err:          err,
				}, err
			}

			if next == nil {
				// Dead end without an end node: the accumulated reply stands.
				return &ExecutionResult{
					Reply:          ec.FinalReply,
					HumanTransfer:  ec.NeedHumanTransfer,
					TransferReason: ec.HumanTransferReason,
				}, nil
			}

			current = next

		case models.Suspend:
			logger.InfoContext(ctx, "Node suspended traversal",
				"node_id", current.ID, "reason", o.Reason)

			return &ExecutionResult{
				Reply:        o.Message,
				Paused:       true,
				PausedNodeID: current.ID,
				PauseReason:  o.Reason,
			}, nil

		case models.Complete:
			return &ExecutionResult{
				Reply:          o.FinalReply,
				HumanTransfer:  o.HumanTransfer,
				TransferReason: o.Reason,
			}, nil

		case models.Fail:
			logger.ErrorContext(ctx, "Node execution failed",
				"node_id", current.ID, "error", o.Err)

			return &ExecutionResult{
				Failed:       true,
				FailedNodeID: current.ID,
				Err:          o.Err,
			}, o.Err

		default:
			err := fmt.Errorf("node %s returned unknown outcome %T", current.ID, outcome)

			return &ExecutionResult{Failed: true, FailedNodeID: current.ID, Err: err}, err
		}
	}

	err := fmt.Errorf("workflow %s exceeded %d steps, likely a cycle", ec.WorkflowID, maxSteps)

	return &ExecutionResult{Failed: true, Err: err}, err
}

// executeNode dispatches one node and captures its timing. A handler error
// or panic never propagates; it becomes a Fail outcome on the detail record.
func (e *Executor) executeNode(ctx context.Context, node *models.Node, ec *models.ExecutionContext) (outcome models.Outcome, detail models.NodeExecutionDetail) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "workflow.node",
		trace.WithAttributes(
			attribute.String(otelhelper.WorkflowIDKey, ec.WorkflowID),
			attribute.String(otelhelper.SessionIDKey, ec.SessionID),
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
		))
	defer span.End()

	detail = models.NodeExecutionDetail{
		NodeID:    node.ID,
		NodeType:  string(node.Type),
		NodeName:  node.Data.Label,
		Input:     ec.LastOutput(),
		StartTime: start.UnixMilli(),
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("node %s panicked: %v", node.ID, r)
			outcome = models.Fail{Err: err}
			otelhelper.SetError(span, err)
			finishDetail(&detail, start, nil, err)
		}
	}()

	handler, err := e.registry.CreateNode(string(node.Type), node.ID, node.Data.Config)
	if err != nil {
		otelhelper.SetError(span, err)
		finishDetail(&detail, start, nil, err)

		return models.Fail{Err: err}, detail
	}

	outcome, err = handler.Execute(ctx, ec)
	if err != nil {
		if _, isFail := outcome.(models.Fail); !isFail {
			outcome = models.Fail{Err: err}
		}

		otelhelper.SetError(span, err)
		finishDetail(&detail, start, ec.Output(node.ID), err)

		return outcome, detail
	}

	finishDetail(&detail, start, ec.Output(node.ID), nil)

	return outcome, detail
}

func finishDetail(detail *models.NodeExecutionDetail, start time.Time, output any, err error) {
	end := time.Now()
	detail.EndTime = end.UnixMilli()
	detail.DurationMs = end.Sub(start).Milliseconds()
	detail.Output = output
	detail.Success = err == nil

	if err != nil {
		detail.ErrorMessage = err.Error()
	}
}

// nextNode selects the outgoing edge matching the branch. An empty branch
// takes the single unlabeled edge; a named branch requires a matching
// sourceHandle. nil with no error means the traversal reached a leaf.
func (e *Executor) nextNode(graph *models.Graph, current *models.Node, branch string) (*models.Node, error) {
	edges := graph.OutgoingEdges(current.ID)
	if len(edges) == 0 {
		return nil, nil
	}

	var chosen *models.Edge

	if branch == "" {
		for _, edge := range edges {
			if edge.SourceHandle == "" {
				chosen = edge

				break
			}
		}

		if chosen == nil {
			chosen = edges[0]
		}
	} else {
		for _, edge := range edges {
			if edge.SourceHandle == branch {
				chosen = edge

				break
			}
		}
	}

	if chosen == nil {
		return nil, fmt.Errorf("node %s has no outgoing edge for branch %q", current.ID, branch)
	}

	next := graph.NodeByID(chosen.Target)
	if next == nil {
		return nil, fmt.Errorf("edge %s targets unknown node %s", chosen.ID, chosen.Target)
	}

	return next, nil
}

// seedContext exposes every node's config and label to the context so
// handlers and templates can reference them.
func seedContext(graph *models.Graph, ec *models.ExecutionContext) {
	for _, node := range graph.Nodes {
		if node.Data.Config != nil {
			ec.NodesConfig[node.ID] = node.Data.Config
		}

		if node.Data.Label != "" {
			ec.NodeLabels[node.ID] = node.Data.Label
		}
	}
}
