package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/nodes/condition"
	"github.com/convflow/convflow/pkg/nodes/end"
	"github.com/convflow/convflow/pkg/nodes/llmnode"
	"github.com/convflow/convflow/pkg/nodes/reply"
	"github.com/convflow/convflow/pkg/nodes/start"
	"github.com/convflow/convflow/pkg/registry"
	"github.com/convflow/convflow/pkg/toolcall"
)

type stubChatClient struct {
	response  *llm.ChatResponse
	err       error
	extracted map[string]any
}

func (s *stubChatClient) Chat(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	return s.response, s.err
}

func (s *stubChatClient) Extract(_ context.Context, _ []string, _ string) (map[string]any, error) {
	return s.extracted, nil
}

type stubToolInvoker struct {
	output string
	err    error
}

func (s *stubToolInvoker) Invoke(_ context.Context, _ *toolcall.ToolDefinition, _ map[string]any) (string, error) {
	return s.output, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func testRegistry(client llm.ChatClient, invoker toolcall.Invoker) *registry.Registry {
	reg := registry.NewRegistry(testLogger())
	reg.RegisterNode(start.NewFactory())
	reg.RegisterNode(reply.NewFactory())
	reg.RegisterNode(end.NewFactory())
	reg.RegisterNode(condition.NewFactory())
	reg.RegisterNode(llmnode.NewFactory(client, invoker))

	return reg
}

func node(id string, nodeType models.NodeType, config string) *models.Node {
	n := &models.Node{ID: id, Type: nodeType}
	if config != "" {
		n.Data.Config = json.RawMessage(config)
	}

	return n
}

func edge(id, source, target, handle string) *models.Edge {
	return &models.Edge{ID: id, Source: source, Target: target, SourceHandle: handle}
}

func linearGraph() *models.Graph {
	return &models.Graph{
		Nodes: []*models.Node{
			node("start-1", models.NodeTypeStart, ""),
			node("reply-1", models.NodeTypeReply, `{"text":"Echo: {{sys.query}}"}`),
			node("end-1", models.NodeTypeEnd, ""),
		},
		Edges: []*models.Edge{
			edge("e1", "start-1", "reply-1", ""),
			edge("e2", "reply-1", "end-1", ""),
		},
	}
}

func TestExecutor_Run_LinearGraph(t *testing.T) {
	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	ec := models.NewExecutionContext("wf-1", "session-1", "hello")

	result, err := executor.Run(context.Background(), linearGraph(), ec, "")
	require.NoError(t, err)

	assert.Equal(t, "Echo: hello", result.Reply)
	assert.False(t, result.Paused)
	require.Len(t, ec.ExecutionDetails, 3)
	assert.Equal(t, "start-1", ec.ExecutionDetails[0].NodeID)
	assert.Equal(t, "end-1", ec.ExecutionDetails[2].NodeID)
	assert.True(t, ec.ExecutionDetails[1].Success)
}

func TestExecutor_Run_ConditionBranching(t *testing.T) {
	graph := &models.Graph{
		Nodes: []*models.Node{
			node("start-1", models.NodeTypeStart, ""),
			node("cond-1", models.NodeTypeCondition, `{"conditions":[
				{"id":"greet","sourceValue":"{{sys.query}}","conditionType":"contains","inputValue":"hello"}
			]}`),
			node("reply-yes", models.NodeTypeReply, `{"text":"Hi!","terminal":true}`),
			node("reply-no", models.NodeTypeReply, `{"text":"Else branch","terminal":true}`),
		},
		Edges: []*models.Edge{
			edge("e1", "start-1", "cond-1", ""),
			edge("e2", "cond-1", "reply-yes", "greet"),
			edge("e3", "cond-1", "reply-no", "else"),
		},
	}

	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	ec := models.NewExecutionContext("wf-1", "session-1", "hello there")
	result, err := executor.Run(context.Background(), graph, ec, "")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", result.Reply)

	ec = models.NewExecutionContext("wf-1", "session-1", "goodbye")
	result, err = executor.Run(context.Background(), graph, ec, "")
	require.NoError(t, err)
	assert.Equal(t, "Else branch", result.Reply)
}

func TestExecutor_Run_MissingBranchEdgeFails(t *testing.T) {
	graph := &models.Graph{
		Nodes: []*models.Node{
			node("start-1", models.NodeTypeStart, ""),
			node("cond-1", models.NodeTypeCondition, `{"conditions":[
				{"id":"greet","sourceValue":"a","conditionType":"equals","inputValue":"a"}
			]}`),
			node("reply-no", models.NodeTypeReply, `{"text":"x"}`),
		},
		Edges: []*models.Edge{
			edge("e1", "start-1", "cond-1", ""),
			edge("e3", "cond-1", "reply-no", "else"),
		},
	}

	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	result, err := executor.Run(context.Background(), graph, models.NewExecutionContext("wf-1", "session-1", "q"), "")
	require.Error(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, "cond-1", result.FailedNodeID)
	assert.Contains(t, err.Error(), `no outgoing edge for branch "greet"`)
}

func TestExecutor_Run_SuspendSurfacesPause(t *testing.T) {
	client := &stubChatClient{response: &llm.ChatResponse{
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_weather", Arguments: map[string]any{"city": "Lisbon"}}},
	}}

	graph := &models.Graph{
		Nodes: []*models.Node{
			node("start-1", models.NodeTypeStart, ""),
			node("llm-1", models.NodeTypeLLM, `{"tools":[{
				"id":"tool-weather","name":"get_weather",
				"parameters":[
					{"name":"city","required":true},
					{"name":"date","displayName":"Date","required":true}
				]
			}]}`),
			node("end-1", models.NodeTypeEnd, ""),
		},
		Edges: []*models.Edge{
			edge("e1", "start-1", "llm-1", ""),
			edge("e2", "llm-1", "end-1", ""),
		},
	}

	executor := NewExecutor(testLogger(), testRegistry(client, &stubToolInvoker{}), nil)

	ec := models.NewExecutionContext("wf-1", "session-1", "weather in lisbon")
	result, err := executor.Run(context.Background(), graph, ec, "")
	require.NoError(t, err)

	assert.True(t, result.Paused)
	assert.Equal(t, "llm-1", result.PausedNodeID)
	assert.Equal(t, "missing_param:date", result.PauseReason)
	assert.Contains(t, result.Reply, "Date")
}

func TestExecutor_Run_StartNodeOverride(t *testing.T) {
	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	ec := models.NewExecutionContext("wf-1", "session-1", "hello")

	// Resuming mid-graph skips the start node.
	result, err := executor.Run(context.Background(), linearGraph(), ec, "reply-1")
	require.NoError(t, err)

	assert.Equal(t, "Echo: hello", result.Reply)
	require.Len(t, ec.ExecutionDetails, 2)
	assert.Equal(t, "reply-1", ec.ExecutionDetails[0].NodeID)
}

func TestExecutor_Run_UnknownStartNode(t *testing.T) {
	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	_, err := executor.Run(context.Background(), linearGraph(), models.NewExecutionContext("wf-1", "session-1", "q"), "ghost")
	assert.Error(t, err)
}

func TestExecutor_Run_CycleGuard(t *testing.T) {
	graph := &models.Graph{
		Nodes: []*models.Node{
			node("start-1", models.NodeTypeStart, ""),
			node("reply-1", models.NodeTypeReply, `{"text":"loop"}`),
		},
		Edges: []*models.Edge{
			edge("e1", "start-1", "reply-1", ""),
			edge("e2", "reply-1", "reply-1", ""),
		},
	}

	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	result, err := executor.Run(context.Background(), graph, models.NewExecutionContext("wf-1", "session-1", "q"), "")
	require.Error(t, err)
	assert.True(t, result.Failed)
	assert.Contains(t, err.Error(), "cycle")
}

func TestExecutor_Run_UnregisteredNodeTypeFails(t *testing.T) {
	graph := &models.Graph{
		Nodes: []*models.Node{
			node("start-1", models.NodeTypeStart, ""),
			node("api-1", models.NodeTypeAPI, `{"url":"https://example.com"}`),
		},
		Edges: []*models.Edge{
			edge("e1", "start-1", "api-1", ""),
		},
	}

	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	ec := models.NewExecutionContext("wf-1", "session-1", "q")
	result, err := executor.Run(context.Background(), graph, ec, "")
	require.Error(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, "api-1", result.FailedNodeID)

	// The failure lands on the node's detail record.
	last := ec.ExecutionDetails[len(ec.ExecutionDetails)-1]
	assert.False(t, last.Success)
	assert.Contains(t, last.ErrorMessage, "not registered")
}

func TestExecutor_Run_DeadEndWithoutEndNode(t *testing.T) {
	graph := &models.Graph{
		Nodes: []*models.Node{
			node("start-1", models.NodeTypeStart, ""),
			node("reply-1", models.NodeTypeReply, `{"text":"standalone"}`),
		},
		Edges: []*models.Edge{
			edge("e1", "start-1", "reply-1", ""),
		},
	}

	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	result, err := executor.Run(context.Background(), graph, models.NewExecutionContext("wf-1", "session-1", "q"), "")
	require.NoError(t, err)
	assert.Equal(t, "standalone", result.Reply)
}

func TestExecutor_Run_SeedsNodeConfigs(t *testing.T) {
	executor := NewExecutor(testLogger(), testRegistry(&stubChatClient{}, &stubToolInvoker{}), nil)

	ec := models.NewExecutionContext("wf-1", "session-1", "hello")

	_, err := executor.Run(context.Background(), linearGraph(), ec, "")
	require.NoError(t, err)

	assert.NotNil(t, ec.NodeConfig("reply-1"))
}
