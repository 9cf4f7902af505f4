package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/models"
)

func TestParse_ValidGraph(t *testing.T) {
	nodesJSON := []byte(`[
		{"id":"start-1","type":"start","position":{"x":0,"y":0}},
		{"id":"reply-1","type":"reply","data":{"label":"Greet","config":{"text":"hi"}},"position":{"x":100,"y":0}}
	]`)
	edgesJSON := []byte(`[
		{"id":"e1","source":"start-1","target":"reply-1"}
	]`)

	g, err := Parse(nodesJSON, edgesJSON)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)

	assert.Equal(t, models.NodeTypeStart, g.Nodes[0].Type)
	assert.Equal(t, "Greet", g.Nodes[1].Data.Label)
	assert.JSONEq(t, `{"text":"hi"}`, string(g.Nodes[1].Data.Config))
}

func TestParse_IgnoresUnknownEditorFields(t *testing.T) {
	nodesJSON := []byte(`[
		{"id":"start-1","type":"start","selected":true,"dragging":false,"width":180}
	]`)

	g, err := Parse(nodesJSON, nil)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "start-1", g.Nodes[0].ID)
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`), nil)
	assert.Error(t, err)

	_, err = Parse(nil, []byte(`{not json`))
	assert.Error(t, err)
}

func TestValidate_ValidGraph(t *testing.T) {
	g := &models.Graph{
		Nodes: []*models.Node{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "end-1", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start-1", Target: "end-1"},
		},
	}

	result := Validate(g)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Errors)
}

func TestValidate_MissingStartNode(t *testing.T) {
	g := &models.Graph{
		Nodes: []*models.Node{{ID: "reply-1", Type: models.NodeTypeReply}},
	}

	result := Validate(g)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors, "graph has no start node")
}

func TestValidate_MultipleStartNodes(t *testing.T) {
	g := &models.Graph{
		Nodes: []*models.Node{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "start-2", Type: models.NodeTypeStart},
		},
	}

	result := Validate(g)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0], "2 start nodes")
}

func TestValidate_DanglingEdge(t *testing.T) {
	g := &models.Graph{
		Nodes: []*models.Node{{ID: "start-1", Type: models.NodeTypeStart}},
		Edges: []*models.Edge{{ID: "e1", Source: "start-1", Target: "ghost"}},
	}

	result := Validate(g)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0], `unknown target node "ghost"`)
}

func TestValidate_DuplicateNodeID(t *testing.T) {
	g := &models.Graph{
		Nodes: []*models.Node{
			{ID: "start-1", Type: models.NodeTypeStart},
			{ID: "start-1", Type: models.NodeTypeReply},
		},
	}

	result := Validate(g)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0], "duplicate node id")
}

func TestGraph_OutgoingEdges_PreservesOrder(t *testing.T) {
	g := &models.Graph{
		Nodes: []*models.Node{
			{ID: "cond-1", Type: models.NodeTypeCondition},
			{ID: "a"}, {ID: "b"},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "cond-1", Target: "a", SourceHandle: "yes"},
			{ID: "e2", Source: "cond-1", Target: "b", SourceHandle: "else"},
		},
	}

	edges := g.OutgoingEdges("cond-1")
	require.Len(t, edges, 2)
	assert.Equal(t, "yes", edges[0].SourceHandle)
	assert.Equal(t, "else", edges[1].SourceHandle)
}
