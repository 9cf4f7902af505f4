// Package models defines the core domain models for conversation workflow execution.
package models

import "encoding/json"

// NodeType identifies the behavior of a workflow node.
type NodeType string

const (
	NodeTypeStart         NodeType = "start"
	NodeTypeLLM           NodeType = "llm"
	NodeTypeCondition     NodeType = "condition"
	NodeTypeReply         NodeType = "reply"
	NodeTypeAPI           NodeType = "api"
	NodeTypeKnowledge     NodeType = "knowledge"
	NodeTypeIntent        NodeType = "intent"
	NodeTypeHumanTransfer NodeType = "human_transfer"
	NodeTypeDelay         NodeType = "delay"
	NodeTypeEnd           NodeType = "end"
)

// Node is one typed unit of work in the workflow graph, as produced by the
// external graph editor. Editor metadata beyond these fields (selection,
// animation state and so on) is ignored on decode.
type Node struct {
	ID       string   `json:"id"       validate:"required"`
	Type     NodeType `json:"type"     validate:"required"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
}

// NodeData carries the display label and the node-type-specific config blob.
// Config stays raw JSON so each node handler can decode its own shape.
type NodeData struct {
	Label  string          `json:"label"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Position is presentation-only layout information from the editor.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge is a directed connection between two nodes. SourceHandle selects the
// branch on multi-output nodes (condition, intent, llm tool handles).
type Edge struct {
	ID           string `json:"id"           validate:"required"`
	Source       string `json:"source"       validate:"required"`
	Target       string `json:"target"       validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Graph is the executable node/edge set of one workflow version.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// StartNode returns the graph's start node, or nil if there is none.
func (g *Graph) StartNode() *Node {
	for _, n := range g.Nodes {
		if n.Type == NodeTypeStart {
			return n
		}
	}

	return nil
}

// OutgoingEdges returns all edges whose source is the given node id, in
// declaration order.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, e := range g.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}

	return out
}
