// Package graph parses and validates the node/edge JSON produced by the
// external workflow editor. Unknown editor fields (selection, animation
// state) are ignored, never rejected.
package graph

import (
	"encoding/json"
	"fmt"

	"github.com/convflow/convflow/pkg/models"
)

// Parse decodes node and edge arrays into an executable graph. Unknown
// fields are dropped by the decoder; structural problems are returned as
// errors.
func Parse(nodesJSON, edgesJSON []byte) (*models.Graph, error) {
	g := &models.Graph{}

	if len(nodesJSON) > 0 {
		if err := json.Unmarshal(nodesJSON, &g.Nodes); err != nil {
			return nil, fmt.Errorf("failed to parse nodes: %w", err)
		}
	}

	if len(edgesJSON) > 0 {
		if err := json.Unmarshal(edgesJSON, &g.Edges); err != nil {
			return nil, fmt.Errorf("failed to parse edges: %w", err)
		}
	}

	return g, nil
}

// ValidationResult carries all problems found in a graph.
type ValidationResult struct {
	Errors []string
}

// Valid reports whether the graph passed validation.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks the executable invariants: every edge endpoint references
// an existing node, and the graph has exactly one start node.
func Validate(g *models.Graph) ValidationResult {
	var result ValidationResult

	ids := make(map[string]bool, len(g.Nodes))
	starts := 0

	for _, n := range g.Nodes {
		if n.ID == "" {
			result.Errors = append(result.Errors, "node with empty id")

			continue
		}

		if ids[n.ID] {
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate node id %q", n.ID))
		}

		ids[n.ID] = true

		if n.Type == models.NodeTypeStart {
			starts++
		}
	}

	if starts == 0 {
		result.Errors = append(result.Errors, "graph has no start node")
	} else if starts > 1 {
		result.Errors = append(result.Errors, fmt.Sprintf("graph has %d start nodes, expected exactly one", starts))
	}

	for _, e := range g.Edges {
		if !ids[e.Source] {
			result.Errors = append(result.Errors, fmt.Sprintf("edge %q references unknown source node %q", e.ID, e.Source))
		}

		if !ids[e.Target] {
			result.Errors = append(result.Errors, fmt.Sprintf("edge %q references unknown target node %q", e.ID, e.Target))
		}
	}

	return result
}
