package graph

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// nodeArraySchema is the structural contract for the editor's node array.
// additionalProperties stays open: editor metadata must be tolerated.
const nodeArraySchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "type"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"type": {
				"type": "string",
				"enum": ["start", "llm", "condition", "reply", "api", "knowledge",
					"intent", "human_transfer", "delay", "end"]
			},
			"data": {
				"type": "object",
				"properties": {
					"label": {"type": "string"},
					"config": {}
				}
			},
			"position": {
				"type": "object",
				"properties": {
					"x": {"type": "number"},
					"y": {"type": "number"}
				}
			}
		}
	}
}`

const edgeArraySchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "source", "target"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"source": {"type": "string", "minLength": 1},
			"target": {"type": "string", "minLength": 1},
			"sourceHandle": {"type": ["string", "null"]},
			"targetHandle": {"type": ["string", "null"]},
			"label": {"type": ["string", "null"]}
		}
	}
}`

// ValidateJSON checks the raw editor payloads against the structural schema
// before decoding. Returns the list of violations, empty when conforming.
func ValidateJSON(nodesJSON, edgesJSON []byte) ([]string, error) {
	var violations []string

	for _, check := range []struct {
		name   string
		schema string
		doc    []byte
	}{
		{"nodes", nodeArraySchema, nodesJSON},
		{"edges", edgeArraySchema, edgesJSON},
	} {
		if len(check.doc) == 0 {
			continue
		}

		result, err := gojsonschema.Validate(
			gojsonschema.NewStringLoader(check.schema),
			gojsonschema.NewBytesLoader(check.doc),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to validate %s schema: %w", check.name, err)
		}

		for _, desc := range result.Errors() {
			violations = append(violations, fmt.Sprintf("%s: %s", check.name, desc.String()))
		}
	}

	return violations, nil
}
