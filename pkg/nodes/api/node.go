// Package api provides the outbound HTTP node. URL, headers and body are all
// templated against the execution context; the response can be narrowed with
// a jq filter before it becomes the node output.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/template"
)

// ErrorBranch is the handle taken on request failure when the node is
// configured to continue instead of failing the run.
const ErrorBranch = "error"

// ApiNode calls an external HTTP endpoint during traversal.
type ApiNode struct {
	id     string
	config Config
	client *http.Client
	filter *responseFilter
}

func (n *ApiNode) ID() string {
	return n.id
}

func (n *ApiNode) Type() string {
	return string(models.NodeTypeAPI)
}

func (n *ApiNode) Execute(ctx context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	output, err := n.call(ctx, ec)
	if err != nil {
		if n.config.ContinueOnError {
			errText := err.Error()
			ec.SetOutput(n.id, errText)

			return models.Continue{Output: errText, Branch: ErrorBranch}, nil
		}

		return models.Fail{Err: err}, fmt.Errorf("api node %s request failed: %w", n.id, err)
	}

	ec.SetOutput(n.id, output)

	return models.Continue{Output: output}, nil
}

func (n *ApiNode) call(ctx context.Context, ec *models.ExecutionContext) (any, error) {
	url := template.Render(n.config.URL, ec)

	var body io.Reader
	if n.config.Body != "" {
		body = strings.NewReader(template.Render(n.config.Body, ec))
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range n.config.Headers {
		req.Header.Set(key, template.Render(value, ec))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("endpoint %s returned status %d: %s", url, resp.StatusCode, truncate(string(payload), 200))
	}

	return n.shapeOutput(payload)
}

// shapeOutput applies the configured jq filter; without one the decoded JSON
// body (or the raw text when not JSON) is the output.
func (n *ApiNode) shapeOutput(payload []byte) (any, error) {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		if n.filter != nil {
			return nil, fmt.Errorf("response filter configured but body is not JSON: %w", err)
		}

		return string(payload), nil
	}

	if n.filter == nil {
		return decoded, nil
	}

	return n.filter.Apply(decoded)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
