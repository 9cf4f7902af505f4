package toolcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultInvokeTimeout = 30 * time.Second

// HTTPInvoker dispatches tool calls as JSON requests to the tool's endpoint.
type HTTPInvoker struct {
	client *http.Client
}

// NewHTTPInvoker creates an invoker with the default timeout.
func NewHTTPInvoker() *HTTPInvoker {
	return &HTTPInvoker{
		client: &http.Client{Timeout: defaultInvokeTimeout},
	}
}

// Invoke POSTs (or sends with the configured method) the collected
// parameters as a JSON body and returns the response body as text.
func (i *HTTPInvoker) Invoke(ctx context.Context, tool *ToolDefinition, params map[string]any) (string, error) {
	if tool.Endpoint == "" {
		return "", fmt.Errorf("tool %s has no endpoint configured", tool.Name)
	}

	method := strings.ToUpper(tool.Method)
	if method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool parameters: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, tool.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build tool request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range tool.Headers {
		req.Header.Set(k, v)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tool request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read tool response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("tool returned status %d: %s", resp.StatusCode, string(data))
	}

	return string(data), nil
}
