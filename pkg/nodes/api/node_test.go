package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/models"
)

func newApiNode(t *testing.T, config string) *ApiNode {
	t.Helper()

	node, err := NewApiNode("api-1", json.RawMessage(config))
	require.NoError(t, err)

	return node
}

func execContext() *models.ExecutionContext {
	ec := models.NewExecutionContext("wf-1", "session-1", "check my order")
	ec.SetVariable("orderId", "A-1001")

	return ec
}

func TestApiNode_TemplatedRequest(t *testing.T) {
	var gotPath, gotMethod, gotAuth, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"shipped"}`)
	}))
	defer server.Close()

	node := newApiNode(t, fmt.Sprintf(`{
		"url": "%s/orders/{{var.orderId}}",
		"method": "GET",
		"headers": {"Authorization": "Bearer token-{{var.orderId}}"},
		"body": "{\"query\": \"{{sys.query}}\"}"
	}`, server.URL))

	ec := execContext()

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.Equal(t, "/orders/A-1001", gotPath)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "Bearer token-A-1001", gotAuth)
	assert.JSONEq(t, `{"query": "check my order"}`, gotBody)

	cont, ok := outcome.(models.Continue)
	require.True(t, ok)
	assert.Empty(t, cont.Branch)
	assert.Equal(t, map[string]any{"status": "shipped"}, cont.Output)
	assert.Equal(t, cont.Output, ec.Output("api-1"))
}

func TestApiNode_ResponseFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"items":[{"name":"first"},{"name":"second"}]}}`)
	}))
	defer server.Close()

	node := newApiNode(t, fmt.Sprintf(`{
		"url": "%s",
		"responseFilter": ".data.items[0].name"
	}`, server.URL))

	outcome, err := node.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, "first", outcome.(models.Continue).Output)
}

func TestApiNode_NonJSONBodyIsRawOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "plain text pong")
	}))
	defer server.Close()

	node := newApiNode(t, fmt.Sprintf(`{"url": "%s"}`, server.URL))

	outcome, err := node.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, "plain text pong", outcome.(models.Continue).Output)
}

func TestApiNode_FilterOnNonJSONBodyFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer server.Close()

	node := newApiNode(t, fmt.Sprintf(`{"url": "%s", "responseFilter": ".x"}`, server.URL))

	outcome, err := node.Execute(context.Background(), execContext())
	require.Error(t, err)
	assert.IsType(t, models.Fail{}, outcome)
}

func TestApiNode_ErrorStatusFailsRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	node := newApiNode(t, fmt.Sprintf(`{"url": "%s"}`, server.URL))

	outcome, err := node.Execute(context.Background(), execContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.IsType(t, models.Fail{}, outcome)
}

func TestApiNode_ContinueOnErrorRoutesErrorBranch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	node := newApiNode(t, fmt.Sprintf(`{"url": "%s", "continueOnError": true}`, server.URL))

	ec := execContext()

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	cont, ok := outcome.(models.Continue)
	require.True(t, ok)
	assert.Equal(t, ErrorBranch, cont.Branch)
	assert.Contains(t, cont.Output.(string), "500")
	assert.Equal(t, cont.Output, ec.Output("api-1"))
}

func TestNewApiNode_Defaults(t *testing.T) {
	node := newApiNode(t, `{"url": "https://example.com/hook"}`)

	assert.Equal(t, http.MethodPost, node.config.Method)
	assert.Equal(t, defaultTimeout, node.client.Timeout)
}

func TestNewApiNode_Validation(t *testing.T) {
	_, err := NewApiNode("api-1", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no url")

	_, err = NewApiNode("api-1", json.RawMessage(`{"url":"https://example.com","responseFilter":"..bad.."}`))
	assert.Error(t, err)
}
