package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultSearchTimeout = 15 * time.Second

// HTTPRetriever calls an external retrieval service that answers POST
// requests with a JSON document list.
type HTTPRetriever struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPRetriever creates a retriever for the given search endpoint.
func NewHTTPRetriever(endpoint, apiKey string) *HTTPRetriever {
	return &HTTPRetriever{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: defaultSearchTimeout},
	}
}

// Search posts the request and decodes the document list.
func (r *HTTPRetriever) Search(ctx context.Context, req SearchRequest) ([]Document, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(data))
	}

	var payload struct {
		Documents []Document `json:"documents"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return payload.Documents, nil
}

var _ Retriever = (*HTTPRetriever)(nil)
