package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 4 << 20
)

// Config holds the api node options.
type Config struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	// Body is a template rendered before sending; JSON is assumed.
	Body string `json:"body,omitempty"`
	// TimeoutMs bounds the whole request.
	TimeoutMs int64 `json:"timeoutMs,omitempty"`
	// ResponseFilter is a jq expression applied to the JSON response to
	// shape the node output, e.g. ".data.items[0].name".
	ResponseFilter string `json:"responseFilter,omitempty"`
	// ContinueOnError routes to the "error" handle instead of failing the
	// run when the request errors or returns a 4xx/5xx status.
	ContinueOnError bool `json:"continueOnError,omitempty"`
}

// responseFilter wraps a compiled gojq query.
type responseFilter struct {
	query *gojq.Query
}

// Apply runs the filter and returns its first result. No results means a
// nil output, which downstream templating renders as empty.
func (f *responseFilter) Apply(input any) (any, error) {
	iter := f.query.Run(input)

	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("response filter failed: %w", err)
	}

	return v, nil
}

// NewApiNode parses and validates the config, compiling the jq filter once.
func NewApiNode(id string, raw json.RawMessage) (*ApiNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse api node config: %w", err)
		}
	}
	if strings.TrimSpace(config.URL) == "" {
		return nil, fmt.Errorf("api node %s has no url configured", id)
	}

	if config.Method == "" {
		config.Method = http.MethodPost
	}
	config.Method = strings.ToUpper(config.Method)

	timeout := defaultTimeout
	if config.TimeoutMs > 0 {
		timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	}

	var filter *responseFilter
	if strings.TrimSpace(config.ResponseFilter) != "" {
		query, err := gojq.Parse(config.ResponseFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse response filter %q: %w", config.ResponseFilter, err)
		}
		filter = &responseFilter{query: query}
	}

	return &ApiNode{
		id:     id,
		config: config,
		client: &http.Client{Timeout: timeout},
		filter: filter,
	}, nil
}

// Factory creates ApiNode instances.
type Factory struct{}

func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewApiNode(id, config)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeAPI)
}

func (f *Factory) Name() string {
	return "API"
}

func (f *Factory) Description() string {
	return "Calls an external HTTP endpoint and exposes the shaped response."
}
