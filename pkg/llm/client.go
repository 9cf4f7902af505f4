// Package llm defines the narrow contract the engine consumes from LLM
// providers. The provider wire protocol itself lives outside this module;
// node handlers only need chat completion, structured extraction and
// lightweight retrieval.
package llm

import "context"

// Message is one turn of a chat exchange sent to a provider.
type Message struct {
	Role    string `json:"role"` // system / user / assistant / tool
	Content string `json:"content"`
}

// ToolCall is a tool invocation the provider requested.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolSpec describes a tool offered to the provider.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ChatRequest is one completion call.
type ChatRequest struct {
	SystemPrompt string     `json:"system_prompt,omitempty"`
	Messages     []Message  `json:"messages"`
	Tools        []ToolSpec `json:"tools,omitempty"`
	Temperature  float64    `json:"temperature,omitempty"`
	Model        string     `json:"model,omitempty"`
}

// ChatResponse is a provider answer. Text may still contain an inline
// <think> block; RawBody carries the provider's raw response for metadata
// probing. Callers separate thinking before using Text (pkg/thinking).
type ChatResponse struct {
	Text      string     `json:"text"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	RawBody   string     `json:"-"`
}

// Document is one retrieval hit from a knowledge source.
type Document struct {
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// ChatClient is the completion surface consumed by llm and intent nodes.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Extract pulls named fields out of free text, returning only the
	// fields it could resolve. Used for tool parameter collection.
	Extract(ctx context.Context, fields []string, text string) (map[string]any, error)
}

// SearchRequest is one retrieval call against a knowledge base.
type SearchRequest struct {
	KnowledgeBaseID string  `json:"knowledge_base_id"`
	Query           string  `json:"query"`
	TopK            int     `json:"top_k,omitempty"`
	ScoreThreshold  float64 `json:"score_threshold,omitempty"`
}

// Retriever is the knowledge-lookup surface consumed by knowledge nodes.
// Ranking internals belong to the collaborator, not this engine.
type Retriever interface {
	Search(ctx context.Context, req SearchRequest) ([]Document, error)
}
