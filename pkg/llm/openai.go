package llm

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

const defaultChatTimeout = 60 * time.Second

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible API. model is
// the default used when a request names none.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: defaultChatTimeout},
	}
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

// Chat runs one completion call.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	wireReq := chatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
	}

	if req.SystemPrompt != "" {
		wireReq.Messages = append(wireReq.Messages, wireMessage{Role: "system", Content: req.SystemPrompt})
	}

	for _, m := range req.Messages {
		wireReq.Messages = append(wireReq.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}

	for _, t := range req.Tools {
		var tool wireTool
		tool.Type = "function"
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		wireReq.Tools = append(wireReq.Tools, tool)
	}

	rawBody, err := c.post(ctx, "/chat/completions", wireReq)
	if err != nil {
		return nil, err
	}

	var wireResp chatCompletionResponse
	if err := json.Unmarshal(rawBody, &wireResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat completion response: %w", err)
	}

	if len(wireResp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	message := wireResp.Choices[0].Message

	resp := &ChatResponse{
		Text:    message.Content,
		RawBody: string(rawBody),
	}

	for _, call := range message.ToolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("failed to decode tool call arguments: %w", err)
			}
		}

		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	return resp, nil
}

// Extract asks the model to pull the named fields out of free text as a
// strict JSON object. Fields the model cannot resolve are omitted.
func (c *OpenAIClient) Extract(ctx context.Context, fields []string, text string) (map[string]any, error) {
	prompt := fmt.Sprintf(
		"Extract the following fields from the user message: %s. "+
			"Reply with only a JSON object containing the fields you can resolve; omit the rest.",
		strings.Join(fields, ", "))

	resp, err := c.Chat(ctx, ChatRequest{
		SystemPrompt: prompt,
		Messages:     []Message{{Role: "user", Content: text}},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	extracted := map[string]any{}

	payload := strings.TrimSpace(resp.Text)
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")
	payload = strings.TrimSuffix(payload, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &extracted); err != nil {
		// A non-JSON answer means nothing usable was extracted.
		return map[string]any{}, nil
	}

	return extracted, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(data))
	}

	return data, nil
}

var _ ChatClient = (*OpenAIClient)(nil)
