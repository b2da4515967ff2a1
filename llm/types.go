// Package llm provides the provider-agnostic LLM service used by the agent:
// request and response types, a routing client with middleware, retry and
// error classification, and adapters for gollm, OpenAI and test doubles.
package llm

import (
	"context"
	"fmt"

	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []tool.Call `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// DefaultTemperature is used when a request leaves Temperature unset.
const DefaultTemperature = 0.7

// Ptr returns a pointer to v, for optional request fields.
func Ptr[T any](v T) *T {
	return &v
}

// Request is the input to SendRequest and StreamRequest.
type Request struct {
	Messages     []Message      `json:"messages"`
	Tools        []tool.Schema  `json:"tools,omitempty"`
	User         *user.User     `json:"-"`
	Stream       bool           `json:"stream"`
	Temperature  *float64       `json:"temperature,omitempty"`
	MaxTokens    *int           `json:"max_tokens,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Model        string         `json:"model,omitempty"`
	Provider     string         `json:"provider,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// TemperatureOr returns the requested temperature, or def when unset.
func (r Request) TemperatureOr(def float64) float64 {
	if r.Temperature == nil {
		return def
	}
	return *r.Temperature
}

// Response is a complete model reply.
type Response struct {
	Content      string         `json:"content,omitempty"`
	ToolCalls    []tool.Call    `json:"tool_calls,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        map[string]int `json:"usage,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// IsToolCall reports whether the model asked for tools.
func (r *Response) IsToolCall() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// TotalTokens returns usage["total_tokens"], or prompt plus completion.
func (r *Response) TotalTokens() int {
	if r == nil || r.Usage == nil {
		return 0
	}
	if t, ok := r.Usage["total_tokens"]; ok {
		return t
	}
	return r.Usage["prompt_tokens"] + r.Usage["completion_tokens"]
}

// StreamChunk is one increment of a streamed reply. A chunk with Err set is
// the last one sent.
type StreamChunk struct {
	Content      string         `json:"content,omitempty"`
	ToolCalls    []tool.Call    `json:"tool_calls,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        map[string]int `json:"usage,omitempty"`
	Err          error          `json:"-"`
}

// Service is implemented by every LLM backend.
type Service interface {
	SendRequest(ctx context.Context, req Request) (*Response, error)
	StreamRequest(ctx context.Context, req Request) (<-chan StreamChunk, error)
	// ValidateTools returns human-readable problems with the given schemas.
	ValidateTools(tools []tool.Schema) []string
}

// Closer is implemented by services that hold resources.
type Closer interface {
	Close() error
}

// BasicToolValidation reports schemas missing a name or description.
func BasicToolValidation(tools []tool.Schema) []string {
	var errs []string
	seen := map[string]bool{}
	for i, t := range tools {
		switch {
		case t.Name == "":
			errs = append(errs, fmt.Sprintf("tool at index %d has no name", i))
		case seen[t.Name]:
			errs = append(errs, fmt.Sprintf("duplicate tool name '%s'", t.Name))
		}
		seen[t.Name] = true
		if t.Description == "" && t.Name != "" {
			errs = append(errs, fmt.Sprintf("tool '%s' has no description", t.Name))
		}
	}
	return errs
}

// Accumulate drains a stream into a Response. Tool calls and content from
// every chunk are concatenated; the last non-empty finish reason wins.
func Accumulate(ch <-chan StreamChunk) (*Response, error) {
	resp := &Response{Metadata: map[string]any{}}
	var content []byte
	for chunk := range ch {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		content = append(content, chunk.Content...)
		resp.ToolCalls = append(resp.ToolCalls, chunk.ToolCalls...)
		if chunk.FinishReason != "" {
			resp.FinishReason = chunk.FinishReason
		}
		if chunk.Usage != nil {
			resp.Usage = chunk.Usage
		}
	}
	resp.Content = string(content)
	return resp, nil
}
