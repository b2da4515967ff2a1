package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/martinemde/vanna/tool"
)

// MockService answers every request with a fixed text. It never calls tools.
type MockService struct {
	mu        sync.Mutex
	content   string
	callCount int
	// Delay is slept before each reply and between streamed words.
	Delay time.Duration
}

// NewMockService returns a MockService replying with content.
func NewMockService(content string) *MockService {
	if content == "" {
		content = "Hello! This is a mock response."
	}
	return &MockService{content: content}
}

// SetResponse changes the reply text.
func (m *MockService) SetResponse(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
}

// CallCount returns how many requests were served.
func (m *MockService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// ResetCallCount zeroes the request counter.
func (m *MockService) ResetCallCount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
}

func (m *MockService) next() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return m.content, m.callCount
}

func (m *MockService) sleep(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.Delay):
		return nil
	}
}

func mockUsage() map[string]int {
	return map[string]int{"prompt_tokens": 50, "completion_tokens": 20, "total_tokens": 70}
}

func (m *MockService) SendRequest(ctx context.Context, req Request) (*Response, error) {
	content, n := m.next()
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	return &Response{
		Content:      fmt.Sprintf("%s (Request #%d)", content, n),
		FinishReason: "stop",
		Usage:        mockUsage(),
	}, nil
}

// StreamRequest streams the reply one word at a time.
func (m *MockService) StreamRequest(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	content, n := m.next()
	words := strings.Fields(fmt.Sprintf("%s (Streamed #%d)", content, n))

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for i, w := range words {
			if err := m.sleep(ctx); err != nil {
				ch <- StreamChunk{Err: err}
				return
			}
			chunk := StreamChunk{Content: w}
			if i < len(words)-1 {
				chunk.Content += " "
			} else {
				chunk.FinishReason = "stop"
				chunk.Usage = mockUsage()
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ValidateTools accepts anything.
func (m *MockService) ValidateTools([]tool.Schema) []string {
	return nil
}

// ServiceFunc adapts a function to Service. Streaming delivers the whole
// response as a single chunk.
type ServiceFunc func(ctx context.Context, req Request) (*Response, error)

func (f ServiceFunc) SendRequest(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

func (f ServiceFunc) StreamRequest(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	return singleChunk(f(ctx, req))
}

func (f ServiceFunc) ValidateTools(tools []tool.Schema) []string {
	return BasicToolValidation(tools)
}

func singleChunk(resp *Response, err error) (<-chan StreamChunk, error) {
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{
		Content:      resp.Content,
		ToolCalls:    resp.ToolCalls,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	}
	close(ch)
	return ch, nil
}

// ScriptStep is one scripted reply.
type ScriptStep struct {
	Response *Response
	Err      error
}

// Reply is a step answering with text.
func Reply(content string) ScriptStep {
	return ScriptStep{Response: &Response{Content: content, FinishReason: "stop"}}
}

// CallTools is a step requesting tool calls.
func CallTools(calls ...tool.Call) ScriptStep {
	return ScriptStep{Response: &Response{ToolCalls: calls, FinishReason: "tool_calls"}}
}

// Fail is a step returning err.
func Fail(err error) ScriptStep {
	return ScriptStep{Err: err}
}

// ScriptedService replays steps in order and records every request. Once the
// script runs out it keeps answering with Fallback, or an empty reply.
type ScriptedService struct {
	mu       sync.Mutex
	steps    []ScriptStep
	requests []Request
	Fallback *Response
}

// NewScriptedService returns a service replaying steps.
func NewScriptedService(steps ...ScriptStep) *ScriptedService {
	return &ScriptedService{steps: steps}
}

// Push appends steps to the script.
func (s *ScriptedService) Push(steps ...ScriptStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
}

// Requests returns a copy of the requests seen so far.
func (s *ScriptedService) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *ScriptedService) take(req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		if s.Fallback != nil {
			cp := *s.Fallback
			return &cp, nil
		}
		return &Response{FinishReason: "stop"}, nil
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	cp := *step.Response
	return &cp, nil
}

func (s *ScriptedService) SendRequest(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.take(req)
}

func (s *ScriptedService) StreamRequest(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return singleChunk(s.take(req))
}

func (s *ScriptedService) ValidateTools(tools []tool.Schema) []string {
	return BasicToolValidation(tools)
}
