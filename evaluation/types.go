// Package evaluation runs test cases against agents and scores the results.
// Several agent variants, typically one per LLM, can be compared on the same
// cases with bounded concurrency.
package evaluation

import (
	"context"
	"strings"
	"time"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/user"
)

// PassThreshold is the score at or above which the built-in evaluators pass.
const PassThreshold = 0.7

// ExpectedOutcome describes what a test case expects from the agent.
type ExpectedOutcome struct {
	ToolsCalled            []string       `json:"tools_called,omitempty" yaml:"tools_called,omitempty"`
	ToolsNotCalled         []string       `json:"tools_not_called,omitempty" yaml:"tools_not_called,omitempty"`
	FinalAnswerContains    []string       `json:"final_answer_contains,omitempty" yaml:"final_answer_contains,omitempty"`
	FinalAnswerNotContains []string       `json:"final_answer_not_contains,omitempty" yaml:"final_answer_not_contains,omitempty"`
	MinComponents          *int           `json:"min_components,omitempty" yaml:"min_components,omitempty"`
	MaxComponents          *int           `json:"max_components,omitempty" yaml:"max_components,omitempty"`
	MaxExecutionTimeMs     *float64       `json:"max_execution_time_ms,omitempty" yaml:"max_execution_time_ms,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// TestCase is one message sent to the agent as a given user.
type TestCase struct {
	ID             string
	User           *user.User
	Message        string
	ConversationID string
	Expected       *ExpectedOutcome
	Metadata       map[string]any
}

// ToolCallRecord is a tool call observed while running a test case.
type ToolCallRecord struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

// LlmRequestRecord is an LLM round trip observed while running a test case.
type LlmRequestRecord struct {
	Messages     int    `json:"messages"`
	Tools        int    `json:"tools"`
	ToolCalls    int    `json:"tool_calls"`
	TotalTokens  int    `json:"total_tokens"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// AgentResult captures everything the agent did for one test case.
type AgentResult struct {
	TestCaseID      string
	Components      []components.UiComponent
	ToolCalls       []ToolCallRecord
	LlmRequests     []LlmRequestRecord
	ExecutionTimeMs float64
	TotalTokens     int
	Error           string
	Metadata        map[string]any
}

// FinalAnswer joins the content of every text component.
func (r AgentResult) FinalAnswer() string {
	var texts []string
	for _, c := range r.Components {
		if rt, ok := c.Rich.(*components.RichText); ok && rt.Content != "" {
			texts = append(texts, rt.Content)
		}
	}
	return strings.Join(texts, "\n")
}

// ToolNamesCalled lists tool names in call order.
func (r AgentResult) ToolNamesCalled() []string {
	names := make([]string, len(r.ToolCalls))
	for i, c := range r.ToolCalls {
		names[i] = c.ToolName
	}
	return names
}

// Result is one evaluator's verdict on one test case.
type Result struct {
	TestCaseID    string         `json:"test_case_id"`
	EvaluatorName string         `json:"evaluator_name"`
	Passed        bool           `json:"passed"`
	Score         float64        `json:"score"`
	Reasoning     string         `json:"reasoning"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// TestCaseResult is the agent run plus every evaluation of it.
type TestCaseResult struct {
	TestCase        TestCase
	AgentResult     AgentResult
	Evaluations     []Result
	ExecutionTimeMs float64
}

// OverallPassed reports whether every evaluation passed.
func (r TestCaseResult) OverallPassed() bool {
	for _, e := range r.Evaluations {
		if !e.Passed {
			return false
		}
	}
	return true
}

// OverallScore is the mean evaluation score, or 0 without evaluations.
func (r TestCaseResult) OverallScore() float64 {
	if len(r.Evaluations) == 0 {
		return 0
	}
	var sum float64
	for _, e := range r.Evaluations {
		sum += e.Score
	}
	return sum / float64(len(r.Evaluations))
}

// AgentVariant is one agent configuration under comparison.
type AgentVariant struct {
	Name     string
	Agent    *agent.Agent
	Metadata map[string]any
}

// Evaluator scores an agent result.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, tc TestCase, result AgentResult) (Result, error)
}
