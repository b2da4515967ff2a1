package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/llm"
)

func answer(text string, tools ...string) AgentResult {
	r := AgentResult{TestCaseID: "t1", Components: []components.UiComponent{components.New(components.NewText(text, true))}}
	for _, name := range tools {
		r.ToolCalls = append(r.ToolCalls, ToolCallRecord{ToolName: name, Success: true})
	}
	return r
}

func TestTrajectoryEvaluator(t *testing.T) {
	tests := []struct {
		name      string
		expected  *ExpectedOutcome
		result    AgentResult
		score     float64
		passed    bool
		reasoning string
	}{
		{
			name:      "no expectation",
			result:    answer("hi"),
			score:     1,
			passed:    true,
			reasoning: "No expected outcome specified, passing by default",
		},
		{
			name:      "all expected tools",
			expected:  &ExpectedOutcome{ToolsCalled: []string{"run_sql"}, ToolsNotCalled: []string{"run_bash"}},
			result:    answer("hi", "run_sql"),
			score:     1,
			passed:    true,
			reasoning: "Trajectory evaluation: All expected tools called, no unexpected tools",
		},
		{
			name:      "missing one of two",
			expected:  &ExpectedOutcome{ToolsCalled: []string{"run_sql", "visualize_data"}},
			result:    answer("hi", "run_sql"),
			score:     0.75,
			passed:    true,
			reasoning: "Trajectory evaluation: Expected tool 'visualize_data' was not called",
		},
		{
			name:     "missing and forbidden",
			expected: &ExpectedOutcome{ToolsCalled: []string{"run_sql"}, ToolsNotCalled: []string{"run_bash"}},
			result:   answer("hi", "run_bash"),
			score:    0,
			passed:   false,
			reasoning: "Trajectory evaluation: Expected tool 'run_sql' was not called; " +
				"Unexpected tool 'run_bash' was called",
		},
		{
			name:      "agent error",
			expected:  &ExpectedOutcome{},
			result:    AgentResult{Error: "boom"},
			score:     0,
			passed:    false,
			reasoning: "Agent execution failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := TrajectoryEvaluator{}.Evaluate(context.Background(), TestCase{ID: "t1", Expected: tt.expected}, tt.result)
			require.NoError(t, err)
			assert.InDelta(t, tt.score, res.Score, 1e-9)
			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, tt.reasoning, res.Reasoning)
			assert.Equal(t, "trajectory", res.EvaluatorName)
		})
	}
}

func TestOutputEvaluator_IgnoresCase(t *testing.T) {
	tc := TestCase{ID: "t1", Expected: &ExpectedOutcome{
		FinalAnswerContains:    []string{"SELECT", "region"},
		FinalAnswerNotContains: []string{"DROP"},
	}}

	res, err := OutputEvaluator{}.Evaluate(context.Background(), tc, answer("select total from sales group by Region"))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.Score)

	res, err = OutputEvaluator{}.Evaluate(context.Background(), tc, answer("drop table sales"))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.InDelta(t, 0.0, res.Score, 1e-9)
	assert.Contains(t, res.Reasoning, "Expected content 'SELECT' not found in output")
	assert.Contains(t, res.Reasoning, "Forbidden content 'DROP' found in output")
}

func TestEfficiencyEvaluator(t *testing.T) {
	ev := EfficiencyEvaluator{MaxExecutionTimeMs: 1000, MaxTokens: 100}

	res, err := ev.Evaluate(context.Background(), TestCase{ID: "t1"}, AgentResult{ExecutionTimeMs: 10, TotalTokens: 10})
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, "Efficiency evaluation: Within resource limits", res.Reasoning)

	tc := TestCase{ID: "t1", Expected: &ExpectedOutcome{MaxExecutionTimeMs: floatPtr(500)}}
	res, err = ev.Evaluate(context.Background(), tc, AgentResult{ExecutionTimeMs: 2000, TotalTokens: 10})
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.InDelta(t, 0.33, res.Score, 1e-9)
	assert.Contains(t, res.Reasoning, "Execution time 2000ms exceeded limit 1000ms")
	assert.Contains(t, res.Reasoning, "exceeded test case limit 500ms")

	res, err = ev.Evaluate(context.Background(), TestCase{ID: "t1"}, AgentResult{TotalTokens: 150})
	require.NoError(t, err)
	assert.InDelta(t, 0.67, res.Score, 1e-9)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Reasoning, "Token usage 150 exceeded limit 100")
}

func TestLLMAsJudge(t *testing.T) {
	var seen llm.Request
	judge := LLMAsJudge{
		Criteria: "Mentions the north region",
		Service: llm.ServiceFunc(func(_ context.Context, req llm.Request) (*llm.Response, error) {
			seen = req
			return &llm.Response{Content: "SCORE: 0.9\nPASSED: yes\nREASONING: Names the region."}, nil
		}),
	}

	res, err := judge.Evaluate(context.Background(), TestCase{ID: "t1", Message: "sales?"}, answer("north 42"))
	require.NoError(t, err)
	assert.Equal(t, "llm_judge", res.EvaluatorName)
	assert.True(t, res.Passed)
	assert.InDelta(t, 0.9, res.Score, 1e-9)
	assert.Equal(t, "Names the region.", res.Reasoning)
	require.NotNil(t, seen.Temperature)
	assert.Equal(t, 0.0, *seen.Temperature)
	require.Len(t, seen.Messages, 1)
	assert.Contains(t, seen.Messages[0].Content, "User Query: sales?")
	assert.Contains(t, seen.Messages[0].Content, "north 42")
	assert.Contains(t, seen.Messages[0].Content, "Mentions the north region")
}

func TestLLMAsJudge_Unparseable(t *testing.T) {
	judge := LLMAsJudge{Service: llm.ServiceFunc(func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "looks fine to me"}, nil
	})}

	res, err := judge.Evaluate(context.Background(), TestCase{ID: "t1"}, answer("x"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, "looks fine to me", res.Reasoning)
}

func TestLLMAsJudge_ServiceError(t *testing.T) {
	judge := LLMAsJudge{Service: llm.ServiceFunc(func(context.Context, llm.Request) (*llm.Response, error) {
		return nil, errors.New("quota")
	})}

	res, err := judge.Evaluate(context.Background(), TestCase{ID: "t1"}, answer("x"))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, "LLM judge evaluation failed: quota", res.Reasoning)
}

func TestAgentResult_FinalAnswer(t *testing.T) {
	r := AgentResult{Components: []components.UiComponent{
		components.New(components.NewStatusBar(components.StatusWorking, "Thinking...", "")),
		components.New(components.NewText("first", false)),
		components.New(components.NewText("second", true)),
	}}
	assert.Equal(t, "first\nsecond", r.FinalAnswer())
}
