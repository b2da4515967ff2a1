package evaluation

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/martinemde/vanna/llm"
)

func newResult(tc TestCase, evaluator string, score float64, reasoning string, metrics map[string]any) Result {
	score = max(0, min(1, score))
	return Result{
		TestCaseID:    tc.ID,
		EvaluatorName: evaluator,
		Passed:        score >= PassThreshold,
		Score:         score,
		Reasoning:     reasoning,
		Metrics:       metrics,
		Timestamp:     time.Now().UTC(),
	}
}

func agentFailed(tc TestCase, evaluator string, r AgentResult) (Result, bool) {
	if r.Error == "" {
		return Result{}, false
	}
	return Result{
		TestCaseID:    tc.ID,
		EvaluatorName: evaluator,
		Score:         0,
		Reasoning:     "Agent execution failed: " + r.Error,
		Timestamp:     time.Now().UTC(),
	}, true
}

func noExpectation(tc TestCase, evaluator string) Result {
	return newResult(tc, evaluator, 1, "No expected outcome specified, passing by default", nil)
}

func summarize(prefix string, issues []string, ok string) string {
	if len(issues) == 0 {
		return prefix + ok
	}
	return prefix + strings.Join(issues, "; ")
}

// TrajectoryEvaluator checks which tools the agent called. Missing
// expected tools and unexpected tools each cost up to half the score.
type TrajectoryEvaluator struct{}

func (TrajectoryEvaluator) Name() string { return "trajectory" }

func (e TrajectoryEvaluator) Evaluate(_ context.Context, tc TestCase, r AgentResult) (Result, error) {
	if res, failed := agentFailed(tc, e.Name(), r); failed {
		return res, nil
	}
	if tc.Expected == nil {
		return noExpectation(tc, e.Name()), nil
	}

	called := r.ToolNamesCalled()
	issues := []string{}
	score := 1.0
	for _, name := range tc.Expected.ToolsCalled {
		if !slices.Contains(called, name) {
			issues = append(issues, fmt.Sprintf("Expected tool '%s' was not called", name))
			score -= 0.5 / float64(len(tc.Expected.ToolsCalled))
		}
	}
	for _, name := range tc.Expected.ToolsNotCalled {
		if slices.Contains(called, name) {
			issues = append(issues, fmt.Sprintf("Unexpected tool '%s' was called", name))
			score -= 0.5 / float64(len(tc.Expected.ToolsNotCalled))
		}
	}

	return newResult(tc, e.Name(), score,
		summarize("Trajectory evaluation: ", issues, "All expected tools called, no unexpected tools"),
		map[string]any{"tools_called": called, "num_tools_called": len(called), "issues": issues}), nil
}

// OutputEvaluator checks the final answer for required and forbidden
// phrases, ignoring case.
type OutputEvaluator struct{}

func (OutputEvaluator) Name() string { return "output" }

func (e OutputEvaluator) Evaluate(_ context.Context, tc TestCase, r AgentResult) (Result, error) {
	if res, failed := agentFailed(tc, e.Name(), r); failed {
		return res, nil
	}
	if tc.Expected == nil {
		return noExpectation(tc, e.Name()), nil
	}

	answer := strings.ToLower(r.FinalAnswer())
	issues := []string{}
	score := 1.0
	for _, want := range tc.Expected.FinalAnswerContains {
		if !strings.Contains(answer, strings.ToLower(want)) {
			issues = append(issues, fmt.Sprintf("Expected content '%s' not found in output", want))
			score -= 0.5 / float64(len(tc.Expected.FinalAnswerContains))
		}
	}
	for _, forbidden := range tc.Expected.FinalAnswerNotContains {
		if strings.Contains(answer, strings.ToLower(forbidden)) {
			issues = append(issues, fmt.Sprintf("Forbidden content '%s' found in output", forbidden))
			score -= 0.5 / float64(len(tc.Expected.FinalAnswerNotContains))
		}
	}

	return newResult(tc, e.Name(), score,
		summarize("Output evaluation: ", issues, "All expected content present, no forbidden content"),
		map[string]any{"output_length": len(answer), "issues": issues}), nil
}

// EfficiencyEvaluator checks execution time and token usage against fixed
// limits and against the test case's own time limit. Zero limits are not
// checked.
type EfficiencyEvaluator struct {
	MaxExecutionTimeMs float64
	MaxTokens          int
}

func (EfficiencyEvaluator) Name() string { return "efficiency" }

func (e EfficiencyEvaluator) Evaluate(_ context.Context, tc TestCase, r AgentResult) (Result, error) {
	issues := []string{}
	score := 1.0
	if e.MaxExecutionTimeMs > 0 && r.ExecutionTimeMs > e.MaxExecutionTimeMs {
		issues = append(issues, fmt.Sprintf("Execution time %.0fms exceeded limit %.0fms", r.ExecutionTimeMs, e.MaxExecutionTimeMs))
		score -= 0.33
	}
	if e.MaxTokens > 0 && r.TotalTokens > e.MaxTokens {
		issues = append(issues, fmt.Sprintf("Token usage %d exceeded limit %d", r.TotalTokens, e.MaxTokens))
		score -= 0.33
	}
	if tc.Expected != nil && tc.Expected.MaxExecutionTimeMs != nil && r.ExecutionTimeMs > *tc.Expected.MaxExecutionTimeMs {
		issues = append(issues, fmt.Sprintf("Execution time %.0fms exceeded test case limit %.0fms", r.ExecutionTimeMs, *tc.Expected.MaxExecutionTimeMs))
		score -= 0.34
	}

	return newResult(tc, e.Name(), score,
		summarize("Efficiency evaluation: ", issues, "Within resource limits"),
		map[string]any{"execution_time_ms": r.ExecutionTimeMs, "total_tokens": r.TotalTokens, "issues": issues}), nil
}

const judgePrompt = `You are evaluating an AI agent's response to a user query.

User Query: %s

Agent's Response:
%s

Evaluation Criteria:
%s

Please evaluate the response and provide:
1. A score from 0.0 to 1.0 (where 1.0 is perfect)
2. Whether it passes (score >= 0.7)
3. Brief reasoning for your evaluation

Respond in this format:
SCORE: <number>
PASSED: <yes/no>
REASONING: <your explanation>
`

// LLMAsJudge asks a separate model to grade the final answer against
// natural-language criteria.
type LLMAsJudge struct {
	Service  llm.Service
	Criteria string
	// Retry applies to the judge call. The zero value tries once.
	Retry llm.RetryPolicy
}

func (LLMAsJudge) Name() string { return "llm_judge" }

func (j LLMAsJudge) Evaluate(ctx context.Context, tc TestCase, r AgentResult) (Result, error) {
	if res, failed := agentFailed(tc, j.Name(), r); failed {
		return res, nil
	}

	req := llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(judgePrompt, tc.Message, r.FinalAnswer(), j.Criteria)}},
		User:        tc.User,
		Temperature: llm.Ptr(0.0),
	}
	resp, err := llm.Retry(ctx, j.Retry, func(ctx context.Context) (*llm.Response, error) {
		return j.Service.SendRequest(ctx, req)
	})
	if err != nil {
		return Result{
			TestCaseID:    tc.ID,
			EvaluatorName: j.Name(),
			Reasoning:     "LLM judge evaluation failed: " + err.Error(),
			Timestamp:     time.Now().UTC(),
		}, nil
	}

	judgment := resp.Content
	return Result{
		TestCaseID:    tc.ID,
		EvaluatorName: j.Name(),
		Passed:        parsePassed(judgment),
		Score:         parseScore(judgment),
		Reasoning:     parseReasoning(judgment),
		Metrics:       map[string]any{"judge_response": judgment},
		Timestamp:     time.Now().UTC(),
	}, nil
}

func judgeLine(judgment, prefix string) (string, bool) {
	for _, line := range strings.Split(judgment, "\n") {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func parseScore(judgment string) float64 {
	if v, ok := judgeLine(judgment, "SCORE:"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0.5
}

func parsePassed(judgment string) bool {
	v, _ := judgeLine(judgment, "PASSED:")
	switch strings.ToLower(v) {
	case "yes", "true", "pass":
		return true
	}
	return false
}

func parseReasoning(judgment string) string {
	if v, ok := judgeLine(judgment, "REASONING:"); ok {
		return v
	}
	return judgment
}
