package evaluation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/observability"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

// DefaultMaxConcurrency bounds concurrent test case executions.
const DefaultMaxConcurrency = 10

// Runner executes test cases against agents and applies evaluators. All
// runs started by one Runner share a single concurrency limit, whether they
// come from one variant or many.
type Runner struct {
	evaluators     []Evaluator
	maxConcurrency int
	sem            *semaphore.Weighted
	obs            observability.Provider
	logger         *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxConcurrency sets how many test cases may run at once.
func WithMaxConcurrency(n int) RunnerOption {
	return func(r *Runner) { r.maxConcurrency = n }
}

// WithObservability records comparison and variant spans.
func WithObservability(p observability.Provider) RunnerOption {
	return func(r *Runner) { r.obs = p }
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner returns a Runner applying evaluators in order.
func NewRunner(evaluators []Evaluator, opts ...RunnerOption) *Runner {
	r := &Runner{
		evaluators:     evaluators,
		maxConcurrency: DefaultMaxConcurrency,
		obs:            observability.Noop{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxConcurrency < 1 {
		r.maxConcurrency = 1
	}
	r.sem = semaphore.NewWeighted(int64(r.maxConcurrency))
	return r
}

// MaxConcurrency returns the concurrency limit.
func (r *Runner) MaxConcurrency() int { return r.maxConcurrency }

// RunEvaluation runs every test case against a single agent.
func (r *Runner) RunEvaluation(ctx context.Context, a *agent.Agent, cases []TestCase) (*Report, error) {
	results, err := r.runCases(ctx, a, cases, nil)
	if err != nil {
		return nil, err
	}
	return &Report{
		AgentName:  "agent",
		Results:    results,
		Evaluators: r.evaluatorNames(),
		Timestamp:  time.Now().UTC(),
	}, nil
}

// CompareAgents runs every test case against every variant. Variants run
// concurrently and the report keeps them in the order given.
func (r *Runner) CompareAgents(ctx context.Context, variants []AgentVariant, cases []TestCase) (*ComparisonReport, error) {
	if err := checkVariants(variants); err != nil {
		return nil, err
	}

	span := r.obs.CreateSpan(ctx, "agent_comparison", map[string]any{
		"num_variants":   len(variants),
		"num_test_cases": len(cases),
	})
	defer r.obs.EndSpan(ctx, span)

	reports := make([]*Report, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range variants {
		g.Go(func() error {
			rep, err := r.runVariant(gctx, v, cases, nil)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cr := &ComparisonReport{
		Variants:  variants,
		Reports:   make(map[string]*Report, len(variants)),
		TestCases: cases,
		Timestamp: time.Now().UTC(),
	}
	for i, v := range variants {
		cr.Reports[v.Name] = reports[i]
	}
	return cr, nil
}

// Progress reports one finished test case during a streaming comparison.
type Progress struct {
	Variant   string
	Result    TestCaseResult
	Completed int
	Total     int
}

// CompareAgentsStreaming yields each result as soon as it is ready. Breaking
// out of the loop cancels outstanding runs. The returned function reports
// the error that ended the run, if any, once iteration is over.
func (r *Runner) CompareAgentsStreaming(ctx context.Context, variants []AgentVariant, cases []TestCase) (iter.Seq[Progress], func() error) {
	var runErr error
	seq := func(yield func(Progress) bool) {
		if err := checkVariants(variants); err != nil {
			runErr = err
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		total := len(variants) * len(cases)
		type item struct {
			variant string
			result  TestCaseResult
		}
		ch := make(chan item)

		g, gctx := errgroup.WithContext(ctx)
		for _, v := range variants {
			g.Go(func() error {
				_, err := r.runVariant(gctx, v, cases, func(res TestCaseResult) {
					select {
					case ch <- item{variant: v.Name, result: res}:
					case <-gctx.Done():
					}
				})
				return err
			})
		}
		done := make(chan error, 1)
		go func() {
			done <- g.Wait()
			close(ch)
		}()

		completed := 0
		for it := range ch {
			completed++
			if !yield(Progress{Variant: it.variant, Result: it.result, Completed: completed, Total: total}) {
				cancel()
				for range ch {
				}
				<-done
				return
			}
		}
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}
	return seq, func() error { return runErr }
}

func checkVariants(variants []AgentVariant) error {
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v.Agent == nil {
			return fmt.Errorf("variant %q has no agent", v.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate variant name %q", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

func (r *Runner) runVariant(ctx context.Context, v AgentVariant, cases []TestCase, onResult func(TestCaseResult)) (*Report, error) {
	span := r.obs.CreateSpan(ctx, "variant_"+v.Name, map[string]any{"variant": v.Name})
	defer r.obs.EndSpan(ctx, span)

	results, err := r.runCases(ctx, v.Agent, cases, onResult)
	if err != nil {
		return nil, err
	}
	return &Report{
		AgentName:  v.Name,
		Results:    results,
		Evaluators: r.evaluatorNames(),
		Metadata:   maps.Clone(v.Metadata),
		Timestamp:  time.Now().UTC(),
	}, nil
}

func (r *Runner) runCases(ctx context.Context, a *agent.Agent, cases []TestCase, onResult func(TestCaseResult)) ([]TestCaseResult, error) {
	results := make([]TestCaseResult, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range cases {
		g.Go(func() error {
			if err := r.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer r.sem.Release(1)

			res := r.runCase(gctx, a, tc)
			results[i] = res
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runCase(ctx context.Context, a *agent.Agent, tc TestCase) TestCaseResult {
	start := time.Now()
	ar := r.executeAgent(ctx, a, tc)

	evals := make([]Result, 0, len(r.evaluators))
	for _, ev := range r.evaluators {
		res, err := ev.Evaluate(ctx, tc, ar)
		if err != nil {
			r.logger.WarnContext(ctx, "evaluator failed", "evaluator", ev.Name(), "test_case", tc.ID, "error", err)
			res = Result{
				TestCaseID:    tc.ID,
				EvaluatorName: ev.Name(),
				Reasoning:     "Evaluator error: " + err.Error(),
				Timestamp:     time.Now().UTC(),
			}
		}
		evals = append(evals, res)
	}

	return TestCaseResult{
		TestCase:        tc,
		AgentResult:     ar,
		Evaluations:     evals,
		ExecutionTimeMs: msSince(start),
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func (r *Runner) executeAgent(ctx context.Context, a *agent.Agent, tc TestCase) AgentResult {
	rec := &recorder{}
	opts := []agent.Option{
		agent.WithLifecycleHooks(agent.AfterToolFunc(rec.afterTool)),
		agent.WithMiddlewares(rec),
	}
	if tc.User != nil {
		opts = append(opts, agent.WithResolver(user.StaticResolver{User: tc.User}))
	}
	run := a.Clone(opts...)

	reqCtx := &user.RequestContext{Metadata: map[string]any{"test_case_id": tc.ID}}

	start := time.Now()
	var comps []components.UiComponent
	var errMsg string
	for c := range run.SendMessage(ctx, reqCtx, tc.Message, tc.ConversationID) {
		comps = append(comps, c)
		if sb, ok := c.Rich.(*components.StatusBarUpdate); ok && sb.Status == components.StatusError {
			errMsg = sb.Detail
		}
	}
	if err := ctx.Err(); err != nil {
		errMsg = err.Error()
	}

	calls, reqs, tokens := rec.snapshot()
	return AgentResult{
		TestCaseID:      tc.ID,
		Components:      comps,
		ToolCalls:       calls,
		LlmRequests:     reqs,
		ExecutionTimeMs: msSince(start),
		TotalTokens:     tokens,
		Error:           errMsg,
	}
}

func (r *Runner) evaluatorNames() []string {
	names := make([]string, len(r.evaluators))
	for i, ev := range r.evaluators {
		names[i] = ev.Name()
	}
	return names
}

// recorder observes tool calls and LLM round trips for one test case.
type recorder struct {
	mu       sync.Mutex
	calls    []ToolCallRecord
	requests []LlmRequestRecord
	tokens   int
}

func (rec *recorder) afterTool(_ context.Context, _ *tool.Context, call tool.Call, result *tool.Result) (*tool.Result, error) {
	r := ToolCallRecord{ToolName: call.Name, Arguments: call.Arguments}
	if result != nil {
		r.Success = result.Success
		r.Error = result.Error
	}
	rec.mu.Lock()
	rec.calls = append(rec.calls, r)
	rec.mu.Unlock()
	return result, nil
}

func (rec *recorder) BeforeRequest(_ context.Context, req llm.Request) (llm.Request, error) {
	return req, nil
}

func (rec *recorder) AfterResponse(_ context.Context, req llm.Request, resp *llm.Response) (*llm.Response, error) {
	r := LlmRequestRecord{Messages: len(req.Messages), Tools: len(req.Tools)}
	if resp != nil {
		r.ToolCalls = len(resp.ToolCalls)
		r.TotalTokens = resp.TotalTokens()
		r.FinishReason = resp.FinishReason
	}
	rec.mu.Lock()
	rec.requests = append(rec.requests, r)
	rec.tokens += r.TotalTokens
	rec.mu.Unlock()
	return resp, nil
}

func (rec *recorder) snapshot() ([]ToolCallRecord, []LlmRequestRecord, int) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]ToolCallRecord(nil), rec.calls...), append([]LlmRequestRecord(nil), rec.requests...), rec.tokens
}
