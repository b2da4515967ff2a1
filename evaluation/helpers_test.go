package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/logging"
	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

var tester = &user.User{ID: "test_user", Username: "test_user", Email: "test_user@example.com"}

type regionArgs struct {
	Region string `json:"region"`
}

func lookupSales() tool.Tool {
	return tool.New("lookup_sales", "Look up sales for a region", func(_ context.Context, _ *tool.Context, args regionArgs) (*tool.Result, error) {
		return tool.Success(args.Region+" 42", nil), nil
	})
}

// salesService calls lookup_sales for questions about sales, answers from
// the tool result, and fails for messages containing "broken".
func salesService(tokens int) llm.ServiceFunc {
	return func(_ context.Context, req llm.Request) (*llm.Response, error) {
		last := req.Messages[len(req.Messages)-1]
		usage := map[string]int{"total_tokens": tokens}
		switch {
		case last.Role == llm.RoleTool:
			return &llm.Response{Content: "Sales by region: " + last.Content, FinishReason: "stop", Usage: usage}, nil
		case strings.Contains(last.Content, "broken"):
			return nil, errors.New("provider down")
		case strings.Contains(strings.ToLower(last.Content), "sales"):
			return &llm.Response{
				ToolCalls:    []tool.Call{{ID: "c1", Name: "lookup_sales", Arguments: map[string]any{"region": "north"}}},
				FinishReason: "tool_calls",
				Usage:        usage,
			}, nil
		default:
			return &llm.Response{Content: "I only know about sales.", FinishReason: "stop", Usage: usage}, nil
		}
	}
}

// slowService answers after delay and records the peak number of requests
// in flight.
type slowService struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowService) call(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &llm.Response{Content: "done", FinishReason: "stop"}, nil
}

func newAgent(t *testing.T, svc llm.Service) *agent.Agent {
	t.Helper()
	reg := tool.NewRegistry(tool.WithLogger(logging.NewNop()))
	reg.MustRegister(lookupSales())
	a, err := agent.New(svc, reg, user.StaticResolver{User: tester}, storage.NewMemoryStore(), agent.WithLogger(logging.NewNop()))
	require.NoError(t, err)
	return a
}

func salesCases() []TestCase {
	return []TestCase{
		{
			ID:      "sales_by_region",
			User:    tester,
			Message: "Show me sales by region",
			Expected: &ExpectedOutcome{
				ToolsCalled:         []string{"lookup_sales"},
				FinalAnswerContains: []string{"north"},
			},
		},
		{
			ID:      "smalltalk",
			User:    tester,
			Message: "How are you?",
			Expected: &ExpectedOutcome{
				ToolsNotCalled:      []string{"lookup_sales"},
				FinalAnswerContains: []string{"sales"},
			},
		},
	}
}

func intPtr(n int) *int {
	return &n
}

func floatPtr(f float64) *float64 {
	return &f
}
