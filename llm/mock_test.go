package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/martinemde/vanna/tool"
)

func TestMockServiceCountsRequests(t *testing.T) {
	m := NewMockService("Hi there")

	for i, want := range []string{"Hi there (Request #1)", "Hi there (Request #2)"} {
		resp, err := m.SendRequest(context.Background(), Request{})
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.Content != want {
			t.Errorf("request %d: expected %q, got %q", i, want, resp.Content)
		}
		if resp.TotalTokens() != 70 {
			t.Errorf("expected 70 tokens, got %d", resp.TotalTokens())
		}
	}

	m.ResetCallCount()
	if m.CallCount() != 0 {
		t.Errorf("expected reset count, got %d", m.CallCount())
	}
}

func TestMockServiceStreamsWords(t *testing.T) {
	m := NewMockService("one two")
	ch, err := m.StreamRequest(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}

	var chunks []StreamChunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 word chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "one " || chunks[3].Content != "#1)" {
		t.Errorf("unexpected chunks %+v", chunks)
	}
	if chunks[3].FinishReason != "stop" || chunks[0].FinishReason != "" {
		t.Error("only the last chunk should carry the finish reason")
	}
}

func TestScriptedServiceReplaysSteps(t *testing.T) {
	boom := errors.New("boom")
	s := NewScriptedService(
		CallTools(tool.Call{ID: "1", Name: "run_sql"}),
		Fail(boom),
		Reply("done"),
	)
	ctx := context.Background()

	resp, err := s.SendRequest(ctx, Request{})
	if err != nil || !resp.IsToolCall() {
		t.Fatalf("expected tool call step, got %+v %v", resp, err)
	}
	if _, err := s.SendRequest(ctx, Request{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	ch, err := s.StreamRequest(ctx, Request{})
	if err != nil {
		t.Fatal(err)
	}
	resp, err = Accumulate(ch)
	if err != nil || resp.Content != "done" {
		t.Fatalf("expected done, got %+v %v", resp, err)
	}

	resp, err = s.SendRequest(ctx, Request{})
	if err != nil || resp.Content != "" || resp.IsToolCall() {
		t.Errorf("expected empty fallback, got %+v %v", resp, err)
	}
	if len(s.Requests()) != 4 {
		t.Errorf("expected 4 recorded requests, got %d", len(s.Requests()))
	}
}

func TestServiceFunc(t *testing.T) {
	f := ServiceFunc(func(ctx context.Context, req Request) (*Response, error) {
		return &Response{Content: req.SystemPrompt}, nil
	})
	ch, err := f.StreamRequest(context.Background(), Request{SystemPrompt: "echo"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := Accumulate(ch)
	if err != nil || resp.Content != "echo" {
		t.Errorf("unexpected %+v %v", resp, err)
	}
}
