package llm

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/martinemde/vanna/tool"
)

func TestGollmTranslateError(t *testing.T) {
	svc := &GollmService{provider: "openai"}

	tests := []struct {
		msg  string
		kind Kind
	}{
		{"401 Unauthorized", KindAuthentication},
		{"invalid api key", KindAuthentication},
		{"403 Forbidden", KindAccessDenied},
		{"404 not found", KindNotFound},
		{"429 rate limit exceeded", KindRateLimit},
		{"monthly quota used up", KindQuotaExceeded},
		{"context length exceeded", KindContextLength},
		{"500 internal server error", KindServer},
		{"timeout waiting for response", KindTimeout},
		{"content filter triggered", KindContentFilter},
		{"something unknown", KindUnknown},
	}

	for _, tt := range tests {
		err := svc.translateError(errors.New(tt.msg))
		if got := KindOf(err); got != tt.kind {
			t.Errorf("for %q: expected %s, got %s", tt.msg, tt.kind, got)
		}
	}
	if !IsKind(svc.translateError(context.Canceled), KindAborted) {
		t.Error("cancellation should be aborted")
	}
}

func TestParseToolCallsArray(t *testing.T) {
	text := `I will query. [{"name": "run_sql", "arguments": {"sql": "SELECT 1"}}]`
	calls := parseToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "run_sql" || calls[0].Arguments["sql"] != "SELECT 1" {
		t.Errorf("unexpected call %+v", calls[0])
	}
	if !strings.HasPrefix(calls[0].ID, "call_") {
		t.Errorf("expected generated id, got %q", calls[0].ID)
	}
	if got := stripToolCallJSON(text, calls); got != "I will query." {
		t.Errorf("unexpected stripped text %q", got)
	}
}

func TestParseToolCallsWrapper(t *testing.T) {
	text := `{"tool_calls": [{"id": "abc", "function": {"name": "list_files", "arguments": "{\"directory\": \".\"}"}}]}`
	calls := parseToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].ID != "abc" || calls[0].Name != "list_files" || calls[0].Arguments["directory"] != "." {
		t.Errorf("unexpected call %+v", calls[0])
	}
}

func TestParseToolCallsPlainText(t *testing.T) {
	if calls := parseToolCalls("Just an answer with [brackets]."); calls != nil {
		t.Errorf("expected no calls, got %+v", calls)
	}
}

func TestFlattenMessages(t *testing.T) {
	system, body := flattenMessages(Request{
		SystemPrompt: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "how many rows?"},
			{Role: RoleAssistant, ToolCalls: []tool.Call{{ID: "c1", Name: "run_sql", Arguments: map[string]any{"sql": "SELECT 1"}}}},
			{Role: RoleTool, ToolCallID: "c1", Content: "1"},
		},
	})
	if system != "be brief" {
		t.Errorf("unexpected system %q", system)
	}
	want := "how many rows?\n[Tool Call c1]: run_sql {\"sql\":\"SELECT 1\"}\n[Tool Result c1]: 1"
	if body != want {
		t.Errorf("unexpected body:\n%s", body)
	}

	if _, body := flattenMessages(Request{}); body != "Hello" {
		t.Errorf("expected placeholder body, got %q", body)
	}
}

func TestGollmBuildResponse(t *testing.T) {
	svc := &GollmService{provider: "openai", model: "gpt-4o"}
	resp := svc.buildResponse(Request{Messages: []Message{userMessage("0123456789abcdef")}}, "answer text")
	if resp.FinishReason != "stop" || resp.Content != "answer text" {
		t.Errorf("unexpected %+v", resp)
	}
	if resp.Usage["prompt_tokens"] != 4 || resp.TotalTokens() != 4+roughTokens("answer text") {
		t.Errorf("unexpected usage %v", resp.Usage)
	}
}

func TestGollmRequestOptions(t *testing.T) {
	svc := &GollmService{provider: "openai", model: "gpt-4o", temperature: 0.7, maxTokens: 1024}

	tests := []struct {
		name string
		req  Request
		want map[string]any
	}{
		{"defaults", Request{}, map[string]any{"model": "gpt-4o", "temperature": 0.7, "max_tokens": 1024}},
		{"explicit zero temperature", Request{Temperature: Ptr(0.0)}, map[string]any{"model": "gpt-4o", "temperature": 0.0, "max_tokens": 1024}},
		{"overrides", Request{Model: "gpt-4.1", Temperature: Ptr(0.3), MaxTokens: Ptr(50)}, map[string]any{"model": "gpt-4.1", "temperature": 0.3, "max_tokens": 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.requestOptions(tt.req)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
