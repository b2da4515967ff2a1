package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/logging"
	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

type capturingResolver struct {
	mu   sync.Mutex
	last *user.RequestContext
}

func (c *capturingResolver) ResolveUser(_ context.Context, req *user.RequestContext) (*user.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = req
	return &user.User{ID: "u1", GroupMemberships: []string{"user"}}, nil
}

func newTestServer(t *testing.T, steps []llm.ScriptStep, opts ...Option) (*Server, *capturingResolver) {
	t.Helper()
	resolver := &capturingResolver{}
	svc := llm.NewScriptedService(steps...)
	a, err := agent.New(svc, tool.NewRegistry(), resolver, storage.NewMemoryStore(), agent.WithLogger(logging.NewNop()))
	require.NoError(t, err)
	opts = append([]Option{WithLogger(logging.NewNop())}, opts...)
	return New(a, opts...), resolver
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func sseEvents(t *testing.T, body string) []string {
	t.Helper()
	var events []string
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			events = append(events, data)
		}
	}
	return events
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"vanna"}`, rec.Body.String())
}

func TestChatSSE(t *testing.T) {
	s, _ := newTestServer(t, []llm.ScriptStep{llm.Reply("Revenue was **up**.")})

	rec := post(t, s, "/api/vanna/v2/chat_sse", `{"message":"How was revenue?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	events := sseEvents(t, rec.Body.String())
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, "[DONE]", events[len(events)-1])

	var types []string
	var convID, reqID string
	for _, e := range events[:len(events)-1] {
		var chunk ChatStreamChunk
		require.NoError(t, json.Unmarshal([]byte(e), &chunk))
		types = append(types, chunk.Rich["type"].(string))
		if convID == "" {
			convID, reqID = chunk.ConversationID, chunk.RequestID
		}
		assert.Equal(t, convID, chunk.ConversationID)
		assert.Equal(t, reqID, chunk.RequestID)
		assert.NotZero(t, chunk.Timestamp)
	}
	assert.Regexp(t, `^conv_[0-9a-f]{8}$`, convID)
	assert.NotEmpty(t, reqID)
	assert.Contains(t, types, "text")
	assert.Contains(t, rec.Body.String(), "Revenue was **up**.")
}

func TestChatSSE_RequestContext(t *testing.T) {
	s, resolver := newTestServer(t, []llm.ScriptStep{llm.Reply("ok")})

	req := httptest.NewRequest(http.MethodPost, "/api/vanna/v2/chat_sse?tenant=acme",
		strings.NewReader(`{"message":"hi","conversation_id":"conv_fixed","request_id":"req-1","metadata":{"source":"test"}}`))
	req.AddCookie(&http.Cookie{Name: "vanna_email", Value: "ana@example.com"})
	req.Header.Set("X-Real-IP", "10.1.2.3")
	req.Header.Set("X-Custom", "yes")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rc := resolver.last
	require.NotNil(t, rc)
	assert.Equal(t, "ana@example.com", rc.GetCookie("vanna_email"))
	assert.Equal(t, "yes", rc.GetHeader("x-custom"))
	assert.Equal(t, "10.1.2.3", rc.RemoteAddr)
	assert.Equal(t, "acme", rc.QueryParams["tenant"])
	assert.Equal(t, "test", rc.Metadata["source"])
	assert.Equal(t, "req-1", rc.Metadata["request_id"])

	events := sseEvents(t, rec.Body.String())
	var chunk ChatStreamChunk
	require.NoError(t, json.Unmarshal([]byte(events[0]), &chunk))
	assert.Equal(t, "conv_fixed", chunk.ConversationID)
	assert.Equal(t, "req-1", chunk.RequestID)
}

func TestChatSSE_InvalidBody(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := post(t, s, "/api/vanna/v2/chat_sse", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatPoll(t *testing.T) {
	s, _ := newTestServer(t, []llm.ScriptStep{llm.Reply("42 rows")})

	rec := post(t, s, "/api/vanna/v2/chat_poll", `{"message":"count rows","conversation_id":"conv_abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "conv_abc", resp.ConversationID)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, len(resp.Chunks), resp.TotalChunks)
	assert.Positive(t, resp.TotalChunks)
}

func TestChatPoll_LLMErrorStillAnswers(t *testing.T) {
	s, _ := newTestServer(t, []llm.ScriptStep{llm.Fail(llm.ErrorFromStatusCode(500, "upstream", "openai", "", nil))})

	rec := post(t, s, "/api/vanna/v2/chat_poll", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error Processing Message")
}

func TestHandlePoll_CancelledContext(t *testing.T) {
	s, _ := newTestServer(t, []llm.ScriptStep{llm.Reply("never")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.chat.HandlePoll(ctx, ChatRequest{Message: "hi"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "vanna_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s, _ := newTestServer(t, nil, WithMetrics(reg))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vanna_test_total 1")

	s, _ = newTestServer(t, nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/vanna/v2/chat_sse", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, nil, WithComponentsURL("https://cdn.example.com/c.js"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<vanna-chat")
	assert.Contains(t, rec.Body.String(), "https://cdn.example.com/c.js")
}

func TestNewConversationID(t *testing.T) {
	re := regexp.MustCompile(`^conv_[0-9a-f]{8}$`)
	a, b := NewConversationID(), NewConversationID()
	assert.Regexp(t, re, a)
	assert.NotEqual(t, a, b)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0", time.Second) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
