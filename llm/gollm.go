package llm

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"

	"github.com/martinemde/vanna/tool"
)

// GollmService adapts a gollm.LLM to Service. gollm has no structured
// multi-turn API, so the conversation is flattened into one prompt and tool
// calls are recovered from JSON in the reply text.
type GollmService struct {
	provider    string
	model       string
	temperature float64
	maxTokens   int
	llm         gollm.LLM

	// gollm options are instance-wide; mu serializes option changes with the
	// call that depends on them.
	mu sync.Mutex
}

// GollmOption configures a GollmService.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the provider API key. When empty gollm reads the
// provider's environment variable.
func WithAPIKey(key string) GollmOption {
	return func(c *gollmConfig) { c.apiKey = key }
}

// WithModel sets the default model.
func WithModel(model string) GollmOption {
	return func(c *gollmConfig) { c.model = model }
}

// WithMaxTokens sets the default completion limit.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) { c.maxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmOption {
	return func(c *gollmConfig) { c.temperature = t }
}

// WithGollmOptions passes extra options straight to gollm.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) { c.extraOpts = append(c.extraOpts, opts...) }
}

// NewGollmService creates a service for provider ("openai", "anthropic",
// "gemini", "ollama", ...).
func NewGollmService(provider string, opts ...GollmOption) (*GollmService, error) {
	cfg := &gollmConfig{
		maxTokens:   4096,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		if info := GetLatestModel(provider, "tools"); info != nil {
			model = info.ID
		} else if info := GetLatestModel(provider, ""); info != nil {
			model = info.ID
		} else {
			model = "gpt-4o-mini"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	l, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmService{
		provider:    provider,
		model:       model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
		llm:         l,
	}, nil
}

// NewGollmServiceFromLLM wraps an existing gollm.LLM.
func NewGollmServiceFromLLM(provider string, l gollm.LLM) *GollmService {
	return &GollmService{provider: provider, temperature: DefaultTemperature, llm: l}
}

// Provider returns the provider name.
func (s *GollmService) Provider() string {
	return s.provider
}

// SendRequest generates a full reply.
func (s *GollmService) SendRequest(ctx context.Context, req Request) (*Response, error) {
	prompt := s.translateRequest(req)

	s.mu.Lock()
	s.applyRequestOptions(req)
	text, err := s.llm.Generate(ctx, prompt)
	s.mu.Unlock()
	if err != nil {
		return nil, s.translateError(err)
	}

	return s.buildResponse(req, text), nil
}

// StreamRequest streams text tokens. Tool calls are only known once the
// whole reply is in, so they arrive on the final chunk.
func (s *GollmService) StreamRequest(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	prompt := s.translateRequest(req)

	s.mu.Lock()
	s.applyRequestOptions(req)
	if !s.llm.SupportsStreaming() {
		s.mu.Unlock()
		return s.generateAsStream(ctx, req)
	}
	stream, err := s.llm.Stream(ctx, prompt)
	s.mu.Unlock()
	if err != nil {
		return nil, s.translateError(err)
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()

		var full strings.Builder
		for {
			token, err := stream.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				ch <- StreamChunk{Err: s.translateError(err)}
				return
			}
			if token == nil || token.Text == "" {
				continue
			}
			full.WriteString(token.Text)
			ch <- StreamChunk{Content: token.Text}
		}

		resp := s.buildResponse(req, full.String())
		ch <- StreamChunk{ToolCalls: resp.ToolCalls, FinishReason: resp.FinishReason, Usage: resp.Usage}
	}()
	return ch, nil
}

func (s *GollmService) generateAsStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 2)
	go func() {
		defer close(ch)
		resp, err := s.SendRequest(ctx, req)
		if err != nil {
			ch <- StreamChunk{Err: err}
			return
		}
		ch <- StreamChunk{
			Content:      resp.Content,
			ToolCalls:    resp.ToolCalls,
			FinishReason: resp.FinishReason,
			Usage:        resp.Usage,
		}
	}()
	return ch, nil
}

// ValidateTools applies the basic checks.
func (s *GollmService) ValidateTools(tools []tool.Schema) []string {
	return BasicToolValidation(tools)
}

// flattenMessages turns the conversation into a system prompt and one
// user-facing prompt body.
func flattenMessages(req Request) (system string, body string) {
	var sys []string
	if req.SystemPrompt != "" {
		sys = append(sys, req.SystemPrompt)
	}
	var parts []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			sys = append(sys, msg.Content)
		case RoleUser:
			parts = append(parts, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				parts = append(parts, fmt.Sprintf("[Tool Call %s]: %s %s", tc.ID, tc.Name, args))
			}
		case RoleTool:
			parts = append(parts, "[Tool Result "+msg.ToolCallID+"]: "+msg.Content)
		}
	}
	body = strings.Join(parts, "\n")
	if body == "" {
		body = "Hello"
	}
	return strings.TrimSpace(strings.Join(sys, "\n")), body
}

func (s *GollmService) translateRequest(req Request) *gollm.Prompt {
	system, body := flattenMessages(req)

	var promptOpts []gollm.PromptOption
	if system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools), gollm.WithToolChoice("auto"))
	}

	return gollm.NewPrompt(body, promptOpts...)
}

// applyRequestOptions sets every per-request option on the shared LLM,
// falling back to the service defaults, so nothing leaks from the previous
// request.
func (s *GollmService) applyRequestOptions(req Request) {
	for name, value := range s.requestOptions(req) {
		s.llm.SetOption(name, value)
	}
}

func (s *GollmService) requestOptions(req Request) map[string]any {
	opts := map[string]any{"temperature": req.TemperatureOr(s.temperature)}
	if model := cmp.Or(req.Model, s.model); model != "" {
		opts["model"] = model
	}
	if req.MaxTokens != nil {
		opts["max_tokens"] = *req.MaxTokens
	} else if s.maxTokens > 0 {
		opts["max_tokens"] = s.maxTokens
	}
	return opts
}

func (s *GollmService) buildResponse(req Request, text string) *Response {
	calls := parseToolCalls(text)
	content := stripToolCallJSON(text, calls)

	finish := "stop"
	if len(calls) > 0 {
		finish = "tool_calls"
	}

	model := req.Model
	if model == "" {
		model = s.model
	}

	prompt := roughTokens(req.SystemPrompt)
	for _, m := range req.Messages {
		prompt += roughTokens(m.Content)
	}
	completion := roughTokens(text)

	return &Response{
		Content:      content,
		ToolCalls:    calls,
		FinishReason: finish,
		Usage: map[string]int{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
		Metadata: map[string]any{"provider": s.provider, "model": model},
	}
}

type rawToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Function  *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

var toolCallMarkers = []string{`{"tool_calls"`, `[{"name"`, `[{"id"`}

// parseToolCalls recovers tool calls that gollm returned inline, either as
// {"tool_calls":[...]} or as a bare JSON array. Arguments may be an object or
// a JSON-encoded string.
func parseToolCalls(text string) []tool.Call {
	start := -1
	for _, m := range toolCallMarkers {
		if i := strings.Index(text, m); i != -1 && (start == -1 || i < start) {
			start = i
		}
	}
	if start == -1 {
		return nil
	}

	var raws []rawToolCall
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if text[start] == '{' {
		var wrapper struct {
			ToolCalls []rawToolCall `json:"tool_calls"`
		}
		if err := dec.Decode(&wrapper); err != nil {
			return nil
		}
		raws = wrapper.ToolCalls
	} else if err := dec.Decode(&raws); err != nil {
		return nil
	}

	var calls []tool.Call
	for _, rc := range raws {
		name, rawArgs := rc.Name, rc.Arguments
		if rc.Function != nil {
			name, rawArgs = rc.Function.Name, rc.Function.Arguments
		}
		if name == "" {
			continue
		}
		id := rc.ID
		if id == "" {
			id = "call_" + uuid.New().String()[:8]
		}
		calls = append(calls, tool.Call{ID: id, Name: name, Arguments: decodeArguments(rawArgs)})
	}
	return calls
}

// decodeArguments accepts arguments either as an object or as a
// JSON-encoded string holding one.
func decodeArguments(raw json.RawMessage) map[string]any {
	text := string(raw)
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		text = encoded
	}
	args, err := tool.ParseArguments(text)
	if err != nil {
		return map[string]any{}
	}
	return args
}

func stripToolCallJSON(text string, calls []tool.Call) string {
	if len(calls) == 0 {
		return text
	}
	result := text
	for _, m := range toolCallMarkers {
		if idx := strings.Index(result, m); idx != -1 {
			result = result[:idx]
		}
	}
	return strings.TrimSpace(result)
}

func (s *GollmService) translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return newError(KindAborted, "request cancelled", err)
	}
	// gollm flattens provider failures into strings, so classify by the
	// message. Earlier rules win.
	lower := strings.ToLower(err.Error())
	kind, status := KindUnknown, 0
	for _, rule := range gollmErrorRules {
		if containsAny(lower, rule.needles...) {
			kind, status = rule.kind, rule.status
			break
		}
	}
	return &Error{Kind: kind, Provider: s.provider, StatusCode: status, Message: "request failed", Cause: err}
}

var gollmErrorRules = []struct {
	kind    Kind
	status  int
	needles []string
}{
	{KindAuthentication, 401, []string{"401", "unauthorized", "invalid api key", "invalid key"}},
	{KindAccessDenied, 403, []string{"403", "forbidden"}},
	{KindNotFound, 404, []string{"404", "not found"}},
	{KindRateLimit, 429, []string{"429", "rate limit"}},
	{KindQuotaExceeded, 429, []string{"quota"}},
	{KindContextLength, 413, []string{"context length", "too many tokens"}},
	{KindServer, 500, []string{"500", "internal server", "503", "overloaded"}},
	{KindTimeout, 0, []string{"timeout", "deadline exceeded"}},
	{KindContentFilter, 0, []string{"content filter", "safety"}},
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
