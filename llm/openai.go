package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/sashabaranov/go-openai"

	"github.com/martinemde/vanna/tool"
)

// OpenAIService talks to the OpenAI chat completions API, or an Azure OpenAI
// deployment, with native function calling.
type OpenAIService struct {
	client   *openai.Client
	model    string
	provider string
}

// OpenAIConfig configures NewOpenAIService.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// Azure selects Azure OpenAI; BaseURL is then the resource endpoint and
	// Model the deployment name.
	Azure      bool
	APIVersion string
}

// NewOpenAIService creates an OpenAIService.
func NewOpenAIService(cfg OpenAIConfig) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, configError("openai: api key is required")
	}

	var clientCfg openai.ClientConfig
	provider := "openai"
	if cfg.Azure {
		if cfg.BaseURL == "" {
			return nil, configError("azure openai: endpoint is required")
		}
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		provider = "azure"
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIService{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		provider: provider,
	}, nil
}

// SendRequest performs a blocking chat completion.
func (s *OpenAIService) SendRequest(ctx context.Context, req Request) (*Response, error) {
	creq := s.buildRequest(req)

	resp, err := s.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, s.translateError(err)
	}

	out := &Response{
		Usage: map[string]int{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
		Metadata: map[string]any{"provider": s.provider, "model": resp.Model, "id": resp.ID},
	}
	if len(resp.Choices) == 0 {
		return out, nil
	}

	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.FinishReason = string(choice.FinishReason)
	for _, tc := range choice.Message.ToolCalls {
		call, err := toToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			return nil, err
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}
	return out, nil
}

// StreamRequest streams content deltas. Tool call fragments are assembled
// by index and sent together on the final chunk.
func (s *OpenAIService) StreamRequest(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	creq := s.buildRequest(req)
	creq.Stream = true
	creq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := s.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, s.translateError(err)
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()

		type partial struct {
			id, name string
			args     []byte
		}
		parts := map[int]*partial{}
		var finish string
		var usage map[string]int

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				ch <- StreamChunk{Err: s.translateError(err)}
				return
			}
			if resp.Usage != nil {
				usage = map[string]int{
					"prompt_tokens":     resp.Usage.PromptTokens,
					"completion_tokens": resp.Usage.CompletionTokens,
					"total_tokens":      resp.Usage.TotalTokens,
				}
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.FinishReason != "" {
				finish = string(choice.FinishReason)
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				p, ok := parts[idx]
				if !ok {
					p = &partial{}
					parts[idx] = p
				}
				if tc.ID != "" {
					p.id = tc.ID
				}
				if tc.Function.Name != "" {
					p.name = tc.Function.Name
				}
				p.args = append(p.args, tc.Function.Arguments...)
			}
			if choice.Delta.Content != "" {
				select {
				case ch <- StreamChunk{Content: choice.Delta.Content}:
				case <-ctx.Done():
					// Consumers drain until close, so this send completes.
					ch <- StreamChunk{Err: s.translateError(ctx.Err())}
					return
				}
			}
		}

		indexes := make([]int, 0, len(parts))
		for i := range parts {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)

		final := StreamChunk{FinishReason: finish, Usage: usage}
		for _, i := range indexes {
			p := parts[i]
			call, err := toToolCall(p.id, p.name, string(p.args))
			if err != nil {
				ch <- StreamChunk{Err: err}
				return
			}
			final.ToolCalls = append(final.ToolCalls, call)
		}
		ch <- final
	}()
	return ch, nil
}

// ValidateTools applies the basic checks and requires object parameters.
func (s *OpenAIService) ValidateTools(tools []tool.Schema) []string {
	errs := BasicToolValidation(tools)
	for _, t := range tools {
		if t.Parameters == nil {
			continue
		}
		if typ, _ := t.Parameters["type"].(string); typ != "" && typ != "object" {
			errs = append(errs, fmt.Sprintf("tool '%s' parameters must be an object schema", t.Name))
		}
	}
	return errs
}

func (s *OpenAIService) buildRequest(req Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = s.model
	}
	temp := float32(req.TemperatureOr(DefaultTemperature))
	if temp == 0 {
		// go-openai omits a zero temperature and the API then uses 1.
		temp = math.SmallestNonzeroFloat32
	}

	creq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req),
		Temperature: temp,
	}
	if req.MaxTokens != nil {
		creq.MaxTokens = *req.MaxTokens
	}
	for _, t := range req.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		creq.Tools = append(creq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return creq
}

func toOpenAIMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		om := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		msgs = append(msgs, om)
	}
	return msgs
}

func toToolCall(id, name, rawArgs string) (tool.Call, error) {
	args, err := tool.ParseArguments(rawArgs)
	if err != nil {
		return tool.Call{}, newError(KindInvalidToolCall, fmt.Sprintf("tool call %s has malformed arguments", name), err)
	}
	return tool.Call{ID: id, Name: name, Arguments: args}, nil
}

func (s *OpenAIService) translateError(err error) error {
	if errors.Is(err, context.Canceled) {
		return newError(KindAborted, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, "request timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		out := ErrorFromStatusCode(apiErr.HTTPStatusCode, apiErr.Message, s.provider, code, nil).(*Error)
		switch code {
		case "context_length_exceeded":
			out.Kind = KindContextLength
		case "insufficient_quota":
			out.Kind = KindQuotaExceeded
		}
		out.Cause = err
		return out
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ErrorFromStatusCode(reqErr.HTTPStatusCode, reqErr.Error(), s.provider, "", nil)
	}

	return newError(KindNetwork, "openai request failed", err)
}
