// Package server exposes an agent over HTTP: a server-sent events stream, a
// polling endpoint, a health check and optional Prometheus metrics.
package server

import (
	"context"
	"iter"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/user"
)

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ChatStreamChunk is one component as sent to the frontend.
type ChatStreamChunk struct {
	Rich           map[string]any              `json:"rich"`
	Simple         *components.SimpleComponent `json:"simple"`
	ConversationID string                      `json:"conversation_id"`
	RequestID      string                      `json:"request_id"`
	Timestamp      float64                     `json:"timestamp"`
}

// ChatResponse is the polling endpoint's reply.
type ChatResponse struct {
	Chunks         []ChatStreamChunk `json:"chunks"`
	ConversationID string            `json:"conversation_id"`
	RequestID      string            `json:"request_id"`
	TotalChunks    int               `json:"total_chunks"`
}

// NewChunk converts a component for the wire.
func NewChunk(c components.UiComponent, conversationID, requestID string) ChatStreamChunk {
	ts := c.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return ChatStreamChunk{
		Rich:           components.Serialize(c.Rich),
		Simple:         c.Simple,
		ConversationID: conversationID,
		RequestID:      requestID,
		Timestamp:      float64(ts.UnixMicro()) / 1e6,
	}
}

// ChatHandler adapts an agent to chat requests independent of transport.
type ChatHandler struct {
	agent *agent.Agent
}

func NewChatHandler(a *agent.Agent) *ChatHandler {
	return &ChatHandler{agent: a}
}

// NewConversationID returns "conv_" followed by eight hex characters.
func NewConversationID() string {
	id := uuid.New()
	return "conv_" + id.String()[:8]
}

// HandleStream runs the agent and converts every component into a chunk.
// Missing conversation and request IDs are generated.
func (h *ChatHandler) HandleStream(ctx context.Context, req ChatRequest, reqCtx *user.RequestContext) iter.Seq[ChatStreamChunk] {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = NewConversationID()
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if reqCtx == nil {
		reqCtx = &user.RequestContext{}
	}
	rc := *reqCtx
	rc.Metadata = maps.Clone(reqCtx.Metadata)
	if rc.Metadata == nil {
		rc.Metadata = map[string]any{}
	}
	rc.Metadata["request_id"] = requestID

	return func(yield func(ChatStreamChunk) bool) {
		for c := range h.agent.SendMessage(ctx, &rc, req.Message, conversationID) {
			if !yield(NewChunk(c, conversationID, requestID)) {
				return
			}
		}
	}
}

// HandlePoll collects the whole stream. It fails only when ctx ends first.
func (h *ChatHandler) HandlePoll(ctx context.Context, req ChatRequest, reqCtx *user.RequestContext) (ChatResponse, error) {
	chunks := []ChatStreamChunk{}
	for chunk := range h.HandleStream(ctx, req, reqCtx) {
		chunks = append(chunks, chunk)
	}
	if err := ctx.Err(); err != nil {
		return ChatResponse{}, err
	}
	resp := ChatResponse{Chunks: chunks, TotalChunks: len(chunks)}
	if len(chunks) > 0 {
		resp.ConversationID = chunks[0].ConversationID
		resp.RequestID = chunks[0].RequestID
	}
	return resp, nil
}
