package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/user"
)

// Server routes chat traffic to a ChatHandler.
type Server struct {
	chat     *ChatHandler
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	cors     bool
	cdnURL   string
	router   chi.Router
}

type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics serves g at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithCORS toggles the permissive CORS policy. It is on by default.
func WithCORS(enabled bool) Option {
	return func(s *Server) { s.cors = enabled }
}

// WithComponentsURL sets where the index page loads the chat web component.
func WithComponentsURL(url string) Option {
	return func(s *Server) { s.cdnURL = url }
}

// New builds the router for a.
func New(a *agent.Agent, opts ...Option) *Server {
	s := &Server{
		chat:   NewChatHandler(a),
		logger: slog.Default(),
		cors:   true,
		cdnURL: "https://img.vanna.ai/vanna-components.js",
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.cors {
		r.Use(cors.AllowAll().Handler)
	}

	r.Get("/", s.index)
	r.Get("/health", s.health)
	r.Route("/api/vanna/v2", func(r chi.Router) {
		r.Post("/chat_sse", s.chatSSE)
		r.Post("/chat_poll", s.chatPoll)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down,
// giving in-flight requests up to shutdownTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// requestContext captures what user resolvers may look at.
func requestContext(r *http.Request, metadata map[string]any) *user.RequestContext {
	rc := &user.RequestContext{
		Cookies:     map[string]string{},
		Headers:     map[string]string{},
		QueryParams: map[string]string{},
		Metadata:    metadata,
	}
	for _, c := range r.Cookies() {
		rc.Cookies[c.Name] = c.Value
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			rc.Headers[k] = v[0]
		}
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			rc.QueryParams[k] = v[0]
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		rc.RemoteAddr = host
	} else {
		rc.RemoteAddr = r.RemoteAddr
	}
	return rc
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.RequestID == "" {
		req.RequestID = middleware.GetReqID(r.Context())
	}
	return req, true
}

type streamError struct {
	Type           string            `json:"type"`
	Data           map[string]string `json:"data"`
	ConversationID string            `json:"conversation_id"`
	RequestID      string            `json:"request_id"`
}

func (s *Server) chatSSE(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeError := func(err error) {
		s.logger.ErrorContext(r.Context(), "chat stream failed", "error", err, "conversation_id", req.ConversationID)
		payload, _ := json.Marshal(streamError{
			Type:           "error",
			Data:           map[string]string{"message": err.Error()},
			ConversationID: req.ConversationID,
			RequestID:      req.RequestID,
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	defer func() {
		if v := recover(); v != nil {
			writeError(fmt.Errorf("%v", v))
		}
	}()

	reqCtx := requestContext(r, req.Metadata)
	for chunk := range s.chat.HandleStream(r.Context(), req, reqCtx) {
		payload, err := json.Marshal(chunk)
		if err != nil {
			writeError(err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			s.logger.DebugContext(r.Context(), "client went away", "error", err)
			return
		}
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) chatPoll(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.chat.HandlePoll(r.Context(), req, requestContext(r, req.Metadata))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "chat poll failed", "error", err)
		http.Error(w, "Chat failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "vanna"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Vanna Agents Chat</title>
<script type="module" src="{{.ComponentsURL}}"></script>
<style>
body { margin: 0; min-height: 100vh; background: linear-gradient(to bottom, #e7e1cf, #ffffff, #e7e1cf); font-family: ui-sans-serif, system-ui; }
main { max-width: 72rem; margin: 0 auto; padding: 1.25rem; }
vanna-chat { width: 100%; height: 80vh; display: block; }
</style>
</head>
<body>
<main>
<h1>Vanna Agents</h1>
<vanna-chat
  api-base=""
  sse-endpoint="/api/vanna/v2/chat_sse"
  poll-endpoint="/api/vanna/v2/chat_poll">
</vanna-chat>
</main>
</body>
</html>
`))

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage.Execute(w, struct{ ComponentsURL string }{s.cdnURL}); err != nil {
		s.logger.Error("render index", "error", err)
	}
}
