package llm

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/martinemde/vanna/tool"
)

// Middleware wraps a SendRequest call. next invokes the downstream handler.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error)

// StreamMiddleware wraps a StreamRequest call.
type StreamMiddleware func(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamChunk, error)) (<-chan StreamChunk, error)

// Client routes requests to named services and applies middleware. It is
// itself a Service.
type Client struct {
	services        map[string]Service
	defaultProvider string
	middleware      []Middleware
	streamMW        []StreamMiddleware
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a service under name.
func WithProvider(name string, svc Service) ClientOption {
	return func(c *Client) {
		c.services[name] = svc
	}
}

// WithDefaultProvider sets the service used when a request names none.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware appends request middleware. The first registered runs first.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithStreamMiddleware appends stream middleware.
func WithStreamMiddleware(mw ...StreamMiddleware) ClientOption {
	return func(c *Client) {
		c.streamMW = append(c.streamMW, mw...)
	}
}

// NewClient creates a Client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		services: make(map[string]Service),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultProvider == "" && len(c.services) == 1 {
		for name := range c.services {
			c.defaultProvider = name
		}
	}
	return c
}

// RegisterProvider adds a service. The first one registered becomes the
// default if none was set.
func (c *Client) RegisterProvider(name string, svc Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = svc
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

// Providers returns the registered provider names, sorted.
func (c *Client) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) resolve(req Request) (Service, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		if info := GetModelInfo(req.Model); info != nil {
			name = info.Provider
		}
	}
	if name == "" {
		return nil, "", configError("no provider specified and no default provider configured")
	}

	svc, ok := c.services[name]
	if !ok {
		return nil, "", configError("provider %q is not registered", name)
	}
	return svc, name, nil
}

// SendRequest runs the middleware chain and the resolved service.
func (c *Client) SendRequest(ctx context.Context, req Request) (*Response, error) {
	svc, name, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	req.Provider = name
	return chain(svc.SendRequest, c.middleware)(ctx, req)
}

// StreamRequest runs the stream middleware chain and the resolved service.
func (c *Client) StreamRequest(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	svc, name, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	req.Provider = name
	return chain(svc.StreamRequest, c.streamMW)(ctx, req)
}

// chain wraps final so that mws[0] is outermost.
func chain[T any, M ~func(context.Context, Request, func(context.Context, Request) (T, error)) (T, error)](
	final func(context.Context, Request) (T, error), mws []M,
) func(context.Context, Request) (T, error) {
	h := final
	for _, mw := range slices.Backward(mws) {
		next := h
		h = func(ctx context.Context, r Request) (T, error) {
			return mw(ctx, r, next)
		}
	}
	return h
}

// ValidateTools delegates to the default service.
func (c *Client) ValidateTools(tools []tool.Schema) []string {
	svc, _, err := c.resolve(Request{})
	if err != nil {
		return []string{err.Error()}
	}
	return svc.ValidateTools(tools)
}

// Close releases resources held by the registered services.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, svc := range c.services {
		if closer, ok := svc.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
