// Package user identifies who is talking to the agent.
package user

import (
	"context"
	"slices"
	"strings"
)

// User is the authenticated (or anonymous) principal behind a request.
type User struct {
	ID               string         `json:"id" yaml:"id"`
	Username         string         `json:"username,omitempty" yaml:"username,omitempty"`
	Email            string         `json:"email,omitempty" yaml:"email,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	GroupMemberships []string       `json:"group_memberships,omitempty" yaml:"group_memberships,omitempty"`
}

// InAnyGroup reports whether the user belongs to at least one of groups.
// An empty groups list admits everyone.
func (u *User) InAnyGroup(groups []string) bool {
	if len(groups) == 0 {
		return true
	}
	if u == nil {
		return false
	}
	for _, g := range groups {
		if slices.Contains(u.GroupMemberships, g) {
			return true
		}
	}
	return false
}

// RequestContext carries the transport-level details used to resolve a user.
type RequestContext struct {
	Cookies     map[string]string `json:"cookies,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	RemoteAddr  string            `json:"remote_addr,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

// GetHeader looks up a header case-insensitively.
func (r *RequestContext) GetHeader(name string) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// GetCookie returns the named cookie value, or "".
func (r *RequestContext) GetCookie(name string) string {
	if r == nil {
		return ""
	}
	return r.Cookies[name]
}

// Resolver maps a request to a User.
type Resolver interface {
	ResolveUser(ctx context.Context, req *RequestContext) (*User, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, req *RequestContext) (*User, error)

// ResolveUser calls f.
func (f ResolverFunc) ResolveUser(ctx context.Context, req *RequestContext) (*User, error) {
	return f(ctx, req)
}

// StaticResolver always resolves to the same user.
type StaticResolver struct {
	User *User
}

// ResolveUser returns a copy of the configured user.
func (s StaticResolver) ResolveUser(_ context.Context, _ *RequestContext) (*User, error) {
	u := *s.User
	return &u, nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying u.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user stored by NewContext, if any.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok && u != nil
}
