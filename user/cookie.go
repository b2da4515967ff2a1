package user

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// DefaultEmailCookie is the cookie read by CookieEmailResolver.
const DefaultEmailCookie = "vanna_email"

// CookieEmailResolver derives a stable user identity from an email cookie.
// Requests without the cookie get an anonymous identity keyed on the
// remote address.
type CookieEmailResolver struct {
	CookieName    string
	DefaultGroups []string
	AdminEmails   []string
	AdminGroups   []string
}

// NewCookieEmailResolver returns a resolver reading DefaultEmailCookie.
func NewCookieEmailResolver(defaultGroups ...string) *CookieEmailResolver {
	return &CookieEmailResolver{CookieName: DefaultEmailCookie, DefaultGroups: defaultGroups}
}

// ResolveUser implements Resolver.
func (c *CookieEmailResolver) ResolveUser(_ context.Context, req *RequestContext) (*User, error) {
	name := c.CookieName
	if name == "" {
		name = DefaultEmailCookie
	}

	email := strings.TrimSpace(req.GetCookie(name))
	if email == "" {
		addr := "unknown"
		if req != nil && req.RemoteAddr != "" {
			addr = req.RemoteAddr
		}
		return &User{
			ID:               shortHash("anonymous-" + addr),
			Username:         "anonymous",
			Metadata:         map[string]any{"auth_method": "anonymous"},
			GroupMemberships: slices.Clone(c.DefaultGroups),
		}, nil
	}

	username, _, _ := strings.Cut(email, "@")
	groups := slices.Clone(c.DefaultGroups)
	if slices.Contains(c.AdminEmails, email) {
		for _, g := range c.AdminGroups {
			if !slices.Contains(groups, g) {
				groups = append(groups, g)
			}
		}
	}

	return &User{
		ID:               shortHash(email),
		Username:         username,
		Email:            email,
		Metadata:         map[string]any{"auth_method": "cookie"},
		GroupMemberships: groups,
	}, nil
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
