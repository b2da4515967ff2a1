package user

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInAnyGroup(t *testing.T) {
	u := &User{ID: "u1", GroupMemberships: []string{"analyst", "sales"}}

	assert.True(t, u.InAnyGroup(nil), "empty groups admit everyone")
	assert.True(t, u.InAnyGroup([]string{"admin", "sales"}))
	assert.False(t, u.InAnyGroup([]string{"admin"}))

	var nobody *User
	assert.True(t, nobody.InAnyGroup(nil))
	assert.False(t, nobody.InAnyGroup([]string{"admin"}))
}

func TestRequestContext_GetHeaderCaseInsensitive(t *testing.T) {
	rc := &RequestContext{Headers: map[string]string{"X-Api-Key": "abc"}}

	assert.Equal(t, "abc", rc.GetHeader("x-api-key"))
	assert.Equal(t, "abc", rc.GetHeader("X-Api-Key"))
	assert.Equal(t, "", rc.GetHeader("missing"))
}

func TestCookieEmailResolver_WithCookie(t *testing.T) {
	r := &CookieEmailResolver{
		CookieName:    DefaultEmailCookie,
		DefaultGroups: []string{"user"},
		AdminEmails:   []string{"alice@example.com"},
		AdminGroups:   []string{"admin"},
	}

	u, err := r.ResolveUser(context.Background(), &RequestContext{
		Cookies: map[string]string{"vanna_email": "alice@example.com"},
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("alice@example.com"))
	assert.Equal(t, hex.EncodeToString(sum[:])[:16], u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "cookie", u.Metadata["auth_method"])
	assert.ElementsMatch(t, []string{"user", "admin"}, u.GroupMemberships)
}

func TestCookieEmailResolver_Anonymous(t *testing.T) {
	r := NewCookieEmailResolver()

	u, err := r.ResolveUser(context.Background(), &RequestContext{RemoteAddr: "10.0.0.1"})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("anonymous-10.0.0.1"))
	assert.Equal(t, hex.EncodeToString(sum[:])[:16], u.ID)
	assert.Equal(t, "anonymous", u.Username)

	u2, err := r.ResolveUser(context.Background(), nil)
	require.NoError(t, err)
	sum = sha256.Sum256([]byte("anonymous-unknown"))
	assert.Equal(t, hex.EncodeToString(sum[:])[:16], u2.ID)
}

func TestStaticResolver_ReturnsCopy(t *testing.T) {
	base := &User{ID: "fixed"}
	r := StaticResolver{User: base}

	u, err := r.ResolveUser(context.Background(), nil)
	require.NoError(t, err)
	u.ID = "changed"

	assert.Equal(t, "fixed", base.ID)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	u := &User{ID: "u1"}
	got, ok := FromContext(NewContext(context.Background(), u))
	assert.True(t, ok)
	assert.Equal(t, "u1", got.ID)
}
