package auth

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/kbatch-dev/kbatch-proxy/internal/kerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentityService struct {
	calls int32
	users map[string]*identityResponse
}

func (f *fakeIdentityService) Lookup(ctx context.Context, token string) (*identityResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	resp, ok := f.users[token]
	if !ok {
		return nil, nil
	}
	return resp, nil
}

func newFakeIdentity() *fakeIdentityService {
	return &fakeIdentityService{
		users: map[string]*identityResponse{
			"good-token":     {Name: "alice", Groups: []string{"staff"}, Scopes: []string{"access:jobs"}},
			"unscoped-token": {Name: "bob", Groups: []string{"staff"}, Scopes: []string{"access:other"}},
		},
	}
}

func TestAuthenticateValidToken(t *testing.T) {
	identity := newFakeIdentity()
	a := NewAuthenticator(identity, "access:jobs")

	user, err := a.Authenticate(context.Background(), "Bearer good-token")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, "kbatch-alice", user.Namespace)
}

func TestAuthenticateCaseInsensitiveScheme(t *testing.T) {
	identity := newFakeIdentity()
	a := NewAuthenticator(identity, "access:jobs")

	user, err := a.Authenticate(context.Background(), "token good-token")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
}

func TestAuthenticateMissingHeaderIsUnauthenticated(t *testing.T) {
	a := NewAuthenticator(newFakeIdentity(), "access:jobs")

	_, err := a.Authenticate(context.Background(), "")
	require.Error(t, err)
	classified, ok := kerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kerr.Unauthenticated, classified.Kind)
}

func TestAuthenticateInvalidTokenIsUnauthenticated(t *testing.T) {
	a := NewAuthenticator(newFakeIdentity(), "access:jobs")

	_, err := a.Authenticate(context.Background(), "Bearer does-not-exist")
	require.Error(t, err)
	classified, ok := kerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kerr.Unauthenticated, classified.Kind)
}

func TestAuthenticateInsufficientScopeIsForbiddenNotUnauthenticated(t *testing.T) {
	// Scenario 4: valid token, wrong scope -> 403, not 401.
	a := NewAuthenticator(newFakeIdentity(), "access:jobs")

	_, err := a.Authenticate(context.Background(), "Bearer unscoped-token")
	require.Error(t, err)
	classified, ok := kerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kerr.Forbidden, classified.Kind)
}

func TestAuthenticateCachesSecondLookup(t *testing.T) {
	identity := newFakeIdentity()
	a := NewAuthenticator(identity, "access:jobs")

	_, err := a.Authenticate(context.Background(), "Bearer good-token")
	require.NoError(t, err)
	_, err = a.Authenticate(context.Background(), "Bearer good-token")
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&identity.calls))
}

func TestAuthenticateConcurrentColdLookupsCollapse(t *testing.T) {
	identity := newFakeIdentity()
	a := NewAuthenticator(identity, "access:jobs")

	const n = 20
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			_, _ = a.Authenticate(context.Background(), "Bearer good-token")
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	assert.EqualValues(t, 1, atomic.LoadInt32(&identity.calls))
}

func TestExtractTokenMalformedHeader(t *testing.T) {
	_, err := extractToken("garbage")
	require.Error(t, err)
	classified, ok := kerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kerr.Unauthenticated, classified.Kind)
}

func TestExtractTokenUnsupportedScheme(t *testing.T) {
	_, err := extractToken("Basic dXNlcjpwYXNz")
	require.Error(t, err)
}
