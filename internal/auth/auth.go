// Package auth validates bearer tokens against JupyterHub's identity
// service and yields the authenticated User, per §4.7.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/kbatch-dev/kbatch-proxy/internal/kerr"
	"github.com/kbatch-dev/kbatch-proxy/internal/namemapper"
)

// User is an authenticated caller (spec.md §3).
type User struct {
	Name      string
	Groups    []string
	Scopes    []string
	APIToken  string
	Namespace string
}

// IdentityService looks a bearer token up against the identity provider
// (JupyterHub) and returns the principal it identifies, or an error if the
// token is invalid.
type IdentityService interface {
	Lookup(ctx context.Context, token string) (*identityResponse, error)
}

type identityResponse struct {
	Name   string   `json:"name"`
	Groups []string `json:"groups"`
	Scopes []string `json:"scopes"`
}

// Authenticator validates an inbound request's bearer token and returns
// the User it identifies, enforcing a required scope.
type Authenticator struct {
	identity      IdentityService
	requiredScope string
	cache         *tokenCache
	group         singleflight.Group
}

// NewAuthenticator constructs an Authenticator backed by identity,
// requiring requiredScope to be present in every validated token's scopes.
func NewAuthenticator(identity IdentityService, requiredScope string) *Authenticator {
	return &Authenticator{
		identity:      identity,
		requiredScope: requiredScope,
		cache:         newTokenCache(DefaultTokenCacheTTL, DefaultTokenCacheMaxEntries),
	}
}

// Authenticate extracts a bearer token from authHeader (scheme "Bearer" or
// "Token", case-insensitive) and resolves it to a User.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) (*User, error) {
	token, err := extractToken(authHeader)
	if err != nil {
		return nil, err
	}

	if user := a.cache.Get(token); user != nil {
		return user, nil
	}

	// Concurrent identical lookups on a cold cache key collapse into one
	// upstream call.
	key := hashToken(token)
	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		if user := a.cache.Get(token); user != nil {
			return user, nil
		}
		return a.lookup(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

func (a *Authenticator) lookup(ctx context.Context, token string) (*User, error) {
	resp, err := a.identity.Lookup(ctx, token)
	if err != nil {
		return nil, kerr.Wrap(kerr.Unauthenticated, "identity lookup failed", err)
	}
	if resp == nil {
		return nil, kerr.New(kerr.Unauthenticated, "invalid token")
	}

	if !hasScope(resp.Scopes, a.requiredScope) {
		return nil, kerr.Forbiddenf("token missing required scope %q", a.requiredScope)
	}

	user := &User{
		Name:      resp.Name,
		Groups:    resp.Groups,
		Scopes:    resp.Scopes,
		APIToken:  token,
		Namespace: namemapper.Map(resp.Name),
	}
	a.cache.Set(token, user)
	return user, nil
}

func hasScope(scopes []string, required string) bool {
	if required == "" {
		return true
	}
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}

func extractToken(header string) (string, error) {
	if header == "" {
		return "", kerr.New(kerr.Unauthenticated, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", kerr.New(kerr.Unauthenticated, "malformed authorization header")
	}
	scheme := strings.ToLower(parts[0])
	if scheme != "bearer" && scheme != "token" {
		return "", kerr.New(kerr.Unauthenticated, "unsupported authorization scheme")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", kerr.New(kerr.Unauthenticated, "empty bearer token")
	}
	return token, nil
}

// HTTPIdentityService calls out to JupyterHub's user-info endpoint,
// forwarding the caller's token via oauth2.Transport + StaticTokenSource —
// the token is being forwarded, not minted, so only the transport half of
// the oauth2 package is used.
type HTTPIdentityService struct {
	BaseURL string
}

func (s *HTTPIdentityService) Lookup(ctx context.Context, token string) (*identityResponse, error) {
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var out identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return &out, nil
}
