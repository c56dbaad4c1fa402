// Package auth verifies bearer tokens issued by the identity provider.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/abgdnv/bookstore/pkg/config"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

type Verifier interface {
	Verify(ctx context.Context, tokenString string) (jwt.Token, error)
}

// JWTVerifier manages JWT verification using a JWKS endpoint.
// The key set is cached for at least minInterval; a failed refresh keeps serving the cached set.
type JWTVerifier struct {
	mu sync.RWMutex

	jwksURL    string
	issuer     string
	clientID   string
	httpClient *http.Client

	cachedSet     jwk.Set
	lastRefreshed time.Time
	minInterval   time.Duration
}

// Option customizes a JWTVerifier.
type Option func(*JWTVerifier)

// WithHTTPClient sets the client used to download the key set.
func WithHTTPClient(client *http.Client) Option {
	return func(v *JWTVerifier) {
		v.httpClient = client
	}
}

// NewJWTVerifier creates a new JWTVerifier instance. The key set is fetched once up front
// so a misconfigured IdP fails the startup.
func NewJWTVerifier(ctx context.Context, cfg config.IdP, opts ...Option) (*JWTVerifier, error) {
	v := &JWTVerifier{
		jwksURL:     cfg.JwksURL,
		issuer:      cfg.Issuer,
		clientID:    cfg.ClientID,
		minInterval: cfg.MinInterval,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(v)
	}
	if _, err := v.keySet(ctx); err != nil {
		return nil, fmt.Errorf("initial JWKS fetch failed: %w", err)
	}
	return v, nil
}

func (v *JWTVerifier) fresh() (jwk.Set, bool) {
	if v.cachedSet != nil && time.Since(v.lastRefreshed) < v.minInterval {
		return v.cachedSet, true
	}
	return nil, false
}

// keySet returns the cached key set, refreshing it when it is older than minInterval.
func (v *JWTVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	v.mu.RLock()
	set, ok := v.fresh()
	v.mu.RUnlock()
	if ok {
		return set, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	// another goroutine may have refreshed it while we waited for the lock
	if set, ok := v.fresh(); ok {
		return set, nil
	}
	set, err := jwk.Fetch(ctx, v.jwksURL, jwk.WithHTTPClient(v.httpClient))
	if err != nil {
		if v.cachedSet != nil {
			return v.cachedSet, nil
		}
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", v.jwksURL, err)
	}
	v.cachedSet = set
	v.lastRefreshed = time.Now()
	return set, nil
}

// Verify checks signature, expiry, issuer and the authorized party of tokenString.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (jwt.Token, error) {
	set, err := v.keySet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get keyset for verification: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithClaimValue("azp", v.clientID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	return token, nil
}
