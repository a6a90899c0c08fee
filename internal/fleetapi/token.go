package fleetapi

import (
	"context"
	"sync"
	"time"
)

// expirySkew forces a refresh this long before the token actually expires
const expirySkew = 5 * time.Minute

// authenticateFunc performs the blocking token exchange against the provider
type authenticateFunc func(ctx context.Context) (token string, expiry time.Time, err error)

// TokenManager caches a single bearer token for the fleet API. Refresh is
// single-flighted: the mutex is held across the authenticate call, so
// concurrent callers block on the one in-flight refresh instead of each
// hitting the token endpoint.
type TokenManager struct {
	mu           sync.Mutex
	token        string
	expiry       time.Time
	authenticate authenticateFunc
	now          func() time.Time
}

// NewTokenManager creates a token manager around an authenticate call
func NewTokenManager(authenticate authenticateFunc) *TokenManager {
	return &TokenManager{
		authenticate: authenticate,
		now:          time.Now,
	}
}

// GetToken returns the cached token, refreshing it when missing or within the
// expiry skew. On authentication failure nothing is cached and the error is
// returned.
func (m *TokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiry.Add(-expirySkew)) {
		return m.token, nil
	}

	token, expiry, err := m.authenticate(ctx)
	if err != nil {
		return "", err
	}

	m.token = token
	m.expiry = expiry
	return token, nil
}

// Invalidate drops the cached token so the next GetToken re-authenticates.
// Called when a downstream request comes back 401.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expiry = time.Time{}
}
