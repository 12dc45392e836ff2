package auth

import (
	"context"
)

// ChainedAuthenticator tries multiple authenticators in order.
type ChainedAuthenticator struct {
	authenticators []Authenticator
}

// NewChainedAuthenticator creates a new chained authenticator.
func NewChainedAuthenticator(authenticators ...Authenticator) *ChainedAuthenticator {
	return &ChainedAuthenticator{authenticators: authenticators}
}

// Authenticate tries each authenticator in order and returns the first
// identity. The last error is returned when none succeeds.
func (c *ChainedAuthenticator) Authenticate(ctx context.Context) (*Identity, error) {
	if GetToken(ctx) == "" {
		return nil, ErrNoToken
	}

	var lastErr error
	for _, a := range c.authenticators {
		id, err := a.Authenticate(ctx)
		if err == nil && id != nil {
			return id, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrInvalidToken
}

// Len returns the number of chained authenticators.
func (c *ChainedAuthenticator) Len() int {
	return len(c.authenticators)
}

// Verify interface compliance.
var _ Authenticator = (*ChainedAuthenticator)(nil)
