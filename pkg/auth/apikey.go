package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// APIKey maps a hashed key to the username it authenticates as.
type APIKey struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	KeyHash  string `yaml:"key_hash"` // bcrypt
}

// APIKeyAuthenticator authenticates using bcrypt-hashed API keys.
type APIKeyAuthenticator struct {
	mu   sync.RWMutex
	keys []APIKey
}

// NewAPIKeyAuthenticator creates an API key authenticator. Every key must
// carry a username and a bcrypt hash.
func NewAPIKeyAuthenticator(keys []APIKey) (*APIKeyAuthenticator, error) {
	a := &APIKeyAuthenticator{}
	for _, k := range keys {
		if err := a.AddKey(k); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// AddKey adds an API key at runtime.
func (a *APIKeyAuthenticator) AddKey(key APIKey) error {
	if key.Username == "" {
		return fmt.Errorf("api key %q: username is required", key.Name)
	}
	if _, err := bcrypt.Cost([]byte(key.KeyHash)); err != nil {
		return fmt.Errorf("api key %q: key_hash is not a bcrypt hash: %w", key.Name, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return nil
}

// RemoveKey removes every key with the given name.
func (a *APIKeyAuthenticator) RemoveKey(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.keys[:0]
	for _, k := range a.keys {
		if k.Name != name {
			kept = append(kept, k)
		}
	}
	a.keys = kept
}

// Authenticate validates the API key and returns the mapped username.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context) (*Identity, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, ErrNoToken
	}
	// JWTs are never API keys; skip the bcrypt work.
	if strings.Count(token, ".") == 2 {
		return nil, fmt.Errorf("%w: not an api key", ErrInvalidToken)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, k := range a.keys {
		err := bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(token))
		if err == nil {
			return &Identity{Username: k.Username, AuthType: "apikey"}, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, fmt.Errorf("comparing api key %q: %w", k.Name, err)
		}
	}
	return nil, fmt.Errorf("%w: unknown api key", ErrInvalidToken)
}

// HashKey returns the bcrypt hash to store as key_hash.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing api key: %w", err)
	}
	return string(h), nil
}

// Verify interface compliance.
var _ Authenticator = (*APIKeyAuthenticator)(nil)
