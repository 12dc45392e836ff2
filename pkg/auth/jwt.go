package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of issued tokens when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// JWTConfig configures token verification and issuance. Either Secret (HS256)
// or an RSA key pair (RS256) is used; RSA wins when both are set.
type JWTConfig struct {
	// Issuer is the expected and issued iss claim.
	Issuer string

	// Secret is the HMAC key.
	Secret []byte

	// PublicKey verifies RS256 tokens.
	PublicKey *rsa.PublicKey

	// PrivateKey signs RS256 tokens; only needed to issue them.
	PrivateKey *rsa.PrivateKey

	// TTL is the lifetime of issued tokens.
	TTL time.Duration
}

// LoadRSAKeys reads PEM encoded keys into cfg. Empty paths are skipped.
func (cfg *JWTConfig) LoadRSAKeys(publicKeyFile, privateKeyFile string) error {
	if publicKeyFile != "" {
		data, err := os.ReadFile(publicKeyFile) //nolint:gosec // path from operator config
		if err != nil {
			return fmt.Errorf("reading public key: %w", err)
		}
		if cfg.PublicKey, err = jwt.ParseRSAPublicKeyFromPEM(data); err != nil {
			return fmt.Errorf("parsing public key: %w", err)
		}
	}
	if privateKeyFile != "" {
		data, err := os.ReadFile(privateKeyFile) //nolint:gosec // path from operator config
		if err != nil {
			return fmt.Errorf("reading private key: %w", err)
		}
		if cfg.PrivateKey, err = jwt.ParseRSAPrivateKeyFromPEM(data); err != nil {
			return fmt.Errorf("parsing private key: %w", err)
		}
		if cfg.PublicKey == nil {
			cfg.PublicKey = &cfg.PrivateKey.PublicKey
		}
	}
	return nil
}

func (cfg *JWTConfig) rsa() bool {
	return cfg.PublicKey != nil
}

// JWTAuthenticator validates JWT access tokens. The username is the sub
// claim.
type JWTAuthenticator struct {
	cfg JWTConfig
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(cfg JWTConfig) (*JWTAuthenticator, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	if !cfg.rsa() && len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret or public key is required")
	}
	return &JWTAuthenticator{cfg: cfg}, nil
}

// Authenticate validates the JWT token and returns the subject.
func (a *JWTAuthenticator) Authenticate(ctx context.Context) (*Identity, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, ErrNoToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, a.keyFunc,
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithValidMethods(a.validMethods()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return &Identity{Username: claims.Subject, AuthType: "jwt"}, nil
}

func (a *JWTAuthenticator) keyFunc(t *jwt.Token) (any, error) {
	if a.cfg.rsa() {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.cfg.PublicKey, nil
	}
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return a.cfg.Secret, nil
}

func (a *JWTAuthenticator) validMethods() []string {
	if a.cfg.rsa() {
		return []string{jwt.SigningMethodRS256.Alg()}
	}
	return []string{jwt.SigningMethodHS256.Alg()}
}

// TokenIssuer mints tokens a JWTAuthenticator with the same config accepts.
type TokenIssuer struct {
	cfg JWTConfig
	now func() time.Time
}

// NewTokenIssuer creates a token issuer. RS256 issuance needs the private key.
func NewTokenIssuer(cfg JWTConfig) (*TokenIssuer, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	if cfg.rsa() && cfg.PrivateKey == nil {
		return nil, errors.New("jwt private key is required to issue RS256 tokens")
	}
	if !cfg.rsa() && len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret or private key is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}, nil
}

// Issue returns a signed token for username. A forever token carries no
// expiry.
func (i *TokenIssuer) Issue(username string, forever bool) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:   i.cfg.Issuer,
		Subject:  username,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if !forever {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.cfg.TTL))
	}

	var (
		signed string
		err    error
	)
	if i.cfg.rsa() {
		signed, err = jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.cfg.PrivateKey)
	} else {
		signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	}
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify interface compliance.
var _ Authenticator = (*JWTAuthenticator)(nil)
