package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	testIssuer = "https://lookup.example.com"
	testSecret = "test-signing-key-at-least-32-bytes-long"
	testUser   = "grumpy"
)

func TestContext(t *testing.T) {
	ctx := context.Background()
	if GetToken(ctx) != "" || GetIdentity(ctx) != nil || Username(ctx) != "" {
		t.Fatal("empty context should carry nothing")
	}
	ctx = WithToken(ctx, "abc")
	ctx = WithIdentity(ctx, &Identity{Username: testUser, AuthType: "jwt"})
	if GetToken(ctx) != "abc" {
		t.Errorf("GetToken() = %q", GetToken(ctx))
	}
	if Username(ctx) != testUser {
		t.Errorf("Username() = %q", Username(ctx))
	}
}

func hashForTest(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	return string(h)
}

func TestAPIKeyAuthenticator(t *testing.T) {
	a, err := NewAPIKeyAuthenticator([]APIKey{
		{Name: "ci", Username: testUser, KeyHash: hashForTest(t, "key-one")},
		{Name: "robot", Username: "sleepy", KeyHash: hashForTest(t, "key-two")},
	})
	if err != nil {
		t.Fatalf("NewAPIKeyAuthenticator() error = %v", err)
	}

	t.Run("valid key", func(t *testing.T) {
		id, err := a.Authenticate(WithToken(context.Background(), "key-two"))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if id.Username != "sleepy" || id.AuthType != "apikey" {
			t.Errorf("identity = %+v", id)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := a.Authenticate(WithToken(context.Background(), "nope"))
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("jwt shaped token", func(t *testing.T) {
		_, err := a.Authenticate(WithToken(context.Background(), "a.b.c"))
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("no key", func(t *testing.T) {
		_, err := a.Authenticate(context.Background())
		if !errors.Is(err, ErrNoToken) {
			t.Errorf("error = %v, want ErrNoToken", err)
		}
	})

	t.Run("remove key", func(t *testing.T) {
		a.RemoveKey("ci")
		if _, err := a.Authenticate(WithToken(context.Background(), "key-one")); err == nil {
			t.Error("removed key still authenticates")
		}
	})
}

func TestAPIKeyValidation(t *testing.T) {
	if _, err := NewAPIKeyAuthenticator([]APIKey{{Name: "x", KeyHash: hashForTest(t, "k")}}); err == nil {
		t.Error("expected error for missing username")
	}
	if _, err := NewAPIKeyAuthenticator([]APIKey{{Name: "x", Username: testUser, KeyHash: "plaintext"}}); err == nil {
		t.Error("expected error for non-bcrypt hash")
	}
}

func TestHashKey(t *testing.T) {
	h, err := HashKey("s3cr3t")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("s3cr3t")) != nil {
		t.Error("hash does not verify")
	}
}

func hmacConfig() JWTConfig {
	return JWTConfig{Issuer: testIssuer, Secret: []byte(testSecret), TTL: time.Hour}
}

func TestJWTRoundTripHMAC(t *testing.T) {
	issuer, err := NewTokenIssuer(hmacConfig())
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	authn, err := NewJWTAuthenticator(hmacConfig())
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() error = %v", err)
	}

	for _, forever := range []bool{false, true} {
		token, err := issuer.Issue(testUser, forever)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		id, err := authn.Authenticate(WithToken(context.Background(), token))
		if err != nil {
			t.Fatalf("Authenticate(forever=%v) error = %v", forever, err)
		}
		if id.Username != testUser || id.AuthType != "jwt" {
			t.Errorf("identity = %+v", id)
		}
	}
}

func TestJWTForeverHasNoExpiry(t *testing.T) {
	issuer, _ := NewTokenIssuer(hmacConfig())
	token, err := issuer.Issue(testUser, true)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", claims.ExpiresAt)
	}
}

func TestJWTRejects(t *testing.T) {
	authn, _ := NewJWTAuthenticator(hmacConfig())
	sign := func(claims jwt.Claims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return s
	}
	now := time.Now()

	tests := []struct {
		name  string
		token string
	}{
		{"wrong issuer", sign(jwt.RegisteredClaims{Issuer: "https://evil", Subject: testUser}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"wrong key", sign(jwt.RegisteredClaims{Issuer: testIssuer, Subject: testUser}, jwt.SigningMethodHS256, []byte("another-key-that-is-long-enough!!"))},
		{"expired", sign(jwt.RegisteredClaims{Issuer: testIssuer, Subject: testUser, ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour))}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"missing subject", sign(jwt.RegisteredClaims{Issuer: testIssuer}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"wrong algorithm", sign(jwt.RegisteredClaims{Issuer: testIssuer, Subject: testUser}, jwt.SigningMethodHS512, []byte(testSecret))},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authn.Authenticate(WithToken(context.Background(), tt.token))
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error = %v, want ErrInvalidToken", err)
			}
		})
	}

	if _, err := authn.Authenticate(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Errorf("error = %v, want ErrNoToken", err)
	}
}

func writePEM(t *testing.T, dir, name, typ string, der []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der}), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestJWTRoundTripRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	dir := t.TempDir()
	privPath := writePEM(t, dir, "private.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshalling public key: %v", err)
	}
	pubPath := writePEM(t, dir, "public.pem", "PUBLIC KEY", pubDER)

	signing := JWTConfig{Issuer: testIssuer}
	if err := signing.LoadRSAKeys("", privPath); err != nil {
		t.Fatalf("LoadRSAKeys(private) error = %v", err)
	}
	verifying := JWTConfig{Issuer: testIssuer}
	if err := verifying.LoadRSAKeys(pubPath, ""); err != nil {
		t.Fatalf("LoadRSAKeys(public) error = %v", err)
	}

	issuer, err := NewTokenIssuer(signing)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	token, err := issuer.Issue(testUser, false)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	authn, err := NewJWTAuthenticator(verifying)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() error = %v", err)
	}
	id, err := authn.Authenticate(WithToken(context.Background(), token))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Username != testUser {
		t.Errorf("Username = %q", id.Username)
	}

	// An HMAC token must not pass an RSA verifier.
	hmacIssuer, _ := NewTokenIssuer(hmacConfig())
	hmacToken, _ := hmacIssuer.Issue(testUser, false)
	if _, err := authn.Authenticate(WithToken(context.Background(), hmacToken)); err == nil {
		t.Error("HMAC token accepted by RSA verifier")
	}

	if err := (&JWTConfig{}).LoadRSAKeys(filepath.Join(dir, "missing.pem"), ""); err == nil {
		t.Error("expected error for missing key file")
	}
}

func TestJWTConfigValidation(t *testing.T) {
	if _, err := NewJWTAuthenticator(JWTConfig{Secret: []byte(testSecret)}); err == nil {
		t.Error("expected error for missing issuer")
	}
	if _, err := NewJWTAuthenticator(JWTConfig{Issuer: testIssuer}); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := NewTokenIssuer(JWTConfig{Issuer: testIssuer}); err == nil {
		t.Error("expected error for missing signing key")
	}
	issuer, _ := NewTokenIssuer(JWTConfig{Issuer: testIssuer, Secret: []byte(testSecret)})
	if issuer.cfg.TTL != DefaultTokenTTL {
		t.Errorf("TTL = %v, want default", issuer.cfg.TTL)
	}
	if _, err := issuer.Issue("", false); err == nil {
		t.Error("expected error for empty username")
	}
}

type stubAuthenticator struct {
	id  *Identity
	err error
}

func (s *stubAuthenticator) Authenticate(_ context.Context) (*Identity, error) {
	return s.id, s.err
}

func TestChainedAuthenticator(t *testing.T) {
	ctx := WithToken(context.Background(), "tok")

	t.Run("first fails second succeeds", func(t *testing.T) {
		c := NewChainedAuthenticator(
			&stubAuthenticator{err: ErrInvalidToken},
			&stubAuthenticator{id: &Identity{Username: "sleepy"}},
		)
		id, err := c.Authenticate(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id.Username != "sleepy" {
			t.Errorf("Username = %q", id.Username)
		}
	})

	t.Run("all fail returns last error", func(t *testing.T) {
		last := errors.New("last")
		c := NewChainedAuthenticator(&stubAuthenticator{err: ErrInvalidToken}, &stubAuthenticator{err: last})
		if _, err := c.Authenticate(ctx); !errors.Is(err, last) {
			t.Errorf("error = %v, want last", err)
		}
	})

	t.Run("no authenticators", func(t *testing.T) {
		if _, err := NewChainedAuthenticator().Authenticate(ctx); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("no token", func(t *testing.T) {
		c := NewChainedAuthenticator(&stubAuthenticator{id: &Identity{Username: "x"}})
		if _, err := c.Authenticate(context.Background()); !errors.Is(err, ErrNoToken) {
			t.Errorf("error = %v, want ErrNoToken", err)
		}
		if c.Len() != 1 {
			t.Errorf("Len() = %d", c.Len())
		}
	})
}

func FuzzAuthenticate(f *testing.F) {
	f.Add("")
	f.Add(".")
	f.Add("..")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ0ZXN0In0.signature")

	authn, _ := NewJWTAuthenticator(hmacConfig())
	keys, _ := NewAPIKeyAuthenticator(nil)
	chain := NewChainedAuthenticator(authn, keys)

	f.Fuzz(func(_ *testing.T, token string) {
		_, _ = chain.Authenticate(WithToken(context.Background(), token))
	})
}
