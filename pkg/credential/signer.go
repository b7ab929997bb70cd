// Package credential signs the short-lived bearer tokens the relay presents to
// the upstream AI gateway. Tokens are minted per outbound call and never cached.
package credential

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAudience is the audience every gateway token is issued for.
	DefaultAudience = "ai-gateway"

	// DefaultLifetime is the validity window of a token.
	DefaultLifetime = 60 * time.Second
)

// ErrMissingConfig is returned when a required signing setting is absent.
var ErrMissingConfig = errors.New("missing signing configuration")

// Config holds the signing settings.
type Config struct {
	// PrivateKey is the RSA private key, as PEM, escaped PEM or base64 PEM.
	PrivateKey string

	// Issuer identifies this service; it is also the token subject.
	Issuer string

	// KeyID is published in the token header so the gateway can pick the public key.
	KeyID string

	// Audience defaults to DefaultAudience.
	Audience string

	// Lifetime defaults to DefaultLifetime.
	Lifetime time.Duration
}

// Signer mints RS256 tokens.
type Signer struct {
	key      *rsa.PrivateKey
	issuer   string
	keyID    string
	audience string
	lifetime time.Duration
	now      func() time.Time
}

// Claims are the claims carried by every gateway token.
type Claims struct {
	jwt.RegisteredClaims
}

// NewSigner validates cfg and parses the private key once.
func NewSigner(cfg Config) (*Signer, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: issuer", ErrMissingConfig)
	}
	if strings.TrimSpace(cfg.KeyID) == "" {
		return nil, fmt.Errorf("%w: key id", ErrMissingConfig)
	}

	pem, err := NormalizePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	audience := cfg.Audience
	if audience == "" {
		audience = DefaultAudience
	}
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	return &Signer{
		key:      key,
		issuer:   cfg.Issuer,
		keyID:    cfg.KeyID,
		audience: audience,
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// Sign mints a fresh token. The context is accepted so callers can treat
// signing like any other step of an outbound call.
func (s *Signer) Sign(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	claims := s.claims()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// PublicKey returns the public half of the signing key.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

func (s *Signer) claims() Claims {
	now := s.now().UTC().Truncate(time.Second)
	iat := now.Unix()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        fmt.Sprintf("%s-%d-%s", s.issuer, iat, uuid.NewString()),
		},
	}
}

// Verify parses token with pub and checks signature, algorithm, audience and
// expiry.
func Verify(token string, pub *rsa.PublicKey, audience string) (*Claims, error) {
	if audience == "" {
		audience = DefaultAudience
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	return claims, nil
}
