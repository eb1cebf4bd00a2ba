// Package auth verifies the HS256 tokens back office staff present to the
// refunds API. Sessions are not stored; the token is the whole grant.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/order-refunds/pkg/config"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

var signingMethod = jwt.SigningMethodHS256

// StaffClaims is the JWT body: who the staff member is and what they may do.
type StaffClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	Permissions []string  `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

func (c *StaffClaims) Can(permission string) bool {
	return c != nil && slices.Contains(c.Permissions, permission)
}

// Grant is the input for Sign.
type Grant struct {
	UserID      uuid.UUID
	Permissions []string
	TokenID     string
}

func checkConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	}
	return nil
}

// Sign mints a token for grant valid for cfg.ExpirationMinutes from now.
func Sign(cfg config.JWTConfig, now time.Time, grant Grant) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", errors.New("jwt expiration minutes must be positive")
	}
	if grant.UserID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	if slices.ContainsFunc(grant.Permissions, func(p string) bool { return strings.TrimSpace(p) == "" }) {
		return "", errors.New("blank permission")
	}

	tokenID := strings.TrimSpace(grant.TokenID)
	if tokenID == "" {
		tokenID = uuid.NewString()
	}
	registered := jwt.RegisteredClaims{
		ID:        tokenID,
		Issuer:    cfg.Issuer,
		Subject:   grant.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
	}
	if cfg.Audience != "" {
		registered.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(signingMethod, StaffClaims{
		UserID:           grant.UserID,
		Permissions:      grant.Permissions,
		RegisteredClaims: registered,
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Verifier checks tokens against one JWT configuration.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify returns the claims of a valid token. Failures wrap ErrTokenExpired
// or ErrTokenInvalid.
func (v *Verifier) Verify(raw string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case claims.UserID == uuid.Nil:
		return nil, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}
	return claims, nil
}
