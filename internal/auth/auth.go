// Package auth resolves the owner of a request from its bearer credentials.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Modes accepted by Config.Mode.
const (
	ModeDisabled = "disabled"
	ModeToken    = "token"
	ModeJWT      = "jwt"
)

var (
	ErrMissingToken  = errors.New("missing authentication token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Config selects how requests are authenticated.
type Config struct {
	Mode         string
	Token        string
	JWTSecret    string
	JWTIssuer    string
	DefaultOwner string
}

// Claims are the JWT claims echolog reads. The subject is the memo owner.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator checks bearer credentials.
type Authenticator struct {
	cfg    Config
	secret []byte
}

// New validates cfg and returns an Authenticator.
func New(cfg Config) (*Authenticator, error) {
	switch cfg.Mode {
	case "", ModeDisabled:
		cfg.Mode = ModeDisabled
	case ModeToken:
		if cfg.Token == "" {
			return nil, errors.New("auth: token mode requires a token")
		}
	case ModeJWT:
		if cfg.JWTSecret == "" {
			return nil, errors.New("auth: jwt mode requires a secret")
		}
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
	return &Authenticator{cfg: cfg, secret: []byte(cfg.JWTSecret)}, nil
}

// Mode returns the active mode.
func (a *Authenticator) Mode() string { return a.cfg.Mode }

// Authenticate returns the owner for an Authorization header value.
// Disabled and token modes map every caller to the default owner.
func (a *Authenticator) Authenticate(header string) (string, error) {
	if a.cfg.Mode == ModeDisabled {
		return a.cfg.DefaultOwner, nil
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", ErrMissingToken
	}

	if a.cfg.Mode == ModeToken {
		if subtle.ConstantTimeCompare([]byte(raw), []byte(a.cfg.Token)) != 1 {
			return "", ErrInvalidToken
		}
		return a.cfg.DefaultOwner, nil
	}

	claims, err := a.parse(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (a *Authenticator) parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.JWTIssuer))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	return claims, nil
}

type ctxKey struct{}

// WithOwner stores the authenticated owner in ctx.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ctxKey{}, owner)
}

// OwnerFrom returns the owner stored by WithOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ctxKey{}).(string)
	return owner, ok && owner != ""
}
