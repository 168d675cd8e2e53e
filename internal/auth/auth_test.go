package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, Claims{RegisteredClaims: claims}).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Mode: ModeToken}); err == nil {
		t.Error("token mode without token accepted")
	}
	if _, err := New(Config{Mode: ModeJWT}); err == nil {
		t.Error("jwt mode without secret accepted")
	}
	if _, err := New(Config{Mode: "magic"}); err == nil {
		t.Error("unknown mode accepted")
	}
	a, err := New(Config{})
	if err != nil || a.Mode() != ModeDisabled {
		t.Errorf("empty mode = %v, %v; want disabled", a, err)
	}
}

func TestDisabled(t *testing.T) {
	a, _ := New(Config{Mode: ModeDisabled, DefaultOwner: "local"})
	owner, err := a.Authenticate("")
	if err != nil || owner != "local" {
		t.Errorf("Authenticate = %q, %v", owner, err)
	}
}

func TestToken(t *testing.T) {
	a, _ := New(Config{Mode: ModeToken, Token: "s3cret", DefaultOwner: "local"})

	owner, err := a.Authenticate("Bearer s3cret")
	if err != nil || owner != "local" {
		t.Errorf("valid token: %q, %v", owner, err)
	}
	if _, err := a.Authenticate("Bearer wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong token: err = %v", err)
	}
	if _, err := a.Authenticate("s3cret"); !errors.Is(err, ErrMissingToken) {
		t.Errorf("missing scheme: err = %v", err)
	}
}

func TestJWT_Valid(t *testing.T) {
	a, _ := New(Config{Mode: ModeJWT, JWTSecret: secret, JWTIssuer: "echolog"})
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    "echolog",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	owner, err := a.Authenticate("Bearer " + tok)
	if err != nil || owner != "user-42" {
		t.Errorf("Authenticate = %q, %v", owner, err)
	}
}

func TestJWT_Rejections(t *testing.T) {
	a, _ := New(Config{Mode: ModeJWT, JWTSecret: secret, JWTIssuer: "echolog"})
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]struct {
		token string
		want  error
	}{
		"expired": {sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
			Subject: "u", Issuer: "echolog", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}), ErrExpiredToken},
		"wrong secret": {sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
			Subject: "u", Issuer: "echolog", ExpiresAt: future,
		}), ErrInvalidToken},
		"wrong issuer": {sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
			Subject: "u", Issuer: "elsewhere", ExpiresAt: future,
		}), ErrInvalidToken},
		"wrong method": {sign(t, jwt.SigningMethodHS384, []byte(secret), jwt.RegisteredClaims{
			Subject: "u", Issuer: "echolog", ExpiresAt: future,
		}), ErrInvalidToken},
		"no subject": {sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
			Issuer: "echolog", ExpiresAt: future,
		}), ErrInvalidClaims},
		"garbage": {"not.a.jwt", ErrInvalidToken},
	}
	for name, c := range cases {
		if _, err := a.Authenticate("Bearer " + c.token); !errors.Is(err, c.want) {
			t.Errorf("%s: err = %v, want %v", name, err, c.want)
		}
	}
}

func TestOwnerContext(t *testing.T) {
	if _, ok := OwnerFrom(context.Background()); ok {
		t.Error("owner found in empty context")
	}
	owner, ok := OwnerFrom(WithOwner(context.Background(), "alice"))
	if !ok || owner != "alice" {
		t.Errorf("OwnerFrom = %q, %v", owner, ok)
	}
}
