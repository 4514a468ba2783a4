// Package auth supplies bearer credentials to the gateway client.
//
// Obtaining and refreshing credentials is the job of an external
// collaborator; this package only carries an opaque token into requests and
// offers a best-effort expiry peek for user-facing warnings.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the bearer credential attached to gateway requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a TokenSource returning a fixed credential.
type Static string

// Token returns the static credential.
func (s Static) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errors.New("no credential configured")
	}
	return string(s), nil
}

// TokenFunc adapts a function to the TokenSource interface.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls the wrapped function.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Expiry peeks at a JWT credential's exp claim without verifying the
// signature. Verification belongs to the server; the client only uses this
// to warn before issuing requests doomed to be rejected. Returns the zero
// time when the token is not a JWT or carries no exp claim.
func Expiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Expired reports whether the credential is a JWT whose exp claim has
// passed. Non-JWT credentials are never considered expired.
func Expired(token string, now time.Time) bool {
	exp := Expiry(token)
	return !exp.IsZero() && exp.Before(now)
}
