// Package auth extracts bearer credentials from incoming requests and
// propagates them to upstream bank services.
//
// Authentication model:
// - Identity is established upstream by the bank frontend; tokens arriving
//   here are already validated.
// - This service does not mint or verify signatures. It reads claims for
//   audit logging and forwards the raw token on upstream calls so the
//   history and ledger services can enforce their own checks.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Errors
var (
	ErrNoToken      = errors.New("bearer token required")
	ErrMalformedJWT = errors.New("malformed JWT")
)

type contextKey int

const tokenKey contextKey = 0

// Claims holds the JWT claims this service cares about.
// Only used for audit logging, never for authorization decisions.
type Claims struct {
	AccountNum string `json:"acct"`
	Username   string `json:"user"`
	Name       string `json:"name"`
}

// ContextWithToken returns a context carrying the raw bearer token.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the bearer token stored in ctx, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" || token == header {
		return "", ErrNoToken
	}
	return token, nil
}

// ParseClaims decodes the payload segment of a JWT without verifying the
// signature. Verification happens upstream; these claims only feed logs.
func ParseClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedJWT
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedJWT
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrMalformedJWT
	}
	return &claims, nil
}
