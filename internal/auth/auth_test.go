package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

// makeJWT builds an unsigned test token with the given payload JSON.
func makeJWT(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".sig"
}

func TestExtractBearer(t *testing.T) {
	token, err := ExtractBearer("Bearer abc.def.ghi")
	if err != nil {
		t.Fatalf("ExtractBearer: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Errorf("token = %q", token)
	}
}

func TestExtractBearerMissing(t *testing.T) {
	cases := []string{"", "Bearer ", "Basic dXNlcjpwYXNz", "abc.def.ghi"}
	for _, header := range cases {
		if _, err := ExtractBearer(header); !errors.Is(err, ErrNoToken) {
			t.Errorf("ExtractBearer(%q) = %v, want ErrNoToken", header, err)
		}
	}
}

func TestParseClaims(t *testing.T) {
	token := makeJWT(`{"acct":"1234567890","user":"testuser","name":"Test User"}`)

	claims, err := ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims: %v", err)
	}
	if claims.AccountNum != "1234567890" {
		t.Errorf("AccountNum = %q", claims.AccountNum)
	}
	if claims.Username != "testuser" {
		t.Errorf("Username = %q", claims.Username)
	}
	if claims.Name != "Test User" {
		t.Errorf("Name = %q", claims.Name)
	}
}

func TestParseClaimsMalformed(t *testing.T) {
	cases := []string{
		"not-a-jwt",
		"only.two",
		"a.!!!not-base64!!!.c",
		makeJWT(`{not json`),
	}
	for _, token := range cases {
		if _, err := ParseClaims(token); !errors.Is(err, ErrMalformedJWT) {
			t.Errorf("ParseClaims(%q) = %v, want ErrMalformedJWT", token, err)
		}
	}
}

func TestTokenContextRoundTrip(t *testing.T) {
	ctx := ContextWithToken(context.Background(), "tok-123")
	token, ok := TokenFromContext(ctx)
	if !ok || token != "tok-123" {
		t.Errorf("TokenFromContext = %q, %v", token, ok)
	}
}

func TestTokenContextEmpty(t *testing.T) {
	if _, ok := TokenFromContext(context.Background()); ok {
		t.Error("empty context reported a token")
	}
	ctx := ContextWithToken(context.Background(), "")
	if _, ok := TokenFromContext(ctx); ok {
		t.Error("empty token stored in context")
	}
}
