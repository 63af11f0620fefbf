package api

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestTestAuthAcceptsValidToken(t *testing.T) {
	auth := NewTestAuth([]byte(testSecret))
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	userID, err := auth.UserIDFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1, got %q", userID)
	}
}

func TestTestAuthRejections(t *testing.T) {
	auth := NewTestAuth([]byte(testSecret))
	soon := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{"sub": "user-1", "exp": soon})},
		{"expired", signToken(t, testSecret, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"missing exp", signToken(t, testSecret, jwt.MapClaims{"sub": "user-1"})},
		{"missing sub", signToken(t, testSecret, jwt.MapClaims{"exp": soon})},
		{"not yet valid", signToken(t, testSecret, jwt.MapClaims{"sub": "user-1", "exp": soon, "nbf": time.Now().Add(time.Hour).Unix()})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := auth.UserIDFromAuthHeader("Bearer " + tc.token); err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestAuthChecksAudienceAndIssuer(t *testing.T) {
	auth := NewTestAuth([]byte(testSecret))
	auth.audience = "taskfolio"
	auth.issuer = "https://issuer.example/"
	soon := time.Now().Add(time.Hour).Unix()

	good := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1", "exp": soon, "aud": "taskfolio", "iss": "https://issuer.example/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + good); err != nil {
		t.Fatalf("expected accept, got %v", err)
	}

	badAud := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1", "exp": soon, "aud": "other", "iss": "https://issuer.example/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + badAud); err == nil {
		t.Fatal("expected audience rejection")
	}

	badIss := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1", "exp": soon, "aud": "taskfolio", "iss": "https://evil.example/",
	})
	if _, err := auth.UserIDFromAuthHeader("Bearer " + badIss); err == nil {
		t.Fatal("expected issuer rejection")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"empty", "", "", errMissingAuthorization},
		{"blank", "   ", "", errMissingAuthorization},
		{"no scheme", "a.b.c", "", errBadAuthorization},
		{"wrong scheme", "Basic a.b.c", "", errBadAuthorization},
		{"not a jwt", "Bearer nodots", "", errBadAuthorization},
		{"too many dots", "Bearer a.b.c.d", "", errBadAuthorization},
		{"plain", "Bearer a.b.c", "a.b.c", nil},
		{"case insensitive scheme", "bearer a.b.c", "a.b.c", nil},
		{"surrounding space", "  Bearer a.b.c  ", "a.b.c", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bearerToken(tc.header)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("token = %q, want %q", got, tc.want)
			}
		})
	}
}
