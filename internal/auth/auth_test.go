package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func writeStatus(w http.ResponseWriter, status int, _ error) {
	w.WriteHeader(status)
}

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier([]byte("secret"))
	tok, err := v.Issue("user-1", "ana@example.com", RoleCalidad, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "ana@example.com" || claims.RoleID != RoleCalidad {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier([]byte("secret"))
	other := NewVerifier([]byte("other"))
	expired, _ := v.Issue("u", "", RoleObrero, -time.Hour)
	foreign, _ := other.Issue("u", "", RoleObrero, time.Hour)
	noSubject, _ := v.Issue("", "", RoleObrero, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"expired":    expired,
		"wrong key":  foreign,
		"no subject": noSubject,
		"alg none":   none,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(tok); !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier([]byte("secret"))
	calidad, _ := v.Issue("c", "", RoleCalidad, time.Hour)
	obrero, _ := v.Issue("o", "", RoleObrero, time.Hour)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			t.Error("claims missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	read := v.Authenticate(writeStatus)(ok)
	write := v.Authenticate(writeStatus)(RequireWriter(writeStatus)(ok))

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		want    int
	}{
		{"read without token", read, "", http.StatusUnauthorized},
		{"read as obrero", read, "Bearer " + obrero, http.StatusNoContent},
		{"write as obrero", write, "Bearer " + obrero, http.StatusForbidden},
		{"write as calidad", write, "bearer " + calidad, http.StatusNoContent},
		{"malformed header", write, "Token " + calidad, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCanWrite(t *testing.T) {
	if !CanWrite(RoleCalidad) || CanWrite(RoleObrero) || CanWrite(0) {
		t.Fatal("only CALIDAD may write")
	}
	if RoleName(RoleObrero) != "OBRERO" {
		t.Fatalf("got %q", RoleName(RoleObrero))
	}
}
