// Package auth checks the bearer tokens issued by the identity provider and
// enforces the two application roles: CALIDAD may write, OBRERO may only read.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role identifiers as stored in the users table.
const (
	RoleCalidad = 2
	RoleObrero  = 3
)

var (
	ErrUnauthenticated = errors.New("missing or invalid token")
	ErrForbidden       = errors.New("role is not allowed to modify records")
)

// CanWrite reports whether roleID may import, attach files and save QR codes.
func CanWrite(roleID int) bool {
	return roleID == RoleCalidad
}

// RoleName is used in logs and CLI output.
func RoleName(roleID int) string {
	switch roleID {
	case RoleCalidad:
		return "CALIDAD"
	case RoleObrero:
		return "OBRERO"
	default:
		return fmt.Sprintf("rol %d", roleID)
	}
}

// Claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	Email  string `json:"email"`
	RoleID int    `json:"role_id"`
}

// Verifier validates HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	leeway time.Duration
}

// NewVerifier constructs a Verifier.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, leeway: 30 * time.Second}
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.leeway), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims, nil
}

// Issue signs a token for subject. Used by the CLI for local testing and by
// tests; production tokens come from the identity provider.
func (v *Verifier) Issue(subject, email string, roleID int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:  email,
		RoleID: roleID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type contextKey string

const claimsKey contextKey = "auth_claims"

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// FromContext returns the claims stored by Authenticate, or nil.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// ErrorWriter writes an error response; the API passes its JSON writer.
type ErrorWriter func(w http.ResponseWriter, status int, err error)

// Authenticate rejects requests without a valid bearer token with 401.
func (v *Verifier) Authenticate(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Verify(bearerToken(r))
			if err != nil {
				onError(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireWriter lets only CALIDAD through; it must run after Authenticate.
func RequireWriter(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := FromContext(r.Context())
			if claims == nil {
				onError(w, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}
			if !CanWrite(claims.RoleID) {
				onError(w, http.StatusForbidden, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
