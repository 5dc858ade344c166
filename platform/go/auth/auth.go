// Package auth resolves the calling principal for the control-plane API.
// Token issuance lives with the identity provider; this package only verifies
// bearer tokens and exposes the caller's role to handlers.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role classifies a caller for scoping decisions.
type Role string

const (
	// RoleSuperuser may manage every tenant and trigger backups/restores.
	RoleSuperuser Role = "superuser"
	// RoleTenant is scoped to a single company.
	RoleTenant Role = "tenant"
)

// Principal is the resolved caller identity.
type Principal struct {
	Subject   string
	Role      Role
	CompanyID *uuid.UUID
}

// IsSuperuser reports whether the principal holds the superuser role.
func (p Principal) IsSuperuser() bool { return p.Role == RoleSuperuser }

type ctxKey struct{}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext retrieves the principal from context, if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

type claims struct {
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier.
func NewVerifier(secret []byte) *Verifier {
	if len(secret) == 0 {
		panic("auth verifier requires a signing secret")
	}
	return &Verifier{secret: secret}
}

// Verify parses and validates a raw token, returning the principal it names.
func (v *Verifier) Verify(token string) (Principal, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return Principal{}, fmt.Errorf("token is invalid")
	}

	p := Principal{Subject: c.Subject}
	switch Role(c.Role) {
	case RoleSuperuser, RoleTenant:
		p.Role = Role(c.Role)
	default:
		return Principal{}, fmt.Errorf("unknown role %q", c.Role)
	}

	if c.CompanyID != "" {
		id, err := uuid.Parse(c.CompanyID)
		if err != nil {
			return Principal{}, fmt.Errorf("parse company id claim: %w", err)
		}
		p.CompanyID = &id
	}

	return p, nil
}

// Middleware extracts and verifies the bearer token, storing the principal on
// the request context. Requests without a valid token are rejected.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	if verifier == nil {
		panic("auth middleware requires a verifier")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireSuperuser rejects callers without the superuser role.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.IsSuperuser() {
			http.Error(w, `{"error":"superuser role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
