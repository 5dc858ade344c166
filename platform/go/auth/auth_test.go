package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-signing-secret")

func mintToken(t *testing.T, p Principal, expiresIn time.Duration) string {
	t.Helper()
	token, err := SignToken(testSecret, p, expiresIn, time.Now().UTC())
	require.NoError(t, err)
	return token
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	token := mintToken(t, Principal{
		Subject:   "ops@example.com",
		Role:      RoleTenant,
		CompanyID: &companyID,
	}, time.Hour)

	verifier := NewVerifier(testSecret)
	p, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", p.Subject)
	require.Equal(t, RoleTenant, p.Role)
	require.NotNil(t, p.CompanyID)
	require.Equal(t, companyID, *p.CompanyID)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	token := mintToken(t, Principal{Subject: "x", Role: RoleSuperuser}, -time.Minute)

	_, err := NewVerifier(testSecret).Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	token := mintToken(t, Principal{Subject: "x", Role: RoleSuperuser}, time.Hour)

	_, err := NewVerifier([]byte("other-secret")).Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	token := mintToken(t, Principal{Subject: "x", Role: "operator"}, time.Hour)

	_, err := NewVerifier(testSecret).Verify(token)
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	verifier := NewVerifier(testSecret)
	var got Principal
	handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		got = p
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	token := mintToken(t, Principal{Subject: "admin", Role: RoleSuperuser}, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "admin", got.Subject)
	require.Equal(t, RoleSuperuser, got.Role)
}

func TestRequireSuperuser(t *testing.T) {
	t.Parallel()

	handler := RequireSuperuser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{Role: RoleTenant}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{Role: RoleSuperuser}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
