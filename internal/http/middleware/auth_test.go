package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, role, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authProbe(t *testing.T, mw func(http.Handler) http.Handler, authHeader string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var seen *http.Request
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthJWTAcceptsValidToken(t *testing.T) {
	rec, seen := authProbe(t, AuthJWT(testSecret), "Bearer "+signToken(t, "client", "client-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "client-1", seen.Header.Get("X-Actor-ID"))

	claims, ok := ClaimsFromContext(seen.Context())
	require.True(t, ok)
	assert.Equal(t, "client", claims.Role)
}

func TestAuthJWTRejectsMissingHeader(t *testing.T) {
	rec, _ := authProbe(t, AuthJWT(testSecret), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWTRejectsBadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "admin"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	rec, _ := authProbe(t, AuthJWT(testSecret), "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWTRoleEnforcement(t *testing.T) {
	mw := AuthJWT(testSecret, "provider")

	rec, _ := authProbe(t, mw, "Bearer "+signToken(t, "provider", "p1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Admin passes any role gate.
	rec, _ = authProbe(t, mw, "Bearer "+signToken(t, "admin", "ops-1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = authProbe(t, mw, "Bearer "+signToken(t, "client", "c1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthJWTOverridesSpoofedActorHeader(t *testing.T) {
	handler := AuthJWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "client-1", r.Header.Get("X-Actor-ID"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "client", "client-1"))
	req.Header.Set("X-Actor-ID", "someone-else")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}
