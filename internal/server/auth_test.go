package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
)

const testSecret = "test-secret-key"

func signTestToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	claims := &Claims{
		UserID: "user-1",
		Role:   "patient",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenValidator_Validate(t *testing.T) {
	validator := NewTokenValidator(&config.JWTConfig{SecretKey: testSecret})

	t.Run("accepts a valid token", func(t *testing.T) {
		claims, err := validator.Validate(signTestToken(t, testSecret, time.Hour))

		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "patient", claims.Role)
	})

	t.Run("rejects a token signed with a different key", func(t *testing.T) {
		_, err := validator.Validate(signTestToken(t, "wrong-secret", time.Hour))
		assert.Error(t, err)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		_, err := validator.Validate(signTestToken(t, testSecret, -time.Hour))
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := validator.Validate("not-a-token")
		assert.Error(t, err)
	})
}

func TestAuthMiddleware(t *testing.T) {
	validator := NewTokenValidator(&config.JWTConfig{SecretKey: testSecret})
	log := logger.New("test", "error")

	router := mux.NewRouter()
	router.Use(AuthMiddleware(validator, log))
	router.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(claims.UserID))
	})

	t.Run("passes a valid bearer token through with claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, testSecret, time.Hour))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a non-bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
