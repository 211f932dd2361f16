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

var testSecret = []byte("middleware-test-secret")

func signSessionToken(t *testing.T, userID, username string, expiresIn time.Duration) string {
	t.Helper()
	claims := &sessionClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestParseSessionToken(t *testing.T) {
	token := signSessionToken(t, "id-1", "alice", time.Hour)

	userID, username, err := ParseSessionToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "id-1", userID)
	assert.Equal(t, "alice", username)
}

func TestParseSessionTokenFailures(t *testing.T) {
	_, _, err := ParseSessionToken("garbage", testSecret)
	require.Error(t, err)

	_, _, err = ParseSessionToken(signSessionToken(t, "id-1", "alice", -time.Minute), testSecret)
	require.Error(t, err, "expired tokens are rejected")

	_, _, err = ParseSessionToken(signSessionToken(t, "id-1", "alice", time.Hour), []byte("wrong secret"))
	require.Error(t, err, "tokens signed with another secret are rejected")

	_, _, err = ParseSessionToken(signSessionToken(t, "id-1", "", time.Hour), testSecret)
	require.Error(t, err, "a session without a username is useless downstream")
}

func TestAuthMiddleware(t *testing.T) {
	var seenUsername string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUsername = Username(r)
		w.WriteHeader(http.StatusOK)
	})
	protected := AuthMiddleware(testSecret)(next)

	// No cookie.
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bad cookie.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "garbage"})
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid cookie propagates the principal.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: signSessionToken(t, "id-1", "alice", time.Hour)})
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", seenUsername)

	// Preflight requests skip authentication.
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
