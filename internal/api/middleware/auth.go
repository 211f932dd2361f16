package middleware

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tgvault/tgvault/internal/utils"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UsernameKey contextKey = "username"
)

type sessionClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ParseSessionToken verifies a session JWT and returns the user id and
// username. Shared by the HTTP middleware and the websocket handshake,
// which carries the token as a query parameter instead of a cookie.
func ParseSessionToken(tokenString string, secret []byte) (string, string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid || claims.Username == "" {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	return claims.UserID, claims.Username, nil
}

func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie("token")
			if err != nil {
				utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
					Success: false,
					Message: "Unauthorized",
				})
				return
			}

			userID, username, err := ParseSessionToken(cookie.Value, secret)
			if err != nil {
				utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
					Success: false,
					Message: "Unauthorized",
				})
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, UsernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Username returns the authenticated principal from the request context.
func Username(r *http.Request) string {
	username, _ := r.Context().Value(UsernameKey).(string)
	return username
}
