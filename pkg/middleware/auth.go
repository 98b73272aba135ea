package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"messaging-service/pkg/response"
)

type contextKey string

const (
	ContextUserID    contextKey = "user_id"
	ContextDeviceID  contextKey = "device_id"
	ContextSessionID contextKey = "session_id"
)

// Claims carries the identity the session service already verified.
// This middleware only extracts; authenticating the identity is external.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
}

// Auth parses the bearer token and puts user/device/session ids on the
// request context. Requests without a token pass through anonymous: the
// access resolver decides whether anonymous is enough per context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found {
				response.Error(w, http.StatusUnauthorized, "malformed bearer token")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				response.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextDeviceID, claims.DeviceID)
			ctx = context.WithValue(ctx, ContextSessionID, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the acting user id from the request context, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ContextUserID).(string)
	return id
}

// DeviceID returns the originating device id from the request context, or "".
func DeviceID(ctx context.Context) string {
	id, _ := ctx.Value(ContextDeviceID).(string)
	return id
}

// SessionID returns the originating session id from the request context, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(ContextSessionID).(string)
	return id
}
