package middleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserCtxKey      = contextKey("user_id")
	ContextCtxKey   = contextKey("context_id")
	PublicKeyCtxKey = contextKey("public_key")
)

// Session is the identity a validated token resolves to: the caller's user
// record ID, the context handle the store is scoped to, and the executor
// public key.
type Session struct {
	UserID    string
	ContextID string
	PublicKey string
}

func JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtSecret := []byte(os.Getenv("JWT_SECRET"))
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok {
			http.Error(w, "invalid user_id in token", http.StatusUnauthorized)
			return
		}

		// Context handle and public key are informational; only user_id is
		// mandatory for authorization decisions.
		contextID, _ := claims["context_id"].(string)
		publicKey, _ := claims["public_key"].(string)

		ctx := context.WithValue(r.Context(), UserCtxKey, userID)
		ctx = context.WithValue(ctx, ContextCtxKey, contextID)
		ctx = context.WithValue(ctx, PublicKeyCtxKey, publicKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Extracting the authenticated user in handlers
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserCtxKey).(string)
	return id, ok
}

// SessionFromContext returns the full resolved session.
func SessionFromContext(ctx context.Context) (Session, bool) {
	id, ok := ctx.Value(UserCtxKey).(string)
	if !ok {
		return Session{}, false
	}
	contextID, _ := ctx.Value(ContextCtxKey).(string)
	publicKey, _ := ctx.Value(PublicKeyCtxKey).(string)
	return Session{UserID: id, ContextID: contextID, PublicKey: publicKey}, true
}
