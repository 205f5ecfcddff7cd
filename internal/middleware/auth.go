package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"warehouse-notify/pkg/response"
)

type contextKey string

// ContextUserID carries the authenticated user's id through request context.
const ContextUserID contextKey = "user_id"

// Auth verifies HS256 bearer tokens on user-facing routes and exposes a
// static-secret check for the scheduler's job routes.
type Auth struct {
	jwtSecret    []byte
	workerSecret string
	devMode      bool
}

func NewAuth(jwtSecret, workerSecret string, devMode bool) *Auth {
	return &Auth{
		jwtSecret:    []byte(jwtSecret),
		workerSecret: workerSecret,
		devMode:      devMode,
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// RequireUser authenticates the end user and stores their id in context.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			response.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			response.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		userID, _ := claims["sub"].(string)
		if userID == "" {
			response.Error(w, http.StatusUnauthorized, "token missing subject")
			return
		}

		ctx := context.WithValue(r.Context(), ContextUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireWorker gates the scheduled job endpoints behind the configured
// worker secret. Development mode bypasses the check.
func (a *Auth) RequireWorker(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.devMode {
			next.ServeHTTP(w, r)
			return
		}
		if a.workerSecret == "" || bearerToken(r) != a.workerSecret {
			response.Error(w, http.StatusUnauthorized, "invalid worker token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserID pulls the authenticated user id out of a request context.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ContextUserID).(string)
	return id
}
