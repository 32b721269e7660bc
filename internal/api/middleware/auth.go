package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils/response"
	"github.com/golang-jwt/jwt/v5"
)

type userContextKey string

const UserContextKey = userContextKey("user")

type AuthMiddleware struct {
	jwtKey []byte
}

func NewAuthMiddleware(jwtKey []byte) *AuthMiddleware {
	return &AuthMiddleware{jwtKey: jwtKey}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			response.WriteJson(w, http.StatusUnauthorized, "Authorization header is required")

			return
		}

		// Token is of format: "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")

		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			response.WriteJson(w, http.StatusUnauthorized, "Invalid authorization header format")

			return
		}

		tokenString := tokenParts[1]

		claims := &models.Claims{}

		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}

			return m.jwtKey, nil
		})

		if err != nil {
			response.WriteJson(w, http.StatusUnauthorized, "Invalid or expired token")

			return
		}

		if !token.Valid {
			response.WriteJson(w, http.StatusUnauthorized, "Invalid token")

			return
		}

		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
			response.WriteJson(w, http.StatusUnauthorized, "Token expired")

			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequireRole gates a handler to specific roles; admins pass everywhere.
func (m *AuthMiddleware) RequireRole(next http.Handler, roles ...models.Role) http.HandlerFunc {
	return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			response.WriteJson(w, http.StatusUnauthorized, "Authentication required")

			return
		}

		if claims.IsAdmin() {
			next.ServeHTTP(w, r)

			return
		}

		for _, role := range roles {
			if claims.Role == role {
				next.ServeHTTP(w, r)

				return
			}
		}

		response.WriteJson(w, http.StatusForbidden, "Insufficient permissions")
	}))
}

func ClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)

	return claims, ok
}
