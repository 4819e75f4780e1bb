package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parleyapp/parley/internal/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

// AuthMiddleware verifies bearer tokens on authenticated endpoints.
// Tokens are HS256 JWTs minted by the account subsystem with uid, name and
// role claims.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates an auth middleware with the shared signing secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// claims is the expected token payload.
type claims struct {
	jwt.RegisteredClaims
	UID  int64  `json:"uid"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Authenticate resolves the caller identity when a valid bearer token is
// present and stores it in the request context. Requests without a token
// pass through unauthenticated; handlers that require auth use RequireAuth.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := m.identityFromRequest(r)
		if err != nil {
			authError(w, err.Error())
			return
		}
		if ident != nil {
			r = r.WithContext(context.WithValue(r.Context(), identityContextKey, ident))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests that did not authenticate.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()) == nil {
			authError(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// identityFromRequest parses the Authorization header. A missing header is
// not an error (the request is simply anonymous); a present but invalid
// token is.
func (m *AuthMiddleware) identityFromRequest(r *http.Request) (*models.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errors.New("authorization header must use the Bearer scheme")
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return &models.Identity{UserID: c.UID, Name: c.Name, Role: c.Role}, nil
}

func authError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
		"code":    "UNAUTHORIZED",
	})
}

// GetIdentity retrieves the authenticated caller from the request context,
// or nil for anonymous requests.
func GetIdentity(ctx context.Context) *models.Identity {
	ident, ok := ctx.Value(identityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return ident
}

// WithIdentity returns a context carrying the given identity. Test helper.
func WithIdentity(ctx context.Context, ident *models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, ident)
}
