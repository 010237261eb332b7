package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/identity"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

// Claims matches the access tokens issued by Supabase Auth.
type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	CreateUser(ctx context.Context, u models.User) (models.User, error)
}

type JWTMiddleware struct {
	secret []byte
	users  UserStore
}

func NewJWTMiddleware(secret string, users UserStore) *JWTMiddleware {
	return &JWTMiddleware{
		secret: []byte(secret),
		users:  users,
	}
}

// Authenticate resolves the bearer token to a user. Requests without a token
// continue anonymously; a token that is present but invalid is rejected.
func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.Parse(tokenStr)
		if err != nil {
			writeError(w, apperr.Unauthenticatedf("invalid token"))
			return
		}

		userID, err := uuid.Parse(claims.Sub)
		if err != nil {
			writeError(w, apperr.Unauthenticatedf("invalid user ID in token"))
			return
		}

		ctx := r.Context()
		user, err := m.resolveUser(ctx, userID, claims)
		if err != nil {
			slog.Error("failed to resolve user", "user_id", userID, "error", err)
			writeError(w, err)
			return
		}

		ctx = identity.WithUser(ctx, &user)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Parse validates an HS256 token and returns its claims. Expiry is checked
// by the parser.
func (m *JWTMiddleware) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// resolveUser loads the user, creating the row on first sight. A concurrent
// first request for the same user surfaces as a conflict and is re-read.
func (m *JWTMiddleware) resolveUser(ctx context.Context, id uuid.UUID, claims *Claims) (models.User, error) {
	u, err := m.users.GetUser(ctx, id)
	if err == nil {
		return u, nil
	}
	if !apperr.Is(err, apperr.NotFound) {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}

	u, err = m.users.CreateUser(ctx, models.User{
		ID:    id,
		Email: claims.Email,
		Role:  models.PlatformRoleUser,
	})
	if err == nil {
		slog.Info("provisioned user", "user_id", id)
		return u, nil
	}
	if !apperr.Is(err, apperr.Conflict) {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return m.users.GetUser(ctx, id)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.KindOf(err).HTTPStatus())
	json.NewEncoder(w).Encode(map[string]string{"error": apperr.MessageOf(err), "code": apperr.CodeOf(err)})
}
