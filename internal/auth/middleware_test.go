package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/identity"
	"github.com/nikhilbhutani/promptvexity/internal/models"
	"github.com/nikhilbhutani/promptvexity/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const secret = "test-secret"

func sign(t *testing.T, key string, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func validClaims(sub uuid.UUID) Claims {
	return Claims{
		Sub:   sub.String(),
		Email: "dev@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

// echo reports the user id the handler saw, or "anonymous".
func echo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := identity.UserFromContext(r.Context())
		if u == nil {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(u.ID.String()))
	})
}

func do(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateAnonymous(t *testing.T) {
	m := NewJWTMiddleware(secret, store.NewMemoryStore())
	rec := do(m.Authenticate(echo()), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestAuthenticateProvisionsUser(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewJWTMiddleware(secret, st)
	id := uuid.New()

	rec := do(m.Authenticate(echo()), sign(t, secret, jwt.SigningMethodHS256, validClaims(id)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id.String(), rec.Body.String())

	u, err := st.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", u.Email)
	assert.Equal(t, models.PlatformRoleUser, u.Role)
}

func TestAuthenticateConcurrentFirstRequests(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewJWTMiddleware(secret, st)
	id := uuid.New()
	token := sign(t, secret, jwt.SigningMethodHS256, validClaims(id))
	h := m.Authenticate(echo())

	var mu sync.Mutex
	codes := map[int]int{}
	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			rec := do(h, token)
			mu.Lock()
			codes[rec.Code]++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, map[int]int{http.StatusOK: 16}, codes)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	m := NewJWTMiddleware(secret, store.NewMemoryStore())
	h := m.Authenticate(echo())
	id := uuid.New()

	expired := validClaims(id)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	badSub := validClaims(id)
	badSub.Sub = "not-a-uuid"

	tests := map[string]string{
		"garbage":      "abc.def.ghi",
		"wrong secret": sign(t, "other", jwt.SigningMethodHS256, validClaims(id)),
		"wrong alg":    sign(t, secret, jwt.SigningMethodHS512, validClaims(id)),
		"expired":      sign(t, secret, jwt.SigningMethodHS256, expired),
		"bad subject":  sign(t, secret, jwt.SigningMethodHS256, badSub),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(h, token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "unauthenticated", body["code"])
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireAdmin(ok)

	serve := func(u *models.User) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if u != nil {
			req = req.WithContext(identity.WithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(&models.User{ID: uuid.New(), Role: models.PlatformRoleUser}))
	assert.Equal(t, http.StatusNoContent, serve(&models.User{ID: uuid.New(), Role: models.PlatformRoleAdmin}))
}
