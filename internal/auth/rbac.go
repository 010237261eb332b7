package auth

import (
	"net/http"

	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/nikhilbhutani/promptvexity/internal/identity"
	"github.com/nikhilbhutani/promptvexity/internal/models"
)

// RequireAdmin lets through platform admins only.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := identity.UserFromContext(r.Context())
		if user == nil {
			writeError(w, apperr.Unauthenticatedf("sign in required"))
			return
		}
		if user.Role != models.PlatformRoleAdmin {
			writeError(w, apperr.AccessDeniedf("platform admin required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
