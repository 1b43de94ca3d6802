package middleware

import (
	"context"
	"net/http"

	"boostledger/internal/store"
)

type AdminStore interface {
	Status(ctx context.Context, accountID string) (store.AdminStatus, error)
	HasRole(ctx context.Context, accountID, role string) (bool, error)
}

// RequireAdmin lets super admins through unconditionally. Other admins need
// role when it is non-empty.
func RequireAdmin(adminStore AdminStore, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			status, err := adminStore.Status(r.Context(), accountID)
			if err != nil {
				http.Error(w, "unable to verify admin", http.StatusInternalServerError)
				return
			}
			if !status.IsAdmin {
				http.Error(w, "admin privileges required", http.StatusForbidden)
				return
			}
			if status.IsSuper || role == "" {
				next.ServeHTTP(w, r)
				return
			}
			hasRole, err := adminStore.HasRole(r.Context(), accountID, role)
			if err != nil {
				http.Error(w, "unable to verify role", http.StatusInternalServerError)
				return
			}
			if !hasRole {
				http.Error(w, "missing required role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
