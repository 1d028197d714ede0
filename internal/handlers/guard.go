// Package handlers wires HTTP routes to the services. Handlers decode,
// delegate and encode; every authorization decision lives in rbac and the
// services.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/auth"
	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

// RequirePermission rejects identities lacking every listed permission with
// 403 before the handler runs. Services re-check on their own; the guard just
// fails fast.
func RequirePermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if !rbac.HasAnyPermission(ident.Role, perms...) {
				httpx.JSONError(w, http.StatusForbidden, "forbidden", "permission insuffisante")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin restricts a route to admin_general.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if ident.Role != rbac.RoleAdminGeneral {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", "réservé à l'administrateur général")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireNotReadOnly blocks structurally read-only roles on mutating routes.
func RequireNotReadOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if rbac.IsReadOnly(ident.Role) {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", "le rôle direction est en lecture seule")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identity(r *http.Request) rbac.Identity {
	ident, _ := auth.IdentityFromContext(r.Context())
	return ident
}

func urlID(r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryUint(r *http.Request, name string) uint {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

func queryBool(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}
