package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

// AuthHandler serves login, token refresh and the self endpoints.
type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
}

// SelfRoutes are the authenticated /me endpoints.
func (h *AuthHandler) SelfRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/me/permissions", h.permissions)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	pair, err := h.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		// 401 sur les identifiants, pas 403: le client n'est pas encore
		// authentifié.
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", "identifiants invalides")
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	pair, err := h.users.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", "jeton invalide")
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	user, err := h.users.Get(r.Context(), ident, ident.UserID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) permissions(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        ident.Role,
		"level":       ident.Role.Level(),
		"read_only":   rbac.IsReadOnly(ident.Role),
		"permissions": rbac.PermissionsOf(ident.Role),
	})
}
