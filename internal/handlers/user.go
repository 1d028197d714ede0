package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

// UserHandler serves the account administration endpoints. The route group
// is mounted behind RequireAdmin.
type UserHandler struct {
	users      *services.UserService
	invalidate func(userID uint)
}

// NewUserHandler takes the invalidation hook of the auth cache so a
// deactivation takes effect immediately.
func NewUserHandler(users *services.UserService, invalidate func(uint)) *UserHandler {
	return &UserHandler{users: users, invalidate: invalidate}
}

func (h *UserHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.register)
	r.Get("/{id}", h.get)
	r.Put("/{id}/role", h.changeRole)
	r.Put("/{id}/active", h.setActive)
}

func (h *UserHandler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), identity(r), r.URL.Query().Get("role"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	user, err := h.users.Register(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *UserHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	user, err := h.users.Get(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *UserHandler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Role == "" {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "role requis")
		return
	}
	user, err := h.users.ChangeRole(r.Context(), identity(r), id, rbac.Role(in.Role))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if h.invalidate != nil {
		h.invalidate(id)
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	user, err := h.users.SetActive(r.Context(), identity(r), id, in.Active)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if h.invalidate != nil {
		h.invalidate(id)
	}
	httpx.JSON(w, http.StatusOK, user)
}
