package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

type EmployeHandler struct {
	employes *services.EmployeService
}

func NewEmployeHandler(employes *services.EmployeService) *EmployeHandler {
	return &EmployeHandler{employes: employes}
}

func (h *EmployeHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
	r.Get("/{id}/paie", h.paie)
}

// PresenceRoutes serves the attendance endpoints.
func (h *EmployeHandler) PresenceRoutes(r chi.Router) {
	r.Get("/", h.presences)
	r.Post("/", h.pointer)
}

func (h *EmployeHandler) list(w http.ResponseWriter, r *http.Request) {
	employes, err := h.employes.List(r.Context(), identity(r),
		queryUint(r, "chantier_id"), queryBool(r, "active"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employes)
}

func (h *EmployeHandler) create(w http.ResponseWriter, r *http.Request) {
	var in services.EmployeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	employe, err := h.employes.Create(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, employe)
}

func (h *EmployeHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	employe, err := h.employes.Get(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employe)
}

func (h *EmployeHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in services.EmployeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	employe, err := h.employes.Update(r.Context(), identity(r), id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employe)
}

func (h *EmployeHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.employes.Deactivate(r.Context(), identity(r), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *EmployeHandler) paie(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	total, jours, err := h.employes.PaieEmploye(r.Context(), identity(r), id,
		r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"employe_id": id,
		"jours":      jours,
		"total":      total,
	})
}

func (h *EmployeHandler) presences(w http.ResponseWriter, r *http.Request) {
	presences, err := h.employes.Presences(r.Context(), identity(r),
		queryUint(r, "chantier_id"), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, presences)
}

func (h *EmployeHandler) pointer(w http.ResponseWriter, r *http.Request) {
	var in services.PresenceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	presence, err := h.employes.Pointer(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, presence)
}
