package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

type TacheHandler struct {
	taches *services.TacheService
}

func NewTacheHandler(taches *services.TacheService) *TacheHandler {
	return &TacheHandler{taches: taches}
}

func (h *TacheHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/avancement", h.avancement)
	r.Post("/{id}/assign", h.assign)
}

func (h *TacheHandler) list(w http.ResponseWriter, r *http.Request) {
	taches, err := h.taches.List(r.Context(), identity(r),
		queryUint(r, "chantier_id"), r.URL.Query().Get("status"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, taches)
}

func (h *TacheHandler) create(w http.ResponseWriter, r *http.Request) {
	var in services.TacheInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	tache, err := h.taches.Create(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tache)
}

func (h *TacheHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.taches.Delete(r.Context(), identity(r), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *TacheHandler) avancement(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in struct {
		Avancement int    `json:"avancement"`
		Status     string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	tache, err := h.taches.UpdateAvancement(r.Context(), identity(r), id, in.Avancement, in.Status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tache)
}

func (h *TacheHandler) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in struct {
		EmployeID uint `json:"employe_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.EmployeID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "employe_id requis")
		return
	}
	tache, err := h.taches.Assign(r.Context(), identity(r), id, in.EmployeID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tache)
}
