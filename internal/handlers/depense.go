package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

type DepenseHandler struct {
	depenses *services.DepenseService
}

func NewDepenseHandler(depenses *services.DepenseService) *DepenseHandler {
	return &DepenseHandler{depenses: depenses}
}

func (h *DepenseHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/pending", h.pending)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/validate-chantier", h.validateChantier)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *DepenseHandler) list(w http.ResponseWriter, r *http.Request) {
	f := services.DepenseFilter{
		ChantierID: queryUint(r, "chantier_id"),
		Status:     r.URL.Query().Get("status"),
	}
	depenses, err := h.depenses.List(r.Context(), identity(r), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, depenses)
}

func (h *DepenseHandler) create(w http.ResponseWriter, r *http.Request) {
	var in services.DepenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	depense, err := h.depenses.Create(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, depense)
}

func (h *DepenseHandler) pending(w http.ResponseWriter, r *http.Request) {
	depenses, err := h.depenses.ListPending(r.Context(), identity(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, depenses)
}

func (h *DepenseHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	depense, err := h.depenses.Get(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, depense)
}

func (h *DepenseHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in services.DepenseUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	depense, err := h.depenses.Update(r.Context(), identity(r), id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, depense)
}

func (h *DepenseHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.depenses.Delete(r.Context(), identity(r), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *DepenseHandler) validateChantier(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	depense, err := h.depenses.ValidateChantier(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, depense)
}

func (h *DepenseHandler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	depense, err := h.depenses.Approve(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, depense)
}

func (h *DepenseHandler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in struct {
		Motif string `json:"motif"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Motif == "" {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "motif requis")
		return
	}
	depense, err := h.depenses.Reject(r.Context(), identity(r), id, in.Motif)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, depense)
}

func (h *DepenseHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	depense, err := h.depenses.Cancel(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, depense)
}
