package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

type ChantierHandler struct {
	chantiers *services.ChantierService
	rapports  *services.RapportService
}

func NewChantierHandler(chantiers *services.ChantierService, rapports *services.RapportService) *ChantierHandler {
	return &ChantierHandler{chantiers: chantiers, rapports: rapports}
}

func (h *ChantierHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/archive", h.archive)
	r.Get("/{id}/budget", h.budget)
	r.Get("/{id}/assignments", h.assignments)
	r.Post("/{id}/assignments", h.assign)
	r.Delete("/{id}/assignments/{userID}", h.unassign)
}

func (h *ChantierHandler) list(w http.ResponseWriter, r *http.Request) {
	chantiers, err := h.chantiers.List(r.Context(), identity(r), r.URL.Query().Get("status"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chantiers)
}

func (h *ChantierHandler) create(w http.ResponseWriter, r *http.Request) {
	var in services.ChantierInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	chantier, err := h.chantiers.Create(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, chantier)
}

func (h *ChantierHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	chantier, err := h.chantiers.Get(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chantier)
}

func (h *ChantierHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in services.ChantierUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	chantier, err := h.chantiers.Update(r.Context(), identity(r), id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chantier)
}

func (h *ChantierHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.chantiers.Delete(r.Context(), identity(r), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *ChantierHandler) archive(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	chantier, err := h.chantiers.Archive(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chantier)
}

func (h *ChantierHandler) budget(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	rapport, err := h.rapports.Budget(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rapport)
}

func (h *ChantierHandler) assignments(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	ids, err := h.chantiers.Assignments(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_ids": ids})
}

func (h *ChantierHandler) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in struct {
		UserID uint `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.UserID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "user_id requis")
		return
	}
	if err := h.chantiers.Assign(r.Context(), identity(r), id, in.UserID); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"chantier_id": id, "user_id": in.UserID})
}

func (h *ChantierHandler) unassign(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	userID, ok2 := urlID(r, "userID")
	if !ok || !ok2 {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.chantiers.Unassign(r.Context(), identity(r), id, userID); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}
