package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

type StockHandler struct {
	stock *services.StockService
}

func NewStockHandler(stock *services.StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

func (h *StockHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/alertes", h.alertes)
	r.Get("/mouvements", h.mouvements)
	r.Group(func(r chi.Router) {
		r.Use(RequireNotReadOnly)
		r.Post("/", h.create)
		r.Post("/alertes/scan", h.scanAlertes)
		r.Post("/mouvements", h.mouvement)
		r.Post("/transfert", h.transfert)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
		r.Post("/{id}/reception", h.reception)
	})
}

func (h *StockHandler) list(w http.ResponseWriter, r *http.Request) {
	materiels, err := h.stock.ListMateriels(r.Context(), identity(r),
		queryUint(r, "chantier_id"), false)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materiels)
}

func (h *StockHandler) alertes(w http.ResponseWriter, r *http.Request) {
	materiels, err := h.stock.ListMateriels(r.Context(), identity(r),
		queryUint(r, "chantier_id"), true)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materiels)
}

func (h *StockHandler) scanAlertes(w http.ResponseWriter, r *http.Request) {
	count, err := h.stock.ScanAlerts(r.Context(), identity(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": count})
}

func (h *StockHandler) create(w http.ResponseWriter, r *http.Request) {
	var in services.MaterielInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	materiel, err := h.stock.CreateMateriel(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, materiel)
}

func (h *StockHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in services.MaterielUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	materiel, err := h.stock.UpdateMateriel(r.Context(), identity(r), id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materiel)
}

func (h *StockHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.stock.DeleteMateriel(r.Context(), identity(r), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *StockHandler) mouvements(w http.ResponseWriter, r *http.Request) {
	mouvements, err := h.stock.ListMouvements(r.Context(), identity(r), queryUint(r, "materiel_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mouvements)
}

func (h *StockHandler) mouvement(w http.ResponseWriter, r *http.Request) {
	var in services.MouvementInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	materiel, err := h.stock.Mouvement(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, materiel)
}

func (h *StockHandler) reception(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	var in struct {
		Quantite float64 `json:"quantite"`
		Motif    string  `json:"motif"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	materiel, err := h.stock.Recevoir(r.Context(), identity(r), id, in.Quantite, in.Motif)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materiel)
}

func (h *StockHandler) transfert(w http.ResponseWriter, r *http.Request) {
	var in services.TransfertInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "corps JSON invalide")
		return
	}
	source, dest, err := h.stock.Transferer(r.Context(), identity(r), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"source": source, "destination": dest})
}
