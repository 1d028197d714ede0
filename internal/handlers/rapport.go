package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

type RapportHandler struct {
	rapports *services.RapportService
}

func NewRapportHandler(rapports *services.RapportService) *RapportHandler {
	return &RapportHandler{rapports: rapports}
}

func (h *RapportHandler) Routes(r chi.Router) {
	r.Get("/global", h.global)
}

func (h *RapportHandler) global(w http.ResponseWriter, r *http.Request) {
	rapport, err := h.rapports.Global(r.Context(), identity(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rapport)
}
