package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

// maxUploadSize caps a document upload at 25 MB.
const maxUploadSize = 25 << 20

type DocumentHandler struct {
	documents *services.DocumentService
}

func NewDocumentHandler(documents *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.upload)
	r.Get("/{id}", h.get)
	r.Get("/{id}/download", h.download)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/validate-client", h.validateClient)
	r.Post("/{id}/unvalidate-client", h.unvalidateClient)
}

func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.List(r.Context(), identity(r),
		queryUint(r, "chantier_id"), r.URL.Query().Get("type"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

// upload expects multipart/form-data with a "fichier" part and the metadata
// fields.
func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "formulaire multipart invalide ou trop volumineux")
		return
	}
	file, header, err := r.FormFile("fichier")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "champ fichier requis")
		return
	}
	defer file.Close()

	chantierID, _ := strconv.ParseUint(r.FormValue("chantier_id"), 10, 64)
	in := services.DocumentInput{
		Nom:          r.FormValue("nom"),
		TypeDocument: r.FormValue("type_document"),
		Description:  r.FormValue("description"),
		ChantierID:   uint(chantierID),
	}
	if in.Nom == "" {
		in.Nom = header.Filename
	}
	doc, err := h.documents.Upload(r.Context(), identity(r), in, file)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	doc, err := h.documents.Get(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) download(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	doc, f, err := h.documents.Open(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Nom+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, f); err != nil {
		_ = err
	}
}

func (h *DocumentHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.documents.Delete(r.Context(), identity(r), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *DocumentHandler) validateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	doc, err := h.documents.ValidateClient(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) unvalidateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	doc, err := h.documents.UnvalidateClient(r.Context(), identity(r), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}
