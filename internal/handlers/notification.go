package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/unread-count", h.unreadCount)
	r.Post("/read-all", h.markAllRead)
	r.Post("/broadcast", h.broadcast)
	r.Post("/{id}/read", h.markRead)
	r.Delete("/{id}", h.remove)
}

func (h *NotificationHandler) list(w http.ResponseWriter, r *http.Request) {
	notifs, err := h.notifications.List(r.Context(), identity(r),
		r.URL.Query().Get("categorie"), queryBool(r, "unread"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, notifs)
}

func (h *NotificationHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.CountUnread(r.Context(), identity(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"unread": count})
}

func (h *NotificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.notifications.MarkRead(r.Context(), identity(r), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"read": true})
}

func (h *NotificationHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.MarkAllRead(r.Context(), identity(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"marked": count})
}

func (h *NotificationHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "identifiant invalide")
		return
	}
	if err := h.notifications.Delete(r.Context(), identity(r), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *NotificationHandler) broadcast(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Titre     string `json:"titre"`
		Message   string `json:"message"`
		TypeNotif string `json:"type_notif"`
		Categorie string `json:"categorie"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Titre == "" || in.Message == "" {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", "titre et message requis")
		return
	}
	if in.TypeNotif == "" {
		in.TypeNotif = "info"
	}
	if in.Categorie == "" {
		in.Categorie = "general"
	}
	count, err := h.notifications.Broadcast(r.Context(), identity(r), in.Titre, in.Message, in.TypeNotif, in.Categorie)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int{"destinataires": count})
}
