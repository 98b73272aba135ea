package httphandler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"messaging-service/internal/domain"
	"messaging-service/internal/usecase"
	"messaging-service/pkg/middleware"
	"messaging-service/pkg/response"
)

type NotificationHandler struct {
	uc *usecase.NotificationUsecase
}

func NewNotificationHandler(uc *usecase.NotificationUsecase) *NotificationHandler {
	return &NotificationHandler{uc: uc}
}

// ----------------------
// Inbox
// ----------------------

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.uc.List(r.Context(), userID, limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) CountUnread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	count, err := h.uc.CountUnread(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if err := h.uc.MarkRead(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	flipped, err := h.uc.MarkAllRead(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"updated": flipped})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if err := h.uc.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----------------------
// Push subscriptions & preferences
// ----------------------

func (h *NotificationHandler) RegisterSubscription(w http.ResponseWriter, r *http.Request) {
	var sub domain.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}
	sub.UserID = middleware.UserID(r.Context())
	if sub.DeviceID == "" {
		sub.DeviceID = middleware.DeviceID(r.Context())
	}

	if err := h.uc.RegisterSubscription(r.Context(), &sub); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, sub)
}

func (h *NotificationHandler) RemoveSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.RemoveSubscription(r.Context(), chi.URLParam(r, "deviceID")); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) UpsertPreference(w http.ResponseWriter, r *http.Request) {
	var pref domain.NotifyPreference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}
	pref.UserID = middleware.UserID(r.Context())

	if err := h.uc.UpsertPreference(r.Context(), &pref); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, pref)
}

func (h *NotificationHandler) SetDMEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	if err := h.uc.SetDMEnabled(r.Context(), middleware.UserID(r.Context()), req.Enabled); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) SetChannelWatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CommunityID string                  `json:"communityId"`
		Mode        domain.ChannelWatchMode `json:"mode"`
		Pinned      bool                    `json:"pinned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	userID := middleware.UserID(r.Context())
	channelID := chi.URLParam(r, "channelID")
	if err := h.uc.SetChannelWatch(r.Context(), userID, req.CommunityID, channelID, req.Mode, req.Pinned); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
