package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"warehouse-notify/internal/domain"
	"warehouse-notify/internal/middleware"
	"warehouse-notify/internal/repository"
	"warehouse-notify/pkg/response"
	"warehouse-notify/pkg/xerrors"
)

type NotificationHandler struct {
	repo repository.Repository
}

func NewNotificationHandler(repo repository.Repository) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// ----------------------
// Notification Handlers
// ----------------------

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.repo.ListNotificationsByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.repo.ListUnreadNotifications(r.Context(), userID, limit, offset)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) CountUnread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	count, err := h.repo.CountUnreadNotifications(r.Context(), userID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if id <= 0 {
		response.Error(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.repo.MarkNotificationAsRead(r.Context(), id, userID); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	updated, err := h.repo.MarkAllNotificationsAsRead(r.Context(), userID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *NotificationHandler) HideNotification(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if id <= 0 {
		response.Error(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.repo.HideNotification(r.Context(), id, userID); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----------------------
// Preference Handlers
// ----------------------

func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	prefs, err := h.repo.GetPreferences(r.Context(), userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		// Absent preferences read as the defaults the dispatcher would use.
		response.JSON(w, http.StatusOK, domain.DefaultPreferences(userID))
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, prefs)
}

func (h *NotificationHandler) UpsertPreferences(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var prefs domain.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	prefs.UserID = userID

	saved, err := h.repo.UpsertPreferences(r.Context(), &prefs)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.JSON(w, http.StatusOK, saved)
}
