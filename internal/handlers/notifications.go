package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vendorlane/api/internal/platform/httpx"
	"github.com/vendorlane/api/internal/services"
)

const (
	maxNotificationListSize = 200
)

// NotificationHandlers exposes operator endpoints for the notification dispatcher.
type NotificationHandlers struct {
	notifications services.NotificationService
}

// NewNotificationHandlers constructs a new NotificationHandlers instance.
func NewNotificationHandlers(notifications services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{notifications: notifications}
}

// Routes registers the /notifications endpoints.
func (h *NotificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/pending", h.listPending)
	r.Post("/deliver", h.deliverPending)
	r.Post("/{notificationID}/cancel", h.cancel)
}

func (h *NotificationHandlers) listPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		if parsed > maxNotificationListSize {
			parsed = maxNotificationListSize
		}
		limit = parsed
	}

	pending, err := h.notifications.Pending(ctx, limit)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": pending})
}

func (h *NotificationHandlers) deliverPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.notifications.DeliverPending(ctx, 0)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

func (h *NotificationHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notification, err := h.notifications.Cancel(ctx, chi.URLParam(r, "notificationID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, notification)
}
