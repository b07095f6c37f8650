package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/handler"
)

const notificationPageSize = 50

// NotificationHandler serves the dashboard notification feed.
type NotificationHandler struct {
	notifications domain.NotificationStore
	logger        *slog.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifications domain.NotificationStore, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

type notificationBody struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// List handles GET /api/notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	notifications, err := h.notifications.ListByUser(r.Context(), userID, notificationPageSize)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	out := make([]notificationBody, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notificationBody{
			ID:        n.ID,
			Kind:      string(n.Kind),
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	handler.JSON(w, http.StatusOK, struct {
		Notifications []notificationBody `json:"notifications"`
	}{Notifications: out})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	const op = "api.notification.read"

	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "Invalid notification ID"))
		return
	}

	if err := h.notifications.MarkRead(r.Context(), userID, id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
