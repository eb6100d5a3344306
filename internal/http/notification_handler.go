package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/campus-portal/internal/application"
)

type notificationService interface {
	Broadcast(ctx context.Context, params application.BroadcastParams) (application.Notification, error)
	ListForRole(ctx context.Context, principal application.Principal) ([]application.Notification, error)
}

type NotificationHandler struct {
	service   notificationService
	responder responder
	logger    *slog.Logger
}

func NewNotificationHandler(service notificationService, logger *slog.Logger) *NotificationHandler {
	base := defaultLogger(logger)
	return &NotificationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *NotificationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "NotificationHandler", operation, attrs...)
}

func (h *NotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Broadcast", "principal_id", principal.AccountID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode broadcast", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Broadcast", "principal_id", principal.AccountID, "role", req.Role)

	notification, err := h.service.Broadcast(r.Context(), application.BroadcastParams{
		Principal: principal,
		Content:   req.Content,
		Role:      req.Role,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "broadcast failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("notification_id", notification.ID).InfoContext(r.Context(), "notification broadcast")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, notificationResponse{Notification: toNotificationDTO(notification)})
}

// List returns the inbox for the caller's role, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	items, err := h.service.ListForRole(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.AccountID).ErrorContext(r.Context(), "notification listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]notificationDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, toNotificationDTO(item))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, notificationsResponse{Notifications: dtos})
}

type broadcastRequest struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type notificationDTO struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	SentBy    string `json:"sent_by"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type notificationResponse struct {
	Notification notificationDTO `json:"notification"`
}

type notificationsResponse struct {
	Notifications []notificationDTO `json:"notifications"`
}

func toNotificationDTO(notification application.Notification) notificationDTO {
	return notificationDTO{
		ID:        notification.ID,
		Content:   notification.Content,
		SentBy:    notification.SentBy,
		Role:      notification.Role.String(),
		CreatedAt: formatTime(notification.CreatedAt),
	}
}
