package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/campus-portal/internal/application"
)

type feedbackService interface {
	Submit(ctx context.Context, message string) (application.Feedback, error)
	List(ctx context.Context, principal application.Principal) ([]application.Feedback, error)
}

type FeedbackHandler struct {
	service   feedbackService
	responder responder
	logger    *slog.Logger
}

func NewFeedbackHandler(service feedbackService, logger *slog.Logger) *FeedbackHandler {
	base := defaultLogger(logger)
	return &FeedbackHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *FeedbackHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "FeedbackHandler", operation, attrs...)
}

// Submit stores anonymous feedback. No session is required.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Submit", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode feedback", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	feedback, err := h.service.Submit(r.Context(), req.Message)
	if err != nil {
		h.log(r.Context(), "Submit").ErrorContext(r.Context(), "feedback submission failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, feedbackResponse{Feedback: toFeedbackDTO(feedback)})
}

func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	items, err := h.service.List(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.AccountID).ErrorContext(r.Context(), "feedback listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]feedbackDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, toFeedbackDTO(item))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, feedbackListResponse{Feedback: dtos})
}

type feedbackRequest struct {
	Message string `json:"message"`
}

type feedbackDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type feedbackResponse struct {
	Feedback feedbackDTO `json:"feedback"`
}

type feedbackListResponse struct {
	Feedback []feedbackDTO `json:"feedback"`
}

func toFeedbackDTO(feedback application.Feedback) feedbackDTO {
	return feedbackDTO{
		ID:        feedback.ID,
		UserID:    feedback.UserID,
		Message:   feedback.Message,
		CreatedAt: formatTime(feedback.CreatedAt),
	}
}
