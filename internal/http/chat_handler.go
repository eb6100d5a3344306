package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/campus-portal/internal/application"
)

// maxChatBody bounds a chat request, including a base64 image of up to 5 MiB.
const maxChatBody = 8 << 20

type chatService interface {
	Send(ctx context.Context, principal application.Principal, text string) (application.ChatReply, error)
	SendImage(ctx context.Context, principal application.Principal, prompt string, image []byte, mimeType string) (application.ChatReply, error)
	Clear(ctx context.Context, principal application.Principal) error
}

type ChatHandler struct {
	service   chatService
	responder responder
	logger    *slog.Logger
}

func NewChatHandler(service chatService, logger *slog.Logger) *ChatHandler {
	base := defaultLogger(logger)
	return &ChatHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ChatHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ChatHandler", operation, attrs...)
}

// Send answers POST /chat/messages. A request with an image is analysed with
// text as the prompt; otherwise text continues the conversation.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		h.log(r.Context(), "Send", "principal_id", principal.AccountID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode chat request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	var (
		reply application.ChatReply
		err   error
	)
	if encoded := strings.TrimSpace(req.Image); encoded != "" {
		image, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil {
			h.log(r.Context(), "Send", "principal_id", principal.AccountID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode image", "error", decodeErr)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidImage)
			return
		}
		reply, err = h.service.SendImage(r.Context(), principal, req.Text, image, req.MimeType)
	} else {
		reply, err = h.service.Send(r.Context(), principal, req.Text)
	}
	if err != nil {
		h.log(r.Context(), "Send", "principal_id", principal.AccountID).ErrorContext(r.Context(), "chat turn failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, chatResponse{Reply: reply.Reply, Turns: reply.Turns})
}

func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.Clear(r.Context(), principal); err != nil {
		h.log(r.Context(), "Clear", "principal_id", principal.AccountID).ErrorContext(r.Context(), "conversation reset failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type chatRequest struct {
	Text     string `json:"text"`
	Image    string `json:"image,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	Turns int    `json:"turns"`
}
