package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/example/campus-portal/internal/chat"
)

// ChatCompleter produces assistant replies.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []chat.Message) (string, error)
	Describe(ctx context.Context, message chat.Message) (string, error)
}

// ChatService keeps one assistant conversation per principal.
type ChatService struct {
	client ChatCompleter
	prompt string
	logger *slog.Logger

	mu            sync.Mutex
	conversations map[string]*chat.Conversation
}

// NewChatService wires the completion client. An empty prompt uses
// chat.SystemPrompt.
func NewChatService(client ChatCompleter, prompt string, logger *slog.Logger) *ChatService {
	return &ChatService{
		client:        client,
		prompt:        prompt,
		logger:        defaultLogger(logger),
		conversations: make(map[string]*chat.Conversation),
	}
}

func (s *ChatService) ready() error {
	if s == nil {
		return fmt.Errorf("ChatService is nil")
	}
	if s.client == nil {
		return fmt.Errorf("%w: chat client not configured", ErrUnavailable)
	}
	return nil
}

func (s *ChatService) conversation(accountID string) *chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[accountID]
	if !ok {
		conv = chat.NewConversation(s.prompt)
		s.conversations[accountID] = conv
	}
	return conv
}

// Send appends text to the principal's conversation and returns the reply.
// The turn is only kept when the completion succeeds.
func (s *ChatService) Send(ctx context.Context, principal Principal, text string) (reply ChatReply, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := serviceLogger(ctx, s.logger, "ChatService", "Send", "principal_id", principal.AccountID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "chat completion failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("turns", reply.Turns).InfoContext(ctx, "chat completion succeeded")
	}()

	if !principal.authenticated() {
		err = ErrUnauthorized
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		vErr := &ValidationError{}
		vErr.add("text", "must not be blank")
		err = vErr
		return
	}

	conv := s.conversation(principal.AccountID)
	turn := chat.Message{Role: chat.RoleUser, Content: text}
	answer, cErr := s.client.Complete(ctx, append(conv.Messages(), turn))
	if cErr != nil {
		err = mapChatError(cErr)
		return
	}

	conv.Append(turn, chat.Message{Role: chat.RoleAssistant, Content: answer})
	reply = ChatReply{Reply: answer, Turns: conv.Len()}
	return
}

// SendImage asks the vision model to summarize image and records the
// exchange in the principal's conversation as text.
func (s *ChatService) SendImage(ctx context.Context, principal Principal, prompt string, image []byte, mimeType string) (reply ChatReply, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := serviceLogger(ctx, s.logger, "ChatService", "SendImage",
		"principal_id", principal.AccountID,
		"image_bytes", len(image),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "image analysis failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("turns", reply.Turns).InfoContext(ctx, "image analysis succeeded")
	}()

	if !principal.authenticated() {
		err = ErrUnauthorized
		return
	}

	prompt = strings.TrimSpace(prompt)
	message, iErr := chat.ImageMessage(prompt, image, mimeType)
	if iErr != nil {
		vErr := &ValidationError{}
		vErr.add("image", "must be a non-empty image of at most 5 MiB")
		err = vErr
		return
	}

	answer, cErr := s.client.Describe(ctx, message)
	if cErr != nil {
		err = mapChatError(cErr)
		return
	}

	conv := s.conversation(principal.AccountID)
	conv.Append(
		chat.Message{Role: chat.RoleUser, Content: "I shared an image with prompt: " + prompt},
		chat.Message{Role: chat.RoleAssistant, Content: answer},
	)
	reply = ChatReply{Reply: answer, Turns: conv.Len()}
	return
}

// Clear drops every turn of the principal's conversation except the system
// prompt.
func (s *ChatService) Clear(ctx context.Context, principal Principal) error {
	if s == nil {
		return fmt.Errorf("ChatService is nil")
	}
	if !principal.authenticated() {
		return ErrUnauthorized
	}
	s.conversation(principal.AccountID).Clear()
	serviceLogger(ctx, s.logger, "ChatService", "Clear", "principal_id", principal.AccountID).
		InfoContext(ctx, "conversation cleared")
	return nil
}

func mapChatError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, chat.ErrQuotaExceeded):
		return fmt.Errorf("%w: quota exceeded", ErrUnavailable)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
