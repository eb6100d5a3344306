package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/campus-portal/internal/application"
	"github.com/example/campus-portal/internal/directory"
)

type directoryService interface {
	Me(ctx context.Context, principal application.Principal) (directory.Account, error)
	Get(ctx context.Context, principal application.Principal, accountID string) (directory.Account, error)
	ListByRole(ctx context.Context, principal application.Principal, role string) ([]directory.Account, error)
	UpdateProfile(ctx context.Context, params application.UpdateProfileParams) (directory.Account, error)
}

type AccountHandler struct {
	service   directoryService
	responder responder
	logger    *slog.Logger
}

func NewAccountHandler(service directoryService, logger *slog.Logger) *AccountHandler {
	base := defaultLogger(logger)
	return &AccountHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AccountHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AccountHandler", operation, attrs...)
}

// List answers GET /accounts?role=.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	role := r.URL.Query().Get("role")
	logger := h.log(r.Context(), "List", "principal_id", principal.AccountID, "role", role)

	accounts, err := h.service.ListByRole(r.Context(), principal, role)
	if err != nil {
		logger.ErrorContext(r.Context(), "account listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, accountsResponse{Accounts: toAccountDTOs(accounts)})
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	account, err := h.service.Me(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Me", "principal_id", principal.AccountID).ErrorContext(r.Context(), "account lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, accountResponse{Account: toAccountDTO(account)})
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	accountID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(accountID) == "" {
		h.log(r.Context(), "Get", "error_kind", "bad_request").ErrorContext(r.Context(), "missing account id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	account, err := h.service.Get(r.Context(), principal, accountID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.AccountID, "account_id", accountID).ErrorContext(r.Context(), "account lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, accountResponse{Account: toAccountDTO(account)})
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	accountID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(accountID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing account id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.AccountID, "account_id", accountID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode profile update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.AccountID, "account_id", accountID)

	account, err := h.service.UpdateProfile(r.Context(), application.UpdateProfileParams{
		Principal:   principal,
		AccountID:   accountID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Secret:      req.Secret,
		Locale:      req.Locale,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "profile update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "profile updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, accountResponse{Account: toAccountDTO(account)})
}

type profileRequest struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	Secret      *string `json:"secret"`
	Locale      *string `json:"locale"`
}

// accountDTO never carries the credential secret.
type accountDTO struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
	Locale        string `json:"locale"`
}

type accountResponse struct {
	Account accountDTO `json:"account"`
}

type accountsResponse struct {
	Accounts []accountDTO `json:"accounts"`
}

func toAccountDTO(account directory.Account) accountDTO {
	return accountDTO{
		ID:            account.ID,
		DisplayName:   account.DisplayName,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
		Role:          account.Role.String(),
		Locale:        account.Locale,
	}
}

func toAccountDTOs(accounts []directory.Account) []accountDTO {
	dtos := make([]accountDTO, 0, len(accounts))
	for _, account := range accounts {
		dtos = append(dtos, toAccountDTO(account))
	}
	return dtos
}
