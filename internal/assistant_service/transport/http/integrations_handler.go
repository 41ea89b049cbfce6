package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"

	"github.com/kendallhq/kendall/internal/assistant_service/adapters/agentplatform"
)

// CallCanceller cancels an in-flight call on the agent platform.
type CallCanceller interface {
	CancelCall(ctx context.Context, callID string) error
}

// GoogleTokenRefresher exchanges a stored refresh token for a fresh access
// token for the Calendar/Gmail tooling.
type GoogleTokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// IntegrationsHandler serves the thin proxy endpoints the assistant tooling
// calls back into: call cancellation and Google token refresh.
type IntegrationsHandler struct {
	calls    CallCanceller
	google   GoogleTokenRefresher
	validate *validator.Validate
	logger   *slog.Logger
}

func NewIntegrationsHandler(calls CallCanceller, google GoogleTokenRefresher, logger *slog.Logger) *IntegrationsHandler {
	return &IntegrationsHandler{
		calls:    calls,
		google:   google,
		validate: validator.New(),
		logger:   logger.With("handler", "integrations"),
	}
}

func (h *IntegrationsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/calls/{callID}/cancel", h.handleCancelCall)
	r.Post("/integrations/google/refresh", h.handleGoogleRefresh)
}

func (h *IntegrationsHandler) handleCancelCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	callID := chi.URLParam(r, "callID")
	if callID == "" {
		h.writeFailure(w, http.StatusBadRequest, "missing call id")
		return
	}

	if err := h.calls.CancelCall(ctx, callID); err != nil {
		if errors.Is(err, agentplatform.ErrUnauthorized) {
			logger.ErrorContext(ctx, "Agent platform rejected credentials on call cancel", "call_id", callID)
			h.writeFailure(w, http.StatusBadGateway, "call cancellation failed")
			return
		}
		logger.ErrorContext(ctx, "Failed to cancel call", "call_id", callID, "error", err)
		h.writeFailure(w, http.StatusBadGateway, "call cancellation failed")
		return
	}

	logger.InfoContext(ctx, "Call cancelled", "call_id", callID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func (h *IntegrationsHandler) handleGoogleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req TokenRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, validationError(err).Error())
		return
	}

	token, err := h.google.Refresh(ctx, req.RefreshToken)
	if err != nil {
		logger.WarnContext(ctx, "Google token refresh failed", "error", err)
		h.writeFailure(w, http.StatusBadGateway, "token refresh failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenRefreshResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry.Format(time.RFC3339),
	})
}

func (h *IntegrationsHandler) writeFailure(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(FailureResponse{Success: false, Error: message})
}
