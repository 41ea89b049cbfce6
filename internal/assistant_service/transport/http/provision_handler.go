package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kendallhq/kendall/internal/assistant_service/app"
	"github.com/kendallhq/kendall/internal/assistant_service/domain"
	"github.com/kendallhq/kendall/internal/assistant_service/middleware"
)

const maxProvisionBodyBytes = 1 << 20

// Provisioner is the application surface the handler drives.
type Provisioner interface {
	Provision(ctx context.Context, req app.ProvisionRequest) (*app.ProvisionResult, error)
	EditLink(recordID uuid.UUID) string
	ChatLink(recordID uuid.UUID) string
}

// ProvisionHandler serves the inbound "create assistant" request.
type ProvisionHandler struct {
	service    Provisioner
	chatTokens *middleware.ChatTokenService
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewProvisionHandler(service Provisioner, chatTokens *middleware.ChatTokenService, logger *slog.Logger) *ProvisionHandler {
	return &ProvisionHandler{
		service:    service,
		chatTokens: chatTokens,
		validate:   validator.New(),
		logger:     logger.With("handler", "provision"),
	}
}

func (h *ProvisionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/assistants", h.handleProvision)
}

func (h *ProvisionHandler) handleProvision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProvisionBodyBytes))
	if err != nil {
		logger.WarnContext(ctx, "Failed to read provisioning request body", "error", err)
		h.writeFailure(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	req, err := decodeProvisionRequest(body, h.validate)
	if err != nil {
		logger.WarnContext(ctx, "Provisioning request rejected", "error", err)
		h.writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.InfoContext(ctx, "Provisioning run started", "assistant_name", req.AssistantName)
	result, err := h.service.Provision(ctx, req)
	if err != nil {
		// Only the caller-correctable branch surfaces detail; which dependency
		// failed stays in the logs.
		if domain.IsClientError(err) {
			logger.InfoContext(ctx, "Provisioning rejected as client error", "error", err)
			h.writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.ErrorContext(ctx, "Provisioning run failed", "error", err)
		h.writeFailure(w, http.StatusInternalServerError, "assistant provisioning failed")
		return
	}

	chatLink := h.service.ChatLink(result.RecordID)
	if token, tokenErr := h.chatTokens.Issue(result.RecordID); tokenErr != nil {
		logger.ErrorContext(ctx, "Failed to issue chat token", "error", tokenErr)
	} else {
		chatLink += "&token=" + token
	}

	logger.InfoContext(ctx, "Provisioning run completed",
		"record_id", result.RecordID, "agent_id", result.AgentID, "phone_final", result.PhoneNumberFinal)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ProvisionResponse{
		Success:     true,
		AgentID:     result.AgentID,
		PhoneNumber: result.PhoneNumber,
		RecordID:    result.RecordID.String(),
		EditLink:    h.service.EditLink(result.RecordID),
		ChatLink:    chatLink,
	})
}

func (h *ProvisionHandler) writeFailure(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(FailureResponse{Success: false, Error: message})
}
