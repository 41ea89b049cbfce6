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
	"github.com/google/uuid"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
	"github.com/kendallhq/kendall/internal/assistant_service/middleware"
)

// ChatService is the application surface behind the chat endpoints.
type ChatService interface {
	PostMessage(ctx context.Context, recordID uuid.UUID, role domain.ChatRole, content string) (*domain.ChatMessage, error)
	History(ctx context.Context, recordID uuid.UUID) ([]*domain.ChatMessage, error)
}

// ChatHandler serves the token-gated web/text chat channel.
type ChatHandler struct {
	service    ChatService
	chatTokens *middleware.ChatTokenService
	logger     *slog.Logger
}

func NewChatHandler(service ChatService, chatTokens *middleware.ChatTokenService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		service:    service,
		chatTokens: chatTokens,
		logger:     logger.With("handler", "chat"),
	}
}

func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chat/{recordID}", func(r chi.Router) {
		r.Use(h.chatTokens.RequireChatToken)
		r.Post("/messages", h.handlePostMessage)
		r.Get("/messages", h.handleListMessages)
	})
}

func (h *ChatHandler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	recordID, ok := ctx.Value(middleware.ChatRecordIDContextKey).(uuid.UUID)
	if !ok {
		h.writeFailure(w, http.StatusUnauthorized, "missing chat token scope")
		return
	}

	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	role := domain.ChatRole(req.Role)
	if req.Role == "" {
		role = domain.RoleOwner
	}

	msg, err := h.service.PostMessage(ctx, recordID, role, req.Content)
	if err != nil {
		switch {
		case domain.IsClientError(err):
			h.writeFailure(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			h.writeFailure(w, http.StatusNotFound, "record not found")
		default:
			logger.ErrorContext(ctx, "Failed to store chat message", "record_id", recordID, "error", err)
			h.writeFailure(w, http.StatusInternalServerError, "failed to store message")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toChatMessageResponse(msg))
}

func (h *ChatHandler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	recordID, ok := ctx.Value(middleware.ChatRecordIDContextKey).(uuid.UUID)
	if !ok {
		h.writeFailure(w, http.StatusUnauthorized, "missing chat token scope")
		return
	}

	history, err := h.service.History(ctx, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeFailure(w, http.StatusNotFound, "record not found")
			return
		}
		logger.ErrorContext(ctx, "Failed to load chat history", "record_id", recordID, "error", err)
		h.writeFailure(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	out := make([]ChatMessageResponse, 0, len(history))
	for _, msg := range history {
		out = append(out, toChatMessageResponse(msg))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *ChatHandler) writeFailure(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(FailureResponse{Success: false, Error: message})
}

func toChatMessageResponse(msg *domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        msg.ID.String(),
		Role:      string(msg.Role),
		Content:   msg.Content,
		Sentiment: msg.Sentiment,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
	}
}
