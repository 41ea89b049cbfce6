package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
	"github.com/kendallhq/kendall/internal/assistant_service/middleware"
)

type fakeChatService struct {
	posted  []*domain.ChatMessage
	history []*domain.ChatMessage
	err     error
}

func (f *fakeChatService) PostMessage(_ context.Context, recordID uuid.UUID, role domain.ChatRole, content string) (*domain.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	msg := &domain.ChatMessage{
		ID:        uuid.New(),
		RecordID:  recordID,
		Role:      role,
		Content:   content,
		Sentiment: "neutral",
		CreatedAt: time.Now().UTC(),
	}
	f.posted = append(f.posted, msg)
	return msg, nil
}

func (f *fakeChatService) History(_ context.Context, _ uuid.UUID) ([]*domain.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func newChatRouter(service *fakeChatService) (http.Handler, *middleware.ChatTokenService) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := middleware.NewChatTokenService("test-secret", time.Hour)
	handler := NewChatHandler(service, tokens, logger)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, tokens
}

func TestHandlePostMessage(t *testing.T) {
	service := &fakeChatService{}
	router, tokens := newChatRouter(service)
	recordID := uuid.New()
	token, err := tokens.Issue(recordID)
	require.NoError(t, err)

	body := `{"content": "Call my sister Anna"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/"+recordID.String()+"/messages?token="+token, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ChatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "owner", resp.Role, "role defaults to owner")
	assert.Equal(t, "Call my sister Anna", resp.Content)

	require.Len(t, service.posted, 1)
	assert.Equal(t, recordID, service.posted[0].RecordID)
}

func TestHandlePostMessage_RequiresToken(t *testing.T) {
	service := &fakeChatService{}
	router, _ := newChatRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/chat/"+uuid.NewString()+"/messages", strings.NewReader(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, service.posted)
}

func TestHandlePostMessage_ErrorMapping(t *testing.T) {
	recordID := uuid.New()

	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"client error", domain.NewClientError("message content must not be empty"), http.StatusBadRequest},
		{"unknown record", domain.ErrNotFound, http.StatusNotFound},
		{"storage failure", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &fakeChatService{err: tc.serviceErr}
			router, tokens := newChatRouter(service)
			token, err := tokens.Issue(recordID)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/chat/"+recordID.String()+"/messages?token="+token, strings.NewReader(`{"content":"hi"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestHandleListMessages(t *testing.T) {
	recordID := uuid.New()
	service := &fakeChatService{history: []*domain.ChatMessage{
		{ID: uuid.New(), RecordID: recordID, Role: domain.RoleOwner, Content: "hello", Sentiment: "neutral", CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), RecordID: recordID, Role: domain.RoleAssistant, Content: "hi there!", Sentiment: "positive", CreatedAt: time.Now().UTC()},
	}}
	router, tokens := newChatRouter(service)
	token, err := tokens.Issue(recordID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/chat/"+recordID.String()+"/messages?token="+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []ChatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "assistant", resp[1].Role)
}
