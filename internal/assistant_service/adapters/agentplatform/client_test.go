package agentplatform

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProfile() domain.AgentProfile {
	return domain.AgentProfile{
		Name:         "Kendall",
		SystemPrompt: "You are Kendall.",
		FirstMessage: "Hi, this is Kendall.",
		Voice:        &domain.VoiceSelection{Provider: domain.VoiceProviderElevenLabs, VoiceID: "EXAVITQu4vr4xnSDxMaL"},
	}
}

func TestCreateAssistant_ReturnsID(t *testing.T) {
	var captured assistantPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/assistant", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(assistantResponse{ID: "agent-123"})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "test-key", "https://hooks.example.com/agent", nil)
	id, err := c.CreateAssistant(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "agent-123", id)
	assert.Equal(t, "Kendall", captured.Name)
	require.NotNil(t, captured.Voice)
	assert.Equal(t, "11labs", captured.Voice.Provider)
	assert.Equal(t, "https://hooks.example.com/agent", captured.ServerURL)
	require.Len(t, captured.Functions, 2)
	assert.Equal(t, "https://hooks.example.com/agent", captured.Functions[0].ServerURL)
}

func TestCreateAssistant_MissingIDIsHardFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(assistantResponse{})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "test-key", "", nil)
	_, err := c.CreateAssistant(context.Background(), testProfile())
	assert.ErrorIs(t, err, domain.ErrAgentIDMissing)
}

func TestCreateAssistant_WithoutWebhookURLFunctionsHaveNoServerURL(t *testing.T) {
	var captured assistantPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(assistantResponse{ID: "agent-1"})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "test-key", "", nil)
	_, err := c.CreateAssistant(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Empty(t, captured.ServerURL)
	for _, fn := range captured.Functions {
		assert.Empty(t, fn.ServerURL)
	}
}

func TestErrorMessagePassedThroughVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "voice provider mismatch"})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "test-key", "", nil)
	_, err := c.CreateAssistant(context.Background(), testProfile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice provider mismatch")
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestUnauthorizedIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "bad-key", "", nil)
	_, err := c.ImportNumber(context.Background(), "agent-1", "+15550001111", "AC123", "tok", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestImportNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/phone-number/import/twilio", r.URL.Path)
		var req importNumberRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "agent-1", req.AssistantID)
		assert.Equal(t, "+15550001111", req.Number)
		json.NewEncoder(w).Encode(map[string]string{"id": "platform-phone-9", "number": req.Number})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "test-key", "", nil)
	result, err := c.ImportNumber(context.Background(), "agent-1", "+15550001111", "AC123", "tok", "Kendall line")
	require.NoError(t, err)
	assert.Equal(t, "platform-phone-9", result.ID)
	assert.Contains(t, string(result.Raw), "platform-phone-9")
}

func TestPurchaseNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/phone-number", r.URL.Path)
		var req purchaseNumberRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "agent-1", req.AssistantID)
		json.NewEncoder(w).Encode(map[string]string{"id": "platform-phone-3", "number": "+16175550123"})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "test-key", "", nil)
	result, err := c.PurchaseNumber(context.Background(), "agent-1", "")
	require.NoError(t, err)
	assert.Equal(t, "platform-phone-3", result.ID)
	assert.Contains(t, string(result.Raw), "+16175550123")
}

func TestUpdateAssistant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/assistant/agent-7", r.URL.Path)
		json.NewEncoder(w).Encode(assistantResponse{ID: "agent-7"})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "test-key", "", nil)
	err := c.UpdateAssistant(context.Background(), "agent-7", testProfile())
	require.NoError(t, err)
}
