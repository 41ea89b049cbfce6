package agentplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
)

// ErrUnauthorized wraps 401/403 responses so retry loops can classify them
// as non-retryable.
var ErrUnauthorized = errors.New("agent platform rejected credentials")

// Client talks to the hosted voice-agent platform over Bearer-authenticated
// HTTP with JSON bodies.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	// webhookURL registered on agent functions. When empty, functions are
	// created without a server URL and cannot be invoked in real time; that
	// is degraded but non-fatal.
	webhookURL string
}

func NewClient(logger *slog.Logger, baseURL, apiKey, webhookURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		logger:     logger.With("adapter", "agent_platform"),
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		webhookURL: webhookURL,
	}
}

type voicePayload struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type modelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type modelPayload struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Messages []modelMessage `json:"messages"`
}

type functionPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ServerURL   string `json:"serverUrl,omitempty"`
}

type assistantPayload struct {
	Name                  string            `json:"name"`
	FirstMessage          string            `json:"firstMessage,omitempty"`
	Model                 modelPayload      `json:"model"`
	Voice                 *voicePayload     `json:"voice,omitempty"`
	ForwardingPhoneNumber string            `json:"forwardingPhoneNumber,omitempty"`
	ServerURL             string            `json:"serverUrl,omitempty"`
	Functions             []functionPayload `json:"functions,omitempty"`
}

type assistantResponse struct {
	ID    string        `json:"id"`
	Voice *voicePayload `json:"voice,omitempty"`
}

func (c *Client) buildPayload(profile domain.AgentProfile) assistantPayload {
	payload := assistantPayload{
		Name:         profile.Name,
		FirstMessage: profile.FirstMessage,
		Model: modelPayload{
			Provider: "openai",
			Model:    "gpt-4o",
			Messages: []modelMessage{{Role: "system", Content: profile.SystemPrompt}},
		},
		ForwardingPhoneNumber: profile.ForwardingNumber,
		ServerURL:             c.webhookURL,
		Functions: []functionPayload{
			{Name: "lookupCalendar", Description: "Look up the owner's calendar availability", ServerURL: c.webhookURL},
			{Name: "takeMessage", Description: "Record a message for the owner", ServerURL: c.webhookURL},
		},
	}
	if profile.Voice != nil {
		payload.Voice = &voicePayload{Provider: string(profile.Voice.Provider), VoiceID: profile.Voice.VoiceID}
	}
	return payload
}

// CreateAssistant creates a remote agent and returns its id. A 2xx response
// without an id is a hard failure: the rest of provisioning binds resources
// to the id and cannot proceed without one.
func (c *Client) CreateAssistant(ctx context.Context, profile domain.AgentProfile) (string, error) {
	var resp assistantResponse
	if err := c.doJSON(ctx, http.MethodPost, "/assistant", c.buildPayload(profile), &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", domain.ErrAgentIDMissing
	}
	c.logger.InfoContext(ctx, "Assistant created on agent platform", "agent_id", resp.ID)
	return resp.ID, nil
}

// UpdateAssistant replaces the agent's configuration. Callers must rebuild
// the profile from the same stored fields used at creation so only the
// knowledge block differs.
func (c *Client) UpdateAssistant(ctx context.Context, agentID string, profile domain.AgentProfile) error {
	if err := c.doJSON(ctx, http.MethodPatch, "/assistant/"+agentID, c.buildPayload(profile), nil); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Assistant updated on agent platform", "agent_id", agentID)
	return nil
}

type importNumberRequest struct {
	AssistantID      string `json:"assistantId"`
	Number           string `json:"number"`
	TwilioAccountSID string `json:"twilioAccountSid"`
	TwilioAuthToken  string `json:"twilioAuthToken"`
	Name             string `json:"name,omitempty"`
}

// ImportResult is the outcome of importing a number into the platform. Raw
// carries the undecoded response so callers can run number extraction over
// shapes that nest the bound number under varying field names.
type ImportResult struct {
	ID  string          `json:"id"`
	Raw json.RawMessage `json:"-"`
}

// ImportNumber imports a purchased telephony number into the platform and
// binds it to the agent.
func (c *Client) ImportNumber(ctx context.Context, agentID, number, accountSID, authToken, label string) (*ImportResult, error) {
	req := importNumberRequest{
		AssistantID:      agentID,
		Number:           number,
		TwilioAccountSID: accountSID,
		TwilioAuthToken:  authToken,
		Name:             label,
	}
	var resp ImportResult
	raw, err := c.doJSONRaw(ctx, http.MethodPost, "/phone-number/import/twilio", req, &resp)
	if err != nil {
		return nil, err
	}
	resp.Raw = raw
	c.logger.InfoContext(ctx, "Phone number imported and bound to assistant", "agent_id", agentID, "platform_phone_id", resp.ID)
	return &resp, nil
}

type purchaseNumberRequest struct {
	AssistantID string `json:"assistantId"`
	AreaCode    string `json:"areaCode,omitempty"`
}

// PurchaseNumber provisions a platform-native number already bound to the
// agent. Used as the fallback when the telephony provider has no inventory
// to sell; no separate import step is needed afterwards.
func (c *Client) PurchaseNumber(ctx context.Context, agentID, areaCode string) (*ImportResult, error) {
	req := purchaseNumberRequest{AssistantID: agentID, AreaCode: areaCode}
	var resp ImportResult
	raw, err := c.doJSONRaw(ctx, http.MethodPost, "/phone-number", req, &resp)
	if err != nil {
		return nil, err
	}
	resp.Raw = raw
	c.logger.InfoContext(ctx, "Platform-native phone number purchased", "agent_id", agentID, "platform_phone_id", resp.ID)
	return &resp, nil
}

// CancelCall asks the platform to end an in-progress call.
func (c *Client) CancelCall(ctx context.Context, callID string) error {
	return c.doJSON(ctx, http.MethodPost, "/call/"+callID+"/cancel", struct{}{}, nil)
}

type platformError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	_, err := c.doJSONRaw(ctx, method, path, body, out)
	return err
}

func (c *Client) doJSONRaw(ctx context.Context, method, path string, body any, out any) (json.RawMessage, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent platform request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create agent platform request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent platform request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent platform response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg := extractErrorMessage(respBody)
		c.logger.WarnContext(ctx, "Agent platform returned error",
			"method", method, "path", path, "status", httpResp.StatusCode, "message", msg)
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return nil, fmt.Errorf("agent platform error (status %d): %s", httpResp.StatusCode, msg)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("failed to decode agent platform response: %w", err)
		}
	}
	return respBody, nil
}

// extractErrorMessage pulls the platform's message/error field for verbatim
// propagation.
func extractErrorMessage(body []byte) string {
	var pe platformError
	if err := json.Unmarshal(body, &pe); err == nil {
		if pe.Message != "" {
			return pe.Message
		}
		if pe.Error != "" {
			return pe.Error
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return "no error detail provided"
}
