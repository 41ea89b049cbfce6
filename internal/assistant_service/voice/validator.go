package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ValidationResult is the outcome of a voice validation call. Valid=false is
// a caller-correctable rejection; an error from Validate means validity could
// not be determined at all (validator unreachable), which callers handle
// differently from an invalid voice.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Validator checks whether a voice input is usable before agent creation.
type Validator interface {
	Validate(ctx context.Context, voiceInput string) (*ValidationResult, error)
}

// HTTPValidator validates a voice selection against the agent platform's
// voice-library endpoint.
type HTTPValidator struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewHTTPValidator(logger *slog.Logger, baseURL, apiKey string, httpClient *http.Client) *HTTPValidator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPValidator{
		logger:     logger.With("component", "voice_validator"),
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type validateRequest struct {
	Voice string `json:"voice"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

func (v *HTTPValidator) Validate(ctx context.Context, voiceInput string) (*ValidationResult, error) {
	// Local resolution failures are definitive rejections, no network needed.
	selection, err := Resolve(voiceInput)
	if err != nil {
		return &ValidationResult{Valid: false, Reason: fmt.Sprintf("unknown voice %q", voiceInput)}, nil
	}
	if selection == nil {
		return &ValidationResult{Valid: true}, nil
	}

	reqBytes, err := json.Marshal(validateRequest{Voice: selection.VoiceID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal voice validation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/voice-library/validate", bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create voice validation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+v.apiKey)

	httpResp, err := v.httpClient.Do(httpReq)
	if err != nil {
		// Unreachable validator: cannot determine validity. Callers proceed
		// with a warning rather than rejecting the voice.
		return nil, fmt.Errorf("voice validation service unreachable: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice validation response: %w", err)
	}

	if httpResp.StatusCode >= 500 {
		return nil, fmt.Errorf("voice validation service error: status %d", httpResp.StatusCode)
	}

	var resp validateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode voice validation response: %w", err)
	}

	if !resp.Valid {
		v.logger.InfoContext(ctx, "Voice rejected by validation service", "voice", selection.VoiceID, "message", resp.Message)
		reason := resp.Message
		if reason == "" {
			reason = fmt.Sprintf("voice %q is not usable", voiceInput)
		}
		return &ValidationResult{Valid: false, Reason: reason}, nil
	}
	return &ValidationResult{Valid: true}, nil
}
