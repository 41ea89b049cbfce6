package notifier

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

// WelcomeDetails carries everything the welcome email needs.
type WelcomeDetails struct {
	ToEmail       string
	OwnerName     string
	AssistantName string
	PhoneNumber   string
	EditLink      string
	ChatLink      string
}

// EmailNotifier sends the welcome notification through a hosted mail API.
// Sends are best-effort; callers log failures and keep going.
type EmailNotifier struct {
	logger     *slog.Logger
	httpClient *http.Client
	endpoint   string
	apiKey     string
	from       string
}

func NewEmailNotifier(logger *slog.Logger, endpoint, apiKey, from string, httpClient *http.Client) *EmailNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &EmailNotifier{
		logger:     logger.With("adapter", "email_notifier"),
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		from:       from,
	}
}

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailPersonalization struct {
	To []mailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
}

// SendWelcome emails the owner their assistant's phone number and deep links.
func (n *EmailNotifier) SendWelcome(ctx context.Context, details WelcomeDetails) error {
	body := fmt.Sprintf(
		"Hi %s,\n\n%s is ready. Call or text your assistant at %s.\n\n"+
			"Adjust the setup: %s\nChat with %s: %s\n",
		details.OwnerName, details.AssistantName, details.PhoneNumber,
		details.EditLink, details.AssistantName, details.ChatLink,
	)

	req := mailRequest{
		Personalizations: []mailPersonalization{{To: []mailAddress{{Email: details.ToEmail, Name: details.OwnerName}}}},
		From:             mailAddress{Email: n.from, Name: "Kendall"},
		Subject:          fmt.Sprintf("%s is ready to take your calls", details.AssistantName),
		Content:          []mailContent{{Type: "text/plain", Value: body}},
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+n.apiKey)

	httpResp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("mail API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	n.logger.InfoContext(ctx, "Welcome email sent", "to", details.ToEmail)
	return nil
}
