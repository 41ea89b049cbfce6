package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
)

// ErrUnauthorized wraps 401/403 responses; purchase loops treat it as fatal.
var ErrUnauthorized = errors.New("telephony provider rejected credentials")

// ErrNoNumbersAvailable indicates the search returned no purchasable numbers.
var ErrNoNumbersAvailable = errors.New("no phone numbers available for purchase")

// Client talks to the telephony provider's REST API with Basic auth and
// form-encoded request bodies.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	smsFrom    string
}

func NewClient(logger *slog.Logger, baseURL, accountSID, authToken, smsFrom string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		logger:     logger.With("adapter", "telephony"),
		httpClient: httpClient,
		baseURL:    baseURL,
		accountSID: accountSID,
		authToken:  authToken,
		smsFrom:    smsFrom,
	}
}

// AccountSID exposes the provider account reference for import/bind calls.
func (c *Client) AccountSID() string { return c.accountSID }

// AuthToken exposes the provider auth token for import/bind calls.
func (c *Client) AuthToken() string { return c.authToken }

// IncomingNumber is a number owned by (or purchasable into) the account.
// Raw carries the undecoded provider response: some provider responses nest
// the number under different field names, and callers run an ordered
// extraction over the raw shape.
type IncomingNumber struct {
	SID         string          `json:"sid"`
	PhoneNumber string          `json:"phone_number"`
	Status      string          `json:"status"`
	Raw         json.RawMessage `json:"-"`
}

type availableNumbersResponse struct {
	AvailablePhoneNumbers []struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"available_phone_numbers"`
}

// SearchAvailableNumbers lists purchasable local numbers, optionally filtered
// by area code.
func (c *Client) SearchAvailableNumbers(ctx context.Context, areaCode string) ([]string, error) {
	path := fmt.Sprintf("/2010-04-01/Accounts/%s/AvailablePhoneNumbers/US/Local.json", c.accountSID)
	query := url.Values{}
	if areaCode != "" {
		query.Set("AreaCode", areaCode)
	}
	query.Set("SmsEnabled", "true")
	query.Set("VoiceEnabled", "true")

	body, err := c.do(ctx, http.MethodGet, path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp availableNumbersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode available numbers response: %w", err)
	}

	numbers := make([]string, 0, len(resp.AvailablePhoneNumbers))
	for _, n := range resp.AvailablePhoneNumbers {
		numbers = append(numbers, n.PhoneNumber)
	}
	if len(numbers) == 0 {
		return nil, ErrNoNumbersAvailable
	}
	return numbers, nil
}

// PurchaseNumber buys a number into the account.
func (c *Client) PurchaseNumber(ctx context.Context, phoneNumber, friendlyName string) (*IncomingNumber, error) {
	normalized, err := domain.NormalizeE164(phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("refusing to purchase unparseable number %q: %w", phoneNumber, err)
	}

	path := fmt.Sprintf("/2010-04-01/Accounts/%s/IncomingPhoneNumbers.json", c.accountSID)
	form := url.Values{}
	form.Set("PhoneNumber", normalized)
	if friendlyName != "" {
		form.Set("FriendlyName", friendlyName)
	}

	body, err := c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	var number IncomingNumber
	if err := json.Unmarshal(body, &number); err != nil {
		return nil, fmt.Errorf("failed to decode purchase response: %w", err)
	}
	number.Raw = body
	c.logger.InfoContext(ctx, "Phone number purchased", "sid", number.SID, "number", number.PhoneNumber)
	return &number, nil
}

// GetIncomingNumber fetches a purchased number by SID. Used to verify the
// number has finished provisioning in the provider's inventory before import.
func (c *Client) GetIncomingNumber(ctx context.Context, sid string) (*IncomingNumber, error) {
	path := fmt.Sprintf("/2010-04-01/Accounts/%s/IncomingPhoneNumbers/%s.json", c.accountSID, sid)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var number IncomingNumber
	if err := json.Unmarshal(body, &number); err != nil {
		return nil, fmt.Errorf("failed to decode incoming number response: %w", err)
	}
	number.Raw = body
	return &number, nil
}

// SendSMS sends a text message from the configured sender. Recipients are
// normalized to E.164 before the call.
func (c *Client) SendSMS(ctx context.Context, to, message string) error {
	normalized, err := domain.NormalizeE164(to)
	if err != nil {
		return fmt.Errorf("cannot send SMS to unparseable number %q: %w", to, err)
	}

	path := fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.accountSID)
	form := url.Values{}
	form.Set("To", normalized)
	form.Set("From", c.smsFrom)
	form.Set("Body", message)

	if _, err := c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode())); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "SMS sent", "to", normalized)
	return nil
}

type providerError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create telephony request: %w", err)
	}
	httpReq.SetBasicAuth(c.accountSID, c.authToken)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("telephony request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read telephony response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var pe providerError
		msg := string(respBody)
		if err := json.Unmarshal(respBody, &pe); err == nil && pe.Message != "" {
			msg = pe.Message
		}
		c.logger.WarnContext(ctx, "Telephony provider returned error",
			"method", method, "path", path, "status", httpResp.StatusCode, "message", msg)
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return nil, fmt.Errorf("telephony provider error (status %d): %s", httpResp.StatusCode, msg)
	}
	return respBody, nil
}
