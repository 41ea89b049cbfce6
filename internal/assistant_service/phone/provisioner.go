package phone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kendallhq/kendall/internal/assistant_service/adapters/agentplatform"
	"github.com/kendallhq/kendall/internal/assistant_service/adapters/telephony"
	"github.com/kendallhq/kendall/internal/assistant_service/domain"
	"github.com/kendallhq/kendall/internal/platform/retry"
)

// TelephonyAPI is the slice of the telephony provider the provisioner needs.
type TelephonyAPI interface {
	SearchAvailableNumbers(ctx context.Context, areaCode string) ([]string, error)
	PurchaseNumber(ctx context.Context, phoneNumber, friendlyName string) (*telephony.IncomingNumber, error)
	GetIncomingNumber(ctx context.Context, sid string) (*telephony.IncomingNumber, error)
	AccountSID() string
	AuthToken() string
}

// ImporterAPI is the slice of the agent platform the provisioner needs.
type ImporterAPI interface {
	ImportNumber(ctx context.Context, agentID, number, accountSID, authToken, label string) (*agentplatform.ImportResult, error)
	PurchaseNumber(ctx context.Context, agentID, areaCode string) (*agentplatform.ImportResult, error)
}

// Retry budgets per provisioning stage.
const (
	purchaseMaxAttempts = 3
	verifyMaxAttempts   = 5
	verifyInterval      = time.Second
	importMaxAttempts   = 3
	initialBackoff      = 2 * time.Second
)

// Provisioner purchases a number from the telephony provider and binds it to
// an agent on the agent platform:
//
//	searching_number -> purchasing -> verifying_provisioned ->
//	importing_to_agent_platform -> binding_complete
//
// If a number is purchased but binding fails after all retries, the number is
// NOT released automatically: auto-release risks silently orphaning a paid
// resource, so the error surfaces the provider reference for manual
// reconciliation instead.
type Provisioner struct {
	telephonyAPI TelephonyAPI
	importer     ImporterAPI
	logger       *slog.Logger

	// sleep is overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewProvisioner(telephonyAPI TelephonyAPI, importer ImporterAPI, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		telephonyAPI: telephonyAPI,
		importer:     importer,
		logger:       logger.With("component", "phone_provisioner"),
		sleep:        nil,
	}
}

func (p *Provisioner) retryOpts(maxAttempts int, backoff time.Duration, exponential bool) retry.Options {
	return retry.Options{
		MaxAttempts:    maxAttempts,
		InitialBackoff: backoff,
		Exponential:    exponential,
		IsRetryable:    isRetryable,
		Sleep:          p.sleep,
	}
}

// PurchaseAndBind runs the full state machine and returns the binding.
func (p *Provisioner) PurchaseAndBind(ctx context.Context, agentID, label string) (*domain.PhoneBinding, error) {
	purchased, err := p.searchAndPurchase(ctx, label)
	if err != nil {
		// Empty provider inventory never resolves within this request's
		// lifetime; fall back to a platform-native number instead.
		if errors.Is(err, telephony.ErrNoNumbersAvailable) {
			return p.purchaseFromPlatform(ctx, agentID)
		}
		return nil, err
	}

	p.verifyProvisioned(ctx, purchased.SID)

	importResult, err := p.importToAgentPlatform(ctx, agentID, purchased, label)
	if err != nil {
		// The number was paid for; surface the reference, do not release.
		return nil, fmt.Errorf("number %s purchased (provider ref %s) but binding to agent failed, manual reconciliation required: %w",
			purchased.PhoneNumber, purchased.SID, err)
	}

	binding := &domain.PhoneBinding{
		ProviderID:         purchased.SID,
		ProviderAccountRef: p.telephonyAPI.AccountSID(),
	}

	var importRaw json.RawMessage
	if importResult != nil {
		importRaw = importResult.Raw
	}
	if number, ok := ExtractNumber(importRaw, purchased.Raw); ok {
		binding.PhoneNumber = number
	} else {
		// Non-final placeholder: callers must not hand this to the owner.
		binding.PhoneNumber = Placeholder(purchased.SID)
		p.logger.WarnContext(ctx, "No usable number in provider responses, returning placeholder",
			"provider_id", purchased.SID)
	}

	p.logger.InfoContext(ctx, "Phone binding complete",
		"agent_id", agentID, "number", binding.PhoneNumber, "provider_id", binding.ProviderID)
	return binding, nil
}

func (p *Provisioner) searchAndPurchase(ctx context.Context, label string) (*telephony.IncomingNumber, error) {
	var purchased *telephony.IncomingNumber
	err := retry.Do(ctx, func(ctx context.Context) error {
		numbers, err := p.telephonyAPI.SearchAvailableNumbers(ctx, "")
		if err != nil {
			return fmt.Errorf("number search failed: %w", err)
		}
		purchased, err = p.telephonyAPI.PurchaseNumber(ctx, numbers[0], label)
		if err != nil {
			return fmt.Errorf("number purchase failed: %w", err)
		}
		return nil
	}, p.retryOpts(purchaseMaxAttempts, initialBackoff, true))
	if err != nil {
		return nil, err
	}
	return purchased, nil
}

// verifyProvisioned polls the provider inventory until the purchased number
// is visible. Binding too early fails because the number has not finished
// provisioning upstream; exhausting this budget is logged but not fatal since
// the import step retries on its own.
func (p *Provisioner) verifyProvisioned(ctx context.Context, sid string) {
	sleep := p.sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}

	for attempt := 1; attempt <= verifyMaxAttempts; attempt++ {
		number, err := p.telephonyAPI.GetIncomingNumber(ctx, sid)
		if err == nil && number.Status != "pending" {
			p.logger.InfoContext(ctx, "Purchased number visible in provider inventory", "sid", sid, "attempt", attempt)
			return
		}
		if err != nil {
			p.logger.WarnContext(ctx, "Inventory verification fetch failed", "error", err, "sid", sid, "attempt", attempt)
		}
		if attempt < verifyMaxAttempts {
			if err := sleep(ctx, verifyInterval); err != nil {
				return
			}
		}
	}
	p.logger.WarnContext(ctx, "Number not confirmed in inventory after verification budget, proceeding to import", "sid", sid)
}

func (p *Provisioner) importToAgentPlatform(ctx context.Context, agentID string, purchased *telephony.IncomingNumber, label string) (*agentplatform.ImportResult, error) {
	var result *agentplatform.ImportResult
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = p.importer.ImportNumber(ctx, agentID, purchased.PhoneNumber,
			p.telephonyAPI.AccountSID(), p.telephonyAPI.AuthToken(), label)
		if err != nil {
			return fmt.Errorf("number import failed: %w", err)
		}
		return nil
	}, p.retryOpts(importMaxAttempts, initialBackoff, true))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// purchaseFromPlatform buys a platform-native number already bound to the
// agent, skipping the verify and import stages entirely.
func (p *Provisioner) purchaseFromPlatform(ctx context.Context, agentID string) (*domain.PhoneBinding, error) {
	p.logger.WarnContext(ctx, "Telephony provider has no numbers available, purchasing platform-native number", "agent_id", agentID)

	result, err := p.importer.PurchaseNumber(ctx, agentID, "")
	if err != nil {
		return nil, fmt.Errorf("platform-native number purchase failed: %w", err)
	}

	binding := &domain.PhoneBinding{ProviderID: result.ID}
	if number, ok := ExtractNumber(result.Raw); ok {
		binding.PhoneNumber = number
	} else {
		binding.PhoneNumber = Placeholder(result.ID)
		p.logger.WarnContext(ctx, "No usable number in platform purchase response, returning placeholder",
			"platform_phone_id", result.ID)
	}

	p.logger.InfoContext(ctx, "Phone binding complete via platform-native purchase",
		"agent_id", agentID, "number", binding.PhoneNumber, "provider_id", binding.ProviderID)
	return binding, nil
}

// isRetryable classifies provider failures. Authorization failures never
// resolve on retry, and an empty inventory does not refill within a request.
func isRetryable(err error) bool {
	return !errors.Is(err, telephony.ErrUnauthorized) &&
		!errors.Is(err, agentplatform.ErrUnauthorized) &&
		!errors.Is(err, telephony.ErrNoNumbersAvailable)
}
