package phone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendallhq/kendall/internal/assistant_service/adapters/agentplatform"
	"github.com/kendallhq/kendall/internal/assistant_service/adapters/telephony"
)

type fakeTelephony struct {
	searchCalls   int
	purchaseCalls int
	getCalls      int

	searchErr    error
	purchaseErr  error
	purchaseErrN int // fail the first N purchases
	purchaseRaw  string
	getStatus    string
	getErr       error
}

func (f *fakeTelephony) SearchAvailableNumbers(ctx context.Context, areaCode string) ([]string, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return []string{"+14155550101"}, nil
}

func (f *fakeTelephony) PurchaseNumber(ctx context.Context, phoneNumber, friendlyName string) (*telephony.IncomingNumber, error) {
	f.purchaseCalls++
	if f.purchaseErr != nil && (f.purchaseErrN == 0 || f.purchaseCalls <= f.purchaseErrN) {
		return nil, f.purchaseErr
	}
	raw := f.purchaseRaw
	if raw == "" {
		raw = fmt.Sprintf(`{"sid":"PN111","phone_number":"%s","status":"in-use"}`, phoneNumber)
	}
	n := &telephony.IncomingNumber{Raw: json.RawMessage(raw)}
	_ = json.Unmarshal([]byte(raw), n)
	return n, nil
}

func (f *fakeTelephony) GetIncomingNumber(ctx context.Context, sid string) (*telephony.IncomingNumber, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	status := f.getStatus
	if status == "" {
		status = "in-use"
	}
	return &telephony.IncomingNumber{SID: sid, Status: status}, nil
}

func (f *fakeTelephony) AccountSID() string { return "AC123" }
func (f *fakeTelephony) AuthToken() string  { return "token" }

type fakeImporter struct {
	calls int
	err   error
	errN  int // fail the first N imports
	raw   string

	platformPurchases   int
	platformPurchaseErr error
	platformRaw         string
}

func (f *fakeImporter) ImportNumber(ctx context.Context, agentID, number, accountSID, authToken, label string) (*agentplatform.ImportResult, error) {
	f.calls++
	if f.err != nil && (f.errN == 0 || f.calls <= f.errN) {
		return nil, f.err
	}
	raw := f.raw
	if raw == "" {
		raw = fmt.Sprintf(`{"id":"pp-1","number":"%s"}`, number)
	}
	return &agentplatform.ImportResult{ID: "pp-1", Raw: json.RawMessage(raw)}, nil
}

func (f *fakeImporter) PurchaseNumber(ctx context.Context, agentID, areaCode string) (*agentplatform.ImportResult, error) {
	f.platformPurchases++
	if f.platformPurchaseErr != nil {
		return nil, f.platformPurchaseErr
	}
	raw := f.platformRaw
	if raw == "" {
		raw = `{"id":"pp-native-1","number":"+16175550123"}`
	}
	return &agentplatform.ImportResult{ID: "pp-native-1", Raw: json.RawMessage(raw)}, nil
}

func newTestProvisioner(tel *fakeTelephony, imp *fakeImporter, delays *[]time.Duration) *Provisioner {
	p := NewProvisioner(tel, imp, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}
	return p
}

func TestPurchaseAndBind_HappyPath(t *testing.T) {
	tel := &fakeTelephony{}
	imp := &fakeImporter{}
	p := newTestProvisioner(tel, imp, nil)

	binding, err := p.PurchaseAndBind(context.Background(), "agent-1", "Kendall line")
	require.NoError(t, err)
	assert.Equal(t, "+14155550101", binding.PhoneNumber)
	assert.Equal(t, "PN111", binding.ProviderID)
	assert.Equal(t, "AC123", binding.ProviderAccountRef)
	assert.Equal(t, 1, tel.purchaseCalls)
	assert.Equal(t, 1, imp.calls)
}

func TestPurchaseAndBind_TransientPurchaseFailureRetriesWithBackoff(t *testing.T) {
	var delays []time.Duration
	tel := &fakeTelephony{purchaseErr: errors.New("temporarily unavailable"), purchaseErrN: 2}
	imp := &fakeImporter{}
	p := newTestProvisioner(tel, imp, &delays)

	binding, err := p.PurchaseAndBind(context.Background(), "agent-1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, tel.purchaseCalls)
	// Exponential backoff between purchase attempts.
	require.GreaterOrEqual(t, len(delays), 2)
	assert.Equal(t, 2*time.Second, delays[0])
	assert.Equal(t, 4*time.Second, delays[1])
	assert.NotEmpty(t, binding.PhoneNumber)
}

func TestPurchaseAndBind_PurchaseExhaustsRetries(t *testing.T) {
	tel := &fakeTelephony{purchaseErr: errors.New("temporarily unavailable")}
	imp := &fakeImporter{}
	p := newTestProvisioner(tel, imp, nil)

	_, err := p.PurchaseAndBind(context.Background(), "agent-1", "")
	require.Error(t, err)
	assert.Equal(t, 3, tel.purchaseCalls)
	assert.Equal(t, 0, imp.calls)
}

func TestPurchaseAndBind_AuthErrorIsNotRetried(t *testing.T) {
	tel := &fakeTelephony{purchaseErr: fmt.Errorf("purchase: %w", telephony.ErrUnauthorized)}
	imp := &fakeImporter{}
	p := newTestProvisioner(tel, imp, nil)

	_, err := p.PurchaseAndBind(context.Background(), "agent-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, telephony.ErrUnauthorized)
	assert.Equal(t, 1, tel.purchaseCalls)
}

func TestPurchaseAndBind_ImportFailureSurfacesProviderRef(t *testing.T) {
	tel := &fakeTelephony{}
	imp := &fakeImporter{err: errors.New("platform busy")}
	p := newTestProvisioner(tel, imp, nil)

	_, err := p.PurchaseAndBind(context.Background(), "agent-1", "")
	require.Error(t, err)
	// The purchased number is not auto-released; the provider ref must be in
	// the error for manual reconciliation.
	assert.Contains(t, err.Error(), "PN111")
	assert.Contains(t, err.Error(), "manual reconciliation")
	assert.Equal(t, 3, imp.calls)
}

func TestPurchaseAndBind_VerificationWaitsForInventory(t *testing.T) {
	tel := &fakeTelephony{getStatus: "pending"}
	imp := &fakeImporter{}
	p := newTestProvisioner(tel, imp, nil)

	binding, err := p.PurchaseAndBind(context.Background(), "agent-1", "")
	require.NoError(t, err)
	// Verification budget fully consumed, then import proceeds anyway.
	assert.Equal(t, 5, tel.getCalls)
	assert.Equal(t, 1, imp.calls)
	assert.NotEmpty(t, binding.PhoneNumber)
}

func TestPurchaseAndBind_EmptyInventoryFallsBackToPlatformPurchase(t *testing.T) {
	tel := &fakeTelephony{searchErr: telephony.ErrNoNumbersAvailable}
	imp := &fakeImporter{}
	p := newTestProvisioner(tel, imp, nil)

	binding, err := p.PurchaseAndBind(context.Background(), "agent-1", "")
	require.NoError(t, err)
	// Empty inventory is not retried against the provider; one search, then
	// the platform-native path.
	assert.Equal(t, 1, tel.searchCalls)
	assert.Equal(t, 1, imp.platformPurchases)
	assert.Equal(t, 0, imp.calls, "no import step for a platform-native number")
	assert.Equal(t, "+16175550123", binding.PhoneNumber)
	assert.Equal(t, "pp-native-1", binding.ProviderID)
}

func TestPurchaseAndBind_PlatformFallbackFailureSurfaces(t *testing.T) {
	tel := &fakeTelephony{searchErr: telephony.ErrNoNumbersAvailable}
	imp := &fakeImporter{platformPurchaseErr: errors.New("platform busy")}
	p := newTestProvisioner(tel, imp, nil)

	_, err := p.PurchaseAndBind(context.Background(), "agent-1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform-native number purchase failed")
}

func TestPurchaseAndBind_PlaceholderWhenNoNumberExtractable(t *testing.T) {
	tel := &fakeTelephony{purchaseRaw: `{"sid":"PN999","status":"in-use"}`}
	imp := &fakeImporter{raw: `{"id":"pp-1"}`}
	p := newTestProvisioner(tel, imp, nil)

	binding, err := p.PurchaseAndBind(context.Background(), "agent-1", "")
	require.NoError(t, err)
	assert.True(t, IsPlaceholder(binding.PhoneNumber))
	assert.Contains(t, binding.PhoneNumber, "PN999")
}
