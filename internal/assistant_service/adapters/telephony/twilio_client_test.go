package telephony

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSearchAvailableNumbers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		assert.Contains(t, r.URL.Path, "/AvailablePhoneNumbers/US/Local.json")
		assert.Equal(t, "415", r.URL.Query().Get("AreaCode"))
		json.NewEncoder(w).Encode(map[string]any{
			"available_phone_numbers": []map[string]string{
				{"phone_number": "+14155550101"},
				{"phone_number": "+14155550102"},
			},
		})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "AC123", "token", "+15550009999", nil)
	numbers, err := c.SearchAvailableNumbers(context.Background(), "415")
	require.NoError(t, err)
	assert.Equal(t, []string{"+14155550101", "+14155550102"}, numbers)
}

func TestSearchAvailableNumbers_EmptyInventory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"available_phone_numbers": []any{}})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "AC123", "token", "", nil)
	_, err := c.SearchAvailableNumbers(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoNumbersAvailable)
}

func TestPurchaseNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+14155550101", r.PostForm.Get("PhoneNumber"))
		assert.Equal(t, "Kendall line", r.PostForm.Get("FriendlyName"))
		json.NewEncoder(w).Encode(IncomingNumber{SID: "PN111", PhoneNumber: "+14155550101", Status: "in-use"})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "AC123", "token", "", nil)
	number, err := c.PurchaseNumber(context.Background(), "(415) 555-0101", "Kendall line")
	require.NoError(t, err)
	assert.Equal(t, "PN111", number.SID)
	assert.Equal(t, "+14155550101", number.PhoneNumber)
}

func TestPurchaseNumber_RefusesUnparseableNumber(t *testing.T) {
	c := NewClient(testLogger(), "http://unused", "AC123", "token", "", nil)
	_, err := c.PurchaseNumber(context.Background(), "not-a-number", "")
	require.Error(t, err)
}

func TestUnauthorizedClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"message": "authenticate", "code": 20003})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "AC123", "bad", "", nil)
	_, err := c.GetIncomingNumber(context.Background(), "PN111")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSendSMS_NormalizesRecipient(t *testing.T) {
	var to string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		to = r.PostForm.Get("To")
		assert.Equal(t, "+15550009999", r.PostForm.Get("From"))
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM1"})
	}))
	defer server.Close()

	c := NewClient(testLogger(), server.URL, "AC123", "token", "+15550009999", nil)
	require.NoError(t, c.SendSMS(context.Background(), "415-555-0134", "welcome"))
	assert.Equal(t, "+14155550134", to)
}
