package services

import (
	"bank-gateway-api/internal/models"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierSignsAndRetries(t *testing.T) {
	var mu sync.Mutex
	var hits int
	var gotBody []byte
	var gotSignature string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		hits++
		if hits == 1 {
			// First delivery fails; the notifier must retry
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Gateway-Signature")
	}))
	defer server.Close()

	bank := &models.Bank{
		BankType:        models.BankTypeSepehr,
		TrackingCode:    "T-1",
		ReferenceNumber: "TOKEN123",
		Amount:          decimal.NewFromInt(25000),
		Currency:        models.CurrencyIRR,
		Status:          models.StatusComplete,
	}

	NewWebhookNotifier().NotifyMerchant(server.URL, "s3cret", bank)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, hits)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "payment.updated", payload.Event)
	assert.Equal(t, "SEPEHR", payload.BankType)
	assert.Equal(t, "T-1", payload.TrackingCode)
	assert.Equal(t, "TOKEN123", payload.ReferenceNumber)
	assert.Equal(t, "COMPLETE", payload.Status)
	assert.Equal(t, "25000", payload.Amount)
	assert.Equal(t, "IRR", payload.Currency)
	assert.NotEmpty(t, payload.Timestamp)

	// The signature covers the exact bytes delivered
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestWebhookNotifierSkipsWithoutURL(t *testing.T) {
	// Must return immediately without any network activity
	NewWebhookNotifier().NotifyMerchant("", "s3cret", &models.Bank{
		TrackingCode: "T-1",
		Status:       models.StatusComplete,
	})
}

func TestWebhookNotifierOmitsSignatureWithoutSecret(t *testing.T) {
	var mu sync.Mutex
	var gotSignature string
	headerSeen := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotSignature = r.Header.Get("X-Gateway-Signature")
		headerSeen = true
	}))
	defer server.Close()

	NewWebhookNotifier().NotifyMerchant(server.URL, "", &models.Bank{
		TrackingCode: "T-2",
		Amount:       decimal.NewFromInt(1000),
		Status:       models.StatusCancelByUser,
	})

	mu.Lock()
	defer mu.Unlock()
	require.True(t, headerSeen)
	assert.Empty(t, gotSignature)
}
