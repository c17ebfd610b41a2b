package services

import (
	"bank-gateway-api/internal/config"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertServiceSendsOperatorEmail(t *testing.T) {
	var mu sync.Mutex
	var hits int
	var gotAPIKey string
	var gotEmail EmailRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		hits++
		gotAPIKey = r.Header.Get("api-key")
		json.NewDecoder(r.Body).Decode(&gotEmail)
	}))
	defer server.Close()

	config.AppConfig = &config.Config{ServiceName: "Bank Gateway Service"}

	alerts := &AlertService{
		APIKey:     "brevo-key",
		FromEmail:  "noreply@example.com",
		ToEmail:    "ops@example.com",
		apiURL:     server.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	alerts.SendCallbackUnresolvedAlert("no record matches", map[string]string{"OrderId": "ORD1"})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, hits)
	assert.Equal(t, "brevo-key", gotAPIKey)
	assert.Equal(t, "noreply@example.com", gotEmail.Sender.Email)
	require.Len(t, gotEmail.To, 1)
	assert.Equal(t, "ops@example.com", gotEmail.To[0].Email)
	assert.Contains(t, gotEmail.Subject, "Unresolved bank callback")
	assert.Contains(t, gotEmail.TextContent, "no record matches")
	assert.Contains(t, gotEmail.TextContent, "OrderId = ORD1")
}

func TestAlertServiceSkippedWithoutAPIKey(t *testing.T) {
	var mu sync.Mutex
	var hits int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		hits++
	}))
	defer server.Close()

	config.AppConfig = &config.Config{ServiceName: "Bank Gateway Service"}

	alerts := &AlertService{
		ToEmail:    "ops@example.com",
		apiURL:     server.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	alerts.SendCallbackUnresolvedAlert("no record matches", nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, hits, "alerting must be disabled without an API key")
}
