package services

import (
	"bank-gateway-api/internal/models"
	"bank-gateway-api/pkg/logging"
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier handles webhook notifications to the merchant backend
type WebhookNotifier struct {
	httpClient *http.Client
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WebhookPayload represents the payload sent to the merchant backend
type WebhookPayload struct {
	Event           string `json:"event"` // payment.updated
	BankType        string `json:"bank_type"`
	TrackingCode    string `json:"tracking_code"`
	ReferenceNumber string `json:"reference_number"`
	Status          string `json:"status"`
	StatusText      string `json:"status_text"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Timestamp       string `json:"timestamp"` // ISO 8601 format
}

// NotifyMerchant sends a webhook notification for a record that reached a
// terminal state. Called in a goroutine so callback handling never blocks on
// the merchant backend.
func (wn *WebhookNotifier) NotifyMerchant(callbackURL string, secret string, bank *models.Bank) {
	if callbackURL == "" {
		// No webhook configured, skip
		return
	}

	payload := WebhookPayload{
		Event:           "payment.updated",
		BankType:        string(bank.BankType),
		TrackingCode:    bank.TrackingCode,
		ReferenceNumber: bank.ReferenceNumber,
		Status:          string(bank.Status),
		StatusText:      bank.TransactionStatusText,
		Amount:          bank.Amount.String(),
		Currency:        string(bank.Currency),
		Timestamp:       time.Now().Format(time.RFC3339),
	}

	wn.sendWithRetry(callbackURL, secret, payload)
}

// sendWithRetry sends webhook with retry mechanism
// Retry schedule: 1s, 5s, 30s (3 attempts total)
func (wn *WebhookNotifier) sendWithRetry(callbackURL string, secret string, payload WebhookPayload) {
	retryDelays := []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}
	maxRetries := len(retryDelays)

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := wn.sendWebhook(callbackURL, secret, payload)
		if err == nil {
			logging.Infof("Webhook notification sent successfully - url: %s, tracking_code: %s, attempt: %d",
				callbackURL, payload.TrackingCode, attempt+1)
			return
		}

		logging.Errorf("Webhook notification failed - url: %s, tracking_code: %s, attempt: %d, error: %v",
			callbackURL, payload.TrackingCode, attempt+1, err)

		// If not the last attempt, wait before retry
		if attempt < maxRetries-1 {
			time.Sleep(retryDelays[attempt])
		}
	}

	logging.Errorf("Webhook notification failed after %d attempts - url: %s, tracking_code: %s",
		maxRetries, callbackURL, payload.TrackingCode)
}

// sendWebhook sends a single webhook request
func (wn *WebhookNotifier) sendWebhook(callbackURL string, secret string, payload WebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BankGateway-Webhook/1.0")

	// Add signature if secret is provided
	if secret != "" {
		signature := wn.generateSignature(jsonData, secret)
		req.Header.Set("X-Gateway-Signature", signature)
	}

	resp, err := wn.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// generateSignature generates an HMAC-SHA256 signature over the payload
func (wn *WebhookNotifier) generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
