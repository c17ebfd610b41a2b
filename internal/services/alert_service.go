package services

import (
	"bank-gateway-api/internal/config"
	"bank-gateway-api/pkg/logging"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPIURL = "https://api.brevo.com/v3/smtp/email"

// AlertService emails the operator about events that need human attention,
// such as callbacks that could not be matched to any payment record
type AlertService struct {
	APIKey     string
	FromEmail  string
	ToEmail    string
	apiURL     string
	httpClient *http.Client
}

// NewAlertService creates a new alert service instance
func NewAlertService() *AlertService {
	return &AlertService{
		APIKey:    config.AppConfig.BrevoAPIKey,
		FromEmail: config.AppConfig.BrevoFromEmail,
		ToEmail:   config.AppConfig.AlertToEmail,
		apiURL:    brevoAPIURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// EmailRequest represents Brevo email request structure
type EmailRequest struct {
	Sender      EmailSender `json:"sender"`
	To          []EmailTo   `json:"to"`
	Subject     string      `json:"subject"`
	TextContent string      `json:"textContent"`
}

type EmailSender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type EmailTo struct {
	Email string `json:"email"`
}

// SendCallbackUnresolvedAlert notifies the operator about an inbound bank
// notification that matched no record. Disabled when no API key or recipient
// is configured.
func (s *AlertService) SendCallbackUnresolvedAlert(reason string, fields map[string]string) {
	if s.APIKey == "" || s.ToEmail == "" {
		return
	}

	content := fmt.Sprintf("An inbound bank callback could not be resolved.\n\nReason: %s\n\nReceived fields:\n", reason)
	for key, value := range fields {
		content += fmt.Sprintf("  %s = %s\n", key, value)
	}
	content += "\nA misdirected or forged notification may be hitting the callback endpoint."

	email := EmailRequest{
		Sender: EmailSender{
			Name:  config.AppConfig.ServiceName,
			Email: s.FromEmail,
		},
		To:          []EmailTo{{Email: s.ToEmail}},
		Subject:     fmt.Sprintf("[%s] Unresolved bank callback", config.AppConfig.ServiceName),
		TextContent: content,
	}

	if err := s.sendEmail(email); err != nil {
		logging.Errorf("Failed to send operator alert: %v", err)
	}
}

// sendEmail sends an email via the Brevo API
func (s *AlertService) sendEmail(email EmailRequest) error {
	jsonData, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", s.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
