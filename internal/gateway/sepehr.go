package gateway

import (
	"bank-gateway-api/internal/models"
	"bank-gateway-api/pkg/logging"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Sepehr quotes amounts in Rial while records carry Toman
var rialFactor = decimal.NewFromInt(10)

const (
	sepehrTokenAPIURL  = "https://sepehr.shaparak.ir:8081/V1/PeymentApi/GetToken"
	sepehrPaymentURL   = "https://sepehr.shaparak.ir:8080/pay"
	sepehrVerifyAPIURL = "https://sepehr.shaparak.ir:8081/V1/PeymentApi/Advice"
)

// Sepehr implements the Sepehr gateway: JSON token issuance (GetToken) and
// settlement (Advice). Its merchant return URL may carry query parameters, so
// callbacks are correlated on the primary path.
type Sepehr struct {
	terminalID   string
	callbackURL  string
	tokenAPIURL  string
	paymentURL   string
	verifyAPIURL string
	httpClient   *http.Client
}

func newSepehr(settings Settings) (*Sepehr, error) {
	terminalID, ok := settings["TERMINAL_ID"]
	if !ok || terminalID == "" {
		return nil, configurationError("Sepehr requires the TERMINAL_ID setting")
	}

	s := &Sepehr{
		terminalID:   terminalID,
		callbackURL:  sepehrCallbackURL(settings["CALLBACK_URL"], settings["IDENTIFIER"]),
		tokenAPIURL:  sepehrTokenAPIURL,
		paymentURL:   sepehrPaymentURL,
		verifyAPIURL: sepehrVerifyAPIURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if v := settings["TOKEN_API_URL"]; v != "" {
		s.tokenAPIURL = v
	}
	if v := settings["PAYMENT_URL"]; v != "" {
		s.paymentURL = v
	}
	if v := settings["VERIFY_API_URL"]; v != "" {
		s.verifyAPIURL = v
	}
	return s, nil
}

// sepehrCallbackURL appends the bank type and choose identifier to the
// merchant return URL, so the callback router can resolve the record from
// merchant-controlled addressing instead of bank-supplied data
func sepehrCallbackURL(base, identifier string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("bank_type", string(models.BankTypeSepehr))
	if identifier != "" {
		q.Set("identifier", identifier)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Sepehr) BankType() models.BankType {
	return models.BankTypeSepehr
}

func (s *Sepehr) Currency() models.Currency {
	return models.CurrencyIRR
}

func (s *Sepehr) PreparePay(bank *models.Bank) error {
	if bank.TrackingCode == "" {
		bank.TrackingCode = generateTrackingCode()
	}
	return nil
}

type sepehrTokenRequest struct {
	Amount      string `json:"Amount"`
	CallbackURL string `json:"callbackURL"`
	InvoiceID   string `json:"invoiceID"`
	TerminalID  string `json:"terminalID"`
}

type sepehrTokenResponse struct {
	Status      int    `json:"Status"`
	AccessToken string `json:"Accesstoken"`
	Message     string `json:"Message"`
}

func (s *Sepehr) Pay(ctx context.Context, bank *models.Bank) (*RedirectSpec, error) {
	request := sepehrTokenRequest{
		// Sepehr expects the amount in Rial
		Amount:      bank.Amount.Mul(rialFactor).Truncate(0).String(),
		CallbackURL: s.callbackURL,
		InvoiceID:   bank.TrackingCode,
		TerminalID:  s.terminalID,
	}

	var response sepehrTokenResponse
	if err := s.sendData(ctx, s.tokenAPIURL, request, &response); err != nil {
		return nil, err
	}

	if response.Status != 0 {
		logging.Criticalf("Sepehr gateway reject payment - tracking_code: %s, status: %d, message: %s",
			bank.TrackingCode, response.Status, response.Message)
		message := response.Message
		if message == "" {
			message = "Unknown error"
		}
		return nil, rejectionError(message)
	}

	bank.ReferenceNumber = response.AccessToken

	return &RedirectSpec{
		URL:    s.paymentURL,
		Method: http.MethodGet,
		Params: map[string]string{
			"token":      bank.ReferenceNumber,
			"terminalID": s.terminalID,
			"GetMethod":  "true",
		},
	}, nil
}

func (s *Sepehr) ParseCallback(req *http.Request) (*CallbackData, error) {
	trackingCode := callbackValue(req, "invoiceid")
	if trackingCode == "" {
		return nil, fmt.Errorf("%w: Sepehr callback without invoiceid", ErrCallbackUnresolved)
	}

	digitalReceipt := callbackValue(req, "digitalreceipt")
	respCode := callbackValue(req, "respcode")
	respMessage := callbackValue(req, "respmsg")
	rrn := callbackValue(req, "rrn")
	traceNumber := callbackValue(req, "tracenumber")

	data := &CallbackData{
		TrackingCode:    trackingCode,
		ReferenceNumber: digitalReceipt,
		RawFields: map[string]string{
			"digitalreceipt": digitalReceipt,
			"respcode":       respCode,
			"respmsg":        respMessage,
			"rrn":            rrn,
			"tracenumber":    traceNumber,
		},
	}

	// A non-zero respcode or a missing receipt means the payer abandoned or
	// the payment failed at the bank; the Advice call must be skipped
	if respCode != "0" || digitalReceipt == "" {
		message := respMessage
		if message == "" {
			message = fmt.Sprintf("payment failed with respcode %s", respCode)
		}
		data.Preliminary = &PreliminaryOutcome{
			Status:  models.StatusCancelByUser,
			Message: message,
		}
	}

	return data, nil
}

type sepehrAdviceRequest struct {
	DigitalReceipt string `json:"digitalreceipt"`
	TID            string `json:"Tid"`
}

type sepehrAdviceResponse struct {
	Status   string `json:"Status"`
	ReturnID string `json:"ReturnId"`
	Message  string `json:"Message"`
}

func (s *Sepehr) Verify(ctx context.Context, bank *models.Bank, callback *CallbackData) (*VerifyResult, error) {
	request := sepehrAdviceRequest{
		DigitalReceipt: bank.ReferenceNumber,
		TID:            s.terminalID,
	}

	var response sepehrAdviceResponse
	if err := s.sendData(ctx, s.verifyAPIURL, request, &response); err != nil {
		return nil, err
	}

	if response.Status == "OK" {
		return &VerifyResult{
			Status: models.StatusComplete,
			Extra: map[string]string{
				"ReturnId": response.ReturnID,
			},
		}, nil
	}

	logging.Debugf("Sepehr gateway unapprove payment - tracking_code: %s, message: %s",
		bank.TrackingCode, response.Message)
	return &VerifyResult{
		Status:  models.StatusCancelByUser,
		Message: response.Message,
	}, nil
}

// sendData posts a JSON payload and decodes the JSON response. Timeouts,
// connection errors and undecodable bodies are all surfaced as
// ErrGatewayConnection so callers can distinguish "bank did not answer" from
// "bank said no".
func (s *Sepehr) sendData(ctx context.Context, api string, request, response interface{}) error {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logging.Errorf("Sepehr gateway request failed - api: %s, error: %v", api, err)
		return connectionError(err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		logging.Errorf("Sepehr invalid response - api: %s, error: %v", api, err)
		return connectionError(err)
	}

	return nil
}
