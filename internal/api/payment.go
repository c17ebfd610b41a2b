package api

import (
	"bank-gateway-api/internal/gateway"
	"bank-gateway-api/internal/models"
	"bank-gateway-api/internal/response"
	"bank-gateway-api/internal/services"
	"bank-gateway-api/pkg/logging"
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PurchaseRequest represents a start-payment request
type PurchaseRequest struct {
	Amount       string `json:"amount" binding:"required"`
	Currency     string `json:"currency" binding:"required"`
	BankType     string `json:"bank_type" binding:"required"`
	Identifier   string `json:"identifier"`
	TrackingCode string `json:"tracking_code"`
	MobileNumber string `json:"mobile_number"`
	CallbackURL  string `json:"callback_url" binding:"required,url"`
}

// PurchaseResponse carries the redirect the payer must follow
type PurchaseResponse struct {
	TrackingCode string                `json:"tracking_code"`
	Status       string                `json:"status"`
	Redirect     *gateway.RedirectSpec `json:"redirect"`
	GoToBankURL  string                `json:"go_to_bank_url"`
}

// StartPayment initiates one payment attempt against the selected bank
func StartPayment(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid amount: "+req.Amount)
		return
	}

	bank, redirect, err := paymentService.Purchase(c.Request.Context(), services.PurchaseInput{
		BankType:     models.BankType(req.BankType),
		Identifier:   req.Identifier,
		Amount:       amount,
		Currency:     models.Currency(req.Currency),
		TrackingCode: req.TrackingCode,
		MobileNumber: req.MobileNumber,
		CallbackURL:  req.CallbackURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrUnknownBankType),
			errors.Is(err, gateway.ErrConfiguration),
			errors.Is(err, gateway.ErrCurrencyNotSupported),
			errors.Is(err, gateway.ErrAmountInvalid),
			errors.Is(err, gateway.ErrTrackingCodeInUse):
			response.ErrorJSON(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, gateway.ErrGatewayRejected):
			// Show the stored diagnostic, never the raw bank payload
			response.ErrorJSON(c, http.StatusBadGateway, bank.TransactionStatusText)
		case errors.Is(err, gateway.ErrGatewayConnection):
			response.ErrorJSON(c, http.StatusBadGateway, "Bank gateway did not answer; retry with a new tracking code")
		default:
			logging.Errorf("Start payment failed: %v", err)
			response.ErrorJSON(c, http.StatusInternalServerError, "Failed to start payment")
		}
		return
	}

	response.PaymentJSON(c, string(bank.Status), PurchaseResponse{
		TrackingCode: bank.TrackingCode,
		Status:       string(bank.Status),
		Redirect:     redirect,
		GoToBankURL:  goToBankURL(redirect),
	})
}

// goToBankURL encodes a RedirectSpec as a link to the auto-submit page
func goToBankURL(redirect *gateway.RedirectSpec) string {
	values := url.Values{}
	values.Set("url", redirect.URL)
	values.Set("method", redirect.Method)
	for key, value := range redirect.Params {
		values.Set(key, value)
	}
	return "/payment/go-to-bank?" + values.Encode()
}

// PaymentStatus returns the durable outcome of a payment attempt
func PaymentStatus(c *gin.Context) {
	bankType := c.Query("bank_type")
	trackingCode := c.Query("tracking_code")
	if bankType == "" || trackingCode == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "bank_type and tracking_code are required")
		return
	}

	bank, err := paymentService.Result(models.BankType(bankType), trackingCode)
	if err != nil {
		response.ErrorJSON(c, http.StatusNotFound, "Payment record not found")
		return
	}

	response.PaymentJSON(c, string(bank.Status), gin.H{
		"bank_type":               bank.BankType,
		"tracking_code":           bank.TrackingCode,
		"reference_number":        bank.ReferenceNumber,
		"amount":                  bank.Amount.String(),
		"currency":                bank.Currency,
		"status":                  bank.Status,
		"transaction_status_text": bank.TransactionStatusText,
	})
}

var goToBankTemplate = template.Must(template.New("go-to-bank").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Redirecting to bank...</title>
</head>
<body onload="document.forms[0].submit()">
	<form action="{{.URL}}" method="{{.Method}}">
		{{- range $key, $value := .Params}}
		<input type="hidden" name="{{$key}}" value="{{$value}}">
		{{- end}}
		<noscript><button type="submit">Continue to bank</button></noscript>
	</form>
</body>
</html>
`))

// GoToBank renders the auto-submitting page that sends the payer to the bank.
// The redirect target and parameters arrive in the query string, produced by
// goToBankURL.
func GoToBank(c *gin.Context) {
	spec := gateway.RedirectSpec{
		Method: http.MethodGet,
		Params: make(map[string]string),
	}
	for key, values := range c.Request.URL.Query() {
		if len(values) == 0 {
			continue
		}
		switch key {
		case "url":
			spec.URL = values[0]
		case "method":
			spec.Method = values[0]
		default:
			spec.Params[key] = values[0]
		}
	}

	if spec.URL == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "url is required")
		return
	}

	var page bytes.Buffer
	if err := goToBankTemplate.Execute(&page, spec); err != nil {
		logging.Errorf("Failed to render go-to-bank page: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to render redirect page")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", page.Bytes())
}
