package gateway

import (
	"bank-gateway-api/internal/models"
	"bank-gateway-api/pkg/logging"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	pecTokenAPIURL  = "https://pec.shaparak.ir/NewIPGServices/Sale/SaleService.asmx"
	pecPaymentURL   = "https://pec.shaparak.ir/NewIPG/"
	pecVerifyAPIURL = "https://pec.shaparak.ir/NewIPGServices/Confirm/ConfirmService.asmx"

	pecStatusOK           = 0
	pecStatusCancelByUser = -138
)

// PEC implements the Parsian (PEC) gateway: SOAP token issuance and
// confirmation, form-encoded callbacks carrying OrderId/Token/status.
// PEC forbids query parameters on the merchant return URL, so its callbacks
// are correlated through the OrderId fallback path.
type PEC struct {
	pin          string
	callbackURL  string
	tokenAPIURL  string
	paymentURL   string
	verifyAPIURL string
	client       *soapClient
}

func newPEC(settings Settings) (*PEC, error) {
	pin, ok := settings["PIN"]
	if !ok || pin == "" {
		return nil, configurationError("PEC requires the PIN setting")
	}

	p := &PEC{
		pin:          pin,
		callbackURL:  settings["CALLBACK_URL"],
		tokenAPIURL:  pecTokenAPIURL,
		paymentURL:   pecPaymentURL,
		verifyAPIURL: pecVerifyAPIURL,
		client:       newSOAPClient(5 * time.Second),
	}
	if v := settings["TOKEN_API_URL"]; v != "" {
		p.tokenAPIURL = v
	}
	if v := settings["PAYMENT_URL"]; v != "" {
		p.paymentURL = v
	}
	if v := settings["VERIFY_API_URL"]; v != "" {
		p.verifyAPIURL = v
	}
	return p, nil
}

func (p *PEC) BankType() models.BankType {
	return models.BankTypePEC
}

func (p *PEC) Currency() models.Currency {
	return models.CurrencyIRR
}

func (p *PEC) PreparePay(bank *models.Bank) error {
	// PEC quotes whole Toman only; truncating here would charge the payer
	// short, so fractional amounts are refused up front
	if !bank.Amount.Equal(bank.Amount.Truncate(0)) {
		return fmt.Errorf("%w: PEC requires a whole amount, got %s", ErrAmountInvalid, bank.Amount)
	}
	if bank.TrackingCode == "" {
		bank.TrackingCode = generateTrackingCode()
	}
	return nil
}

type pecSaleRequest struct {
	XMLName     xml.Name           `xml:"https://pec.Shaparak.ir/NewIPGServices/Sale/SaleService SalePaymentRequest"`
	RequestData pecSaleRequestData `xml:"requestData"`
}

type pecSaleRequestData struct {
	LoginAccount   string `xml:"LoginAccount"`
	Amount         int64  `xml:"Amount"`
	OrderID        string `xml:"OrderId"`
	CallBackURL    string `xml:"CallBackUrl"`
	AdditionalData string `xml:"AdditionalData"`
	Originator     string `xml:"Originator"`
}

type pecSaleResponse struct {
	XMLName xml.Name      `xml:"SalePaymentRequestResponse"`
	Result  pecSaleResult `xml:"SalePaymentRequestResult"`
}

type pecSaleResult struct {
	Status  int    `xml:"Status"`
	Token   int64  `xml:"Token"`
	Message string `xml:"Message"`
}

func (p *PEC) Pay(ctx context.Context, bank *models.Bank) (*RedirectSpec, error) {
	request := pecSaleRequest{
		RequestData: pecSaleRequestData{
			LoginAccount:   p.pin,
			Amount:         bank.Amount.IntPart(),
			OrderID:        bank.TrackingCode,
			CallBackURL:    p.callbackURL,
			AdditionalData: "",
			Originator:     bank.MobileNumber,
		},
	}

	var response pecSaleResponse
	if err := p.client.Call(ctx, p.tokenAPIURL, "https://pec.Shaparak.ir/NewIPGServices/Sale/SaleService/SalePaymentRequest", request, &response); err != nil {
		logging.Criticalf("PEC pay call failed - tracking_code: %s, error: %v", bank.TrackingCode, err)
		return nil, connectionError(err)
	}

	if response.Result.Status != pecStatusOK {
		logging.Criticalf("PEC gateway reject payment - tracking_code: %s, status: %d, message: %s",
			bank.TrackingCode, response.Result.Status, response.Result.Message)
		return nil, rejectionError(response.Result.Message)
	}

	bank.ReferenceNumber = strconv.FormatInt(response.Result.Token, 10)

	return &RedirectSpec{
		URL:    fmt.Sprintf("%s?token=%s", p.paymentURL, bank.ReferenceNumber),
		Method: http.MethodGet,
		Params: map[string]string{},
	}, nil
}

// CorrelationField marks PEC for fallback correlation: its return URL cannot
// carry query parameters, so callbacks are matched on the OrderId body field
func (p *PEC) CorrelationField() string {
	return "OrderId"
}

func (p *PEC) ParseCallback(req *http.Request) (*CallbackData, error) {
	orderID := callbackValue(req, "OrderId")
	if orderID == "" {
		return nil, fmt.Errorf("%w: PEC callback without OrderId", ErrCallbackUnresolved)
	}

	token := callbackValue(req, "Token")
	statusText := callbackValue(req, "status")
	statusCode, err := strconv.Atoi(statusText)
	if err != nil {
		statusCode = -1
	}
	rrn := callbackValue(req, "RRN")
	traceNumber := callbackValue(req, "sTraceNo")
	cardNumber := callbackValue(req, "HashCardNumber")

	data := &CallbackData{
		TrackingCode:    orderID,
		ReferenceNumber: token,
		RawFields: map[string]string{
			"Status":        statusText,
			"Token":         token,
			"RRN":           rrn,
			"TraceNo":       traceNumber,
			"CardHolderPan": cardNumber,
		},
	}

	// A non-zero status in the callback means the payer never completed the
	// payment; the confirmation endpoint must not be called for this token
	if statusCode != pecStatusOK {
		data.Preliminary = &PreliminaryOutcome{
			Status:  models.StatusCancelByUser,
			Message: fmt.Sprintf("Error: payment failed with status %d", statusCode),
		}
	}

	return data, nil
}

type pecConfirmRequest struct {
	XMLName     xml.Name              `xml:"https://pec.Shaparak.ir/NewIPGServices/Confirm/ConfirmService ConfirmPayment"`
	RequestData pecConfirmRequestData `xml:"requestData"`
}

type pecConfirmRequestData struct {
	LoginAccount string `xml:"LoginAccount"`
	Token        string `xml:"Token"`
}

type pecConfirmResponse struct {
	XMLName xml.Name         `xml:"ConfirmPaymentResponse"`
	Result  pecConfirmResult `xml:"ConfirmPaymentResult"`
}

type pecConfirmResult struct {
	Status           int    `xml:"Status"`
	Message          string `xml:"Message"`
	CardNumberMasked string `xml:"CardNumberMasked"`
	RRN              int64  `xml:"RRN"`
}

func (p *PEC) Verify(ctx context.Context, bank *models.Bank, callback *CallbackData) (*VerifyResult, error) {
	request := pecConfirmRequest{
		RequestData: pecConfirmRequestData{
			LoginAccount: p.pin,
			Token:        bank.ReferenceNumber,
		},
	}

	var response pecConfirmResponse
	if err := p.client.Call(ctx, p.verifyAPIURL, "https://pec.Shaparak.ir/NewIPGServices/Confirm/ConfirmService/ConfirmPayment", request, &response); err != nil {
		logging.Errorf("PEC verify call failed - tracking_code: %s, error: %v", bank.TrackingCode, err)
		return nil, connectionError(err)
	}

	switch response.Result.Status {
	case pecStatusOK:
		return &VerifyResult{
			Status: models.StatusComplete,
			Extra: map[string]string{
				"CardNumberMasked": response.Result.CardNumberMasked,
			},
		}, nil
	case pecStatusCancelByUser:
		logging.Debugf("PEC gateway unapprove payment - tracking_code: %s, message: %s",
			bank.TrackingCode, response.Result.Message)
		return &VerifyResult{
			Status:  models.StatusCancelByUser,
			Message: fmt.Sprintf("Error: %s", response.Result.Message),
		}, nil
	default:
		logging.Debugf("PEC gateway unapprove payment - tracking_code: %s, message: %s",
			bank.TrackingCode, response.Result.Message)
		return &VerifyResult{
			Status:  models.StatusError,
			Message: fmt.Sprintf("Error: %s", response.Result.Message),
		}, nil
	}
}
