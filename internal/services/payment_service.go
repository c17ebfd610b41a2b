package services

import (
	"bank-gateway-api/internal/config"
	"bank-gateway-api/internal/database"
	"bank-gateway-api/internal/gateway"
	"bank-gateway-api/internal/models"
	"bank-gateway-api/pkg/logging"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// trackingCodeAttempts bounds regeneration on tracking code collisions
const trackingCodeAttempts = 5

// PaymentService drives a payment record through its lifecycle:
// INIT -> REDIRECT_TO_BANK on a successful pay call, then
// CALLBACK_RECEIVED -> COMPLETE/CANCEL_BY_USER/ERROR when the bank's
// asynchronous notification arrives
type PaymentService struct {
	factory  *gateway.Factory
	lock     *VerifyLock
	notifier *WebhookNotifier
}

// NewPaymentService creates a new payment service over the adapter factory
func NewPaymentService(factory *gateway.Factory) *PaymentService {
	return &PaymentService{
		factory:  factory,
		lock:     NewVerifyLock(),
		notifier: NewWebhookNotifier(),
	}
}

// PurchaseInput describes one start-payment request
type PurchaseInput struct {
	BankType     models.BankType
	Identifier   string
	Amount       decimal.Decimal
	Currency     models.Currency
	TrackingCode string // optional, generated when empty
	MobileNumber string // optional payer hint
	CallbackURL  string // merchant's client-facing return URL
}

// Purchase creates a payment record, runs the synchronous pay leg against the
// bank and returns the redirect the payer must follow. On a bank rejection
// the record ends in ERROR; on a transport failure it stays in INIT so the
// caller may retry with a fresh tracking code.
func (s *PaymentService) Purchase(ctx context.Context, in PurchaseInput) (*models.Bank, *gateway.RedirectSpec, error) {
	adapter, err := s.factory.Create(in.BankType, in.Identifier)
	if err != nil {
		return nil, nil, err
	}

	if in.Currency != adapter.Currency() {
		return nil, nil, fmt.Errorf("%w: %s accepts %s, got %s",
			gateway.ErrCurrencyNotSupported, in.BankType, adapter.Currency(), in.Currency)
	}
	if !in.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be positive, got %s", gateway.ErrAmountInvalid, in.Amount)
	}

	bank := &models.Bank{
		BankType:             in.BankType,
		BankChooseIdentifier: identifierOrDefault(in.Identifier),
		TrackingCode:         in.TrackingCode,
		Amount:               in.Amount,
		Currency:             in.Currency,
		Status:               models.StatusInit,
		MobileNumber:         in.MobileNumber,
		CallbackURL:          in.CallbackURL,
	}

	if err := s.assignTrackingCode(adapter, bank, in.TrackingCode != ""); err != nil {
		return nil, nil, err
	}

	if err := database.CreateBank(bank); err != nil {
		return nil, nil, err
	}

	redirect, err := adapter.Pay(ctx, bank)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayRejected) {
			// The bank said no; the record is terminal and never retried
			if _, terr := database.TransitionStatus(bank.ID, models.StatusInit, models.StatusError,
				map[string]interface{}{"transaction_status_text": err.Error()}); terr != nil {
				logging.Errorf("Failed to record pay rejection - tracking_code: %s, error: %v", bank.TrackingCode, terr)
			}
			bank.Status = models.StatusError
			bank.TransactionStatusText = err.Error()
			return bank, nil, err
		}
		// Transport failure: the record stays in INIT so the caller can
		// retry the whole attempt with a new tracking code
		return bank, nil, err
	}

	ok, err := database.TransitionStatus(bank.ID, models.StatusInit, models.StatusRedirectToBank,
		map[string]interface{}{"reference_number": bank.ReferenceNumber})
	if err != nil {
		return bank, nil, err
	}
	if !ok {
		return bank, nil, fmt.Errorf("record %d left INIT during pay", bank.ID)
	}
	bank.Status = models.StatusRedirectToBank

	logging.Infof("Payment started - bank_type: %s, tracking_code: %s, reference_number: %s",
		bank.BankType, bank.TrackingCode, bank.ReferenceNumber)

	return bank, redirect, nil
}

// assignTrackingCode settles the record's tracking code. Caller-supplied
// codes must not collide with an existing record; generated codes are
// collision-checked and regenerated.
func (s *PaymentService) assignTrackingCode(adapter gateway.Adapter, bank *models.Bank, callerSupplied bool) error {
	if callerSupplied {
		inUse, err := database.TrackingCodeExists(bank.BankType, bank.TrackingCode)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("%w: %s", gateway.ErrTrackingCodeInUse, bank.TrackingCode)
		}
		return adapter.PreparePay(bank)
	}

	for attempt := 0; attempt < trackingCodeAttempts; attempt++ {
		bank.TrackingCode = ""
		if err := adapter.PreparePay(bank); err != nil {
			return err
		}
		inUse, err := database.TrackingCodeExists(bank.BankType, bank.TrackingCode)
		if err != nil {
			return err
		}
		if !inUse {
			return nil
		}
	}
	return fmt.Errorf("could not generate an unused tracking code for %s", bank.BankType)
}

// HandleCallback processes one inbound bank notification: parses it with the
// owning adapter, advances the record to CALLBACK_RECEIVED, and settles the
// final outcome. Terminal records are returned as-is without any bank-facing
// call, which makes replayed or duplicated deliveries idempotent.
func (s *PaymentService) HandleCallback(ctx context.Context, bankType models.BankType, identifier string, req *http.Request) (*models.Bank, error) {
	adapter, err := s.factory.Create(bankType, identifier)
	if err != nil {
		return nil, err
	}

	callback, err := adapter.ParseCallback(req)
	if err != nil {
		return nil, err
	}

	bank, err := database.GetBankByTrackingCode(bankType, callback.TrackingCode)
	if err != nil {
		if errors.Is(err, database.ErrBankRecordNotFound) {
			return nil, fmt.Errorf("%w: no record for tracking code %s", gateway.ErrCallbackUnresolved, callback.TrackingCode)
		}
		return nil, err
	}

	if bank.Status.IsTerminal() {
		logging.Infof("Replayed callback for terminal record - tracking_code: %s, status: %s",
			bank.TrackingCode, bank.Status)
		return bank, nil
	}

	acquired, err := s.lock.Acquire(ctx, bankType, bank.TrackingCode)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// A concurrent delivery of the same notification holds the lock;
		// report the record as-is without touching the bank
		logging.Warnf("Concurrent callback delivery - tracking_code: %s", bank.TrackingCode)
		return database.GetBankByID(bank.ID)
	}
	defer s.lock.Release(bankType, bank.TrackingCode)

	// Re-read under the lock; another delivery may have finished meanwhile
	bank, err = database.GetBankByID(bank.ID)
	if err != nil {
		return nil, err
	}
	if bank.Status.IsTerminal() {
		return bank, nil
	}

	updates := map[string]interface{}{
		"extra_information": formatExtraInformation(callback.RawFields),
	}
	// The reference number is set at most once and never overwritten
	if bank.ReferenceNumber == "" && callback.ReferenceNumber != "" {
		updates["reference_number"] = callback.ReferenceNumber
		bank.ReferenceNumber = callback.ReferenceNumber
	}

	ok, err := database.TransitionStatus(bank.ID, models.StatusRedirectToBank, models.StatusCallbackReceived, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		bank, err = database.GetBankByID(bank.ID)
		if err != nil {
			return nil, err
		}
		if bank.Status != models.StatusCallbackReceived {
			// Terminal, or a callback arrived for a record that never left
			// INIT; either way there is nothing safe to verify
			logging.Warnf("Callback for record in status %s - tracking_code: %s", bank.Status, bank.TrackingCode)
			return bank, nil
		}
	} else {
		bank.Status = models.StatusCallbackReceived
		bank.ExtraInformation = updates["extra_information"].(string)
	}

	// Some banks declare the outcome directly in the callback; calling their
	// settlement endpoint for an already-failed token is not safe
	if callback.Preliminary != nil {
		logging.Debugf("Callback carried preliminary outcome %s - tracking_code: %s",
			callback.Preliminary.Status, bank.TrackingCode)
		return s.finalize(bank, callback.Preliminary.Status, callback.Preliminary.Message, nil)
	}

	result, err := adapter.Verify(ctx, bank, callback)
	if err != nil {
		if _, ferr := s.finalize(bank, models.StatusError, err.Error(), nil); ferr != nil {
			logging.Errorf("Failed to record verify failure - tracking_code: %s, error: %v", bank.TrackingCode, ferr)
		}
		return bank, err
	}

	return s.finalize(bank, result.Status, result.Message, result.Extra)
}

// finalize moves a CALLBACK_RECEIVED record to its terminal status and fires
// the merchant webhook
func (s *PaymentService) finalize(bank *models.Bank, status models.PaymentStatus, message string, extra map[string]string) (*models.Bank, error) {
	updates := map[string]interface{}{}
	if message != "" {
		updates["transaction_status_text"] = message
	}
	if len(extra) > 0 {
		extended := bank.ExtraInformation
		if extended != "" {
			extended += ", "
		}
		extended += formatExtraInformation(extra)
		updates["extra_information"] = extended
	}

	ok, err := database.TransitionStatus(bank.ID, models.StatusCallbackReceived, status, updates)
	if err != nil {
		return bank, err
	}
	if !ok {
		return database.GetBankByID(bank.ID)
	}

	bank, err = database.GetBankByID(bank.ID)
	if err != nil {
		return nil, err
	}

	logging.Infof("Payment finalized - bank_type: %s, tracking_code: %s, status: %s",
		bank.BankType, bank.TrackingCode, bank.Status)

	if config.AppConfig != nil {
		go s.notifier.NotifyMerchant(config.AppConfig.WebhookCallbackURL, config.AppConfig.WebhookSecret, bank)
	}

	return bank, nil
}

// Result returns the durable outcome of a payment attempt
func (s *PaymentService) Result(bankType models.BankType, trackingCode string) (*models.Bank, error) {
	return database.GetBankByTrackingCode(bankType, trackingCode)
}

// ResolveFallback matches a callback that carries no return-URL parameters to
// a pending record by the bank-specific order identifier in its body. Only
// REDIRECT_TO_BANK records of bank types known to need the fallback are
// considered.
func (s *PaymentService) ResolveFallback(req *http.Request) (models.BankType, string, error) {
	for _, bankType := range s.factory.FallbackBankTypes() {
		field, ok := s.factory.CorrelationField(bankType)
		if !ok {
			continue
		}

		orderID := req.PostFormValue(field)
		if orderID == "" {
			orderID = req.URL.Query().Get(field)
		}
		if orderID == "" {
			continue
		}

		bank, err := database.FindPendingByTrackingCode(bankType, orderID)
		if err != nil {
			if errors.Is(err, database.ErrBankRecordNotFound) {
				continue
			}
			return "", "", err
		}

		logging.Debugf("Resolved fallback callback - %s: %s, bank_type: %s", field, orderID, bank.BankType)
		return bank.BankType, bank.BankChooseIdentifier, nil
	}

	return "", "", fmt.Errorf("%w: no bank_type parameter and no pending record matches the callback", gateway.ErrCallbackUnresolved)
}

func identifierOrDefault(identifier string) string {
	if identifier == "" {
		return gateway.DefaultIdentifier
	}
	return identifier
}

// formatExtraInformation renders raw callback fields as a stable
// "key=value, key=value" audit string
func formatExtraInformation(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}
	return strings.Join(parts, ", ")
}
