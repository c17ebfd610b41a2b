package gateway

import (
	"bank-gateway-api/internal/models"
	"context"
	"math/big"
	"net/http"

	"github.com/google/uuid"
)

// Settings is one bank's immutable credential set, keyed the way the bank
// names its parameters (PIN, TERMINAL_ID, ...)
type Settings map[string]string

// RedirectSpec describes how the payer must be sent to the bank after a
// successful pay call
type RedirectSpec struct {
	URL    string            `json:"url"`
	Method string            `json:"method"` // GET or POST
	Params map[string]string `json:"params"`
}

// PreliminaryOutcome is a final status the bank signalled directly in the
// callback, without needing a settlement call
type PreliminaryOutcome struct {
	Status  models.PaymentStatus
	Message string
}

// CallbackData is the normalized form of one inbound bank notification
type CallbackData struct {
	TrackingCode string
	// ReferenceNumber is the bank's own transaction identifier re-asserted in
	// the callback; empty when the bank omits it
	ReferenceNumber string
	// Preliminary is non-nil when the bank already declared the outcome in
	// the callback; the settlement call must then be skipped
	Preliminary *PreliminaryOutcome
	// RawFields preserves the bank-specific fields verbatim for audit
	RawFields map[string]string
}

// VerifyResult is the outcome of the settlement/confirm call
type VerifyResult struct {
	Status  models.PaymentStatus // COMPLETE, CANCEL_BY_USER or ERROR
	Message string
	// Extra carries ancillary fields from the confirmation response
	// (e.g. masked card number)
	Extra map[string]string
}

// Adapter is the contract every bank implements: the synchronous pay leg, the
// asynchronous callback leg and the synchronous settlement leg
type Adapter interface {
	BankType() models.BankType

	// Currency is the single currency this bank accepts
	Currency() models.Currency

	// PreparePay validates and completes the record before the pay call, in
	// particular assigning a tracking code when the caller supplied none
	PreparePay(bank *models.Bank) error

	// Pay requests a payment token from the bank and sets the record's
	// reference number. Fails with ErrGatewayRejected on a business refusal
	// and ErrGatewayConnection on a transport failure.
	Pay(ctx context.Context, bank *models.Bank) (*RedirectSpec, error)

	// ParseCallback extracts the bank-specific fields from the inbound
	// notification, tolerating both form-encoded POST and query-encoded GET
	ParseCallback(req *http.Request) (*CallbackData, error)

	// Verify confirms or cancels the payment with the bank. The orchestrator
	// guarantees it is never invoked for a terminal record.
	Verify(ctx context.Context, bank *models.Bank, callback *CallbackData) (*VerifyResult, error)
}

// FallbackCorrelator is implemented by adapters whose bank forbids return-URL
// parameters. CorrelationField names the callback body field carrying the
// merchant tracking code, which is the only way to match their callbacks to a
// record.
type FallbackCorrelator interface {
	CorrelationField() string
}

// generateTrackingCode renders a large random integer as a 16-digit numeric
// string. Collision checking against existing records is the orchestrator's
// responsibility.
func generateTrackingCode() string {
	u := uuid.New()
	n := new(big.Int).SetBytes(u[:])
	s := n.String()
	if len(s) > 16 {
		s = s[len(s)-16:]
	}
	return s
}

// callbackValue reads a callback field from form data first and falls back to
// the query string; banks are inconsistent about the encoding they use
func callbackValue(req *http.Request, key string) string {
	if v := req.PostFormValue(key); v != "" {
		return v
	}
	return req.URL.Query().Get(key)
}
