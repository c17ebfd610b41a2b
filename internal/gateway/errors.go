package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for the gateway error taxonomy. Callers branch with
// errors.Is; none of these ever wrap a raw transport error without the
// matching sentinel, so transport-library types never leak upward.
var (
	// ErrConfiguration signals missing or invalid adapter settings.
	// Fatal at startup or factory resolution, never retried.
	ErrConfiguration = errors.New("gateway configuration error")

	// ErrUnknownBankType signals a bank type with no registered adapter
	ErrUnknownBankType = errors.New("unknown bank type")

	// ErrGatewayRejected signals the bank synchronously refused the pay request
	ErrGatewayRejected = errors.New("bank gateway rejected payment")

	// ErrGatewayConnection signals a transport failure talking to the bank:
	// timeout, connection error or malformed response. The caller may retry
	// the whole pay attempt with a fresh tracking code.
	ErrGatewayConnection = errors.New("bank gateway connection error")

	// ErrCallbackUnresolved signals an inbound notification that could not be
	// matched to a payment record
	ErrCallbackUnresolved = errors.New("callback could not be resolved")

	// ErrCurrencyNotSupported signals an amount in a currency the selected
	// bank does not accept
	ErrCurrencyNotSupported = errors.New("currency not supported by gateway")

	// ErrAmountInvalid signals an amount the selected bank cannot quote
	// exactly, such as a non-positive or fractional value
	ErrAmountInvalid = errors.New("amount not accepted by gateway")

	// ErrTrackingCodeInUse signals a caller-supplied tracking code that is
	// already bound to an existing record
	ErrTrackingCodeInUse = errors.New("tracking code already in use")
)

func configurationError(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, v...))
}

func rejectionError(message string) error {
	return fmt.Errorf("%w: %s", ErrGatewayRejected, message)
}

func connectionError(cause error) error {
	return fmt.Errorf("%w: %v", ErrGatewayConnection, cause)
}
