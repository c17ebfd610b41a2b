package gateway

import (
	"bank-gateway-api/internal/models"
	"fmt"
)

// DefaultIdentifier is the credential set used when the caller does not
// name one
const DefaultIdentifier = "1"

// Factory resolves (bank type, choose identifier) to a configured Adapter.
// Its configuration is snapshotted at construction and immutable afterwards;
// a bank type may carry several credential sets for multi-merchant
// deployments.
type Factory struct {
	// bank type -> choose identifier -> settings
	configs     map[models.BankType]map[string]Settings
	callbackURL string
}

// NewFactory validates the credential map eagerly, so missing settings fail
// at startup instead of on the first payment. callbackURL is the merchant
// return URL handed to the banks.
func NewFactory(banks map[string]map[string]map[string]string, callbackURL string) (*Factory, error) {
	f := &Factory{
		configs:     make(map[models.BankType]map[string]Settings),
		callbackURL: callbackURL,
	}

	for bankType, identifiers := range banks {
		bt := models.BankType(bankType)
		f.configs[bt] = make(map[string]Settings)
		for identifier, raw := range identifiers {
			settings := make(Settings, len(raw)+2)
			for k, v := range raw {
				settings[k] = v
			}
			settings["CALLBACK_URL"] = callbackURL
			settings["IDENTIFIER"] = identifier
			f.configs[bt][identifier] = settings

			if _, err := f.build(bt, settings); err != nil {
				return nil, fmt.Errorf("bank %s identifier %s: %w", bankType, identifier, err)
			}
		}
	}

	return f, nil
}

// Create returns a freshly configured adapter for the given bank type and
// choose identifier. An empty identifier selects the default one.
func (f *Factory) Create(bankType models.BankType, identifier string) (Adapter, error) {
	identifiers, ok := f.configs[bankType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBankType, bankType)
	}

	if identifier == "" {
		identifier = DefaultIdentifier
	}
	settings, ok := identifiers[identifier]
	if !ok {
		return nil, configurationError("no settings for bank %s identifier %s", bankType, identifier)
	}

	return f.build(bankType, settings)
}

func (f *Factory) build(bankType models.BankType, settings Settings) (Adapter, error) {
	switch bankType {
	case models.BankTypePEC:
		return newPEC(settings)
	case models.BankTypeSepehr:
		return newSepehr(settings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBankType, bankType)
	}
}

// FallbackBankTypes lists the configured bank types whose protocol forbids
// return-URL parameters, making their callbacks resolvable only through
// bank-supplied body fields
func (f *Factory) FallbackBankTypes() []models.BankType {
	var bankTypes []models.BankType
	for bankType := range f.configs {
		if _, ok := f.CorrelationField(bankType); ok {
			bankTypes = append(bankTypes, bankType)
		}
	}
	return bankTypes
}

// CorrelationField returns the callback body field that correlates a fallback
// bank type's notifications, and false for bank types whose return URL can
// carry parameters
func (f *Factory) CorrelationField(bankType models.BankType) (string, bool) {
	for _, settings := range f.configs[bankType] {
		adapter, err := f.build(bankType, settings)
		if err != nil {
			return "", false
		}
		if correlator, ok := adapter.(FallbackCorrelator); ok {
			return correlator.CorrelationField(), true
		}
		break
	}
	return "", false
}
