package api

import (
	"bank-gateway-api/internal/gateway"
	"bank-gateway-api/internal/models"
	"bank-gateway-api/internal/response"
	"bank-gateway-api/pkg/logging"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// PaymentCallback receives the asynchronous bank notification, resolves which
// record and adapter it belongs to, runs verification and sends the payer
// back to the merchant's client-facing callback URL. Banks deliver either a
// form-encoded POST or a query-encoded GET.
func PaymentCallback(c *gin.Context) {
	bankType := models.BankType(c.Query("bank_type"))
	identifier := c.Query("identifier")

	// Primary path: bank type and identifier were placed in the return URL
	// by the merchant itself. Fallback path: some banks forbid return-URL
	// parameters, so the record is searched by a bank-specific body field.
	if bankType == "" {
		resolvedType, resolvedIdentifier, err := paymentService.ResolveFallback(c.Request)
		if err != nil {
			logging.Criticalf("Callback could not be resolved - remote: %s, error: %v", c.ClientIP(), err)
			go alertService.SendCallbackUnresolvedAlert(err.Error(), callbackFields(c.Request))
			response.ErrorJSON(c, http.StatusNotFound, "Callback could not be resolved")
			return
		}
		bankType = resolvedType
		identifier = resolvedIdentifier
	}

	bank, err := paymentService.HandleCallback(c.Request.Context(), bankType, identifier, c.Request)
	if err != nil {
		if errors.Is(err, gateway.ErrCallbackUnresolved) || errors.Is(err, gateway.ErrUnknownBankType) {
			logging.Criticalf("Callback could not be resolved - bank_type: %s, error: %v", bankType, err)
			go alertService.SendCallbackUnresolvedAlert(err.Error(), callbackFields(c.Request))
			response.ErrorJSON(c, http.StatusNotFound, "Callback could not be resolved")
			return
		}
		// Verification failures are recorded on the record; the payer is
		// still sent back to the merchant to see the outcome
		logging.Errorf("Callback verification failed - bank_type: %s, error: %v", bankType, err)
	}

	if bank == nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to process callback")
		return
	}

	c.Redirect(http.StatusFound, clientCallbackURL(bank))
}

// clientCallbackURL appends the tracking code to the merchant's stored return
// URL; no bank-specific payload is leaked in the redirect
func clientCallbackURL(bank *models.Bank) string {
	u, err := url.Parse(bank.CallbackURL)
	if err != nil || bank.CallbackURL == "" {
		return "/?tc=" + url.QueryEscape(bank.TrackingCode)
	}
	q := u.Query()
	q.Set("tc", bank.TrackingCode)
	u.RawQuery = q.Encode()
	return u.String()
}

// callbackFields flattens the request's query and form parameters for the
// operator alert
func callbackFields(req *http.Request) map[string]string {
	fields := make(map[string]string)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	if err := req.ParseForm(); err == nil {
		for key, values := range req.PostForm {
			if len(values) > 0 {
				fields[key] = values[0]
			}
		}
	}
	return fields
}
