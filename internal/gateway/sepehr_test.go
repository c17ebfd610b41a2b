package gateway

import (
	"bank-gateway-api/internal/models"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSepehr(t *testing.T, settings Settings) *Sepehr {
	t.Helper()
	if settings == nil {
		settings = Settings{}
	}
	if settings["TERMINAL_ID"] == "" {
		settings["TERMINAL_ID"] = "55555"
	}
	s, err := newSepehr(settings)
	require.NoError(t, err)
	return s
}

func TestSepehrConfiguration(t *testing.T) {
	_, err := newSepehr(Settings{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSepehrCallbackURLCarriesBankType(t *testing.T) {
	s := newTestSepehr(t, Settings{
		"CALLBACK_URL": "https://shop.example.com/payment/callback",
		"IDENTIFIER":   "2",
	})

	u, err := url.Parse(s.callbackURL)
	require.NoError(t, err)
	assert.Equal(t, "SEPEHR", u.Query().Get("bank_type"))
	assert.Equal(t, "2", u.Query().Get("identifier"))
}

func TestSepehrPaySuccess(t *testing.T) {
	var got sepehrTokenRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(sepehrTokenResponse{Status: 0, AccessToken: "TOKEN123"})
	}))
	defer server.Close()

	s := newTestSepehr(t, Settings{"TOKEN_API_URL": server.URL})
	bank := &models.Bank{
		TrackingCode: "2000",
		Amount:       decimal.NewFromInt(25000),
	}

	redirect, err := s.Pay(context.Background(), bank)
	require.NoError(t, err)

	// Amount is quoted in Rial
	assert.Equal(t, "250000", got.Amount)
	assert.Equal(t, "2000", got.InvoiceID)
	assert.Equal(t, "55555", got.TerminalID)

	assert.Equal(t, "TOKEN123", bank.ReferenceNumber)
	assert.Equal(t, http.MethodGet, redirect.Method)
	assert.Equal(t, "TOKEN123", redirect.Params["token"])
	assert.Equal(t, "55555", redirect.Params["terminalID"])
}

func TestSepehrPayRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sepehrTokenResponse{Status: -2, Message: "Invalid terminal"})
	}))
	defer server.Close()

	s := newTestSepehr(t, Settings{"TOKEN_API_URL": server.URL})
	bank := &models.Bank{TrackingCode: "2001", Amount: decimal.NewFromInt(25000)}

	_, err := s.Pay(context.Background(), bank)
	assert.ErrorIs(t, err, ErrGatewayRejected)
	assert.Contains(t, err.Error(), "Invalid terminal")
	assert.Empty(t, bank.ReferenceNumber)
}

func TestSepehrPayMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway maintenance</html>"))
	}))
	defer server.Close()

	s := newTestSepehr(t, Settings{"TOKEN_API_URL": server.URL})
	bank := &models.Bank{TrackingCode: "2002", Amount: decimal.NewFromInt(25000)}

	_, err := s.Pay(context.Background(), bank)
	assert.ErrorIs(t, err, ErrGatewayConnection)
}

func TestSepehrParseCallbackSuccess(t *testing.T) {
	s := newTestSepehr(t, nil)

	form := url.Values{}
	form.Set("invoiceid", "2000")
	form.Set("digitalreceipt", "TOKEN123")
	form.Set("respcode", "0")
	form.Set("rrn", "778899")
	form.Set("tracenumber", "113355")

	req := httptest.NewRequest(http.MethodPost, "/payment/callback?bank_type=SEPEHR", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	data, err := s.ParseCallback(req)
	require.NoError(t, err)
	assert.Equal(t, "2000", data.TrackingCode)
	assert.Equal(t, "TOKEN123", data.ReferenceNumber)
	assert.Nil(t, data.Preliminary)
	assert.Equal(t, "778899", data.RawFields["rrn"])
}

func TestSepehrParseCallbackFailureIsPreliminary(t *testing.T) {
	s := newTestSepehr(t, nil)

	form := url.Values{}
	form.Set("invoiceid", "2000")
	form.Set("respcode", "-1")
	form.Set("respmsg", "canceled by user")

	req := httptest.NewRequest(http.MethodPost, "/payment/callback?bank_type=SEPEHR", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	data, err := s.ParseCallback(req)
	require.NoError(t, err)
	require.NotNil(t, data.Preliminary)
	assert.Equal(t, models.StatusCancelByUser, data.Preliminary.Status)
	assert.Equal(t, "canceled by user", data.Preliminary.Message)
}

func TestSepehrVerify(t *testing.T) {
	t.Run("settled", func(t *testing.T) {
		var got sepehrAdviceRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(sepehrAdviceResponse{Status: "OK", ReturnID: "R-1"})
		}))
		defer server.Close()

		s := newTestSepehr(t, Settings{"VERIFY_API_URL": server.URL})
		bank := &models.Bank{TrackingCode: "2000", ReferenceNumber: "TOKEN123"}

		result, err := s.Verify(context.Background(), bank, &CallbackData{TrackingCode: "2000"})
		require.NoError(t, err)
		assert.Equal(t, "TOKEN123", got.DigitalReceipt)
		assert.Equal(t, models.StatusComplete, result.Status)
		assert.Equal(t, "R-1", result.Extra["ReturnId"])
	})

	t.Run("not settled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(sepehrAdviceResponse{Status: "NOK", Message: "receipt not found"})
		}))
		defer server.Close()

		s := newTestSepehr(t, Settings{"VERIFY_API_URL": server.URL})
		bank := &models.Bank{TrackingCode: "2000", ReferenceNumber: "TOKEN123"}

		result, err := s.Verify(context.Background(), bank, &CallbackData{TrackingCode: "2000"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelByUser, result.Status)
		assert.Equal(t, "receipt not found", result.Message)
	})
}
