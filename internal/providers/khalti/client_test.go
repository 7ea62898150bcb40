package khalti

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
	"server/internal/payments"
)

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testDonation() *domain.Donation {
	return &domain.Donation{
		ID:         "11112222-3333-4444-5555-666677778888",
		Amount:     mustDecimal("500.00"),
		Currency:   "NPR",
		DonorName:  "Ram Thapa",
		DonorEmail: "ram@example.org",
		DonorPhone: "9800000000",
		Status:     domain.StatusPending,
	}
}

func TestInitiate_MockModeBypassesGateway(t *testing.T) {
	client := New(Options{PublicBaseURL: "http://localhost:8080", Logger: zerolog.Nop()})

	result, err := client.Initiate(context.Background(), testDonation(), payments.ModeMock)
	require.NoError(t, err)

	assert.Equal(t, "khalti:mock-11112222-3333-4444-5555-666677778888", result.Reference)
	assert.Contains(t, result.RedirectURL, "pidx=mock-11112222")
}

func TestInitiate_SendsPaisaWithKeyAuth(t *testing.T) {
	var got initiateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/epayment/initiate/", r.URL.Path)
		assert.Equal(t, "Key test_secret_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(initiateResponse{
			Pidx:       "bZQLD9wRVWo4CdESSfuDYK",
			PaymentURL: "https://test-pay.khalti.com/?pidx=bZQLD9wRVWo4CdESSfuDYK",
		})
	}))
	defer srv.Close()

	client := New(Options{
		SecretKey:     "test_secret_key",
		BaseURL:       srv.URL,
		PublicBaseURL: "https://give.example.org",
		Logger:        zerolog.Nop(),
	})

	result, err := client.Initiate(context.Background(), testDonation(), payments.ModeLive)
	require.NoError(t, err)

	// Rupees converted to paisa.
	assert.Equal(t, int64(50000), got.Amount)
	assert.Equal(t, "11112222-3333-4444-5555-666677778888", got.PurchaseOrderID)
	assert.Equal(t, "Ram Thapa", got.CustomerInfo.Name)
	assert.Equal(t, "khalti:bZQLD9wRVWo4CdESSfuDYK", result.Reference)
	assert.Equal(t, "https://test-pay.khalti.com/?pidx=bZQLD9wRVWo4CdESSfuDYK", result.RedirectURL)
}

func TestInitiate_GatewayDetailSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Amount should be greater than Rs. 10"}`))
	}))
	defer srv.Close()

	client := New(Options{SecretKey: "k", BaseURL: srv.URL, Logger: zerolog.Nop()})

	_, err := client.Initiate(context.Background(), testDonation(), payments.ModeLive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Amount should be greater")
}

func TestInitiate_WithoutCredentials(t *testing.T) {
	client := New(Options{Logger: zerolog.Nop()})
	_, err := client.Initiate(context.Background(), testDonation(), payments.ModeLive)
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.False(t, client.Configured())
}

func TestLookup_MapsVerifiedState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/epayment/lookup/", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bZQLD9wRVWo4CdESSfuDYK", body["pidx"])
		_, _ = w.Write([]byte(`{
			"pidx": "bZQLD9wRVWo4CdESSfuDYK",
			"total_amount": 50000,
			"status": "Completed",
			"transaction_id": "GFq9PFS7b2iYvL8Lir9oXe",
			"refunded": false
		}`))
	}))
	defer srv.Close()

	client := New(Options{SecretKey: "k", BaseURL: srv.URL, Logger: zerolog.Nop()})

	result, err := client.Lookup(context.Background(), "bZQLD9wRVWo4CdESSfuDYK")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, int64(50000), result.TotalAmount)
	assert.True(t, AmountFromPaisa(result.TotalAmount).Equal(mustDecimal("500")))
}

func TestLookup_MissingStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pidx":"x"}`))
	}))
	defer srv.Close()

	client := New(Options{SecretKey: "k", BaseURL: srv.URL, Logger: zerolog.Nop()})
	_, err := client.Lookup(context.Background(), "x")
	require.Error(t, err)
}

func TestAmountFromPaisa(t *testing.T) {
	assert.True(t, AmountFromPaisa(2550).Equal(mustDecimal("25.50")))
	assert.True(t, AmountFromPaisa(1).Equal(mustDecimal("0.01")))
	assert.True(t, AmountFromPaisa(0).Equal(mustDecimal("0")))
}
