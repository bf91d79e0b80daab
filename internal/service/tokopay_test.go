package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voucher-storefront/internal/config"
	"voucher-storefront/internal/metrics"
	"voucher-storefront/pkg/logger"
)

func newTestTokoPay(t *testing.T, handler http.HandlerFunc) *TokoPayService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.TokoPayConfig{
		BaseURL:    srv.URL,
		MerchantID: "M123",
		Secret:     "s3cret",
		Timeout:    2 * time.Second,
	}
	return NewTokoPayService(cfg, DefaultBreakerSettings(), metrics.NoOpCollector{}, logger.Discard())
}

func TestTokoPay_CreateOrder(t *testing.T) {
	svc := newTestTokoPay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/order", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "M123", q.Get("merchant"))
		assert.Equal(t, "s3cret", q.Get("secret"))
		assert.Equal(t, "REF1", q.Get("ref_id"))
		assert.Equal(t, "10000", q.Get("nominal"))
		assert.Equal(t, "QRIS", q.Get("metode"))
		w.Write([]byte(`{"status":"Success","message":"ok","data":{"trx_id":"TP-1","pay_url":"https://pay/TP-1","qr_link":"https://qr/TP-1.png","qr_string":"000201","total_bayar":10070,"total_diterima":9930}}`))
	})

	order, err := svc.CreateOrder(t.Context(), PaymentRequest{ReferenceID: "REF1", Amount: 10000, Method: "QRIS"})
	require.NoError(t, err)
	assert.Equal(t, "TP-1", order.OrderID)
	assert.Equal(t, "https://pay/TP-1", order.PaymentURL)
	assert.Equal(t, "000201", order.QRString)
	assert.Equal(t, "https://qr/TP-1.png", order.QRLink)
	assert.EqualValues(t, 10070, order.TotalCharged)
	assert.EqualValues(t, 9930, order.TotalReceived)
}

func TestTokoPay_CreateOrderBooleanStatus(t *testing.T) {
	svc := newTestTokoPay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{"trx_id":"TP-2"}}`))
	})

	order, err := svc.CreateOrder(t.Context(), PaymentRequest{ReferenceID: "REF2", Amount: 5000, Method: "QRIS"})
	require.NoError(t, err)
	assert.Equal(t, "TP-2", order.OrderID)
}

func TestTokoPay_CreateOrderDeclined(t *testing.T) {
	for _, body := range []string{
		`{"status":"Failed","message":"merchant inactive"}`,
		`{"status":false,"message":"bad secret"}`,
		`{"message":"no status"}`,
	} {
		svc := newTestTokoPay(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		order, err := svc.CreateOrder(t.Context(), PaymentRequest{ReferenceID: "REF", Amount: 5000, Method: "QRIS"})
		assert.Nil(t, order)
		assert.ErrorIs(t, err, ErrPayment, body)
	}
}

func TestTokoPay_CreateOrderTransportFailure(t *testing.T) {
	svc := newTestTokoPay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := svc.CreateOrder(t.Context(), PaymentRequest{ReferenceID: "REF", Amount: 5000, Method: "QRIS"})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestTokoPay_ErrorHidesSecret(t *testing.T) {
	cfg := &config.TokoPayConfig{
		BaseURL:    "http://127.0.0.1:1",
		MerchantID: "M123",
		Secret:     "s3cret",
		Timeout:    time.Second,
	}
	svc := NewTokoPayService(cfg, DefaultBreakerSettings(), nil, logger.Discard())

	_, err := svc.CreateOrder(t.Context(), PaymentRequest{ReferenceID: "REF", Amount: 5000, Method: "QRIS"})
	require.ErrorIs(t, err, ErrTransport)
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestTokoPay_CreateOrderValidation(t *testing.T) {
	called := false
	svc := newTestTokoPay(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := svc.CreateOrder(t.Context(), PaymentRequest{ReferenceID: "REF", Amount: 0, Method: "QRIS"})
	assert.ErrorIs(t, err, ErrValidation)

	svc.config.Secret = ""
	_, err = svc.CreateOrder(t.Context(), PaymentRequest{ReferenceID: "REF", Amount: 100, Method: "QRIS"})
	assert.ErrorIs(t, err, ErrCredential)
	assert.False(t, called)
}

func TestTokoPay_PaymentStatus(t *testing.T) {
	svc := newTestTokoPay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/status", r.URL.Path)
		assert.Equal(t, "REF9", r.URL.Query().Get("ref_id"))
		w.Write([]byte(`{"status":"Success","data":{"ref_id":"REF9","status":"PAID","payment_time":"2024-05-01 10:00:00"}}`))
	})

	state, err := svc.PaymentStatus(t.Context(), "REF9")
	require.NoError(t, err)
	assert.Equal(t, "REF9", state.ReferenceID)
	assert.Equal(t, "paid", state.Status)
	require.NotNil(t, state.PaidAt)
	assert.Equal(t, "2024-05-01 10:00:00", *state.PaidAt)
}
