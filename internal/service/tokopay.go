package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"voucher-storefront/internal/config"
	"voucher-storefront/internal/metrics"
	"voucher-storefront/internal/model"
	"voucher-storefront/pkg/logger"
)

const gatewayTokoPay = "tokopay"

// PaymentRequest asks the payment gateway for a new order
type PaymentRequest struct {
	ReferenceID string
	Amount      int64
	Method      string
}

// PaymentOrder is a created payment order
type PaymentOrder struct {
	OrderID       string
	PaymentURL    string
	QRString      string
	QRLink        string
	TotalCharged  int64
	TotalReceived int64
}

// PaymentState is the payment gateway's view of an order
type PaymentState struct {
	ReferenceID string  `json:"reference_id"`
	Status      string  `json:"status"`
	PaidAt      *string `json:"paid_at,omitempty"`
}

// TokoPayService creates and looks up QRIS payment orders
type TokoPayService struct {
	httpClient *http.Client
	config     *config.TokoPayConfig
	breaker    *gatewayBreaker
	logger     *logger.Logger
}

// NewTokoPayService creates a new TokoPay client
func NewTokoPayService(cfg *config.TokoPayConfig, bs BreakerSettings, m metrics.Collector, log *logger.Logger) *TokoPayService {
	return &TokoPayService{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:  cfg,
		breaker: newGatewayBreaker(gatewayTokoPay, bs, m, log),
		logger:  log,
	}
}

// CreateOrder requests a payment order. Any non-success answer from the
// gateway is a PaymentError.
func (s *TokoPayService) CreateOrder(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
	if s.config.MerchantID == "" || s.config.Secret == "" {
		return nil, credentialError("create order", errors.New("merchant id and secret are required"))
	}
	if req.Amount <= 0 {
		return nil, validationError("create order", fmt.Errorf("invalid amount %d", req.Amount))
	}

	q := s.credentials()
	q.Set("ref_id", req.ReferenceID)
	q.Set("nominal", strconv.FormatInt(req.Amount, 10))
	q.Set("metode", req.Method)

	var resp model.TokoPayOrderResponse
	err := s.breaker.do("order", func() error {
		return s.get(ctx, "/v1/order", "order", q, &resp)
	})
	if err != nil {
		return nil, err
	}

	if !statusOK(resp.Status) {
		return nil, paymentError("create order", fmt.Errorf("gateway declined order: %s", resp.Message))
	}

	return &PaymentOrder{
		OrderID:       resp.Data.TrxID,
		PaymentURL:    resp.Data.PayURL,
		QRString:      resp.Data.QRString,
		QRLink:        resp.Data.QRLink,
		TotalCharged:  resp.Data.TotalBayar,
		TotalReceived: resp.Data.TotalDiterima,
	}, nil
}

// PaymentStatus looks up the payment state of a reference id
func (s *TokoPayService) PaymentStatus(ctx context.Context, referenceID string) (*PaymentState, error) {
	if s.config.MerchantID == "" || s.config.Secret == "" {
		return nil, credentialError("payment status", errors.New("merchant id and secret are required"))
	}

	q := s.credentials()
	q.Set("ref_id", referenceID)

	var resp model.TokoPayStatusResponse
	err := s.breaker.do("status", func() error {
		return s.get(ctx, "/v1/status", "payment status", q, &resp)
	})
	if err != nil {
		return nil, err
	}

	if !statusOK(resp.Status) {
		return nil, paymentError("payment status", fmt.Errorf("gateway declined lookup: %s", resp.Message))
	}

	state := &PaymentState{
		ReferenceID: resp.Data.RefID,
		Status:      strings.ToLower(resp.Data.Status),
		PaidAt:      resp.Data.PaymentTime,
	}
	if state.ReferenceID == "" {
		state.ReferenceID = referenceID
	}
	return state, nil
}

func (s *TokoPayService) credentials() url.Values {
	q := url.Values{}
	q.Set("merchant", s.config.MerchantID)
	q.Set("secret", s.config.Secret)
	return q
}

// get performs the HTTP request and decodes the JSON body into out
func (s *TokoPayService) get(ctx context.Context, path, op string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return transportError(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "voucher-storefront/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// the URL carries the secret, keep it out of the error text
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return transportError(op, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transportError(op, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return transportError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// statusOK accepts both "Success" and true, the two shapes the gateway uses
func statusOK(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("true")) {
		return true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return strings.EqualFold(s, "success")
}
