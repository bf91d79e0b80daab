package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voucher-storefront/internal/config"
	"voucher-storefront/internal/metrics"
	"voucher-storefront/internal/model"
	"voucher-storefront/pkg/logger"
)

const gatewayDigiflazz = "digiflazz"

// FulfillmentRequest places a voucher order for one checkout
type FulfillmentRequest struct {
	ProductCode string
	CustomerID  string
	ReferenceID string
}

// FulfillmentOrder is the gateway's acknowledgement of a placed order
type FulfillmentOrder struct {
	GatewayTransactionID string
	ProductName          string
	Price                int64
	RawStatus            string
	Message              string
}

// FulfillmentStatus is the gateway's current view of a placed order
type FulfillmentStatus struct {
	GatewayTransactionID string
	ReferenceID          string
	RawStatus            string
	SerialNumber         string
	Message              string
	RC                   string
}

// DigiflazzService talks to the Digiflazz buyer API: price list, topup
// placement and status checks
type DigiflazzService struct {
	httpClient *http.Client
	config     *config.DigiflazzConfig
	breaker    *gatewayBreaker
	logger     *logger.Logger
}

// NewDigiflazzService creates a new Digiflazz client
func NewDigiflazzService(cfg *config.DigiflazzConfig, bs BreakerSettings, m metrics.Collector, log *logger.Logger) *DigiflazzService {
	return &DigiflazzService{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:  cfg,
		breaker: newGatewayBreaker(gatewayDigiflazz, bs, m, log),
		logger:  log,
	}
}

// FetchCatalog downloads the whole prepaid price list. A failed call is
// always an error, never an empty list.
func (s *DigiflazzService) FetchCatalog(ctx context.Context) ([]model.CatalogItem, error) {
	sign, err := Sign(s.config.Username, s.config.APIKey, ActionPriceList)
	if err != nil {
		return nil, err
	}

	payload := model.PriceListRequest{
		Cmd:      "prepaid",
		Username: s.config.Username,
		Sign:     sign,
	}

	var items []model.CatalogItem
	err = s.breaker.do("price-list", func() error {
		data, err := s.post(ctx, "/price-list", payload)
		if err != nil {
			return err
		}
		if !isJSONArray(data) {
			return transportError("price-list", gatewayMessage(data))
		}
		if err := json.Unmarshal(data, &items); err != nil {
			return transportError("price-list", fmt.Errorf("failed to decode price list: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Price list fetched", "items", len(items))
	return items, nil
}

// PlaceOrder requests fulfillment of one product for one customer
func (s *DigiflazzService) PlaceOrder(ctx context.Context, req FulfillmentRequest) (*FulfillmentOrder, error) {
	sign, err := Sign(s.config.Username, s.config.APIKey, ActionTopup)
	if err != nil {
		return nil, err
	}

	payload := model.TopupRequest{
		Username:     s.config.Username,
		BuyerSKUCode: req.ProductCode,
		CustomerNo:   req.CustomerID,
		RefID:        req.ReferenceID,
		Sign:         sign,
		CallbackURL:  s.config.CallbackURL,
	}

	var result model.TopupData
	err = s.breaker.do("topup", func() error {
		return s.postObject(ctx, "/transaction", "topup", payload, &result)
	})
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(result.Status, "Gagal") {
		return nil, fulfillmentError("topup", fmt.Errorf("order rejected: %s (rc %s)", result.Message, result.RC))
	}

	order := &FulfillmentOrder{
		GatewayTransactionID: result.TrxID,
		ProductName:          result.ProductName,
		RawStatus:            result.Status,
		Message:              result.Message,
	}
	if order.GatewayTransactionID == "" {
		order.GatewayTransactionID = req.ReferenceID
	}
	if price, err := ParsePrice(string(result.Price)); err == nil {
		order.Price = price
	}
	return order, nil
}

// CheckStatus re-queries the gateway for a placed order
func (s *DigiflazzService) CheckStatus(ctx context.Context, gatewayTransactionID string) (*FulfillmentStatus, error) {
	sign, err := Sign(s.config.Username, s.config.APIKey, ActionCheckStatus)
	if err != nil {
		return nil, err
	}

	payload := model.StatusRequest{
		Username: s.config.Username,
		Sign:     sign,
		TrxID:    gatewayTransactionID,
	}

	var result model.TopupData
	err = s.breaker.do("status", func() error {
		return s.postObject(ctx, "/transaction", "status", payload, &result)
	})
	if err != nil {
		return nil, err
	}

	return &FulfillmentStatus{
		GatewayTransactionID: result.TrxID,
		ReferenceID:          result.RefID,
		RawStatus:            result.Status,
		SerialNumber:         result.SN,
		Message:              result.Message,
		RC:                   result.RC,
	}, nil
}

// fulfillmentStatuses maps gateway status words to local statuses. Matching
// is exact; anything else is rejected rather than guessed.
var fulfillmentStatuses = map[string]model.TransactionStatus{
	"Sukses":  model.StatusSuccess,
	"Pending": model.StatusPending,
	"Gagal":   model.StatusFailed,
}

// TranslateStatus converts a raw fulfillment status to a TransactionStatus
func TranslateStatus(raw string) (model.TransactionStatus, error) {
	status, ok := fulfillmentStatuses[raw]
	if !ok {
		return "", validationError("translate status", fmt.Errorf("unknown fulfillment status %q", raw))
	}
	return status, nil
}

// postObject posts payload and decodes an object-shaped data field into out
func (s *DigiflazzService) postObject(ctx context.Context, path, op string, payload, out any) error {
	data, err := s.post(ctx, path, payload)
	if err != nil {
		return err
	}
	if !isJSONObject(data) {
		return transportError(op, errors.New("response data is not an object"))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return transportError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// post performs the HTTP request and returns the raw data field
func (s *DigiflazzService) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	op := strings.TrimPrefix(path, "/")

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, transportError(op, fmt.Errorf("failed to marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, transportError(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "voucher-storefront/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, transportError(op, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(op, fmt.Errorf("failed to read response: %w", err))
	}

	var envelope model.DigiflazzEnvelope
	decodeErr := json.Unmarshal(body, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && isJSONObject(envelope.Data) {
			return nil, transportError(op, fmt.Errorf("unexpected status code %d: %w", resp.StatusCode, gatewayMessage(envelope.Data)))
		}
		return nil, transportError(op, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, transportError(op, fmt.Errorf("failed to decode response: %w", decodeErr))
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, transportError(op, errors.New("response has no data"))
	}
	return envelope.Data, nil
}

// gatewayMessage extracts {rc,message} from an error-shaped data object
func gatewayMessage(data json.RawMessage) error {
	var gwErr model.DigiflazzError
	if err := json.Unmarshal(data, &gwErr); err != nil || (gwErr.RC == "" && gwErr.Message == "") {
		return errors.New("unexpected response data")
	}
	return fmt.Errorf("gateway rc %s: %s", gwErr.RC, gwErr.Message)
}

func isJSONArray(data json.RawMessage) bool {
	b := bytes.TrimSpace(data)
	return len(b) > 0 && b[0] == '['
}

func isJSONObject(data json.RawMessage) bool {
	b := bytes.TrimSpace(data)
	return len(b) > 0 && b[0] == '{'
}
