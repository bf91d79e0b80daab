package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"voucher-storefront/internal/metrics"
	"voucher-storefront/internal/model"
	"voucher-storefront/pkg/logger"
)

const (
	defaultCheckoutMethod = "QRIS"
	defaultCheckoutExpiry = 15 * time.Minute

	defaultRecentLimit = 5
	maxRecentLimit     = 100
)

// CheckoutOptions tunes checkout submission
type CheckoutOptions struct {
	DefaultMethod string
	Expiry        time.Duration
}

// TransactionService runs checkouts: payment order, then fulfillment
// order, then the pending record. It also resolves pending records
// against the fulfillment gateway.
type TransactionService struct {
	products     ProductStore
	transactions TransactionStore
	payments     PaymentGateway
	fulfillment  FulfillmentGateway
	notifier     Notifier
	opts         CheckoutOptions
	metrics      metrics.Collector
	logger       *logger.Logger

	now         func() time.Time
	referenceID func(time.Time) string
}

// NewTransactionService creates a new transaction service
func NewTransactionService(products ProductStore, transactions TransactionStore, payments PaymentGateway, fulfillment FulfillmentGateway, opts CheckoutOptions, m metrics.Collector, log *logger.Logger) *TransactionService {
	if opts.DefaultMethod == "" {
		opts.DefaultMethod = defaultCheckoutMethod
	}
	if opts.Expiry <= 0 {
		opts.Expiry = defaultCheckoutExpiry
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &TransactionService{
		products:     products,
		transactions: transactions,
		payments:     payments,
		fulfillment:  fulfillment,
		notifier:     NopNotifier{},
		opts:         opts,
		metrics:      m,
		logger:       log,
		now:          time.Now,
		referenceID:  NewReferenceID,
	}
}

// SetNotifier sets where new checkout notices are sent
func (s *TransactionService) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// NewReferenceID returns REF followed by the unix millisecond time and six
// random digits
func NewReferenceID(now time.Time) string {
	return fmt.Sprintf("REF%d%06d", now.UnixMilli(), rand.IntN(1_000_000))
}

// SubmitCheckout charges for and orders one product. Nothing is stored
// unless both gateways accept; a payment order created before a
// fulfillment failure is left as is.
func (s *TransactionService) SubmitCheckout(ctx context.Context, req model.CheckoutRequest) (*model.Transaction, error) {
	start := time.Now()

	product, err := s.checkoutProduct(ctx, req)
	if err != nil {
		s.metrics.RecordCheckout("rejected", time.Since(start))
		return nil, err
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = s.opts.DefaultMethod
	}
	customerID := strings.TrimSpace(req.CustomerID)

	now := s.now()
	ref := s.referenceID(now)
	log := s.logger.WithRefID(ref).WithSKU(product.ID)

	order, err := s.payments.CreateOrder(ctx, PaymentRequest{
		ReferenceID: ref,
		Amount:      product.SellingPrice,
		Method:      method,
	})
	if err != nil {
		s.metrics.RecordCheckout("payment_failed", time.Since(start))
		log.Error("Payment order failed", "error", err)
		return nil, classify(err, KindPayment, "checkout payment")
	}

	placed, err := s.fulfillment.PlaceOrder(ctx, FulfillmentRequest{
		ProductCode: product.ID,
		CustomerID:  customerID,
		ReferenceID: ref,
	})
	if err != nil {
		s.metrics.RecordCheckout("fulfillment_failed", time.Since(start))
		log.Error("Fulfillment order failed, payment order left open",
			"error", err,
			"payment_order_id", order.OrderID,
		)
		return nil, classify(err, KindFulfillment, "checkout fulfillment")
	}

	expiry := now.Add(s.opts.Expiry)
	txn := &model.Transaction{
		ID:             uuid.NewString(),
		ReferenceID:    ref,
		TransactionID:  placed.GatewayTransactionID,
		CustomerID:     customerID,
		Type:           product.Type,
		ProductCode:    product.ID,
		ProductName:    product.Name,
		Amount:         product.SellingPrice,
		Status:         model.StatusPending,
		QRString:       order.QRString,
		PaymentOrderID: order.OrderID,
		PaymentCode:    order.QRString,
		PaymentURL:     order.PaymentURL,
		Details: map[string]any{
			"totalCharged":  order.TotalCharged,
			"totalReceived": order.TotalReceived,
			"qrLink":        order.QRLink,
		},
		ExpiryTime: &expiry,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.transactions.Insert(ctx, txn); err != nil {
		s.metrics.RecordCheckout("store_failed", time.Since(start))
		log.Error("Failed to save transaction after both gateways accepted",
			"error", err,
			"payment_order_id", order.OrderID,
			"gateway_trx_id", placed.GatewayTransactionID,
		)
		return nil, persistenceError("checkout", fmt.Errorf("failed to save transaction: %w", err))
	}

	s.metrics.RecordCheckout("success", time.Since(start))
	log.Info("Checkout submitted",
		"transaction_id", txn.ID,
		"customer_id", customerID,
		"amount", txn.Amount,
		"method", method,
	)

	notice := fmt.Sprintf("New checkout %s: %s for %s (Rp%d)", ref, product.Name, customerID, txn.Amount)
	if err := s.notifier.Notify(ctx, notice); err != nil {
		log.Warn("Failed to send checkout notice", "error", err)
	}

	return txn, nil
}

func (s *TransactionService) checkoutProduct(ctx context.Context, req model.CheckoutRequest) (*model.Product, error) {
	code := strings.TrimSpace(req.ProductCode)
	if code == "" {
		return nil, validationError("checkout", errors.New("product_code is required"))
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, validationError("checkout", errors.New("customer_id is required"))
	}

	product, err := s.products.Get(ctx, code)
	if err != nil {
		return nil, persistenceError("checkout", fmt.Errorf("failed to load product: %w", err))
	}
	if product == nil || !product.Active {
		return nil, validationError("checkout", fmt.Errorf("product %s is not available", code))
	}
	return product, nil
}

// RefreshStatus re-checks a pending transaction with the fulfillment
// gateway. Terminal transactions are returned untouched. On any failure
// the stored record is left unchanged.
func (s *TransactionService) RefreshStatus(ctx context.Context, id string) (*model.Transaction, error) {
	txn, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status.Terminal() {
		return txn, nil
	}

	log := s.logger.WithRefID(txn.ReferenceID)

	result, err := s.fulfillment.CheckStatus(ctx, txn.TransactionID)
	if err != nil {
		log.Warn("Status check failed", "error", err)
		return nil, classify(err, KindFulfillment, "refresh status")
	}

	status, err := TranslateStatus(result.RawStatus)
	if err != nil {
		log.Error("Unrecognized fulfillment status", "raw_status", result.RawStatus)
		return nil, err
	}

	details := make(map[string]any, len(txn.Details)+3)
	for k, v := range txn.Details {
		details[k] = v
	}
	details["serialNumber"] = result.SerialNumber
	details["message"] = result.Message
	details["rc"] = result.RC

	updated, err := s.transactions.UpdateStatus(ctx, txn.ID, status, details)
	if err != nil {
		return nil, persistenceError("refresh status", fmt.Errorf("failed to update transaction: %w", err))
	}
	if !updated {
		// resolved by a concurrent refresh
		return s.GetTransaction(ctx, id)
	}

	s.metrics.RecordStatusRefresh(string(status))
	if status != model.StatusPending {
		log.Info("Transaction resolved", "status", status, "rc", result.RC)
	}

	txn.Status = status
	txn.Details = details
	txn.UpdatedAt = s.now()
	return txn, nil
}

// GetTransaction loads a transaction by id
func (s *TransactionService) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	txn, err := s.transactions.Get(ctx, id)
	if err != nil {
		return nil, persistenceError("get transaction", err)
	}
	if txn == nil {
		return nil, notFoundError("get transaction", fmt.Errorf("transaction %s not found", id))
	}
	return txn, nil
}

// FindByReference loads a transaction by its checkout reference id
func (s *TransactionService) FindByReference(ctx context.Context, referenceID string) (*model.Transaction, error) {
	txn, err := s.transactions.GetByReference(ctx, referenceID)
	if err != nil {
		return nil, persistenceError("find transaction", err)
	}
	if txn == nil {
		return nil, notFoundError("find transaction", fmt.Errorf("reference %s not found", referenceID))
	}
	return txn, nil
}

// RecentTransactions lists the newest transactions. limit defaults to 5
// and is capped at 100.
func (s *TransactionService) RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	txns, err := s.transactions.ListRecent(ctx, limit)
	if err != nil {
		return nil, persistenceError("recent transactions", err)
	}
	return txns, nil
}

// PaymentStatus asks the payment gateway about a transaction's payment.
// Nothing is written.
func (s *TransactionService) PaymentStatus(ctx context.Context, id string) (*PaymentState, error) {
	txn, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	state, err := s.payments.PaymentStatus(ctx, txn.ReferenceID)
	if err != nil {
		return nil, classify(err, KindPayment, "payment status")
	}
	return state, nil
}

// classify leaves classified errors alone and wraps the rest as kind
func classify(err error, kind Kind, op string) error {
	if KindOf(err) != "" {
		return err
	}
	return newError(kind, op, err)
}
