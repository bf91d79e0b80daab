package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voucher-storefront/internal/model"
	"voucher-storefront/pkg/logger"
)

type fakePayments struct {
	createOrder   func(ctx context.Context, req PaymentRequest) (*PaymentOrder, error)
	paymentStatus func(ctx context.Context, referenceID string) (*PaymentState, error)
}

func (f *fakePayments) CreateOrder(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
	return f.createOrder(ctx, req)
}

func (f *fakePayments) PaymentStatus(ctx context.Context, referenceID string) (*PaymentState, error) {
	return f.paymentStatus(ctx, referenceID)
}

type fakeFulfillment struct {
	placeOrder  func(ctx context.Context, req FulfillmentRequest) (*FulfillmentOrder, error)
	checkStatus func(ctx context.Context, gatewayTransactionID string) (*FulfillmentStatus, error)
}

func (f *fakeFulfillment) PlaceOrder(ctx context.Context, req FulfillmentRequest) (*FulfillmentOrder, error) {
	return f.placeOrder(ctx, req)
}

func (f *fakeFulfillment) CheckStatus(ctx context.Context, gatewayTransactionID string) (*FulfillmentStatus, error) {
	return f.checkStatus(ctx, gatewayTransactionID)
}

type memTransactionStore struct {
	mu        sync.Mutex
	byID      map[string]*model.Transaction
	insertErr error
	updateErr error
	updates   int
}

func newMemTransactionStore() *memTransactionStore {
	return &memTransactionStore{byID: map[string]*model.Transaction{}}
}

func (s *memTransactionStore) Insert(ctx context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, existing := range s.byID {
		if existing.ReferenceID == t.ReferenceID {
			return fmt.Errorf("duplicate reference %s", t.ReferenceID)
		}
	}
	cp := *t
	s.byID[t.ID] = &cp
	return nil
}

func (s *memTransactionStore) Get(ctx context.Context, id string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *memTransactionStore) GetByReference(ctx context.Context, referenceID string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byID {
		if t.ReferenceID == referenceID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memTransactionStore) UpdateStatus(ctx context.Context, id string, status model.TransactionStatus, details map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return false, s.updateErr
	}
	t, ok := s.byID[id]
	if !ok || t.Status != model.StatusPending {
		return false, nil
	}
	t.Status = status
	t.Details = details
	s.updates++
	return true, nil
}

func (s *memTransactionStore) ListRecent(ctx context.Context, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Transaction, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memTransactionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type checkoutFixture struct {
	svc          *TransactionService
	products     *memProductStore
	transactions *memTransactionStore
	payments     *fakePayments
	fulfillment  *fakeFulfillment
	now          time.Time
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		products: newMemProductStore(
			model.Product{ID: "TEL10", Type: model.ProductMobileCredit, Name: "Telkomsel 10000", BasePrice: 9500, SellingPrice: 10000, Active: true},
			model.Product{ID: "OLD", Type: model.ProductMobileCredit, Name: "Retired", BasePrice: 9500, SellingPrice: 10000, Active: false},
		),
		transactions: newMemTransactionStore(),
		payments: &fakePayments{
			createOrder: func(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
				return &PaymentOrder{
					OrderID:       "TP-" + req.ReferenceID,
					PaymentURL:    "https://pay/" + req.ReferenceID,
					QRString:      "000201QR",
					QRLink:        "https://qr/" + req.ReferenceID,
					TotalCharged:  req.Amount + 70,
					TotalReceived: req.Amount - 70,
				}, nil
			},
		},
		fulfillment: &fakeFulfillment{
			placeOrder: func(ctx context.Context, req FulfillmentRequest) (*FulfillmentOrder, error) {
				return &FulfillmentOrder{GatewayTransactionID: "DF-" + req.ReferenceID, RawStatus: "Pending"}, nil
			},
		},
		now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewTransactionService(f.products, f.transactions, f.payments, f.fulfillment, CheckoutOptions{}, nil, logger.Discard())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *checkoutFixture) submit(t *testing.T) *model.Transaction {
	t.Helper()
	txn, err := f.svc.SubmitCheckout(t.Context(), model.CheckoutRequest{ProductCode: "TEL10", CustomerID: "081234567890"})
	require.NoError(t, err)
	return txn
}

func TestNewReferenceID(t *testing.T) {
	now := time.UnixMilli(1714557600123)
	ref := NewReferenceID(now)
	assert.Regexp(t, regexp.MustCompile(`^REF1714557600123\d{6}$`), ref)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[NewReferenceID(now)] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestSubmitCheckout_Success(t *testing.T) {
	f := newCheckoutFixture(t)

	var payReq PaymentRequest
	var placeReq FulfillmentRequest
	create := f.payments.createOrder
	f.payments.createOrder = func(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
		payReq = req
		return create(ctx, req)
	}
	place := f.fulfillment.placeOrder
	f.fulfillment.placeOrder = func(ctx context.Context, req FulfillmentRequest) (*FulfillmentOrder, error) {
		placeReq = req
		return place(ctx, req)
	}

	txn := f.submit(t)

	assert.Equal(t, "QRIS", payReq.Method)
	assert.EqualValues(t, 10000, payReq.Amount)
	assert.Equal(t, payReq.ReferenceID, placeReq.ReferenceID)
	assert.Equal(t, "TEL10", placeReq.ProductCode)
	assert.Equal(t, "081234567890", placeReq.CustomerID)

	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, payReq.ReferenceID, txn.ReferenceID)
	assert.Equal(t, "DF-"+txn.ReferenceID, txn.TransactionID)
	assert.Equal(t, model.StatusPending, txn.Status)
	assert.Equal(t, model.ProductMobileCredit, txn.Type)
	assert.Equal(t, "Telkomsel 10000", txn.ProductName)
	assert.EqualValues(t, 10000, txn.Amount)
	assert.Equal(t, "000201QR", txn.QRString)
	assert.Equal(t, "000201QR", txn.PaymentCode)
	assert.Equal(t, "TP-"+txn.ReferenceID, txn.PaymentOrderID)
	require.NotNil(t, txn.ExpiryTime)
	assert.Equal(t, f.now.Add(15*time.Minute), *txn.ExpiryTime)
	assert.EqualValues(t, 10070, txn.Details["totalCharged"])
	assert.EqualValues(t, 9930, txn.Details["totalReceived"])
	assert.Equal(t, "https://qr/"+txn.ReferenceID, txn.Details["qrLink"])

	stored, err := f.transactions.Get(t.Context(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, txn.ReferenceID, stored.ReferenceID)
}

func TestSubmitCheckout_PaymentDeclinedPersistsNothing(t *testing.T) {
	f := newCheckoutFixture(t)
	placed := false
	f.payments.createOrder = func(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
		return nil, paymentError("create order", errors.New("gateway declined order"))
	}
	f.fulfillment.placeOrder = func(ctx context.Context, req FulfillmentRequest) (*FulfillmentOrder, error) {
		placed = true
		return nil, nil
	}

	txn, err := f.svc.SubmitCheckout(t.Context(), model.CheckoutRequest{ProductCode: "TEL10", CustomerID: "0812"})
	assert.Nil(t, txn)
	assert.ErrorIs(t, err, ErrPayment)
	assert.False(t, placed)
	assert.Zero(t, f.transactions.count())
}

func TestSubmitCheckout_PaymentTransportFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	f.payments.createOrder = func(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
		return nil, transportError("order", errors.New("timeout"))
	}

	_, err := f.svc.SubmitCheckout(t.Context(), model.CheckoutRequest{ProductCode: "TEL10", CustomerID: "0812"})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, f.transactions.count())
}

func TestSubmitCheckout_FulfillmentFailurePersistsNothing(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fulfillment.placeOrder = func(ctx context.Context, req FulfillmentRequest) (*FulfillmentOrder, error) {
		return nil, errors.New("unexpected")
	}

	_, err := f.svc.SubmitCheckout(t.Context(), model.CheckoutRequest{ProductCode: "TEL10", CustomerID: "0812"})
	assert.ErrorIs(t, err, ErrFulfillment)
	assert.Zero(t, f.transactions.count())
}

func TestSubmitCheckout_StoreFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	f.transactions.insertErr = errors.New("disk full")

	_, err := f.svc.SubmitCheckout(t.Context(), model.CheckoutRequest{ProductCode: "TEL10", CustomerID: "0812"})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestSubmitCheckout_Validation(t *testing.T) {
	f := newCheckoutFixture(t)
	called := false
	f.payments.createOrder = func(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
		called = true
		return nil, nil
	}

	for _, req := range []model.CheckoutRequest{
		{ProductCode: "", CustomerID: "0812"},
		{ProductCode: "TEL10", CustomerID: "  "},
		{ProductCode: "MISSING", CustomerID: "0812"},
		{ProductCode: "OLD", CustomerID: "0812"},
	} {
		_, err := f.svc.SubmitCheckout(t.Context(), req)
		assert.ErrorIs(t, err, ErrValidation, "%+v", req)
	}
	assert.False(t, called)
}

func TestSubmitCheckout_NotifiesBestEffort(t *testing.T) {
	f := newCheckoutFixture(t)
	n := &recordingNotifier{err: errors.New("not connected")}
	f.svc.SetNotifier(n)

	txn := f.submit(t)
	sent := n.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], txn.ReferenceID)
}

func TestRefreshStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want model.TransactionStatus
	}{
		{"Sukses", model.StatusSuccess},
		{"Gagal", model.StatusFailed},
		{"Pending", model.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			f := newCheckoutFixture(t)
			txn := f.submit(t)

			f.fulfillment.checkStatus = func(ctx context.Context, id string) (*FulfillmentStatus, error) {
				assert.Equal(t, txn.TransactionID, id)
				return &FulfillmentStatus{RawStatus: tt.raw, SerialNumber: "SN-1", Message: "msg", RC: "00"}, nil
			}

			got, err := f.svc.RefreshStatus(t.Context(), txn.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, "SN-1", got.Details["serialNumber"])
			assert.Equal(t, "00", got.Details["rc"])
			assert.Equal(t, txn.Details["qrLink"], got.Details["qrLink"])

			stored, _ := f.transactions.Get(t.Context(), txn.ID)
			assert.Equal(t, tt.want, stored.Status)
			assert.Equal(t, txn.ReferenceID, stored.ReferenceID)
			assert.Equal(t, txn.Amount, stored.Amount)
		})
	}
}

func TestRefreshStatus_TerminalIsFinal(t *testing.T) {
	f := newCheckoutFixture(t)
	txn := f.submit(t)

	f.fulfillment.checkStatus = func(ctx context.Context, id string) (*FulfillmentStatus, error) {
		return &FulfillmentStatus{RawStatus: "Sukses"}, nil
	}
	_, err := f.svc.RefreshStatus(t.Context(), txn.ID)
	require.NoError(t, err)

	checked := false
	f.fulfillment.checkStatus = func(ctx context.Context, id string) (*FulfillmentStatus, error) {
		checked = true
		return &FulfillmentStatus{RawStatus: "Gagal"}, nil
	}
	got, err := f.svc.RefreshStatus(t.Context(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.False(t, checked)
	assert.Equal(t, 1, f.transactions.updates)
}

func TestRefreshStatus_FailuresLeaveRecordUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		check   func(ctx context.Context, id string) (*FulfillmentStatus, error)
		wantErr error
	}{
		{
			name: "gateway down",
			check: func(ctx context.Context, id string) (*FulfillmentStatus, error) {
				return nil, transportError("status", errors.New("refused"))
			},
			wantErr: ErrTransport,
		},
		{
			name: "unknown status",
			check: func(ctx context.Context, id string) (*FulfillmentStatus, error) {
				return &FulfillmentStatus{RawStatus: "Refund"}, nil
			},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t)
			txn := f.submit(t)
			f.fulfillment.checkStatus = tt.check

			_, err := f.svc.RefreshStatus(t.Context(), txn.ID)
			assert.ErrorIs(t, err, tt.wantErr)

			stored, _ := f.transactions.Get(t.Context(), txn.ID)
			assert.Equal(t, model.StatusPending, stored.Status)
			assert.Equal(t, txn.Details, stored.Details)
			assert.Zero(t, f.transactions.updates)
		})
	}
}

func TestRefreshStatus_StoreFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	txn := f.submit(t)
	f.fulfillment.checkStatus = func(ctx context.Context, id string) (*FulfillmentStatus, error) {
		return &FulfillmentStatus{RawStatus: "Sukses"}, nil
	}
	f.transactions.updateErr = errors.New("locked")

	_, err := f.svc.RefreshStatus(t.Context(), txn.ID)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestRefreshStatus_NotFound(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.RefreshStatus(t.Context(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookups(t *testing.T) {
	f := newCheckoutFixture(t)
	first := f.submit(t)
	f.now = f.now.Add(time.Minute)
	second := f.submit(t)

	got, err := f.svc.FindByReference(t.Context(), second.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = f.svc.FindByReference(t.Context(), "REF0")
	assert.ErrorIs(t, err, ErrNotFound)

	recent, err := f.svc.RecentTransactions(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, first.ID, recent[1].ID)

	recent, err = f.svc.RecentTransactions(t.Context(), 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestPaymentStatus(t *testing.T) {
	f := newCheckoutFixture(t)
	txn := f.submit(t)
	f.payments.paymentStatus = func(ctx context.Context, ref string) (*PaymentState, error) {
		assert.Equal(t, txn.ReferenceID, ref)
		return &PaymentState{ReferenceID: ref, Status: "paid"}, nil
	}

	state, err := f.svc.PaymentStatus(t.Context(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", state.Status)

	_, err = f.svc.PaymentStatus(t.Context(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
