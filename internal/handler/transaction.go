package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"voucher-storefront/internal/model"
	"voucher-storefront/internal/service"
	"voucher-storefront/pkg/logger"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024

	maxCheckoutBody = 4096
)

// CheckoutService is the transaction orchestrator as seen by the HTTP layer
type CheckoutService interface {
	SubmitCheckout(ctx context.Context, req model.CheckoutRequest) (*model.Transaction, error)
	RefreshStatus(ctx context.Context, id string) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	FindByReference(ctx context.Context, referenceID string) (*model.Transaction, error)
	RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error)
	PaymentStatus(ctx context.Context, id string) (*service.PaymentState, error)
}

// TransactionHandler handles checkout and transaction requests
type TransactionHandler struct {
	transactions CheckoutService
	logger       *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(transactions CheckoutService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactions: transactions,
		logger:       log,
	}
}

// Checkout handles POST /api/v1/checkout
func (h *TransactionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckoutBody)).Decode(&req); err != nil {
		sendError(w, "ERR_INVALID_REQUEST", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	txn, err := h.transactions.SubmitCheckout(r.Context(), req)
	if err != nil {
		code, status := mapError(err)
		if status == http.StatusBadRequest {
			sendError(w, code, err.Error(), status)
			return
		}
		h.logger.Error("Checkout failed",
			"error", err,
			"product_code", req.ProductCode,
		)
		sendError(w, code, "Payment processing failed, please try again later", status)
		return
	}

	sendSuccess(w, http.StatusCreated, "Checkout created, complete the payment", txn)
}

// Recent handles GET /api/v1/transactions?limit=
func (h *TransactionHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendError(w, "ERR_INVALID_PARAMETER", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	txns, err := h.transactions.RecentTransactions(r.Context(), limit)
	if err != nil {
		h.respondError(w, err, "Failed to list transactions")
		return
	}
	sendSuccess(w, http.StatusOK, "Transactions retrieved", txns)
}

// Get handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	txn, err := h.transactions.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err, "Failed to load transaction")
		return
	}
	sendSuccess(w, http.StatusOK, "Transaction retrieved", txn)
}

// GetByReference handles GET /api/v1/transactions/reference/{ref}
func (h *TransactionHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	txn, err := h.transactions.FindByReference(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		h.respondError(w, err, "Failed to load transaction")
		return
	}
	sendSuccess(w, http.StatusOK, "Transaction retrieved", txn)
}

// Refresh handles POST /api/v1/transactions/{id}/refresh
func (h *TransactionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	txn, err := h.transactions.RefreshStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err, "Failed to check transaction status")
		return
	}
	sendSuccess(w, http.StatusOK, "Transaction status "+string(txn.Status), txn)
}

// Payment handles GET /api/v1/transactions/{id}/payment
func (h *TransactionHandler) Payment(w http.ResponseWriter, r *http.Request) {
	state, err := h.transactions.PaymentStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err, "Failed to check payment status")
		return
	}
	sendSuccess(w, http.StatusOK, "Payment status retrieved", state)
}

// QRCode handles GET /api/v1/transactions/{id}/qr.png?size=
func (h *TransactionHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minQRSize || n > maxQRSize {
			sendError(w, "ERR_INVALID_PARAMETER", "size must be between 128 and 1024", http.StatusBadRequest)
			return
		}
		size = n
	}

	txn, err := h.transactions.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err, "Failed to load transaction")
		return
	}
	if txn.QRString == "" {
		sendError(w, "ERR_NOT_FOUND", "Transaction has no QR payload", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(txn.QRString, qrcode.Medium, size)
	if err != nil {
		h.logger.WithRefID(txn.ReferenceID).Error("Failed to render QR code", "error", err)
		sendError(w, "ERR_INTERNAL_SERVER", "Failed to render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// respondError writes err's mapped status. Client errors carry the error
// text; server errors carry fallback and are logged.
func (h *TransactionHandler) respondError(w http.ResponseWriter, err error, fallback string) {
	code, status := mapError(err)
	if status < http.StatusInternalServerError && status != http.StatusPaymentRequired {
		sendError(w, code, err.Error(), status)
		return
	}
	h.logger.Error(fallback, "error", err)
	sendError(w, code, fallback, status)
}
