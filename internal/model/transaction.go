package model

import "time"

// TransactionStatus is the lifecycle state of a checkout
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// Terminal reports whether the status can no longer change
func (s TransactionStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Transaction is a persisted checkout record
type Transaction struct {
	ID             string            `json:"id"`
	ReferenceID    string            `json:"reference_id"`
	TransactionID  string            `json:"transaction_id"`
	CustomerID     string            `json:"customer_id"`
	Type           ProductType       `json:"type"`
	ProductCode    string            `json:"product_code"`
	ProductName    string            `json:"product_name"`
	Amount         int64             `json:"amount"`
	Status         TransactionStatus `json:"status"`
	QRString       string            `json:"qr_string,omitempty"`
	PaymentOrderID string            `json:"payment_order_id,omitempty"`
	PaymentCode    string            `json:"payment_code,omitempty"`
	PaymentURL     string            `json:"payment_url,omitempty"`
	Details        map[string]any    `json:"details,omitempty"`
	ExpiryTime     *time.Time        `json:"expiry_time,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CheckoutRequest is the customer's product selection
type CheckoutRequest struct {
	ProductCode string `json:"product_code"`
	CustomerID  string `json:"customer_id"`
	Method      string `json:"method,omitempty"`
}

// APIResponse is the JSON envelope returned by every endpoint
type APIResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError represents error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}
