package model

import "encoding/json"

// PriceListRequest is the Digiflazz price-list payload
type PriceListRequest struct {
	Cmd      string `json:"cmd"`
	Username string `json:"username"`
	Sign     string `json:"sign"`
}

// DigiflazzEnvelope wraps every Digiflazz response. Data is an array on
// a successful price-list call and an object otherwise.
type DigiflazzEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// DigiflazzError is the object Digiflazz returns in place of data on failure
type DigiflazzError struct {
	RC      string `json:"rc"`
	Message string `json:"message"`
}

// TopupRequest places a fulfillment order
type TopupRequest struct {
	Username     string `json:"username"`
	BuyerSKUCode string `json:"buyer_sku_code"`
	CustomerNo   string `json:"customer_no"`
	RefID        string `json:"ref_id"`
	Sign         string `json:"sign"`
	CallbackURL  string `json:"callback_url,omitempty"`
}

// StatusRequest queries a previously placed fulfillment order
type StatusRequest struct {
	Username string `json:"username"`
	Sign     string `json:"sign"`
	TrxID    string `json:"trx_id"`
}

// TopupData is the data object of a topup or status response
type TopupData struct {
	RefID        string      `json:"ref_id"`
	TrxID        string      `json:"trx_id"`
	CustomerNo   string      `json:"customer_no"`
	BuyerSKUCode string      `json:"buyer_sku_code"`
	ProductName  string      `json:"product_name"`
	Message      string      `json:"message"`
	Status       string      `json:"status"`
	RC           string      `json:"rc"`
	SN           string      `json:"sn"`
	Price        PriceString `json:"price"`
}

// TokoPayOrderResponse is the TokoPay /v1/order response
type TokoPayOrderResponse struct {
	Status  json.RawMessage  `json:"status"`
	Message string           `json:"message"`
	Data    TokoPayOrderData `json:"data"`
}

// TokoPayOrderData carries the created payment order
type TokoPayOrderData struct {
	TrxID         string `json:"trx_id"`
	PayURL        string `json:"pay_url"`
	QRLink        string `json:"qr_link"`
	QRString      string `json:"qr_string"`
	TotalBayar    int64  `json:"total_bayar"`
	TotalDiterima int64  `json:"total_diterima"`
}

// TokoPayStatusResponse is the TokoPay /v1/status response
type TokoPayStatusResponse struct {
	Status  json.RawMessage   `json:"status"`
	Message string            `json:"message"`
	Data    TokoPayStatusData `json:"data"`
}

// TokoPayStatusData carries the payment state of one order
type TokoPayStatusData struct {
	RefID       string  `json:"ref_id"`
	Status      string  `json:"status"`
	PaymentTime *string `json:"payment_time"`
}
