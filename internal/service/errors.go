package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for propagation and HTTP mapping
type Kind string

const (
	KindTransport   Kind = "transport"
	KindValidation  Kind = "validation"
	KindCredential  Kind = "credential"
	KindPersistence Kind = "persistence"
	KindPayment     Kind = "payment"
	KindFulfillment Kind = "fulfillment"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
)

// Sentinels for errors.Is matching against a Kind
var (
	ErrTransport   = &Error{Kind: KindTransport}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrCredential  = &Error{Kind: KindCredential}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrPayment     = &Error{Kind: KindPayment}
	ErrFulfillment = &Error{Kind: KindFulfillment}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrConflict    = &Error{Kind: KindConflict}
)

// Skip reasons returned by the classifier (never counted as sync errors)
// and the single-run guard rejection.
var (
	ErrInactiveItem     = errors.New("catalog item inactive")
	ErrUnmappedCategory = errors.New("catalog category not supported")
	ErrSyncInProgress   = &Error{Kind: KindConflict, Op: "sync", Err: errors.New("catalog sync already running")}
)

func isSkip(err error) bool {
	return errors.Is(err, ErrInactiveItem) || errors.Is(err, ErrUnmappedCategory)
}

// Error is a classified failure raised by the core
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op) && t.Err == nil
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func transportError(op string, err error) error   { return newError(KindTransport, op, err) }
func validationError(op string, err error) error  { return newError(KindValidation, op, err) }
func credentialError(op string, err error) error  { return newError(KindCredential, op, err) }
func persistenceError(op string, err error) error { return newError(KindPersistence, op, err) }
func paymentError(op string, err error) error     { return newError(KindPayment, op, err) }
func fulfillmentError(op string, err error) error { return newError(KindFulfillment, op, err) }
func notFoundError(op string, err error) error    { return newError(KindNotFound, op, err) }

// KindOf returns the Kind of the first classified error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
