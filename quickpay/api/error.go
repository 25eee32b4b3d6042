package api

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/alapierre/go-quickpay/quickpay/model"
)

// RequestError is a failed HTTP exchange. StatusCode 0 means the request
// never produced a response (connection error, timeout). Detail is set
// when the response body parsed as a provider error document.
type RequestError struct {
	StatusCode int
	Body       string
	Detail     *model.ErrorResponse
	Err        error
}

func (r *RequestError) Error() string {
	if r.StatusCode == 0 {
		return fmt.Sprintf("request failed: %v", r.Err)
	}
	if r.Detail != nil {
		return fmt.Sprintf("status: %d %s: %s", r.StatusCode, r.Detail.Type, r.Detail.Detail)
	}
	return fmt.Sprintf("status: %d err: %v message: %s", r.StatusCode, r.Err, r.Body)
}

func (r *RequestError) Unwrap() error { return r.Err }

// Transient reports whether the failure is worth retrying: network errors
// and 5xx responses. 4xx responses reject the request itself.
func (r *RequestError) Transient() bool {
	return r.StatusCode == 0 || r.StatusCode >= 500
}

// IsTransient classifies any error for retry purposes.
func IsTransient(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Transient()
	}
	return false
}

// RejectedError is a payment creation request refused by the provider.
// The payload is at fault; retrying cannot help.
type RejectedError struct {
	StatusCode int
	Body       string
	Detail     *model.ErrorResponse
}

func (e *RejectedError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("payment rejected by provider (status %d) %s: %s", e.StatusCode, e.Detail.Type, e.Detail.Detail)
	}
	return fmt.Sprintf("payment rejected by provider (status %d): %s", e.StatusCode, e.Body)
}

// LostPaymentError means the provider returned 404 for a payment id it
// itself assigned earlier. That is a provider-side anomaly, not a blip.
type LostPaymentError struct {
	PaymentID string
}

func (e *LostPaymentError) Error() string {
	return fmt.Sprintf("provider no longer knows payment %s", e.PaymentID)
}
