package commands

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/alapierre/go-quickpay/quickpay"
	"github.com/alapierre/go-quickpay/quickpay/api"
	"github.com/alapierre/go-quickpay/quickpay/payment"
	"github.com/alapierre/go-quickpay/quickpay/sign"
)

// Process exit codes, one per failure class.
const (
	codeOther      = 1
	codeValidation = 2
	codeAuth       = 3
	codeRejected   = 4
	codeTimeout    = 5
)

// terminalError is a run that ended in a provider-reported non-success
// terminal state.
type terminalError struct {
	result *quickpay.Result
}

func (e *terminalError) Error() string {
	return fmt.Sprintf("payment %s ended %s (provider status %s)",
		e.result.PaymentID, e.result.State, e.result.Status)
}

// Code maps an error to the process exit code.
func Code(err error) int {
	var (
		validation *payment.ValidationError
		signErr    *sign.SignError
		authErr    *quickpay.AuthError
		rejected   *api.RejectedError
		terminal   *terminalError
	)

	switch {
	case errors.As(err, &validation):
		return codeValidation
	case errors.As(err, &signErr), errors.As(err, &authErr):
		return codeAuth
	case errors.As(err, &rejected), errors.Is(err, quickpay.ErrAuthorizationDenied):
		return codeRejected
	case errors.As(err, &terminal):
		return codeRejected
	case errors.Is(err, quickpay.ErrPollTimeout), errors.Is(err, quickpay.ErrAuthorizationTimeout):
		return codeTimeout
	default:
		return codeOther
	}
}
