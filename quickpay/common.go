package quickpay

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "quickpay")

var (
	// ErrAuthorizationTimeout means the user never came back from the bank.
	ErrAuthorizationTimeout = errors.New("authorization was not completed in time")
	// ErrAuthorizationDenied means the user explicitly refused at the bank.
	ErrAuthorizationDenied = errors.New("authorization denied by user")
	// ErrPollTimeout means the payment was still pending at the overall deadline.
	ErrPollTimeout = errors.New("payment did not reach a terminal status in time")
	// ErrFlowFinished guards against reusing a flow past its terminal state.
	ErrFlowFinished = errors.New("payment flow already reached a terminal state")
)

// AuthError is a credential or client-configuration problem reported by
// the token endpoint. Retrying with the same credentials cannot help.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (status %d): %s", e.Status, e.Body)
}

type Environment int

const (
	Sandbox Environment = iota
	Live
)

func (e Environment) AuthBaseURL() string {
	switch e {
	case Live:
		return "https://auth.truelayer.com"
	default:
		return "https://auth.truelayer-sandbox.com"
	}
}

func (e Environment) PaymentsBaseURL() string {
	switch e {
	case Live:
		return "https://api.truelayer.com"
	default:
		return "https://api.truelayer-sandbox.com"
	}
}

func (e Environment) Name() string {
	if e == Live {
		return "live"
	}
	return "sandbox"
}

func (e *Environment) UnmarshalText(text []byte) error {
	val := strings.ToLower(strings.TrimSpace(string(text)))

	switch val {
	case "", "sandbox":
		*e = Sandbox
	case "live":
		*e = Live
	default:
		return fmt.Errorf("invalid environment: %q (allowed: sandbox, live)", val)
	}
	return nil
}
