package quickpay

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/alapierre/go-quickpay/quickpay/api"
	"github.com/alapierre/go-quickpay/quickpay/authorize"
	"github.com/alapierre/go-quickpay/quickpay/model"
	"github.com/alapierre/go-quickpay/quickpay/payment"
)

// State of the payment workflow. The zero value is the pre-creation
// state; a flow only enters StateCreated through a successful create
// call and never leaves a terminal state.
type State int

const (
	StateNone State = iota
	StateCreated
	StateAuthorizationRequired
	StateAuthorizing
	StateAuthorized
	StateExecuted
	StateRejected
	StateFailed
	StateCancelled
	StateTimedOut
)

var stateNames = map[State]string{
	StateNone:                  "none",
	StateCreated:               "created",
	StateAuthorizationRequired: "authorization_required",
	StateAuthorizing:           "authorizing",
	StateAuthorized:            "authorized",
	StateExecuted:              "executed",
	StateRejected:              "rejected",
	StateFailed:                "failed",
	StateCancelled:             "cancelled",
	StateTimedOut:              "timed_out",
}

func (s State) String() string { return stateNames[s] }

func (s State) Terminal() bool {
	switch s {
	case StateExecuted, StateRejected, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// TokenSource yields a currently valid bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Authorizer drives the user through the bank authorization link.
type Authorizer interface {
	Authorize(ctx context.Context, authorizationURI string) (authorize.Outcome, error)
}

// FlowOptions are the workflow tunables. All bounds are finite; nothing
// here retries or waits without a limit.
type FlowOptions struct {
	PollInterval time.Duration
	PollDeadline time.Duration
	Retry        RetryPolicy
	PayerName    string
	PayerEmail   string
}

func DefaultFlowOptions() FlowOptions {
	return FlowOptions{
		PollInterval: 2 * time.Second,
		PollDeadline: 5 * time.Minute,
		Retry:        DefaultRetryPolicy(),
	}
}

// Result is the single terminal outcome of a run.
type Result struct {
	State      State
	PaymentID  string
	Status     payment.Status
	FinishedAt *time.Time
}

// Flow orchestrates one payment: authenticate, create, authorize, poll to
// a terminal status. A Flow instance runs once.
type Flow struct {
	tokens      TokenSource
	payments    api.PaymentService
	authorizer  Authorizer
	redirectURI string
	opts        FlowOptions

	state State
}

func NewFlow(tokens TokenSource, payments api.PaymentService, authorizer Authorizer, redirectURI string, opts FlowOptions) *Flow {
	return &Flow{
		tokens:      tokens,
		payments:    payments,
		authorizer:  authorizer,
		redirectURI: redirectURI,
		opts:        opts,
	}
}

func (f *Flow) State() State { return f.state }

// transition refuses to leave a terminal state.
func (f *Flow) transition(to State) error {
	if f.state.Terminal() {
		return ErrFlowFinished
	}
	logger.Debugf("payment flow: %s -> %s", f.state, to)
	f.state = to
	return nil
}

// Run drives the payment to a terminal outcome. Fatal errors abort with a
// nil result; timeouts and user denial finish the flow and return a
// result together with the matching sentinel error.
func (f *Flow) Run(ctx context.Context, req *payment.Request) (*Result, error) {

	if f.state != StateNone {
		return nil, ErrFlowFinished
	}

	// authenticate up front so credential problems surface before any
	// payment call is attempted
	err := retry(ctx, f.opts.Retry, "token exchange", func() error {
		_, err := f.tokens.Token(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	created, err := f.create(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := f.transition(StateCreated); err != nil {
		return nil, err
	}

	status, err := payment.ParseStatus(created.Status)
	if err != nil {
		return nil, err
	}

	result := &Result{PaymentID: created.ID}

	if status == payment.StatusAuthorizationRequired {
		if err := f.transition(StateAuthorizationRequired); err != nil {
			return nil, err
		}

		authURI, err := f.startAuthorization(ctx, created.ID)
		if err != nil {
			return nil, err
		}
		if err := f.transition(StateAuthorizing); err != nil {
			return nil, err
		}

		outcome, err := f.authorizer.Authorize(ctx, authURI)
		if err != nil {
			return nil, err
		}
		switch outcome {
		case authorize.OutcomeTimedOut:
			f.finish(result, StateTimedOut, status, nil)
			return result, ErrAuthorizationTimeout
		case authorize.OutcomeDenied:
			f.finish(result, StateRejected, status, nil)
			return result, ErrAuthorizationDenied
		}
	}

	if err := f.transition(StateAuthorized); err != nil {
		return nil, err
	}

	return f.poll(ctx, result)
}

func (f *Flow) create(ctx context.Context, req *payment.Request) (*model.PaymentResponse, error) {
	// one key per logical payment: a retried create must carry the same
	// key or the provider cannot deduplicate an attempt that went through
	idempotencyKey := uuid.NewString()

	var created *model.PaymentResponse
	err := retry(ctx, f.opts.Retry, "create payment", func() error {
		token, err := f.tokens.Token(ctx)
		if err != nil {
			return err
		}
		created, err = f.payments.Create(ctx, token, idempotencyKey, req.Wire(f.opts.PayerName, f.opts.PayerEmail))
		return err
	})
	return created, err
}

func (f *Flow) startAuthorization(ctx context.Context, paymentID string) (string, error) {
	var res *model.StartAuthorizationFlowResponse
	err := retry(ctx, f.opts.Retry, "start authorization", func() error {
		token, err := f.tokens.Token(ctx)
		if err != nil {
			return err
		}
		res, err = f.payments.StartAuthorization(ctx, token, paymentID, f.redirectURI)
		return err
	})
	if err != nil {
		return "", err
	}

	if res.AuthorizationFlow == nil || res.AuthorizationFlow.Actions.Next.Type != "redirect" ||
		res.AuthorizationFlow.Actions.Next.URI == "" {
		return "", errors.New("provider did not return an authorization link")
	}
	return res.AuthorizationFlow.Actions.Next.URI, nil
}

// poll fetches the payment status at a fixed interval until a terminal
// status or the overall deadline. The deadline is checked before every
// iteration, not only at the start.
func (f *Flow) poll(ctx context.Context, result *Result) (*Result, error) {

	deadline := time.Now().Add(f.opts.PollDeadline)

	for {
		if !time.Now().Before(deadline) {
			f.finish(result, StateTimedOut, result.Status, nil)
			return result, ErrPollTimeout
		}

		var res *model.PaymentStatusResponse
		err := retry(ctx, f.opts.Retry, "payment status", func() error {
			token, err := f.tokens.Token(ctx)
			if err != nil {
				return err
			}
			res, err = f.payments.Status(ctx, token, result.PaymentID)
			return err
		})
		if err != nil {
			return nil, err
		}

		status, err := payment.ParseStatus(res.Status)
		if err != nil {
			return nil, err
		}

		if status.Terminal() {
			f.finish(result, stateForStatus(status), status, finishedAt(res))
			return result, nil
		}
		result.Status = status

		timer := time.NewTimer(f.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (f *Flow) finish(result *Result, state State, status payment.Status, at *time.Time) {
	_ = f.transition(state)
	result.State = f.state
	result.Status = status
	result.FinishedAt = at
}

func stateForStatus(s payment.Status) State {
	switch s {
	case payment.StatusExecuted, payment.StatusSettled:
		return StateExecuted
	case payment.StatusRejected:
		return StateRejected
	case payment.StatusCancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}

func finishedAt(res *model.PaymentStatusResponse) *time.Time {
	switch {
	case res.SettledAt != nil:
		return res.SettledAt
	case res.ExecutedAt != nil:
		return res.ExecutedAt
	case res.FailedAt != nil:
		return res.FailedAt
	}
	return nil
}
