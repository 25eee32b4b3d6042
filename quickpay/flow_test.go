package quickpay

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alapierre/go-quickpay/quickpay/api"
	"github.com/alapierre/go-quickpay/quickpay/authorize"
	"github.com/alapierre/go-quickpay/quickpay/model"
	"github.com/alapierre/go-quickpay/quickpay/payment"
)

type fakeTokens struct {
	err   error
	calls int32
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	return "token-abc", nil
}

type statusStep struct {
	status string
	err    error
}

type fakePayments struct {
	createErr      error
	createFailures int // fail the first N creates with createErr; 0 means always
	createStatus   string
	createCalls    int
	createKeys     []string

	startErr   error
	startCalls int

	statusSteps []statusStep
	statusCalls int
}

func (f *fakePayments) Create(ctx context.Context, token, idempotencyKey string, req model.CreatePaymentRequest) (*model.PaymentResponse, error) {
	f.createCalls++
	f.createKeys = append(f.createKeys, idempotencyKey)
	if f.createErr != nil && (f.createFailures == 0 || f.createCalls <= f.createFailures) {
		return nil, f.createErr
	}
	status := f.createStatus
	if status == "" {
		status = "authorization_required"
	}
	return &model.PaymentResponse{ID: "payment-1", Status: status}, nil
}

func (f *fakePayments) StartAuthorization(ctx context.Context, token, paymentID, returnURI string) (*model.StartAuthorizationFlowResponse, error) {
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &model.StartAuthorizationFlowResponse{
		Status: "authorizing",
		AuthorizationFlow: &model.AuthorizationFlow{
			Actions: model.AuthorizationFlowActions{
				Next: model.AuthorizationFlowAction{Type: "redirect", URI: "https://bank.example/authorize"},
			},
		},
	}, nil
}

func (f *fakePayments) Status(ctx context.Context, token, paymentID string) (*model.PaymentStatusResponse, error) {
	idx := f.statusCalls
	if idx >= len(f.statusSteps) {
		idx = len(f.statusSteps) - 1 // repeat the last step
	}
	f.statusCalls++
	step := f.statusSteps[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &model.PaymentStatusResponse{ID: paymentID, Status: step.status}, nil
}

type fakeAuthorizer struct {
	outcome authorize.Outcome
	uri     string
	calls   int
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, authorizationURI string) (authorize.Outcome, error) {
	f.calls++
	f.uri = authorizationURI
	return f.outcome, nil
}

func testOptions() FlowOptions {
	opts := DefaultFlowOptions()
	opts.PollInterval = time.Millisecond
	opts.PollDeadline = time.Second
	opts.Retry.Initial = time.Millisecond
	opts.Retry.Jitter = 0
	return opts
}

func testRequest(t *testing.T) *payment.Request {
	t.Helper()
	req, err := payment.Build(payment.Inputs{
		AmountInMinor: 100,
		Currency:      "EUR",
		Beneficiary:   "Ben Eficiary",
		IBAN:          "NL84INGB2266765221",
	})
	require.NoError(t, err)
	return req
}

func TestRun_HappyPath(t *testing.T) {

	tokens := &fakeTokens{}
	payments := &fakePayments{
		statusSteps: []statusStep{{status: "authorized"}, {status: "executed"}},
	}
	authorizer := &fakeAuthorizer{outcome: authorize.OutcomeCompleted}

	flow := NewFlow(tokens, payments, authorizer, "http://127.0.0.1:3000/callback", testOptions())

	result, err := flow.Run(context.Background(), testRequest(t))
	require.NoError(t, err)

	assert.Equal(t, StateExecuted, result.State)
	assert.Equal(t, "payment-1", result.PaymentID)
	assert.Equal(t, payment.StatusExecuted, result.Status)
	assert.Equal(t, 1, payments.createCalls, "create must be called exactly once")
	assert.Equal(t, 1, authorizer.calls)
	assert.Equal(t, "https://bank.example/authorize", authorizer.uri)
}

func TestRun_SettledCountsAsExecuted(t *testing.T) {

	payments := &fakePayments{statusSteps: []statusStep{{status: "settled"}}}
	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", testOptions())

	result, err := flow.Run(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, StateExecuted, result.State)
	assert.Equal(t, payment.StatusSettled, result.Status)
}

// A rejected token exchange must abort the run before any payment call.
func TestRun_AuthFailureBeforeCreate(t *testing.T) {

	tokens := &fakeTokens{err: &AuthError{Status: 401, Body: "invalid_client"}}
	payments := &fakePayments{}

	flow := NewFlow(tokens, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", testOptions())

	_, err := flow.Run(context.Background(), testRequest(t))

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 0, payments.createCalls, "no payment creation after failed auth")
}

func TestRun_CreateRejectedNotRetried(t *testing.T) {

	payments := &fakePayments{createErr: &api.RejectedError{StatusCode: 400, Body: "bad request"}}
	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", testOptions())

	_, err := flow.Run(context.Background(), testRequest(t))

	var rejected *api.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 1, payments.createCalls, "payload rejection must not be retried")
}

// A retried create is the same logical payment and must present the same
// idempotency key on every attempt, or a 5xx returned after the provider
// already created the payment would duplicate it.
func TestRun_CreateRetryReusesIdempotencyKey(t *testing.T) {

	payments := &fakePayments{
		createErr:      &api.RequestError{StatusCode: 502, Body: "bad gateway"},
		createFailures: 2,
		statusSteps:    []statusStep{{status: "executed"}},
	}

	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", testOptions())

	result, err := flow.Run(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, StateExecuted, result.State)

	require.Equal(t, 3, payments.createCalls, "two failures and the final success")
	require.NotEmpty(t, payments.createKeys[0])
	assert.Equal(t, payments.createKeys[0], payments.createKeys[1], "retry must reuse the idempotency key")
	assert.Equal(t, payments.createKeys[0], payments.createKeys[2], "retry must reuse the idempotency key")
}

// Three 5xx answers and then success: the poll succeeds after exactly
// three retries.
func TestRun_StatusRetriesTransient(t *testing.T) {

	transient := &api.RequestError{StatusCode: 500, Body: "oops"}
	payments := &fakePayments{
		statusSteps: []statusStep{
			{err: transient}, {err: transient}, {err: transient}, {status: "executed"},
		},
	}

	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", testOptions())

	result, err := flow.Run(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, StateExecuted, result.State)
	assert.Equal(t, 4, payments.statusCalls, "three failures and the final success")
}

func TestRun_RetryBudgetExhausted(t *testing.T) {

	transient := &api.RequestError{StatusCode: 500}
	payments := &fakePayments{statusSteps: []statusStep{{err: transient}}}

	opts := testOptions()
	opts.Retry.Attempts = 3

	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", opts)

	_, err := flow.Run(context.Background(), testRequest(t))
	require.Error(t, err)
	assert.True(t, api.IsTransient(err))
	assert.Equal(t, 3, payments.statusCalls)
}

// A provider that never reaches a terminal status must end in a poll
// timeout within the configured bound.
func TestRun_PollTimeout(t *testing.T) {

	payments := &fakePayments{statusSteps: []statusStep{{status: "authorized"}}}

	opts := testOptions()
	opts.PollInterval = 5 * time.Millisecond
	opts.PollDeadline = 50 * time.Millisecond

	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", opts)

	start := time.Now()
	result, err := flow.Run(context.Background(), testRequest(t))

	assert.ErrorIs(t, err, ErrPollTimeout)
	require.NotNil(t, result)
	assert.Equal(t, StateTimedOut, result.State)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRun_AuthorizationTimeout(t *testing.T) {

	payments := &fakePayments{statusSteps: []statusStep{{status: "executed"}}}
	authorizer := &fakeAuthorizer{outcome: authorize.OutcomeTimedOut}

	flow := NewFlow(&fakeTokens{}, payments, authorizer, "http://127.0.0.1:3000/callback", testOptions())

	result, err := flow.Run(context.Background(), testRequest(t))

	assert.ErrorIs(t, err, ErrAuthorizationTimeout)
	require.NotNil(t, result)
	assert.Equal(t, StateTimedOut, result.State)
	assert.Equal(t, 0, payments.statusCalls, "no polling after authorization timeout")
}

func TestRun_AuthorizationDenied(t *testing.T) {

	payments := &fakePayments{statusSteps: []statusStep{{status: "executed"}}}
	authorizer := &fakeAuthorizer{outcome: authorize.OutcomeDenied}

	flow := NewFlow(&fakeTokens{}, payments, authorizer, "http://127.0.0.1:3000/callback", testOptions())

	result, err := flow.Run(context.Background(), testRequest(t))

	assert.ErrorIs(t, err, ErrAuthorizationDenied)
	assert.Equal(t, StateRejected, result.State)
}

func TestRun_RejectedStatus(t *testing.T) {

	payments := &fakePayments{statusSteps: []statusStep{{status: "rejected"}}}
	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", testOptions())

	result, err := flow.Run(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, StateRejected, result.State)
	assert.Equal(t, payment.StatusRejected, result.Status)
}

func TestRun_UnknownStatusIsAnError(t *testing.T) {

	payments := &fakePayments{statusSteps: []statusStep{{status: "brand_new_state"}}}
	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", testOptions())

	_, err := flow.Run(context.Background(), testRequest(t))

	var uerr *payment.UnknownStatusError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "brand_new_state", uerr.Value)
}

// Terminal states are sticky: neither transition nor Run may leave one.
func TestTerminalStateIsSticky(t *testing.T) {

	for _, terminal := range []State{StateExecuted, StateRejected, StateFailed, StateCancelled, StateTimedOut} {
		f := &Flow{state: terminal}
		assert.ErrorIs(t, f.transition(StateAuthorized), ErrFlowFinished, terminal.String())
		assert.Equal(t, terminal, f.State())
	}

	payments := &fakePayments{statusSteps: []statusStep{{status: "executed"}}}
	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", testOptions())

	_, err := flow.Run(context.Background(), testRequest(t))
	require.NoError(t, err)

	_, err = flow.Run(context.Background(), testRequest(t))
	assert.ErrorIs(t, err, ErrFlowFinished)
}

func TestRun_CancelledContextStopsPolling(t *testing.T) {

	payments := &fakePayments{statusSteps: []statusStep{{status: "authorized"}}}

	opts := testOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.PollDeadline = 10 * time.Second

	flow := NewFlow(&fakeTokens{}, payments, &fakeAuthorizer{}, "http://127.0.0.1:3000/callback", opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := flow.Run(ctx, testRequest(t))
	assert.ErrorIs(t, err, context.Canceled)
}
