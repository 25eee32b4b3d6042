package api

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alapierre/go-quickpay/quickpay/model"
)

var logger = log.WithField("component", "quickpay.api")

// PaymentService issues the authenticated payment calls. Every call takes
// the bearer token as a value; the service holds no mutable state.
type PaymentService interface {
	Create(ctx context.Context, token, idempotencyKey string, req model.CreatePaymentRequest) (*model.PaymentResponse, error)
	StartAuthorization(ctx context.Context, token, paymentID, returnURI string) (*model.StartAuthorizationFlowResponse, error)
	Status(ctx context.Context, token, paymentID string) (*model.PaymentStatusResponse, error)
}

type payments struct {
	client *Client
}

func NewPaymentService(client *Client) PaymentService {
	return &payments{client: client}
}

// Create initiates a payment. The caller owns the idempotency key and
// must reuse the same key when retrying the same logical payment, so the
// provider can deduplicate a create that actually went through.
func (p *payments) Create(ctx context.Context, token, idempotencyKey string, req model.CreatePaymentRequest) (*model.PaymentResponse, error) {

	logger.Debug("creating payment")

	headers := map[string]string{"Idempotency-Key": idempotencyKey}

	res := &model.PaymentResponse{}
	err := p.client.PostJSON(ctx, "/v3/payments", token, headers, req, res)
	if err != nil {
		var re *RequestError
		if errors.As(err, &re) && re.StatusCode >= 400 && re.StatusCode < 500 {
			return nil, &RejectedError{StatusCode: re.StatusCode, Body: re.Body, Detail: re.Detail}
		}
		return nil, errors.Wrap(err, "create payment")
	}

	logger.Debugf("payment created, id: %s status: %s", res.ID, res.Status)
	return res, nil
}

// StartAuthorization begins the user authorization step and returns the
// provider's next action, normally a redirect URI.
func (p *payments) StartAuthorization(ctx context.Context, token, paymentID, returnURI string) (*model.StartAuthorizationFlowResponse, error) {

	logger.Debugf("starting authorization flow for payment %s", paymentID)

	req := model.StartAuthorizationFlowRequest{
		ProviderSelection: &model.ProviderSelectionSupported{},
		Redirect:          model.RedirectSupported{ReturnURI: returnURI},
	}

	res := &model.StartAuthorizationFlowResponse{}
	endpoint := fmt.Sprintf("/v3/payments/%s/authorization-flow", paymentID)
	err := p.client.PostJSON(ctx, endpoint, token, nil, req, res)
	if err != nil {
		var re *RequestError
		if errors.As(err, &re) && re.StatusCode >= 400 && re.StatusCode < 500 {
			return nil, &RejectedError{StatusCode: re.StatusCode, Body: re.Body, Detail: re.Detail}
		}
		return nil, errors.Wrap(err, "start authorization flow")
	}

	return res, nil
}

// Status fetches the current payment state. The status is always observed
// from the provider, never inferred locally.
func (p *payments) Status(ctx context.Context, token, paymentID string) (*model.PaymentStatusResponse, error) {

	res := &model.PaymentStatusResponse{}
	endpoint := fmt.Sprintf("/v3/payments/%s", paymentID)
	err := p.client.GetJSON(ctx, endpoint, token, res)
	if err != nil {
		var re *RequestError
		if errors.As(err, &re) && re.StatusCode == 404 {
			// the id came from the provider in the first place
			return nil, &LostPaymentError{PaymentID: paymentID}
		}
		return nil, errors.Wrap(err, "get payment status")
	}

	logger.Debugf("payment %s status: %s", paymentID, res.Status)
	return res, nil
}
