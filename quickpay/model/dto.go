package model

import "time"

// TokenResponse is the auth server response to the client-credentials grant.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// CreatePaymentRequest is the payment initiation request body.
type CreatePaymentRequest struct {
	AmountInMinor int64         `json:"amount_in_minor"`
	Currency      string        `json:"currency"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	User          PaymentUser   `json:"user"`
}

type PaymentMethod struct {
	Type              string            `json:"type"` // "bank_transfer"
	ProviderSelection ProviderSelection `json:"provider_selection"`
	Beneficiary       Beneficiary       `json:"beneficiary"`
}

type ProviderSelection struct {
	Type            string           `json:"type"` // "user_selected"
	SchemeSelection *SchemeSelection `json:"scheme_selection,omitempty"`
}

type SchemeSelection struct {
	Type             string `json:"type"` // "instant_preferred"
	AllowRemitterFee bool   `json:"allow_remitter_fee"`
}

type Beneficiary struct {
	Type              string            `json:"type"` // "external_account"
	AccountHolderName string            `json:"account_holder_name"`
	Reference         string            `json:"reference"`
	AccountIdentifier AccountIdentifier `json:"account_identifier"`
}

// AccountIdentifier carries either an IBAN or a sort code with account
// number, discriminated by Type.
type AccountIdentifier struct {
	Type          string `json:"type"` // "iban" or "sort_code_account_number"
	IBAN          string `json:"iban,omitempty"`
	SortCode      string `json:"sort_code,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

type PaymentUser struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// PaymentResponse is the payment creation response.
type PaymentResponse struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	ResourceToken string    `json:"resource_token,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PaymentStatusResponse is the get-payment-by-id response.
type PaymentStatusResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	AuthorizedAt  *time.Time `json:"authorized_at,omitempty"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
}

// StartAuthorizationFlowRequest asks the provider to begin user
// authorization with a hosted redirect back to return_uri.
type StartAuthorizationFlowRequest struct {
	ProviderSelection *ProviderSelectionSupported `json:"provider_selection,omitempty"`
	Redirect          RedirectSupported           `json:"redirect"`
}

type ProviderSelectionSupported struct{}

type RedirectSupported struct {
	ReturnURI string `json:"return_uri"`
}

// StartAuthorizationFlowResponse carries the next user-facing action.
type StartAuthorizationFlowResponse struct {
	Status            string             `json:"status"`
	AuthorizationFlow *AuthorizationFlow `json:"authorization_flow,omitempty"`
}

type AuthorizationFlow struct {
	Actions AuthorizationFlowActions `json:"actions"`
}

type AuthorizationFlowActions struct {
	Next AuthorizationFlowAction `json:"next"`
}

type AuthorizationFlowAction struct {
	Type string `json:"type"` // "redirect", "wait"
	URI  string `json:"uri,omitempty"`
}

// ErrorResponse is the provider error body.
type ErrorResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
