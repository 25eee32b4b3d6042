package payment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alapierre/go-quickpay/quickpay/model"
)

// ValidationError reports the first invalid input field. No request is
// constructed and no network call is made when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Inputs are the raw user-supplied payment parameters.
type Inputs struct {
	AmountInMinor int64
	Currency      string
	Beneficiary   string
	IBAN          string
	SortCode      string
	AccountNumber string
	Reference     string
}

// Request is a validated payment request, immutable after Build.
type Request struct {
	AmountInMinor int64
	Currency      string
	Beneficiary   string
	IBAN          string
	SortCode      string
	AccountNumber string
	Reference     string
}

var sortCodeRe = regexp.MustCompile(`^\d{6}$`)
var accountNumberRe = regexp.MustCompile(`^\d{8}$`)

// Build validates inputs left to right (amount, currency, beneficiary,
// account identifier) and returns the first failure.
func Build(in Inputs) (*Request, error) {

	if in.AmountInMinor <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be a positive number of minor units"}
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if !CurrencySupported(currency) {
		return nil, &ValidationError{Field: "currency", Reason: fmt.Sprintf("unsupported currency code %q", in.Currency)}
	}

	name := strings.TrimSpace(in.Beneficiary)
	if name == "" {
		return nil, &ValidationError{Field: "beneficiary", Reason: "name must not be empty"}
	}

	req := &Request{
		AmountInMinor: in.AmountInMinor,
		Currency:      currency,
		Beneficiary:   name,
		Reference:     strings.TrimSpace(in.Reference),
	}
	if req.Reference == "" {
		req.Reference = "reference"
	}

	switch {
	case in.IBAN != "":
		iban := NormalizeIBAN(in.IBAN)
		if !validIBAN(iban) {
			return nil, &ValidationError{Field: "iban", Reason: "checksum or length check failed"}
		}
		req.IBAN = iban

	case in.SortCode != "" || in.AccountNumber != "":
		if !sortCodeRe.MatchString(in.SortCode) {
			return nil, &ValidationError{Field: "sort_code", Reason: "must be 6 digits"}
		}
		if !accountNumberRe.MatchString(in.AccountNumber) {
			return nil, &ValidationError{Field: "account_number", Reason: "must be 8 digits"}
		}
		req.SortCode = in.SortCode
		req.AccountNumber = in.AccountNumber

	default:
		return nil, &ValidationError{Field: "account", Reason: "either an IBAN or a sort code with account number is required"}
	}

	return req, nil
}

// Wire serializes the request into the provider's creation shape.
func (r *Request) Wire(payerName, payerEmail string) model.CreatePaymentRequest {

	identifier := model.AccountIdentifier{Type: "iban", IBAN: r.IBAN}
	if r.IBAN == "" {
		identifier = model.AccountIdentifier{
			Type:          "sort_code_account_number",
			SortCode:      r.SortCode,
			AccountNumber: r.AccountNumber,
		}
	}

	return model.CreatePaymentRequest{
		AmountInMinor: r.AmountInMinor,
		Currency:      r.Currency,
		PaymentMethod: model.PaymentMethod{
			Type: "bank_transfer",
			ProviderSelection: model.ProviderSelection{
				Type: "user_selected",
				SchemeSelection: &model.SchemeSelection{
					Type:             "instant_preferred",
					AllowRemitterFee: false,
				},
			},
			Beneficiary: model.Beneficiary{
				Type:              "external_account",
				AccountHolderName: r.Beneficiary,
				Reference:         r.Reference,
				AccountIdentifier: identifier,
			},
		},
		User: model.PaymentUser{
			Name:  payerName,
			Email: payerEmail,
		},
	}
}
