package payment

import "fmt"

// Status is the closed set of payment states this client understands.
// Provider strings are mapped explicitly; anything unmapped is an error
// rather than a silent default, so provider API drift surfaces.
type Status int

const (
	StatusUnknown Status = iota
	StatusAuthorizationRequired
	StatusAuthorizing
	StatusAuthorized
	StatusExecuted
	StatusSettled
	StatusFailed
	StatusRejected
	StatusCancelled
)

var statusByName = map[string]Status{
	"authorization_required": StatusAuthorizationRequired,
	"authorizing":            StatusAuthorizing,
	"authorized":             StatusAuthorized,
	"executed":               StatusExecuted,
	"settled":                StatusSettled,
	"failed":                 StatusFailed,
	"rejected":               StatusRejected,
	"cancelled":              StatusCancelled,
}

var statusNames = map[Status]string{
	StatusUnknown:               "unknown",
	StatusAuthorizationRequired: "authorization_required",
	StatusAuthorizing:           "authorizing",
	StatusAuthorized:            "authorized",
	StatusExecuted:              "executed",
	StatusSettled:               "settled",
	StatusFailed:                "failed",
	StatusRejected:              "rejected",
	StatusCancelled:             "cancelled",
}

// UnknownStatusError marks a provider status outside the mapped vocabulary.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown payment status from provider: %q", e.Value)
}

func ParseStatus(s string) (Status, error) {
	if st, ok := statusByName[s]; ok {
		return st, nil
	}
	return StatusUnknown, &UnknownStatusError{Value: s}
}

func (s Status) String() string {
	return statusNames[s]
}

// Terminal reports whether no further provider-side transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusExecuted, StatusSettled, StatusFailed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}
