// Package status defines the normalized error taxonomy every merchant
// interaction is classified into. Merchant-specific error strings are mapped
// onto these kinds via per-merchant ErrorMaps; the rest of the core only ever
// sees a Kind.
package status

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindLoginFailed
	KindValidation
	KindUnauthorised
	KindPreRegisteredCard
	KindRetryLimitReached
	KindInvalidMFA
	KindCardNotRegistered
	KindLinkLimitExceeded
	KindCardNumberError
	KindGeneralError
	KindJoinInProgress
	KindNoSuchRecord
	KindAccountAlreadyExists
	KindEndSiteDown
	KindNotSent
	KindConfiguration
	KindServiceConnection
	KindJoinError
)

type descriptor struct {
	code    int
	message string
}

// Numeric codes are part of the upstream contract and must stay stable.
// KindUnauthorised shares 401 with KindValidation: it is the internal
// refresh-and-retry signal and is converted to a validation error before it
// ever leaves the pipeline.
var descriptors = map[Kind]descriptor{
	KindUnknown:              {520, "An unknown error has occurred"},
	KindLoginFailed:          {403, "Invalid credentials"},
	KindValidation:           {401, "Failed validation"},
	KindUnauthorised:         {401, "Unauthorised"},
	KindPreRegisteredCard:    {406, "Pre-registered card"},
	KindRetryLimitReached:    {429, "Retry limit reached"},
	KindInvalidMFA:           {432, "Invalid MFA"},
	KindCardNotRegistered:    {436, "Card not registered or Unknown"},
	KindLinkLimitExceeded:    {437, "You can only Link one card per day"},
	KindCardNumberError:      {438, "Invalid card number"},
	KindGeneralError:         {439, "General error"},
	KindJoinInProgress:       {441, "Join in progress"},
	KindNoSuchRecord:         {444, "Account does not exist"},
	KindAccountAlreadyExists: {445, "Account already exists"},
	KindEndSiteDown:          {530, "End site down"},
	KindNotSent:              {535, "Request was not sent"},
	KindConfiguration:        {536, "Error with the configuration or it was not possible to retrieve it"},
	KindServiceConnection:    {537, "Service connection error"},
	KindJoinError:            {538, "A system error occurred during join"},
}

func (k Kind) Code() int {
	return descriptors[k].code
}

func (k Kind) Message() string {
	return descriptors[k].message
}

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "UNKNOWN"
	case KindLoginFailed:
		return "STATUS_LOGIN_FAILED"
	case KindValidation:
		return "VALIDATION"
	case KindUnauthorised:
		return "UNAUTHORISED"
	case KindPreRegisteredCard:
		return "PRE_REGISTERED_CARD"
	case KindRetryLimitReached:
		return "RETRY_LIMIT_REACHED"
	case KindInvalidMFA:
		return "INVALID_MFA"
	case KindCardNotRegistered:
		return "CARD_NOT_REGISTERED"
	case KindLinkLimitExceeded:
		return "LINK_LIMIT_EXCEEDED"
	case KindCardNumberError:
		return "CARD_NUMBER_ERROR"
	case KindGeneralError:
		return "GENERAL_ERROR"
	case KindJoinInProgress:
		return "JOIN_IN_PROGRESS"
	case KindNoSuchRecord:
		return "NO_SUCH_RECORD"
	case KindAccountAlreadyExists:
		return "ACCOUNT_ALREADY_EXISTS"
	case KindEndSiteDown:
		return "END_SITE_DOWN"
	case KindNotSent:
		return "NOT_SENT"
	case KindConfiguration:
		return "CONFIGURATION_ERROR"
	case KindServiceConnection:
		return "SERVICE_CONNECTION_ERROR"
	case KindJoinError:
		return "JOIN_ERROR"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error carries a normalized kind plus optional detail and cause. Two Errors
// compare equal under errors.Is when their kinds match, so callers can write
// errors.Is(err, status.NewError(status.KindNotSent)).
type Error struct {
	Kind   Kind
	detail string
	cause  error
}

func NewError(kind Kind) *Error {
	return &Error{Kind: kind}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, detail: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%d: %s", e.Kind.Code(), e.Kind.Message())
	if e.detail != "" {
		msg += ": " + e.detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf extracts the normalized kind from any error in the chain, falling
// back to KindUnknown for errors that never went through classification.
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindUnknown
}
