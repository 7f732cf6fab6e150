package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Reason identifies which business rule a validation failure violated.
type Reason string

const (
	ReasonAuctionNotFound        Reason = "AuctionNotFound"
	ReasonAuctionNotActive       Reason = "AuctionNotActive"
	ReasonOwnerCannotBid         Reason = "OwnerCannotBid"
	ReasonBelowStartingPrice     Reason = "BelowStartingPrice"
	ReasonBidTooLow              Reason = "BidTooLow"
	ReasonAlreadyHighestBidder   Reason = "AlreadyHighestBidder"
	ReasonMaxMustExceedIncrement Reason = "MaxMustExceedIncrement"
	ReasonInvalidInput           Reason = "InvalidInput"
)

const (
	CodeValidation = "VALIDATION_FAILED"
	CodeTransient  = "TRANSIENT"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Reason     Reason
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewBusinessRuleError(ReasonInvalidInput, message, details)
}

// NewBusinessRuleError reports a violated bidding rule. The reason is echoed in the details.
func NewBusinessRuleError(reason Reason, message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["reason"] = string(reason)

	status := http.StatusBadRequest
	if reason == ReasonAuctionNotFound {
		status = http.StatusNotFound
	}
	return &DomainError{
		Code:       CodeValidation,
		Reason:     reason,
		Message:    message,
		HTTPStatus: status,
		Details:    details,
	}
}

// NewTransientError marks a failure that may succeed when retried.
func NewTransientError(err error) error {
	return &DomainError{
		Code:       CodeTransient,
		Message:    "temporarily unavailable, retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ReasonOf returns the business rule reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Code == CodeValidation {
		return domainErr.Reason, true
	}
	return "", false
}

// IsValidation reports whether err is a business rule violation.
func IsValidation(err error) bool {
	_, ok := ReasonOf(err)
	return ok
}

// IsTransient reports whether err should be retried by the caller.
func IsTransient(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == CodeTransient
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
