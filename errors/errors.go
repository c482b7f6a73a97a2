// Package errors provides typed shop errors and their HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
)

// StatusCode represents the HTTP status code a shop error maps to.
type StatusCode int

const (
	StatusOK          StatusCode = 200
	StatusBadRequest  StatusCode = 400
	StatusNotFound    StatusCode = 404
	StatusConflict    StatusCode = 409
	StatusInternal    StatusCode = 500
	StatusUnavailable StatusCode = 503
)

// Sentinel errors for the purchase path.
var (
	// ErrOutOfStock is the expected outcome for every buyer after the last
	// unit is gone. It is user-facing and never logged as an error.
	ErrOutOfStock = errors.New("item is sold out")

	// ErrItemNotFound indicates an unknown item identifier.
	ErrItemNotFound = errors.New("item not found")

	// ErrInvariantViolation indicates the atomicity contract failed (for
	// example a negative quantity was observed). It must surface loudly.
	ErrInvariantViolation = errors.New("inventory invariant violated")
)

// ErrorFields is the structured JSON error body returned to clients.
type ErrorFields struct {
	Title     string  `json:"title"`
	Status    int     `json:"status"`
	Detail    string  `json:"detail"`
	ExtraInfo *string `json:"extraInfo,omitempty"`
}

// ShopError wraps an error with the status code it maps to.
type ShopError struct {
	Err        error
	StatusCode StatusCode
	ExtraInfo  string
}

// Error implements the error interface.
func (e *ShopError) Error() string {
	if e.ExtraInfo != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.ExtraInfo)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ShopError) Unwrap() error {
	return e.Err
}

// NewShopError creates a new ShopError with the given error and status code.
func NewShopError(err error, code StatusCode) *ShopError {
	return &ShopError{
		Err:        err,
		StatusCode: code,
	}
}

// NewShopErrorWithInfo creates a new ShopError with extra info.
func NewShopErrorWithInfo(err error, code StatusCode, extraInfo string) *ShopError {
	return &ShopError{
		Err:        err,
		StatusCode: code,
		ExtraInfo:  extraInfo,
	}
}

// ToErrorFields converts a ShopError to ErrorFields for a JSON response.
func (e *ShopError) ToErrorFields() *ErrorFields {
	fields := NewErrorFields(e.StatusCode, e.ExtraInfo)
	if e.ExtraInfo == "" {
		fields.ExtraInfo = nil
	}
	return fields
}

// GetShopError extracts a ShopError from an error chain, or returns nil.
func GetShopError(err error) *ShopError {
	var shopErr *ShopError
	if errors.As(err, &shopErr) {
		return shopErr
	}
	return nil
}

// NewErrorFields creates ErrorFields for the given status code.
func NewErrorFields(status StatusCode, extraInfo string) *ErrorFields {
	fields := &ErrorFields{
		Status: int(status),
	}

	if extraInfo != "" {
		fields.ExtraInfo = &extraInfo
	}

	switch status {
	case StatusBadRequest:
		fields.Title = "Bad request"
		fields.Detail = "The request seems to be malformed and cannot be processed"
	case StatusNotFound:
		fields.Title = "Not found"
		fields.Detail = "Item not found"
	case StatusConflict:
		fields.Title = "Out of stock"
		fields.Detail = "Item is sold out"
	case StatusUnavailable:
		fields.Title = "Server busy"
		fields.Detail = "Server is busy, please try again"
	default:
		fields.Status = int(StatusInternal)
		fields.Title = "Internal error"
		fields.Detail = "An unexpected error occurred during purchase"
	}

	return fields
}
