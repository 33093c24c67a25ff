package model

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindArithmetic      Kind = "arithmetic"
	KindDataUnavailable Kind = "data_unavailable"
	KindPersistence     Kind = "persistence"
	KindCalculation     Kind = "calculation"
)

// Sentinels for errors.Is; any *Error matches the sentinel of its Kind.
var (
	ErrValidation      = errors.New("validation error")
	ErrArithmetic      = errors.New("arithmetic error")
	ErrDataUnavailable = errors.New("data unavailable")
	ErrPersistence     = errors.New("persistence error")
	ErrCalculation     = errors.New("calculation failed")
)

// Data-unavailable codes.
const (
	CodeInvalidTicker          = "invalid_ticker"
	CodeTemporarilyUnavailable = "temporarily_unavailable"
	CodeInsufficientData       = "insufficient_data"
)

// Error is the engine's error type. Code identifies the failed rule.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindArithmetic:
		return ErrArithmetic
	case KindDataUnavailable:
		return ErrDataUnavailable
	case KindPersistence:
		return ErrPersistence
	case KindCalculation:
		return ErrCalculation
	}
	return nil
}

// Validation reports malformed or out-of-range input.
func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Arithmetic reports a computation that has no meaningful result.
func Arithmetic(code, format string, args ...any) *Error {
	return &Error{Kind: KindArithmetic, Code: code, Message: fmt.Sprintf(format, args...)}
}

// DataUnavailable wraps a provider failure.
func DataUnavailable(code, ticker string, err error) *Error {
	msg := fmt.Sprintf("financial data temporarily unavailable for %s", ticker)
	switch code {
	case CodeInvalidTicker:
		msg = fmt.Sprintf("invalid ticker %q", ticker)
	case CodeInsufficientData:
		msg = fmt.Sprintf("insufficient financial data for %s", ticker)
	}
	return &Error{Kind: KindDataUnavailable, Code: code, Message: msg, Err: err}
}

// Persistence wraps a failure from the save step.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: op, Message: "persist " + op, Err: err}
}

// CalculationFailed wraps a failure inside the calculation chain.
func CalculationFailed(err error) *Error {
	return &Error{Kind: KindCalculation, Code: "calculation_failed", Message: "calculation failed", Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
