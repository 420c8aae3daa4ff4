package economy

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the acting user lacks the privilege an
// administrative operation requires. It carries no internal state.
var ErrUnauthorized = errors.New("unauthorized")

// Validation reason codes. The platform adapter maps each to a distinct
// user-facing message.
const (
	ReasonSelfPayment   = "self_payment"
	ReasonBotTarget     = "bot_target"
	ReasonBelowMinimum  = "below_minimum"
	ReasonInvalidAmount = "invalid_amount"
	ReasonInvalidLevel  = "invalid_level"
)

// ValidationError rejects a malformed or disallowed request before any
// storage access.
type ValidationError struct {
	Reason string
	Msg    string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErr(reason, format string, args ...any) error {
	return &ValidationError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError reports a failed balance check together with the
// balance that was available, for rendering context.
type InsufficientFundsError struct {
	UserID  int64
	Balance int64
	Needed  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %d, need %d", e.Balance, e.Needed)
}
