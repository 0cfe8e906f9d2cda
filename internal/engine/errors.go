package engine

import (
	"errors"
	"fmt"

	"github.com/platefire/expedite/internal/order"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidTransition indicates an attempted status change the
	// graph does not allow. The order is left unchanged.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeUnknownOrder indicates the order id is not tracked.
	ErrCodeUnknownOrder ErrorCode = "UNKNOWN_ORDER"

	// ErrCodeDuplicateOrderNumber indicates the display number is already
	// in use by an order that has not been purged.
	ErrCodeDuplicateOrderNumber ErrorCode = "DUPLICATE_ORDER_NUMBER"

	// ErrCodeOrderClosed indicates a dispatch or reprint was attempted on
	// an order in a terminal state.
	ErrCodeOrderClosed ErrorCode = "ORDER_CLOSED"

	// ErrCodeAuditWriteFailure indicates the audit store was unavailable.
	// The triggering state change is not committed: every mutation must be
	// logged, so an unloggable mutation does not happen.
	ErrCodeAuditWriteFailure ErrorCode = "AUDIT_WRITE_FAILURE"

	// ErrCodeInvalidArgument indicates malformed caller input.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error is an engine failure with structured fields for diagnostics.
type Error struct {
	Code    ErrorCode
	OrderID string
	From    order.Status
	To      order.Status
	Message string
	Err     error // wrapped cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Code == ErrCodeInvalidTransition:
		return fmt.Sprintf("%s: order %s cannot move from %q to %q", e.Code, e.OrderID, e.From, e.To)
	case e.Err != nil && e.OrderID != "":
		return fmt.Sprintf("%s: %s (order=%s): %v", e.Code, e.Message, e.OrderID, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.OrderID != "":
		return fmt.Sprintf("%s: %s (order=%s)", e.Code, e.Message, e.OrderID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// IsInvalidTransition reports whether err is an INVALID_TRANSITION error.
func IsInvalidTransition(err error) bool { return hasCode(err, ErrCodeInvalidTransition) }

// IsUnknownOrder reports whether err is an UNKNOWN_ORDER error.
func IsUnknownOrder(err error) bool { return hasCode(err, ErrCodeUnknownOrder) }

// IsDuplicateOrderNumber reports whether err is a DUPLICATE_ORDER_NUMBER error.
func IsDuplicateOrderNumber(err error) bool { return hasCode(err, ErrCodeDuplicateOrderNumber) }

// IsAuditWriteFailure reports whether err is an AUDIT_WRITE_FAILURE error.
func IsAuditWriteFailure(err error) bool { return hasCode(err, ErrCodeAuditWriteFailure) }

func hasCode(err error, code ErrorCode) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == code
}

func newInvalidTransition(orderID string, from, to order.Status) *Error {
	return &Error{Code: ErrCodeInvalidTransition, OrderID: orderID, From: from, To: to}
}

func newUnknownOrder(orderID string) *Error {
	return &Error{Code: ErrCodeUnknownOrder, OrderID: orderID, Message: "order not found"}
}

func newAuditWriteFailure(orderID string, cause error) *Error {
	return &Error{Code: ErrCodeAuditWriteFailure, OrderID: orderID, Message: "audit append failed", Err: cause}
}
