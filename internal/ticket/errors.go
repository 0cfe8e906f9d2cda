package ticket

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes dispatch failures.
type ErrorCode string

const (
	// ErrCodeNoRoutableDevice indicates an item resolved to no device at any
	// precedence level and no default device is configured.
	ErrCodeNoRoutableDevice ErrorCode = "NO_ROUTABLE_DEVICE"

	// ErrCodeUndeliverable indicates the retry budget for a device was
	// exhausted. The order's state machine is unaffected; the failed
	// (item, device) pairs stay eligible for a later retry.
	ErrCodeUndeliverable ErrorCode = "UNDELIVERABLE_TICKET"
)

// DispatchError is a routing or delivery failure with structured fields
// for diagnostics. It never implies a change to order state.
type DispatchError struct {
	Code     ErrorCode
	OrderID  string
	DeviceID string
	ItemID   string
	Reason   string
	Attempts int
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	switch e.Code {
	case ErrCodeNoRoutableDevice:
		return fmt.Sprintf("%s: item %s on order %s has no item, category, or default route", e.Code, e.ItemID, e.OrderID)
	case ErrCodeUndeliverable:
		return fmt.Sprintf("%s: device %s rejected ticket for order %s after %d attempts: %s", e.Code, e.DeviceID, e.OrderID, e.Attempts, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
}

// IsNoRoutableDevice reports whether err is a NO_ROUTABLE_DEVICE failure.
// Uses errors.As to handle wrapped errors.
func IsNoRoutableDevice(err error) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Code == ErrCodeNoRoutableDevice
}

// IsUndeliverable reports whether err is an UNDELIVERABLE_TICKET failure.
// Uses errors.As to handle wrapped errors.
func IsUndeliverable(err error) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Code == ErrCodeUndeliverable
}

func newNoRoutableDeviceError(orderID, itemID string) *DispatchError {
	return &DispatchError{
		Code:    ErrCodeNoRoutableDevice,
		OrderID: orderID,
		ItemID:  itemID,
		Reason:  "no device assigned and no default device configured",
	}
}

func newUndeliverableError(orderID, deviceID, reason string, attempts int) *DispatchError {
	return &DispatchError{
		Code:     ErrCodeUndeliverable,
		OrderID:  orderID,
		DeviceID: deviceID,
		Reason:   reason,
		Attempts: attempts,
	}
}
