package models

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced to the calling boundary.
var (
	ErrPermissionDenied     = errors.New("permission denied")
	ErrBanned               = errors.New("participant is banned")
	ErrProtectedParticipant = errors.New("participant is protected")
	ErrAlreadyPaired        = errors.New("participant is already paired")
	ErrAlreadyWaiting       = errors.New("participant is already waiting")
	ErrNotPaired            = errors.New("participants are not paired")
	ErrNotInChat            = errors.New("participant is not in a chat")
	ErrAlreadyResolved      = errors.New("report is already resolved")
	ErrNotBanned            = errors.New("participant is not banned")
	ErrMissingReason        = errors.New("reason is required")
	ErrDeliveryFailure      = errors.New("delivery failed")
	ErrNotFound             = errors.New("not found")
	ErrUnsupportedPayload   = errors.New("unsupported payload")
	ErrInvalidCommand       = errors.New("invalid moderation command")
)

// DeliveryError records a transport failure for one recipient.
type DeliveryError struct {
	Recipient int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %d failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is makes every DeliveryError match ErrDeliveryFailure.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailure
}

// BannedError is returned when a banned participant attempts an operation.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrBanned, e.Reason)
}

func (e *BannedError) Is(target error) bool {
	return target == ErrBanned
}

// Message keys for failures shown to participants and administrators.
const (
	ErrorKeyGeneric = "error_generic"
)

var errorKeys = []struct {
	err error
	key string
}{
	{ErrBanned, "error_banned"},
	{ErrPermissionDenied, "error_permission_denied"},
	{ErrProtectedParticipant, "error_protected"},
	{ErrAlreadyPaired, "error_already_paired"},
	{ErrAlreadyWaiting, "error_already_waiting"},
	{ErrNotPaired, "error_not_paired"},
	{ErrNotInChat, NoticeNotInChat},
	{ErrAlreadyResolved, "error_already_resolved"},
	{ErrNotBanned, "error_not_banned"},
	{ErrMissingReason, "error_missing_reason"},
	{ErrDeliveryFailure, NoticeRelayFailed},
	{ErrNotFound, "error_not_found"},
	{ErrUnsupportedPayload, "error_unsupported_payload"},
	{ErrInvalidCommand, "error_invalid_command"},
}

// ErrorKey maps err to the message key of its failure kind.
// Errors outside the taxonomy map to ErrorKeyGeneric.
func ErrorKey(err error) string {
	for _, ek := range errorKeys {
		if errors.Is(err, ek.err) {
			return ek.key
		}
	}
	return ErrorKeyGeneric
}
