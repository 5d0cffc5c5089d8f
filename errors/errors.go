package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrInvalidTarget       = fmt.Errorf("invalid target")
	ErrStorageFailure      = fmt.Errorf("storage failure")
	ErrNotAMember          = fmt.Errorf("not a member")
	ErrConnectionLost      = fmt.Errorf("connection lost")
	ErrMalformedFrame      = fmt.Errorf("malformed frame")
	ErrParticipantConflict = fmt.Errorf("participant id already owned by another user")
	ErrMessageNotFound     = fmt.Errorf("message not found")
	ErrUnauthenticated     = fmt.Errorf("unauthenticated")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
)

// ErrorKind is the wire taxonomy carried by error events.
type ErrorKind string

const (
	InvalidTarget       ErrorKind = "InvalidTarget"
	StorageFailure      ErrorKind = "StorageFailure"
	NotAMember          ErrorKind = "NotAMember"
	ConnectionLost      ErrorKind = "ConnectionLost"
	MalformedFrame      ErrorKind = "MalformedFrame"
	ParticipantConflict ErrorKind = "ParticipantConflict"
	Internal            ErrorKind = "Internal"
)

// Wrap attaches a detail to a sentinel while keeping it matchable with errors.Is.
func Wrap(sentinel error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}

// KindOf maps any error of the relay to its wire kind.
// Unknown errors are reported as Internal so nothing leaks to clients.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrInvalidTarget):
		return InvalidTarget
	case stderrors.Is(err, ErrStorageFailure):
		return StorageFailure
	case stderrors.Is(err, ErrNotAMember), stderrors.Is(err, ErrMessageNotFound):
		return NotAMember
	case stderrors.Is(err, ErrConnectionLost):
		return ConnectionLost
	case stderrors.Is(err, ErrMalformedFrame):
		return MalformedFrame
	case stderrors.Is(err, ErrParticipantConflict):
		return ParticipantConflict
	default:
		return Internal
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
