// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Controller error taxonomy and errno mapping.

package mailbox

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Kind classifies a controller error. The set is closed; callers switch on it rather than on
// error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindNoSuchController
	KindNotSupported
	KindInvalidRequest
	KindTransportFailure
	KindMalformedReply
	KindDriveAbsent
)

var kindMessages = map[Kind]string{
	KindUnknown:          "unknown error",
	KindNoSuchController: "no such controller",
	KindNotSupported:     "operation not supported",
	KindInvalidRequest:   "invalid request",
	KindTransportFailure: "transport failure",
	KindMalformedReply:   "malformed reply",
	KindDriveAbsent:      "drive absent",
}

func (k Kind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("unknown kind (%d)", int(k))
}

// Error is returned by every layer that talks to a controller.
type Error struct {
	Kind   Kind
	Op     string
	Status Status // Completion status reported by the firmware, StatusOK if none
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Status != StatusOK {
		msg = fmt.Sprintf("%s (status %#04x: %s)", msg, uint16(e.Status), e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that the package sentinels can
// be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrNoSuchController = &Error{Kind: KindNoSuchController}
	ErrNotSupported     = &Error{Kind: KindNotSupported}
	ErrInvalidRequest   = &Error{Kind: KindInvalidRequest}
	ErrTransportFailure = &Error{Kind: KindTransportFailure}
	ErrMalformedReply   = &Error{Kind: KindMalformedReply}
	ErrDriveAbsent      = &Error{Kind: KindDriveAbsent}
)

// NewError returns an error of the given kind for operation op.
func NewError(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Errorf returns an error of the given kind whose cause is a formatted message.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// WrapError returns an error of the given kind wrapping cause.
func WrapError(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusOf returns the firmware completion status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var e *Error
	if errors.As(err, &e) && e.Status != StatusOK {
		return e.Status, true
	}
	return StatusOK, false
}

// Errno converts err to the errno a kernel ioctl handler would return for it.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}

	switch KindOf(err) {
	case KindNoSuchController:
		return unix.ENXIO
	case KindNotSupported:
		return unix.ENOTTY
	case KindInvalidRequest:
		return unix.EINVAL
	case KindMalformedReply:
		return unix.EBADMSG
	case KindDriveAbsent:
		return unix.ENODEV
	default:
		return unix.EIO
	}
}

// FromErrno converts an errno returned by the controller device into an *Error.
func FromErrno(errno unix.Errno, op string) *Error {
	var kind Kind

	switch errno {
	case unix.ENXIO:
		kind = KindNoSuchController
	case unix.ENOTTY:
		kind = KindNotSupported
	case unix.EINVAL:
		kind = KindInvalidRequest
	case unix.EBADMSG:
		kind = KindMalformedReply
	case unix.ENODEV:
		kind = KindDriveAbsent
	default:
		kind = KindTransportFailure
	}

	return &Error{Kind: kind, Op: op, Err: errno}
}
