// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package mailbox

import "fmt"

// Status is the completion status the firmware posts for a mailbox command.
type Status uint16

const (
	StatusOK               Status = 0x0000
	StatusUnrecoverable    Status = 0x0001
	StatusNoDrive          Status = 0x0002
	StatusSelectionTimeout Status = 0x000e
	StatusInvalidOpcode    Status = 0x0104
	StatusInvalidAddress   Status = 0x0105
	StatusInProgress       Status = 0x0106
	StatusNoOperation      Status = 0x0107
)

var statusMessages = map[Status]string{
	StatusOK:               "success",
	StatusUnrecoverable:    "unrecoverable error",
	StatusNoDrive:          "drive not present",
	StatusSelectionTimeout: "selection timeout",
	StatusInvalidOpcode:    "invalid opcode",
	StatusInvalidAddress:   "invalid channel or target",
	StatusInProgress:       "operation already in progress",
	StatusNoOperation:      "no operation in progress",
}

func (s Status) String() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status (%#04x)", uint16(s))
}

// Kind maps a non-OK completion status onto the error taxonomy.
func (s Status) Kind() Kind {
	switch s {
	case StatusOK:
		return KindUnknown
	case StatusNoDrive, StatusSelectionTimeout:
		return KindDriveAbsent
	case StatusInvalidOpcode:
		return KindNotSupported
	case StatusInvalidAddress:
		return KindInvalidRequest
	default:
		return KindTransportFailure
	}
}

// CheckStatus returns nil for StatusOK and an *Error describing any other status.
func CheckStatus(op string, s Status) error {
	if s == StatusOK {
		return nil
	}
	return &Error{Kind: s.Kind(), Op: op, Status: s}
}
