// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI sense data and command status errors.

package scsi

import (
	"fmt"
)

// Sense keys
const (
	NO_SENSE        = 0x00
	RECOVERED_ERROR = 0x01
	NOT_READY       = 0x02
	MEDIUM_ERROR    = 0x03
	HARDWARE_ERROR  = 0x04
	ILLEGAL_REQUEST = 0x05
	UNIT_ATTENTION  = 0x06
	DATA_PROTECT    = 0x07
	ABORTED_COMMAND = 0x0b
)

var senseKeys = [...]string{
	"no sense", "recovered error", "not ready", "medium error", "hardware error",
	"illegal request", "unit attention", "data protect", "blank check", "vendor specific",
	"copy aborted", "aborted command", "reserved", "volume overflow", "miscompare", "completed",
}

// SenseData is the decoded part of fixed format (0x70/0x71) sense data.
type SenseData struct {
	ResponseCode uint8
	Key          uint8
	ASC          uint8
	ASCQ         uint8
	Info         uint32
}

// ParseSense decodes fixed format sense data. Descriptor format and truncated sense data yield
// only the fields present.
func ParseSense(b []byte) SenseData {
	var sd SenseData

	if len(b) == 0 {
		return sd
	}

	sd.ResponseCode = b[0] & 0x7f

	if len(b) > 2 {
		sd.Key = b[2] & 0x0f
	}

	if len(b) > 6 {
		sd.Info = uint32(b[3])<<24 | uint32(b[4])<<16 | uint32(b[5])<<8 | uint32(b[6])
	}

	if len(b) > 13 {
		sd.ASC = b[12]
		sd.ASCQ = b[13]
	}

	return sd
}

// Bytes encodes sd as fixed format sense data of length n (at least 18).
func (sd SenseData) Bytes(n int) []byte {
	if n < 18 {
		n = 18
	}

	b := make([]byte, n)
	b[0] = 0x70 | sd.ResponseCode&0x01
	b[2] = sd.Key & 0x0f
	b[3], b[4], b[5], b[6] = uint8(sd.Info>>24), uint8(sd.Info>>16), uint8(sd.Info>>8), uint8(sd.Info)
	b[7] = uint8(n - 8)
	b[12] = sd.ASC
	b[13] = sd.ASCQ

	return b
}

// KeyString returns the name of the sense key.
func (sd SenseData) KeyString() string {
	return senseKeys[sd.Key&0x0f]
}

func (sd SenseData) String() string {
	return fmt.Sprintf("%s, asc %#02x ascq %#02x", sd.KeyString(), sd.ASC, sd.ASCQ)
}

// CheckConditionError is returned when a drive completes a passthrough command with a SCSI
// status other than GOOD.
type CheckConditionError struct {
	ScsiStatus uint8
	Sense      SenseData
}

func (e *CheckConditionError) Error() string {
	if e.ScsiStatus == SAM_STAT_CHECK_CONDITION {
		return fmt.Sprintf("SCSI check condition: %s", e.Sense)
	}
	return fmt.Sprintf("SCSI status: %#02x", e.ScsiStatus)
}
