// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Packed ioctl argument records.

package dispatch

import (
	"bytes"
	"encoding/binary"

	"github.com/dswarbrick/raidctl/controller"
	"github.com/dswarbrick/raidctl/eventlog"
	"github.com/dswarbrick/raidctl/mailbox"
)

// Maximum data area carried by a GENERAL passthrough command.
const MaxUserData = 4096

// Event request erase values
const (
	EraseRead  = 0x00 // Read the record at Handle
	EraseClear = 0xfe // Erase the whole log
	EraseStore = 0xff // Store Event into the log
	// Any other value acknowledges the oldest record not seen by that application mask.
)

// Host OS codes reported by OSVERS
const (
	OSCodeLinux  = 8
	OSCodeNetBSD = 10
)

// UserCommand is the GENERAL passthrough record (4114 bytes).
type UserCommand struct {
	IONode   uint16
	Status   uint16 // Firmware completion status
	Command  mailbox.Frame
	BufDir   uint8
	_        uint8
	DataSize uint32
	Data     [MaxUserData]byte
}

// ControllerType is the CTRTYPE record (18 bytes).
type ControllerType struct {
	IONode      uint16
	OEMID       uint16
	Type        uint16
	Info        uint32 // (bus << 8) | (device << 3)
	Access      uint8
	Remote      uint8
	ExtType     uint16 // 0x6000 | subdevice id
	DeviceID    uint16
	SubDeviceID uint16
}

// OSVersion is the OSVERS record (69 bytes).
type OSVersion struct {
	OSCode     uint8
	Version    uint8
	Subversion uint8
	Revision   uint16
	Name       [64]byte
}

// EventRequest is the EVENT record (302 bytes).
type EventRequest struct {
	Erase  int32
	Handle int32
	Event  eventlog.WireRecord
}

// Packed record sizes
var (
	SizeOfUserCommand    = binary.Size(UserCommand{})
	SizeOfControllerType = binary.Size(ControllerType{})
	SizeOfOSVersion      = binary.Size(OSVersion{})
	SizeOfEventRequest   = binary.Size(EventRequest{})
	SizeOfStatistics     = binary.Size(controller.Statistics{})
	SizeOfInt32          = 4
)

// Unpack decodes a packed ioctl record.
func Unpack(b []byte, v interface{}) error {
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, v); err != nil {
		return mailbox.WrapError(mailbox.KindInvalidRequest, "unpack", err)
	}
	return nil
}

// PutInt32 encodes v as a packed int32 argument.
func PutInt32(b []byte, v int32) {
	binary.LittleEndian.PutUint32(b, uint32(v))
}

// Int32 decodes a packed int32 argument.
func Int32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}
