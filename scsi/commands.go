// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package scsi builds the SCSI commands sent to physical drives through the controller's direct
// CDB passthrough and parses their replies.
package scsi

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/dswarbrick/raidctl/utils"
)

const (
	// SCSI commands used by this package
	SCSI_TEST_UNIT_READY = 0x00
	SCSI_REQUEST_SENSE   = 0x03
	SCSI_INQUIRY         = 0x12

	// Minimum length of standard INQUIRY response
	INQ_REPLY_LEN = 36

	// Length of fixed format sense data requested from the controller
	SENSE_LEN = 40
)

// SCSI status byte values
const (
	SAM_STAT_GOOD            = 0x00
	SAM_STAT_CHECK_CONDITION = 0x02
	SAM_STAT_BUSY            = 0x08
)

// Peripheral qualifier and device type, INQUIRY byte 0
const (
	PQ_CONNECTED     = 0x00
	PQ_NOT_CONNECTED = 0x01
	PQ_NOT_CAPABLE   = 0x03

	TYPE_DISK      = 0x00
	TYPE_TAPE      = 0x01
	TYPE_PROC      = 0x03
	TYPE_WORM      = 0x04
	TYPE_ROM       = 0x05
	TYPE_ENCLOSURE = 0x0d
	TYPE_NO_LUN    = 0x1f
)

// SCSI CDB types
type CDB6 [6]byte
type CDB10 [10]byte
type CDB16 [16]byte

// InquiryCDB returns a standard INQUIRY command requesting allocLen bytes.
func InquiryCDB(allocLen uint8) CDB6 {
	return CDB6{SCSI_INQUIRY, 0, 0, 0, allocLen, 0}
}

// TestUnitReadyCDB returns a TEST UNIT READY command.
func TestUnitReadyCDB() CDB6 {
	return CDB6{SCSI_TEST_UNIT_READY}
}

var deviceTypes = map[uint8]string{
	TYPE_DISK:      "disk",
	TYPE_TAPE:      "tape",
	TYPE_PROC:      "processor",
	TYPE_WORM:      "worm",
	TYPE_ROM:       "cd/dvd",
	TYPE_ENCLOSURE: "enclosure",
	TYPE_NO_LUN:    "no device",
}

// DeviceTypeName returns a short name for a peripheral device type.
func DeviceTypeName(t uint8) string {
	if s, ok := deviceTypes[t]; ok {
		return s
	}
	return fmt.Sprintf("type %#02x", t)
}

// InquiryData is the standard INQUIRY reply.
type InquiryData struct {
	Peripheral   uint8 // qualifier (3 bits) | device type (5 bits)
	RMB          uint8
	Version      uint8
	RespFmt      uint8
	AddLen       uint8
	Flags        [3]uint8
	VendorIdent  [8]byte
	ProductIdent [16]byte
	ProductRev   [4]byte
}

// Qualifier returns the peripheral qualifier.
func (inq *InquiryData) Qualifier() uint8 {
	return inq.Peripheral >> 5
}

// DeviceType returns the peripheral device type.
func (inq *InquiryData) DeviceType() uint8 {
	return inq.Peripheral & 0x1f
}

// Present reports whether a device is attached at the logical unit.
func (inq *InquiryData) Present() bool {
	return inq.Qualifier() == PQ_CONNECTED && inq.DeviceType() != TYPE_NO_LUN
}

func (inq InquiryData) String() string {
	return fmt.Sprintf("%.8s  %.16s  %.4s",
		utils.TrimPadded(inq.VendorIdent[:]), utils.TrimPadded(inq.ProductIdent[:]),
		utils.TrimPadded(inq.ProductRev[:]))
}

// ParseInquiry decodes a standard INQUIRY reply. At least INQ_REPLY_LEN bytes are required.
func ParseInquiry(b []byte) (*InquiryData, error) {
	if len(b) < INQ_REPLY_LEN {
		return nil, errors.Errorf("INQUIRY reply too short: %d bytes", len(b))
	}

	inq := &InquiryData{
		Peripheral: b[0],
		RMB:        b[1],
		Version:    b[2],
		RespFmt:    b[3],
		AddLen:     b[4],
	}
	copy(inq.Flags[:], b[5:8])
	copy(inq.VendorIdent[:], b[8:16])
	copy(inq.ProductIdent[:], b[16:32])
	copy(inq.ProductRev[:], b[32:36])

	return inq, nil
}

// Bytes encodes inq into its INQ_REPLY_LEN byte wire form.
func (inq *InquiryData) Bytes() []byte {
	b := make([]byte, INQ_REPLY_LEN)
	b[0] = inq.Peripheral
	b[1] = inq.RMB
	b[2] = inq.Version
	b[3] = inq.RespFmt
	b[4] = inq.AddLen
	copy(b[5:8], inq.Flags[:])
	copy(b[8:16], inq.VendorIdent[:])
	copy(b[16:32], inq.ProductIdent[:])
	copy(b[32:36], inq.ProductRev[:])
	return b
}
