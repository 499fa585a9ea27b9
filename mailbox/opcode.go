// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Mailbox opcodes and the static per-opcode reply table.

package mailbox

import "fmt"

// Opcode is a mailbox command opcode. Only the opcodes in the table below are accepted.
type Opcode uint8

const (
	OpDirectCDB    Opcode = 0x04
	OpFlush        Opcode = 0x0a
	OpRebuildStat  Opcode = 0x0c
	OpStartDevice  Opcode = 0x10
	OpRebuildAsync Opcode = 0x16
	OpEnqSysDrive  Opcode = 0x19
	OpEnquiry2     Opcode = 0x1c
	OpCheckAsync   Opcode = 0x1e
	OpDeviceState  Opcode = 0x50
	OpEnquiry      Opcode = 0x53
)

// Direction is the data transfer direction of a mailbox command.
type Direction uint8

const (
	XferNone Direction = 0x00
	XferIn   Direction = 0x01 // Device to host
	XferOut  Direction = 0x02 // Host to device
	XferBoth Direction = XferIn | XferOut
)

func (d Direction) String() string {
	switch d {
	case XferNone:
		return "none"
	case XferIn:
		return "in"
	case XferOut:
		return "out"
	case XferBoth:
		return "both"
	}
	return fmt.Sprintf("invalid (%#02x)", uint8(d))
}

type opInfo struct {
	name      string
	params    int
	dir       Direction
	replySize int
	decode    func([]byte) (interface{}, error)
}

var opTable = map[Opcode]opInfo{
	OpDirectCDB:    {"DIRECT_CDB", 0, XferBoth, SizeOfCDBReply, decodeCDBReply},
	OpFlush:        {"FLUSH", 0, XferNone, 0, nil},
	OpRebuildStat:  {"REBUILD_STAT", 0, XferIn, SizeOfRebuildStatus, decodeRebuildStatus},
	OpStartDevice:  {"START_DEVICE", 2, XferNone, 0, nil},
	OpRebuildAsync: {"REBUILD_ASYNC", 2, XferNone, 0, nil},
	OpEnqSysDrive:  {"ENQ_SYS_DRIVE", 0, XferIn, SizeOfSysDriveTable, decodeSysDriveTable},
	OpEnquiry2:     {"ENQUIRY2", 0, XferIn, SizeOfEnquiry2, decodeEnquiry2},
	OpCheckAsync:   {"CHECK_ASYNC", 1, XferNone, 0, nil},
	OpDeviceState:  {"DEVICE_STATE", 2, XferIn, SizeOfPhysDrive, decodePhysDrive},
	OpEnquiry:      {"ENQUIRY", 0, XferIn, SizeOfEnquiry, decodeEnquiry},
}

func decodeCDBReply(b []byte) (interface{}, error) {
	v := new(CDBReply)
	return v, unpack(b, v)
}

func decodeRebuildStatus(b []byte) (interface{}, error) {
	v := new(RebuildStatus)
	return v, unpack(b, v)
}

func decodeSysDriveTable(b []byte) (interface{}, error) {
	v := new(SysDriveTable)
	return v, unpack(b, v)
}

func decodeEnquiry2(b []byte) (interface{}, error) {
	v := new(Enquiry2)
	return v, unpack(b, v)
}

func decodePhysDrive(b []byte) (interface{}, error) {
	v := new(PhysDrive)
	return v, unpack(b, v)
}

func decodeEnquiry(b []byte) (interface{}, error) {
	v := new(Enquiry)
	return v, unpack(b, v)
}

func (op Opcode) String() string {
	if info, ok := opTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("opcode %#02x", uint8(op))
}

// Valid reports whether op is one of the supported opcodes.
func (op Opcode) Valid() bool {
	_, ok := opTable[op]
	return ok
}

// ParamCount returns the number of parameter bytes op takes.
func (op Opcode) ParamCount() int {
	return opTable[op].params
}

// Direction returns the transfer direction op requires.
func (op Opcode) Direction() Direction {
	return opTable[op].dir
}

// ReplySize returns the exact size of the data buffer exchanged for op.
func (op Opcode) ReplySize() int {
	return opTable[op].replySize
}

// Decode interprets a reply buffer according to op. The buffer must be exactly op's reply size.
func Decode(op Opcode, b []byte) (interface{}, error) {
	info, ok := opTable[op]
	if !ok {
		return nil, Errorf(KindNotSupported, "decode", "unknown %s", op)
	}

	if info.decode == nil {
		return nil, Errorf(KindInvalidRequest, "decode", "%s carries no reply data", op)
	}

	if len(b) != info.replySize {
		return nil, Errorf(KindMalformedReply, "decode", "%s reply is %d bytes, expected %d",
			op, len(b), info.replySize)
	}

	return info.decode(b)
}
