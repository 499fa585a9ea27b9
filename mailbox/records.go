// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Fixed-format reply records. All records are packed and little-endian; encoding/binary does
// not insert padding, so binary.Size of each type is its wire size.

package mailbox

import (
	"bytes"
	"encoding/binary"
)

const (
	MaxSysDrives  = 32
	MaxDeadDrives = 20
	DCDBDataSize  = 64
	DCDBSenseSize = 64
	DCDBCDBSize   = 12
)

// System drive states
const (
	SysDriveOnline   = 0x03
	SysDriveCritical = 0x04
	SysDriveOffline  = 0xff
)

// Physical drive flags and states, as reported by DEVICE_STATE
const (
	PhysDrivePresent = 0x01

	PhysDriveOther      = 0x00
	PhysDriveDisk       = 0x01
	PhysDriveSequential = 0x02
	PhysDriveCDROM      = 0x03
	PhysDriveTypeMask   = 0x07
	PhysDriveFast20     = 0x08
	PhysDriveSync       = 0x10
	PhysDriveFast       = 0x20
	PhysDriveWide       = 0x40
	PhysDriveTag        = 0x80

	PhysDriveDead      = 0x00
	PhysDriveWriteOnly = 0x02
	PhysDriveOnline    = 0x03
	PhysDriveStandby   = 0x10
)

// Rebuild status operations
const (
	RebuildOpNone    = 0x00
	RebuildOpRebuild = 0x01
	RebuildOpCheck   = 0x02
)

// DCDB flags
const (
	DCDBNoData      = 0x00
	DCDBDataIn      = 0x01
	DCDBDataOut     = 0x02
	DCDBEarlyStatus = 0x04
	DCDBTimeout10s  = 0x10
	DCDBTimeout60s  = 0x20
	DCDBTimeout20m  = 0x30
	DCDBSlow        = 0x40
	DCDBNoAutoSense = 0x80
)

// DeadDrive identifies a failed physical drive in the ENQUIRY reply.
type DeadDrive struct {
	Target  uint8
	Channel uint8
}

// Enquiry is the ENQUIRY reply (192 bytes).
type Enquiry struct {
	SysDriveCount         uint8
	_                     [3]uint8
	SysDriveSize          [MaxSysDrives]uint32
	FlashAge              uint16
	StatusFlags           uint8
	StateChangeCount      uint8
	FirmwareMinor         uint8
	FirmwareMajor         uint8
	RebuildFlag           uint8
	MaxCommands           uint8
	OfflineSysDriveCount  uint8
	_                     uint8
	EventLogSeqNum        uint16
	CriticalSysDriveCount uint8
	_                     [3]uint8
	DeadCount             uint8
	_                     uint8
	RebuildCount          uint8
	MiscFlags             uint8
	Dead                  [MaxDeadDrives]DeadDrive
}

// Enquiry2 is the ENQUIRY2 reply (64 bytes), describing the controller hardware.
type Enquiry2 struct {
	HardwareID         [4]uint8
	FirmwareID         [4]uint8 // major, minor, turn, build
	_                  uint32
	ConfiguredChannels uint8
	ActualChannels     uint8
	MaxTargets         uint8
	MaxTags            uint8
	MaxSysDrives       uint8
	MaxArms            uint8
	MaxSpans           uint8
	_                  uint8
	MemorySize         uint32
	CacheSize          uint32
	FlashSize          uint32
	NVRAMSize          uint32
	MaxCommands        uint16
	MaxSGEntries       uint16
	MaxDeviceCommands  uint16
	ClockSpeed         uint16
	Vendor             [8]byte
	ProductName        [12]byte
}

// SysDrive is one entry of the ENQ_SYS_DRIVE reply.
type SysDrive struct {
	Size      uint32 // Sectors
	State     uint8
	RAIDLevel uint8
	_         uint16
}

// SysDriveTable is the ENQ_SYS_DRIVE reply (256 bytes).
type SysDriveTable [MaxSysDrives]SysDrive

// PhysDrive is the DEVICE_STATE reply (12 bytes).
type PhysDrive struct {
	Flags1     uint8
	Flags2     uint8
	State      uint8
	_          uint8
	Period     uint8
	Offset     uint8
	_          [2]uint8
	ConfigSize uint32 // Sectors
}

// Present reports whether a drive answered at the probed address.
func (pd *PhysDrive) Present() bool {
	return pd.Flags1&PhysDrivePresent != 0
}

// StateString returns a human-readable physical drive state.
func (pd *PhysDrive) StateString() string {
	switch pd.State {
	case PhysDriveDead:
		return "dead"
	case PhysDriveWriteOnly:
		return "write-only"
	case PhysDriveOnline:
		return "online"
	case PhysDriveStandby:
		return "standby"
	}
	return "unknown"
}

// RebuildStatus is the REBUILD_STAT reply (12 bytes).
type RebuildStatus struct {
	SysDrive  uint8
	Operation uint8
	_         [2]uint8
	Size      uint32
	Remaining uint32
}

// Percent returns the completed fraction of the running operation, 0-100.
func (rs *RebuildStatus) Percent() int {
	if rs.Size == 0 {
		return 0
	}
	return int(uint64(rs.Size-rs.Remaining) * 100 / uint64(rs.Size))
}

// DCDB is the direct CDB request block (88 bytes). It travels host-to-device with the CDB and
// comes back with the SCSI status and sense data filled in.
type DCDB struct {
	Target      uint8 // (channel << 4) | target
	Flags       uint8
	DataSize    uint16
	PhysAddr    uint32
	CDBLength   uint8
	SenseLength uint8
	CDB         [DCDBCDBSize]uint8
	Sense       [DCDBSenseSize]uint8
	Status      uint8
	_           uint8
}

// CDBReply is the complete DIRECT_CDB buffer: the DCDB followed by the data area.
type CDBReply struct {
	DCDB DCDB
	Data [DCDBDataSize]byte
}

// DCDBTarget encodes a channel/target pair into the DCDB target byte.
func DCDBTarget(channel, target uint8) uint8 {
	return (channel << 4) | (target & 0x0f)
}

// Record sizes, derived once from the type definitions.
var (
	SizeOfEnquiry       = binary.Size(Enquiry{})
	SizeOfEnquiry2      = binary.Size(Enquiry2{})
	SizeOfSysDriveTable = binary.Size(SysDriveTable{})
	SizeOfPhysDrive     = binary.Size(PhysDrive{})
	SizeOfRebuildStatus = binary.Size(RebuildStatus{})
	SizeOfDCDB          = binary.Size(DCDB{})
	SizeOfCDBReply      = binary.Size(CDBReply{})
)

// Pack encodes a fixed-format record in little-endian wire order.
func Pack(v interface{}) []byte {
	b := new(bytes.Buffer)
	binary.Write(b, binary.LittleEndian, v)
	return b.Bytes()
}

func unpack(b []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, v)
}
