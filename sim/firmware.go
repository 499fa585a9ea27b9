// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package sim is an in-process controller firmware. It answers every mailbox opcode from a YAML
// profile of drives and system drives, raises asynchronous events as a real controller would,
// and can be told to fail in the ways real hardware does.
package sim

import (
	"bytes"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/raidctl/controller"
	"github.com/dswarbrick/raidctl/eventlog"
	"github.com/dswarbrick/raidctl/mailbox"
	"github.com/dswarbrick/raidctl/scsi"
	"github.com/dswarbrick/raidctl/utils"
)

// Async event status codes raised by the firmware
const (
	EventRebuildStarted = 0x0010
	EventRebuildDone    = 0x0011
	EventCheckStarted   = 0x0012
	EventCheckDone      = 0x0013
	EventDriveStarted   = 0x0020
)

// Number of REBUILD_STAT polls a background operation takes to finish.
const rebuildSteps = 4

var log = logrus.WithField("pkg", "sim")

// EventSink receives firmware-originated events.
type EventSink interface {
	Store(src eventlog.Source, idx uint16, d eventlog.Data) (eventlog.Record, eventlog.Handle, error)
}

type drive struct {
	DriveProfile
	state uint8
}

type background struct {
	op       uint8
	sysDrive uint8
	drive    *drive
	size     uint32
	left     uint32
}

// Firmware simulates one controller. It implements mailbox.Transport.
type Firmware struct {
	mu        sync.Mutex
	profile   ControllerProfile
	node      uint16
	drives    map[[2]uint8]*drive
	sysDrives []mailbox.SysDrive
	bg        *background
	events    EventSink
	eventIdx  uint16

	failErr    error
	failStatus map[mailbox.Opcode]mailbox.Status
	shortBy    map[mailbox.Opcode]int
}

// NewFirmware returns a firmware instance for cp.
func NewFirmware(cp ControllerProfile) *Firmware {
	fw := &Firmware{
		profile:    cp,
		drives:     make(map[[2]uint8]*drive),
		failStatus: make(map[mailbox.Opcode]mailbox.Status),
		shortBy:    make(map[mailbox.Opcode]int),
	}

	for _, d := range cp.Drives {
		fw.drives[[2]uint8{d.Channel, d.Target}] = &drive{DriveProfile: d, state: physStates[d.State]}
	}

	for _, sd := range cp.SysDrives {
		fw.sysDrives = append(fw.sysDrives, mailbox.SysDrive{
			Size:      sd.Sectors,
			State:     sysStates[sd.State],
			RAIDLevel: sd.RAIDLevel,
		})
	}

	return fw
}

// Identity returns the controller identity described by the profile.
func (fw *Firmware) Identity() controller.Identity {
	cp := &fw.profile
	return controller.Identity{
		Name:        cp.Name,
		OEMID:       cp.OEMID,
		Type:        cp.Type,
		Bus:         cp.Bus,
		Device:      cp.Device,
		Function:    cp.Function,
		VendorID:    cp.VendorID,
		DeviceID:    cp.DeviceID,
		SubDeviceID: cp.SubDeviceID,
	}
}

// SetEventSink directs firmware events to sink, tagged with the controller's io_node.
func (fw *Firmware) SetEventSink(sink EventSink, node int) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.events = sink
	fw.node = uint16(node)
}

// SetFailOnExchange makes every following exchange fail with err. A nil err clears the fault.
func (fw *Firmware) SetFailOnExchange(err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.failErr = err
}

// SetFailStatus makes commands with opcode op complete with status s. StatusOK clears the fault.
func (fw *Firmware) SetFailStatus(op mailbox.Opcode, s mailbox.Status) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if s == mailbox.StatusOK {
		delete(fw.failStatus, op)
	} else {
		fw.failStatus[op] = s
	}
}

// SetShortReply makes commands with opcode op report n fewer bytes than they transferred.
func (fw *Firmware) SetShortReply(op mailbox.Opcode, n int) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if n == 0 {
		delete(fw.shortBy, op)
	} else {
		fw.shortBy[op] = n
	}
}

// Exchange executes one mailbox command.
func (fw *Firmware) Exchange(f mailbox.Frame, data []byte) (mailbox.Completion, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.failErr != nil {
		return mailbox.Completion{}, fw.failErr
	}

	op := f.Opcode()
	if s, ok := fw.failStatus[op]; ok {
		return mailbox.Completion{Status: s}, nil
	}

	if !op.Valid() || len(data) != op.ReplySize() {
		return mailbox.Completion{Status: mailbox.StatusInvalidOpcode}, nil
	}

	var status mailbox.Status

	switch op {
	case mailbox.OpEnquiry:
		status = fw.put(data, fw.enquiry())
	case mailbox.OpEnquiry2:
		status = fw.put(data, fw.enquiry2())
	case mailbox.OpEnqSysDrive:
		var t mailbox.SysDriveTable
		copy(t[:], fw.sysDrives)
		status = fw.put(data, &t)
	case mailbox.OpDeviceState:
		status = fw.deviceState(f.Param(0), f.Param(1), data)
	case mailbox.OpDirectCDB:
		status = fw.directCDB(data)
	case mailbox.OpFlush:
		status = mailbox.StatusOK
	case mailbox.OpStartDevice:
		status = fw.startDevice(f.Param(0), f.Param(1))
	case mailbox.OpRebuildAsync:
		status = fw.rebuild(f.Param(0), f.Param(1))
	case mailbox.OpCheckAsync:
		status = fw.check(f.Param(0))
	case mailbox.OpRebuildStat:
		status = fw.rebuildStat(data)
	}

	comp := mailbox.Completion{Status: status}
	if status == mailbox.StatusOK && op.Direction()&mailbox.XferIn != 0 {
		comp.Count = len(data) - fw.shortBy[op]
	}

	log.WithFields(logrus.Fields{
		"opcode": op,
		"ident":  f.Ident(),
		"status": status,
	}).Debug("exchange")

	return comp, nil
}

func (fw *Firmware) put(data []byte, v interface{}) mailbox.Status {
	b := new(bytes.Buffer)
	binary.Write(b, binary.LittleEndian, v)
	copy(data, b.Bytes())
	return mailbox.StatusOK
}

func (fw *Firmware) validAddress(channel, target uint8) bool {
	return channel < fw.profile.Channels && target < fw.profile.Targets
}

// addresses returns the channel/target of every drive, in channel then target order.
func (fw *Firmware) addresses() [][2]uint8 {
	addrs := make([][2]uint8, 0, len(fw.drives))
	for addr := range fw.drives {
		addrs = append(addrs, addr)
	}

	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i][0] != addrs[j][0] {
			return addrs[i][0] < addrs[j][0]
		}
		return addrs[i][1] < addrs[j][1]
	})

	return addrs
}

func (fw *Firmware) enquiry() *mailbox.Enquiry {
	var e mailbox.Enquiry

	e.SysDriveCount = uint8(len(fw.sysDrives))
	for i, sd := range fw.sysDrives {
		e.SysDriveSize[i] = sd.Size
		switch sd.State {
		case mailbox.SysDriveOffline:
			e.OfflineSysDriveCount++
		case mailbox.SysDriveCritical:
			e.CriticalSysDriveCount++
		}
	}

	e.FirmwareMajor, e.FirmwareMinor, _ = fw.profile.firmwareVersion()
	e.MaxCommands = 64
	e.EventLogSeqNum = fw.eventIdx

	for _, addr := range fw.addresses() {
		d := fw.drives[addr]
		if d.state == mailbox.PhysDriveDead && int(e.DeadCount) < mailbox.MaxDeadDrives {
			e.Dead[e.DeadCount] = mailbox.DeadDrive{Channel: addr[0], Target: addr[1]}
			e.DeadCount++
		}
	}

	if fw.bg != nil && fw.bg.op == mailbox.RebuildOpRebuild {
		e.RebuildFlag = 1
		e.RebuildCount = 1
	}

	return &e
}

func (fw *Firmware) enquiry2() *mailbox.Enquiry2 {
	cp := &fw.profile
	var e mailbox.Enquiry2

	binary.LittleEndian.PutUint16(e.HardwareID[:2], cp.DeviceID)
	e.FirmwareID[0], e.FirmwareID[1], _ = cp.firmwareVersion()
	e.ConfiguredChannels = cp.Channels
	e.ActualChannels = cp.Channels
	e.MaxTargets = cp.Targets
	e.MaxTags = 16
	e.MaxSysDrives = mailbox.MaxSysDrives
	e.MaxArms = 8
	e.MaxSpans = 4
	e.MemorySize = cp.MemoryMB << 20
	e.CacheSize = cp.MemoryMB << 20
	e.MaxCommands = 64
	e.MaxSGEntries = 17
	e.MaxDeviceCommands = 8
	e.ClockSpeed = 100

	utils.PadCopy(e.Vendor[:], "ICP", ' ')
	utils.PadCopy(e.ProductName[:], cp.Name, ' ')

	return &e
}

func (fw *Firmware) deviceState(channel, target uint8, data []byte) mailbox.Status {
	if !fw.validAddress(channel, target) {
		return mailbox.StatusInvalidAddress
	}

	var pd mailbox.PhysDrive

	if d, ok := fw.drives[[2]uint8{channel, target}]; ok {
		pd.Flags1 = mailbox.PhysDrivePresent | mailbox.PhysDriveDisk
		pd.Flags2 = mailbox.PhysDriveWide | mailbox.PhysDriveTag | mailbox.PhysDriveSync
		pd.State = d.state
		pd.Period = 25
		pd.Offset = 15
		pd.ConfigSize = d.Sectors
	}

	return fw.put(data, &pd)
}

func (fw *Firmware) directCDB(data []byte) mailbox.Status {
	var req mailbox.CDBReply
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &req); err != nil {
		return mailbox.StatusUnrecoverable
	}

	channel, target := req.DCDB.Target>>4, req.DCDB.Target&0x0f
	if !fw.validAddress(channel, target) {
		return mailbox.StatusInvalidAddress
	}

	d, ok := fw.drives[[2]uint8{channel, target}]
	if !ok {
		return mailbox.StatusSelectionTimeout
	}

	var reply mailbox.CDBReply
	reply.DCDB = req.DCDB
	reply.DCDB.Status = scsi.SAM_STAT_GOOD

	checkCondition := func(key, asc uint8) {
		reply.DCDB.Status = scsi.SAM_STAT_CHECK_CONDITION
		sense := scsi.SenseData{Key: key, ASC: asc}.Bytes(len(reply.DCDB.Sense))
		copy(reply.DCDB.Sense[:], sense)
		reply.DCDB.DataSize = 0
	}

	switch req.DCDB.CDB[0] {
	case scsi.SCSI_INQUIRY:
		inq := scsi.InquiryData{Peripheral: scsi.TYPE_DISK, Version: 0x02, RespFmt: 0x02, AddLen: 31}
		utils.PadCopy(inq.VendorIdent[:], d.Vendor, ' ')
		utils.PadCopy(inq.ProductIdent[:], d.Product, ' ')
		utils.PadCopy(inq.ProductRev[:], d.Revision, ' ')

		n := int(req.DCDB.CDB[4])
		if n > len(reply.Data) {
			n = len(reply.Data)
		}
		reply.DCDB.DataSize = uint16(copy(reply.Data[:n], inq.Bytes()))

	case scsi.SCSI_TEST_UNIT_READY:
		if d.state == mailbox.PhysDriveDead || d.state == mailbox.PhysDriveStandby {
			checkCondition(scsi.NOT_READY, 0x04)
		}

	default:
		// Invalid command operation code
		checkCondition(scsi.ILLEGAL_REQUEST, 0x20)
	}

	return fw.put(data, &reply)
}

func (fw *Firmware) startDevice(channel, target uint8) mailbox.Status {
	if !fw.validAddress(channel, target) {
		return mailbox.StatusInvalidAddress
	}

	d, ok := fw.drives[[2]uint8{channel, target}]
	if !ok {
		return mailbox.StatusNoDrive
	}

	if d.state == mailbox.PhysDriveStandby {
		d.state = mailbox.PhysDriveOnline
		fw.post(eventlog.AsyncEvent{Status: EventDriveStarted, SCSICoord: [3]uint8{channel, target, 0}},
			"drive started")
	}

	return mailbox.StatusOK
}

func (fw *Firmware) rebuild(channel, target uint8) mailbox.Status {
	if !fw.validAddress(channel, target) {
		return mailbox.StatusInvalidAddress
	}

	d, ok := fw.drives[[2]uint8{channel, target}]
	if !ok {
		return mailbox.StatusNoDrive
	}

	if fw.bg != nil {
		return mailbox.StatusInProgress
	}

	d.state = mailbox.PhysDriveWriteOnly
	fw.bg = &background{op: mailbox.RebuildOpRebuild, drive: d, size: d.Sectors, left: d.Sectors}

	for i := range fw.sysDrives {
		if fw.sysDrives[i].State == mailbox.SysDriveCritical {
			fw.bg.sysDrive = uint8(i)
			break
		}
	}

	fw.post(eventlog.AsyncEvent{Status: EventRebuildStarted, SCSICoord: [3]uint8{channel, target, 0}},
		"rebuild started")

	return mailbox.StatusOK
}

func (fw *Firmware) check(sysDrive uint8) mailbox.Status {
	if int(sysDrive) >= len(fw.sysDrives) {
		return mailbox.StatusInvalidAddress
	}

	if fw.bg != nil {
		return mailbox.StatusInProgress
	}

	size := fw.sysDrives[sysDrive].Size
	fw.bg = &background{op: mailbox.RebuildOpCheck, sysDrive: sysDrive, size: size, left: size}

	fw.post(eventlog.AsyncEvent{Status: EventCheckStarted, Info: uint32(sysDrive)}, "consistency check started")

	return mailbox.StatusOK
}

// rebuildStat reports the running background operation and advances it by one step.
func (fw *Firmware) rebuildStat(data []byte) mailbox.Status {
	bg := fw.bg
	if bg == nil {
		return mailbox.StatusNoOperation
	}

	rs := mailbox.RebuildStatus{
		SysDrive:  bg.sysDrive,
		Operation: bg.op,
		Size:      bg.size,
		Remaining: bg.left,
	}

	step := bg.size / rebuildSteps
	if step == 0 || bg.left <= step {
		bg.left = 0
	} else {
		bg.left -= step
	}

	if rs.Remaining == 0 {
		fw.finish()
	}

	return fw.put(data, &rs)
}

func (fw *Firmware) finish() {
	bg := fw.bg
	fw.bg = nil

	switch bg.op {
	case mailbox.RebuildOpRebuild:
		bg.drive.state = mailbox.PhysDriveOnline
		if int(bg.sysDrive) < len(fw.sysDrives) && fw.sysDrives[bg.sysDrive].State == mailbox.SysDriveCritical {
			fw.sysDrives[bg.sysDrive].State = mailbox.SysDriveOnline
		}
		fw.post(eventlog.AsyncEvent{Status: EventRebuildDone,
			SCSICoord: [3]uint8{bg.drive.Channel, bg.drive.Target, 0}}, "rebuild completed")

	case mailbox.RebuildOpCheck:
		fw.post(eventlog.AsyncEvent{Status: EventCheckDone, Info: uint32(bg.sysDrive)}, "consistency check completed")
	}
}

// post raises an asynchronous firmware event. Called with fw.mu held.
func (fw *Firmware) post(ev eventlog.AsyncEvent, text string) {
	fw.eventIdx++

	log.WithFields(logrus.Fields{
		"node":   fw.node,
		"status": ev.Status,
	}).Warn(text)

	if fw.events == nil {
		return
	}

	ev.IONode = fw.node
	if _, _, err := fw.events.Store(eventlog.SourceAsync, fw.eventIdx, eventlog.Data{Payload: ev, Severity: 1, Text: text}); err != nil {
		log.WithError(err).Error("cannot store firmware event")
	}
}
