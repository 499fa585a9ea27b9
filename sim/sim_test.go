// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package sim

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/raidctl/controller"
	"github.com/dswarbrick/raidctl/eventlog"
	"github.com/dswarbrick/raidctl/mailbox"
	"github.com/dswarbrick/raidctl/scsi"
	"github.com/dswarbrick/raidctl/utils"
)

func setup(t *testing.T) (*controller.Registry, []*Firmware, *eventlog.Ring) {
	p, err := LoadProfile("testdata/two-controllers.yaml")
	require.NoError(t, err)

	reg := controller.NewRegistry()
	ring := eventlog.NewRing()
	fws, err := Attach(reg, p, ring)
	require.NoError(t, err)
	require.Len(t, fws, 2)

	return reg, fws, ring
}

func gdt(t *testing.T, reg *controller.Registry) *controller.Controller {
	c, err := reg.Lookup(0)
	require.NoError(t, err)
	return c
}

func TestProfile(t *testing.T) {
	assert := assert.New(t)

	p, err := LoadProfile("testdata/two-controllers.yaml")
	require.NoError(t, err)
	require.Len(t, p.Controllers, 2)

	cp := p.Controllers[0]
	assert.Equal("GDT8514RZ", cp.Name)
	assert.Equal(uint16(0x1119), cp.VendorID)
	assert.Len(cp.Drives, 4)

	_, err = LoadProfile("testdata/missing.yaml")
	assert.Error(err)

	bad := []string{
		"controllers: [{name: x, channels: 0, targets: 8}]",
		"controllers: [{name: x, channels: 1, targets: 8, drives: [{channel: 1, target: 0, state: online}]}]",
		"controllers: [{name: x, channels: 1, targets: 8, drives: [{channel: 0, target: 0, state: melted}]}]",
		"controllers: [{name: x, channels: 1, targets: 8, sysdrives: [{state: gone}]}]",
		"controllers: [{name: x, channels: 1, targets: 8, firmware: abc}]",
		"controllers: [{name: x, channels: 1, targets: 8, colour: red}]",
	}
	for _, y := range bad {
		_, err := ParseProfile([]byte(y))
		assert.Error(err, y)
	}
}

func TestEnquiry(t *testing.T) {
	assert := assert.New(t)
	reg, _, _ := setup(t)
	c := gdt(t, reg)

	e, err := mailbox.GetEnquiry(c)
	require.NoError(t, err)
	assert.Equal(uint8(2), e.SysDriveCount)
	assert.Equal(uint32(35566480), e.SysDriveSize[0])
	assert.Equal(uint8(1), e.CriticalSysDriveCount)
	assert.Equal(uint8(2), e.FirmwareMajor)
	assert.Equal(uint8(32), e.FirmwareMinor)
	assert.Equal(uint8(1), e.DeadCount)
	assert.Equal(mailbox.DeadDrive{Target: 2, Channel: 0}, e.Dead[0])

	e2, err := mailbox.GetEnquiry2(c)
	require.NoError(t, err)
	assert.Equal(uint8(2), e2.ActualChannels)
	assert.Equal(uint8(16), e2.MaxTargets)
	assert.Equal("GDT8514RZ", utils.TrimPadded(e2.ProductName[:]))
	assert.Equal(uint32(64<<20), e2.MemorySize)

	sds, err := mailbox.GetSysDrives(c, int(e.SysDriveCount))
	require.NoError(t, err)
	require.Len(t, sds, 2)
	assert.Equal(uint8(mailbox.SysDriveCritical), sds[0].State)
	assert.Equal(uint8(5), sds[0].RAIDLevel)
}

func TestEnquiryDeadOrder(t *testing.T) {
	p, err := ParseProfile([]byte(`
controllers:
  - name: GDT6538RS
    vendor_id: 0x1119
    channels: 3
    targets: 16
    drives:
      - {channel: 2, target: 1, vendor: IBM, product: DDYS-T36950M, sectors: 71687370, state: dead}
      - {channel: 0, target: 9, vendor: IBM, product: DDYS-T36950M, sectors: 71687370, state: dead}
      - {channel: 1, target: 0, vendor: IBM, product: DDYS-T36950M, sectors: 71687370, state: online}
      - {channel: 0, target: 3, vendor: IBM, product: DDYS-T36950M, sectors: 71687370, state: dead}
      - {channel: 1, target: 12, vendor: IBM, product: DDYS-T36950M, sectors: 71687370, state: dead}
`))
	require.NoError(t, err)

	want := []mailbox.DeadDrive{
		{Channel: 0, Target: 3},
		{Channel: 0, Target: 9},
		{Channel: 1, Target: 12},
		{Channel: 2, Target: 1},
	}

	// Map iteration order varies, so repeat to catch an unsorted list
	for i := 0; i < 20; i++ {
		fw := NewFirmware(p.Controllers[0])
		e := fw.enquiry()
		require.Equal(t, uint8(len(want)), e.DeadCount)
		assert.Equal(t, want, e.Dead[:e.DeadCount])
	}
}

func TestDeviceState(t *testing.T) {
	assert := assert.New(t)
	reg, _, _ := setup(t)
	c := gdt(t, reg)

	pd, err := mailbox.GetDeviceState(c, 0, 2)
	require.NoError(t, err)
	assert.True(pd.Present())
	assert.Equal("dead", pd.StateString())

	pd, err = mailbox.GetDeviceState(c, 1, 0)
	require.NoError(t, err)
	assert.False(pd.Present())

	_, err = mailbox.GetDeviceState(c, 7, 0)
	assert.True(errors.Is(err, mailbox.ErrInvalidRequest))
}

func TestDirectCDB(t *testing.T) {
	assert := assert.New(t)
	reg, _, _ := setup(t)
	c := gdt(t, reg)

	dcdb := mailbox.DCDB{Target: mailbox.DCDBTarget(0, 0), Flags: mailbox.DCDBDataIn, CDBLength: 6, SenseLength: 40}
	cdb := scsi.InquiryCDB(scsi.INQ_REPLY_LEN)
	copy(dcdb.CDB[:], cdb[:])

	reply, err := mailbox.ExecDCDB(c, &dcdb, nil)
	require.NoError(t, err)
	assert.Equal(uint8(scsi.SAM_STAT_GOOD), reply.DCDB.Status)
	assert.Equal(uint16(scsi.INQ_REPLY_LEN), reply.DCDB.DataSize)

	inq, err := scsi.ParseInquiry(reply.Data[:])
	require.NoError(t, err)
	assert.Equal("SEAGATE", utils.TrimPadded(inq.VendorIdent[:]))

	// Unsupported CDB
	dcdb.CDB[0] = 0x25
	reply, err = mailbox.ExecDCDB(c, &dcdb, nil)
	require.NoError(t, err)
	assert.Equal(uint8(scsi.SAM_STAT_CHECK_CONDITION), reply.DCDB.Status)
	sense := scsi.ParseSense(reply.DCDB.Sense[:])
	assert.Equal(uint8(scsi.ILLEGAL_REQUEST), sense.Key)

	// TEST UNIT READY on a standby drive
	dcdb.Target = mailbox.DCDBTarget(1, 5)
	dcdb.CDB = [12]uint8{}
	reply, err = mailbox.ExecDCDB(c, &dcdb, nil)
	require.NoError(t, err)
	assert.Equal(uint8(scsi.NOT_READY), scsi.ParseSense(reply.DCDB.Sense[:]).Key)

	// Nobody home
	dcdb.Target = mailbox.DCDBTarget(0, 9)
	_, err = mailbox.ExecDCDB(c, &dcdb, nil)
	assert.True(errors.Is(err, mailbox.ErrDriveAbsent))
	status, _ := mailbox.StatusOf(err)
	assert.Equal(mailbox.StatusSelectionTimeout, status)
}

func TestRebuild(t *testing.T) {
	assert := assert.New(t)
	reg, _, ring := setup(t)
	c := gdt(t, reg)

	_, err := mailbox.GetRebuildStatus(c)
	assert.True(errors.Is(err, mailbox.ErrTransportFailure))
	status, _ := mailbox.StatusOf(err)
	assert.Equal(mailbox.StatusNoOperation, status)

	assert.True(errors.Is(mailbox.RebuildAsync(c, 0, 9), mailbox.ErrDriveAbsent))
	require.NoError(t, mailbox.RebuildAsync(c, 0, 2))

	err = mailbox.RebuildAsync(c, 0, 2)
	status, _ = mailbox.StatusOf(err)
	assert.Equal(mailbox.StatusInProgress, status)

	pd, err := mailbox.GetDeviceState(c, 0, 2)
	require.NoError(t, err)
	assert.Equal(uint8(mailbox.PhysDriveWriteOnly), pd.State)

	var last *mailbox.RebuildStatus
	for i := 0; i < 10; i++ {
		rs, err := mailbox.GetRebuildStatus(c)
		if err != nil {
			break
		}
		assert.Equal(uint8(mailbox.RebuildOpRebuild), rs.Operation)
		last = rs
	}
	require.NotNil(t, last)
	assert.Equal(100, last.Percent())

	pd, err = mailbox.GetDeviceState(c, 0, 2)
	require.NoError(t, err)
	assert.Equal("online", pd.StateString())

	sds, err := mailbox.GetSysDrives(c, 2)
	require.NoError(t, err)
	assert.Equal(uint8(mailbox.SysDriveOnline), sds[0].State)

	recs, err := eventlog.ReadAll(ring)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(eventlog.SourceAsync, recs[0].Source)
	assert.Equal("rebuild started", recs[0].Text)
	assert.Equal(uint16(EventRebuildDone), recs[1].Payload.(eventlog.AsyncEvent).Status)
}

func TestCheckAndStart(t *testing.T) {
	assert := assert.New(t)
	reg, fws, ring := setup(t)
	c := gdt(t, reg)

	assert.True(errors.Is(mailbox.CheckAsync(c, 5), mailbox.ErrInvalidRequest))
	require.NoError(t, mailbox.CheckAsync(c, 1))

	rs, err := mailbox.GetRebuildStatus(c)
	require.NoError(t, err)
	assert.Equal(uint8(mailbox.RebuildOpCheck), rs.Operation)
	assert.Equal(uint8(1), rs.SysDrive)

	require.NoError(t, mailbox.StartDevice(c, 1, 5))
	pd, err := mailbox.GetDeviceState(c, 1, 5)
	require.NoError(t, err)
	assert.Equal("online", pd.StateString())

	assert.True(errors.Is(mailbox.StartDevice(c, 1, 6), mailbox.ErrDriveAbsent))
	assert.NoError(mailbox.Flush(c))

	assert.Equal(2, ring.Len())

	// Events from the second controller carry its io_node
	other, err := reg.Lookup(1)
	require.NoError(t, err)
	require.NoError(t, mailbox.CheckAsync(other, 0))
	rec, _, err := ring.Read(eventlog.Handle(3))
	require.NoError(t, err)
	assert.Equal(uint16(1), rec.Payload.(eventlog.AsyncEvent).IONode)
	assert.Equal("DAC960PJ", fws[1].Identity().Name)
}

func TestFailureInjection(t *testing.T) {
	assert := assert.New(t)
	reg, fws, _ := setup(t)
	c := gdt(t, reg)
	fw := fws[0]

	fw.SetFailOnExchange(errors.New("PCI bus error"))
	_, err := mailbox.GetEnquiry(c)
	assert.True(errors.Is(err, mailbox.ErrTransportFailure))
	fw.SetFailOnExchange(nil)

	fw.SetShortReply(mailbox.OpEnquiry2, 8)
	_, err = mailbox.GetEnquiry2(c)
	assert.True(errors.Is(err, mailbox.ErrMalformedReply))
	fw.SetShortReply(mailbox.OpEnquiry2, 0)

	fw.SetFailStatus(mailbox.OpFlush, mailbox.StatusUnrecoverable)
	assert.True(errors.Is(mailbox.Flush(c), mailbox.ErrTransportFailure))
	fw.SetFailStatus(mailbox.OpFlush, mailbox.StatusOK)
	assert.NoError(mailbox.Flush(c))

	// Raw exchange of an unknown opcode
	comp, err := fw.Exchange(mailbox.Frame{0x99}, nil)
	assert.NoError(err)
	assert.Equal(mailbox.StatusInvalidOpcode, comp.Status)
}
