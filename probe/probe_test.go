// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package probe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/raidctl/controller"
	"github.com/dswarbrick/raidctl/mailbox"
	"github.com/dswarbrick/raidctl/scsi"
	"github.com/dswarbrick/raidctl/sim"
)

const profile = `
controllers:
  - name: GDT6519RD
    vendor_id: 0x1119
    channels: 2
    targets: 8
    drives:
      - {channel: 0, target: 1, vendor: SEAGATE, product: ST318404LW, revision: "0003", sectors: 35843670, state: online}
      - {channel: 1, target: 3, vendor: IBM, product: DDYS-T18350M, revision: SA2A, sectors: 35843670, state: dead}
`

func newProber(t *testing.T) (*Prober, *sim.Firmware) {
	p, err := sim.ParseProfile([]byte(profile))
	require.NoError(t, err)

	reg := controller.NewRegistry()
	fws, err := sim.Attach(reg, p, nil)
	require.NoError(t, err)

	c, err := reg.Lookup(0)
	require.NoError(t, err)

	return New(c), fws[0]
}

func TestDeviceState(t *testing.T) {
	assert := assert.New(t)
	p, _ := newProber(t)

	pd, err := p.DeviceState(0, 1)
	require.NoError(t, err)
	assert.Equal("online", pd.StateString())
	assert.Equal(uint32(35843670), pd.ConfigSize)

	_, err = p.DeviceState(0, 2)
	assert.True(errors.Is(err, mailbox.ErrDriveAbsent))

	_, err = p.DeviceState(5, 0)
	assert.True(errors.Is(err, mailbox.ErrInvalidRequest))
}

func TestInquiry(t *testing.T) {
	assert := assert.New(t)
	p, _ := newProber(t)

	id, err := p.Inquiry(1, 3)
	require.NoError(t, err)
	assert.Equal("IBM", id.VendorString())
	assert.Equal("DDYS-T18350M", id.ProductString())
	assert.Equal("SA2A", id.RevisionString())
	assert.Equal("IBM DDYS-T18350M SA2A", id.String())
	assert.Equal(uint8(scsi.TYPE_DISK), id.DeviceType)

	_, err = p.Inquiry(0, 2)
	assert.True(errors.Is(err, mailbox.ErrDriveAbsent))
}

func TestInquiryCheckCondition(t *testing.T) {
	p, fw := newProber(t)

	// A firmware that answers with a status byte other than GOOD
	fw.SetFailStatus(mailbox.OpDirectCDB, mailbox.StatusUnrecoverable)
	_, err := p.Inquiry(0, 1)
	assert.True(t, errors.Is(err, mailbox.ErrTransportFailure))
	fw.SetFailStatus(mailbox.OpDirectCDB, mailbox.StatusOK)

	s := &checkingSubmitter{}
	_, err = New(s).Inquiry(0, 1)
	assert.True(t, errors.Is(err, mailbox.ErrTransportFailure))

	var cc *scsi.CheckConditionError
	require.True(t, errors.As(err, &cc))
	assert.Equal(t, uint8(scsi.HARDWARE_ERROR), cc.Sense.Key)
}

// checkingSubmitter answers every direct CDB with CHECK CONDITION.
type checkingSubmitter struct{}

func (checkingSubmitter) Submit(cmd *mailbox.Command) (int, error) {
	var reply mailbox.CDBReply
	reply.DCDB.Status = scsi.SAM_STAT_CHECK_CONDITION
	reply.DCDB.SenseLength = 200
	copy(reply.DCDB.Sense[:], scsi.SenseData{Key: scsi.HARDWARE_ERROR, ASC: 0x44}.Bytes(18))
	copy(cmd.Buf, mailbox.Pack(&reply))
	return len(cmd.Buf), nil
}

// shortSubmitter completes every direct CDB with GOOD status but only n bytes transferred.
type shortSubmitter struct {
	n uint16
}

func (s shortSubmitter) Submit(cmd *mailbox.Command) (int, error) {
	var reply mailbox.CDBReply
	reply.DCDB.Status = scsi.SAM_STAT_GOOD
	reply.DCDB.DataSize = s.n
	reply.Data[0] = scsi.TYPE_DISK
	copy(cmd.Buf, mailbox.Pack(&reply))
	return len(cmd.Buf), nil
}

func TestInquiryShortTransfer(t *testing.T) {
	for _, n := range []uint16{0, 4, scsi.INQ_REPLY_LEN - 1} {
		id, err := New(shortSubmitter{n}).Inquiry(0, 1)
		assert.Nil(t, id, "size %d", n)
		assert.True(t, errors.Is(err, mailbox.ErrMalformedReply), "size %d", n)
	}

	id, err := New(shortSubmitter{scsi.INQ_REPLY_LEN}).Inquiry(0, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(scsi.TYPE_DISK), id.DeviceType)
}

func TestInquiryRequest(t *testing.T) {
	assert := assert.New(t)
	rec := &recordingSubmitter{}
	New(rec).Inquiry(2, 5)

	require.NotNil(t, rec.dcdb)
	assert.Equal(uint8(0x25), rec.dcdb.Target)
	assert.Equal(uint8(mailbox.DCDBDataIn|mailbox.DCDBTimeout10s), rec.dcdb.Flags)
	assert.Equal(uint8(6), rec.dcdb.CDBLength)
	assert.Equal(uint8(40), rec.dcdb.SenseLength)
	assert.Equal(uint16(36), rec.dcdb.DataSize)
	assert.Equal(uint8(scsi.SCSI_INQUIRY), rec.dcdb.CDB[0])
	assert.Equal(uint8(36), rec.dcdb.CDB[4])
}

type recordingSubmitter struct {
	dcdb *mailbox.DCDB
}

func (r *recordingSubmitter) Submit(cmd *mailbox.Command) (int, error) {
	v, err := mailbox.Decode(cmd.Opcode, cmd.Buf)
	if err != nil {
		return 0, err
	}
	r.dcdb = &v.(*mailbox.CDBReply).DCDB
	return 0, mailbox.NewError(mailbox.KindDriveAbsent, "test")
}

func TestScan(t *testing.T) {
	assert := assert.New(t)
	p, fw := newProber(t)

	drives, err := p.Scan(2, 8)
	require.NoError(t, err)
	require.Len(t, drives, 2)

	assert.Equal(uint8(0), drives[0].Channel)
	assert.Equal(uint8(1), drives[0].Target)
	assert.Equal("SEAGATE", drives[0].Identity.VendorString())
	assert.Equal("dead", drives[1].State.StateString())

	fw.SetFailOnExchange(errors.New("controller hung"))
	_, err = p.Scan(2, 8)
	assert.True(errors.Is(err, mailbox.ErrTransportFailure))
}
