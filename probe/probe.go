// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package probe queries the state and identity of physical drives behind a RAID controller.
// Identity is obtained by proxying a SCSI INQUIRY to the drive through the controller's direct
// CDB command.
package probe

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/raidctl/mailbox"
	"github.com/dswarbrick/raidctl/scsi"
	"github.com/dswarbrick/raidctl/utils"
)

var log = logrus.WithField("pkg", "probe")

// Identity is the drive identification returned by INQUIRY. Fields are space padded.
type Identity struct {
	DeviceType uint8
	Vendor     [8]byte
	Product    [16]byte
	Revision   [4]byte
}

func (id *Identity) VendorString() string   { return utils.TrimPadded(id.Vendor[:]) }
func (id *Identity) ProductString() string  { return utils.TrimPadded(id.Product[:]) }
func (id *Identity) RevisionString() string { return utils.TrimPadded(id.Revision[:]) }

func (id *Identity) String() string {
	return fmt.Sprintf("%s %s %s", id.VendorString(), id.ProductString(), id.RevisionString())
}

// Drive is one physical drive found by Scan.
type Drive struct {
	Channel  uint8
	Target   uint8
	State    *mailbox.PhysDrive
	Identity *Identity
}

// Prober issues probe commands through a controller.
type Prober struct {
	s mailbox.Submitter
}

// New returns a Prober submitting commands through s.
func New(s mailbox.Submitter) *Prober {
	return &Prober{s: s}
}

func absent(op string, channel, target uint8) error {
	return mailbox.Errorf(mailbox.KindDriveAbsent, op, "no drive at %d:%d", channel, target)
}

// DeviceState returns the controller's view of the drive at channel/target.
func (p *Prober) DeviceState(channel, target uint8) (*mailbox.PhysDrive, error) {
	pd, err := mailbox.GetDeviceState(p.s, channel, target)
	if err != nil {
		return nil, err
	}

	if !pd.Present() {
		return nil, absent("device state", channel, target)
	}

	return pd, nil
}

// Inquiry sends a standard INQUIRY to the drive at channel/target.
func (p *Prober) Inquiry(channel, target uint8) (*Identity, error) {
	dcdb := mailbox.DCDB{
		Target:      mailbox.DCDBTarget(channel, target),
		Flags:       mailbox.DCDBDataIn | mailbox.DCDBTimeout10s,
		DataSize:    scsi.INQ_REPLY_LEN,
		CDBLength:   6,
		SenseLength: scsi.SENSE_LEN,
	}
	cdb := scsi.InquiryCDB(scsi.INQ_REPLY_LEN)
	copy(dcdb.CDB[:], cdb[:])

	reply, err := mailbox.ExecDCDB(p.s, &dcdb, nil)
	if err != nil {
		return nil, err
	}

	if reply.DCDB.Status != scsi.SAM_STAT_GOOD {
		n := int(reply.DCDB.SenseLength)
		if n > len(reply.DCDB.Sense) {
			n = len(reply.DCDB.Sense)
		}

		cc := &scsi.CheckConditionError{
			ScsiStatus: reply.DCDB.Status,
			Sense:      scsi.ParseSense(reply.DCDB.Sense[:n]),
		}
		log.WithFields(logrus.Fields{"channel": channel, "target": target}).Warn(cc)
		return nil, mailbox.WrapError(mailbox.KindTransportFailure, "inquiry", cc)
	}

	// DataSize comes back as the number of bytes the drive actually transferred
	if reply.DCDB.DataSize < scsi.INQ_REPLY_LEN {
		log.WithFields(logrus.Fields{"channel": channel, "target": target, "size": reply.DCDB.DataSize}).
			Warn("short INQUIRY reply")
		return nil, mailbox.Errorf(mailbox.KindMalformedReply, "inquiry",
			"drive returned %d bytes, expected %d", reply.DCDB.DataSize, scsi.INQ_REPLY_LEN)
	}

	inq, err := scsi.ParseInquiry(reply.Data[:scsi.INQ_REPLY_LEN])
	if err != nil {
		return nil, mailbox.WrapError(mailbox.KindMalformedReply, "inquiry", err)
	}

	if !inq.Present() {
		return nil, absent("inquiry", channel, target)
	}

	return &Identity{
		DeviceType: inq.DeviceType(),
		Vendor:     inq.VendorIdent,
		Product:    inq.ProductIdent,
		Revision:   inq.ProductRev,
	}, nil
}

// Scan probes every channel/target address and returns the drives present. Addresses with no
// drive are skipped; any other error stops the scan.
func (p *Prober) Scan(channels, targets uint8) ([]Drive, error) {
	var drives []Drive

	for ch := uint8(0); ch < channels; ch++ {
		for tgt := uint8(0); tgt < targets; tgt++ {
			pd, err := p.DeviceState(ch, tgt)
			if errors.Is(err, mailbox.ErrDriveAbsent) {
				continue
			} else if err != nil {
				return drives, errors.Wrapf(err, "scan %d:%d", ch, tgt)
			}

			id, err := p.Inquiry(ch, tgt)
			if err != nil && !errors.Is(err, mailbox.ErrDriveAbsent) {
				return drives, errors.Wrapf(err, "scan %d:%d", ch, tgt)
			}

			drives = append(drives, Drive{Channel: ch, Target: tgt, State: pd, Identity: id})
		}
	}

	return drives, nil
}
