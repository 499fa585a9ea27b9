// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package dispatch implements the controller device's ioctl entry point. Each request code
// carries one packed argument record, which the dispatcher decodes, routes to the controller
// registry or the event log, and encodes the result back into.
package dispatch

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/raidctl"
	"github.com/dswarbrick/raidctl/controller"
	"github.com/dswarbrick/raidctl/eventlog"
	"github.com/dswarbrick/raidctl/mailbox"
)

const (
	defaultOEMID = 0x8000
	defaultType  = 0xfd
	extTypeBase  = 0x6000
)

var log = logrus.WithField("pkg", "dispatch")

// Dispatcher serves ioctl requests. It keeps no state between calls.
type Dispatcher struct {
	Registry   *controller.Registry
	Events     eventlog.Log
	Version    uint8
	Subversion uint8
	OSInfo     func() (OSVersion, error)
}

// New returns a Dispatcher reporting the library's driver version and the host OS.
func New(reg *controller.Registry, events eventlog.Log) *Dispatcher {
	return &Dispatcher{
		Registry:   reg,
		Events:     events,
		Version:    raidctl.DriverVersion,
		Subversion: raidctl.DriverSubversion,
		OSInfo:     HostOSVersion,
	}
}

// Ioctl executes request code with its packed argument data, which must be exactly the size of
// the code's argument record. Results are written back into data.
func (d *Dispatcher) Ioctl(code Code, data []byte) error {
	size := code.Size()
	if size < 0 {
		return mailbox.Errorf(mailbox.KindNotSupported, "ioctl", "unknown request %s", code)
	}

	if len(data) != size {
		return mailbox.Errorf(mailbox.KindInvalidRequest, code.String(),
			"argument is %d bytes, expected %d", len(data), size)
	}

	log.WithField("code", code).Debug("ioctl")

	switch code {
	case IoctlGeneral:
		return d.general(data)
	case IoctlDrvers:
		PutInt32(data, int32(d.Version)<<8|int32(d.Subversion))
		return nil
	case IoctlCtrtype:
		return d.ctrtype(data)
	case IoctlOsvers:
		return d.osvers(data)
	case IoctlCtrcnt:
		PutInt32(data, int32(d.Registry.Count()))
		return nil
	case IoctlEvent:
		return d.event(data)
	case IoctlStatist:
		stats := d.Registry.Stats()
		copy(data, mailbox.Pack(&stats))
		return nil
	}

	return mailbox.Errorf(mailbox.KindNotSupported, "ioctl", "unknown request %s", code)
}

// general passes a mailbox command through to a controller. A command the firmware completed
// with an error status still succeeds; the status is returned in the record.
func (d *Dispatcher) general(data []byte) error {
	var u UserCommand
	if err := Unpack(data, &u); err != nil {
		return err
	}

	c, err := d.Registry.Lookup(int(u.IONode))
	if err != nil {
		return err
	}

	if u.DataSize > MaxUserData {
		return mailbox.Errorf(mailbox.KindInvalidRequest, "GENERAL", "data size %d exceeds %d", u.DataSize, MaxUserData)
	}

	cmd, err := mailbox.DecodeFrame(u.Command, mailbox.Direction(u.BufDir), u.Data[:u.DataSize])
	if err != nil {
		return err
	}

	n, err := c.Submit(cmd)
	if status, ok := mailbox.StatusOf(err); ok {
		u.Status = uint16(status)
		u.DataSize = 0
	} else if err != nil {
		return err
	} else {
		u.Status = uint16(mailbox.StatusOK)
		u.DataSize = uint32(n)
	}

	copy(data, mailbox.Pack(&u))
	return nil
}

func (d *Dispatcher) ctrtype(data []byte) error {
	var ct ControllerType
	if err := Unpack(data, &ct); err != nil {
		return err
	}

	c, err := d.Registry.Lookup(int(ct.IONode))
	if err != nil {
		return err
	}

	id := c.Identity()

	ct.OEMID = id.OEMID
	if ct.OEMID == 0 {
		ct.OEMID = defaultOEMID
	}
	ct.Type = id.Type
	if ct.Type == 0 {
		ct.Type = defaultType
	}
	ct.Info = uint32(id.Bus)<<8 | uint32(id.Device)<<3
	ct.Access = 0
	ct.Remote = 0
	ct.ExtType = extTypeBase | id.SubDeviceID
	ct.DeviceID = id.DeviceID
	ct.SubDeviceID = id.SubDeviceID

	copy(data, mailbox.Pack(&ct))
	return nil
}

func (d *Dispatcher) osvers(data []byte) error {
	info := d.OSInfo
	if info == nil {
		info = HostOSVersion
	}

	osv, err := info()
	if err != nil {
		return mailbox.WrapError(mailbox.KindTransportFailure, "OSVERS", err)
	}

	copy(data, mailbox.Pack(&osv))
	return nil
}

func (d *Dispatcher) event(data []byte) error {
	var req EventRequest
	if err := Unpack(data, &req); err != nil {
		return err
	}

	var (
		rec  eventlog.Record
		next = eventlog.EndOfLog
		err  error
	)

	switch req.Erase {
	case EraseStore:
		var in eventlog.Record
		if in, err = req.Event.Record(); err != nil {
			return err
		}
		rec, next, err = d.Events.Store(in.Source, in.Index, in.Data())

	case EraseClear:
		err = d.Events.Clear()

	case EraseRead:
		rec, next, err = d.Events.Read(eventlog.Handle(req.Handle))

	default:
		if req.Erase < 0 || req.Erase > 0xff {
			return mailbox.Errorf(mailbox.KindInvalidRequest, "EVENT", "erase value %#x", req.Erase)
		}
		rec, err = d.Events.Acknowledge(uint8(req.Erase))
	}

	if errors.Is(err, eventlog.ErrEndOfLog) {
		rec, next = eventlog.Record{}, eventlog.EndOfLog
	} else if err != nil {
		return err
	}

	req.Handle = int32(next)
	req.Event = rec.Wire()

	copy(data, mailbox.Pack(&req))
	return nil
}
