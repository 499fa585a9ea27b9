// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package client is the user-space side of the controller ioctl interface. It packs typed
// requests into ioctl argument records and unpacks the replies, over any Ioctler: the
// controller's device file, or an in-process dispatcher.
package client

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/raidctl/controller"
	"github.com/dswarbrick/raidctl/dispatch"
	"github.com/dswarbrick/raidctl/eventlog"
	"github.com/dswarbrick/raidctl/mailbox"
)

var log = logrus.WithField("pkg", "client")

// Ioctler issues one ioctl request. data is read and written in place.
type Ioctler interface {
	Ioctl(code dispatch.Code, data []byte) error
}

// Client makes typed requests through an Ioctler.
type Client struct {
	dev Ioctler
}

// New returns a Client issuing requests through dev.
func New(dev Ioctler) *Client {
	return &Client{dev: dev}
}

func (c *Client) call(code dispatch.Code, in, out interface{}) error {
	data := make([]byte, code.Size())
	if in != nil {
		copy(data, mailbox.Pack(in))
	}

	if err := c.dev.Ioctl(code, data); err != nil {
		log.WithError(err).WithField("code", code).Debug("ioctl failed")
		return err
	}

	if out == nil {
		return nil
	}
	return dispatch.Unpack(data, out)
}

func (c *Client) int32(code dispatch.Code) (int32, error) {
	data := make([]byte, dispatch.SizeOfInt32)
	if err := c.dev.Ioctl(code, data); err != nil {
		return 0, err
	}
	return dispatch.Int32(data), nil
}

// DriverVersion returns the driver's ioctl interface version.
func (c *Client) DriverVersion() (major, minor uint8, err error) {
	v, err := c.int32(dispatch.IoctlDrvers)
	if err != nil {
		return 0, 0, err
	}
	return uint8(v >> 8), uint8(v), nil
}

// ControllerCount returns the number of attached controllers.
func (c *Client) ControllerCount() (int, error) {
	n, err := c.int32(dispatch.IoctlCtrcnt)
	return int(n), err
}

// ControllerType returns the type record of the controller at node.
func (c *Client) ControllerType(node int) (*dispatch.ControllerType, error) {
	ct := dispatch.ControllerType{IONode: uint16(node)}
	if err := c.call(dispatch.IoctlCtrtype, &ct, &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

// OSVersion returns the host OS as seen by the driver.
func (c *Client) OSVersion() (*dispatch.OSVersion, error) {
	var osv dispatch.OSVersion
	if err := c.call(dispatch.IoctlOsvers, nil, &osv); err != nil {
		return nil, err
	}
	return &osv, nil
}

// Statistics returns the driver's command statistics.
func (c *Client) Statistics() (*controller.Statistics, error) {
	var s controller.Statistics
	if err := c.call(dispatch.IoctlStatist, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) event(req *dispatch.EventRequest) (eventlog.Record, eventlog.Handle, error) {
	if err := c.call(dispatch.IoctlEvent, req, req); err != nil {
		return eventlog.Record{}, eventlog.EndOfLog, err
	}

	if req.Event.Source == uint16(eventlog.SourceNone) {
		return eventlog.Record{}, eventlog.EndOfLog, eventlog.ErrEndOfLog
	}

	rec, err := req.Event.Record()
	if err != nil {
		return eventlog.Record{}, eventlog.EndOfLog, err
	}

	return rec, eventlog.Handle(req.Handle), nil
}

// Read returns the event at h and the handle of the next one.
func (c *Client) Read(h eventlog.Handle) (eventlog.Record, eventlog.Handle, error) {
	return c.event(&dispatch.EventRequest{Erase: dispatch.EraseRead, Handle: int32(h)})
}

// Store adds an event to the driver's log and returns it with its handle.
func (c *Client) Store(src eventlog.Source, idx uint16, d eventlog.Data) (eventlog.Record, eventlog.Handle, error) {
	rec := eventlog.Record{Source: src, Index: idx, Payload: d.Payload, Severity: d.Severity, Text: d.Text}
	req := dispatch.EventRequest{Erase: dispatch.EraseStore, Event: rec.Wire()}

	stored, h, err := c.event(&req)
	if errors.Is(err, eventlog.ErrEndOfLog) {
		// Source none is accepted and dropped
		return eventlog.Record{}, eventlog.EndOfLog, nil
	}
	return stored, h, err
}

// Acknowledge returns the oldest event not yet seen by the applications in app and marks it.
func (c *Client) Acknowledge(app uint8) (eventlog.Record, error) {
	if app == 0 || app == dispatch.EraseClear || app == dispatch.EraseStore {
		return eventlog.Record{}, mailbox.Errorf(mailbox.KindInvalidRequest, "acknowledge event",
			"application mask %#02x is reserved", app)
	}

	rec, _, err := c.event(&dispatch.EventRequest{Erase: int32(app)})
	return rec, err
}

// Clear erases the driver's event log.
func (c *Client) Clear() error {
	return c.call(dispatch.IoctlEvent, &dispatch.EventRequest{Erase: dispatch.EraseClear}, nil)
}

// Events returns the whole event log, oldest first.
func (c *Client) Events() ([]eventlog.Record, error) {
	return eventlog.ReadAll(c)
}

// Node returns a mailbox transport to the controller at node, carried by GENERAL requests.
func (c *Client) Node(node int) *Node {
	return &Node{c: c, node: uint16(node)}
}

// Node reaches one controller through the GENERAL passthrough. It implements both
// mailbox.Transport and mailbox.Submitter.
type Node struct {
	c    *Client
	node uint16
}

// Exchange sends one mailbox command. The completion status is the one the firmware reported.
func (n *Node) Exchange(f mailbox.Frame, data []byte) (mailbox.Completion, error) {
	if len(data) > dispatch.MaxUserData {
		return mailbox.Completion{}, mailbox.Errorf(mailbox.KindInvalidRequest, "GENERAL",
			"data size %d exceeds %d", len(data), dispatch.MaxUserData)
	}

	u := dispatch.UserCommand{
		IONode:   n.node,
		Command:  f,
		BufDir:   uint8(f.Opcode().Direction()),
		DataSize: uint32(len(data)),
	}
	copy(u.Data[:], data)

	if err := n.c.call(dispatch.IoctlGeneral, &u, &u); err != nil {
		return mailbox.Completion{}, err
	}

	if u.DataSize > dispatch.MaxUserData {
		return mailbox.Completion{}, mailbox.Errorf(mailbox.KindMalformedReply, "GENERAL",
			"data size %d exceeds %d", u.DataSize, dispatch.MaxUserData)
	}

	copy(data, u.Data[:u.DataSize])
	return mailbox.Completion{Count: int(u.DataSize), Status: mailbox.Status(u.Status)}, nil
}

// Submit runs cmd on the controller.
func (n *Node) Submit(cmd *mailbox.Command) (int, error) {
	return mailbox.Submit(n, cmd)
}
