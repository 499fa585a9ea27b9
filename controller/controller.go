// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package controller keeps the table of attached RAID controllers. Each controller handle
// serializes the commands submitted to it, so that at most one command is in flight per
// controller while independent controllers run concurrently.
package controller

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/raidctl/mailbox"
)

// Data segment size used to account sg_count statistics.
const segmentSize = 4096

var log = logrus.WithField("pkg", "controller")

// Identity is the static description of a controller, as reported by CTRTYPE.
type Identity struct {
	Name        string
	OEMID       uint16
	Type        uint16
	Bus         uint8
	Device      uint8
	Function    uint8
	VendorID    uint16
	DeviceID    uint16
	SubDeviceID uint16
}

func (id Identity) String() string {
	return fmt.Sprintf("%s (%04x:%04x) at %02x:%02x.%d", id.Name, id.VendorID, id.DeviceID,
		id.Bus, id.Device, id.Function)
}

// Controller is a handle on one attached controller.
type Controller struct {
	node int
	id   Identity
	t    mailbox.Transport

	mu    sync.Mutex // Held for the duration of each command
	ident uint8
	stats *tracker
}

// Node returns the controller's io_node number.
func (c *Controller) Node() int {
	return c.node
}

// Identity returns the static identity the controller was attached with.
func (c *Controller) Identity() Identity {
	return c.id
}

// Submit runs cmd on the controller, waiting for any command already in flight to complete.
func (c *Controller) Submit(cmd *mailbox.Command) (int, error) {
	if !c.mu.TryLock() {
		c.stats.queue(1)
		c.mu.Lock()
		c.stats.queue(-1)
	}
	defer c.mu.Unlock()

	// Command idents cycle through 1..255; 0 is never issued.
	c.ident++
	if c.ident == 0 {
		c.ident = 1
	}

	segments := (len(cmd.Buf) + segmentSize - 1) / segmentSize
	c.stats.start(c.ident, segments)
	defer c.stats.finish()

	log.WithFields(logrus.Fields{
		"node":   c.node,
		"ident":  c.ident,
		"opcode": cmd.Opcode,
	}).Debug("command")

	return mailbox.Submit(identTransport{c.t, c.ident}, cmd)
}

// identTransport stamps the command ident into each frame before passing it on.
type identTransport struct {
	t     mailbox.Transport
	ident uint8
}

func (it identTransport) Exchange(f mailbox.Frame, data []byte) (mailbox.Completion, error) {
	f.SetIdent(it.ident)
	return it.t.Exchange(f, data)
}
