// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package discover finds ICP-Vortex and Mylex RAID controllers on the PCI bus.
package discover

import (
	"fmt"
	"strconv"

	"github.com/jaypipes/ghw"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/raidctl/controller"
)

// PCI vendor IDs of supported controllers, as reported by pcidb.
const (
	VendorICP   = "1119"
	VendorMylex = "1069"
)

var log = logrus.WithField("pkg", "discover")

// Controller is a RAID controller found on the PCI bus.
type Controller struct {
	Address     string // e.g. 0000:02:04.0
	Domain      uint16
	Bus         uint8
	Device      uint8
	Function    uint8
	VendorID    uint16
	DeviceID    uint16
	SubDeviceID uint16
	VendorName  string
	ProductName string
	Driver      string
}

// Identity returns the controller identity to attach c with.
func (c *Controller) Identity() controller.Identity {
	return controller.Identity{
		Name:        c.ProductName,
		Bus:         c.Bus,
		Device:      c.Device,
		Function:    c.Function,
		VendorID:    c.VendorID,
		DeviceID:    c.DeviceID,
		SubDeviceID: c.SubDeviceID,
	}
}

func (c Controller) String() string {
	return fmt.Sprintf("%s %s %s [%04x:%04x] driver %q", c.Address, c.VendorName, c.ProductName,
		c.VendorID, c.DeviceID, c.Driver)
}

// Scan enumerates the PCI bus and returns the supported controllers on it.
func Scan() ([]Controller, error) {
	info, err := ghw.PCI()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PCI devices")
	}

	return filter(info.Devices), nil
}

func filter(devices []*ghw.PCIDevice) []Controller {
	var found []Controller

	for _, dev := range devices {
		if dev == nil || dev.Vendor == nil || dev.Product == nil {
			continue
		}

		if dev.Vendor.ID != VendorICP && dev.Vendor.ID != VendorMylex {
			continue
		}

		c, err := newController(dev)
		if err != nil {
			log.WithError(err).WithField("address", dev.Address).Warn("skipping device")
			continue
		}

		found = append(found, c)
	}

	return found
}

func parseHex16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	return uint16(v), err
}

func newController(dev *ghw.PCIDevice) (Controller, error) {
	c := Controller{
		Address:     dev.Address,
		VendorName:  dev.Vendor.Name,
		ProductName: dev.Product.Name,
		Driver:      dev.Driver,
	}

	if _, err := fmt.Sscanf(dev.Address, "%x:%x:%x.%x", &c.Domain, &c.Bus, &c.Device, &c.Function); err != nil {
		return c, errors.Wrapf(err, "bad PCI address %q", dev.Address)
	}

	var err error

	if c.VendorID, err = parseHex16(dev.Vendor.ID); err != nil {
		return c, errors.Wrapf(err, "bad vendor ID %q", dev.Vendor.ID)
	}

	if c.DeviceID, err = parseHex16(dev.Product.ID); err != nil {
		return c, errors.Wrapf(err, "bad device ID %q", dev.Product.ID)
	}

	if dev.Subsystem != nil && dev.Subsystem.ID != "" {
		if c.SubDeviceID, err = parseHex16(dev.Subsystem.ID); err != nil {
			return c, errors.Wrapf(err, "bad subsystem ID %q", dev.Subsystem.ID)
		}
	}

	return c, nil
}
