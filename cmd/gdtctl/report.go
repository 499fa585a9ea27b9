// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dswarbrick/raidctl/client"
	"github.com/dswarbrick/raidctl/drivedb"
	"github.com/dswarbrick/raidctl/eventlog"
	"github.com/dswarbrick/raidctl/mailbox"
	"github.com/dswarbrick/raidctl/probe"
	"github.com/dswarbrick/raidctl/scsi"
	"github.com/dswarbrick/raidctl/utils"
)

type controllerInfo struct {
	Node       int    `yaml:"node"`
	OEMID      uint16 `yaml:"oem_id"`
	Type       uint16 `yaml:"type"`
	DeviceID   uint16 `yaml:"device_id"`
	PCIBus     uint32 `yaml:"pci_bus"`
	PCIDevice  uint32 `yaml:"pci_device"`
	Product    string `yaml:"product"`
	Firmware   string `yaml:"firmware"`
	Channels   uint8  `yaml:"channels"`
	Targets    uint8  `yaml:"targets"`
	Memory     string `yaml:"memory"`
	SysDrives  uint8  `yaml:"sys_drives"`
	Critical   uint8  `yaml:"critical_sys_drives"`
	Offline    uint8  `yaml:"offline_sys_drives"`
	DeadDrives uint8  `yaml:"dead_drives"`
}

type infoReport struct {
	DriverVersion string           `yaml:"driver_version"`
	OS            string           `yaml:"os"`
	Controllers   []controllerInfo `yaml:"controllers"`
}

func showInfo(c *client.Client, o *options) error {
	var r infoReport

	major, minor, err := c.DriverVersion()
	if err != nil {
		return err
	}
	r.DriverVersion = fmt.Sprintf("%d.%02d", major, minor)

	if osv, err := c.OSVersion(); err == nil {
		r.OS = fmt.Sprintf("%s %d.%d.%d", utils.CString(osv.Name[:]), osv.Version, osv.Subversion, osv.Revision)
	}

	n, err := c.ControllerCount()
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		ct, err := c.ControllerType(i)
		if err != nil {
			return err
		}

		node := c.Node(i)
		e, err := mailbox.GetEnquiry(node)
		if err != nil {
			return errors.Wrapf(err, "controller %d", i)
		}
		e2, err := mailbox.GetEnquiry2(node)
		if err != nil {
			return errors.Wrapf(err, "controller %d", i)
		}

		r.Controllers = append(r.Controllers, controllerInfo{
			Node:       i,
			OEMID:      ct.OEMID,
			Type:       ct.Type,
			DeviceID:   ct.DeviceID,
			PCIBus:     ct.Info >> 8,
			PCIDevice:  (ct.Info >> 3) & 0x1f,
			Product:    utils.TrimPadded(e2.Vendor[:]) + " " + utils.TrimPadded(e2.ProductName[:]),
			Firmware:   fmt.Sprintf("%d.%02d", e.FirmwareMajor, e.FirmwareMinor),
			Channels:   e2.ActualChannels,
			Targets:    e2.MaxTargets,
			Memory:     utils.FormatBytes(uint64(e2.MemorySize)),
			SysDrives:  e.SysDriveCount,
			Critical:   e.CriticalSysDriveCount,
			Offline:    e.OfflineSysDriveCount,
			DeadDrives: e.DeadCount,
		})
	}

	o.emit(r, func(w io.Writer) {
		fmt.Fprintf(w, "Driver version: %s\n", r.DriverVersion)
		if r.OS != "" {
			fmt.Fprintf(w, "Host OS: %s\n", r.OS)
		}
		for _, ci := range r.Controllers {
			fmt.Fprintf(w, "\nController %d: %s (OEM %#04x, type %#02x, device %#04x) at PCI %02x:%02x\n",
				ci.Node, ci.Product, ci.OEMID, ci.Type, ci.DeviceID, ci.PCIBus, ci.PCIDevice)
			fmt.Fprintf(w, "  Firmware %s, %d channels x %d targets, %s memory\n",
				ci.Firmware, ci.Channels, ci.Targets, ci.Memory)
			fmt.Fprintf(w, "  System drives: %d (%d critical, %d offline), dead drives: %d\n",
				ci.SysDrives, ci.Critical, ci.Offline, ci.DeadDrives)
		}
	})

	return nil
}

type driveInfo struct {
	Address  string `yaml:"address"`
	State    string `yaml:"state"`
	Size     string `yaml:"size"`
	Type     string `yaml:"type,omitempty"`
	Vendor   string `yaml:"vendor,omitempty"`
	Product  string `yaml:"product,omitempty"`
	Revision string `yaml:"revision,omitempty"`
	Family   string `yaml:"family,omitempty"`
	Warning  string `yaml:"warning,omitempty"`
}

func showDrives(c *client.Client, o *options, db *drivedb.DriveDb) error {
	node := c.Node(o.node)

	e2, err := mailbox.GetEnquiry2(node)
	if err != nil {
		return err
	}

	drives, err := probe.New(node).Scan(e2.ActualChannels, e2.MaxTargets)
	if err != nil {
		return err
	}

	var infos []driveInfo

	for _, d := range drives {
		di := driveInfo{
			Address: fmt.Sprintf("%d:%d", d.Channel, d.Target),
			State:   d.State.StateString(),
			Size:    utils.FormatSectors(d.State.ConfigSize),
		}

		if id := d.Identity; id != nil {
			di.Type = scsi.DeviceTypeName(id.DeviceType)
			di.Vendor = id.VendorString()
			di.Product = id.ProductString()
			di.Revision = id.RevisionString()

			if db != nil {
				m := db.LookupDrive(di.Vendor, di.Product, di.Revision)
				di.Family = m.Family
				di.Warning = m.WarningMsg
			}
		}

		infos = append(infos, di)
	}

	o.emit(infos, func(w io.Writer) {
		for _, di := range infos {
			fmt.Fprintf(w, "%-6s %-10s %-10s %-8s %-16s %-4s %s\n",
				di.Address, di.State, di.Size, di.Vendor, di.Product, di.Revision, di.Family)
			if di.Warning != "" {
				fmt.Fprintf(w, "       WARNING: %s\n", di.Warning)
			}
		}
	})

	return nil
}

func sysDriveState(state uint8) string {
	switch state {
	case mailbox.SysDriveOnline:
		return "online"
	case mailbox.SysDriveCritical:
		return "critical"
	case mailbox.SysDriveOffline:
		return "offline"
	}
	return fmt.Sprintf("unknown (%#02x)", state)
}

type sysDriveInfo struct {
	Number int    `yaml:"number"`
	State  string `yaml:"state"`
	RAID   uint8  `yaml:"raid_level"`
	Size   string `yaml:"size"`
}

type sysDriveReport struct {
	SysDrives []sysDriveInfo `yaml:"sys_drives"`
	Operation string         `yaml:"operation,omitempty"`
	Progress  int            `yaml:"progress,omitempty"`
}

func showSysDrives(c *client.Client, o *options) error {
	node := c.Node(o.node)

	e, err := mailbox.GetEnquiry(node)
	if err != nil {
		return err
	}

	sds, err := mailbox.GetSysDrives(node, int(e.SysDriveCount))
	if err != nil {
		return err
	}

	var r sysDriveReport
	for i, sd := range sds {
		r.SysDrives = append(r.SysDrives, sysDriveInfo{
			Number: i,
			State:  sysDriveState(sd.State),
			RAID:   sd.RAIDLevel,
			Size:   utils.FormatSectors(sd.Size),
		})
	}

	if e.RebuildFlag != 0 {
		rs, err := mailbox.GetRebuildStatus(node)
		if err != nil {
			return err
		}

		switch rs.Operation {
		case mailbox.RebuildOpRebuild:
			r.Operation = fmt.Sprintf("rebuild of system drive %d", rs.SysDrive)
		case mailbox.RebuildOpCheck:
			r.Operation = fmt.Sprintf("consistency check of system drive %d", rs.SysDrive)
		}
		r.Progress = rs.Percent()
	}

	o.emit(r, func(w io.Writer) {
		for _, sd := range r.SysDrives {
			fmt.Fprintf(w, "%2d  %-10s RAID%-2d %s\n", sd.Number, sd.State, sd.RAID, sd.Size)
		}
		if r.Operation != "" {
			fmt.Fprintf(w, "In progress: %s, %d%% complete\n", r.Operation, r.Progress)
		}
	})

	return nil
}

// parseAddress parses a CHAN:TARG drive address.
func parseAddress(s string) (channel, target uint8, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("invalid drive address %q, expected CHAN:TARG", s)
	}

	ch, err := strconv.ParseUint(parts[0], 10, 4)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid channel in %q", s)
	}
	tgt, err := strconv.ParseUint(parts[1], 10, 4)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid target in %q", s)
	}

	return uint8(ch), uint8(tgt), nil
}

func startRebuild(c *client.Client, o *options) error {
	ch, tgt, err := parseAddress(o.rebuild)
	if err != nil {
		return err
	}

	if err := mailbox.RebuildAsync(c.Node(o.node), ch, tgt); err != nil {
		return err
	}

	fmt.Fprintf(o.out, "Rebuild started onto drive %d:%d\n", ch, tgt)
	return nil
}

func flushCache(c *client.Client, o *options) error {
	if err := mailbox.Flush(c.Node(o.node)); err != nil {
		return err
	}

	fmt.Fprintf(o.out, "Controller %d cache flushed\n", o.node)
	return nil
}

func printEvents(o *options, recs []eventlog.Record) {
	lines := make([]string, len(recs))
	for i, r := range recs {
		lines[i] = r.String()
	}

	o.emit(lines, func(w io.Writer) {
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	})
}

func showEvents(c *client.Client, o *options) error {
	recs, err := c.Events()
	if err != nil {
		return err
	}

	printEvents(o, recs)
	return nil
}

// ackEvents prints every event not yet acknowledged by the -ack application mask.
func ackEvents(c *client.Client, o *options) error {
	if o.ack > 0xff {
		return errors.Errorf("application mask %#x out of range", o.ack)
	}

	var recs []eventlog.Record
	for {
		rec, err := c.Acknowledge(uint8(o.ack))
		if errors.Is(err, eventlog.ErrEndOfLog) {
			break
		} else if err != nil {
			return err
		}
		recs = append(recs, rec)
	}

	printEvents(o, recs)
	return nil
}

func showStats(c *client.Client, o *options) error {
	s, err := c.Statistics()
	if err != nil {
		return err
	}

	o.emit(s, func(w io.Writer) {
		fmt.Fprintf(w, "%-16s %6s %6s\n", "", "act", "max")
		fmt.Fprintf(w, "%-16s %6d %6d\n", "Executing", s.IOCountAct, s.IOCountMax)
		fmt.Fprintf(w, "%-16s %6d %6d\n", "Queued", s.ReqQueueAct, s.ReqQueueMax)
		fmt.Fprintf(w, "%-16s %6d %6d\n", "Command index", s.CmdIndexAct, s.CmdIndexMax)
		fmt.Fprintf(w, "%-16s %6d %6d\n", "SG segments", s.SGCountAct, s.SGCountMax)
	})

	return nil
}
