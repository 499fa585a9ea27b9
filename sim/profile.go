// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package sim

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/raidctl/mailbox"
)

// Profile describes a set of simulated controllers.
type Profile struct {
	Controllers []ControllerProfile `yaml:"controllers"`
}

// ControllerProfile describes one simulated controller and the drives attached to it.
type ControllerProfile struct {
	Name        string            `yaml:"name"`
	VendorID    uint16            `yaml:"vendor_id"`
	DeviceID    uint16            `yaml:"device_id"`
	SubDeviceID uint16            `yaml:"subdevice_id"`
	OEMID       uint16            `yaml:"oem_id"`
	Type        uint16            `yaml:"type"`
	Bus         uint8             `yaml:"bus"`
	Device      uint8             `yaml:"device"`
	Function    uint8             `yaml:"function"`
	Firmware    string            `yaml:"firmware"` // major.minor
	MemoryMB    uint32            `yaml:"memory_mb"`
	Channels    uint8             `yaml:"channels"`
	Targets     uint8             `yaml:"targets"`
	Drives      []DriveProfile    `yaml:"drives"`
	SysDrives   []SysDriveProfile `yaml:"sysdrives"`
}

// DriveProfile describes a physical drive.
type DriveProfile struct {
	Channel  uint8  `yaml:"channel"`
	Target   uint8  `yaml:"target"`
	Vendor   string `yaml:"vendor"`
	Product  string `yaml:"product"`
	Revision string `yaml:"revision"`
	Sectors  uint32 `yaml:"sectors"`
	State    string `yaml:"state"` // online, dead, standby, write-only
}

// SysDriveProfile describes a logical (system) drive.
type SysDriveProfile struct {
	Sectors   uint32 `yaml:"sectors"`
	State     string `yaml:"state"` // online, critical, offline
	RAIDLevel uint8  `yaml:"raid_level"`
}

var physStates = map[string]uint8{
	"online":     mailbox.PhysDriveOnline,
	"dead":       mailbox.PhysDriveDead,
	"standby":    mailbox.PhysDriveStandby,
	"write-only": mailbox.PhysDriveWriteOnly,
}

var sysStates = map[string]uint8{
	"online":   mailbox.SysDriveOnline,
	"critical": mailbox.SysDriveCritical,
	"offline":  mailbox.SysDriveOffline,
}

// ParseProfile decodes a YAML controller profile and checks it for consistency.
func ParseProfile(b []byte) (*Profile, error) {
	var p Profile

	if err := yaml.UnmarshalStrict(b, &p); err != nil {
		return nil, errors.Wrap(err, "parse profile")
	}

	for i := range p.Controllers {
		if err := p.Controllers[i].validate(); err != nil {
			return nil, errors.Wrapf(err, "controller %d", i)
		}
	}

	return &p, nil
}

// LoadProfile reads a YAML controller profile from path.
func LoadProfile(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load profile")
	}

	return ParseProfile(b)
}

func (cp *ControllerProfile) validate() error {
	if cp.Channels == 0 || cp.Channels > 15 || cp.Targets == 0 || cp.Targets > 16 {
		return errors.Errorf("%s: bad geometry %d channels x %d targets", cp.Name, cp.Channels, cp.Targets)
	}

	if len(cp.SysDrives) > mailbox.MaxSysDrives {
		return errors.Errorf("%s: %d system drives, maximum %d", cp.Name, len(cp.SysDrives), mailbox.MaxSysDrives)
	}

	if _, _, err := cp.firmwareVersion(); err != nil {
		return err
	}

	seen := make(map[[2]uint8]bool)
	for _, d := range cp.Drives {
		addr := [2]uint8{d.Channel, d.Target}

		if d.Channel >= cp.Channels || d.Target >= cp.Targets {
			return errors.Errorf("%s: drive %d:%d outside geometry", cp.Name, d.Channel, d.Target)
		}
		if seen[addr] {
			return errors.Errorf("%s: duplicate drive %d:%d", cp.Name, d.Channel, d.Target)
		}
		if _, ok := physStates[d.State]; !ok {
			return errors.Errorf("%s: drive %d:%d has unknown state %q", cp.Name, d.Channel, d.Target, d.State)
		}

		seen[addr] = true
	}

	for i, sd := range cp.SysDrives {
		if _, ok := sysStates[sd.State]; !ok {
			return errors.Errorf("%s: system drive %d has unknown state %q", cp.Name, i, sd.State)
		}
	}

	return nil
}

func (cp *ControllerProfile) firmwareVersion() (major, minor uint8, err error) {
	if cp.Firmware == "" {
		return 0, 0, nil
	}

	if _, err := fmt.Sscanf(cp.Firmware, "%d.%d", &major, &minor); err != nil {
		return 0, 0, errors.Wrapf(err, "%s: bad firmware version %q", cp.Name, cp.Firmware)
	}

	return major, minor, nil
}
