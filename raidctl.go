// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package raidctl is a pure Go management library for ICP-Vortex and Mylex RAID controllers.
//
// Controllers are driven through fixed-format mailbox commands (package mailbox), either on real
// hardware via the controller's character device (package devfile) or against simulated
// firmware (package sim). The driver's ioctl interface is implemented by package dispatch and
// consumed by package client.
package raidctl

import (
	"path/filepath"
	"sort"
)

// Version of the ioctl interface reported by DRVERS.
const (
	DriverVersion    = 1
	DriverSubversion = 3
)

// Device node patterns of the controller character devices.
var devicePatterns = []string{"/dev/gdt*", "/dev/icp*", "/dev/mlx[0-9]*"}

// ScanDevices returns the controller device nodes present on the system.
func ScanDevices() []string {
	return scanDevices(devicePatterns)
}

func scanDevices(patterns []string) []string {
	var devices []string

	for _, pattern := range patterns {
		files, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		devices = append(devices, files...)
	}

	sort.Strings(devices)
	return devices
}
