// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package dispatch

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/dswarbrick/raidctl/utils"
)

// HostOSVersion describes the running kernel, as returned by uname(2).
func HostOSVersion() (OSVersion, error) {
	var uts unix.Utsname

	if err := unix.Uname(&uts); err != nil {
		return OSVersion{}, errors.Wrap(err, "uname")
	}

	return newOSVersion(OSCodeLinux, utils.CString(uts.Sysname[:]), utils.CString(uts.Release[:])), nil
}
