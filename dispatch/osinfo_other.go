// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

//go:build !linux

package dispatch

import (
	"runtime"

	"github.com/pkg/errors"
)

// HostOSVersion is only implemented on Linux.
func HostOSVersion() (OSVersion, error) {
	return OSVersion{}, errors.Errorf("OS version not available on %s", runtime.GOOS)
}
