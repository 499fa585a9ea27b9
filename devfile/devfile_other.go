// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

//go:build !linux

package devfile

import (
	"runtime"

	"github.com/dswarbrick/raidctl/dispatch"
	"github.com/dswarbrick/raidctl/mailbox"
)

// Open is only implemented on Linux.
func Open(name string) (*Device, error) {
	return nil, mailbox.Errorf(mailbox.KindNotSupported, "open", "controller devices not supported on %s", runtime.GOOS)
}

func (d *Device) Close() error {
	return nil
}

func (d *Device) Ioctl(code dispatch.Code, data []byte) error {
	return mailbox.NewError(mailbox.KindNotSupported, code.String())
}
