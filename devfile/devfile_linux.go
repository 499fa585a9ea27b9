// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package devfile

import (
	"unsafe"

	"github.com/dswarbrick/smart/ioctl"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/dswarbrick/raidctl/dispatch"
	"github.com/dswarbrick/raidctl/mailbox"
)

// Open opens the controller device at name.
func Open(name string) (*Device, error) {
	fd, err := unix.Open(name, unix.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}

	log.WithField("device", name).Debug("opened")
	return &Device{Name: name, fd: fd}, nil
}

// Close closes the device.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// Ioctl issues request code with argument record data. Errnos returned by the driver are
// converted to *mailbox.Error.
func (d *Device) Ioctl(code dispatch.Code, data []byte) error {
	if len(data) != code.Size() || len(data) == 0 {
		return mailbox.Errorf(mailbox.KindInvalidRequest, code.String(),
			"argument is %d bytes, expected %d", len(data), code.Size())
	}

	err := ioctl.Ioctl(uintptr(d.fd), uintptr(code), uintptr(unsafe.Pointer(&data[0])))
	if err == nil {
		return nil
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return mailbox.FromErrno(errno, code.String())
	}

	return mailbox.WrapError(mailbox.KindTransportFailure, code.String(), err)
}
