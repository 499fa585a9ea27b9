// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package devfile reaches a controller driver through its character device, e.g. /dev/gdt0.
// A Device satisfies client.Ioctler.
package devfile

import "github.com/sirupsen/logrus"

var log = logrus.WithField("pkg", "devfile")

// Device is an open controller character device.
type Device struct {
	Name string
	fd   int
}
