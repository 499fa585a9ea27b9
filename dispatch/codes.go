// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package dispatch

import (
	"fmt"

	"github.com/dswarbrick/smart/ioctl"
)

// Code is an ioctl request number of the controller device.
type Code uintptr

const ioctlGroup = 'J'

var (
	IoctlGeneral = Code(ioctl.Iowr(ioctlGroup, 0, uintptr(SizeOfUserCommand)))
	IoctlDrvers  = Code(ioctl.Ior(ioctlGroup, 1, uintptr(SizeOfInt32)))
	IoctlCtrtype = Code(ioctl.Iowr(ioctlGroup, 2, uintptr(SizeOfControllerType)))
	IoctlOsvers  = Code(ioctl.Ior(ioctlGroup, 3, uintptr(SizeOfOSVersion)))
	IoctlCtrcnt  = Code(ioctl.Ior(ioctlGroup, 5, uintptr(SizeOfInt32)))
	IoctlEvent   = Code(ioctl.Iowr(ioctlGroup, 8, uintptr(SizeOfEventRequest)))
	IoctlStatist = Code(ioctl.Ior(ioctlGroup, 9, uintptr(SizeOfStatistics)))
)

var codeNames = map[Code]string{
	IoctlGeneral: "GENERAL",
	IoctlDrvers:  "DRVERS",
	IoctlCtrtype: "CTRTYPE",
	IoctlOsvers:  "OSVERS",
	IoctlCtrcnt:  "CTRCNT",
	IoctlEvent:   "EVENT",
	IoctlStatist: "STATIST",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ioctl %#x", uintptr(c))
}

// Size returns the packed argument size of c, or -1 for an unknown code.
func (c Code) Size() int {
	switch c {
	case IoctlGeneral:
		return SizeOfUserCommand
	case IoctlDrvers, IoctlCtrcnt:
		return SizeOfInt32
	case IoctlCtrtype:
		return SizeOfControllerType
	case IoctlOsvers:
		return SizeOfOSVersion
	case IoctlEvent:
		return SizeOfEventRequest
	case IoctlStatist:
		return SizeOfStatistics
	}
	return -1
}
