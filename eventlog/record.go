// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package eventlog implements the controller event log: typed event records, the fixed-capacity
// ring the driver keeps them in, and the packed record exchanged through the EVENT ioctl.
package eventlog

import (
	"fmt"
	"time"
)

// Source identifies who raised an event. It selects the payload variant.
type Source uint16

const (
	SourceNone   Source = 0
	SourceAsync  Source = 1 // Firmware asynchronous event
	SourceDriver Source = 2
	SourceTest   Source = 3
	SourceSync   Source = 4 // Error on a synchronous command
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceAsync:
		return "async"
	case SourceDriver:
		return "driver"
	case SourceTest:
		return "test"
	case SourceSync:
		return "sync"
	}
	return fmt.Sprintf("source %d", uint16(s))
}

// PayloadSize returns the wire size of the payload variant for s, or 0 for an unknown source.
func (s Source) PayloadSize() int {
	switch s {
	case SourceDriver:
		return 8
	case SourceAsync:
		return 13
	case SourceSync, SourceTest:
		return 16
	}
	return 0
}

// Payload is the source-specific part of an event. The variants are closed.
type Payload interface {
	Source() Source
	isPayload()
}

// DriverEvent is raised by the host driver.
type DriverEvent struct {
	IONode  uint16
	Service uint16
	Index   uint32
}

// AsyncEvent is raised by the controller firmware on its own.
type AsyncEvent struct {
	IONode    uint16
	Service   uint16
	Status    uint16
	Info      uint32
	SCSICoord [3]uint8 // channel, target, lun
}

// SyncEvent reports an error completing a synchronous command.
type SyncEvent struct {
	IONode    uint16
	Service   uint16
	Status    uint16
	Info      uint32
	HostDrive uint16
	SCSICoord [3]uint8
	SenseKey  uint8
}

// TestEvent carries four opaque words.
type TestEvent struct {
	L1, L2, L3, L4 uint32
}

func (DriverEvent) Source() Source { return SourceDriver }
func (AsyncEvent) Source() Source  { return SourceAsync }
func (SyncEvent) Source() Source   { return SourceSync }
func (TestEvent) Source() Source   { return SourceTest }

func (DriverEvent) isPayload() {}
func (AsyncEvent) isPayload()  {}
func (SyncEvent) isPayload()   {}
func (TestEvent) isPayload()   {}

// Data is what a producer supplies when storing an event.
type Data struct {
	Payload  Payload // May be nil for a text-only event
	Severity uint32
	Text     string
}

// Record is one entry of the event log.
type Record struct {
	FirstStamp  time.Time
	LastStamp   time.Time
	SameCount   uint16 // Number of identical events coalesced into this record
	Source      Source
	Index       uint16
	Application uint8 // Bitmask of applications that have acknowledged the record
	Payload     Payload
	Severity    uint32
	Text        string
}

// Data returns the producer-supplied part of the record.
func (r *Record) Data() Data {
	return Data{Payload: r.Payload, Severity: r.Severity, Text: r.Text}
}

func (r Record) String() string {
	s := fmt.Sprintf("%s [%s #%d sev %d]", r.FirstStamp.Format(time.RFC3339), r.Source, r.Index, r.Severity)

	if r.SameCount > 1 {
		s += fmt.Sprintf(" x%d (last %s)", r.SameCount, r.LastStamp.Format(time.RFC3339))
	}

	switch p := r.Payload.(type) {
	case AsyncEvent:
		s += fmt.Sprintf(" node %d svc %d status %#04x info %#x at %d:%d:%d",
			p.IONode, p.Service, p.Status, p.Info, p.SCSICoord[0], p.SCSICoord[1], p.SCSICoord[2])
	case SyncEvent:
		s += fmt.Sprintf(" node %d svc %d status %#04x info %#x hdrive %d sense %#02x",
			p.IONode, p.Service, p.Status, p.Info, p.HostDrive, p.SenseKey)
	case DriverEvent:
		s += fmt.Sprintf(" node %d svc %d index %d", p.IONode, p.Service, p.Index)
	case TestEvent:
		s += fmt.Sprintf(" %08x %08x %08x %08x", p.L1, p.L2, p.L3, p.L4)
	}

	if r.Text != "" {
		s += ": " + r.Text
	}

	return s
}
