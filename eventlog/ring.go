// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package eventlog

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/raidctl/mailbox"
)

// Capacity is the number of records the ring holds before overwriting the oldest.
const Capacity = 256

// Handle is a read cursor into the log. The record in ring slot i has handle i+1.
type Handle int32

const (
	Start    Handle = 0  // Oldest record
	EndOfLog Handle = -1 // No further records
)

// ErrEndOfLog is returned when there is no record at the requested position.
var ErrEndOfLog = errors.New("end of event log")

var log = logrus.WithField("pkg", "eventlog")

// Log is the event log as seen by a reader, either in-process or through the EVENT ioctl.
type Log interface {
	Read(h Handle) (Record, Handle, error)
	Store(src Source, idx uint16, d Data) (Record, Handle, error)
	Acknowledge(app uint8) (Record, error)
	Clear() error
}

// Ring is the in-memory event log. The zero value is not usable; use NewRing.
type Ring struct {
	mu    sync.Mutex
	slots [Capacity]Record
	head  int // Slot of the oldest record
	count int
	now   func() time.Time
}

// NewRing returns an empty event ring.
func NewRing() *Ring {
	return &Ring{now: time.Now}
}

func (r *Ring) slot(n int) int {
	return (r.head + n) % Capacity
}

// contains reports whether slot holds a live record.
func (r *Ring) contains(slot int) bool {
	return (slot-r.head+Capacity)%Capacity < r.count
}

// Store appends an event and returns it with its handle. Events with SourceNone are dropped and
// yield a zero Record and EndOfLog. An exact repeat of the newest record is folded into it by
// bumping its count and last timestamp. When the ring is full the oldest record is overwritten.
func (r *Ring) Store(src Source, idx uint16, d Data) (Record, Handle, error) {
	if src == SourceNone {
		return Record{}, EndOfLog, nil
	}

	if src.PayloadSize() == 0 {
		return Record{}, EndOfLog, mailbox.Errorf(mailbox.KindInvalidRequest, "store event", "unknown %s", src)
	}

	if d.Payload != nil && d.Payload.Source() != src {
		return Record{}, EndOfLog, mailbox.Errorf(mailbox.KindInvalidRequest, "store event",
			"%s payload does not match %s event", d.Payload.Source(), src)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if r.count > 0 {
		s := r.slot(r.count - 1)
		last := &r.slots[s]
		if last.Source == src && last.Index == idx && last.Data() == d {
			if last.SameCount < ^uint16(0) {
				last.SameCount++
			}
			last.LastStamp = now
			return *last, Handle(s + 1), nil
		}
	}

	var s int
	if r.count == Capacity {
		s = r.head
		r.head = r.slot(1)
	} else {
		s = r.slot(r.count)
		r.count++
	}

	r.slots[s] = Record{
		FirstStamp: now,
		LastStamp:  now,
		SameCount:  1,
		Source:     src,
		Index:      idx,
		Payload:    d.Payload,
		Severity:   d.Severity,
		Text:       d.Text,
	}

	log.WithFields(logrus.Fields{"source": src, "index": idx, "handle": s + 1}).Debug("event stored")

	return r.slots[s], Handle(s + 1), nil
}

// Read returns the record at h and the handle of the following record, or EndOfLog if h
// refers to the newest one. Reading does not modify the log.
func (r *Ring) Read(h Handle) (Record, Handle, error) {
	if h == EndOfLog {
		return Record{}, EndOfLog, ErrEndOfLog
	}

	if h < Start || h > Capacity {
		return Record{}, EndOfLog, mailbox.Errorf(mailbox.KindInvalidRequest, "read event",
			"handle %d out of range", h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return Record{}, EndOfLog, ErrEndOfLog
	}

	s := r.head
	if h != Start {
		s = int(h) - 1
		if !r.contains(s) {
			return Record{}, EndOfLog, ErrEndOfLog
		}
	}

	next := EndOfLog
	if newest := r.slot(r.count - 1); s != newest {
		next = Handle((s+1)%Capacity + 1)
	}

	return r.slots[s], next, nil
}

// Acknowledge returns the oldest record not yet acknowledged by any application in the app
// bitmask, and marks it acknowledged.
func (r *Ring) Acknowledge(app uint8) (Record, error) {
	if app == 0 {
		return Record{}, mailbox.Errorf(mailbox.KindInvalidRequest, "acknowledge event", "empty application mask")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for n := 0; n < r.count; n++ {
		rec := &r.slots[r.slot(n)]
		if rec.Application&app == 0 {
			rec.Application |= app
			return *rec, nil
		}
	}

	return Record{}, ErrEndOfLog
}

// Clear erases all records.
func (r *Ring) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots = [Capacity]Record{}
	r.head = 0
	r.count = 0

	return nil
}

// Len returns the number of records held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ReadAll walks l from the oldest record to the newest.
func ReadAll(l Log) ([]Record, error) {
	var recs []Record

	h := Start
	for {
		rec, next, err := l.Read(h)
		if errors.Is(err, ErrEndOfLog) {
			return recs, nil
		} else if err != nil {
			return recs, err
		}

		recs = append(recs, rec)

		if next == EndOfLog {
			return recs, nil
		}
		h = next
	}
}
