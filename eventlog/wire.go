// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Packed event record as exchanged through the EVENT ioctl.

package eventlog

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/dswarbrick/raidctl/mailbox"
	"github.com/dswarbrick/raidctl/utils"
)

const (
	payloadAreaSize = 16
	textSize        = 256
)

// WireRecord is the packed 294 byte event record.
type WireRecord struct {
	FirstStamp  uint32 // Unix seconds
	LastStamp   uint32
	SameCount   uint16
	Source      uint16
	Index       uint16
	Application uint8
	_           uint8
	Size        uint16 // Payload bytes used in EU
	EU          [payloadAreaSize]byte
	Severity    uint32
	Text        [textSize]byte // NUL terminated
}

// SizeOfWireRecord is the packed size of WireRecord.
var SizeOfWireRecord = binary.Size(WireRecord{})

// Wire converts r into its packed form. Text is truncated to fit its NUL-terminated field.
func (r *Record) Wire() WireRecord {
	w := WireRecord{
		FirstStamp:  stamp(r.FirstStamp),
		LastStamp:   stamp(r.LastStamp),
		SameCount:   r.SameCount,
		Source:      uint16(r.Source),
		Index:       r.Index,
		Application: r.Application,
		Severity:    r.Severity,
	}

	if r.Payload != nil {
		b := new(bytes.Buffer)
		binary.Write(b, binary.LittleEndian, r.Payload)
		w.Size = uint16(copy(w.EU[:], b.Bytes()))
	}

	utils.PadCopy(w.Text[:textSize-1], r.Text, 0)

	return w
}

func stamp(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Unix())
}

func unstamp(s uint32) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(int64(s), 0)
}

// Record decodes w. The payload variant, and so the number of bytes read from EU, is chosen by
// the source; a size field that disagrees with it is rejected. A zero size means the record
// carries text only.
func (w *WireRecord) Record() (Record, error) {
	src := Source(w.Source)

	r := Record{
		FirstStamp:  unstamp(w.FirstStamp),
		LastStamp:   unstamp(w.LastStamp),
		SameCount:   w.SameCount,
		Source:      src,
		Index:       w.Index,
		Application: w.Application,
		Severity:    w.Severity,
		Text:        utils.CString(w.Text[:]),
	}

	if w.Size == 0 {
		return r, nil
	}

	want := src.PayloadSize()
	if want == 0 || int(w.Size) != want {
		return Record{}, mailbox.Errorf(mailbox.KindMalformedReply, "decode event",
			"%s event with %d byte payload", src, w.Size)
	}

	var p Payload
	switch src {
	case SourceDriver:
		p = new(DriverEvent)
	case SourceAsync:
		p = new(AsyncEvent)
	case SourceSync:
		p = new(SyncEvent)
	case SourceTest:
		p = new(TestEvent)
	}

	if err := binary.Read(bytes.NewReader(w.EU[:want]), binary.LittleEndian, p); err != nil {
		return Record{}, mailbox.WrapError(mailbox.KindMalformedReply, "decode event", err)
	}

	switch v := p.(type) {
	case *DriverEvent:
		r.Payload = *v
	case *AsyncEvent:
		r.Payload = *v
	case *SyncEvent:
		r.Payload = *v
	case *TestEvent:
		r.Payload = *v
	}

	return r, nil
}

// Marshal returns the packed wire form of r.
func Marshal(r Record) []byte {
	w := r.Wire()
	return mailbox.Pack(&w)
}

// Unmarshal decodes a packed wire record.
func Unmarshal(b []byte) (Record, error) {
	if len(b) != SizeOfWireRecord {
		return Record{}, mailbox.Errorf(mailbox.KindMalformedReply, "decode event",
			"record is %d bytes, expected %d", len(b), SizeOfWireRecord)
	}

	var w WireRecord
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &w); err != nil {
		return Record{}, mailbox.WrapError(mailbox.KindMalformedReply, "decode event", err)
	}

	return w.Record()
}
