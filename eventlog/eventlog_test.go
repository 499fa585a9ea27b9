// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package eventlog

import (
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/raidctl/mailbox"
)

func newTestRing() (*Ring, *time.Time) {
	now := time.Unix(1500000000, 0)
	r := NewRing()
	r.now = func() time.Time { return now }
	return r, &now
}

func driverData(i uint32) Data {
	return Data{Payload: DriverEvent{IONode: 0, Service: 1, Index: i}, Severity: 1, Text: "driver event"}
}

func TestWireSizes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(294, SizeOfWireRecord)
	assert.Equal(8, len(mailbox.Pack(DriverEvent{})))
	assert.Equal(13, len(mailbox.Pack(AsyncEvent{})))
	assert.Equal(16, len(mailbox.Pack(SyncEvent{})))
	assert.Equal(16, len(mailbox.Pack(TestEvent{})))

	for _, src := range []Source{SourceDriver, SourceAsync, SourceSync, SourceTest} {
		assert.LessOrEqual(src.PayloadSize(), payloadAreaSize)
	}
}

func TestEmptyRing(t *testing.T) {
	r, _ := newTestRing()

	_, next, err := r.Read(Start)
	assert.Equal(t, ErrEndOfLog, err)
	assert.Equal(t, EndOfLog, next)

	_, _, err = r.Read(EndOfLog)
	assert.Equal(t, ErrEndOfLog, err)

	_, err = r.Acknowledge(1)
	assert.Equal(t, ErrEndOfLog, err)
}

func TestStoreRead(t *testing.T) {
	r, _ := newTestRing()

	a, ha, err := r.Store(SourceDriver, 1, driverData(1))
	require.NoError(t, err)
	b, hb, err := r.Store(SourceTest, 2, Data{Payload: TestEvent{1, 2, 3, 4}})
	require.NoError(t, err)
	assert.Equal(t, Handle(1), ha)
	assert.Equal(t, Handle(2), hb)

	rec, next, err := r.Read(Start)
	require.NoError(t, err)
	assert.Equal(t, a, rec)
	assert.Equal(t, Handle(2), next)

	// Reads are idempotent
	again, next2, err := r.Read(Start)
	require.NoError(t, err)
	assert.Equal(t, rec, again)
	assert.Equal(t, next, next2)

	rec, next, err = r.Read(next)
	require.NoError(t, err)
	assert.Equal(t, b, rec)
	assert.Equal(t, EndOfLog, next)

	_, _, err = r.Read(next)
	assert.Equal(t, ErrEndOfLog, err)

	// Handle of a slot never written
	_, _, err = r.Read(Handle(10))
	assert.Equal(t, ErrEndOfLog, err)

	_, _, err = r.Read(Handle(Capacity + 1))
	assert.True(t, errors.Is(err, mailbox.ErrInvalidRequest))

	_, _, err = r.Read(Handle(-2))
	assert.True(t, errors.Is(err, mailbox.ErrInvalidRequest))
}

func TestClear(t *testing.T) {
	r, _ := newTestRing()

	for i := 0; i < 5; i++ {
		_, _, err := r.Store(SourceDriver, uint16(i), driverData(uint32(i)))
		require.NoError(t, err)
	}
	assert.Equal(t, 5, r.Len())

	assert.NoError(t, r.Clear())
	assert.Equal(t, 0, r.Len())

	_, _, err := r.Read(Start)
	assert.Equal(t, ErrEndOfLog, err)
}

func TestStoreValidation(t *testing.T) {
	r, _ := newTestRing()

	rec, h, err := r.Store(SourceNone, 0, Data{Text: "ignored"})
	assert.NoError(t, err)
	assert.Equal(t, Record{}, rec)
	assert.Equal(t, EndOfLog, h)
	assert.Equal(t, 0, r.Len())

	_, _, err = r.Store(Source(9), 0, Data{})
	assert.True(t, errors.Is(err, mailbox.ErrInvalidRequest))

	_, _, err = r.Store(SourceAsync, 0, driverData(1))
	assert.True(t, errors.Is(err, mailbox.ErrInvalidRequest))

	// Text-only events need no payload
	_, _, err = r.Store(SourceAsync, 0, Data{Text: "controller reset"})
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestCoalesce(t *testing.T) {
	r, now := newTestRing()
	first := *now

	_, h1, err := r.Store(SourceDriver, 7, driverData(1))
	require.NoError(t, err)

	*now = now.Add(time.Minute)
	rec, h2, err := r.Store(SourceDriver, 7, driverData(1))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, uint16(2), rec.SameCount)
	assert.Equal(t, first, rec.FirstStamp)
	assert.Equal(t, first.Add(time.Minute), rec.LastStamp)
	assert.Contains(t, rec.String(), " x2 ")

	// A different payload starts a new record
	_, _, err = r.Store(SourceDriver, 7, driverData(2))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestOverwrite(t *testing.T) {
	r, _ := newTestRing()

	total := Capacity + 10
	var last Handle
	for i := 0; i < total; i++ {
		var err error
		_, last, err = r.Store(SourceDriver, uint16(i), driverData(uint32(i)))
		require.NoError(t, err)
	}

	// The newest record overwrote slot 9
	assert.Equal(t, Handle(10), last)

	assert.Equal(t, Capacity, r.Len())

	recs, err := ReadAll(r)
	require.NoError(t, err)
	require.Len(t, recs, Capacity)

	// Only the newest Capacity records survive, oldest first
	assert.Equal(t, uint16(10), recs[0].Index)
	assert.Equal(t, uint16(total-1), recs[Capacity-1].Index)

	// The oldest record now sits in slot 10
	rec, _, err := r.Read(Start)
	require.NoError(t, err)
	same, _, err := r.Read(Handle(11))
	require.NoError(t, err)
	assert.Equal(t, rec, same)
}

func TestAcknowledge(t *testing.T) {
	r, _ := newTestRing()

	for i := 0; i < 3; i++ {
		_, _, err := r.Store(SourceDriver, uint16(i), driverData(uint32(i)))
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		rec, err := r.Acknowledge(0x01)
		require.NoError(t, err)
		assert.Equal(t, uint16(i), rec.Index)
		assert.Equal(t, uint8(0x01), rec.Application)
	}

	_, err := r.Acknowledge(0x01)
	assert.Equal(t, ErrEndOfLog, err)

	// A second application walks the log independently
	rec, err := r.Acknowledge(0x02)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), rec.Index)
	assert.Equal(t, uint8(0x03), rec.Application)

	_, err = r.Acknowledge(0)
	assert.True(t, errors.Is(err, mailbox.ErrInvalidRequest))
}

func TestConcurrentStoreRead(t *testing.T) {
	r := NewRing()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Store(SourceTest, uint16(w), Data{Payload: TestEvent{L1: uint32(i)}})
				ReadAll(r)
			}
		}(w)
	}

	wg.Wait()
	assert.Equal(t, Capacity, r.Len())
}

func TestWireRoundTrip(t *testing.T) {
	assert := assert.New(t)
	stamp := time.Unix(1500000000, 0)

	recs := []Record{
		{Source: SourceAsync, Index: 3, Payload: AsyncEvent{IONode: 1, Service: 2, Status: 3, Info: 4, SCSICoord: [3]uint8{1, 2, 0}}},
		{Source: SourceSync, Index: 4, Payload: SyncEvent{HostDrive: 2, SenseKey: 5}},
		{Source: SourceDriver, Index: 5, Payload: DriverEvent{Index: 9}, Text: "drive failed"},
		{Source: SourceTest, Payload: TestEvent{1, 2, 3, 4}},
		{Source: SourceAsync, Text: "text only"},
	}

	for _, rec := range recs {
		rec.FirstStamp, rec.LastStamp, rec.SameCount, rec.Severity = stamp, stamp, 1, 2

		b := Marshal(rec)
		assert.Len(b, SizeOfWireRecord)

		got, err := Unmarshal(b)
		assert.NoError(err)
		assert.Equal(rec, got)
	}
}

func TestWireMalformed(t *testing.T) {
	assert := assert.New(t)

	_, err := Unmarshal(make([]byte, 10))
	assert.True(errors.Is(err, mailbox.ErrMalformedReply))

	w := (&Record{Source: SourceDriver, Payload: DriverEvent{}}).Wire()
	assert.Equal(uint16(8), w.Size)

	w.Size = 13
	_, err = w.Record()
	assert.True(errors.Is(err, mailbox.ErrMalformedReply))

	w.Source = 9
	w.Size = 8
	_, err = w.Record()
	assert.True(errors.Is(err, mailbox.ErrMalformedReply))
}

func TestLongText(t *testing.T) {
	rec := Record{Source: SourceTest, Text: strings.Repeat("x", 400)}
	got, err := Unmarshal(Marshal(rec))
	require.NoError(t, err)
	assert.Len(t, got.Text, textSize-1)

	// A multi-byte character crossing the limit is dropped whole
	rec.Text = strings.Repeat("x", textSize-2) + "€"
	got, err = Unmarshal(Marshal(rec))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", textSize-2), got.Text)
	assert.True(t, utf8.ValidString(got.Text))
}
