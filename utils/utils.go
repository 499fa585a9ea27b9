// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Miscellaneous utility functions

package utils

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// SectorSize is the logical block size controllers report drive and system drive sizes in.
const SectorSize = 512

// CString returns the contents of a NUL-terminated byte array.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}

// TrimPadded returns a fixed-width firmware string with trailing spaces and NULs removed,
// e.g. an INQUIRY vendor or product field.
func TrimPadded(b []byte) string {
	return string(bytes.TrimRight(b, " \x00"))
}

// PadCopy copies s into dst, filling the remainder with pad. s is truncated if it is too long,
// never in the middle of a UTF-8 sequence.
func PadCopy(dst []byte, s string, pad byte) {
	if len(s) > len(dst) {
		n := len(dst)
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}

	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = pad
	}
}

// FormatBytes formats a uint64 byte quantity using human-readble units, e.g. kilobyte, megabyte.
func FormatBytes(v uint64) string {
	var i int

	suffixes := [...]string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	d := uint64(1)

	for i = 0; i < len(suffixes)-1; i++ {
		if v >= d*1000 {
			d *= 1000
		} else {
			break
		}
	}

	if i == 0 {
		return fmt.Sprintf("%d %s", v, suffixes[i])
	}

	// Print 3 significant digits
	return fmt.Sprintf("%.3g %s", float64(v)/float64(d), suffixes[i])
}

// FormatSectors formats a sector count as a human-readable capacity.
func FormatSectors(sectors uint32) string {
	return FormatBytes(uint64(sectors) * SectorSize)
}
