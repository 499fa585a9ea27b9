// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package mailbox encodes host-to-firmware mailbox commands, submits them over a transport and
// decodes the fixed-format replies.
//
// A reply carries no header describing its own layout: its size and meaning are implied by the
// opcode that was sent. Submit therefore checks every buffer against the static opcode table
// before and after the exchange, and never exposes a partially written buffer.
package mailbox

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	FrameSize = 8

	// Offset of the first parameter byte in a Frame. Byte 1 holds the command ident.
	frameParamOffset = 2
	MaxParams        = FrameSize - frameParamOffset
)

var log = logrus.WithField("pkg", "mailbox")

// Frame is the fixed mailbox command record: opcode, command ident, parameters.
type Frame [FrameSize]uint8

// Opcode returns the opcode byte of the frame.
func (f Frame) Opcode() Opcode {
	return Opcode(f[0])
}

// Ident returns the command ident stamped by the controller handle.
func (f Frame) Ident() uint8 {
	return f[1]
}

// SetIdent stamps the command ident.
func (f *Frame) SetIdent(id uint8) {
	f[1] = id
}

// Param returns parameter byte i.
func (f Frame) Param(i int) uint8 {
	return f[frameParamOffset+i]
}

// Command is a single logical request to a controller.
type Command struct {
	Opcode Opcode
	Params []uint8
	Buf    []byte
	Dir    Direction
}

// Frame encodes the command into its mailbox record.
func (c *Command) Frame() Frame {
	var f Frame
	f[0] = uint8(c.Opcode)
	copy(f[frameParamOffset:], c.Params)
	return f
}

// Completion is what the controller reports back for one exchange.
type Completion struct {
	Count  int // Bytes written back into the data buffer
	Status Status
}

// Transport carries one encoded mailbox command to a controller and waits for it to complete.
// On entry data holds the outbound payload (if any); on return it holds the inbound payload.
// Implementations must not retain data.
type Transport interface {
	Exchange(f Frame, data []byte) (Completion, error)
}

// Submitter is anything that can run a mailbox command to completion, e.g. a controller handle
// or a node reached through the ioctl passthrough.
type Submitter interface {
	Submit(cmd *Command) (int, error)
}

// Validate checks cmd against the opcode table without touching any transport.
func Validate(cmd *Command) error {
	info, ok := opTable[cmd.Opcode]
	if !ok {
		return Errorf(KindNotSupported, "submit", "unknown %s", cmd.Opcode)
	}

	if len(cmd.Params) != info.params {
		return Errorf(KindInvalidRequest, "submit", "%s takes %d parameters, got %d",
			cmd.Opcode, info.params, len(cmd.Params))
	}

	if cmd.Dir != info.dir {
		return Errorf(KindInvalidRequest, "submit", "%s requires direction %s, got %s",
			cmd.Opcode, info.dir, cmd.Dir)
	}

	if cmd.Dir&XferIn != 0 && len(cmd.Buf) == 0 {
		return Errorf(KindInvalidRequest, "submit", "%s reads data but has no buffer", cmd.Opcode)
	}

	if len(cmd.Buf) != info.replySize {
		return Errorf(KindMalformedReply, "submit", "%s buffer is %d bytes, reply is %d",
			cmd.Opcode, len(cmd.Buf), info.replySize)
	}

	return nil
}

// Submit validates cmd, exchanges it over t and copies the reply into cmd.Buf. It returns the
// number of reply bytes written. On any error cmd.Buf is left untouched. No retries are made.
func Submit(t Transport, cmd *Command) (int, error) {
	if err := Validate(cmd); err != nil {
		return 0, err
	}

	scratch := make([]byte, len(cmd.Buf))
	if cmd.Dir&XferOut != 0 {
		copy(scratch, cmd.Buf)
	}

	log.WithFields(logrus.Fields{
		"opcode": cmd.Opcode,
		"params": cmd.Params,
		"size":   len(scratch),
	}).Debug("submit")

	comp, err := t.Exchange(cmd.Frame(), scratch)
	if err != nil {
		// Errors already classified by a lower layer keep their kind.
		var e *Error
		if errors.As(err, &e) {
			return 0, err
		}
		return 0, WrapError(KindTransportFailure, cmd.Opcode.String(), err)
	}

	if err := CheckStatus(cmd.Opcode.String(), comp.Status); err != nil {
		return 0, err
	}

	expect := 0
	if cmd.Dir&XferIn != 0 {
		expect = len(scratch)
	}

	if comp.Count != expect {
		log.WithFields(logrus.Fields{
			"opcode":   cmd.Opcode,
			"expected": expect,
			"got":      comp.Count,
		}).Warn("reply size does not match opcode format")
		return 0, Errorf(KindMalformedReply, cmd.Opcode.String(),
			"controller returned %d bytes, expected %d", comp.Count, expect)
	}

	if cmd.Dir&XferIn != 0 {
		copy(cmd.Buf, scratch)
	}

	return comp.Count, nil
}

// DecodeFrame rebuilds a Command from a received frame, direction and data buffer. It is the
// inverse of Command.Frame for requests arriving through the ioctl passthrough.
func DecodeFrame(f Frame, dir Direction, buf []byte) (*Command, error) {
	op := f.Opcode()
	if !op.Valid() {
		return nil, Errorf(KindNotSupported, "decode frame", "unknown %s", op)
	}

	n := op.ParamCount()
	params := make([]uint8, n)
	copy(params, f[frameParamOffset:frameParamOffset+n])

	cmd := &Command{
		Opcode: op,
		Params: params,
		Buf:    buf,
		Dir:    dir,
	}

	return cmd, Validate(cmd)
}
