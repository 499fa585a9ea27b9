// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Typed wrappers for each supported opcode.

package mailbox

func getRecord(s Submitter, op Opcode, params []uint8, v interface{}) error {
	buf := make([]byte, op.ReplySize())
	cmd := Command{Opcode: op, Params: params, Buf: buf, Dir: op.Direction()}

	if _, err := s.Submit(&cmd); err != nil {
		return err
	}

	if err := unpack(buf, v); err != nil {
		return WrapError(KindMalformedReply, op.String(), err)
	}

	return nil
}

func simpleCommand(s Submitter, op Opcode, params ...uint8) error {
	cmd := Command{Opcode: op, Params: params, Dir: XferNone}
	_, err := s.Submit(&cmd)
	return err
}

// GetEnquiry issues ENQUIRY and returns the controller summary.
func GetEnquiry(s Submitter) (*Enquiry, error) {
	var e Enquiry
	if err := getRecord(s, OpEnquiry, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEnquiry2 issues ENQUIRY2 and returns the controller hardware description.
func GetEnquiry2(s Submitter) (*Enquiry2, error) {
	var e Enquiry2
	if err := getRecord(s, OpEnquiry2, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetSysDrives issues ENQ_SYS_DRIVE and returns the first count system drives. A count of zero
// or larger than MaxSysDrives returns the whole table.
func GetSysDrives(s Submitter, count int) ([]SysDrive, error) {
	var t SysDriveTable
	if err := getRecord(s, OpEnqSysDrive, nil, &t); err != nil {
		return nil, err
	}

	if count <= 0 || count > MaxSysDrives {
		count = MaxSysDrives
	}

	drives := make([]SysDrive, count)
	copy(drives, t[:count])
	return drives, nil
}

// GetDeviceState issues DEVICE_STATE for one channel/target.
func GetDeviceState(s Submitter, channel, target uint8) (*PhysDrive, error) {
	var pd PhysDrive
	if err := getRecord(s, OpDeviceState, []uint8{channel, target}, &pd); err != nil {
		return nil, err
	}
	return &pd, nil
}

// GetRebuildStatus issues REBUILD_STAT.
func GetRebuildStatus(s Submitter) (*RebuildStatus, error) {
	var rs RebuildStatus
	if err := getRecord(s, OpRebuildStat, nil, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// ExecDCDB runs a direct CDB. data is copied into the data area before the command is sent;
// the returned reply holds the DCDB as updated by the controller and the inbound data.
func ExecDCDB(s Submitter, dcdb *DCDB, data []byte) (*CDBReply, error) {
	if len(data) > DCDBDataSize {
		return nil, Errorf(KindInvalidRequest, OpDirectCDB.String(),
			"data area is %d bytes, maximum %d", len(data), DCDBDataSize)
	}

	req := CDBReply{DCDB: *dcdb}
	copy(req.Data[:], data)

	buf := Pack(&req)
	cmd := Command{Opcode: OpDirectCDB, Params: []uint8{}, Buf: buf, Dir: XferBoth}

	if _, err := s.Submit(&cmd); err != nil {
		return nil, err
	}

	var reply CDBReply
	if err := unpack(buf, &reply); err != nil {
		return nil, WrapError(KindMalformedReply, OpDirectCDB.String(), err)
	}

	return &reply, nil
}

// Flush writes back the controller cache.
func Flush(s Submitter) error {
	return simpleCommand(s, OpFlush)
}

// StartDevice spins up the drive at channel/target.
func StartDevice(s Submitter, channel, target uint8) error {
	return simpleCommand(s, OpStartDevice, channel, target)
}

// RebuildAsync starts a background rebuild onto the drive at channel/target.
func RebuildAsync(s Submitter, channel, target uint8) error {
	return simpleCommand(s, OpRebuildAsync, channel, target)
}

// CheckAsync starts a background consistency check of a system drive.
func CheckAsync(s Submitter, sysDrive uint8) error {
	return simpleCommand(s, OpCheckAsync, sysDrive)
}
