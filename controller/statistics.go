// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package controller

import "sync"

// Statistics is the driver-wide command statistics record returned by STATIST. Each pair holds
// the current value and the highest value seen since the registry was created.
type Statistics struct {
	IOCountAct  uint16 // Commands executing
	IOCountMax  uint16
	ReqQueueAct uint16 // Callers waiting for a busy controller
	ReqQueueMax uint16
	CmdIndexAct uint16 // Ident of the last command issued
	CmdIndexMax uint16
	SGCountAct  uint16 // Data segments of the last command
	SGCountMax  uint16
}

type tracker struct {
	mu sync.Mutex
	s  Statistics
}

func raise(act, max *uint16, v uint16) {
	*act = v
	if v > *max {
		*max = v
	}
}

func (t *tracker) queue(delta int) {
	t.mu.Lock()
	raise(&t.s.ReqQueueAct, &t.s.ReqQueueMax, uint16(int(t.s.ReqQueueAct)+delta))
	t.mu.Unlock()
}

func (t *tracker) start(ident uint8, segments int) {
	t.mu.Lock()
	raise(&t.s.IOCountAct, &t.s.IOCountMax, t.s.IOCountAct+1)
	raise(&t.s.CmdIndexAct, &t.s.CmdIndexMax, uint16(ident))
	raise(&t.s.SGCountAct, &t.s.SGCountMax, uint16(segments))
	t.mu.Unlock()
}

func (t *tracker) finish() {
	t.mu.Lock()
	t.s.IOCountAct--
	t.mu.Unlock()
}

func (t *tracker) snapshot() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
