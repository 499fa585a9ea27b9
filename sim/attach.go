// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package sim

import (
	"github.com/pkg/errors"

	"github.com/dswarbrick/raidctl/controller"
)

// Attach creates a firmware instance for every controller in p and attaches it to reg. Events
// raised by the firmware go to sink, which may be nil.
func Attach(reg *controller.Registry, p *Profile, sink EventSink) ([]*Firmware, error) {
	var fws []*Firmware

	for _, cp := range p.Controllers {
		fw := NewFirmware(cp)

		c, err := reg.Attach(fw.Identity(), fw)
		if err != nil {
			return fws, errors.Wrapf(err, "attach %s", cp.Name)
		}

		if sink != nil {
			fw.SetEventSink(sink, c.Node())
		}

		fws = append(fws, fw)
	}

	return fws, nil
}
