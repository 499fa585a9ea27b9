// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package dispatch

import (
	"strconv"
	"strings"

	"github.com/dswarbrick/raidctl/utils"
)

// parseRelease extracts version, subversion and revision from a kernel release string such as
// "5.15.0-91-generic". Missing or non-numeric components are zero.
func parseRelease(release string) (version, subversion uint8, revision uint16) {
	if i := strings.IndexAny(release, "-+ _"); i >= 0 {
		release = release[:i]
	}

	parts := strings.SplitN(release, ".", 3)
	nums := make([]uint64, 3)
	for i, p := range parts {
		nums[i], _ = strconv.ParseUint(p, 10, 16)
	}

	return uint8(nums[0]), uint8(nums[1]), uint16(nums[2])
}

func newOSVersion(code uint8, sysname, release string) OSVersion {
	osv := OSVersion{OSCode: code}
	osv.Version, osv.Subversion, osv.Revision = parseRelease(release)
	utils.PadCopy(osv.Name[:len(osv.Name)-1], sysname+" "+release, 0)
	return osv
}
