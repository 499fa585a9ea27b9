// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package raidctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDevices(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"mlx1", "gdt0", "mlx0", "sda", "mlxctl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0600))
	}

	devices := scanDevices([]string{filepath.Join(dir, "gdt*"), filepath.Join(dir, "mlx[0-9]*")})
	assert.Equal(t, []string{
		filepath.Join(dir, "gdt0"),
		filepath.Join(dir, "mlx0"),
		filepath.Join(dir, "mlx1"),
	}, devices)

	assert.Empty(t, scanDevices([]string{"["}))
}
