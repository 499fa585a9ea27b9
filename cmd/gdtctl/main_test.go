// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/raidctl/client"
	"github.com/dswarbrick/raidctl/drivedb"
)

func simClient(t *testing.T) *client.Client {
	c, err := openSim("../../sim/testdata/two-controllers.yaml")
	require.NoError(t, err)
	return c
}

func TestParseAddress(t *testing.T) {
	ch, tgt, err := parseAddress("1:5")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), ch)
	assert.Equal(t, uint8(5), tgt)

	for _, s := range []string{"", "3", "a:1", "1:16", "16:0"} {
		_, _, err := parseAddress(s)
		assert.Error(t, err, s)
	}
}

func TestShowInfo(t *testing.T) {
	var buf bytes.Buffer
	o := options{out: &buf}

	require.NoError(t, showInfo(simClient(t), &o))
	assert.Contains(t, buf.String(), "Driver version: 1.03")
	assert.Contains(t, buf.String(), "Controller 1:")
	assert.Contains(t, buf.String(), "Firmware 2.32")
}

func TestShowDrivesYAML(t *testing.T) {
	var buf bytes.Buffer
	o := options{out: &buf, yaml: true}

	db, err := drivedb.OpenDriveDb("../../drivedb/testdata/drivedb.yaml")
	require.NoError(t, err)

	require.NoError(t, showDrives(simClient(t), &o, &db))

	var drives []driveInfo
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &drives))
	require.Len(t, drives, 4)
	assert.Equal(t, "0:2", drives[2].Address)
	assert.Equal(t, "dead", drives[2].State)
	assert.Equal(t, "QUANTUM", drives[3].Vendor)
}

func TestRebuildAndEvents(t *testing.T) {
	var buf bytes.Buffer
	c := simClient(t)
	o := options{out: &buf, rebuild: "0:2", ack: 0x01}

	require.NoError(t, startRebuild(c, &o))
	require.NoError(t, showSysDrives(c, &o))
	assert.Contains(t, buf.String(), "critical")
	assert.Contains(t, buf.String(), "In progress: rebuild")

	buf.Reset()
	require.NoError(t, ackEvents(c, &o))
	assert.Contains(t, buf.String(), "rebuild started")

	// Everything is now acknowledged for this application
	buf.Reset()
	require.NoError(t, ackEvents(c, &o))
	assert.Empty(t, buf.String())

	require.NoError(t, c.Clear())
	buf.Reset()
	require.NoError(t, showEvents(c, &o))
	assert.Empty(t, buf.String())
}

func TestShowStats(t *testing.T) {
	var buf bytes.Buffer
	c := simClient(t)
	o := options{out: &buf}

	require.NoError(t, flushCache(c, &o))
	require.NoError(t, showStats(c, &o))
	assert.Contains(t, buf.String(), "Executing")
}
