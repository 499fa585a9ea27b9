// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// gdtctl is a management tool for ICP-Vortex and Mylex RAID controllers. It talks to a
// controller device node, or to simulated controllers described by a YAML profile.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/raidctl"
	"github.com/dswarbrick/raidctl/client"
	"github.com/dswarbrick/raidctl/controller"
	"github.com/dswarbrick/raidctl/devfile"
	"github.com/dswarbrick/raidctl/discover"
	"github.com/dswarbrick/raidctl/dispatch"
	"github.com/dswarbrick/raidctl/drivedb"
	"github.com/dswarbrick/raidctl/eventlog"
	"github.com/dswarbrick/raidctl/sim"
)

type options struct {
	node    int
	drivedb string
	yaml    bool
	rebuild string
	ack     uint
	out     io.Writer
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// emit writes v as YAML if requested, otherwise calls text.
func (o *options) emit(v interface{}, text func(w io.Writer)) {
	if !o.yaml {
		text(o.out)
		return
	}

	b, err := yaml.Marshal(v)
	if err != nil {
		fatal(err)
	}
	o.out.Write(b)
}

// openSim attaches the controllers of a simulation profile to an in-process dispatcher.
func openSim(path string) (*client.Client, error) {
	p, err := sim.LoadProfile(path)
	if err != nil {
		return nil, err
	}

	reg := controller.NewRegistry()
	ring := eventlog.NewRing()

	if _, err := sim.Attach(reg, p, ring); err != nil {
		return nil, err
	}

	return client.New(dispatch.New(reg, ring)), nil
}

func scanDevices(o *options) {
	type scanReport struct {
		Devices     []string `yaml:"devices"`
		Controllers []string `yaml:"controllers"`
	}

	var r scanReport
	r.Devices = raidctl.ScanDevices()

	ctrls, err := discover.Scan()
	if err != nil {
		logrus.WithError(err).Warn("PCI scan failed")
	}
	for _, c := range ctrls {
		r.Controllers = append(r.Controllers, c.String())
	}

	o.emit(r, func(w io.Writer) {
		for _, d := range r.Devices {
			fmt.Fprintln(w, d)
		}
		for _, c := range r.Controllers {
			fmt.Fprintln(w, c)
		}
	})
}

func main() {
	device := flag.String("device", "", "Controller device node, e.g., /dev/gdt0")
	simProfile := flag.String("sim", "", "YAML profile of simulated controllers to use instead of a device")
	scan := flag.Bool("scan", false, "Scan for controller devices")
	info := flag.Bool("info", false, "Show driver and controller information")
	drives := flag.Bool("drives", false, "Show physical drives")
	sysDrives := flag.Bool("sysdrives", false, "Show system drives")
	events := flag.Bool("events", false, "Show the driver event log")
	clearEvents := flag.Bool("clear-events", false, "Erase the driver event log")
	stats := flag.Bool("stats", false, "Show driver command statistics")
	flush := flag.Bool("flush", false, "Flush the controller cache")
	verbose := flag.Bool("v", false, "Enable debug logging")

	o := options{out: os.Stdout}
	flag.IntVar(&o.node, "node", 0, "Controller io_node for controller commands")
	flag.StringVar(&o.drivedb, "drivedb", "", "YAML drive database used to annotate physical drives")
	flag.BoolVar(&o.yaml, "yaml", false, "Print results as YAML")
	flag.StringVar(&o.rebuild, "rebuild", "", "Start a rebuild onto the drive at CHAN:TARG")
	flag.UintVar(&o.ack, "ack", 0, "Print and acknowledge unseen events for application bitmask APP")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{})
	logrus.SetLevel(logrus.InfoLevel)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	logrus.WithFields(logrus.Fields{
		"go":   runtime.Version(),
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}).Debug("gdtctl starting")

	if *scan {
		scanDevices(&o)
		return
	}

	var (
		c   *client.Client
		err error
	)

	switch {
	case *simProfile != "":
		c, err = openSim(*simProfile)
	case *device != "":
		var dev *devfile.Device
		if dev, err = devfile.Open(*device); err == nil {
			defer dev.Close()
			c = client.New(dev)
		}
	default:
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err != nil {
		fatal(err)
	}

	var db *drivedb.DriveDb
	if o.drivedb != "" {
		d, err := drivedb.OpenDriveDb(o.drivedb)
		if err != nil {
			fatal(err)
		}
		db = &d
	}

	actions := []struct {
		enabled bool
		run     func(*client.Client, *options) error
	}{
		{*info, showInfo},
		{*drives, func(c *client.Client, o *options) error { return showDrives(c, o, db) }},
		{*sysDrives, showSysDrives},
		{o.rebuild != "", startRebuild},
		{*flush, flushCache},
		{*events, showEvents},
		{o.ack != 0, ackEvents},
		{*clearEvents, func(c *client.Client, o *options) error { return c.Clear() }},
		{*stats, showStats},
	}

	ran := false
	for _, a := range actions {
		if !a.enabled {
			continue
		}
		ran = true
		if err := a.run(c, &o); err != nil {
			fatal(err)
		}
	}

	if !ran {
		flag.PrintDefaults()
		os.Exit(1)
	}
}
