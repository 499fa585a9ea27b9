// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Drive database checker. Loads a YAML drive database, reporting any entry that fails to
// compile, and optionally looks up one INQUIRY identity.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/raidctl/drivedb"
)

func main() {
	dbfile := flag.String("db", "drivedb.yaml", "YAML drive database")
	vendor := flag.String("vendor", "", "INQUIRY vendor to look up")
	product := flag.String("product", "", "INQUIRY product to look up")
	revision := flag.String("revision", "", "INQUIRY revision to look up")
	flag.Parse()

	t0 := time.Now()

	db, err := drivedb.OpenDriveDb(*dbfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot load drive database: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %s in %v - %d entries\n", *dbfile, time.Since(t0), len(db.Drives))

	if *vendor == "" && *product == "" {
		return
	}

	model := db.LookupDrive(*vendor, *product, *revision)
	if model.Family == "" {
		fmt.Println("No matching entry")
		os.Exit(1)
	}

	out, err := yaml.Marshal(model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding yaml: %v\n", err)
		os.Exit(1)
	}

	os.Stdout.Write(out)
}
