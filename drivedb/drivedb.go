// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package drivedb matches the INQUIRY identity of a physical drive against a YAML database of
// known drive families.
package drivedb

import (
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type DriveModel struct {
	Family        string `yaml:"family"`
	VendorRegex   string `yaml:"vendor"`
	ProductRegex  string `yaml:"product"`
	RevisionRegex string `yaml:"revision,omitempty"`
	WarningMsg    string `yaml:"warning,omitempty"`

	vendorRe, productRe, revisionRe *regexp.Regexp
}

type DriveDb struct {
	Drives []DriveModel `yaml:"drives"`
}

func (d *DriveModel) compile() (err error) {
	if d.vendorRe, err = regexp.Compile(d.VendorRegex); err != nil {
		return err
	}
	if d.productRe, err = regexp.Compile(d.ProductRegex); err != nil {
		return err
	}
	d.revisionRe, err = regexp.Compile(d.RevisionRegex)
	return err
}

func (d *DriveModel) match(vendor, product, revision string) bool {
	return d.vendorRe.MatchString(vendor) && d.productRe.MatchString(product) &&
		d.revisionRe.MatchString(revision)
}

// LookupDrive returns the most appropriate DriveModel for a given INQUIRY identity. If no entry
// matches, the DEFAULT entry (if any) is returned.
func (db *DriveDb) LookupDrive(vendor, product, revision string) DriveModel {
	var model DriveModel

	vendor = strings.TrimSpace(vendor)
	product = strings.TrimSpace(product)
	revision = strings.TrimSpace(revision)

	for _, d := range db.Drives {
		if d.Family == "DEFAULT" {
			model = d
			continue
		}

		if d.vendorRe != nil && d.match(vendor, product, revision) {
			return d
		}
	}

	return model
}

// ParseDriveDb decodes a YAML-formatted drive database.
func ParseDriveDb(b []byte) (DriveDb, error) {
	var db DriveDb

	if err := yaml.Unmarshal(b, &db); err != nil {
		return db, errors.Wrap(err, "parse drive database")
	}

	for i := range db.Drives {
		if err := db.Drives[i].compile(); err != nil {
			return db, errors.Wrapf(err, "drive family %q", db.Drives[i].Family)
		}
	}

	return db, nil
}

// OpenDriveDb opens a YAML-formatted drive database, unmarshalls it, and returns a DriveDb.
func OpenDriveDb(dbfile string) (DriveDb, error) {
	b, err := os.ReadFile(dbfile)
	if err != nil {
		return DriveDb{}, errors.Wrap(err, "open drive database")
	}

	return ParseDriveDb(b)
}
