package config

import (
	"fmt"
)

// CurrentFormatVersion is the definition format version written by Writers.
//
// Version history:
//   - 1: single datastore per installation; jobs name only the table.
//   - 2: jobs name the datastore they read from.
const CurrentFormatVersion = 2

// DefaultDatastore is the datastore version 1 jobs implicitly read from.
const DefaultDatastore = "default"

// migrations upgrade a definition from the keyed version to the next one.
var migrations = map[int]func(*JobDefinition){
	1: func(d *JobDefinition) {
		if d.Datastore == "" {
			d.Datastore = DefaultDatastore
		}
	},
}

// Migrate upgrades def in place to CurrentFormatVersion. A missing version
// (zero) is read as version 1. Definitions newer than this build are
// rejected.
func Migrate(def *JobDefinition) error {
	if def.FormatVersion == 0 {
		def.FormatVersion = 1
	}
	if def.FormatVersion > CurrentFormatVersion {
		return fmt.Errorf("format version %d is newer than the supported version %d", def.FormatVersion, CurrentFormatVersion)
	}
	if def.FormatVersion < 1 {
		return fmt.Errorf("format version %d is not valid", def.FormatVersion)
	}
	for def.FormatVersion < CurrentFormatVersion {
		migrations[def.FormatVersion](def)
		def.FormatVersion++
	}
	return nil
}
