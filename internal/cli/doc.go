// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags and an optional YAML settings file into the
// application's internal configuration.
//
// Commands:
//
//	cleangrid run [JOB_PATH] --datastore profile.db [--partitions N]
//	cleangrid validate [JOB_PATH]
//	cleangrid components
package cli
