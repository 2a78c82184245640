/*
Package nodeid provides a structured, type-safe representation for component
identifiers within a job, based on the canonical format `kind.name`.

An address may be narrowed to the instance of a component that runs in one
partition, written `kind.name[partition]`, e.g. `analyzer.email_stats[2]`.
Names are restricted to letters, digits, '_' and '-' so the dot is always a
separator.
*/
package nodeid
