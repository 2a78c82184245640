// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle, decoupled
// from any specific entrypoint like a CLI or server.
//
// An App owns one component registry and one metrics registry. Run loads an
// HCL job, opens the SQLite datastore it reads from, runs the job on a
// bounded worker pool and writes the reduced results as YAML.
package app
