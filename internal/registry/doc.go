// Package registry holds the catalog of component descriptors known to one
// application instance.
//
// The Registry maps implementation identities (e.g. "null-check") and
// display names (including aliases) to the immutable descriptors created by
// component modules. Registration validates each descriptor, so a
// malformed component type is rejected at startup with an error naming it,
// never at lookup time.
//
// A Registry is created once, populated by Module implementations, and then
// read concurrently by builders and the engine. It is passed explicitly to
// whoever needs it; there is no package-level registry.
package registry
