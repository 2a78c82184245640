// Package dag provides the directed acyclic graph used to validate and order
// the components of an analysis job.
//
// Nodes are identified by strings. An edge from A to B means B depends on A,
// either because B consumes a column A produces or because B requires an
// outcome of filter A. The graph detects cycles and produces a deterministic
// topological order in which every producer precedes its consumers.
package dag
