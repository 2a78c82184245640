// Package job defines the immutable, validated analysis job: the only input
// the execution engine accepts.
//
// # Why Jobs Are Immutable
//
// A job is assembled by a mutable builder and then frozen by New, which
// checks the whole graph at once:
//   - every consumed column has exactly one producer (a source column or a
//     transformer output),
//   - every requirement points at a filter in the same graph and at one of
//     that filter's outcome categories,
//   - there are no dependency cycles.
//
// Once built, an AnalysisJob and its ComponentJobs never change, so a single
// job can be executed concurrently by many runs and shared freely between
// goroutines. Components are stored in a topological order: every producer
// precedes its consumers and every filter precedes the components gated
// by it.
package job
