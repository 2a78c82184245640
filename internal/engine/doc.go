// Package engine executes a frozen analysis job against a datastore.
//
// A run splits the source table into partitions and submits one scheduler
// task per partition. Each task checks out the shared datastore connection,
// creates fresh component instances and feeds every row of its partition
// through the row state machine:
//
//	source → filter outcomes → eligibility → transform → analyze
//
// Components run in the job's topological order, so a row's filter outcomes
// and transformer outputs are settled before any analyzer sees it. A
// component whose requirement is not met by the row's recorded outcome does
// not see the row at all.
//
// # Failure Isolation
//
// Every call into component code yields a tagged step result, a value or an
// error, and panics are recovered into errors. A failing component is
// marked errored for the rest of the run in every partition and its error
// is reported in the ResultSet. Its siblings keep running. Configuration
// problems are reported synchronously by Run before any task is submitted.
//
// # Results
//
// Once all partitions finished, the partial results of each analyzer are
// reduced into one (see internal/reducer) and recorded in the run's
// nodestore. Cancelling the ResultFuture stops outstanding partitions
// cooperatively and reports the run as cancelled instead of returning
// partial results.
package engine
