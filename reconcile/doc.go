// Package reconcile provides the deterministic merge algorithm behind
// types.GlobalReconciler and two reference reconcilers built on it.
//
// Merge concatenates every partition's candidate batch in partition rank order
// and keeps a candidate only when it is far enough from every candidate kept
// before it. Remove drops a union of conflict IDs. Both renumber survivors
// densely from the existing world nucleus count, so any process applying them to
// the same inputs obtains the same list.
//
// Local serves a single partition. Group serves several partitions running as
// goroutines in one process, gathering each collective call through a barrier
// table; each call is bounded by a round timeout, and a member that fails
// locally aborts the round for all members with AbortRound. The NATS JetStream based reconciler for multi-process runs lives in
// the natskv subpackage.
package reconcile
