// Package natskv implements types.GlobalReconciler over NATS JetStream KV for
// partitions running as separate processes.
//
// Every collective call of a partition carries a sequence number. The call
// writes the partition's JSON payload to
//
//	{prefix}.{seq}.{op}.{rank}
//
// in the rounds bucket, then watches {prefix}.{seq}.*.* until every rank's
// payload is present. All partitions decode the same payload set and run the
// deterministic reconcile.Merge or reconcile.Remove, so they leave the call
// with identical lists.
//
// Ranks are leased in a liveness bucket under {prefix}.rank.{rank}, and each
// partition beats {prefix}.alive.{rank} there. A round still missing a rank
// whose beat has expired fails with types.ErrPartitionUnreachable; a round
// exceeding Config.RoundTimeout fails with types.ErrRoundTimeout. A partition
// that fails locally calls AbortRound, which writes an abort marker under
// {prefix}.{seq}.abort.{rank}; peers in that round fail with
// types.ErrRoundAborted.
//
// Use one prefix per simulation run: sequence numbers restart at zero.
package natskv
