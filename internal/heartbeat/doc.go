// Package heartbeat publishes partition liveness to a NATS KV bucket.
//
// Each partition of a distributed run writes {prefix}.{rank} at a fixed
// interval. The value records the collective call sequence the partition has
// reached, so a peer stuck waiting in a round can tell a slow partition (beat
// present) from a dead one (beat expired or deleted).
//
// The bucket TTL should be about three intervals:
//
//	kv, _ := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "nucleate-liveness",
//	    TTL:    3 * time.Second,
//	}, 3)
//	pub := heartbeat.New(kv, "alive", rank, time.Second, logger)
//	if err := pub.Start(ctx); err != nil {
//	    return err
//	}
//	defer pub.Stop()
//
// Stop deletes the key so peers see the departure without waiting for the TTL.
package heartbeat
