// Package kvutil holds helpers for NATS JetStream KeyValue buckets shared by
// the partitions of one simulation.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const defaultRetries = 3

// EnsureBucket creates a KV bucket or opens it when another partition won the
// creation race.
//
// Transient failures are retried with exponential backoff starting at 10ms.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: Bucket configuration
//   - retries: Maximum attempts (defaults to 3 when <= 0)
//
// Returns:
//   - jetstream.KeyValue: The bucket
//   - error: Last failure once all attempts are spent, or the context error
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "nucleate-rounds",
//	    TTL:    time.Hour,
//	}, 3)
func EnsureBucket(ctx context.Context, js jetstream.JetStream, config jetstream.KeyValueConfig, retries int) (jetstream.KeyValue, error) {
	if retries <= 0 {
		retries = defaultRetries
	}

	var lastErr error
	for attempt := range retries {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, openErr := js.KeyValue(ctx, config.Bucket)
			if openErr == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket %s exists but cannot be opened: %w", config.Bucket, openErr)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled while ensuring bucket %s: %w", config.Bucket, ctx.Err())
		}

		if attempt < retries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt < retries
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled while ensuring bucket %s: %w", config.Bucket, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to create or open bucket %s after %d attempts: %w", config.Bucket, retries, lastErr)
}

// DeleteKeys deletes every key and keeps going past individual failures.
//
// Missing keys are not errors.
//
// Returns:
//   - int: Number of keys deleted
//   - error: Joined failures, nil when every delete succeeded
func DeleteKeys(ctx context.Context, kv jetstream.KeyValue, keys []string) (int, error) {
	deleted := 0
	var errs []error
	for _, key := range keys {
		err := kv.Delete(ctx, key)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, jetstream.ErrKeyNotFound):
		default:
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}

	return deleted, errors.Join(errs...)
}
