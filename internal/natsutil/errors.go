// Package natsutil classifies NATS client errors.
package natsutil

import (
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/nucleate/types"
)

// IsConnectivityError reports whether err comes from losing the NATS server
// rather than from the data exchanged with it.
//
// Collective reconcilers use it to tell a partition that could not reach the
// server apart from a round whose payloads were malformed.
//
// Parameters:
//   - err: Error to classify
//
// Returns:
//   - bool: true for timeouts, missing servers, closed or dropped connections
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "i/o timeout")
}

// IsMissingKey reports whether err means a KV key is absent or deleted.
func IsMissingKey(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

// Classify wraps connectivity failures in types.ErrConnectivity and returns
// every other error unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, types.ErrConnectivity) || !IsConnectivityError(err) {
		return err
	}

	return errors.Join(types.ErrConnectivity, err)
}
