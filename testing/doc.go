// Package testing provides test helpers for code built on nucleate.
//
// It follows the net/http/httptest convention: import it under an alias and
// use it from _test.go files only.
//
//	import nucleatetest "github.com/arloliu/nucleate/testing"
//
//	func TestReconciler(t *testing.T) {
//	    _, nc := nucleatetest.StartEmbeddedNATS(t)
//	    js := nucleatetest.JetStream(t, nc)
//	    // build a natskv reconciler on js
//	}
//
// Helpers:
//   - StartEmbeddedNATS: in-process NATS server with JetStream
//   - JetStream: JetStream context for a test connection
//   - CreateJetStreamKV: memory-backed KV bucket
//   - NewTestLogger: types.Logger writing to t.Log
package testing
