package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(time.Second))
	require.True(t, ns.JetStreamEnabled())
}

func TestStartEmbeddedNATS_Parallel(t *testing.T) {
	for range 4 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestCreateJetStreamKV(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)
	kv := CreateJetStreamKV(t, nc, "helper-bucket")

	_, err := kv.Put(t.Context(), "round.0.reconcile.0", []byte("payload"))
	require.NoError(t, err)

	entry, err := kv.Get(t.Context(), "round.0.reconcile.0")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), entry.Value())

	status, err := kv.Status(t.Context())
	require.NoError(t, err)
	require.Equal(t, time.Minute, status.TTL())
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)

	logger.Debug("debug", "k", 1)
	logger.Info("info")
	logger.Warn("warn", "k", "v")
	logger.Error("error")
}
