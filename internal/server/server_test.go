package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/iamNilotpal/kvs/internal/client"
	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/internal/threadpool"
	"github.com/iamNilotpal/kvs/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.SegmentOptions.Directory = ""

	eng, err := engine.Open(context.Background(), &engine.Config{Options: &opts, Logger: zap.NewNop().Sugar()}, "kvs")
	require.NoError(t, err)

	pool, err := threadpool.NewSharedQueueThreadPool(2)
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(&Config{Engine: eng, Pool: pool, Logger: zap.NewNop().Sugar()})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			pool.Spawn(func() { srv.handleConn(ctx, conn) })
		}
	}()

	t.Cleanup(func() {
		cancel()
		pool.Shutdown()
		_ = eng.Close()
	})

	return lis.Addr().String()
}

func TestServerSetGetRemoveRoundTrip(t *testing.T) {
	addr := startTestServer(t)

	c, err := client.Dial(addr)
	require.NoError(t, err)

	require.NoError(t, c.Set("foo", []byte("bar")))

	value, ok, err := c.Get("foo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("bar"), value)

	require.NoError(t, c.Remove("foo"))

	_, ok, err = c.Get("foo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServerGetMissingKeyReturnsNotOK(t *testing.T) {
	addr := startTestServer(t)

	c, err := client.Dial(addr)
	require.NoError(t, err)

	_, ok, err := c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServerRemoveMissingKeyReturnsError(t *testing.T) {
	addr := startTestServer(t)

	c, err := client.Dial(addr)
	require.NoError(t, err)

	err = c.Remove("missing")
	assert.Error(t, err)
}

func TestServerHandlesConcurrentConnections(t *testing.T) {
	addr := startTestServer(t)

	done := make(chan error, 10)
	for i := range 10 {
		go func(i int) {
			c, err := client.Dial(addr)
			if err != nil {
				done <- err
				return
			}
			done <- c.Set("key", []byte("value"))
		}(i)
	}

	for range 10 {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for concurrent request")
		}
	}
}
