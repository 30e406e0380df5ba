package rpc

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, handler Handler) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(handler, nil)
	go srv.Serve(ctx, ln)

	return ln.Addr().String(), func() { cancel(); ln.Close() }
}

func TestClientServer_CallReturnsHandlerResult(t *testing.T) {
	addr, stop := startTestServer(t, func(ctx context.Context, method string, params map[string]interface{}) (interface{}, error) {
		if method != "ping" {
			return nil, fmt.Errorf("unexpected method %s", method)
		}
		return map[string]interface{}{"status": "ok"}, nil
	})
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	client := NewClient(conn)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Call(ctx, "ping", nil)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "ok", result["status"])
}

func TestClientServer_HandlerErrorSurfacesAsWireError(t *testing.T) {
	addr, stop := startTestServer(t, func(ctx context.Context, method string, params map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("boom")
	})
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	client := NewClient(conn)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Call(ctx, "explode", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	require.Contains(t, resp.Error.Message, "boom")
}

func TestClientServer_ConcurrentCallsAreDemultiplexed(t *testing.T) {
	addr, stop := startTestServer(t, func(ctx context.Context, method string, params map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"method": method}, nil
	})
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	client := NewClient(conn)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		method := fmt.Sprintf("method-%d", i)
		go func(method string) {
			resp, err := client.Call(ctx, method, nil)
			if err != nil {
				errs <- err
				return
			}
			result, ok := resp.Result.(map[string]interface{})
			if !ok || result["method"] != method {
				errs <- fmt.Errorf("mismatched response for %s: %+v", method, resp.Result)
				return
			}
			errs <- nil
		}(method)
	}

	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
}

func TestClient_CallReturnsContextErrorOnTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept but never respond, so the call must time out via ctx.
	go func() {
		conn, _ := ln.Accept()
		if conn != nil {
			defer conn.Close()
			buf := make([]byte, 4096)
			conn.Read(buf)
		}
	}()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	client := NewClient(conn)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Call(ctx, "slow", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
