package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/client"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func startHealth(t *testing.T) (*HealthServer, string, context.CancelFunc, <-chan error) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewHealthServer(lis.Addr().String(), logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, lis) }()
	t.Cleanup(cancel)

	return s, lis.Addr().String(), cancel, done
}

func TestServiceNameMatchesClientProbe(t *testing.T) {
	assert.Equal(t, client.HealthService, ServiceName)
}

func TestHealth_ClientPingFollowsStatus(t *testing.T) {
	s, addr, _, _ := startHealth(t)

	c, err := client.NewHTTPClient("http://127.0.0.1:1", client.WithHealthAddr(addr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	s.SetServing(true)
	require.NoError(t, c.Ping(context.Background()))

	s.SetServing(false)
	assert.ErrorIs(t, c.Ping(context.Background()), client.ErrUnavailable)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	_, _, cancel, done := startHealth(t)

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewHealthServer("127.0.0.1:99999", logging.Nop())

	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error for invalid port, got nil")
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	s := NewHealthServer(":0", logging.Nop())
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := s.loggingInterceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	want := status.Error(codes.NotFound, "unknown service")
	_, err = s.loggingInterceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	})
	assert.True(t, errors.Is(err, want))
}
