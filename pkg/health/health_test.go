package health

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCheckerCriticalComponents(t *testing.T) {
	checker := NewChecker(nil, time.Minute)
	dbErr := errors.New("connection refused")
	checker.RegisterDatabaseCheck(func(context.Context) error { return dbErr })
	checker.RegisterRedisCheck(func(context.Context) error { return errors.New("no redis") })

	checker.RunChecks(context.Background())
	assert.False(t, checker.IsSystemHealthy())
	assert.Equal(t, StatusDegraded, checker.GetStatus()["redis"].Status)
	assert.Equal(t, "connection refused", checker.GetStatus()["database"].Error)

	dbErr = nil
	checker.RunChecks(context.Background())
	assert.True(t, checker.IsSystemHealthy())

	status := checker.GetStatus()
	assert.Equal(t, StatusUp, status["database"].Status)
	assert.True(t, status["database"].Critical)
}

func TestStartRunsChecksUntilCancelled(t *testing.T) {
	checker := NewChecker(nil, 10*time.Millisecond)
	var runs atomic.Int32
	checker.RegisterCheck("counter", false, func(context.Context) (Status, string, error) {
		runs.Add(1)
		return StatusUp, "", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	checker.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
}

func TestGRPCHealthFollowsChecker(t *testing.T) {
	checker := NewChecker(nil, time.Minute)
	var dbErr error = errors.New("down")
	checker.RegisterDatabaseCheck(func(context.Context) error { return dbErr })
	checker.RunChecks(context.Background())

	srv := NewGRPCServer(checker, "dungeon-ledger")
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.ServeListener(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "dungeon-ledger"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	dbErr = nil
	checker.RunChecks(context.Background())
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
