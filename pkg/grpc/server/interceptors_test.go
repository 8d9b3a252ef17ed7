package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestLoggingInterceptor(t *testing.T) {
	logger := zaptest.NewLogger(t)

	interceptor := LoggingInterceptor(logger)
	info := &grpc.UnaryServerInfo{FullMethod: "/insighter.v1.Insights/ListGroups"}

	t.Run("successful request", func(t *testing.T) {
		resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
			return "success", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	})

	t.Run("error request", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
			return nil, status.Error(codes.InvalidArgument, "test error")
		})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestRecoveryInterceptor(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	interceptor := RecoveryInterceptor(zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: "/insighter.v1.Insights/GetGroupReport"}

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})

	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, 1, logs.FilterMessage("gRPC handler panicked").Len())
	assert.Equal(t, "/insighter.v1.Insights/GetGroupReport", logs.All()[0].ContextMap()["method"])
}

func TestNewRejectsInvalidPort(t *testing.T) {
	_, err := New(WithPort(70000))
	assert.ErrorContains(t, err, "invalid port 70000")
}

func TestServerBuilderWithLogging(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)

	server, err := New(
		WithListener(lis),
		WithLogger(zaptest.NewLogger(t)),
		WithLogging(true),
	)
	require.NoError(t, err)
	require.NotNil(t, server.grpcServer)
	require.NotNil(t, server.healthServer)

	server.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, server.Shutdown(ctx))
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestRegisterServiceWithHealth(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)

	server, err := New(WithListener(lis))
	require.NoError(t, err)

	var called bool
	server.RegisterServiceWithHealth("insighter.v1.Insights", func(*grpc.Server) { called = true })
	server.RegisterServiceWithHealth("", func(*grpc.Server) {})
	assert.True(t, called)
	assert.Equal(t, []string{"insighter.v1.Insights"}, server.services)

	server.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, server.Shutdown(ctx))
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "insighter.v1.Insights"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
