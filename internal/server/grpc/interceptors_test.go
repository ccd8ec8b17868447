package grpcserver

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var checkInfo = &grpc.UnaryServerInfo{FullMethod: healthpb.Health_Check_FullMethodName}

func answer(st healthpb.HealthCheckResponse_ServingStatus) grpc.UnaryHandler {
	return func(context.Context, any) (any, error) {
		return &healthpb.HealthCheckResponse{Status: st}, nil
	}
}

func TestLoggingUnary_Levels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		h    grpc.UnaryHandler
		want zapcore.Level
	}{
		{"serving", answer(healthpb.HealthCheckResponse_SERVING), zap.DebugLevel},
		{"not serving", answer(healthpb.HealthCheckResponse_NOT_SERVING), zap.InfoLevel},
		{"unknown service", func(context.Context, any) (any, error) {
			return nil, status.Error(codes.NotFound, "unknown service")
		}, zap.WarnLevel},
	}
	for _, tc := range cases {
		core, logs := observer.New(zap.DebugLevel)
		ic := LoggingUnary(zap.New(core))

		ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4000}})
		_, _ = ic(ctx, &healthpb.HealthCheckRequest{Service: ServiceName}, checkInfo, tc.h)

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("%s: %d log lines, want 1", tc.name, len(entries))
		}
		e := entries[0]
		if e.Level != tc.want {
			t.Fatalf("%s: level %v, want %v", tc.name, e.Level, tc.want)
		}
		fields := e.ContextMap()
		if fields["service"] != ServiceName || fields["peer"] != "10.0.0.1:4000" {
			t.Fatalf("%s: fields %v", tc.name, fields)
		}
	}
}

func TestLoggingUnary_PassesResultThrough(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	resp, err := ic(context.Background(), &healthpb.HealthCheckRequest{}, checkInfo, answer(healthpb.HealthCheckResponse_SERVING))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r, ok := resp.(*healthpb.HealthCheckResponse); !ok || r.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestRecoverUnary(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	ic := RecoverUnary(zap.New(core))

	resp, err := ic(context.Background(), nil, checkInfo, func(context.Context, any) (any, error) {
		panic("oh no")
	})
	if resp != nil || status.Code(err) != codes.Internal {
		t.Fatalf("want nil, codes.Internal; got %v, %v", resp, err)
	}
	if logs.FilterMessage("panic").Len() != 1 {
		t.Fatalf("panic not logged")
	}

	resp, err = ic(context.Background(), nil, checkInfo, answer(healthpb.HealthCheckResponse_SERVING))
	if err != nil || resp == nil {
		t.Fatalf("no-panic path altered: %v %v", resp, err)
	}
}
