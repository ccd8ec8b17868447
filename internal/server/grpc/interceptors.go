package grpcserver

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// probeFields describes a health probe: which service was asked about and what it was told.
func probeFields(req, resp any) []zap.Field {
	var fs []zap.Field
	if r, ok := req.(*healthpb.HealthCheckRequest); ok {
		fs = append(fs, zap.String("service", r.GetService()))
	}
	if r, ok := resp.(*healthpb.HealthCheckResponse); ok {
		fs = append(fs, zap.String("serving", r.GetStatus().String()))
	}
	return fs
}

// probeLevel keeps routine SERVING answers out of info logs. Orchestrators probe every few seconds.
func probeLevel(code codes.Code, resp any) zapcore.Level {
	if code != codes.OK {
		return zap.WarnLevel
	}
	if r, ok := resp.(*healthpb.HealthCheckResponse); ok && r.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return zap.InfoLevel
	}
	return zap.DebugLevel
}

// LoggingUnary logs one line per probe.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		fields := append([]zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
		}, probeFields(req, resp)...)
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			fields = append(fields, zap.String("peer", p.Addr.String()))
		}
		log.Log(probeLevel(code, resp), "grpc probe", fields...)
		return resp, err
	}
}

// RecoverUnary answers codes.Internal instead of crashing the process on a handler panic.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if rv := recover(); rv != nil {
				log.Error("panic",
					zap.Any("reason", rv),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				resp, err = nil, status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}
