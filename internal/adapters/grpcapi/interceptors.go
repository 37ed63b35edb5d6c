package grpcapi

import (
	"context"
	"log/slog"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kvetinski/identity/internal/telemetry"
)

// UnaryMetricsInterceptor records RPC metrics and writes one log line per
// call. Request payloads are never logged; they carry passwords and codes.
func UnaryMetricsInterceptor(metrics *telemetry.Metrics, logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		method := path.Base(info.FullMethod)
		start := time.Now()

		metrics.IncRPCInFlight()
		defer metrics.DecRPCInFlight()

		resp, err = handler(ctx, req)
		code := status.Code(err)
		metrics.ObserveRPC(method, code.String(), time.Since(start))

		attrs := []any{
			"method", method,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if kind := ErrorKind(err); kind != "" {
			attrs = append(attrs, "error_kind", kind)
		}

		switch code {
		case codes.OK:
			logger.Info("grpc request", attrs...)
		case codes.Internal, codes.Unavailable, codes.Unknown:
			logger.Error("grpc request", attrs...)
		default:
			logger.Warn("grpc request", attrs...)
		}

		return resp, err
	}
}
