package clog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

type connectConfig struct {
	Filter func(spec connect.Spec) bool
}

type ConnectOption func(*connectConfig)

func WithConnectFilter(filter func(connect.Spec) bool) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.Filter = filter
	}
}

// DefaultConnectHealthCheckUnaryFilter keeps probe traffic out of the log.
func DefaultConnectHealthCheckUnaryFilter(spec connect.Spec) bool {
	return spec.Procedure != "/grpc.health.v1.Health/Check"
}

// NewSlogConnectInterceptor logs each unary Connect call once it finished.
// The server only mounts the gRPC health service, so streaming calls are
// passed through untouched.
func NewSlogConnectInterceptor(opts ...ConnectOption) connect.UnaryInterceptorFunc {
	cfg := connectConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			startTime := time.Now()
			newCtx := ContextWithSlog(ctx)
			AddAttributes(newCtx, map[string]any{
				"method":     req.HTTPMethod(),
				"path":       req.Spec().Procedure,
				"proto":      req.Peer().Protocol,
				"stream":     req.Spec().StreamType.String(),
				"idempotent": req.Spec().IdempotencyLevel.String(),
			})
			resp, err := next(newCtx, req)
			if cfg.Filter != nil && !cfg.Filter(req.Spec()) {
				return resp, err
			}
			code := "ok"
			level := LevelInfo
			if err != nil {
				var cerr *connect.Error
				if !errors.As(err, &cerr) {
					cerr = connect.NewError(connect.CodeUnknown, err)
				}
				code = cerr.Code().String()
				level = ConnectCodeToLevel(cerr.Code())
				AddError(newCtx, err)
			}
			AddAttributes(newCtx, map[string]any{
				"code":     code,
				"duration": time.Since(startTime),
			})
			slog.Log(newCtx, level.Slog(), "Finished")
			return resp, err
		}
	}
}
