package log

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor attaches a per-call logger to the context and logs
// the outcome once the handler returns.
func UnaryServerInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		child := callLogger(ctx, logger, info.FullMethod)

		resp, err := handler(WithLogger(ctx, child), req)
		logCall(child, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor is the streaming variant; health Watch streams go
// through here.
func StreamServerInterceptor(logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		child := callLogger(ss.Context(), logger, info.FullMethod)

		err := handler(srv, &loggedStream{ServerStream: ss, ctx: WithLogger(ss.Context(), child)})
		logCall(child, info.FullMethod, start, err)
		return err
	}
}

func callLogger(ctx context.Context, logger zerolog.Logger, method string) zerolog.Logger {
	var supplied string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(metadataKeyRequestID); len(vals) > 0 {
			supplied = vals[0]
		}
	}
	return logger.With().
		Str(FieldRequestID, requestID(supplied)).
		Str(FieldGRPCMethod, method).
		Logger()
}

func logCall(l zerolog.Logger, method string, start time.Time, err error) {
	code := status.Code(err)
	l.WithLevel(codeLevel(code, method)).
		Str(FieldGRPCCode, code.String()).
		Float64(FieldLatency, latencyMS(start)).
		Err(err).
		Msg("grpc call completed")
}

func codeLevel(code codes.Code, method string) zerolog.Level {
	switch code {
	case codes.OK, codes.Canceled:
		if strings.HasPrefix(method, "/grpc.health.") {
			return zerolog.DebugLevel
		}
		return zerolog.InfoLevel
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context { return s.ctx }
