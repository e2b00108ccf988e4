package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	var requestID string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.RequestIDHeaderName)
		if len(values) > 0 {
			requestID = values[0]
		}
	}
	if len(requestID) == 0 {
		requestID = uuid.NewString()
	}

	ctx = logging.WithRequestID(ctx, requestID)

	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Debug(ctx, "grpc call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))

	return resp, err
}
