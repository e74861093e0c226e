package grpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// serviceTokenKey carries the shared secret of sibling school services.
const serviceTokenKey = "schoolinfo-service-token"

var (
	errServiceTokenMissing = status.Error(codes.Unauthenticated, "service_token_missing")
	errServiceTokenInvalid = status.Error(codes.PermissionDenied, "service_token_invalid")
)

// serviceAuth admits calls from services that present the shared token.
type serviceAuth struct {
	token []byte
	log   logrus.FieldLogger
}

func NewServiceAuthUnaryInterceptor(token string, log logrus.FieldLogger) (grpc.UnaryServerInterceptor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("service auth token required")
	}
	a := &serviceAuth{token: []byte(token), log: log}
	return a.unary, nil
}

func (a *serviceAuth) unary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if err := a.check(ctx); err != nil {
		a.log.WithFields(logrus.Fields{
			"method": info.FullMethod,
			"code":   status.Code(err).String(),
		}).Warn("rejected session query")
		return nil, err
	}
	return handler(ctx, req)
}

func (a *serviceAuth) check(ctx context.Context) error {
	presented := incomingServiceToken(ctx)
	if presented == "" {
		return errServiceTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(presented), a.token) != 1 {
		return errServiceTokenInvalid
	}
	return nil
}

func incomingServiceToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(serviceTokenKey) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// withServiceToken attaches the caller's token to every outgoing call.
func withServiceToken(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(metadata.AppendToOutgoingContext(ctx, serviceTokenKey, token), method, req, reply, cc, opts...)
	}
}
