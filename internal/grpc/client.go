package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SessionClient lets sibling services ask who holds an access token.
type SessionClient struct {
	conn *grpc.ClientConn
}

func Dial(ctx context.Context, addr, serviceToken string, timeout time.Duration, opts ...grpc.DialOption) (*SessionClient, error) {
	if serviceToken == "" {
		return nil, errors.New("service auth token required")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(withServiceToken(serviceToken)),
	}, opts...)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, err
	}
	return &SessionClient{conn: conn}, nil
}

func (c *SessionClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *SessionClient) GetSession(ctx context.Context, accessToken string) (SessionInfo, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+sessionServiceName+"/GetSession", wrapperspb.String(accessToken), out); err != nil {
		return SessionInfo{}, err
	}
	return sessionInfoFromStruct(out), nil
}

func (c *SessionClient) CheckAdmin(ctx context.Context, accessToken string) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.conn.Invoke(ctx, "/"+sessionServiceName+"/CheckAdmin", wrapperspb.String(accessToken), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
