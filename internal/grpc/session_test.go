package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/IsmaHaa12/smp-announcement/internal/auth"
	"github.com/IsmaHaa12/smp-announcement/internal/kv"
	"github.com/IsmaHaa12/smp-announcement/internal/logging"
	"github.com/IsmaHaa12/smp-announcement/internal/session"
)

const (
	testSecret       = "test-secret"
	testIssuer       = "test-issuer"
	testServiceToken = "sibling-token"
)

func startServer(t *testing.T, sessions SessionReader) *bufconn.Listener {
	t.Helper()
	interceptor, err := NewServiceAuthUnaryInterceptor(testServiceToken, logging.Discard())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	RegisterSessionQueryServer(server, NewSessionServer(sessions, testSecret, testIssuer))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)
	return lis
}

func bufDialer(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func tokenFor(t *testing.T, sessionID string) string {
	t.Helper()
	token, err := auth.NewAccessToken(testSecret, testIssuer, time.Hour, auth.Claims{SessionID: sessionID})
	require.NoError(t, err)
	return token
}

func TestSessionQueries(t *testing.T) {
	ctx := context.Background()
	sessions := session.New(session.Options{AdminPassword: "rahasia"}, kv.NewMemory(), nil, logging.Discard())
	_, err := sessions.LoginAsAdmin(ctx, "admin-session", session.Credentials{Password: "rahasia"})
	require.NoError(t, err)

	lis := startServer(t, sessions)
	client, err := Dial(ctx, "bufnet", testServiceToken, time.Second, bufDialer(lis))
	require.NoError(t, err)
	defer client.Close()

	info, err := client.GetSession(ctx, tokenFor(t, "admin-session"))
	require.NoError(t, err)
	require.Equal(t, "admin-session", info.SessionID)
	require.Equal(t, "admin", info.Role)
	require.True(t, info.CanEdit)

	isAdmin, err := client.CheckAdmin(ctx, tokenFor(t, "admin-session"))
	require.NoError(t, err)
	require.True(t, isAdmin)

	isAdmin, err = client.CheckAdmin(ctx, tokenFor(t, "unknown"))
	require.NoError(t, err)
	require.False(t, isAdmin)

	info, err = client.GetSession(ctx, tokenFor(t, "unknown"))
	require.NoError(t, err)
	require.Equal(t, "guest", info.Role)
	require.False(t, info.CanEdit)

	_, err = client.GetSession(ctx, "")
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.GetSession(ctx, "not-a-jwt")
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServiceTokenIsRequired(t *testing.T) {
	ctx := context.Background()
	sessions := session.New(session.Options{}, kv.NewMemory(), nil, logging.Discard())
	lis := startServer(t, sessions)

	conn, err := grpc.DialContext(ctx, "bufnet",
		bufDialer(lis),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	checkAdmin := "/" + sessionServiceName + "/CheckAdmin"
	err = conn.Invoke(ctx, checkAdmin, wrapperspb.String(tokenFor(t, "x")), new(wrapperspb.BoolValue))
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.Equal(t, "service_token_missing", status.Convert(err).Message())

	blank := metadata.AppendToOutgoingContext(ctx, serviceTokenKey, "   ")
	err = conn.Invoke(blank, checkAdmin, wrapperspb.String(tokenFor(t, "x")), new(wrapperspb.BoolValue))
	require.Equal(t, "service_token_missing", status.Convert(err).Message())

	wrong, err := Dial(ctx, "bufnet", "wrong-token", time.Second, bufDialer(lis))
	require.NoError(t, err)
	defer wrong.Close()
	_, err = wrong.CheckAdmin(ctx, tokenFor(t, "x"))
	require.Equal(t, codes.PermissionDenied, status.Code(err))
	require.Equal(t, "service_token_invalid", status.Convert(err).Message())

	// the old header name is not accepted
	legacy := metadata.AppendToOutgoingContext(ctx, "x-service-token", testServiceToken)
	err = conn.Invoke(legacy, checkAdmin, wrapperspb.String(tokenFor(t, "x")), new(wrapperspb.BoolValue))
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = NewServiceAuthUnaryInterceptor("  ", logging.Discard())
	require.Error(t, err)
	_, err = Dial(ctx, "bufnet", "", time.Second)
	require.Error(t, err)
}

func TestSessionQueriesSeeOtherInstances(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	web := session.New(session.Options{AdminPassword: "rahasia"}, store, nil, logging.Discard())
	_, err := web.LoginAsAdmin(ctx, "shared-session", session.Credentials{Password: "rahasia"})
	require.NoError(t, err)

	// a second process holding nothing in memory
	other := session.New(session.Options{AdminPassword: "rahasia"}, store, nil, logging.Discard())
	lis := startServer(t, other)
	client, err := Dial(ctx, "bufnet", testServiceToken, time.Second, bufDialer(lis))
	require.NoError(t, err)
	defer client.Close()

	info, err := client.GetSession(ctx, tokenFor(t, "shared-session"))
	require.NoError(t, err)
	require.Equal(t, "admin", info.Role)
	require.False(t, info.IsGuest)

	isAdmin, err := client.CheckAdmin(ctx, tokenFor(t, "shared-session"))
	require.NoError(t, err)
	require.True(t, isAdmin)
}
