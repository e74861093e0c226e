package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/IsmaHaa12/smp-announcement/internal/auth"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

const sessionServiceName = "schoolinfo.session.v1.SessionQueryService"

// Field names of the session struct returned by GetSession.
const (
	fieldSessionID = "session_id"
	fieldRole      = "role"
	fieldEmail     = "email"
	fieldUserID    = "user_id"
	fieldIsGuest   = "is_guest"
	fieldCanEdit   = "can_edit"
)

// SessionInfo is the client-side view of a session.
type SessionInfo struct {
	SessionID string
	Role      string
	Email     string
	UserID    string
	IsGuest   bool
	CanEdit   bool
}

// SessionQueryServer answers with protobuf well-known types so callers need
// no generated stubs: the request is the raw access token.
type SessionQueryServer interface {
	GetSession(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
	CheckAdmin(ctx context.Context, token *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// SessionReader is the read side of the session manager.
type SessionReader interface {
	Resolve(ctx context.Context, id string) model.Session
}

type SessionServer struct {
	sessions SessionReader
	secret   string
	issuer   string
}

func NewSessionServer(sessions SessionReader, jwtSecret, jwtIssuer string) *SessionServer {
	return &SessionServer{sessions: sessions, secret: jwtSecret, issuer: jwtIssuer}
}

func (s *SessionServer) GetSession(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error) {
	sess, err := s.resolve(ctx, token.GetValue())
	if err != nil {
		return nil, err
	}
	out, err := structpb.NewStruct(map[string]interface{}{
		fieldSessionID: sess.ID,
		fieldRole:      string(sess.Role),
		fieldEmail:     sess.Identity.Email,
		fieldUserID:    sess.Identity.UserID,
		fieldIsGuest:   sess.Guest,
		fieldCanEdit:   sess.CanEdit(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode_session")
	}
	return out, nil
}

func (s *SessionServer) CheckAdmin(ctx context.Context, token *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	sess, err := s.resolve(ctx, token.GetValue())
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(sess.IsAdmin()), nil
}

func (s *SessionServer) resolve(ctx context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, status.Error(codes.InvalidArgument, "access_token required")
	}
	claims, err := auth.ParseToken(s.secret, s.issuer, token)
	if err != nil {
		return model.Session{}, status.Error(codes.Unauthenticated, "invalid_token")
	}
	return s.sessions.Resolve(ctx, claims.SessionID), nil
}

func sessionInfoFromStruct(st *structpb.Struct) SessionInfo {
	f := st.GetFields()
	return SessionInfo{
		SessionID: f[fieldSessionID].GetStringValue(),
		Role:      f[fieldRole].GetStringValue(),
		Email:     f[fieldEmail].GetStringValue(),
		UserID:    f[fieldUserID].GetStringValue(),
		IsGuest:   f[fieldIsGuest].GetBoolValue(),
		CanEdit:   f[fieldCanEdit].GetBoolValue(),
	}
}

func RegisterSessionQueryServer(registrar grpc.ServiceRegistrar, srv SessionQueryServer) {
	registrar.RegisterService(&sessionQueryServiceDesc, srv)
}

var sessionQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionServiceName,
	HandlerType: (*SessionQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSession", Handler: getSessionHandler},
		{MethodName: "CheckAdmin", Handler: checkAdminHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func getSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionQueryServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + sessionServiceName + "/GetSession"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionQueryServer).GetSession(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func checkAdminHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionQueryServer).CheckAdmin(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + sessionServiceName + "/CheckAdmin"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionQueryServer).CheckAdmin(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
