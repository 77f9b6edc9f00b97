package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"skill-exchange/internal/models"
	"skill-exchange/internal/services"
)

type structHandler func(in *structpb.Struct) (*structpb.Struct, error)

func unary(name string, h structHandler) gogrpc.MethodDesc {
	return gogrpc.MethodDesc{
		MethodName: name,
		Handler: func(_ any, _ context.Context, dec func(any) error, _ gogrpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			return h(in)
		},
	}
}

func startServer(t *testing.T, descs ...*gogrpc.ServiceDesc) *gogrpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := gogrpc.NewServer()
	for _, d := range descs {
		server.RegisterService(d, struct{}{})
	}
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := gogrpc.NewClient("passthrough:///bufnet",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestAuthClientValidateToken(t *testing.T) {
	desc := &gogrpc.ServiceDesc{
		ServiceName: "auth.v1.AuthService",
		HandlerType: (*interface{})(nil),
		Methods: []gogrpc.MethodDesc{
			unary("ValidateToken", func(in *structpb.Struct) (*structpb.Struct, error) {
				if in.GetFields()["token"].GetStringValue() != "good" {
					return structpb.NewStruct(map[string]any{"valid": false})
				}
				return structpb.NewStruct(map[string]any{
					"valid":        true,
					"user_id":      "alice",
					"display_name": "Alice",
					"email":        "alice@example.com",
				})
			}),
		},
	}
	client := NewAuthClient(startServer(t, desc))

	s, err := client.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.UserID)
	assert.Equal(t, "Alice", s.DisplayName)
	assert.False(t, s.AuthenticatedAt.IsZero())

	_, err = client.ValidateToken(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDirectoryClient(t *testing.T) {
	var lastQuery *structpb.Struct
	desc := &gogrpc.ServiceDesc{
		ServiceName: "directory.v1.Directory",
		HandlerType: (*interface{})(nil),
		Methods: []gogrpc.MethodDesc{
			unary("GetUser", func(in *structpb.Struct) (*structpb.Struct, error) {
				if in.GetFields()["user_id"].GetStringValue() != "bob" {
					return nil, status.Error(codes.NotFound, "no such user")
				}
				return structpb.NewStruct(map[string]any{
					"uid":          "bob",
					"display_name": "Bob",
					"teach_skills": []any{"Spanish", ""},
					"learn_skills": []any{"Guitar"},
				})
			}),
			unary("QueryUsers", func(in *structpb.Struct) (*structpb.Struct, error) {
				lastQuery = in
				return structpb.NewStruct(map[string]any{
					"users": []any{
						map[string]any{"uid": "bob", "display_name": "Bob", "teach_skills": []any{"Spanish"}},
						map[string]any{"display_name": "no id"},
					},
				})
			}),
		},
	}
	client := NewDirectoryClient(startServer(t, desc))
	ctx := context.Background()

	u, err := client.GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", u.Name())
	assert.Equal(t, []string{"Spanish"}, u.TeachSkills)
	assert.Equal(t, []string{"Guitar"}, u.LearnSkills)

	_, err = client.GetUser(ctx, "zed")
	assert.ErrorIs(t, err, services.ErrNotFound)

	users, err := client.QueryUsers(ctx, models.UserQuery{Skill: "Spanish", Kind: models.SkillKindTeach, ExcludeID: "alice", Limit: 10})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].ID)
	assert.Equal(t, mustStruct(t, map[string]any{
		"skill": "Spanish", "kind": "teach", "exclude_id": "alice", "limit": float64(10),
	}).AsMap(), lastQuery.AsMap())
}

func TestDirectoryClientUnavailableIsTransient(t *testing.T) {
	desc := &gogrpc.ServiceDesc{
		ServiceName: "directory.v1.Directory",
		HandlerType: (*interface{})(nil),
		Methods: []gogrpc.MethodDesc{
			unary("GetUser", func(*structpb.Struct) (*structpb.Struct, error) {
				return nil, status.Error(codes.Unavailable, "down")
			}),
		},
	}
	client := NewDirectoryClient(startServer(t, desc))

	_, err := client.GetUser(context.Background(), "bob")
	require.Error(t, err)
	assert.True(t, services.IsTransient(err))
}
