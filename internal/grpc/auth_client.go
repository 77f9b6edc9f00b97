package grpc

import (
	"context"
	"errors"
	"time"

	gogrpc "google.golang.org/grpc"

	"skill-exchange/internal/auth"
)

const validateTokenMethod = "/auth.v1.AuthService/ValidateToken"

var ErrInvalidToken = errors.New("invalid token")

// AuthClient validates bearer tokens against the auth service.
type AuthClient struct {
	conn gogrpc.ClientConnInterface
	now  func() time.Time
}

// NewAuthClient constructs the wrapper.
func NewAuthClient(conn gogrpc.ClientConnInterface) *AuthClient {
	return &AuthClient{conn: conn, now: time.Now}
}

// ValidateToken verifies the token and returns the signed-in user.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (auth.Session, error) {
	resp, err := call(ctx, a.conn, validateTokenMethod, map[string]any{"token": token})
	if err != nil {
		return auth.Session{}, err
	}
	fields := resp.GetFields()
	s := auth.Session{
		UserID:          fields["user_id"].GetStringValue(),
		DisplayName:     fields["display_name"].GetStringValue(),
		Email:           fields["email"].GetStringValue(),
		AuthenticatedAt: a.now(),
	}
	if !fields["valid"].GetBoolValue() || !s.Valid() {
		return auth.Session{}, ErrInvalidToken
	}
	return s, nil
}
