package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"skill-exchange/internal/models"
	"skill-exchange/internal/services"
)

const (
	getUserMethod    = "/directory.v1.Directory/GetUser"
	queryUsersMethod = "/directory.v1.Directory/QueryUsers"
)

// DirectoryClient reads user profiles from the directory service.
type DirectoryClient struct {
	conn gogrpc.ClientConnInterface
}

// NewDirectoryClient constructs the wrapper.
func NewDirectoryClient(conn gogrpc.ClientConnInterface) *DirectoryClient {
	return &DirectoryClient{conn: conn}
}

// GetUser retrieves one profile.
func (d *DirectoryClient) GetUser(ctx context.Context, userID string) (models.User, error) {
	resp, err := call(ctx, d.conn, getUserMethod, map[string]any{"user_id": userID})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.User{}, services.ErrUserNotFound
		}
		return models.User{}, err
	}
	u := userFromStruct(resp)
	if u.ID == "" {
		return models.User{}, services.ErrUserNotFound
	}
	return u, nil
}

// QueryUsers lists profiles by skill.
func (d *DirectoryClient) QueryUsers(ctx context.Context, q models.UserQuery) ([]models.User, error) {
	resp, err := call(ctx, d.conn, queryUsersMethod, map[string]any{
		"skill":      q.Skill,
		"kind":       string(q.Kind),
		"exclude_id": q.ExcludeID,
		"limit":      float64(q.Limit),
	})
	if err != nil {
		return nil, err
	}

	values := resp.GetFields()["users"].GetListValue().GetValues()
	users := make([]models.User, 0, len(values))
	for _, v := range values {
		if u := userFromStruct(v.GetStructValue()); u.ID != "" {
			users = append(users, u)
		}
	}
	return users, nil
}

func userFromStruct(s *structpb.Struct) models.User {
	f := s.GetFields()
	return models.User{
		ID:          f["uid"].GetStringValue(),
		DisplayName: f["display_name"].GetStringValue(),
		Email:       f["email"].GetStringValue(),
		PhotoURL:    f["photo_url"].GetStringValue(),
		TeachSkills: stringList(f["teach_skills"]),
		LearnSkills: stringList(f["learn_skills"]),
	}
}

var _ services.Directory = (*DirectoryClient)(nil)
