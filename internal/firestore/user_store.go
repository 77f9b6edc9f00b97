package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"skill-exchange/internal/models"
	"skill-exchange/internal/services"
)

const defaultQueryLimit = 100

// UserStore reads user profiles from the "users" collection.
type UserStore struct {
	client *firestore.Client
}

// NewUserStore creates a Firestore-backed directory for projectID.
func NewUserStore(ctx context.Context, projectID string) (*UserStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore directory")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &UserStore{client: client}, nil
}

func (s *UserStore) Close() error {
	return s.client.Close()
}

func (s *UserStore) usersCol() *firestore.CollectionRef {
	return s.client.Collection("users")
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	snap, err := s.usersCol().Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.User{}, services.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("firestore GetUser: %w", err)
	}
	return decodeUser(snap)
}

// QueryUsers narrows by skill server-side when a kind is given. Skill
// matching there is exact; callers apply UserQuery.Matches for the final
// case-insensitive filter.
func (s *UserStore) QueryUsers(ctx context.Context, q models.UserQuery) ([]models.User, error) {
	query := s.usersCol().Query
	switch {
	case q.Skill != "" && q.Kind == models.SkillKindTeach:
		query = query.Where("teachSkills", "array-contains", q.Skill)
	case q.Skill != "" && q.Kind == models.SkillKindLearn:
		query = query.Where("learnSkills", "array-contains", q.Skill)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	query = query.Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []models.User
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore QueryUsers: %w", err)
		}
		u, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		if u.ID == q.ExcludeID {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func decodeUser(snap *firestore.DocumentSnapshot) (models.User, error) {
	var u models.User
	if err := snap.DataTo(&u); err != nil {
		return models.User{}, fmt.Errorf("decode user: %w", err)
	}
	if u.ID == "" {
		u.ID = snap.Ref.ID
	}
	return u, nil
}

var _ services.Directory = (*UserStore)(nil)
