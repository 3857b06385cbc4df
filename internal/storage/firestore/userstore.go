package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/notification"
)

// UserStore reads the users collection.
type UserStore struct {
	client *firestore.Client
}

func NewUserStore(client *firestore.Client) *UserStore {
	return &UserStore{client: client}
}

func (s *UserStore) Get(ctx context.Context, userID string) (*notification.User, error) {
	doc, err := s.client.Collection(UsersCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notification.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	var user notification.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", userID, err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}
