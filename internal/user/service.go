package user

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/redmonkez12/users-auth-api/internal/avatar"
	"github.com/redmonkez12/users-auth-api/internal/logging"
)

var ErrInvalidSubscription = errors.New("invalid subscription")

// AvatarProcessor turns a staged upload into a stored avatar and returns its URL
type AvatarProcessor interface {
	Process(ctx context.Context, tempPath, filename string) (string, error)
}

// Service handles profile updates of authenticated users
type Service struct {
	store   Store
	avatars AvatarProcessor
	logger  *logging.Logger
}

func NewService(store Store, avatars AvatarProcessor, logger *logging.Logger) *Service {
	return &Service{
		store:   store,
		avatars: avatars,
		logger:  logger,
	}
}

// UpdateSubscription changes the plan of user id and returns the updated user
func (s *Service) UpdateSubscription(ctx context.Context, id uuid.UUID, sub Subscription) (*User, error) {
	if !sub.Valid() {
		return nil, ErrInvalidSubscription
	}

	u, err := s.store.UpdateSubscription(ctx, id, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	s.logger.Info("subscription updated", "user_id", id, "subscription", sub)
	return u, nil
}

// UpdateAvatar stores the staged upload at tempPath as the avatar of user id.
// The file is moved into place before the record is updated; if the move
// fails the record keeps its previous avatar URL. The staged file is removed
// whenever processing fails.
func (s *Service) UpdateAvatar(ctx context.Context, id uuid.UUID, tempPath, originalName string) (string, error) {
	filename, err := avatar.Filename(id, originalName)
	if err != nil {
		s.removeTemp(tempPath)
		return "", err
	}

	avatarURL, err := s.avatars.Process(ctx, tempPath, filename)
	if err != nil {
		s.removeTemp(tempPath)
		return "", fmt.Errorf("failed to process avatar: %w", err)
	}

	if err := s.store.UpdateAvatarURL(ctx, id, avatarURL); err != nil {
		return "", fmt.Errorf("failed to update avatar url: %w", err)
	}

	s.logger.Info("avatar updated", "user_id", id, "avatar_url", avatarURL)
	return avatarURL, nil
}

func (s *Service) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove temp upload", "path", path, "error", err)
	}
}
