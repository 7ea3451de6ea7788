package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type userRepo interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// UserService exposes user directory reads for the admin surface.
type UserService struct {
	repo   userRepo
	logger *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(repo userRepo, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns users matching the filter with a total count.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// Get returns a single user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}
